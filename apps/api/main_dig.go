package main

import (
	dig_container "github.com/trezcool/presence/apps/api/di/dig"
)

func startWithDig() {
	c := dig_container.New()
	must(c.Provide(newApp))
	must(c.Invoke(func(a *app) error { return a.run() }))
}
