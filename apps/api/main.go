package main

import (
	"flag"
	"log"
	_ "net/http/pprof"
)

func main() {
	useDig := flag.Bool("dig", false, "wire dependencies with the dig container")
	flag.Parse()

	if *useDig {
		startWithDig()
	} else {
		startManual()
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
