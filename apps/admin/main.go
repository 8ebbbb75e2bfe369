package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/user"
	logsvc "github.com/trezcool/presence/services/logger"
	inmemdb "github.com/trezcool/presence/storage/database/inmem"
)

func main() {
	conf := core.NewConfig()
	stdLogger := log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(false) // local tool

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up DB
	repo := inmemdb.NewAttendanceRepository(inmemdb.Open())
	if err := inmemdb.Seed(context.Background(), repo); err != nil {
		stdLogger.Fatal(err)
	}

	// start CLI
	cli := commandLine{
		out:      os.Stdout,
		conf:     conf,
		logger:   logger,
		validate: validate,
		users:    user.DefaultDirectory(),
		repo:     repo,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
