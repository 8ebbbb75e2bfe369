package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/attendance"
	"github.com/trezcool/presence/core/user"
)

var (
	isTerminalFunc = isTerminal   // mockable
	termWidthFunc  = termWidth    // mockable
	newRandFunc    = core.NewRand // mockable

	errHelp = errors.New("help provided")
)

const defaultWidth = 80

type commandLine struct {
	out      io.Writer
	conf     *core.Config
	logger   core.Logger
	validate *validator.Validate
	users    *user.Directory
	repo     attendance.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  timetable - print the daily timetable")
	fmt.Fprintln(cli.out, "  resolve -at HH:MM - print the session state at a time of day")
	fmt.Fprintln(cli.out, "  capture [-roll ROLLNO] [-seed N] [-deny] - simulate a self-attendance capture")
	fmt.Fprintln(cli.out, "  history [-roll ROLLNO] [-recent N] - print a student's attendance history")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	resolveCmd := flag.NewFlagSet("resolve", flag.ContinueOnError)
	resolveCmd.SetOutput(cli.out)
	resolveAt := resolveCmd.String("at", "", "The time of day, formatted as HH:MM (24h).")

	captureCmd := flag.NewFlagSet("capture", flag.ContinueOnError)
	captureCmd.SetOutput(cli.out)
	captureRoll := captureCmd.String("roll", "CS21012", "The student's roll number.")
	captureSeed := captureCmd.Int64("seed", 0, "Seed of the recognition outcome. 0 seeds from the clock.")
	captureDeny := captureCmd.Bool("deny", false, "Deny camera access.")

	historyCmd := flag.NewFlagSet("history", flag.ContinueOnError)
	historyCmd.SetOutput(cli.out)
	historyRoll := historyCmd.String("roll", "CS21012", "The student's roll number.")
	historyRecent := historyCmd.Int("recent", attendance.DefaultRecent, "How many records make up the recent trend.")

	switch args[1] {
	case "timetable":
		return cli.timetable()
	case "resolve":
		if err := resolveCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resolveAt == "" {
			resolveCmd.Usage()
			return errHelp
		}
		return cli.resolve(*resolveAt)
	case "capture":
		if err := captureCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.capture(*captureRoll, *captureSeed, *captureDeny)
	case "history":
		if err := historyCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.history(*historyRoll, *historyRecent)
	default:
		cli.printUsage()
		return errHelp
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func termWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultWidth
}
