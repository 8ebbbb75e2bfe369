package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/presence/core/timetable"
)

func (cli *commandLine) loadTimetable() (timetable.Timetable, error) {
	if len(cli.conf.Timetable) == 0 {
		return timetable.Default(), nil
	}
	tt, err := timetable.FromConfig(cli.validate, cli.conf.Timetable)
	return tt, errors.Wrap(err, "loading timetable")
}

// timetable prints the periods of the day. On a terminal the running period is starred.
func (cli *commandLine) timetable() error {
	tt, err := cli.loadTimetable()
	if err != nil {
		return err
	}

	interactive := isTerminalFunc(cli.out)
	current := -1
	if interactive {
		if i, ok := tt.Resolve(timetable.MinuteOfDay(time.Now())).Index(); ok {
			current = i
		}
	}

	nameWidth := len("NAME")
	for _, p := range tt.Periods() {
		if len(p.Name) > nameWidth {
			nameWidth = len(p.Name)
		}
	}
	// id, start, end, kind and gaps take 34 columns
	if maxName := termWidthFunc(cli.out) - 34; interactive && maxName > 4 && nameWidth > maxName {
		nameWidth = maxName
	}

	fmt.Fprintf(cli.out, "  %-3s %-*s  %-5s  %-5s  %s\n", "#", nameWidth, "NAME", "START", "END", "KIND")
	for i, p := range tt.Periods() {
		marker := " "
		if i == current {
			marker = "*"
		}
		fmt.Fprintf(cli.out, "%s %-3d %-*s  %-5s  %-5s  %s\n",
			marker, p.ID, nameWidth, truncate(p.Name, nameWidth),
			timetable.FormatClock(p.Start), timetable.FormatClock(p.End), p.Kind)
	}
	return nil
}

// resolve prints the session state at the HH:MM time of day at.
func (cli *commandLine) resolve(at string) error {
	if err := cli.validate.Var(at, "clock"); err != nil {
		return errors.Wrapf(timetable.ErrInvalidClock, "got %q", at)
	}
	minute, err := timetable.ParseClock(at)
	if err != nil {
		return err
	}
	tt, err := cli.loadTimetable()
	if err != nil {
		return err
	}
	state, err := tt.At(minute)
	if err != nil {
		return err
	}

	period, ok := tt.Current(state)
	if !ok {
		fmt.Fprintf(cli.out, "%s  no active period\n", timetable.FormatClock(minute))
		return nil
	}
	fmt.Fprintf(cli.out, "%s  %s\n", timetable.FormatClock(minute), period)
	fmt.Fprintf(cli.out, "break:     %s\n", yesNo(state.IsBreak))
	fmt.Fprintf(cli.out, "remaining: %s\n", timetable.FormatRemaining(state.MinutesRemaining))
	fmt.Fprintf(cli.out, "progress:  %d%%\n", timetable.ProgressPercent(period, state))
	if next, ok := tt.Next(state); ok {
		fmt.Fprintf(cli.out, "next:      %s\n", next)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return strings.TrimSpace(s[:n-3]) + "..."
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
