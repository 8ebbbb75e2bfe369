package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/presence/core/attendance"
	"github.com/trezcool/presence/core/user"
)

func (cli *commandLine) findStudent(rollNo string) (user.User, error) {
	student, err := cli.users.GetByRollNo(rollNo)
	if errors.Is(err, user.ErrNotFound) {
		if suggestions := cli.users.SuggestRollNos(rollNo, 1); len(suggestions) > 0 {
			return student, errors.Wrapf(err, "finding student %q (did you mean %s?)", rollNo, suggestions[0])
		}
	}
	return student, errors.Wrapf(err, "finding student %q", rollNo)
}

// history prints the attendance history of the student with rollNo, newest first.
func (cli *commandLine) history(rollNo string, recent int) error {
	student, err := cli.findStudent(rollNo)
	if err != nil {
		return err
	}
	svc := attendance.NewService(cli.repo, nil, nil, cli.logger)

	ctx := context.Background()
	recs, err := svc.History(ctx, student.RollNo)
	if err != nil {
		return err
	}
	sum, err := svc.Summary(ctx, student.RollNo, recent)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "%s (%s)\n", student.Name, student.RollNo)
	for _, rec := range recs {
		at, method := "-", "-"
		if rec.Timestamp.Valid {
			at = rec.Timestamp.Time.Format("15:04")
		}
		if rec.Method != attendance.MethodNone {
			method = string(rec.Method)
		}
		fmt.Fprintf(cli.out, "%s  %-7s  %-5s  %s\n", rec.Date, rec.Status, at, method)
	}
	fmt.Fprintf(cli.out, "present %d/%d (%d%%), recent %d%%\n", sum.Present, sum.Total, sum.Percentage, sum.RecentPercentage)
	return nil
}
