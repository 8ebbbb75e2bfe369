package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/presence/core/attendance"
	"github.com/trezcool/presence/core/capture"
	"github.com/trezcool/presence/core/gate"
	camerasvc "github.com/trezcool/presence/services/camera"
)

const progressBarWidth = 20

// capture runs one self-attendance capture of the student with rollNo, gate open.
func (cli *commandLine) capture(rollNo string, seed int64, deny bool) error {
	student, err := cli.findStudent(rollNo)
	if err != nil {
		return err
	}

	g := gate.New()
	g.SetEnabled(true)

	cameras := camerasvc.NewPool(nil)
	if deny {
		cameras.Get(student.RollNo).Deny(capture.ErrPermissionDenied)
	}
	svc := attendance.NewService(cli.repo, nil, nil, cli.logger)

	sim := capture.New(student.RollNo, capture.Deps{
		Device:   cameras.Device(student.RollNo),
		Gate:     g,
		Recorder: svc,
		Rand:     newRandFunc(seed),
		Logger:   cli.logger,
	}, capture.OptionsFromConfig(cli.conf))
	defer sim.Close()

	interactive := isTerminalFunc(cli.out)
	unsubscribe := sim.Subscribe(func(ev capture.Event) { cli.printCaptureEvent(ev, interactive) })
	defer unsubscribe()

	fmt.Fprintf(cli.out, "Self attendance for %s (%s)\n", student.Name, student.RollNo)
	ctx := context.Background()
	if err = sim.Start(ctx); err != nil {
		if capture.IsUnavailable(err) {
			fmt.Fprintln(cli.out, capture.UnavailableMessage)
		}
		return err
	}

	st, err := sim.Recognize(ctx)
	if err != nil {
		return errors.Wrap(err, "recognizing")
	}
	if st.State == capture.StateSucceeded {
		sum, err := svc.Summary(ctx, student.RollNo, attendance.DefaultRecent)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "Attendance: %d%% (%d/%d)\n", sum.Percentage, sum.Present, sum.Total)
	}
	return sim.Stop()
}

func (cli *commandLine) printCaptureEvent(ev capture.Event, interactive bool) {
	st := ev.Status
	switch st.State {
	case capture.StateCameraActive:
		fmt.Fprintln(cli.out, "Camera on")
	case capture.StateRecognizing:
		if st.Stage == "" {
			return
		}
		label := stageLabel(st.Stage)
		if interactive {
			filled := st.Progress * progressBarWidth / 100
			fmt.Fprintf(cli.out, "\r[%s%s] %3d%% %-28s",
				strings.Repeat("#", filled), strings.Repeat(" ", progressBarWidth-filled), st.Progress, label)
			if st.Progress == 100 {
				fmt.Fprintln(cli.out)
			}
		} else {
			fmt.Fprintf(cli.out, "%3d%% %s\n", st.Progress, label)
		}
	case capture.StateSucceeded:
		fmt.Fprintln(cli.out, "Attendance marked successfully!")
		if ev.Record != nil && ev.Record.Timestamp.Valid {
			fmt.Fprintf(cli.out, "Marked present at %s\n", ev.Record.Timestamp.Time.Format("15:04"))
		}
	case capture.StateFailed:
		if st.Error != "" {
			fmt.Fprintln(cli.out, st.Error)
		} else {
			fmt.Fprintln(cli.out, "Face not recognized. Please try again.")
		}
	case capture.StateIdle:
		if st.Error == "" {
			fmt.Fprintln(cli.out, "Camera off")
		}
		return
	}
	if (st.State == capture.StateSucceeded || st.State == capture.StateFailed) && st.FrameWidth > 0 {
		fmt.Fprintf(cli.out, "Still frame: %dx%d\n", st.FrameWidth, st.FrameHeight)
	}
}

func stageLabel(name string) string {
	for _, stage := range capture.Stages {
		if stage.Name == name {
			return stage.Label
		}
	}
	return name
}
