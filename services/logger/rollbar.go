package logsvc

import (
	"fmt"
	"log"
	"strconv"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/attendance"
	"github.com/trezcool/presence/core/capture"
	"github.com/trezcool/presence/core/user"
)

// RollbarLogger reports to Rollbar and echoes every message to a std logger.
// Debug messages are only handled in debug mode.
type RollbarLogger struct {
	std   *log.Logger
	debug bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{std: std, debug: conf.Debug}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare turns args into rollbar arguments: the acting user becomes the
// item's person, attendance records and capture statuses are flattened into
// a single custom data map, anything else (errors, maps) is passed through.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var (
		person *user.User
		custom map[string]interface{}
	)
	setCustom := func(k string, v interface{}) {
		if custom == nil {
			custom = make(map[string]interface{})
		}
		custom[k] = v
	}

	newArgs := []interface{}{msg}
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			if person == nil { // only one person per item
				person = &a
			}
		case *user.User:
			if a != nil && person == nil {
				person = a
			}
		case attendance.Record:
			setCustom("record_id", a.ID.String())
			setCustom("roll_no", a.Subject)
			setCustom("status", string(a.Status))
			setCustom("method", string(a.Method))
		case capture.Status:
			setCustom("capture_session", a.SessionID.String())
			setCustom("roll_no", a.Subject)
			setCustom("capture_state", string(a.State))
			if a.Stage != "" {
				setCustom("capture_stage", a.Stage)
			}
		default:
			newArgs = append(newArgs, arg)
		}
	}

	if person != nil {
		rollbar.SetPerson(strconv.Itoa(person.ID), person.Name, person.Email)
	} else {
		rollbar.ClearPerson()
	}
	if custom != nil {
		newArgs = append(newArgs, custom)
	}
	return newArgs
}

// describe renders the domain args compactly for the std logger.
func describe(arg interface{}) interface{} {
	switch a := arg.(type) {
	case user.User:
		return fmt.Sprintf("user(%d, %s)", a.ID, a.Role)
	case attendance.Record:
		return fmt.Sprintf("record(%s, %s, %s, %s)", a.Subject, a.Date, a.Status, a.Method)
	case capture.Status:
		return fmt.Sprintf("capture(%s, %s, %d%%)", a.Subject, a.State, a.Progress)
	}
	return arg
}

func (l RollbarLogger) log(level string, report func(...interface{}), msg string, args []interface{}) {
	report(l.prepare(msg, args)...)
	if l.std == nil {
		return
	}
	l.std.Printf("[%s] %s\n", level, msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", describe(arg))
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	if l.debug {
		l.log("DEBUG", rollbar.Debug, msg, args)
	}
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.log("INFO", rollbar.Info, msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log("WARN", rollbar.Warning, msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.log("ERROR", rollbar.Error, msg, args)
}

// Fatal reports msg, waits for Rollbar to flush and exits.
func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", rollbar.Critical, msg, args)
	rollbar.Wait()
	log.Fatal(msg)
}
