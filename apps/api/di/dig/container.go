package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/presence/apps/api/echo"
	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/attendance"
	"github.com/trezcool/presence/core/capture"
	"github.com/trezcool/presence/core/gate"
	"github.com/trezcool/presence/core/monitor"
	"github.com/trezcool/presence/core/session"
	"github.com/trezcool/presence/core/timetable"
	"github.com/trezcool/presence/core/user"
	appfs "github.com/trezcool/presence/fs"
	camerasvc "github.com/trezcool/presence/services/camera"
	emailsvc "github.com/trezcool/presence/services/email"
	logsvc "github.com/trezcool/presence/services/logger"
	inmemdb "github.com/trezcool/presence/storage/database/inmem"
)

// DBLoggerParam is the logger of the storage layer.
type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// ServerDepsParam gathers the services exposed by the API.
type ServerDepsParam struct {
	dig.In

	Validate   *validator.Validate
	Translator ut.Translator
	Users      *user.Directory
	Clock      *session.Clock
	Gate       *gate.Gate
	Captures   *capture.Manager
	Attendance *attendance.Service
	Geofence   *monitor.GeofenceTracker
	Behavior   *monitor.BehaviorMonitor
	Presence   *monitor.PresenceTracker
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

// newAttendanceRepository opens the in-memory store and loads the demo history.
func newAttendanceRepository(loggerParam DBLoggerParam) attendance.Repository {
	repo := inmemdb.NewAttendanceRepository(inmemdb.Open())
	if err := inmemdb.Seed(context.Background(), repo); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("seeding database: %v", err), err)
	}
	return repo
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	core.ParseEmailTemplates(appfs.FS, conf, logger)
	if conf.Debug {
		return emailsvc.NewConsoleService(log.New(os.Stdout, "EMAIL : ", log.LstdFlags), conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newAttendanceService(repo attendance.Repository, users *user.Directory, mailer core.EmailService, logger core.Logger) *attendance.Service {
	return attendance.NewService(repo, users, mailer, logger)
}

func newTimetable(conf *core.Config, validate *validator.Validate, logger core.Logger) timetable.Timetable {
	if len(conf.Timetable) == 0 {
		return timetable.Default()
	}
	tt, err := timetable.FromConfig(validate, conf.Timetable)
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading timetable: %v", err), err)
	}
	return tt
}

func newClock(conf *core.Config, tt timetable.Timetable) *session.Clock {
	return session.NewClock(tt, conf.Clock.TickInterval)
}

func newRand() core.Rand {
	return core.NewRand(0)
}

func newCaptureManager(
	conf *core.Config,
	cameras *camerasvc.Pool,
	g *gate.Gate,
	svc *attendance.Service,
	rnd core.Rand,
	logger core.Logger,
) *capture.Manager {
	return capture.NewManager(cameras, g, svc, rnd, logger, capture.OptionsFromConfig(conf))
}

func newCameraPool() *camerasvc.Pool {
	return camerasvc.NewPool(nil)
}

func newGeofenceTracker(conf *core.Config, rnd core.Rand) *monitor.GeofenceTracker {
	return monitor.NewGeofenceTracker(conf.Monitor, rnd)
}

func newBehaviorMonitor(conf *core.Config, rnd core.Rand) *monitor.BehaviorMonitor {
	return monitor.NewBehaviorMonitor(conf.Monitor, rnd)
}

func newPresenceTracker(conf *core.Config, svc *attendance.Service, logger core.Logger) *monitor.PresenceTracker {
	return monitor.NewPresenceTracker(conf.Monitor, svc, logger)
}

func newServer(conf *core.Config, logger core.Logger, p ServerDepsParam) *echoapi.Server {
	return echoapi.NewServer(conf, logger, echoapi.Deps{
		Validate:   p.Validate,
		Translator: p.Translator,
		Users:      p.Users,
		Clock:      p.Clock,
		Gate:       p.Gate,
		Captures:   p.Captures,
		Attendance: p.Attendance,
		Geofence:   p.Geofence,
		Behavior:   p.Behavior,
		Presence:   p.Presence,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newRand))
	must(c.Provide(user.DefaultDirectory))
	must(c.Provide(newAttendanceRepository))
	must(c.Provide(newEmailService))
	must(c.Provide(newAttendanceService))
	must(c.Provide(newTimetable))
	must(c.Provide(newClock))
	must(c.Provide(gate.New))
	must(c.Provide(newCameraPool))
	must(c.Provide(newCaptureManager))
	must(c.Provide(newGeofenceTracker))
	must(c.Provide(newBehaviorMonitor))
	must(c.Provide(newPresenceTracker))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
