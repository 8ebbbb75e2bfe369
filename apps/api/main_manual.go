package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

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

func startManual() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up validators
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up DB
	repo := inmemdb.NewAttendanceRepository(inmemdb.Open())
	if err := inmemdb.Seed(context.Background(), repo); err != nil {
		dbLogger.Fatal(fmt.Sprintf("seeding database: %v", err), err)
	}

	// set up services
	core.ParseEmailTemplates(appfs.FS, conf, logger)
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(log.New(os.Stdout, "EMAIL : ", log.LstdFlags), conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	tt := timetable.Default()
	if len(conf.Timetable) > 0 {
		var err error
		if tt, err = timetable.FromConfig(validate, conf.Timetable); err != nil {
			logger.Fatal(fmt.Sprintf("loading timetable: %v", err), err)
		}
	}

	rnd := core.NewRand(0)
	users := user.DefaultDirectory()
	attendanceSvc := attendance.NewService(repo, users, mailSvc, logger)
	clock := session.NewClock(tt, conf.Clock.TickInterval)
	g := gate.New()
	captures := capture.NewManager(camerasvc.NewPool(nil), g, attendanceSvc, rnd, logger, capture.OptionsFromConfig(conf))
	geofence := monitor.NewGeofenceTracker(conf.Monitor, rnd)
	behavior := monitor.NewBehaviorMonitor(conf.Monitor, rnd)
	presence := monitor.NewPresenceTracker(conf.Monitor, attendanceSvc, logger)

	server := echoapi.NewServer(conf, logger, echoapi.Deps{
		Validate:   validate,
		Translator: translator,
		Users:      users,
		Clock:      clock,
		Gate:       g,
		Captures:   captures,
		Attendance: attendanceSvc,
		Geofence:   geofence,
		Behavior:   behavior,
		Presence:   presence,
	})

	must(newApp(conf, logger, server, clock, captures, geofence, behavior, presence).run())
}
