package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/presence/apps/api/echo"
	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/attendance"
	"github.com/trezcool/presence/core/capture"
	"github.com/trezcool/presence/core/gate"
	"github.com/trezcool/presence/core/monitor"
	"github.com/trezcool/presence/core/session"
	"github.com/trezcool/presence/core/timetable"
	"github.com/trezcool/presence/core/user"
	camerasvc "github.com/trezcool/presence/services/camera"
	inmemdb "github.com/trezcool/presence/storage/database/inmem"
	testutil "github.com/trezcool/presence/tests"
)

func TestApp_run_serverErrorReleasesCameras(t *testing.T) {
	conf := &core.Config{
		Env:      "TEST",
		TestMode: true,
		AppName:  "Presence",
		Server: core.ServerConfig{
			Host:            "127.0.0.1:-1", // cannot listen
			DebugHost:       "127.0.0.1:0",
			DisableReqLogs:  true,
			ShutdownTimeout: time.Second,
		},
		Monitor: core.MonitorConfig{
			GeofenceInterval: time.Hour,
			BehaviorInterval: time.Hour,
			PresenceInterval: time.Hour,
		},
	}
	logger := new(testutil.Logger)
	validate, translator := testutil.NewValidator()
	user.InitValidators(validate, translator)

	users := user.DefaultDirectory()
	attendanceSvc := attendance.NewService(inmemdb.NewAttendanceRepository(inmemdb.Open()), users, nil, logger)
	clock := session.NewClock(timetable.Default(), time.Second)
	g := gate.New()
	cameras := camerasvc.NewPool(nil)
	captures := capture.NewManager(cameras, g, attendanceSvc, core.NewRand(1), logger, capture.DefaultOptions())
	rnd := &testutil.SeqRand{Values: []float64{0.5}, Ints: []int{1}}
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

	sim, err := captures.Get("CS21012")
	require.NoError(t, err)
	require.NoError(t, sim.Start(context.Background()))
	require.True(t, cameras.Get("CS21012").Held())

	done := make(chan error, 1)
	go func() {
		done <- newApp(conf, logger, server, clock, captures, geofence, behavior, presence).run()
	}()

	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after the server failed")
	}
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error")
	assert.False(t, cameras.Get("CS21012").Held())
}
