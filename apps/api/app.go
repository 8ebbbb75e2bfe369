package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"sync"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/presence/apps/api/echo"
	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/capture"
	"github.com/trezcool/presence/core/monitor"
	"github.com/trezcool/presence/core/session"
)

// runner is a background loop stopped by cancelling its context.
type runner interface {
	Run(ctx context.Context) error
}

type app struct {
	conf     *core.Config
	logger   core.Logger
	server   *echoapi.Server
	captures *capture.Manager
	loops    map[string]runner
}

func newApp(
	conf *core.Config,
	logger core.Logger,
	server *echoapi.Server,
	clock *session.Clock,
	captures *capture.Manager,
	geofence *monitor.GeofenceTracker,
	behavior *monitor.BehaviorMonitor,
	presence *monitor.PresenceTracker,
) *app {
	return &app{
		conf:     conf,
		logger:   logger,
		server:   server,
		captures: captures,
		loops: map[string]runner{
			"clock":    clock,
			"geofence": geofence,
			"behavior": behavior,
			"presence": presence,
		},
	}
}

// run blocks until the server stops. Cameras are released before it returns.
func (a *app) run() error {
	// =========================================================================
	// Initialize App

	a.logger.Info(fmt.Sprintf("Application initializing : version %q", a.conf.Build))
	defer a.logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(a.conf.Build)
	expvar.NewString("env").Set(a.conf.Env)

	go func() {
		if err := http.ListenAndServe(a.conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			a.logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Clock & Monitors

	ctx, cancel := context.WithCancel(context.Background())
	loopErrors := make(chan error, len(a.loops))
	var wg sync.WaitGroup
	for name, loop := range a.loops {
		wg.Add(1)
		go func(name string, loop runner) {
			defer wg.Done()
			if err := loop.Run(ctx); err != nil && err != context.Canceled {
				loopErrors <- core.NewShutdownError(name+" stopped", err)
			}
		}(name, loop)
	}
	defer func() {
		cancel()
		wg.Wait()
		if err := a.captures.Close(); err != nil {
			a.logger.Error(fmt.Sprintf("releasing cameras: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	go func() {
		a.server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-a.server.Errors():
		a.logger.Error(fmt.Sprintf("server error: %v", err), err)
		a.shutdown()
		return errors.Wrap(err, "server error")

	case err := <-loopErrors:
		a.logger.Error(fmt.Sprintf("%v: Start shutdown...", err), err)
		a.shutdown()
		return err

	case sig := <-a.server.ShutdownSignal():
		a.logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		a.shutdown()
		return nil
	}
}

func (a *app) shutdown() {
	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), a.conf.Server.ShutdownTimeout)
	defer cancel()

	// asking listener to shut down and shed load
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

		if err = a.server.Close(); err != nil {
			a.logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
		}
	}
}
