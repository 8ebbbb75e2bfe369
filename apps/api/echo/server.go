package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/attendance"
	"github.com/trezcool/presence/core/capture"
	"github.com/trezcool/presence/core/gate"
	"github.com/trezcool/presence/core/monitor"
	"github.com/trezcool/presence/core/session"
	"github.com/trezcool/presence/core/user"
)

type (
	// Deps holds the services exposed by the API.
	Deps struct {
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

	Server struct {
		conf     *core.Config
		logger   core.Logger
		deps     Deps
		auth     *authenticator
		events   *hub
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(conf *core.Config, logger core.Logger, deps Deps) *Server {
	s := &Server{
		conf:     conf,
		logger:   logger,
		deps:     deps,
		auth:     newAuthenticator(conf),
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.events = newHub(s.auth, conf.FrontendBaseURL, deps, logger)
	s.setup()
	return s
}

func (s *Server) setup() {
	debug := s.conf.Debug

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{s.conf.FrontendBaseURL},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.config)

	registerUserAPI(v1, jwt, s.auth, s.deps)
	registerSessionAPI(v1, jwt, s.deps)
	registerGateAPI(v1, jwt, s.auth, s.conf.Gate, s.deps)
	registerCaptureAPI(v1, jwt, s.auth, s.deps)
	registerAttendanceAPI(v1, jwt, s.auth, s.deps)
	registerMonitorAPI(v1, jwt, s.auth, s.deps)
	v1.GET("/events", s.events.serve)
}

func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors receives the error that stopped the server.
func (s *Server) Errors() <-chan error { return s.errors }

// ShutdownSignal receives interrupts and internal shutdown requests.
func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

// Shutdown closes the event stream and gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.events.close()
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	s.events.close()
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
