package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/presence/core/session"
	"github.com/trezcool/presence/core/timetable"
)

type sessionApi struct {
	clock    *session.Clock
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps Deps) {
	api := sessionApi{clock: deps.Clock, validate: deps.Validate}

	g.GET("/timetable", api.timetable, jwt)
	g.GET("/session", api.session, jwt)
}

func (api *sessionApi) timetable(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.clock.Timetable().Periods())
}

// session resolves the session state now, or at the `at` time of day.
func (api *sessionApi) session(ctx echo.Context) error {
	var query SessionQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to SessionQuery")
	}
	if err := api.validate.Struct(query); err != nil {
		return err
	}

	tick := api.clock.Snapshot()
	minute := tick.Minute()
	if query.At != "" {
		var err error
		if minute, err = timetable.ParseClock(query.At); err != nil {
			return err
		}
		state, err := api.clock.At(minute)
		if err != nil {
			return err
		}
		tick = session.Tick{Time: tick.Time, State: state}
	}

	return ctx.JSON(http.StatusOK, newSessionResponse(api.clock.Timetable(), minute, tick.State, api.clock.Paused()))
}

type (
	SessionQuery struct {
		At string `query:"at" json:"at" validate:"omitempty,clock"`
	}

	SessionResponse struct {
		Time            string                 `json:"time"`
		State           timetable.SessionState `json:"state"`
		Period          *timetable.Period      `json:"period"`
		NextPeriod      *timetable.Period      `json:"next_period"`
		ProgressPercent int                    `json:"progress_percent"`
		Remaining       string                 `json:"remaining"`
		Paused          bool                   `json:"paused"`
		ServerTime      time.Time              `json:"server_time"`
	}
)

func newSessionResponse(tt timetable.Timetable, minute int, state timetable.SessionState, paused bool) SessionResponse {
	resp := SessionResponse{
		Time:       timetable.FormatClock(minute),
		State:      state,
		Paused:     paused,
		ServerTime: time.Now(),
	}
	if period, ok := tt.Current(state); ok {
		resp.Period = &period
		resp.ProgressPercent = timetable.ProgressPercent(period, state)
		resp.Remaining = timetable.FormatRemaining(state.MinutesRemaining)
	}
	if next, ok := tt.Next(state); ok {
		resp.NextPeriod = &next
	}
	return resp
}
