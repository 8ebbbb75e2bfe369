package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/gate"
	"github.com/trezcool/presence/core/user"
)

type gateApi struct {
	gate        *gate.Gate
	autoDisable time.Duration
	validate    *validator.Validate
}

func registerGateAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, conf core.GateConfig, deps Deps) {
	api := gateApi{gate: deps.Gate, autoDisable: conf.AutoDisable, validate: deps.Validate}

	gg := g.Group("/self-attendance", jwt)
	gg.GET("", api.retrieve)
	gg.PUT("", api.update, roleMiddleware(auth, user.RoleTeacher)) // single writer
}

func (api *gateApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, newGateResponse(api.gate))
}

// update opens or closes the gate. Opening it starts the auto-disable countdown:
// auto_disable_minutes when given (0 disables the countdown), the configured delay otherwise.
func (api *gateApi) update(ctx echo.Context) error {
	var data GateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GateRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	switch {
	case !*data.Enabled:
		api.gate.SetEnabled(false)
	case data.AutoDisableMinutes != nil:
		api.gate.EnableFor(time.Duration(*data.AutoDisableMinutes) * time.Minute)
	default:
		api.gate.EnableFor(api.autoDisable)
	}
	return ctx.JSON(http.StatusOK, newGateResponse(api.gate))
}

type (
	GateRequest struct {
		Enabled            *bool `json:"enabled" validate:"required"`
		AutoDisableMinutes *int  `json:"auto_disable_minutes" validate:"omitempty,min=0,max=1440"`
	}

	GateResponse struct {
		gate.State
		RemainingSeconds int `json:"remaining_seconds"`
	}
)

func newGateResponse(g *gate.Gate) GateResponse {
	return GateResponse{
		State:            g.State(),
		RemainingSeconds: int(g.Remaining().Round(time.Second) / time.Second),
	}
}
