package echoapi

import (
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/presence/core/capture"
	"github.com/trezcool/presence/core/user"
)

type captureApi struct {
	auth     *authenticator
	captures *capture.Manager
}

// registerCaptureAPI exposes the self-attendance capture of the student holding the token.
func registerCaptureAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps Deps) {
	api := captureApi{auth: auth, captures: deps.Captures}

	cg := g.Group("/capture", jwt, roleMiddleware(auth, user.RoleStudent))
	cg.GET("", api.retrieve)
	cg.GET("/still", api.still)
	cg.POST("/start", api.start)
	cg.POST("/recognize", api.recognize)
	cg.POST("/stop", api.stop)
	cg.POST("/reset", api.reset)
}

func (api *captureApi) simulator(ctx echo.Context) (*capture.Simulator, error) {
	claims, err := api.auth.contextClaims(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context claims")
	}
	if claims.RollNo == "" {
		return nil, errHttpForbidden
	}
	sim, err := api.captures.Get(claims.RollNo)
	return sim, errors.Wrap(err, "getting capture simulator")
}

func (api *captureApi) retrieve(ctx echo.Context) error {
	claims, err := api.auth.contextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	return ctx.JSON(http.StatusOK, api.captures.Status(claims.RollNo))
}

// still serves the last captured frame as a PNG.
func (api *captureApi) still(ctx echo.Context) error {
	sim, err := api.simulator(ctx)
	if err != nil {
		return err
	}
	img, ok := sim.Still()
	if !ok {
		return errHttpNotFound
	}
	ctx.Response().Header().Set(echo.HeaderContentType, "image/png")
	ctx.Response().WriteHeader(http.StatusOK)
	return imaging.Encode(ctx.Response(), img, imaging.PNG)
}

func (api *captureApi) start(ctx echo.Context) error {
	sim, err := api.simulator(ctx)
	if err != nil {
		return err
	}
	if err = sim.Start(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "starting camera")
	}
	return ctx.JSON(http.StatusOK, sim.Status())
}

// recognize starts a recognition attempt and returns at once; progress is streamed on /events.
// With wait=true it returns the outcome instead.
func (api *captureApi) recognize(ctx echo.Context) error {
	sim, err := api.simulator(ctx)
	if err != nil {
		return err
	}
	if ctx.QueryParam("wait") == "true" {
		st, err := sim.Recognize(ctx.Request().Context())
		if err != nil {
			return errors.Wrap(err, "recognizing")
		}
		return ctx.JSON(http.StatusOK, st)
	}
	if err = sim.RecognizeAsync(); err != nil {
		return errors.Wrap(err, "starting recognition")
	}
	return ctx.JSON(http.StatusAccepted, sim.Status())
}

func (api *captureApi) stop(ctx echo.Context) error {
	sim, err := api.simulator(ctx)
	if err != nil {
		return err
	}
	if err = sim.Stop(); err != nil {
		return errors.Wrap(err, "stopping camera")
	}
	return ctx.JSON(http.StatusOK, sim.Status())
}

func (api *captureApi) reset(ctx echo.Context) error {
	sim, err := api.simulator(ctx)
	if err != nil {
		return err
	}
	if err = sim.Reset(); err != nil {
		return errors.Wrap(err, "resetting capture")
	}
	return ctx.JSON(http.StatusOK, sim.Status())
}
