package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/presence/core/monitor"
	"github.com/trezcool/presence/core/user"
)

type monitorApi struct {
	auth     *authenticator
	geofence *monitor.GeofenceTracker
	behavior *monitor.BehaviorMonitor
	presence *monitor.PresenceTracker
}

func registerMonitorAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps Deps) {
	api := monitorApi{
		auth:     auth,
		geofence: deps.Geofence,
		behavior: deps.Behavior,
		presence: deps.Presence,
	}

	mg := g.Group("/monitor", jwt)
	mg.GET("/geofence", api.geofenceSnapshot, roleMiddleware(auth, user.RoleAdmin, user.RoleTeacher))
	mg.GET("/behavior", api.behaviorSnapshot, roleMiddleware(auth, user.RoleAdmin, user.RoleTeacher, user.RoleStudent))

	pg := mg.Group("/presence", roleMiddleware(auth, user.RoleStudent))
	pg.GET("", api.presenceSnapshot)
	pg.POST("/check", api.checkLocation)
	pg.POST("/leave", api.leave)
}

func (api *monitorApi) geofenceSnapshot(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.geofence.Snapshot())
}

func (api *monitorApi) behaviorSnapshot(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.behavior.Snapshot())
}

func (api *monitorApi) rollNo(ctx echo.Context) (string, error) {
	claims, err := api.auth.contextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	if claims.RollNo == "" {
		return "", errHttpForbidden
	}
	return claims.RollNo, nil
}

func (api *monitorApi) presenceSnapshot(ctx echo.Context) error {
	rollNo, err := api.rollNo(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.presence.Snapshot(rollNo))
}

func (api *monitorApi) checkLocation(ctx echo.Context) error {
	rollNo, err := api.rollNo(ctx)
	if err != nil {
		return err
	}
	snap, err := api.presence.CheckLocation(ctx.Request().Context(), rollNo)
	if err != nil {
		return errors.Wrap(err, "checking location")
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *monitorApi) leave(ctx echo.Context) error {
	rollNo, err := api.rollNo(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.presence.Leave(rollNo))
}
