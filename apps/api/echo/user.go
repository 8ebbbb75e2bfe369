package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/user"
)

type userApi struct {
	auth     *authenticator
	users    *user.Directory
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps Deps) {
	api := userApi{
		auth:     auth,
		users:    deps.Users,
		validate: deps.Validate,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.login)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.GET("/me", api.me)
	ag.GET("/students", api.queryStudents, roleMiddleware(auth, user.RoleAdmin, user.RoleTeacher))
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data user.LoginCredentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginCredentials")
	}
	data.Email = core.CleanString(data.Email, true /* lower */)
	data.Role = core.CleanString(data.Role, true /* lower */)
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	usr, err := api.users.Login(data.Email, user.Role(data.Role))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return errAuthenticationFailed
		}
		return errors.Wrap(err, "logging in")
	}
	token, err := api.auth.generateToken(api.auth.claimsFor(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	dash, err := user.DashboardFor(usr.Role)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, MeResponse{User: usr, Dashboard: dash})
}

func (api *userApi) queryStudents(ctx echo.Context) error {
	students := api.users.Students()
	if students == nil {
		students = []user.User{}
	}
	return ctx.JSON(http.StatusOK, students)
}

type (
	LoginResponse struct {
		Token string `json:"token"`
	}

	MeResponse struct {
		User      user.User      `json:"user"`
		Dashboard user.Dashboard `json:"dashboard"`
	}
)
