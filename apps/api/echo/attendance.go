package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/attendance"
	"github.com/trezcool/presence/core/user"
)

type attendanceApi struct {
	auth     *authenticator
	users    *user.Directory
	svc      *attendance.Service
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps Deps) {
	api := attendanceApi{
		auth:     auth,
		users:    deps.Users,
		svc:      deps.Attendance,
		validate: deps.Validate,
	}

	ag := g.Group("/attendance/:subject", jwt, api.subjectMiddleware)
	ag.GET("", api.history)
	ag.POST("", api.mark, roleMiddleware(auth, user.RoleTeacher))
}

// subjectMiddleware resolves :subject to a student the context user may see.
func (api *attendanceApi) subjectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctxUsr, err := api.auth.contextUser(ctx, api.users)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		subject := core.CleanString(ctx.Param("subject"))
		if !ctxUsr.CanViewAttendance(subject) {
			return errHttpForbidden
		}
		student, err := api.users.GetByRollNo(subject)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding student by roll number")
		}
		ctx.Set("object", student)
		return next(ctx)
	}
}

func (api *attendanceApi) history(ctx echo.Context) error {
	student, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.New("student not found in echo.Context")
	}

	recent := attendance.DefaultRecent
	if v := ctx.QueryParam("recent"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return core.NewFieldError("recent", "recent must be a positive integer")
		}
		recent = n
	}

	reqCtx := ctx.Request().Context()
	records, err := api.svc.History(reqCtx, student.RollNo)
	if err != nil {
		return errors.Wrap(err, "querying attendance history")
	}
	sum, err := api.svc.Summary(reqCtx, student.RollNo, recent)
	if err != nil {
		return errors.Wrap(err, "summarizing attendance")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, HistoryResponse{Student: student, Summary: sum, Records: records})
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	student, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.New("student not found in echo.Context")
	}

	var data attendance.MarkRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkRecord")
	}
	data.Status = core.CleanString(data.Status, true /* lower */)
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	rec, err := api.svc.MarkManual(ctx.Request().Context(), student.RollNo, attendance.Status(data.Status))
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

type HistoryResponse struct {
	Student user.User           `json:"student"`
	Summary attendance.Summary  `json:"summary"`
	Records []attendance.Record `json:"records"`
}
