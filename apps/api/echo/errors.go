package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/capture"
	"github.com/trezcool/presence/core/timetable"
	"github.com/trezcool/presence/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message := httpError(err, translator)

		if code == http.StatusInternalServerError {
			msg := http.StatusText(code)
			args := []interface{}{errors.Wrap(err, msg)}
			if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
				args = append(args, usr)
			}
			logger.Error(msg, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// httpError maps err to a status code and a response message.
func httpError(err error, translator ut.Translator) (int, interface{}) {
	var (
		httpErr *echo.HTTPError
		vErrs   validator.ValidationErrors
		appErr  *core.ValidationError
		unavail *capture.UnavailableError
	)

	switch {
	case errors.As(err, &httpErr):
		if httpErr == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, httpErr.Message
		}
		if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
			httpErr = herr
		}
		return httpErr.Code, httpErr.Message
	case errors.As(err, &vErrs):
		return http.StatusBadRequest, core.FieldMap(core.FieldErrors(vErrs, translator))
	case errors.As(err, &appErr):
		if len(appErr.Fields) > 0 {
			return http.StatusBadRequest, appErr.FieldMap()
		}
		return http.StatusBadRequest, appErr.Error()
	case errors.As(err, &unavail):
		return http.StatusServiceUnavailable, capture.UnavailableMessage
	case errors.Is(err, timetable.ErrInvalidMinute), errors.Is(err, timetable.ErrInvalidClock):
		return http.StatusBadRequest, errors.Cause(err).Error()
	case errors.Is(err, capture.ErrGateClosed), errors.Is(err, capture.ErrInvalidTransition),
		errors.Is(err, capture.ErrAborted):
		return http.StatusConflict, errors.Cause(err).Error()
	case errors.Is(err, capture.ErrClosed):
		return http.StatusServiceUnavailable, errors.Cause(err).Error()
	case errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, user.ErrUnknownRole):
		return http.StatusBadRequest, errors.Cause(err).Error()
	default: // any other error is a server error
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}
