package console

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/leadlist"
	"github.com/trezcool/admissions/core/pipeline"
	"github.com/trezcool/admissions/core/report"
	"github.com/trezcool/admissions/core/user"
)

var (
	errBadRequest = echo.NewHTTPError(http.StatusBadRequest, "invalid request body")

	notFoundErrs = []error{
		lead.ErrNotFound,
		user.ErrNotFound,
		user.ErrRoleNotFound,
		user.ErrIntegrationNotFound,
		report.ErrNotFound,
		pipeline.ErrLeadNotFound,
	}
	badRequestErrs = []error{
		pipeline.ErrUnknownColumn,
		lead.ErrInvalidStatus,
		leadlist.ErrUnknownSortField,
	}
)

func oneOf(err error, errs []error) bool {
	for _, e := range errs {
		if err == e {
			return true
		}
	}
	return false
}

// wantsHTML is true for browser navigations, which get redirects instead of JSON errors.
func wantsHTML(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}

// newHTTPErrorHandler maps domain errors to responses:
// 401 signs the session out and sends the browser to /login, 403 is a denied view state,
// validation errors are 400 with per-field messages, upstream failures are 502.
func newHTTPErrorHandler(deps *Deps, sessions *SessionStore) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = core.TranslateErrors(origErr, deps.Translator)
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.APIError:
			code = http.StatusBadGateway
			message = origErr.Error()
		case *core.TransportError:
			code = http.StatusBadGateway
			message = "the admissions API is unreachable"
			deps.Logger.Warn("upstream unreachable", err)
		default:
			switch {
			case cause == core.ErrSessionExpired:
				signOut(c, sessions)
				if wantsHTML(c) {
					if rErr := c.Redirect(http.StatusSeeOther, "/login"); rErr != nil {
						c.Echo().Logger.Error(rErr)
					}
					return
				}
				code = http.StatusUnauthorized
				message = echo.Map{"error": "session expired", "redirect": "/login"}
			case cause == core.ErrForbidden:
				code = http.StatusForbidden
				message = echo.Map{"error": err.Error(), "denied": true}
			case oneOf(cause, notFoundErrs):
				code = http.StatusNotFound
				message = cause.Error()
			case oneOf(cause, badRequestErrs):
				code = http.StatusBadRequest
				message = err.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				args := []interface{}{errors.Wrap(err, msg)}
				if s := session(c); s != nil {
					args = append(args, s.Profile)
				}
				deps.Logger.Error(msg, args...)
			}
		}

		if c.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !c.Response().Committed {
			if c.Request().Method == http.MethodHead { // Issue #608
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, message)
			}
			if err != nil {
				c.Echo().Logger.Error(err)
			}
		}
	}
}

func signOut(c echo.Context, sessions *SessionStore) {
	if s := session(c); s != nil {
		sessions.Delete(s.ID)
	} else if ck, err := c.Cookie(cookieName); err == nil {
		if id, err := sessions.sessionID(ck.Value); err == nil {
			sessions.Delete(id)
		}
	}
	clearCookie(c)
}
