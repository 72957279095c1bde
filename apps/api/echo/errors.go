package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/completion"
	"github.com/trezcool/kujifunza/core/course"
	"github.com/trezcool/kujifunza/core/enrolment"
	"github.com/trezcool/kujifunza/core/lesson"
	"github.com/trezcool/kujifunza/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// domainErrorCodes maps the sentinel errors of the core packages to their HTTP status.
var domainErrorCodes = map[error]int{
	user.ErrNotFound: http.StatusNotFound,

	lesson.ErrNotFound:       http.StatusNotFound,
	lesson.ErrCourseNotFound: http.StatusNotFound,
	lesson.ErrNotEnrolled:    http.StatusForbidden,

	course.ErrNotFound:      http.StatusNotFound,
	course.ErrHasEnrolments: http.StatusConflict,

	completion.ErrLessonNotAttached: http.StatusBadRequest,
	completion.ErrAlreadyCompleted:  http.StatusConflict,
	completion.ErrLessonArchived:    http.StatusConflict,

	enrolment.ErrNotEnrolled:              http.StatusForbidden,
	enrolment.ErrAlreadyEnrolled:          http.StatusConflict,
	enrolment.ErrClassroomAlreadySelected: http.StatusConflict,
	enrolment.ErrClassroomFull:            http.StatusConflict,
	enrolment.ErrClassroomInactive:        http.StatusConflict,
	enrolment.ErrClassroomNotFound:        http.StatusNotFound,
	enrolment.ErrClassroomHasStudents:     http.StatusConflict,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			code = http.StatusBadRequest
			if flds := origErr.FieldMap(); flds != nil {
				message = flds
			} else {
				message = origErr.Error()
			}
		case *lesson.ClassroomRequiredError:
			code = http.StatusForbidden
			message = echo.Map{
				"error":                        origErr.Error(),
				"requires_classroom_selection": true,
				"lesson_title":                 origErr.LessonTitle,
			}
		case *lesson.PrerequisitesUnmetError:
			code = http.StatusForbidden
			message = echo.Map{
				"error":                 origErr.Error(),
				"prerequisites_not_met": true,
				"unmet_prerequisites":   origErr.Unmet,
				"all_prerequisites":     origErr.All,
				"lesson_title":          origErr.LessonTitle,
			}
		default:
			if c, ok := domainErrorCode(origErr); ok {
				code = c
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

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

func domainErrorCode(err error) (int, bool) {
	for target, code := range domainErrorCodes {
		if errors.Is(err, target) {
			return code, true
		}
	}
	return 0, false
}
