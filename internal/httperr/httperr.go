// Package httperr separates operational errors (expected, user-facing: bad
// credentials, missing resources, invalid tokens) from programming or
// infrastructure failures.  Operational errors carry an HTTP status and are
// rendered verbatim; everything else is logged and collapsed into a generic
// 500 outside development.
package httperr

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error is an operational error: safe to show to the client as-is.
type Error struct {
	Code    int    // HTTP status code
	Message string // user-facing message
}

func (e *Error) Error() string { return e.Message }

// New builds an operational error with the given status and message.
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Convenience constructors for the common statuses.

func BadRequest(msg string) *Error   { return New(http.StatusBadRequest, msg) }
func Unauthorized(msg string) *Error { return New(http.StatusUnauthorized, msg) }
func Forbidden(msg string) *Error    { return New(http.StatusForbidden, msg) }
func NotFound(msg string) *Error     { return New(http.StatusNotFound, msg) }
func Conflict(msg string) *Error     { return New(http.StatusConflict, msg) }

// envelope matches the API-wide response shape: status is "fail" for 4xx
// and "error" for 5xx.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func statusWord(code int) string {
	if code >= 500 {
		return "error"
	}
	return "fail"
}

// Handler returns the central echo.HTTPErrorHandler.  Operational errors and
// echo's own HTTP errors pass through with their message; anything else is
// logged and hidden behind a generic 500 unless env is "dev".
func Handler(env string) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := "Something went very wrong!"

		var opErr *Error
		var echoErr *echo.HTTPError
		switch {
		case errors.As(err, &opErr):
			code = opErr.Code
			msg = opErr.Message
		case errors.As(err, &echoErr):
			code = echoErr.Code
			if s, ok := echoErr.Message.(string); ok {
				msg = s
			} else {
				msg = http.StatusText(code)
			}
		default:
			log.Printf("unexpected error: %v (path=%s)", err, c.Path())
			if env == "dev" {
				msg = err.Error()
			}
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, envelope{Status: statusWord(code), Message: msg})
	}
}
