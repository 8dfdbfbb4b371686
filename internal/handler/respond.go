package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-api/internal/httperr"
)

// All success responses share the {status, data} envelope; list responses
// carry the result count alongside.  Failures are rendered centrally by the
// httperr handler.

func respond(c echo.Context, code int, data any) error {
	return c.JSON(code, echo.Map{"status": "success", "data": data})
}

func respondList(c echo.Context, results int, data any) error {
	return c.JSON(200, echo.Map{"status": "success", "results": results, "data": data})
}

func respondMessage(c echo.Context, code int, msg string) error {
	return c.JSON(code, echo.Map{"status": "success", "message": msg})
}

// reqCtx bounds storage calls to five seconds, matching the DB pool's
// expectations under load.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// paramID parses the numeric :id (or other named) path parameter.
func paramID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, httperr.BadRequest("invalid id")
	}
	return id, nil
}
