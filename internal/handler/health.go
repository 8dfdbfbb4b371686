package handler

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports liveness and database reachability.
func Health(db *sql.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := reqCtx(c)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{
				"status":   "error",
				"database": "down",
			})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"status":   "success",
			"database": "up",
		})
	}
}
