package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-api/internal/httperr"
)

// RestrictTo returns a middleware enforcing that the authenticated user
// holds one of the given roles.  It is a pure allow-list check over the
// user Protect attached to the context, so it must always run after
// Protect.  Disallowed roles are rejected before any handler or storage
// code runs.
func RestrictTo(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := CurrentUser(c)
			if !ok || !allowed[u.Role] {
				return httperr.Forbidden("You do not have permission to perform this action")
			}
			return next(c)
		}
	}
}
