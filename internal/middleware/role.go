package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole enforces that the authenticated user holds one of the given
// roles. It runs after Authenticate, never before: a request that fails
// authentication must see 401, not 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := CurrentUser(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success": false, "message": "not authenticated"})
			}
			if !allowed[u.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{
					"success": false, "message": "insufficient permissions"})
			}
			return next(c)
		}
	}
}
