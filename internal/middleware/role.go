package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context
)

// RequireRole returns a middleware function that enforces that the
// authenticated caller holds at least one of the specified roles.  Roles
// come from the access token's embedded claims, so this check is cheap
// but coarse; use RequirePermissions when the decision must reflect the
// database.  It assumes Authenticate has already stored claims in the
// context.  Missing claims or an empty intersection abort the request
// with 403; the missing role is named only in logs, never to the client.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	// Build a set of allowed roles for constant-time lookups.
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := CurrentClaims(c)
			if claims == nil {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			for _, r := range claims.Roles {
				if allowed[r] {
					return next(c)
				}
			}
			c.Logger().Warnf("role check failed for user %d: want one of %v", claims.UserID, roles)
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}
}
