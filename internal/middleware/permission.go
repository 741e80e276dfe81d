package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// PermissionSource resolves the union of permission names granted by a
// user's roles.  Satisfied by repository.RoleRepo.
type PermissionSource interface {
	PermissionsForUser(ctx context.Context, userID uint64) (map[string]struct{}, error)
}

// RequirePermissions enforces that the caller's roles grant every listed
// permission.  Unlike RequireRole this resolves permissions from the
// database on each request, so revoking a permission takes effect
// immediately instead of waiting for the access token to expire.  That
// asymmetry is deliberate: role checks are fast and coarse, permission
// checks are authoritative and cost a lookup.
func RequirePermissions(src PermissionSource, perms ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := CurrentClaims(c)
			if claims == nil {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
			defer cancel()
			granted, err := src.PermissionsForUser(ctx, claims.UserID)
			if err != nil {
				// A failed lookup fails closed: we never grant on a guess.
				c.Logger().Errorf("permission lookup failed for user %d: %v", claims.UserID, err)
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			for _, p := range perms {
				if _, ok := granted[p]; !ok {
					c.Logger().Warnf("permission check failed for user %d: missing %s", claims.UserID, p)
					return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
				}
			}
			return next(c)
		}
	}
}
