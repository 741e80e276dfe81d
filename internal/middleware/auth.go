package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/finbook/finbook-api/internal/utils"
)

// ClaimsKey is the context key under which Authenticate stores the decoded
// access-token claims.  Handlers and downstream middleware retrieve them
// via c.Get(ClaimsKey).
const ClaimsKey = "claims"

// Authenticate returns an Echo middleware that validates a Bearer access
// token and injects the decoded claims into the request context.  Missing,
// malformed, expired and badly-signed tokens all produce the same 401 so a
// caller cannot probe which check failed.
func Authenticate(issuer *utils.TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			claims := issuer.VerifyAccess(strings.TrimPrefix(auth, "Bearer "))
			if claims == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			c.Set(ClaimsKey, claims)
			return next(c)
		}
	}
}

// CurrentClaims fetches the claims stored by Authenticate, or nil when the
// request is unauthenticated.
func CurrentClaims(c echo.Context) *utils.Claims {
	if v, ok := c.Get(ClaimsKey).(*utils.Claims); ok {
		return v
	}
	return nil
}
