package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/finbook/finbook-api/internal/handler"
	"github.com/finbook/finbook-api/internal/metrics"
	"github.com/finbook/finbook-api/internal/middleware"
	"github.com/finbook/finbook-api/internal/utils"
)

// Limiters carries the three limiter profiles the routes are wired with.
type Limiters struct {
	Public    *middleware.RateLimiter
	Sensitive *middleware.RateLimiter
	General   *middleware.RateLimiter
}

// RegisterHealth registers the monitoring endpoints.  These bypass every
// limiter so load balancers and scrapers are never throttled.
func RegisterHealth(e *echo.Echo, s *handler.StatusHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/healthz/status", s.Status)
	e.GET("/metrics", metrics.Handler())
}

// RegisterAuth registers all authentication-related routes and applies
// the necessary middleware.  Credential endpoints (register, login,
// reset, verify) carry the sensitive limiter; the refresh endpoint sits
// on the public profile since it is hit routinely by well-behaved
// clients; authenticated endpoints use the general profile behind the
// token guard.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, issuer *utils.TokenIssuer, l Limiters) {
	g := e.Group("/auth")
	sensitive := l.Sensitive.Middleware()
	g.POST("/register", a.Register, sensitive)
	g.POST("/login", a.Login, sensitive)
	g.POST("/request-password-reset", a.RequestPasswordReset, sensitive)
	g.POST("/reset-password", a.ResetPassword, sensitive)
	g.POST("/verify-email", a.VerifyEmail, sensitive)
	g.POST("/refresh-token", a.Refresh, l.Public.Middleware())

	authed := e.Group("/auth")
	authed.Use(middleware.Authenticate(issuer))
	authed.Use(l.General.Middleware())
	authed.POST("/logout", a.Logout)
	authed.GET("/user-profile", a.Profile)
}

// RegisterAdmin registers the administrative user endpoints.  Both sit
// behind authentication, the ADMIN role check (embedded claims, cheap)
// and a database-backed permission check (authoritative).
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, issuer *utils.TokenIssuer, perms middleware.PermissionSource, l Limiters) {
	g := e.Group("/admin")
	g.Use(middleware.Authenticate(issuer))
	g.Use(l.General.Middleware())
	g.Use(middleware.RequireRole("ADMIN"))
	g.GET("/users", h.ListUsers, middleware.RequirePermissions(perms, "read:users"))
	g.DELETE("/users/:id", h.DeleteUser, middleware.RequirePermissions(perms, "delete:users"))
}
