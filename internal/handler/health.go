package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"database/sql"
	"net/http" // net/http provides status codes and response helpers
	"time"

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
	"github.com/redis/go-redis/v9"
)

// Health is a simple health-check endpoint used by load balancers and
// monitoring systems to verify that the service is running.  It returns
// a plain text "ok" message with an HTTP 200 status code.  Health routes
// are exempt from rate limiting.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// StatusHandler reports the state of the service's collaborators,
// including the degraded-mode flags: when the session cache is down the
// single-active-refresh-token guarantee is suspended and operators need
// to see that, not discover it later.
type StatusHandler struct {
	DB       *sql.DB
	Redis    *redis.Client // may be nil
	Sessions interface{ Degraded() bool }
}

func (h *StatusHandler) Status(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	dbOK := h.DB != nil && h.DB.PingContext(ctx) == nil
	limiterStore := "redis"
	cacheOK := false
	if h.Redis != nil {
		cacheOK = h.Redis.Ping(ctx).Err() == nil
	}
	if !cacheOK {
		limiterStore = "in-process"
	}

	status := http.StatusOK
	if !dbOK {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, echo.Map{
		"database":         map[string]bool{"ok": dbOK},
		"session_cache":    map[string]bool{"ok": cacheOK, "degraded": h.Sessions.Degraded()},
		"rate_limit_store": limiterStore,
	})
}
