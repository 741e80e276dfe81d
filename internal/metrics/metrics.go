// Package metrics registers the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoginAttempts counts login outcomes, labelled success|failure|two_factor.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	// Registrations counts successful account creations.
	Registrations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_registrations_total",
		Help: "Successful user registrations.",
	})

	// RateLimitRejections counts requests rejected with 429, labelled by
	// limiter profile.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_rate_limit_rejections_total",
		Help: "Requests rejected by the rate limiter.",
	}, []string{"profile"})

	// SessionCacheDegraded is 1 while the refresh-session cache is
	// unreachable and single-active-refresh-token semantics cannot be
	// guaranteed.
	SessionCacheDegraded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "auth_session_cache_degraded",
		Help: "1 when the session cache is unavailable, 0 otherwise.",
	})
)

// Handler returns the /metrics endpoint handler.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
