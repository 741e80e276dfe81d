package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/finbook/finbook-api/internal/config"
	"github.com/finbook/finbook-api/internal/metrics"
)

// RateLimiter applies a fixed-window request limit per derived key.  The
// shared counter lives in Redis so limits hold across server processes;
// when Redis is nil or unreachable the limiter falls back to per-process
// counters and logs the degradation once rather than failing open
// silently.
type RateLimiter struct {
	profile  config.RateLimitProfile
	rdb      *redis.Client
	logger   *zap.Logger
	fallback *localCounters
	warned   sync.Once
}

// Counter script: first request in a window sets the expiry; every request
// returns the current count and the window's remaining milliseconds.
var windowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		ttl = tonumber(ARGV[1])
		redis.call('PEXPIRE', KEYS[1], ttl)
	end
	return { count, ttl }
`)

func NewRateLimiter(profile config.RateLimitProfile, rdb *redis.Client, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		profile:  profile,
		rdb:      rdb,
		logger:   logger,
		fallback: newLocalCounters(profile.Window),
	}
}

// Middleware returns the echo middleware enforcing this profile.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	if !rl.profile.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rl.buildKey(c)
			count, retryAfter := rl.hit(c, key)

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.profile.Max))
			remaining := rl.profile.Max - count
			if remaining < 0 {
				remaining = 0
			}
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if count > rl.profile.Max {
				secs := int(math.Ceil(retryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				metrics.RateLimitRejections.WithLabelValues(rl.profile.Prefix).Inc()
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

// hit increments the window counter for key and returns the new count plus
// the time until the window resets.
func (rl *RateLimiter) hit(c echo.Context, key string) (int, time.Duration) {
	if rl.rdb != nil {
		vals, err := windowScript.Run(c.Request().Context(), rl.rdb,
			[]string{key}, rl.profile.Window.Milliseconds()).Result()
		if err == nil {
			if arr, ok := vals.([]interface{}); ok && len(arr) == 2 {
				return int(asInt64(arr[0])), time.Duration(asInt64(arr[1])) * time.Millisecond
			}
		}
		rl.warned.Do(func() {
			rl.logger.Warn("rate limiter falling back to per-process counters",
				zap.String("profile", rl.profile.Prefix), zap.Error(err))
		})
	}
	return rl.fallback.hit(key)
}

func (rl *RateLimiter) buildKey(c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	parts := []string{rl.profile.Prefix}
	switch rl.profile.KeyStrategy {
	case "user":
		if claims := CurrentClaims(c); claims != nil {
			parts = append(parts, "user", strconv.FormatUint(claims.UserID, 10))
		} else {
			parts = append(parts, "ip", ip)
		}
	case "ip_account":
		// Credential endpoints: one counter per IP+account pair so a
		// distributed attack on one account and a single IP spraying many
		// accounts both hit the limit.
		parts = append(parts, "ip", ip)
		if acct := peekAccount(c); acct != "" {
			parts = append(parts, "acct", acct)
		}
	default: // "ip"
		parts = append(parts, "ip", ip)
	}
	return strings.Join(parts, ":")
}

// peekAccount reads the request body to extract the targeted account
// (email field) and restores the body for the handler.  Oversized bodies
// are not inspected, and neither are bodies of unknown length (chunked
// requests): a partial read there would hand the handler a truncated body.
func peekAccount(c echo.Context) string {
	req := c.Request()
	if req.Body == nil || req.ContentLength < 0 || req.ContentLength > 4096 {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, 4096))
	req.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var probe struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &probe) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(probe.Email))
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// localCounters is the in-process fallback store.  Counters are safe for
// concurrent use; expired windows are dropped lazily on access, and once
// the map passes sweepThreshold distinct keys every expired entry is purged
// so churn across many client IPs cannot grow it without bound.
type localCounters struct {
	mu     sync.Mutex
	window time.Duration
	slots  map[string]*localWindow
}

const sweepThreshold = 4096

type localWindow struct {
	count   int
	resetAt time.Time
}

func newLocalCounters(window time.Duration) *localCounters {
	return &localCounters{window: window, slots: make(map[string]*localWindow)}
}

func (l *localCounters) hit(key string) (int, time.Duration) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.slots) > sweepThreshold {
		l.sweep(now)
	}
	w, ok := l.slots[key]
	if !ok || now.After(w.resetAt) {
		w = &localWindow{resetAt: now.Add(l.window)}
		l.slots[key] = w
	}
	w.count++
	return w.count, w.resetAt.Sub(now)
}

// sweep drops every expired window.  Caller holds the lock.
func (l *localCounters) sweep(now time.Time) {
	for k, w := range l.slots {
		if now.After(w.resetAt) {
			delete(l.slots, k)
		}
	}
}
