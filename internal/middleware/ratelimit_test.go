package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finbook/finbook-api/internal/config"
)

func limiterProfile(max int, window time.Duration, strategy string) config.RateLimitProfile {
	return config.RateLimitProfile{
		Enabled:     true,
		Max:         max,
		Window:      window,
		KeyStrategy: strategy,
		Prefix:      "rl:test",
	}
}

func hitOnce(e *echo.Echo, mw echo.MiddlewareFunc, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(http.MethodPost, "/x", nil)
	} else {
		req = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	handler := mw(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	_ = handler(c)
	return rec
}

func TestFixedWindowLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rl := NewRateLimiter(limiterProfile(3, 10*time.Minute, "ip"), rdb, zap.NewNop())
	e := echo.New()
	mw := rl.Middleware()

	for i := 0; i < 3; i++ {
		rec := hitOnce(e, mw, "")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	rec := hitOnce(e, mw, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "retry_after")
}

func TestWindowResets(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rl := NewRateLimiter(limiterProfile(1, time.Minute, "ip"), rdb, zap.NewNop())
	e := echo.New()
	mw := rl.Middleware()

	assert.Equal(t, http.StatusOK, hitOnce(e, mw, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, hitOnce(e, mw, "").Code)

	mr.FastForward(2 * time.Minute)
	assert.Equal(t, http.StatusOK, hitOnce(e, mw, "").Code)
}

func TestFallbackWithoutRedis(t *testing.T) {
	rl := NewRateLimiter(limiterProfile(2, time.Minute, "ip"), nil, zap.NewNop())
	e := echo.New()
	mw := rl.Middleware()

	assert.Equal(t, http.StatusOK, hitOnce(e, mw, "").Code)
	assert.Equal(t, http.StatusOK, hitOnce(e, mw, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, hitOnce(e, mw, "").Code)
}

func TestCompositeKeySeparatesAccounts(t *testing.T) {
	rl := NewRateLimiter(limiterProfile(1, time.Minute, "ip_account"), nil, zap.NewNop())
	e := echo.New()
	mw := rl.Middleware()

	// Same IP, two accounts: separate counters.
	assert.Equal(t, http.StatusOK, hitOnce(e, mw, `{"email":"a@x.com"}`).Code)
	assert.Equal(t, http.StatusOK, hitOnce(e, mw, `{"email":"b@x.com"}`).Code)
	// Second hit on the first account trips its counter.
	assert.Equal(t, http.StatusTooManyRequests, hitOnce(e, mw, `{"email":"a@x.com"}`).Code)
}

func TestBodySurvivesAccountPeek(t *testing.T) {
	rl := NewRateLimiter(limiterProfile(5, time.Minute, "ip_account"), nil, zap.NewNop())
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"email":"a@x.com"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen struct {
		Email string `json:"email"`
	}
	handler := rl.Middleware()(func(c echo.Context) error {
		require.NoError(t, c.Bind(&seen))
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	assert.Equal(t, "a@x.com", seen.Email)
}

// A body of unknown length is never inspected: the peek must not hand the
// handler a truncated read of a chunked request.
func TestChunkedBodyNotPeeked(t *testing.T) {
	e := echo.New()

	payload := `{"email":"a@x.com","filler":"` + strings.Repeat("x", 8192) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.ContentLength = -1 // chunked transfer
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	assert.Empty(t, peekAccount(c))

	body, err := io.ReadAll(c.Request().Body)
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
}

// Expired fallback windows are purged once the map grows past the sweep
// threshold, so churn across distinct keys cannot accumulate forever.
func TestLocalCountersSweepExpired(t *testing.T) {
	l := newLocalCounters(time.Minute)
	stale := time.Now().Add(-time.Minute)
	for i := 0; i <= sweepThreshold; i++ {
		l.slots["key:"+strconv.Itoa(i)] = &localWindow{count: 1, resetAt: stale}
	}

	count, _ := l.hit("fresh")
	assert.Equal(t, 1, count)
	assert.Len(t, l.slots, 1) // only the fresh key survives
}

func TestDisabledProfilePassesThrough(t *testing.T) {
	p := limiterProfile(1, time.Minute, "ip")
	p.Enabled = false
	rl := NewRateLimiter(p, nil, zap.NewNop())
	e := echo.New()
	mw := rl.Middleware()

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, hitOnce(e, mw, "").Code)
	}
}
