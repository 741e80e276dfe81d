package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/finbook/finbook-api/internal/metrics"
)

// SessionStore keeps the currently valid refresh token per user in Redis.
// The cache entry, not the token's own expiry, decides whether a refresh
// token is still trusted: every login and refresh overwrites the entry,
// silently revoking whatever was there before.
//
// When Redis is absent or unreachable the store flips into degraded mode:
// writes and deletes are swallowed (a login must not hard-fail because
// revocation tracking is down), reads report missing, and the state is
// visible through Degraded(), the status endpoint and a gauge.  The flag
// clears on the next successful round trip.
type SessionStore struct {
	rdb      *redis.Client // nil means permanently degraded
	logger   *zap.Logger
	degraded atomic.Bool
}

// NewSessionStore wraps a Redis client; client may be nil when no cache
// backend is configured.
func NewSessionStore(rdb *redis.Client, logger *zap.Logger) *SessionStore {
	s := &SessionStore{rdb: rdb, logger: logger}
	if rdb == nil {
		s.markDegraded(fmt.Errorf("no redis client configured"))
	}
	return s
}

func sessionKey(userID uint64) string {
	return fmt.Sprintf("session:refresh:%d", userID)
}

// StoreRefresh unconditionally overwrites the user's cache entry.  This is
// the revocation mechanism: a new login or refresh invalidates any
// previously issued refresh token for the user even if unexpired.
func (s *SessionStore) StoreRefresh(ctx context.Context, userID uint64, token string, ttl time.Duration) error {
	if s.rdb == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.rdb.Set(ctx, sessionKey(userID), token, ttl).Err(); err != nil {
		s.markDegraded(err)
		return err
	}
	s.markHealthy()
	return nil
}

// GetRefresh returns the cached refresh token for a user, or ErrNotFound
// when no entry exists (including while degraded — with the cache down we
// cannot vouch for any refresh token, so refreshes fail closed).
func (s *SessionStore) GetRefresh(ctx context.Context, userID uint64) (string, error) {
	if s.rdb == nil {
		return "", ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	val, err := s.rdb.Get(ctx, sessionKey(userID)).Result()
	if err == redis.Nil {
		s.markHealthy()
		return "", ErrNotFound
	}
	if err != nil {
		s.markDegraded(err)
		return "", err
	}
	s.markHealthy()
	return val, nil
}

// DeleteRefresh removes the cache entry.  Deleting a missing entry is not
// an error; logout is idempotent.
func (s *SessionStore) DeleteRefresh(ctx context.Context, userID uint64) error {
	if s.rdb == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.rdb.Del(ctx, sessionKey(userID)).Err(); err != nil {
		s.markDegraded(err)
		return err
	}
	s.markHealthy()
	return nil
}

// Degraded reports whether single-active-refresh-token semantics are
// currently guaranteed.
func (s *SessionStore) Degraded() bool { return s.degraded.Load() }

func (s *SessionStore) markDegraded(err error) {
	if s.degraded.CompareAndSwap(false, true) {
		metrics.SessionCacheDegraded.Set(1)
		s.logger.Warn("session cache degraded: refresh revocation is best-effort", zap.Error(err))
	}
}

func (s *SessionStore) markHealthy() {
	if s.degraded.CompareAndSwap(true, false) {
		metrics.SessionCacheDegraded.Set(0)
		s.logger.Info("session cache recovered")
	}
}
