package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testSessionStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionStore(rdb, zap.NewNop()), mr
}

func TestStoreAndGetRefresh(t *testing.T) {
	s, _ := testSessionStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreRefresh(ctx, 1, "tok-a", time.Hour))
	got, err := s.GetRefresh(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "tok-a", got)

	// Overwrite is the revocation mechanism: the old value is simply gone.
	require.NoError(t, s.StoreRefresh(ctx, 1, "tok-b", time.Hour))
	got, err = s.GetRefresh(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "tok-b", got)
}

func TestGetRefreshMissing(t *testing.T) {
	s, _ := testSessionStore(t)
	_, err := s.GetRefresh(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshEntryExpires(t *testing.T) {
	s, mr := testSessionStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreRefresh(ctx, 1, "tok", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := s.GetRefresh(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRefreshIdempotent(t *testing.T) {
	s, _ := testSessionStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreRefresh(ctx, 1, "tok", time.Hour))
	require.NoError(t, s.DeleteRefresh(ctx, 1))
	// Deleting again is not an error.
	require.NoError(t, s.DeleteRefresh(ctx, 1))

	_, err := s.GetRefresh(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNilClientIsDegradedButHarmless(t *testing.T) {
	s := NewSessionStore(nil, zap.NewNop())
	ctx := context.Background()

	assert.True(t, s.Degraded())
	// Writes and deletes are swallowed; reads fail closed.
	assert.NoError(t, s.StoreRefresh(ctx, 1, "tok", time.Hour))
	assert.NoError(t, s.DeleteRefresh(ctx, 1))
	_, err := s.GetRefresh(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDegradedFlagFlipsAndRecovers(t *testing.T) {
	s, mr := testSessionStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreRefresh(ctx, 1, "tok", time.Hour))
	assert.False(t, s.Degraded())

	mr.SetError("backend down")
	assert.Error(t, s.StoreRefresh(ctx, 1, "tok2", time.Hour))
	assert.True(t, s.Degraded())

	mr.SetError("")
	require.NoError(t, s.StoreRefresh(ctx, 1, "tok3", time.Hour))
	assert.False(t, s.Degraded())
}
