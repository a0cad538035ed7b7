package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLocker(rdb, wait), mr
}

func TestAcquireAndRelease(t *testing.T) {
	locker, mr := newLocker(t, 0)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "clients:identity:a", time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:clients:identity:a"))

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("lock:clients:identity:a"))
}

func TestAcquireFailsWhileHeld(t *testing.T) {
	locker, _ := newLocker(t, 30*time.Millisecond)
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "k", time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestAcquireSucceedsAfterRelease(t *testing.T) {
	locker, _ := newLocker(t, time.Second)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = release(context.Background())
	}()

	release2, err := locker.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.NoError(t, release2(ctx))
}

func TestReleaseAfterExpiryReportsNotHeld(t *testing.T) {
	locker, mr := newLocker(t, 0)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "k", 100*time.Millisecond)
	require.NoError(t, err)
	mr.FastForward(200 * time.Millisecond)

	assert.ErrorIs(t, release(ctx), ErrNotHeld)
}

func TestAcquireReportsRedisFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	locker := NewRedisLocker(rdb, 0)
	mr.Close()

	_, err = locker.Acquire(context.Background(), "k", time.Second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAcquired)
}
