package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/pulse/internal/cache"
)

func setupCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewFromAddr(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestAcquire(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)
	key := cache.KeyForCooldown(42)

	ok, remaining, err := c.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, remaining)
	assert.Equal(t, "love_cooldown:42", key)

	ok, remaining, err = c.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire within the window must fail")
	assert.Equal(t, 5*time.Second, remaining)

	mr.FastForward(2 * time.Second)
	_, remaining, err = c.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, remaining)

	mr.FastForward(3 * time.Second)
	ok, _, err = c.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "marker expired, acquire succeeds again")
}

func TestRemaining(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)

	d, err := c.Remaining(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, d)

	require.NoError(t, mr.Set("k", "v"))
	mr.SetTTL("k", 10*time.Second)
	d, err = c.Remaining(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)
	key := cache.KeyForLoveStats("pair-1", "2026-10-18")

	loads := 0
	load := func(context.Context) (map[string]int64, error) {
		loads++
		return map[string]int64{"sent": 1, "received": 0}, nil
	}

	got, err := c.Counters(ctx, key, time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"sent": 1, "received": 0}, got)
	assert.Equal(t, time.Hour, mr.TTL(key))

	got, err = c.Counters(ctx, key, time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got["sent"])
	assert.Equal(t, 1, loads, "second read is a cache hit")

	require.NoError(t, c.InvalidateCounters(ctx, key, time.Hour))
	assert.False(t, mr.Exists(key))

	_, err = c.Counters(ctx, key, time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)

	boom := errors.New("db down")
	require.NoError(t, c.InvalidateCounters(ctx, key, time.Hour))
	_, err = c.Counters(ctx, key, time.Hour, func(context.Context) (map[string]int64, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestCounters_InvalidatedDuringFill(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)
	key := cache.KeyForLoveStats("pair-1", "2026-10-18")

	// a write lands between the database read and the cache fill
	_, err := c.Counters(ctx, key, time.Hour, func(ctx context.Context) (map[string]int64, error) {
		require.NoError(t, c.InvalidateCounters(ctx, key, time.Hour))
		return map[string]int64{"sent": 0}, nil
	})
	assert.ErrorIs(t, err, cache.ErrCountersChanged)
	assert.False(t, mr.Exists(key), "stale counters are never cached")
}
