package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	b, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, c.Ping(ctx))
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:provider:traccar", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	mr.FastForward(40 * time.Second)
	ok, n, _ = rl.Allow(ctx, "rl:provider:traccar", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:provider:traccar", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)

	// окно отсчитывается от первого вызова
	mr.FastForward(21 * time.Second)
	ok, n, _ = rl.Allow(ctx, "rl:provider:traccar", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	// другой провайдер считается отдельно
	ok, _, _ = rl.Allow(ctx, "rl:provider:sensolus", 2, time.Minute)
	require.True(t, ok)
}

func TestRateLimiter_RepairsMissingTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("rl:provider:tive", "5"))
	rl := NewRateLimiter(mr.Addr())

	ok, n, err := rl.Allow(context.Background(), "rl:provider:tive", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, int64(6), n)
	require.Equal(t, time.Minute, mr.TTL("rl:provider:tive"))
}

func TestLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	l := NewLocker(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	tok, ok, err := l.TryLock(ctx, "owner-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, tok)

	_, ok, err = l.TryLock(ctx, "owner-1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	// чужой токен не снимает лок
	require.NoError(t, l.Unlock(ctx, "owner-1", "not-mine"))
	_, ok, _ = l.TryLock(ctx, "owner-1", time.Minute)
	require.False(t, ok)

	require.NoError(t, l.Unlock(ctx, "owner-1", tok))
	_, ok, _ = l.TryLock(ctx, "owner-1", time.Minute)
	require.True(t, ok)
}

func TestLocker_Expires(t *testing.T) {
	mr := miniredis.RunT(t)
	l := NewLocker(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	_, ok, _ := l.TryLock(ctx, "o", time.Second)
	require.True(t, ok)
	mr.FastForward(2 * time.Second)
	_, ok, _ = l.TryLock(ctx, "o", time.Second)
	require.True(t, ok)
}

func TestCooldown(t *testing.T) {
	mr := miniredis.RunT(t)
	cd := NewCooldown(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	ok, err := cd.Acquire(ctx, "o|s|low_battery", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = cd.Acquire(ctx, "o|s|low_battery", time.Hour)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cd.Release(ctx, "o|s|low_battery"))
	ok, _ = cd.Acquire(ctx, "o|s|low_battery", time.Hour)
	require.True(t, ok)

	mr.FastForward(2 * time.Hour)
	ok, _ = cd.Acquire(ctx, "o|s|low_battery", time.Hour)
	require.True(t, ok)
}
