package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request counter shared by every process that
// talks to the same provider account.
type RateLimiter struct {
	c *redis.Client
}

func NewRateLimiter(addr string) *RateLimiter {
	return NewRateLimiterWithClient(redis.NewClient(&redis.Options{Addr: addr}))
}

func NewRateLimiterWithClient(c *redis.Client) *RateLimiter {
	return &RateLimiter{c: c}
}

// Allow counts one call against key and reports whether it fits into limit.
// The window starts with the first call; later calls do not extend it.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	n, err := rl.c.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit incr")
	}
	if n == 1 {
		if err := rl.c.Expire(ctx, key, window).Err(); err != nil {
			return false, n, errors.Wrap(err, "redis ratelimit expire")
		}
	} else if ttl, err := rl.c.TTL(ctx, key).Result(); err == nil && ttl < 0 {
		// ключ без TTL остался после сбоя между INCR и EXPIRE
		_ = rl.c.Expire(ctx, key, window).Err()
	}
	return n <= limit, n, nil
}
