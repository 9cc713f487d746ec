package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Cooldown hands out at most one slot per key per window.
type Cooldown struct {
	c      *redis.Client
	prefix string
}

func NewCooldown(c *redis.Client) *Cooldown {
	return &Cooldown{c: c, prefix: "cooldown:"}
}

func (cd *Cooldown) Acquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	ok, err := cd.c.SetNX(ctx, cd.prefix+key, time.Now().UTC().Format(time.RFC3339), window).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis cooldown acquire")
	}
	return ok, nil
}

func (cd *Cooldown) Release(ctx context.Context, key string) error {
	if err := cd.c.Del(ctx, cd.prefix+key).Err(); err != nil {
		return errors.Wrap(err, "redis cooldown release")
	}
	return nil
}
