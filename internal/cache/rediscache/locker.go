package rediscache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the key only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a single-node lease lock (SET NX PX + compare-and-delete).
type Locker struct {
	c      *redis.Client
	prefix string
}

func NewLocker(c *redis.Client) *Locker {
	return &Locker{c: c, prefix: "lock:"}
}

// TryLock returns the token that must be passed to Unlock; ok=false when the lock is held.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.c.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, errors.Wrap(err, "redis lock")
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	if err := unlockScript.Run(ctx, l.c, []string{l.prefix + key}, token).Err(); err != nil {
		return errors.Wrap(err, "redis unlock")
	}
	return nil
}
