package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/pkg/errors"
)

type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type limited struct {
	Adapter
	rl        Limiter
	perMinute int64
}

// WithRateLimit guards Fetch with a shared per-provider budget (calls per minute).
// A limiter error is not fatal: the call goes through.
func WithRateLimit(a Adapter, rl Limiter, perMinute int64) Adapter {
	if rl == nil || perMinute <= 0 {
		return a
	}
	return &limited{Adapter: a, rl: rl, perMinute: perMinute}
}

func (l *limited) Fetch(ctx context.Context) ([]RawObservation, error) {
	ok, n, err := l.rl.Allow(ctx, "rl:provider:"+l.Name(), l.perMinute, time.Minute)
	if err == nil && !ok {
		return nil, errors.Wrap(models.ErrProviderUnavailable,
			fmt.Sprintf("rate limit exceeded (%d/%d per minute)", n, l.perMinute))
	}
	return l.Adapter.Fetch(ctx)
}
