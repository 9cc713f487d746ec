package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BearBump/FleetSync/internal/cache"
)

const UnknownLocation = "Location Unknown"

type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// Resolver turns coordinates into a human-readable address. It never fails:
// any geocoder error falls back to the coordinates themselves.
type Resolver struct {
	g           Geocoder
	timeout     time.Duration
	concurrency int

	cache    cache.BytesCache
	cacheTTL time.Duration
}

func NewResolver(g Geocoder, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Resolver{g: g, timeout: timeout, concurrency: 4}
}

func (r *Resolver) WithConcurrency(n int) *Resolver {
	if n > 0 {
		r.concurrency = n
	}
	return r
}

// WithCache shares resolved addresses across passes.
func (r *Resolver) WithCache(c cache.BytesCache, ttl time.Duration) *Resolver {
	r.cache = c
	r.cacheTTL = ttl
	return r
}

// Pass is the lookup scope of one sync invocation: identical rounded
// coordinates are resolved once.
type Pass struct {
	r   *Resolver
	sem chan struct{}

	mu   sync.Mutex
	seen map[string]*lookup
}

type lookup struct {
	once sync.Once
	addr string
}

func (r *Resolver) NewPass() *Pass {
	return &Pass{
		r:    r,
		sem:  make(chan struct{}, r.concurrency),
		seen: make(map[string]*lookup),
	}
}

func Fallback(lat, lon float64) string {
	return fmt.Sprintf("%.2f, %.2f", lat, lon)
}

func roundedKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

// Resolve is safe for concurrent use.
func (p *Pass) Resolve(ctx context.Context, lat, lon *float64) string {
	if lat == nil || lon == nil {
		return UnknownLocation
	}
	key := roundedKey(*lat, *lon)

	p.mu.Lock()
	l, ok := p.seen[key]
	if !ok {
		l = &lookup{}
		p.seen[key] = l
	}
	p.mu.Unlock()

	l.once.Do(func() {
		l.addr = p.resolve(ctx, key, *lat, *lon)
	})
	return l.addr
}

func (p *Pass) resolve(ctx context.Context, key string, lat, lon float64) string {
	fallback := Fallback(lat, lon)
	if p.r.g == nil {
		return fallback
	}

	cacheKey := "geo:" + key
	if p.r.cache != nil {
		if b, ok, err := p.r.cache.Get(ctx, cacheKey); err == nil && ok && len(b) > 0 {
			return string(b)
		}
	}

	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return fallback
	}

	cctx, cancel := context.WithTimeout(ctx, p.r.timeout)
	defer cancel()

	addr, err := p.r.g.Reverse(cctx, lat, lon)
	if err != nil || addr == "" {
		slog.Debug("geocode fallback", "lat", lat, "lon", lon, "error", err)
		return fallback
	}

	if p.r.cache != nil && p.r.cacheTTL > 0 {
		_ = p.r.cache.Set(ctx, cacheKey, []byte(addr), p.r.cacheTTL)
	}
	return addr
}
