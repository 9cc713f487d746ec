package alerts

import (
	"context"
	"sync"
	"time"
)

type Cooldown interface {
	Acquire(ctx context.Context, key string, window time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// MemoryCooldown is a process-local Cooldown for tests and single-instance runs.
type MemoryCooldown struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{until: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryCooldown) WithClock(now func() time.Time) *MemoryCooldown {
	m.now = now
	return m
}

func (m *MemoryCooldown) Acquire(_ context.Context, key string, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if u, ok := m.until[key]; ok && now.Before(u) {
		return false, nil
	}
	m.until[key] = now.Add(window)
	return true, nil
}

func (m *MemoryCooldown) Release(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.until, key)
	m.mu.Unlock()
	return nil
}
