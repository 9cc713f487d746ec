package syncer

import (
	"context"
	"sync"
	"time"
)

// ownerLocks: процессный мьютекс на владельца. Канал с буфером 1 позволяет
// ждать захвата с таймаутом.
type ownerLocks struct {
	mu sync.Mutex
	m  map[string]chan struct{}
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{m: make(map[string]chan struct{})}
}

func (l *ownerLocks) slot(ownerID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.m[ownerID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.m[ownerID] = ch
	}
	return ch
}

func (l *ownerLocks) acquire(ctx context.Context, ownerID string, wait time.Duration) bool {
	ch := l.slot(ownerID)
	select {
	case ch <- struct{}{}:
		return true
	default:
	}
	if wait <= 0 {
		return false
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case ch <- struct{}{}:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (l *ownerLocks) release(ownerID string) {
	<-l.slot(ownerID)
}
