package syncer

import (
	"sort"
	"sync"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
)

type OwnerStatus struct {
	OwnerID    string             `json:"owner_id"`
	State      models.SyncState   `json:"state"`
	UpdatedAt  time.Time          `json:"updated_at"`
	LastResult *models.SyncResult `json:"last_result,omitempty"`
}

// ProviderStatus is the outcome of a provider in the most recent sync that used it.
type ProviderStatus struct {
	Name      string    `json:"name"`
	OK        bool      `json:"ok"`
	Count     int       `json:"count"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

type stateBook struct {
	mu        sync.Mutex
	owners    map[string]*OwnerStatus
	providers map[string]ProviderStatus
}

func newStateBook() *stateBook {
	return &stateBook{
		owners:    make(map[string]*OwnerStatus),
		providers: make(map[string]ProviderStatus),
	}
}

func (b *stateBook) set(ownerID string, st models.SyncState, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.owners[ownerID]
	if !ok {
		o = &OwnerStatus{OwnerID: ownerID}
		b.owners[ownerID] = o
	}
	o.State = st
	o.UpdatedAt = now
}

func (b *stateBook) finish(res models.SyncResult, st models.SyncState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.owners[res.OwnerID]
	if !ok {
		o = &OwnerStatus{OwnerID: res.OwnerID}
		b.owners[res.OwnerID] = o
	}
	r := res
	o.State = st
	o.UpdatedAt = res.FinishedAt
	o.LastResult = &r

	for name, n := range res.Breakdown {
		ps := ProviderStatus{Name: name, OK: true, Count: n, CheckedAt: res.FinishedAt}
		if msg, failed := res.Failures[name]; failed {
			ps.OK = false
			ps.Error = msg
		}
		b.providers[name] = ps
	}
}

func (b *stateBook) owner(ownerID string) (OwnerStatus, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.owners[ownerID]
	if !ok {
		return OwnerStatus{OwnerID: ownerID, State: models.SyncIdle}, false
	}
	return *o, true
}

func (b *stateBook) allOwners() []OwnerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]OwnerStatus, 0, len(b.owners))
	for _, o := range b.owners {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out
}

func (b *stateBook) allProviders() map[string]ProviderStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]ProviderStatus, len(b.providers))
	for k, v := range b.providers {
		out[k] = v
	}
	return out
}
