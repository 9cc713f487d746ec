package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/FleetSync/internal/broker/messages"
	"github.com/BearBump/FleetSync/internal/integrations/geocode"
	"github.com/BearBump/FleetSync/internal/integrations/provider"
	"github.com/BearBump/FleetSync/internal/models"
	"github.com/BearBump/FleetSync/internal/normalize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	DefaultTimeout = 45 * time.Second
	// Распределённая блокировка живёт чуть дольше дедлайна синхронизации.
	lockGrace = 15 * time.Second
)

type Repository interface {
	UpsertShipments(ctx context.Context, ownerID string, items []*models.Shipment, day time.Time) error
}

type AlertEvaluator interface {
	Evaluate(ctx context.Context, ownerID string, shipments []*models.Shipment) ([]*models.Alert, error)
}

// Locker is a cross-process lock, e.g. rediscache.Locker.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, key, token string) error
}

type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

type Syncer struct {
	adapters []provider.Adapter
	norm     *normalize.Normalizer
	resolver *geocode.Resolver
	repo     Repository
	alerts   AlertEvaluator

	locker   Locker
	lockTTL  time.Duration
	lockWait time.Duration

	events      Publisher
	eventsTopic string

	timeout         time.Duration
	providerTimeout time.Duration
	now             func() time.Time

	locks *ownerLocks
	book  *stateBook

	totalRuns     atomic.Int64
	totalFailures atomic.Int64
	inFlight      atomic.Int64
}

func New(adapters []provider.Adapter, norm *normalize.Normalizer, resolver *geocode.Resolver, repo Repository, alerts AlertEvaluator) *Syncer {
	if norm == nil {
		norm = normalize.New(normalize.DefaultBatteryLevel)
	}
	return &Syncer{
		adapters: adapters,
		norm:     norm,
		resolver: resolver,
		repo:     repo,
		alerts:   alerts,
		timeout:  DefaultTimeout,
		now:      func() time.Time { return time.Now().UTC() },
		locks:    newOwnerLocks(),
		book:     newStateBook(),
	}
}

func (s *Syncer) WithTimeout(d time.Duration) *Syncer {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// WithProviderTimeout caps a single adapter call. Zero leaves it to the adapter's HTTP client.
func (s *Syncer) WithProviderTimeout(d time.Duration) *Syncer {
	s.providerTimeout = d
	return s
}

func (s *Syncer) WithLocker(l Locker) *Syncer {
	s.locker = l
	return s
}

// WithLockTTL overrides the distributed lock expiry (default: deadline + 15s).
func (s *Syncer) WithLockTTL(d time.Duration) *Syncer {
	if d > 0 {
		s.lockTTL = d
	}
	return s
}

// WithLockWait sets how long a concurrent RunSync for the same owner waits. Zero fails fast.
func (s *Syncer) WithLockWait(d time.Duration) *Syncer {
	if d >= 0 {
		s.lockWait = d
	}
	return s
}

// WithPublisher emits messages.ShipmentsSynced after every finished run.
func (s *Syncer) WithPublisher(p Publisher, topic string) *Syncer {
	s.events = p
	s.eventsTopic = topic
	return s
}

func (s *Syncer) WithClock(now func() time.Time) *Syncer {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Syncer) Providers() []string {
	out := make([]string, 0, len(s.adapters))
	for _, a := range s.adapters {
		out = append(out, a.Name())
	}
	return out
}

func lockKey(ownerID string) string { return "sync:owner:" + ownerID }

// RunSync fetches every provider, normalizes, resolves addresses, persists the batch
// and evaluates alerts for one owner. A non-nil error always comes with a result
// whose Success is false.
func (s *Syncer) RunSync(ctx context.Context, ownerID string) (models.SyncResult, error) {
	started := s.now()
	res := models.SyncResult{
		RunID:     uuid.NewString(),
		OwnerID:   ownerID,
		Breakdown: make(map[string]int, len(s.adapters)),
		StartedAt: started,
	}
	for _, a := range s.adapters {
		res.Breakdown[a.Name()] = 0
	}

	if ownerID == "" {
		return s.reject(res, models.ErrOwnerRequired)
	}

	if !s.locks.acquire(ctx, ownerID, s.lockWait) {
		return s.reject(res, models.ErrSyncInProgress)
	}
	defer s.locks.release(ownerID)

	if s.locker != nil {
		ttl := s.lockTTL
		if ttl <= 0 {
			ttl = s.timeout + lockGrace
		}
		token, ok, err := s.locker.TryLock(ctx, lockKey(ownerID), ttl)
		switch {
		case err != nil:
			// Redis недоступен: продолжаем под локальным мьютексом.
			slog.Warn("sync lock unavailable", "owner_id", ownerID, "error", err)
		case !ok:
			return s.reject(res, models.ErrSyncInProgress)
		default:
			defer func() {
				uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				defer cancel()
				if err := s.locker.Unlock(uctx, lockKey(ownerID), token); err != nil {
					slog.Warn("sync unlock failed", "owner_id", ownerID, "error", err)
				}
			}()
		}
	}

	s.totalRuns.Add(1)
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	persisted, err := s.run(runCtx, &res)
	// после коммита дедлайн на алертах уже не делает синк неуспешным
	if err == nil && !persisted && runCtx.Err() != nil {
		err = runCtx.Err()
	}
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		err = errors.Wrap(models.ErrSyncTimeout, fmt.Sprintf("after %s", s.timeout))
	}

	res.FinishedAt = s.now()
	if err != nil {
		s.totalFailures.Add(1)
		res.Success = false
		res.Error = errorMessage(err)
		s.book.finish(res, models.SyncFailed)
		slog.Error("sync failed", "owner_id", ownerID, "run_id", res.RunID, "error", err)
	} else {
		res.Success = true
		s.book.finish(res, models.SyncDone)
		slog.Info("sync done", "owner_id", ownerID, "run_id", res.RunID,
			"total", res.TotalCount, "alerts", res.AlertsCreated, "failed_providers", len(res.Failures))
	}

	s.publish(ctx, res)
	return res, err
}

func errorMessage(err error) string {
	if errors.Is(err, models.ErrSyncTimeout) {
		return models.ErrSyncTimeout.Error()
	}
	return err.Error()
}

func (s *Syncer) reject(res models.SyncResult, err error) (models.SyncResult, error) {
	res.Success = false
	res.Error = err.Error()
	res.FinishedAt = s.now()
	return res, err
}

func (s *Syncer) stage(ownerID string, st models.SyncState) {
	s.book.set(ownerID, st, s.now())
}

// run reports persisted=true once the batch is committed (or there was nothing
// to commit); from then on only alerting is left and it cannot fail the sync.
func (s *Syncer) run(ctx context.Context, res *models.SyncResult) (persisted bool, err error) {
	ownerID := res.OwnerID

	s.stage(ownerID, models.SyncFetching)
	fetched := s.fetchAll(ctx)

	s.stage(ownerID, models.SyncNormalizing)
	now := s.now()
	var (
		records []*models.Shipment
		index   = make(map[string]int)
	)
	for i, a := range s.adapters {
		name := a.Name()
		if fetched[i].err != nil {
			if res.Failures == nil {
				res.Failures = make(map[string]string)
			}
			res.Failures[name] = fetched[i].err.Error()
			slog.Warn("provider failed", "owner_id", ownerID, "provider", name, "error", fetched[i].err)
			continue
		}
		for _, obs := range fetched[i].obs {
			if obs.DeviceID == "" {
				continue
			}
			sh := s.norm.Normalize(obs, now)
			sh.OwnerID = ownerID
			// одно устройство дважды в ответе: побеждает последнее
			if j, dup := index[sh.ShipmentID]; dup {
				records[j] = sh
				continue
			}
			index[sh.ShipmentID] = len(records)
			records = append(records, sh)
			res.Breakdown[name]++
		}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.stage(ownerID, models.SyncResolving)
	s.resolveAll(ctx, records)
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.stage(ownerID, models.SyncPersisting)
	if len(records) > 0 {
		if err := s.repo.UpsertShipments(ctx, ownerID, records, now); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			if !errors.Is(err, models.ErrPersistence) {
				err = errors.Wrap(models.ErrPersistence, err.Error())
			}
			return false, err
		}
	}
	res.TotalCount = len(records)

	s.stage(ownerID, models.SyncAlerting)
	if s.alerts != nil && len(records) > 0 {
		created, aerr := s.alerts.Evaluate(ctx, ownerID, records)
		if aerr != nil {
			// данные уже сохранены, алерты догонят на следующем проходе
			slog.Error("alert evaluation failed", "owner_id", ownerID, "error", aerr)
		}
		res.AlertsCreated = len(created)
	}
	return true, nil
}

type fetchResult struct {
	obs []provider.RawObservation
	err error
}

func (s *Syncer) fetchAll(ctx context.Context) []fetchResult {
	out := make([]fetchResult, len(s.adapters))
	var wg sync.WaitGroup
	for i, a := range s.adapters {
		wg.Add(1)
		go func(i int, a provider.Adapter) {
			defer wg.Done()
			obs, err := provider.SafeFetch(ctx, a, s.providerTimeout)
			out[i] = fetchResult{obs: obs, err: err}
		}(i, a)
	}
	wg.Wait()
	return out
}

func (s *Syncer) resolveAll(ctx context.Context, records []*models.Shipment) {
	if s.resolver == nil {
		for _, sh := range records {
			if sh.Latitude == nil || sh.Longitude == nil {
				sh.CurrentLocation = geocode.UnknownLocation
				continue
			}
			sh.CurrentLocation = geocode.Fallback(*sh.Latitude, *sh.Longitude)
		}
		return
	}

	pass := s.resolver.NewPass()
	var wg sync.WaitGroup
	for _, sh := range records {
		wg.Add(1)
		go func(sh *models.Shipment) {
			defer wg.Done()
			sh.CurrentLocation = pass.Resolve(ctx, sh.Latitude, sh.Longitude)
		}(sh)
	}
	wg.Wait()
}

func (s *Syncer) publish(ctx context.Context, res models.SyncResult) {
	if s.events == nil || s.eventsTopic == "" {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	msg := messages.NewShipmentsSynced(res)
	if err := s.events.PublishJSON(pctx, s.eventsTopic, res.OwnerID, msg); err != nil {
		slog.Warn("publish shipments synced failed", "owner_id", res.OwnerID, "error", err)
	}
}

// TestProvider runs one fetch against a single adapter and returns the device count.
func (s *Syncer) TestProvider(ctx context.Context, name string) (int, error) {
	for _, a := range s.adapters {
		if a.Name() != name {
			continue
		}
		obs, err := provider.SafeFetch(ctx, a, s.providerTimeout)
		if err != nil {
			return 0, err
		}
		return len(obs), nil
	}
	return 0, errors.Wrap(models.ErrConfiguration, fmt.Sprintf("provider %q is not enabled", name))
}

type Stats struct {
	TotalRuns     int64                     `json:"totalRuns"`
	TotalFailures int64                     `json:"totalFailures"`
	InFlight      int64                     `json:"inFlight"`
	Owners        []OwnerStatus             `json:"owners"`
	Providers     map[string]ProviderStatus `json:"providers"`
}

func (s *Syncer) Stats() Stats {
	return Stats{
		TotalRuns:     s.totalRuns.Load(),
		TotalFailures: s.totalFailures.Load(),
		InFlight:      s.inFlight.Load(),
		Owners:        s.book.allOwners(),
		Providers:     s.book.allProviders(),
	}
}

func (s *Syncer) OwnerStatus(ownerID string) OwnerStatus {
	st, _ := s.book.owner(ownerID)
	return st
}

func (s *Syncer) ProviderStatuses() map[string]ProviderStatus {
	return s.book.allProviders()
}
