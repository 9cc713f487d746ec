package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/pkg/errors"
)

type Repository interface {
	ClaimDueOwners(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.SyncSchedule, error)
	Reschedule(ctx context.Context, upd models.ScheduleUpdate) error
}

type Runner interface {
	RunSync(ctx context.Context, ownerID string) (models.SyncResult, error)
}

// Scheduler: таймер воркера: забирает созревших владельцев из sync_schedules,
// прогоняет для каждого RunSync и переставляет next_sync_at через планировщик.
type Scheduler struct {
	repo   Repository
	runner Runner

	planner *Planner

	pollInterval time.Duration
	batchSize    int
	concurrency  int
	lease        time.Duration

	now func() time.Time

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalSynced         atomic.Int64
	totalErrors         atomic.Int64
	totalSkipped        atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, runner Runner) *Scheduler {
	return &Scheduler{
		repo:              repo,
		runner:            runner,
		planner:           NewPlanner(DefaultPlannerConfig(), nil),
		pollInterval:      2 * time.Second,
		batchSize:         50,
		concurrency:       4,
		lease:             120 * time.Second,
		now:               func() time.Time { return time.Now().UTC() },
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Scheduler) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration) *Scheduler {
	if pollInterval > 0 {
		s.pollInterval = pollInterval
	}
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	if lease > 0 {
		s.lease = lease
	}
	return s
}

func (s *Scheduler) WithPlanner(cfg PlannerConfig) *Scheduler {
	s.planner = NewPlanner(cfg, nil)
	return s
}

func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	if now != nil {
		s.now = now
	}
	return s
}

// Trigger forces an immediate cycle (best-effort, non-blocking).
func (s *Scheduler) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastCycleAt   *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed  int64      `json:"totalClaimed"`
	TotalSynced   int64      `json:"totalSynced"`
	TotalErrors   int64      `json:"totalErrors"`
	TotalSkipped  int64      `json:"totalSkipped"`
	InFlight      int64      `json:"inFlight"`
	LastError     string     `json:"lastError,omitempty"`
}

func (s *Scheduler) Stats() Stats {
	st := Stats{
		StartedAt:    time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalClaimed: s.totalClaimed.Load(),
		TotalSynced:  s.totalSynced.Load(),
		TotalErrors:  s.totalErrors.Load(),
		TotalSkipped: s.totalSkipped.Load(),
		InFlight:     s.inFlight.Load(),
	}
	if n := s.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := s.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

func (s *Scheduler) setLastError(msg string) {
	s.lastErrorMu.Lock()
	s.lastError = msg
	s.lastErrorMu.Unlock()
}

func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.RunOnce(ctx)
		case <-s.triggerCh:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce claims one batch of due owners and syncs them with bounded concurrency.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := s.now()
	s.lastCycleUnixNano.Store(now.UnixNano())

	items, err := s.repo.ClaimDueOwners(ctx, now, s.batchSize, s.lease)
	if err != nil {
		slog.Error("claim due owners", "error", err.Error())
		s.setLastError(err.Error())
		return
	}
	s.totalClaimed.Add(int64(len(items)))

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for _, sc := range items {
		sem <- struct{}{}
		wg.Add(1)
		s.inFlight.Add(1)
		go func(sc *models.SyncSchedule) {
			defer func() {
				s.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := s.processOne(ctx, sc); err != nil {
				s.totalErrors.Add(1)
				s.setLastError(err.Error())
				slog.Error("scheduled sync", "owner_id", sc.OwnerID, "error", err.Error())
			}
		}(sc)
	}
	wg.Wait()
}

func (s *Scheduler) processOne(ctx context.Context, sc *models.SyncSchedule) error {
	_, syncErr := s.runner.RunSync(ctx, sc.OwnerID)
	now := s.now()

	upd := models.ScheduleUpdate{OwnerID: sc.OwnerID, SyncedAt: now}
	switch {
	case syncErr == nil:
		s.totalSynced.Add(1)
		upd.NextSyncAt = now.Add(s.planner.NextSyncDelay())
	case errors.Is(syncErr, models.ErrSyncInProgress):
		// владельца уже синкает другой процесс: не считаем это ошибкой
		s.totalSkipped.Add(1)
		upd.Skipped = true
		upd.NextSyncAt = now.Add(s.planner.NextSyncDelay())
	default:
		msg := syncErr.Error()
		upd.Error = &msg
		upd.NextSyncAt = now.Add(s.planner.BackoffDelay(sc.FailCount + 1))
	}

	if err := s.repo.Reschedule(ctx, upd); err != nil {
		return errors.Wrap(err, "reschedule")
	}
	if upd.Error != nil {
		return syncErr
	}
	return nil
}
