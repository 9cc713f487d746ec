package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu      sync.Mutex
	due     []*models.SyncSchedule
	claims  int
	updates []models.ScheduleUpdate
	err     error
}

func (r *fakeRepo) ClaimDueOwners(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.SyncSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims++
	if r.err != nil {
		return nil, r.err
	}
	out := r.due
	r.due = nil
	return out, nil
}

func (r *fakeRepo) Reschedule(ctx context.Context, upd models.ScheduleUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, upd)
	return nil
}

func (r *fakeRepo) update(owner string) (models.ScheduleUpdate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.updates {
		if u.OwnerID == owner {
			return u, true
		}
	}
	return models.ScheduleUpdate{}, false
}

type fakeRunner struct {
	errs map[string]error
}

func (f fakeRunner) RunSync(ctx context.Context, ownerID string) (models.SyncResult, error) {
	if err := f.errs[ownerID]; err != nil {
		return models.SyncResult{OwnerID: ownerID, Error: err.Error()}, err
	}
	return models.SyncResult{OwnerID: ownerID, Success: true}, nil
}

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestScheduler_RunOnce_Reschedules(t *testing.T) {
	repo := &fakeRepo{due: []*models.SyncSchedule{
		{OwnerID: "ok"},
		{OwnerID: "bad", FailCount: 2},
		{OwnerID: "busy"},
	}}
	runner := fakeRunner{errs: map[string]error{
		"bad":  models.ErrPersistence,
		"busy": models.ErrSyncInProgress,
	}}
	s := New(repo, runner).WithClock(func() time.Time { return now })

	s.RunOnce(context.Background())

	u, ok := repo.update("ok")
	require.True(t, ok)
	require.Nil(t, u.Error)
	require.Equal(t, now.Add(30*time.Second), u.NextSyncAt)

	u, ok = repo.update("bad")
	require.True(t, ok)
	require.NotNil(t, u.Error)
	require.Equal(t, now.Add(5*time.Minute), u.NextSyncAt)

	u, ok = repo.update("busy")
	require.True(t, ok)
	require.True(t, u.Skipped)
	require.Nil(t, u.Error)

	st := s.Stats()
	require.EqualValues(t, 3, st.TotalClaimed)
	require.EqualValues(t, 1, st.TotalSynced)
	require.EqualValues(t, 1, st.TotalErrors)
	require.EqualValues(t, 1, st.TotalSkipped)
	require.NotEmpty(t, st.LastError)
	require.NotNil(t, st.LastCycleAt)
}

func TestScheduler_RunOnce_ClaimError(t *testing.T) {
	repo := &fakeRepo{err: errors.New("db down")}
	s := New(repo, fakeRunner{})
	s.RunOnce(context.Background())
	require.Equal(t, "db down", s.Stats().LastError)
}

func TestScheduler_WithSettings(t *testing.T) {
	s := New(&fakeRepo{}, fakeRunner{}).
		WithSettings(5*time.Second, 7, 9, 11*time.Second)
	require.Equal(t, 5*time.Second, s.pollInterval)
	require.Equal(t, 7, s.batchSize)
	require.Equal(t, 9, s.concurrency)
	require.Equal(t, 11*time.Second, s.lease)
}

func TestScheduler_Run_StopsOnContextCancel(t *testing.T) {
	repo := &fakeRepo{}
	s := New(repo, fakeRunner{}).WithSettings(5*time.Millisecond, 1, 1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := s.Run(ctx)
	require.Error(t, err)
	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.GreaterOrEqual(t, repo.claims, 1)
}

func TestScheduler_Trigger(t *testing.T) {
	repo := &fakeRepo{due: []*models.SyncSchedule{{OwnerID: "o"}}}
	s := New(repo, fakeRunner{}).WithSettings(time.Hour, 1, 1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	s.Trigger()
	require.Eventually(t, func() bool {
		_, ok := repo.update("o")
		return ok
	}, time.Second, 5*time.Millisecond)
	require.NotNil(t, s.Stats().LastTriggerAt)
}
