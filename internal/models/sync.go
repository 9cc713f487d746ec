package models

import "time"

type SyncState string

const (
	SyncIdle        SyncState = "idle"
	SyncFetching    SyncState = "fetching"
	SyncNormalizing SyncState = "normalizing"
	SyncResolving   SyncState = "resolving"
	SyncPersisting  SyncState = "persisting"
	SyncAlerting    SyncState = "alerting"
	SyncDone        SyncState = "done"
	SyncFailed      SyncState = "failed"
)

// SyncResult is returned by every sync invocation. Breakdown always lists
// every enabled provider, including the ones that failed (count 0).
type SyncResult struct {
	RunID         string            `json:"run_id"`
	OwnerID       string            `json:"owner_id"`
	Success       bool              `json:"success"`
	TotalCount    int               `json:"total_count"`
	Breakdown     map[string]int    `json:"breakdown"`
	Failures      map[string]string `json:"failures,omitempty"`
	AlertsCreated int               `json:"alerts_created"`
	Error         string            `json:"error,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
}

// SyncSchedule is the worker-side timer state of one owner.
type SyncSchedule struct {
	OwnerID      string
	NextSyncAt   time.Time
	LastSyncedAt *time.Time
	FailCount    int32
	LastError    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ScheduleUpdate is written back by the worker after a sync attempt.
type ScheduleUpdate struct {
	OwnerID    string
	SyncedAt   time.Time
	NextSyncAt time.Time
	// Error == nil сбрасывает fail_count.
	Error *string
	// Skipped only moves next_sync_at, e.g. when another process holds the owner lock.
	Skipped bool
}
