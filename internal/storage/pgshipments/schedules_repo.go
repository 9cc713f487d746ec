package pgshipments

import (
	"context"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// EnsureSchedules registers owners for periodic sync; existing rows are left as is.
func (s *Storage) EnsureSchedules(ctx context.Context, ownerIDs []string, firstAt time.Time) error {
	now := time.Now().UTC()
	for _, id := range ownerIDs {
		_, err := s.db.Exec(ctx, `
INSERT INTO sync_schedules (owner_id, next_sync_at, created_at, updated_at)
VALUES ($1,$2,$3,$3)
ON CONFLICT (owner_id) DO NOTHING
`, id, firstAt.UTC(), now)
		if err != nil {
			return errors.Wrap(err, "insert schedule")
		}
	}
	return nil
}

// RequestSync переносит next_sync_at на "сейчас", воркер подхватит владельца на ближайшем тике.
func (s *Storage) RequestSync(ctx context.Context, ownerID string) error {
	_, err := s.db.Exec(ctx, `UPDATE sync_schedules SET next_sync_at = now(), updated_at = now() WHERE owner_id = $1`, ownerID)
	return errors.Wrap(err, "request sync")
}

// ClaimDueOwners выбирает владельцев, которым пора синкаться, и продлевает им next_sync_at
// на lease, чтобы другой воркер их не взял. SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimDueOwners(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.SyncSchedule, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT owner_id, next_sync_at, last_synced_at, fail_count, last_error, created_at, updated_at
FROM sync_schedules
WHERE next_sync_at <= $1
ORDER BY next_sync_at ASC
LIMIT $2
FOR UPDATE SKIP LOCKED
`, now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due owners")
	}

	var picked []*models.SyncSchedule
	for rows.Next() {
		var sc models.SyncSchedule
		if err := rows.Scan(&sc.OwnerID, &sc.NextSyncAt, &sc.LastSyncedAt, &sc.FailCount, &sc.LastError, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan due owner")
		}
		picked = append(picked, &sc)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	leaseUntil := now.UTC().Add(lease)
	for _, sc := range picked {
		_, err := tx.Exec(ctx, `UPDATE sync_schedules SET next_sync_at = $2, updated_at = now() WHERE owner_id = $1`, sc.OwnerID, leaseUntil)
		if err != nil {
			return nil, errors.Wrap(err, "lease owner")
		}
		sc.NextSyncAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

func (s *Storage) Reschedule(ctx context.Context, upd models.ScheduleUpdate) error {
	var err error
	switch {
	case upd.Skipped:
		_, err = s.db.Exec(ctx, `UPDATE sync_schedules SET next_sync_at = $2, updated_at = now() WHERE owner_id = $1`,
			upd.OwnerID, upd.NextSyncAt.UTC())
	case upd.Error == nil:
		_, err = s.db.Exec(ctx, `
UPDATE sync_schedules
SET next_sync_at = $2, last_synced_at = $3, fail_count = 0, last_error = NULL, updated_at = now()
WHERE owner_id = $1
`, upd.OwnerID, upd.NextSyncAt.UTC(), upd.SyncedAt.UTC())
	default:
		_, err = s.db.Exec(ctx, `
UPDATE sync_schedules
SET next_sync_at = $2, fail_count = fail_count + 1, last_error = $3, updated_at = now()
WHERE owner_id = $1
`, upd.OwnerID, upd.NextSyncAt.UTC(), *upd.Error)
	}
	return errors.Wrap(err, "reschedule owner")
}
