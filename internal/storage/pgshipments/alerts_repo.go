package pgshipments

import (
	"context"
	"fmt"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) InsertAlerts(ctx context.Context, alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(models.ErrPersistence, fmt.Sprintf("begin tx: %v", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b := &pgx.Batch{}
	for _, a := range alerts {
		b.Queue(`
INSERT INTO alerts (id, owner_id, shipment_id, alert_type, message, severity, acknowledged, muted, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, a.ID, a.OwnerID, a.ShipmentID, string(a.AlertType), a.Message, string(a.Severity), a.Acknowledged, a.Muted, a.CreatedAt.UTC())
	}
	br := tx.SendBatch(ctx, b)
	for range alerts {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return errors.Wrap(models.ErrPersistence, fmt.Sprintf("insert alert: %v", err))
		}
	}
	if err := br.Close(); err != nil {
		return errors.Wrap(models.ErrPersistence, fmt.Sprintf("close batch: %v", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(models.ErrPersistence, fmt.Sprintf("commit tx: %v", err))
	}
	return nil
}

func (s *Storage) ListAlerts(ctx context.Context, ownerID string, limit int) ([]*models.Alert, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
SELECT id, owner_id, shipment_id, alert_type, message, severity, acknowledged, muted, created_at
FROM alerts
WHERE owner_id = $1
ORDER BY created_at DESC, id ASC
LIMIT $2
`, ownerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select alerts")
	}
	defer rows.Close()

	out := make([]*models.Alert, 0)
	for rows.Next() {
		var a models.Alert
		var typ, sev string
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.ShipmentID, &typ, &a.Message, &sev, &a.Acknowledged, &a.Muted, &a.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan alert")
		}
		a.AlertType = models.AlertType(typ)
		a.Severity = models.AlertSeverity(sev)
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, &a)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
