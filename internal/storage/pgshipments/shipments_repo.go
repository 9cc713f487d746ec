package pgshipments

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const shipmentColumns = `
  owner_id, shipment_id, name, shipment_type, provider, status,
  latitude, longitude, current_location, speed, course, altitude,
  battery_level, battery_estimated,
  temperature, humidity, target_temp_min, target_temp_max, current_geofence,
  tracking_active, device_status, exception_count, priority_level,
  last_update, created_at, updated_at`

const upsertShipmentSQL = `
INSERT INTO shipments (` + shipmentColumns + `
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$25)
ON CONFLICT (owner_id, shipment_id) DO UPDATE SET
  name = EXCLUDED.name,
  shipment_type = EXCLUDED.shipment_type,
  provider = EXCLUDED.provider,
  status = EXCLUDED.status,
  latitude = EXCLUDED.latitude,
  longitude = EXCLUDED.longitude,
  current_location = EXCLUDED.current_location,
  speed = EXCLUDED.speed,
  course = EXCLUDED.course,
  altitude = EXCLUDED.altitude,
  battery_level = EXCLUDED.battery_level,
  battery_estimated = EXCLUDED.battery_estimated,
  temperature = EXCLUDED.temperature,
  humidity = EXCLUDED.humidity,
  target_temp_min = EXCLUDED.target_temp_min,
  target_temp_max = EXCLUDED.target_temp_max,
  current_geofence = EXCLUDED.current_geofence,
  tracking_active = EXCLUDED.tracking_active,
  device_status = EXCLUDED.device_status,
  exception_count = EXCLUDED.exception_count,
  priority_level = EXCLUDED.priority_level,
  last_update = COALESCE(EXCLUDED.last_update, shipments.last_update),
  updated_at = EXCLUDED.updated_at
`

// UpsertShipments пишет всю пачку одной транзакцией: shipments + дневной леджер.
// Любая ошибка откатывает всё.
func (s *Storage) UpsertShipments(ctx context.Context, ownerID string, items []*models.Shipment, day time.Time) error {
	if len(items) == 0 {
		return nil
	}
	now := time.Now().UTC()
	day = day.UTC().Truncate(24 * time.Hour)

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(models.ErrPersistence, fmt.Sprintf("begin tx: %v", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b := &pgx.Batch{}
	for _, it := range items {
		b.Queue(upsertShipmentSQL,
			ownerID, it.ShipmentID, it.Name, it.ShipmentType, it.Provider, string(it.Status),
			it.Latitude, it.Longitude, it.CurrentLocation, it.Speed, it.Course, it.Altitude,
			it.BatteryLevel, it.BatteryEstimated,
			it.Temperature, it.Humidity, it.TargetTempMin, it.TargetTempMax, it.CurrentGeofence,
			it.TrackingActive, it.DeviceStatus, it.ExceptionCount, string(it.PriorityLevel),
			utcPtr(it.LastUpdate), now,
		)
		b.Queue(`
INSERT INTO tracked_shipments (owner_id, shipment_id, day, created_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (owner_id, shipment_id, day) DO NOTHING
`, ownerID, it.ShipmentID, day, now)
	}

	br := tx.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return errors.Wrap(models.ErrPersistence, fmt.Sprintf("upsert shipments: %v", err))
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

func (s *Storage) ListShipments(ctx context.Context, ownerID string) ([]*models.Shipment, error) {
	rows, err := s.db.Query(ctx, `SELECT `+shipmentColumns+`
FROM shipments
WHERE owner_id = $1
ORDER BY shipment_id ASC
`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "select shipments")
	}
	defer rows.Close()

	out := make([]*models.Shipment, 0)
	for rows.Next() {
		var sh models.Shipment
		var status, priority string
		if err := rows.Scan(
			&sh.OwnerID, &sh.ShipmentID, &sh.Name, &sh.ShipmentType, &sh.Provider, &status,
			&sh.Latitude, &sh.Longitude, &sh.CurrentLocation, &sh.Speed, &sh.Course, &sh.Altitude,
			&sh.BatteryLevel, &sh.BatteryEstimated,
			&sh.Temperature, &sh.Humidity, &sh.TargetTempMin, &sh.TargetTempMax, &sh.CurrentGeofence,
			&sh.TrackingActive, &sh.DeviceStatus, &sh.ExceptionCount, &priority,
			&sh.LastUpdate, &sh.CreatedAt, &sh.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		sh.Status = models.ShipmentStatus(status)
		sh.PriorityLevel = models.PriorityLevel(priority)
		sh.LastUpdate = utcPtr(sh.LastUpdate)
		sh.CreatedAt = sh.CreatedAt.UTC()
		sh.UpdatedAt = sh.UpdatedAt.UTC()
		out = append(out, &sh)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (s *Storage) ListTrackedToday(ctx context.Context, ownerID string, day time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `
SELECT shipment_id
FROM tracked_shipments
WHERE owner_id = $1 AND day = $2
ORDER BY shipment_id ASC
`, ownerID, day.UTC().Truncate(24*time.Hour))
	if err != nil {
		return nil, errors.Wrap(err, "select tracked shipments")
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan tracked shipment")
		}
		out = append(out, id)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
