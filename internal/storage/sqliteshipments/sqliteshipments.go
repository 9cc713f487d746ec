package sqliteshipments

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schemaFS embed.FS

const (
	dayLayout = "2006-01-02"
	// fixed width, so TEXT ordering matches time ordering
	tsLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Storage is the single-file store for local runs. Same contract as pgshipments
// except for the worker schedule, which needs Postgres row locks.
type Storage struct {
	db *sql.DB
}

// New opens (and creates) the database; ":memory:" works for tests.
func New(path string) (*Storage, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// SQLite не любит конкурентную запись
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "read schema")
	}
	if _, err := db.Exec(string(schema)); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "init schema")
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return errors.Wrap(s.db.PingContext(ctx), "sqlite ping")
}

func (s *Storage) Close() {
	_ = s.db.Close()
}

func ts(t time.Time) string { return t.UTC().Format(tsLayout) }

func nullTS(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: ts(*t), Valid: true}
}

func parseTS(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t.UTC()
}

func (s *Storage) UpsertShipments(ctx context.Context, ownerID string, items []*models.Shipment, day time.Time) error {
	if len(items) == 0 {
		return nil
	}
	now := ts(time.Now())
	dayKey := day.UTC().Format(dayLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(models.ErrPersistence, fmt.Sprintf("begin tx: %v", err))
	}
	defer func() { _ = tx.Rollback() }()

	for _, it := range items {
		_, err := tx.ExecContext(ctx, `
INSERT INTO shipments (
  owner_id, shipment_id, name, shipment_type, provider, status,
  latitude, longitude, current_location, speed, course, altitude,
  battery_level, battery_estimated,
  temperature, humidity, target_temp_min, target_temp_max, current_geofence,
  tracking_active, device_status, exception_count, priority_level,
  last_update, created_at, updated_at
)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (owner_id, shipment_id) DO UPDATE SET
  name = excluded.name,
  shipment_type = excluded.shipment_type,
  provider = excluded.provider,
  status = excluded.status,
  latitude = excluded.latitude,
  longitude = excluded.longitude,
  current_location = excluded.current_location,
  speed = excluded.speed,
  course = excluded.course,
  altitude = excluded.altitude,
  battery_level = excluded.battery_level,
  battery_estimated = excluded.battery_estimated,
  temperature = excluded.temperature,
  humidity = excluded.humidity,
  target_temp_min = excluded.target_temp_min,
  target_temp_max = excluded.target_temp_max,
  current_geofence = excluded.current_geofence,
  tracking_active = excluded.tracking_active,
  device_status = excluded.device_status,
  exception_count = excluded.exception_count,
  priority_level = excluded.priority_level,
  last_update = COALESCE(excluded.last_update, shipments.last_update),
  updated_at = excluded.updated_at
`,
			ownerID, it.ShipmentID, it.Name, it.ShipmentType, it.Provider, string(it.Status),
			it.Latitude, it.Longitude, it.CurrentLocation, it.Speed, it.Course, it.Altitude,
			it.BatteryLevel, it.BatteryEstimated,
			it.Temperature, it.Humidity, it.TargetTempMin, it.TargetTempMax, it.CurrentGeofence,
			it.TrackingActive, it.DeviceStatus, it.ExceptionCount, string(it.PriorityLevel),
			nullTS(it.LastUpdate), now, now,
		)
		if err != nil {
			return errors.Wrap(models.ErrPersistence, fmt.Sprintf("upsert shipment %s: %v", it.ShipmentID, err))
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO tracked_shipments (owner_id, shipment_id, day, created_at)
VALUES (?,?,?,?)
ON CONFLICT (owner_id, shipment_id, day) DO NOTHING
`, ownerID, it.ShipmentID, dayKey, now)
		if err != nil {
			return errors.Wrap(models.ErrPersistence, fmt.Sprintf("track shipment %s: %v", it.ShipmentID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(models.ErrPersistence, fmt.Sprintf("commit tx: %v", err))
	}
	return nil
}

func (s *Storage) ListShipments(ctx context.Context, ownerID string) ([]*models.Shipment, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT
  owner_id, shipment_id, name, shipment_type, provider, status,
  latitude, longitude, current_location, speed, course, altitude,
  battery_level, battery_estimated,
  temperature, humidity, target_temp_min, target_temp_max, current_geofence,
  tracking_active, device_status, exception_count, priority_level,
  last_update, created_at, updated_at
FROM shipments
WHERE owner_id = ?
ORDER BY shipment_id ASC
`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "select shipments")
	}
	defer rows.Close()

	out := make([]*models.Shipment, 0)
	for rows.Next() {
		var (
			sh                           models.Shipment
			status, priority             string
			lat, lon, speed, course, alt sql.NullFloat64
			temp, hum, tmin, tmax        sql.NullFloat64
			geofence, lastUpdate         sql.NullString
			createdAt, updatedAt         string
		)
		if err := rows.Scan(
			&sh.OwnerID, &sh.ShipmentID, &sh.Name, &sh.ShipmentType, &sh.Provider, &status,
			&lat, &lon, &sh.CurrentLocation, &speed, &course, &alt,
			&sh.BatteryLevel, &sh.BatteryEstimated,
			&temp, &hum, &tmin, &tmax, &geofence,
			&sh.TrackingActive, &sh.DeviceStatus, &sh.ExceptionCount, &priority,
			&lastUpdate, &createdAt, &updatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		sh.Status = models.ShipmentStatus(status)
		sh.PriorityLevel = models.PriorityLevel(priority)
		sh.Latitude, sh.Longitude = nullFloat(lat), nullFloat(lon)
		sh.Speed, sh.Course, sh.Altitude = nullFloat(speed), nullFloat(course), nullFloat(alt)
		sh.Temperature, sh.Humidity = nullFloat(temp), nullFloat(hum)
		sh.TargetTempMin, sh.TargetTempMax = nullFloat(tmin), nullFloat(tmax)
		if geofence.Valid {
			g := geofence.String
			sh.CurrentGeofence = &g
		}
		if lastUpdate.Valid {
			t := parseTS(lastUpdate.String)
			sh.LastUpdate = &t
		}
		sh.CreatedAt = parseTS(createdAt)
		sh.UpdatedAt = parseTS(updatedAt)
		out = append(out, &sh)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func (s *Storage) ListTrackedToday(ctx context.Context, ownerID string, day time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT shipment_id FROM tracked_shipments
WHERE owner_id = ? AND day = ?
ORDER BY shipment_id ASC
`, ownerID, day.UTC().Format(dayLayout))
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
	return out, errors.Wrap(rows.Err(), "rows")
}

func (s *Storage) InsertAlerts(ctx context.Context, alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(models.ErrPersistence, fmt.Sprintf("begin tx: %v", err))
	}
	defer func() { _ = tx.Rollback() }()

	for _, a := range alerts {
		_, err := tx.ExecContext(ctx, `
INSERT INTO alerts (id, owner_id, shipment_id, alert_type, message, severity, acknowledged, muted, created_at)
VALUES (?,?,?,?,?,?,?,?,?)
`, a.ID, a.OwnerID, a.ShipmentID, string(a.AlertType), a.Message, string(a.Severity), a.Acknowledged, a.Muted, ts(a.CreatedAt))
		if err != nil {
			return errors.Wrap(models.ErrPersistence, fmt.Sprintf("insert alert: %v", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(models.ErrPersistence, fmt.Sprintf("commit tx: %v", err))
	}
	return nil
}

func (s *Storage) ListAlerts(ctx context.Context, ownerID string, limit int) ([]*models.Alert, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, owner_id, shipment_id, alert_type, message, severity, acknowledged, muted, created_at
FROM alerts
WHERE owner_id = ?
ORDER BY created_at DESC, id ASC
LIMIT ?
`, ownerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select alerts")
	}
	defer rows.Close()

	out := make([]*models.Alert, 0)
	for rows.Next() {
		var a models.Alert
		var typ, sev, createdAt string
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.ShipmentID, &typ, &a.Message, &sev, &a.Acknowledged, &a.Muted, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan alert")
		}
		a.AlertType = models.AlertType(typ)
		a.Severity = models.AlertSeverity(sev)
		a.CreatedAt = parseTS(createdAt)
		out = append(out, &a)
	}
	return out, errors.Wrap(rows.Err(), "rows")
}
