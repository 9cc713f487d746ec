package pgshipments

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS shipments (
  owner_id TEXT NOT NULL,
  shipment_id TEXT NOT NULL,
  name TEXT NOT NULL,
  shipment_type TEXT NOT NULL DEFAULT '',
  provider TEXT NOT NULL,
  status TEXT NOT NULL,
  latitude DOUBLE PRECISION NULL,
  longitude DOUBLE PRECISION NULL,
  current_location TEXT NOT NULL DEFAULT '',
  speed DOUBLE PRECISION NULL,
  course DOUBLE PRECISION NULL,
  altitude DOUBLE PRECISION NULL,
  battery_level INT NOT NULL,
  battery_estimated BOOLEAN NOT NULL DEFAULT FALSE,
  temperature DOUBLE PRECISION NULL,
  humidity DOUBLE PRECISION NULL,
  target_temp_min DOUBLE PRECISION NULL,
  target_temp_max DOUBLE PRECISION NULL,
  current_geofence TEXT NULL,
  tracking_active BOOLEAN NOT NULL,
  device_status TEXT NOT NULL DEFAULT '',
  exception_count INT NOT NULL DEFAULT 0,
  priority_level TEXT NOT NULL,
  last_update TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (owner_id, shipment_id)
)`,
		`ALTER TABLE shipments ALTER COLUMN last_update DROP NOT NULL`,
		`
CREATE TABLE IF NOT EXISTS alerts (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  shipment_id TEXT NOT NULL,
  alert_type TEXT NOT NULL,
  message TEXT NOT NULL,
  severity TEXT NOT NULL,
  acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
  muted BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_owner_created_at ON alerts(owner_id, created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS tracked_shipments (
  owner_id TEXT NOT NULL,
  shipment_id TEXT NOT NULL,
  day DATE NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (owner_id, shipment_id, day)
)`,
		`
CREATE TABLE IF NOT EXISTS sync_schedules (
  owner_id TEXT PRIMARY KEY,
  next_sync_at TIMESTAMPTZ NOT NULL,
  last_synced_at TIMESTAMPTZ NULL,
  fail_count INT NOT NULL DEFAULT 0,
  last_error TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_schedules_next_sync_at ON sync_schedules(next_sync_at)`,
		`
CREATE TABLE IF NOT EXISTS alert_cooldowns (
  key TEXT PRIMARY KEY,
  expires_at TIMESTAMPTZ NOT NULL
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
