package pgshipments

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "fleetsync_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/fleetsync_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func fp(v float64) *float64 { return &v }

func tp(t time.Time) *time.Time { return &t }

func shipment(id string, battery int) *models.Shipment {
	return &models.Shipment{
		ShipmentID:      id,
		Name:            "Device " + id,
		ShipmentType:    "gps-device",
		Provider:        "traccar",
		Status:          models.StatusInTransit,
		Latitude:        fp(51.5),
		Longitude:       fp(-0.12),
		CurrentLocation: "London",
		Speed:           fp(42.5),
		BatteryLevel:    battery,
		TrackingActive:  true,
		DeviceStatus:    "online",
		PriorityLevel:   models.PriorityStandard,
		LastUpdate:      tp(time.Date(2025, 3, 1, 11, 58, 0, 0, time.UTC)),
	}
}

func TestPGShipments_UpsertFlow(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)

	require.NoError(t, st.UpsertShipments(ctx, "owner-1", []*models.Shipment{
		shipment("TRACCAR-1", 87), shipment("TRACCAR-2", 50),
	}, day))

	first, err := st.ListShipments(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, "owner-1", first[0].OwnerID)
	require.Nil(t, first[0].Temperature)

	// повторный sync: строки перезаписываются, не дублируются
	upd := shipment("TRACCAR-1", 15)
	upd.Temperature = fp(4.5)
	require.NoError(t, st.UpsertShipments(ctx, "owner-1", []*models.Shipment{upd, shipment("TRACCAR-2", 50)}, day))

	second, err := st.ListShipments(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.Equal(t, 15, second[0].BatteryLevel)
	require.Equal(t, 4.5, *second[0].Temperature)
	require.True(t, first[0].CreatedAt.Equal(second[0].CreatedAt))
	require.True(t, first[1].SameBusinessFields(second[1]))

	tracked, err := st.ListTrackedToday(ctx, "owner-1", day)
	require.NoError(t, err)
	require.Equal(t, []string{"TRACCAR-1", "TRACCAR-2"}, tracked)

	other, err := st.ListShipments(ctx, "owner-2")
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestPGShipments_UpsertRollback(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	bad := shipment("TRACCAR-9", 10)
	bad.Name = string([]byte{0xff, 0xfe}) // invalid UTF-8 breaks the whole batch
	err := st.UpsertShipments(ctx, "owner-1", []*models.Shipment{shipment("TRACCAR-1", 80), bad}, time.Now())
	require.ErrorIs(t, err, models.ErrPersistence)

	got, err := st.ListShipments(ctx, "owner-1")
	require.NoError(t, err)
	require.Empty(t, got)
	tracked, err := st.ListTrackedToday(ctx, "owner-1", time.Now())
	require.NoError(t, err)
	require.Empty(t, tracked)
}

func TestPGShipments_Alerts(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.InsertAlerts(ctx, []*models.Alert{
		{ID: "a1", OwnerID: "o", ShipmentID: "TIVE-1", AlertType: models.AlertLowBattery, Message: "Battery low: 15%", Severity: models.SeverityCritical, CreatedAt: now.Add(-time.Minute)},
		{ID: "a2", OwnerID: "o", ShipmentID: "TIVE-1", AlertType: models.AlertTemperatureExcursion, Message: "t", Severity: models.SeverityCritical, CreatedAt: now},
	}))

	got, err := st.ListAlerts(ctx, "o", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a2", got[0].ID)
	require.Equal(t, models.AlertTemperatureExcursion, got[0].AlertType)

	got, err = st.ListAlerts(ctx, "o", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestPGShipments_Schedules(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.EnsureSchedules(ctx, []string{"o1", "o2"}, now.Add(-time.Minute)))
	require.NoError(t, st.EnsureSchedules(ctx, []string{"o1"}, now.Add(time.Hour)))
	_, err := st.db.Exec(ctx, `UPDATE sync_schedules SET next_sync_at = now() + interval '1 hour' WHERE owner_id = 'o2'`)
	require.NoError(t, err)

	lease := 10 * time.Second
	due, err := st.ClaimDueOwners(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "o1", due[0].OwnerID)
	require.WithinDuration(t, now.Add(lease), due[0].NextSyncAt, 2*time.Second)

	again, err := st.ClaimDueOwners(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Empty(t, again)

	msg := "boom"
	require.NoError(t, st.Reschedule(ctx, models.ScheduleUpdate{OwnerID: "o1", SyncedAt: now, NextSyncAt: now.Add(-time.Second), Error: &msg}))
	due, err = st.ClaimDueOwners(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, int32(1), due[0].FailCount)
	require.Equal(t, "boom", *due[0].LastError)

	require.NoError(t, st.Reschedule(ctx, models.ScheduleUpdate{OwnerID: "o1", SyncedAt: now, NextSyncAt: now.Add(-time.Second)}))
	require.NoError(t, st.RequestSync(ctx, "o2"))
	due, err = st.ClaimDueOwners(ctx, time.Now().UTC().Add(time.Second), 10, lease)
	require.NoError(t, err)
	require.Len(t, due, 2)
	for _, d := range due {
		require.Zero(t, d.FailCount)
	}
}

func TestPGShipments_AdvisoryLocker(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	api := NewAdvisoryLocker(st)
	worker := NewAdvisoryLocker(st)

	token, ok, err := api.TryLock(ctx, "sync:owner:o-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// второй процесс не может взять тот же ключ, но берёт другой
	_, ok, err = worker.TryLock(ctx, "sync:owner:o-1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
	other, ok, err := worker.TryLock(ctx, "sync:owner:o-2", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, worker.Unlock(ctx, "sync:owner:o-2", other))

	require.NoError(t, api.Unlock(ctx, "sync:owner:o-1", token))
	token, ok, err = worker.TryLock(ctx, "sync:owner:o-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, worker.Unlock(ctx, "sync:owner:o-1", token))

	// чужой токен ничего не делает
	require.NoError(t, api.Unlock(ctx, "sync:owner:o-1", "unknown"))
}

func TestPGShipments_Cooldown(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cd := NewCooldown(st).WithClock(func() time.Time { return now })

	ok, err := cd.Acquire(ctx, "alert:o:TIVE-1:low_battery", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = cd.Acquire(ctx, "alert:o:TIVE-1:low_battery", time.Hour)
	require.NoError(t, err)
	require.False(t, ok)

	now = now.Add(time.Hour)
	ok, err = cd.Acquire(ctx, "alert:o:TIVE-1:low_battery", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, cd.Release(ctx, "alert:o:TIVE-1:low_battery"))
	ok, err = cd.Acquire(ctx, "alert:o:TIVE-1:low_battery", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
}
