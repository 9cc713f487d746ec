package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/BearBump/FleetSync/config"
	"github.com/BearBump/FleetSync/internal/models"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) *config.Config {
	cfg := &config.Config{}
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "fleet.db")
	cfg.Geocoder.Disabled = true
	cfg.Providers.Traccar = config.ProviderConfig{Enabled: true, Mode: "fake", FakeDevices: []string{"1", "2"}}
	cfg.Providers.Tive = config.ProviderConfig{Enabled: true, Mode: "fake", FakeDevices: []string{"T-9"}}
	return cfg.WithDefaults()
}

func TestBuild_SQLiteEndToEnd(t *testing.T) {
	d, err := Build(context.Background(), sqliteConfig(t))
	require.NoError(t, err)
	defer d.Close()

	require.Nil(t, d.Postgres)
	require.Len(t, d.Checks(), 1)

	res, err := d.Shipments.RunSync(context.Background(), "owner-1")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 3, res.TotalCount)

	// повторный sync не плодит записей
	_, err = d.Shipments.RunSync(context.Background(), "owner-1")
	require.NoError(t, err)

	list, err := d.Shipments.GetShipments(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 3)

	tracked, err := d.Shipments.TrackedToday(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, tracked, 3)
}

func TestBuild_MissingCredentials(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Providers.Sensolus = config.ProviderConfig{Enabled: true, Mode: "http", BaseURL: "https://cloud.sensolus.com"}

	_, err := Build(context.Background(), cfg)
	require.ErrorIs(t, err, models.ErrConfiguration)
}

func TestBuild_UnknownDriver(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Storage.Driver = "mongo"

	_, err := Build(context.Background(), cfg)
	require.ErrorIs(t, err, models.ErrConfiguration)
}
