package tive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/FleetSync/internal/integrations/provider"
	"github.com/BearBump/FleetSync/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestClient_Fetch_ColdChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/devices", r.URL.Path)
		require.Equal(t, "k1", r.URL.Query().Get("apiKey"))
		_, _ = w.Write([]byte(`{"devices": [
  {"id": "001", "name": "Tive Tracker Alpha", "status": "active",
   "battery": {"percentage": 0, "voltage": 3.9},
   "temperature": -72, "temperatureThreshold": {"min": -80, "max": -60},
   "location": {"latitude": 52.52, "longitude": 13.405, "speed": 40, "timestamp": "2025-03-01T10:00:00Z"}},
  {"id": "002", "battery": {"voltage": 3.6}, "lastSeen": "2025-03-01T09:00:00Z"}
]}`))
	}))
	defer srv.Close()

	out, err := New(srv.URL, "k1", time.Second).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)

	a := out[0]
	require.Equal(t, "TIVE-001", a.ShipmentID())
	require.Equal(t, -80.0, *a.TargetTempMin)
	require.Equal(t, -60.0, *a.TargetTempMax)
	require.Equal(t, -72.0, *a.Temperature)
	require.Equal(t, 40.0, *a.Speed)
	require.Equal(t, provider.SpeedKmh, a.SpeedUnit)
	// explicit 0% is a real reading and comes first
	require.Len(t, a.Battery, 2)
	require.Equal(t, provider.BatteryPercent, a.Battery[0].Unit)
	require.Equal(t, 0.0, a.Battery[0].Value)

	b := out[1]
	require.Equal(t, "Tive 002", b.Name)
	require.Equal(t, "multi-sensor", b.ShipmentType)
	require.False(t, b.HasPosition())
	require.Nil(t, b.TargetTempMin)
	require.NotNil(t, b.Timestamp)
	require.Len(t, b.Battery, 1)
	require.Equal(t, provider.BatteryVolts, b.Battery[0].Unit)
}

func TestClient_Fetch_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k", time.Second).Fetch(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, models.ErrProviderUnavailable))
}
