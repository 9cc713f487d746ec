package traccar

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

func TestClient_Fetch_JoinsDevicesAndPositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "u", user)
		require.Equal(t, "p", pass)

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/devices":
			_, _ = w.Write([]byte(`[
  {"id": 1, "name": "Truck 1", "uniqueId": "860001", "status": "online"},
  {"id": 2, "name": "", "uniqueId": "860002", "status": "offline"},
  {"id": 3, "name": "No id", "uniqueId": ""}
]`))
		case "/api/positions":
			_, _ = w.Write([]byte(`[
  {"id": 10, "deviceId": 1, "fixTime": "2025-01-01T10:00:00.000+00:00", "latitude": 52.1, "longitude": 13.2,
   "speed": 10, "course": 90, "altitude": 30, "attributes": {"batteryLevel": 77, "temp": "4.5"}},
  {"id": 11, "deviceId": 1, "fixTime": "2025-01-01T09:00:00.000+00:00", "latitude": 1, "longitude": 1, "speed": 0},
  {"id": 12, "deviceId": 99, "fixTime": "2025-01-01T10:00:00.000+00:00", "latitude": 0, "longitude": 0}
]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/api", "u", "p", time.Second)
	out, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)

	first := out[0]
	require.Equal(t, "860001", first.DeviceID)
	require.Equal(t, "TRACCAR-860001", first.ShipmentID())
	require.Equal(t, provider.SpeedKnots, first.SpeedUnit)
	require.NotNil(t, first.Latitude)
	require.Equal(t, 52.1, *first.Latitude)
	require.NotNil(t, first.Timestamp)
	require.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), *first.Timestamp)
	require.Equal(t, []provider.BatteryReading{{Rule: "attributes.batteryLevel", Value: 77, Unit: provider.BatteryPercent}}, first.Battery)
	require.NotNil(t, first.Temperature)
	require.Equal(t, 4.5, *first.Temperature)

	second := out[1]
	require.Equal(t, "GPS Device 860002", second.Name)
	require.False(t, second.HasPosition())
	require.Nil(t, second.Timestamp)
}

func TestClient_Fetch_HTTPErrorIsProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "u", "bad", time.Second)
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, models.ErrProviderUnavailable))
}

func TestLatestByDevice_NewestFixWins(t *testing.T) {
	m := latestByDevice([]position{
		{ID: 1, DeviceID: 5, FixTime: "2025-01-01T08:00:00Z"},
		{ID: 2, DeviceID: 5, FixTime: "2025-01-01T09:00:00Z"},
		{ID: 3, DeviceID: 5, FixTime: ""},
	})
	require.Equal(t, int64(2), m[5].ID)
}
