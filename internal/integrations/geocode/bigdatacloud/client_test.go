package bigdatacloud

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestClient_Reverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/data/reverse-geocode-client", r.URL.Path)
		require.Equal(t, "51.5", r.URL.Query().Get("latitude"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("longitude") {
		case "-0.12":
			_, _ = w.Write([]byte(`{"city": "London", "locality": "Westminster"}`))
		case "1":
			_, _ = w.Write([]byte(`{"city": "", "locality": "", "principalSubdivision": "Kent"}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	addr, err := c.Reverse(context.Background(), 51.5, -0.12)
	require.NoError(t, err)
	require.Equal(t, "London", addr)

	addr, err = c.Reverse(context.Background(), 51.5, 1)
	require.NoError(t, err)
	require.Equal(t, "Kent", addr)

	_, err = c.Reverse(context.Background(), 51.5, 2)
	require.True(t, errors.Is(err, models.ErrGeocodeUnavailable))
}

func TestClient_Reverse_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Reverse(context.Background(), 1, 2)
	require.Error(t, err)
	require.True(t, errors.Is(err, models.ErrGeocodeUnavailable))
}
