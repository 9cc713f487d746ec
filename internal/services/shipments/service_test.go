package shipments

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	listCalls int
	shipments []*models.Shipment
}

func (f *fakeRepo) ListShipments(ctx context.Context, ownerID string) ([]*models.Shipment, error) {
	f.listCalls++
	return f.shipments, nil
}

func (f *fakeRepo) ListAlerts(ctx context.Context, ownerID string, limit int) ([]*models.Alert, error) {
	return nil, nil
}

func (f *fakeRepo) ListTrackedToday(ctx context.Context, ownerID string, day time.Time) ([]string, error) {
	return nil, nil
}

type fakeCache struct {
	m map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok := c.m[key]
	return b, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.m[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	delete(c.m, key)
	return nil
}

func TestService_GetShipments_cachedUntilInvalidated(t *testing.T) {
	r := &fakeRepo{shipments: []*models.Shipment{{OwnerID: "o", ShipmentID: "TRACCAR-1"}}}
	c := &fakeCache{m: map[string][]byte{}}
	s := New(r, nil, c, time.Minute)

	for i := 0; i < 3; i++ {
		out, err := s.GetShipments(context.Background(), "o")
		require.NoError(t, err)
		require.Len(t, out, 1)
	}
	require.Equal(t, 1, r.listCalls)

	s.Invalidate(context.Background(), "o")
	_, err := s.GetShipments(context.Background(), "o")
	require.NoError(t, err)
	require.Equal(t, 2, r.listCalls)
}

func TestService_NoCache(t *testing.T) {
	r := &fakeRepo{}
	s := New(r, nil, nil, 0)
	out, err := s.GetShipments(context.Background(), "o")
	require.NoError(t, err)
	require.Empty(t, out)

	s.Invalidate(context.Background(), "o")
	_, err = s.RunSync(context.Background(), "o")
	require.ErrorIs(t, err, models.ErrConfiguration)
}
