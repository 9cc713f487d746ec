package mocks

import (
	"context"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListShipments(ctx context.Context, ownerID string) ([]*models.Shipment, error) {
	args := m.Called(ctx, ownerID)
	out, _ := args.Get(0).([]*models.Shipment)
	return out, args.Error(1)
}

func (m *MockRepository) ListAlerts(ctx context.Context, ownerID string, limit int) ([]*models.Alert, error) {
	args := m.Called(ctx, ownerID, limit)
	out, _ := args.Get(0).([]*models.Alert)
	return out, args.Error(1)
}

func (m *MockRepository) ListTrackedToday(ctx context.Context, ownerID string, day time.Time) ([]string, error) {
	args := m.Called(ctx, ownerID, day)
	out, _ := args.Get(0).([]string)
	return out, args.Error(1)
}

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) RunSync(ctx context.Context, ownerID string) (models.SyncResult, error) {
	args := m.Called(ctx, ownerID)
	res, _ := args.Get(0).(models.SyncResult)
	return res, args.Error(1)
}
