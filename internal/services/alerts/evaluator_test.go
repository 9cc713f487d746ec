package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/FleetSync/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type repoMock struct {
	mock.Mock
}

func (m *repoMock) InsertAlerts(ctx context.Context, alerts []*models.Alert) error {
	args := m.Called(ctx, alerts)
	return args.Error(0)
}

type sinkMock struct {
	mock.Mock
}

func (m *sinkMock) Name() string { return "mock" }

func (m *sinkMock) Publish(ctx context.Context, alerts []*models.Alert) error {
	args := m.Called(ctx, alerts)
	return args.Error(0)
}

func fp(v float64) *float64 { return &v }

func coldChain(id string, temp float64) *models.Shipment {
	return &models.Shipment{
		ShipmentID:    id,
		BatteryLevel:  92,
		Temperature:   fp(temp),
		TargetTempMin: fp(-80),
		TargetTempMax: fp(-65),
	}
}

type EvaluatorSuite struct {
	suite.Suite
	repo *repoMock
	sink *sinkMock
	now  time.Time
	e    *Evaluator
}

func (s *EvaluatorSuite) SetupTest() {
	s.repo = &repoMock{}
	s.sink = &sinkMock{}
	s.now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	s.e = New(s.repo, NewMemoryCooldown().WithClock(clock)).
		WithClock(clock).
		WithSinks(s.sink)
}

func (s *EvaluatorSuite) TestTemperatureInRange_NoAlert() {
	got, err := s.e.Evaluate(context.Background(), "o", []*models.Shipment{coldChain("TIVE-1", -72)})
	s.Require().NoError(err)
	s.Require().Empty(got)
	s.repo.AssertNotCalled(s.T(), "InsertAlerts", mock.Anything, mock.Anything)
}

func (s *EvaluatorSuite) TestTemperatureExcursion_OneCritical() {
	s.repo.On("InsertAlerts", mock.Anything, mock.MatchedBy(func(a []*models.Alert) bool {
		return len(a) == 1 && a[0].AlertType == models.AlertTemperatureExcursion
	})).Return(nil).Once()
	s.sink.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	got, err := s.e.Evaluate(context.Background(), "o", []*models.Shipment{coldChain("TIVE-1", -50)})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Require().Equal(models.SeverityCritical, got[0].Severity)
	s.Require().Equal("Temperature out of range: -50°C (Target: -80°C to -65°C)", got[0].Message)
	s.Require().Equal("o", got[0].OwnerID)
	s.Require().NotEmpty(got[0].ID)
	s.Require().Equal(s.now, got[0].CreatedAt)
	s.repo.AssertExpectations(s.T())
	s.sink.AssertExpectations(s.T())
}

func (s *EvaluatorSuite) TestCooldown_SameDaySuppressed() {
	s.repo.On("InsertAlerts", mock.Anything, mock.Anything).Return(nil).Twice()
	s.sink.On("Publish", mock.Anything, mock.Anything).Return(nil)

	low := &models.Shipment{ShipmentID: "TRACCAR-1", BatteryLevel: 15}
	got, err := s.e.Evaluate(context.Background(), "o", []*models.Shipment{low})
	s.Require().NoError(err)
	s.Require().Len(got, 1)

	s.now = s.now.Add(30 * time.Second)
	got, err = s.e.Evaluate(context.Background(), "o", []*models.Shipment{low})
	s.Require().NoError(err)
	s.Require().Empty(got)

	// другой владелец не делит кулдаун
	got, err = s.e.Evaluate(context.Background(), "o2", []*models.Shipment{low})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.repo.AssertExpectations(s.T())
}

func (s *EvaluatorSuite) TestInsertFailure_ReleasesSlots() {
	s.repo.On("InsertAlerts", mock.Anything, mock.Anything).Return(models.ErrPersistence).Once()
	low := &models.Shipment{ShipmentID: "TRACCAR-1", BatteryLevel: 25}

	_, err := s.e.Evaluate(context.Background(), "o", []*models.Shipment{low})
	s.Require().ErrorIs(err, models.ErrPersistence)
	s.sink.AssertNotCalled(s.T(), "Publish", mock.Anything, mock.Anything)

	s.repo.On("InsertAlerts", mock.Anything, mock.Anything).Return(nil).Once()
	s.sink.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()
	got, err := s.e.Evaluate(context.Background(), "o", []*models.Shipment{low})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Require().Equal(models.SeverityWarning, got[0].Severity)
}

func (s *EvaluatorSuite) TestSinkFailure_NotFatal() {
	s.repo.On("InsertAlerts", mock.Anything, mock.Anything).Return(nil).Once()
	s.sink.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	got, err := s.e.Evaluate(context.Background(), "o", []*models.Shipment{{ShipmentID: "X", BatteryLevel: 5}})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
}

func TestEvaluatorSuite(t *testing.T) {
	suite.Run(t, new(EvaluatorSuite))
}

func TestRules(t *testing.T) {
	msg, sev, ok := lowBattery(&models.Shipment{BatteryLevel: 19})
	require.True(t, ok)
	require.Equal(t, models.SeverityCritical, sev)
	require.Equal(t, "Battery critically low: 19%", msg)

	_, sev, ok = lowBattery(&models.Shipment{BatteryLevel: 29})
	require.True(t, ok)
	require.Equal(t, models.SeverityWarning, sev)

	_, _, ok = lowBattery(&models.Shipment{BatteryLevel: 30})
	require.False(t, ok)

	_, _, ok = lowBattery(&models.Shipment{BatteryLevel: 10, BatteryEstimated: true})
	require.False(t, ok)

	// без одной из границ алерта нет
	_, _, ok = temperatureExcursion(&models.Shipment{Temperature: fp(10), TargetTempMin: fp(2)})
	require.False(t, ok)

	_, _, ok = temperatureExcursion(&models.Shipment{Temperature: fp(-65), TargetTempMin: fp(-80), TargetTempMax: fp(-65)})
	require.False(t, ok)
}

func TestMemoryCooldown_Window(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	cd := NewMemoryCooldown().WithClock(func() time.Time { return now })

	ok, _ := cd.Acquire(context.Background(), "k", time.Hour)
	require.True(t, ok)
	ok, _ = cd.Acquire(context.Background(), "k", time.Hour)
	require.False(t, ok)

	now = now.Add(time.Hour)
	ok, _ = cd.Acquire(context.Background(), "k", time.Hour)
	require.True(t, ok)
}

func TestCooldownKey(t *testing.T) {
	now := time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)
	e := New(nil, nil)
	require.Equal(t, "o|s|low_battery|2025-03-01", e.cooldownKey("o", "s", models.AlertLowBattery, now))

	e.WithWindow(time.Hour)
	require.Equal(t, "o|s|low_battery", e.cooldownKey("o", "s", models.AlertLowBattery, now))
}
