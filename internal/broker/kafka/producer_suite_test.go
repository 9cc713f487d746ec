package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BearBump/FleetSync/internal/broker/messages"
	"github.com/BearBump/FleetSync/internal/models"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type writerMock struct {
	mock.Mock
}

func (m *writerMock) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

type ProducerSuite struct {
	suite.Suite
	wm *writerMock
	p  *Producer
}

func (s *ProducerSuite) SetupTest() {
	s.wm = &writerMock{}
	s.p = newProducerWithWriter(s.wm)
}

func single(topic, key string, check func(value []byte) bool) any {
	return mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 1 && msgs[0].Topic == topic && string(msgs[0].Key) == key && check(msgs[0].Value)
	})
}

func (s *ProducerSuite) TestPublishAlertRaised() {
	a := &models.Alert{
		ID:         "a-1",
		OwnerID:    "owner-1",
		ShipmentID: "SENSOLUS-7",
		AlertType:  models.AlertLowBattery,
		Severity:   models.SeverityCritical,
		Message:    "Battery level critically low: 8%",
		CreatedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	s.wm.On("WriteMessages", mock.Anything, single("shipment.alerts", "owner-1", func(v []byte) bool {
		var got messages.AlertRaised
		return json.Unmarshal(v, &got) == nil && got.AlertType == "low_battery" && got.Severity == "critical"
	})).Return(nil).Once()

	s.Require().NoError(s.p.PublishJSON(context.Background(), "shipment.alerts", a.OwnerID, messages.NewAlertRaised(a)))
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestPublishShipmentsSynced() {
	res := models.SyncResult{
		RunID:      "r-1",
		OwnerID:    "owner-2",
		Success:    true,
		TotalCount: 3,
		Breakdown:  map[string]int{"traccar": 2, "sensolus": 1},
	}
	s.wm.On("WriteMessages", mock.Anything, single("shipments.synced", "owner-2", func(v []byte) bool {
		var got messages.ShipmentsSynced
		return json.Unmarshal(v, &got) == nil && got.TotalCount == 3 && got.Breakdown["traccar"] == 2
	})).Return(nil).Once()

	s.Require().NoError(s.p.PublishJSON(context.Background(), "shipments.synced", res.OwnerID, messages.NewShipmentsSynced(res)))
	s.wm.AssertExpectations(s.T())
}

func (s *ProducerSuite) TestPublish_ErrorWrapped() {
	s.wm.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker unreachable")).Once()

	err := s.p.PublishJSON(context.Background(), "shipment.alerts", "owner-1", messages.AlertRaised{})
	s.Require().ErrorContains(err, "kafka publish")
	s.wm.AssertExpectations(s.T())
}

func TestProducerSuite(t *testing.T) {
	suite.Run(t, new(ProducerSuite))
}
