package natsbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/FleetSync/internal/broker/messages"
	"github.com/BearBump/FleetSync/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// AlertSink publishes every alert to <prefix>.<owner_id>, so a subscriber can
// listen to one owner or to <prefix>.> for all of them.
type AlertSink struct {
	nc     *nats.Conn
	prefix string
}

func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("fleetsync"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}
	return nc, nil
}

func NewAlertSink(nc *nats.Conn, prefix string) *AlertSink {
	if prefix == "" {
		prefix = "fleetsync.alerts"
	}
	return &AlertSink{nc: nc, prefix: prefix}
}

func (s *AlertSink) Name() string { return "nats" }

func (s *AlertSink) Subject(ownerID string) string {
	return s.prefix + "." + ownerID
}

func (s *AlertSink) Publish(ctx context.Context, alerts []*models.Alert) error {
	for _, a := range alerts {
		b, err := json.Marshal(messages.NewAlertRaised(a))
		if err != nil {
			return errors.Wrap(err, "marshal alert")
		}
		if err := s.nc.Publish(s.Subject(a.OwnerID), b); err != nil {
			return errors.Wrap(err, "nats publish")
		}
	}
	// Flush отдаёт ошибку соединения сразу, а не на следующем publish.
	// FlushWithContext требует дедлайн в контексте.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := s.nc.FlushWithContext(ctx); err != nil {
		return errors.Wrap(err, "nats flush")
	}
	return nil
}
