package alerts

import (
	"context"

	"github.com/BearBump/FleetSync/internal/broker/messages"
	"github.com/BearBump/FleetSync/internal/models"
	"github.com/pkg/errors"
)

// Sink receives alerts after they are stored. Failures are logged by the
// evaluator and never fail a sync.
type Sink interface {
	Name() string
	Publish(ctx context.Context, alerts []*models.Alert) error
}

type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

// KafkaSink writes one AlertRaised message per alert, keyed by owner.
type KafkaSink struct {
	pub   Publisher
	topic string
}

func NewKafkaSink(pub Publisher, topic string) *KafkaSink {
	return &KafkaSink{pub: pub, topic: topic}
}

func (k *KafkaSink) Name() string { return "kafka" }

func (k *KafkaSink) Publish(ctx context.Context, alerts []*models.Alert) error {
	for _, a := range alerts {
		if err := k.pub.PublishJSON(ctx, k.topic, a.OwnerID, messages.NewAlertRaised(a)); err != nil {
			return errors.Wrapf(err, "alert %s", a.ID)
		}
	}
	return nil
}
