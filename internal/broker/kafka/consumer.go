package kafka

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// ErrMalformed marks a record the handler can never process. The consumer
// commits it and moves on instead of stopping the topic.
var ErrMalformed = errors.New("malformed message")

// Record is what handlers see of a fetched message.
type Record struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
}

type Handler func(ctx context.Context, rec Record) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       messageReader
	skipped atomic.Int64
}

// NewConsumer joins groupID on topic. An empty groupID reads the topic
// without offsets, which is only useful in tests.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
		MaxWait:           time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
		cfg.StartOffset = kafka.LastOffset
	} else {
		cfg.Topic = topic
	}
	return &Consumer{r: kafka.NewReader(cfg)}
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Skipped reports how many malformed records were committed without processing.
func (c *Consumer) Skipped() int64 { return c.skipped.Load() }

// Consume runs until ctx is cancelled, a fetch/commit fails, or handler returns
// an error other than ErrMalformed.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "fetch message")
		}

		rec := Record{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       msg.Key,
			Value:     msg.Value,
			Time:      msg.Time,
		}
		if err := handler(ctx, rec); err != nil {
			if !errors.Is(err, ErrMalformed) {
				// commit только при успехе, иначе потеряем сообщение
				return err
			}
			c.skipped.Add(1)
			slog.Warn("kafka message skipped",
				"topic", rec.Topic, "partition", rec.Partition, "offset", rec.Offset, "error", err)
		}

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}
