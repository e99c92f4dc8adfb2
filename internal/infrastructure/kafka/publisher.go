package kafkabus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-auth-core/internal/config"
	"github.com/segmentio/kafka-go"
)

// envelope is the wire shape of every published event.
type envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Publisher writes lifecycle events to a single Kafka topic, keyed by account
// id so all events for one account land in the same partition, in order.
type Publisher struct {
	writer *kafka.Writer
	topic  string
}

func NewPublisher(cfg *config.Config) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Publisher{writer: writer, topic: cfg.KafkaTopic}
}

// Publish JSON-encodes payload and writes it under eventType. The write is
// synchronous; callers decide whether a failure is fatal (most treat events
// as best-effort after the state change has been persisted).
func (p *Publisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	env, err := json.Marshal(envelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: env,
	})
	if err != nil {
		slog.Warn("failed to publish event", "type", eventType, "key", key, "err", err)
		return err
	}
	return nil
}

// Close flushes pending messages and releases the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
