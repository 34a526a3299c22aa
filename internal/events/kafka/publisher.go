// Package kafka publishes domain events to a Kafka topic. The writer is
// wrapped in a circuit breaker and retry so a flaky broker degrades to
// dropped events instead of slow requests.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"github.com/okarlsen/splitbook/internal/domain"
	"github.com/okarlsen/splitbook/internal/infra/resilience"
	"github.com/okarlsen/splitbook/internal/port"
)

// envelope is the wire form of every event.
type envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher writes JSON events to one topic, keyed by event type so
// consumers see per-type ordering.
type Publisher struct {
	writer  *kafka.Writer
	breaker *gobreaker.CircuitBreaker
	retry   resilience.Config
}

var _ port.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a Publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string, retry resilience.Config) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
		breaker: resilience.NewCircuitBreaker("kafka"),
		retry:   retry,
	}
}

// Publish marshals the payload into an envelope and writes it, retrying
// transient failures behind the circuit breaker.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    data,
	})
	if err != nil {
		return err
	}

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, p.retry, func() error {
			return p.writer.WriteMessages(ctx, kafka.Message{
				Key:   []byte(eventType),
				Value: value,
			})
		})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: "kafka"}
	}
	if err != nil {
		return &domain.ErrExternalService{Service: "kafka", Err: err}
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
