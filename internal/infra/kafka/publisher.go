package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketstock/internal/domain/event"

	"github.com/segmentio/kafka-go"
)

// Publisher turns domain events into enveloped kafka messages.
type Publisher struct {
	producer *Producer
	service  string
}

func NewPublisher(p *Producer, service string) *Publisher {
	return &Publisher{producer: p, service: service}
}

var _ event.Publisher = (*Publisher)(nil)

func (p *Publisher) Publish(ctx context.Context, ev event.Event) error {
	env, err := NewEnvelope(p.service, ev, time.Now())
	if err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return p.producer.Publish(ctx, []byte(ev.Key), b,
		kafka.Header{Key: "x-event-type", Value: []byte(ev.Type)},
		kafka.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
