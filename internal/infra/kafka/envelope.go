package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"marketstock/internal/domain/event"

	"github.com/google/uuid"
)

// Envelope wraps every payload on the topic.
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	Key          string          `json:"key,omitempty"`
	Payload      json.RawMessage `json:"payload"`
}

func NewEnvelope(producer string, ev event.Event, at time.Time) (Envelope, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", ev.Type, err)
	}
	return Envelope{
		EventID:      uuid.NewString(),
		EventType:    string(ev.Type),
		EventVersion: 1,
		OccurredAt:   at.UTC(),
		Producer:     producer,
		Key:          ev.Key,
		Payload:      payload,
	}, nil
}

// UnwrapPayload decodes the payload of a received envelope.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
