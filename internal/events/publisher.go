package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/beauchbot/beauchbot-go/internal/dispatch"
)

var errProducerNotInitialised = errors.New("events publisher: producer not initialised")

// SyncProducer captures the subset of producer behaviour required by the
// dispatch publisher.
type SyncProducer interface {
	PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error
}

// ErrProducerNotInitialised exposes the sentinel error for callers and tests.
func ErrProducerNotInitialised() error {
	return errProducerNotInitialised
}

// DispatchEvent records the outcome of a message send for downstream
// consumers. One event is emitted per dispatcher call, successful or not.
type DispatchEvent struct {
	EventID         string                        `json:"event_id"`
	OccurredAt      string                        `json:"occurred_at"`
	Type            string                        `json:"type"`
	ToNumbers       []string                      `json:"to_numbers,omitempty"`
	MessageSID      string                        `json:"message_sid,omitempty"`
	ConversationSID string                        `json:"conversation_sid,omitempty"`
	ReusedExisting  *bool                         `json:"reused_existing,omitempty"`
	Failed          []dispatch.ParticipantOutcome `json:"participants_failed,omitempty"`
	Error           string                        `json:"error,omitempty"`
}

// NewDispatchEvent flattens a send result into an event with a fresh ID.
func NewDispatchEvent(toNumbers []string, result *dispatch.SendResult) DispatchEvent {
	ev := DispatchEvent{
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
		ToNumbers:  toNumbers,
	}
	if result == nil {
		return ev
	}
	ev.Type = result.Type
	ev.MessageSID = result.MessageSID
	ev.ConversationSID = result.ConversationSID
	ev.ReusedExisting = result.ReusedExisting
	ev.Failed = result.ParticipantsFailed
	ev.Error = result.Error
	return ev
}

// DispatchPublisher emits dispatch events to a Kafka topic using the shared
// producer.
type DispatchPublisher struct {
	producer SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewDispatchPublisher constructs a DispatchPublisher instance. A nil producer
// yields a nil publisher, which publishes as a no-op error.
func NewDispatchPublisher(prod SyncProducer, topic string, logger zerolog.Logger) *DispatchPublisher {
	if prod == nil {
		return nil
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &DispatchPublisher{
		producer: prod,
		topic:    topic,
		logger:   logger,
	}
}

// PublishDispatch writes the supplied dispatch event to Kafka synchronously.
func (p *DispatchPublisher) PublishDispatch(_ context.Context, event DispatchEvent) error {
	if p == nil || p.producer == nil {
		return errProducerNotInitialised
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events publisher: marshal dispatch event: %w", err)
	}

	key := []byte(event.EventID)
	headers := map[string][]byte{
		"content-type": []byte("application/json"),
	}

	if err := p.producer.PublishSync(p.topic, cloneBytes(key), headers, payload); err != nil {
		return fmt.Errorf("events publisher: publish dispatch event: %w", err)
	}
	return nil
}
