// Package events publishes forward outcome events to NATS. Publishing is
// best-effort telemetry; the pipeline runs unchanged when NATS is absent.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// OutcomeEvent describes the result of one pipeline pass over a message.
type OutcomeEvent struct {
	RunID     uuid.UUID `json:"run_id"`
	ChannelID int64     `json:"channel_id"`
	MessageID int       `json:"message_id"`
	Keywords  []string  `json:"keywords,omitempty"`
	Outcome   string    `json:"outcome"` // sent | rate-limited | error
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher emits outcome events.
type Publisher interface {
	PublishOutcome(ctx context.Context, event OutcomeEvent) error
}

// Conn is the NATS surface used, narrowed to allow mocking.
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes outcome events to telescout.outcome.<kind>.
type NATSPublisher struct {
	conn Conn
}

// NewNATSPublisher wraps an established NATS connection.
func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

// NewWithConn wraps any Conn. Intended for tests.
func NewWithConn(conn Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

// PublishOutcome marshals and publishes one event.
func (p *NATSPublisher) PublishOutcome(_ context.Context, event OutcomeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outcome event: %w", err)
	}

	subject := "telescout.outcome." + event.Outcome
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish outcome event: %w", err)
	}
	return nil
}
