package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/buildmart/internal/config"
	"github.com/Additional-Code/buildmart/internal/messaging"
)

// Type names a lifecycle event.
type Type string

const (
	TenderCreated            Type = "tender.created"
	TenderUpdated            Type = "tender.updated"
	ApplicationSubmitted     Type = "application.submitted"
	ApplicationStatusChanged Type = "application.status_changed"
	ApplicationAccepted      Type = "application.accepted"
)

// HeaderType carries the event type so consumers can route without decoding.
const HeaderType = "event-type"

// LifecycleEvent is emitted after a tender or application write commits.
type LifecycleEvent struct {
	Type          Type      `json:"type"`
	TenderID      string    `json:"tender_id"`
	ApplicationID string    `json:"application_id,omitempty"`
	ActorID       string    `json:"actor_id"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Module provides the event publisher to Fx.
var Module = fx.Provide(NewPublisher)

// Publisher emits lifecycle events on the message bus. Publishing is best-effort:
// the write that triggered the event has already committed.
type Publisher struct {
	client  messaging.Client
	enabled bool
	logger  *zap.Logger
}

// NewPublisher wires a Publisher from configuration.
func NewPublisher(client messaging.Client, cfg config.Config, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:  client,
		enabled: cfg.Messaging.Enabled,
		logger:  logger,
	}
}

// Publish marshals and sends event keyed by its tender id.
func (p *Publisher) Publish(ctx context.Context, event LifecycleEvent) {
	if p == nil || !p.enabled || p.client == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal lifecycle event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}
	if err := p.client.Publish(ctx, []byte("tender-"+event.TenderID), payload, map[string]string{HeaderType: string(event.Type)}); err != nil {
		p.logger.Error("publish lifecycle event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// Decode parses a message payload into a LifecycleEvent.
func Decode(payload []byte) (LifecycleEvent, error) {
	var event LifecycleEvent
	err := json.Unmarshal(payload, &event)
	return event, err
}
