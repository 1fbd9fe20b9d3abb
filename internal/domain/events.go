package domain

import (
	"context"

	"ledger/internal/core/id"
)

// Event is a domain event written to the outbox in the same transaction as
// the change it describes.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// EventPublisher stores events for asynchronous delivery.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// AuditRecorder keeps a durable trail of state-changing operations.
type AuditRecorder interface {
	Record(ctx context.Context, entityType string, entityID id.ID, action string, payload any) error
}
