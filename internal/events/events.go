package events

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

// Publisher publishes status change events to the broker.
type Publisher interface {
	Publish(ctx context.Context, queue string, event StatusChangedEvent) error
	Close() error
}

// EventHandler handles a consumed status change event.
type EventHandler func(ctx context.Context, event StatusChangedEvent) error

// Consumer consumes status change events from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler EventHandler) error
	Close() error
}

var streamedEntities = []domain.EntityType{
	domain.EntityApplication,
	domain.EntityBatch,
	domain.EntityCard,
}

// QueueName returns the entity status stream queue name, e.g. status.application.
func QueueName(entity domain.EntityType) string {
	return fmt.Sprintf("status.%s", entity)
}

// DLQName returns the dead-letter queue name for an entity stream,
// e.g. dlq.status.application.
func DLQName(entity domain.EntityType) string {
	return fmt.Sprintf("dlq.%s", QueueName(entity))
}

// StreamQueueNames returns all entity status stream queues (3 total).
func StreamQueueNames() []string {
	queues := make([]string, 0, len(streamedEntities))
	for _, entity := range streamedEntities {
		queues = append(queues, QueueName(entity))
	}
	return queues
}

// DLQNames returns all dead-letter queues (3 total).
func DLQNames() []string {
	queues := make([]string, 0, len(streamedEntities))
	for _, entity := range streamedEntities {
		queues = append(queues, DLQName(entity))
	}
	return queues
}
