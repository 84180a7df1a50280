package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
)

// EventPublisher broadcasts change events to the live subscribers of an
// organization. Publish never blocks and never fails the caller.
type EventPublisher interface {
	Publish(orgID uuid.UUID, event domain.ChangeEvent)
}

// EventSubscriber registers interest in an organization's events.
type EventSubscriber interface {
	Subscribe(orgID uuid.UUID) (Subscription, error)
}

// EventBus is the publisher and subscriber halves together.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// Subscription is one live registration on the bus. The Events channel
// is closed when the subscription is closed or dropped by the bus.
type Subscription interface {
	Events() <-chan domain.ChangeEvent
	Close()
}

// EventTransport delivers events to a connected client.
type EventTransport interface {
	Send(ctx context.Context, event domain.ChangeEvent) error
}
