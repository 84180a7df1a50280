// Package eventbus fans change events out to the live subscribers of an
// organization inside a single process.
package eventbus

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

// DefaultBufferSize is the per-subscriber channel capacity used when the
// configured size is not positive.
const DefaultBufferSize = 64

// Bus maps organization ids to their live subscriptions.
//
// Publish holds the lock while it offers the event to every subscriber of
// the organization, so each subscriber observes publishes for one
// organization in the same order. Sends never block: a subscriber whose
// buffer is full is removed and its channel closed.
type Bus struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]map[*Subscription]struct{}
	buffer int
	closed bool
	logger *slog.Logger
}

var _ ports.EventBus = (*Bus)(nil)

// New creates a bus whose subscriptions buffer up to bufferSize events.
func New(bufferSize int, logger *slog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		subs:   make(map[uuid.UUID]map[*Subscription]struct{}),
		buffer: bufferSize,
		logger: logger.With("component", "eventbus"),
	}
}

// Publish offers event to every subscriber registered for orgID at this
// moment. It is a no-op once the bus is closed.
func (b *Bus) Publish(orgID uuid.UUID, event domain.ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	set := b.subs[orgID]
	for sub := range set {
		select {
		case sub.ch <- event:
		default:
			delete(set, sub)
			sub.markDropped()
			b.logger.Warn("dropping unresponsive subscriber",
				"org_id", orgID,
				"subscription_id", sub.id,
				"event", event.String(),
				"error", apperrors.ErrChannelDelivery,
			)
		}
	}
	if set != nil && len(set) == 0 {
		delete(b.subs, orgID)
	}
}

// Subscribe registers a new subscription for orgID. Events published
// before this call are not delivered.
func (b *Bus) Subscribe(orgID uuid.UUID) (ports.Subscription, error) {
	sub, err := b.subscribe(orgID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (b *Bus) subscribe(orgID uuid.UUID) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, apperrors.ErrBusClosed
	}

	sub := &Subscription{
		id:    uuid.New(),
		orgID: orgID,
		ch:    make(chan domain.ChangeEvent, b.buffer),
		bus:   b,
	}
	set, ok := b.subs[orgID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[orgID] = set
	}
	set[sub] = struct{}{}

	b.logger.Debug("subscriber registered", "org_id", orgID, "subscription_id", sub.id)
	return sub, nil
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if set, ok := b.subs[sub.orgID]; ok {
		if _, present := set[sub]; present {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subs, sub.orgID)
			}
			b.logger.Debug("subscriber removed", "org_id", sub.orgID, "subscription_id", sub.id)
		}
	}
	sub.closeChannel()
}

// Close closes every live subscription. Later Subscribe calls fail with
// ErrBusClosed and later Publish calls do nothing.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for orgID, set := range b.subs {
		for sub := range set {
			sub.closeChannel()
		}
		delete(b.subs, orgID)
	}
	b.logger.Info("event bus closed")
}

// SubscriberCount returns the number of live subscriptions for orgID.
func (b *Bus) SubscriberCount(orgID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[orgID])
}

// OrganizationCount returns the number of organizations with at least one
// live subscription.
func (b *Bus) OrganizationCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// TotalSubscribers returns the number of live subscriptions across all
// organizations.
func (b *Bus) TotalSubscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, set := range b.subs {
		total += len(set)
	}
	return total
}
