package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
)

// Subscription is a single registration on the Bus. Its channel is
// written only while the bus lock is held and closed exactly once.
type Subscription struct {
	id      uuid.UUID
	orgID   uuid.UUID
	ch      chan domain.ChangeEvent
	bus     *Bus
	once    sync.Once
	dropped atomic.Bool
}

// ID returns the subscription id.
func (s *Subscription) ID() uuid.UUID { return s.id }

// OrganizationID returns the organization the subscription is bound to.
func (s *Subscription) OrganizationID() uuid.UUID { return s.orgID }

// Events returns the receive side of the subscription. The channel is
// closed by Close, by Bus.Close, or when the bus drops the subscriber.
func (s *Subscription) Events() <-chan domain.ChangeEvent {
	return s.ch
}

// Close unsubscribes and closes the channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// Dropped reports whether the bus removed the subscription because its
// buffer was full.
func (s *Subscription) Dropped() bool {
	return s.dropped.Load()
}

func (s *Subscription) markDropped() {
	s.dropped.Store(true)
	s.closeChannel()
}

func (s *Subscription) closeChannel() {
	s.once.Do(func() { close(s.ch) })
}
