package eventbus_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
	"github.com/lorrc/project-hub-backend/internal/infrastructure/eventbus"
	"github.com/lorrc/project-hub-backend/internal/infrastructure/logging"
)

func newBus(buffer int) *eventbus.Bus {
	return eventbus.New(buffer, logging.Discard())
}

func event(orgID uuid.UUID, eventType domain.EventType) domain.ChangeEvent {
	return domain.NewChangeEvent(eventType, domain.EntityProject, uuid.New(), orgID)
}

func receive(t *testing.T, sub ports.Subscription) domain.ChangeEvent {
	t.Helper()
	select {
	case e, ok := <-sub.Events():
		require.True(t, ok, "subscription channel closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return domain.ChangeEvent{}
	}
}

func assertEmpty(t *testing.T, sub ports.Subscription) {
	t.Helper()
	select {
	case e, ok := <-sub.Events():
		if ok {
			t.Fatalf("unexpected event %s", e)
		}
	default:
	}
}

func assertClosed(t *testing.T, sub ports.Subscription) {
	t.Helper()
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-time.After(time.Second):
			t.Fatal("subscription channel not closed")
		}
	}
}

func TestBus_FanOut(t *testing.T) {
	bus := newBus(8)
	orgID := uuid.New()

	a, err := bus.Subscribe(orgID)
	require.NoError(t, err)
	b, err := bus.Subscribe(orgID)
	require.NoError(t, err)

	e := event(orgID, domain.EventCreated)
	bus.Publish(orgID, e)

	assert.Equal(t, e, receive(t, a))
	assert.Equal(t, e, receive(t, b))
	assertEmpty(t, a)
	assertEmpty(t, b)
}

func TestBus_TenantIsolation(t *testing.T) {
	bus := newBus(8)
	orgA, orgB := uuid.New(), uuid.New()

	subA, err := bus.Subscribe(orgA)
	require.NoError(t, err)
	subB, err := bus.Subscribe(orgB)
	require.NoError(t, err)

	bus.Publish(orgA, event(orgA, domain.EventUpdated))

	e := receive(t, subA)
	assert.Equal(t, orgA, e.OrganizationID)
	assertEmpty(t, subB)
}

func TestBus_PreservesPublishOrder(t *testing.T) {
	bus := newBus(200)
	orgID := uuid.New()

	sub, err := bus.Subscribe(orgID)
	require.NoError(t, err)

	published := make([]domain.ChangeEvent, 100)
	for i := range published {
		published[i] = event(orgID, domain.EventUpdated)
		bus.Publish(orgID, published[i])
	}

	for i := range published {
		assert.Equal(t, published[i].EntityID, receive(t, sub).EntityID, "event %d out of order", i)
	}
}

func TestBus_NoReplayForLateSubscribers(t *testing.T) {
	bus := newBus(8)
	orgID := uuid.New()

	early, err := bus.Subscribe(orgID)
	require.NoError(t, err)

	first := event(orgID, domain.EventCreated)
	bus.Publish(orgID, first)

	late, err := bus.Subscribe(orgID)
	require.NoError(t, err)
	assertEmpty(t, late)

	second := event(orgID, domain.EventUpdated)
	bus.Publish(orgID, second)

	assert.Equal(t, first, receive(t, early))
	assert.Equal(t, second, receive(t, early))
	assert.Equal(t, second, receive(t, late))
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus := newBus(8)
	orgID := uuid.New()

	assert.NotPanics(t, func() { bus.Publish(orgID, event(orgID, domain.EventDeleted)) })
	assert.Equal(t, 0, bus.OrganizationCount())
}

func TestBus_ManyConcurrentSubscribers(t *testing.T) {
	bus := newBus(8)
	orgID := uuid.New()
	e := event(orgID, domain.EventCreated)

	const n = 100
	subs := make([]ports.Subscription, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub, err := bus.Subscribe(orgID)
			assert.NoError(t, err)
			subs[i] = sub
		}(i)
	}
	wg.Wait()
	require.Equal(t, n, bus.SubscriberCount(orgID))

	bus.Publish(orgID, e)

	received := make(chan domain.ChangeEvent, n)
	for _, sub := range subs {
		wg.Add(1)
		go func(sub ports.Subscription) {
			defer wg.Done()
			select {
			case got := <-sub.Events():
				received <- got
			case <-time.After(time.Second):
			}
		}(sub)
	}
	wg.Wait()
	close(received)

	count := 0
	for got := range received {
		assert.Equal(t, e, got)
		count++
	}
	assert.Equal(t, n, count)
}

func TestBus_ConcurrentPublishers(t *testing.T) {
	bus := newBus(1000)
	orgID := uuid.New()

	sub, err := bus.Subscribe(orgID)
	require.NoError(t, err)

	const publishers, perPublisher = 10, 50
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				bus.Publish(orgID, event(orgID, domain.EventUpdated))
			}
		}()
	}
	wg.Wait()

	for i := 0; i < publishers*perPublisher; i++ {
		receive(t, sub)
	}
	assertEmpty(t, sub)
}

func TestBus_SlowSubscriberIsDropped(t *testing.T) {
	bus := newBus(2)
	orgID := uuid.New()

	fast, err := bus.Subscribe(orgID)
	require.NoError(t, err)
	slow, err := bus.Subscribe(orgID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		bus.Publish(orgID, event(orgID, domain.EventUpdated))
		receive(t, fast)
	}

	assert.Equal(t, 1, bus.SubscriberCount(orgID))
	assert.True(t, slow.(*eventbus.Subscription).Dropped())
	assert.False(t, fast.(*eventbus.Subscription).Dropped())

	// buffered events are still readable before the close is observed
	receive(t, slow)
	receive(t, slow)
	assertClosed(t, slow)

	// the fast subscriber keeps receiving
	bus.Publish(orgID, event(orgID, domain.EventDeleted))
	receive(t, fast)

	// closing a dropped subscription is harmless
	assert.NotPanics(t, slow.Close)
}

func TestSubscription_CloseIsIdempotentAndPrunes(t *testing.T) {
	bus := newBus(8)
	orgID := uuid.New()

	sub, err := bus.Subscribe(orgID)
	require.NoError(t, err)
	other, err := bus.Subscribe(uuid.New())
	require.NoError(t, err)
	require.Equal(t, 2, bus.OrganizationCount())

	sub.Close()
	sub.Close()

	assertClosed(t, sub)
	assert.Equal(t, 0, bus.SubscriberCount(orgID))
	assert.Equal(t, 1, bus.OrganizationCount())
	assert.NotPanics(t, func() { bus.Publish(orgID, event(orgID, domain.EventCreated)) })

	other.Close()
	assert.Equal(t, 0, bus.OrganizationCount())
	assert.Equal(t, 0, bus.TotalSubscribers())
}

func TestSubscription_ConcurrentClose(t *testing.T) {
	bus := newBus(8)
	orgID := uuid.New()

	sub, err := bus.Subscribe(orgID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub.Close()
		}()
		go func() {
			defer wg.Done()
			bus.Publish(orgID, event(orgID, domain.EventUpdated))
		}()
	}
	wg.Wait()

	assertClosed(t, sub)
	assert.Equal(t, 0, bus.SubscriberCount(orgID))
}

func TestBus_Close(t *testing.T) {
	bus := newBus(8)
	orgID := uuid.New()

	sub, err := bus.Subscribe(orgID)
	require.NoError(t, err)

	bus.Close()
	bus.Close()

	assertClosed(t, sub)
	assert.Equal(t, 0, bus.OrganizationCount())

	_, err = bus.Subscribe(orgID)
	assert.ErrorIs(t, err, apperrors.ErrBusClosed)

	assert.NotPanics(t, func() { bus.Publish(orgID, event(orgID, domain.EventCreated)) })
	assert.NotPanics(t, sub.Close)
}

func TestNew_DefaultBuffer(t *testing.T) {
	bus := newBus(0)
	orgID := uuid.New()

	_, err := bus.Subscribe(orgID)
	require.NoError(t, err)

	for i := 0; i < eventbus.DefaultBufferSize; i++ {
		bus.Publish(orgID, event(orgID, domain.EventUpdated))
	}
	assert.Equal(t, 1, bus.SubscriberCount(orgID))

	bus.Publish(orgID, event(orgID, domain.EventUpdated))
	assert.Equal(t, 0, bus.SubscriberCount(orgID))
}
