package websocket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	ws "github.com/lorrc/project-hub-backend/internal/adapters/primary/websocket"
	"github.com/lorrc/project-hub-backend/internal/core/domain"
	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
	"github.com/lorrc/project-hub-backend/internal/core/mocks"
	"github.com/lorrc/project-hub-backend/internal/core/services"
	"github.com/lorrc/project-hub-backend/internal/infrastructure/eventbus"
	"github.com/lorrc/project-hub-backend/internal/infrastructure/logging"
)

type fixture struct {
	bus    *eventbus.Bus
	orgID  uuid.UUID
	conn   *websocket.Conn
	served chan error
}

func newFixture(t *testing.T, cfg ws.Config) *fixture {
	t.Helper()

	f := &fixture{
		bus:    eventbus.New(8, logging.Discard()),
		orgID:  uuid.New(),
		served: make(chan error, 1),
	}
	t.Cleanup(f.bus.Close)

	authz := mocks.NewMockAuthorizer()
	authz.On("Authorize", mock.Anything, "token", f.orgID).
		Return(&domain.Principal{UserID: uuid.New()}, nil)
	sessions := services.NewSessionManager(authz, f.bus, logging.Discard())

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := sessions.Open(r.Context(), "token", f.orgID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			session.Close()
			return
		}
		f.served <- ws.NewClient(conn, cfg, logging.Discard()).Serve(context.Background(), session)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	f.conn = conn
	return f
}

func (f *fixture) waitServed(t *testing.T) error {
	t.Helper()
	select {
	case err := <-f.served:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

func TestClient_RelaysEvents(t *testing.T) {
	f := newFixture(t, ws.DefaultConfig())

	first := domain.NewChangeEvent(domain.EventCreated, domain.EntityProject, uuid.New(), f.orgID)
	second := domain.NewChangeEvent(domain.EventDeleted, domain.EntityProject, first.EntityID, f.orgID)
	f.bus.Publish(f.orgID, first)
	f.bus.Publish(f.orgID, second)

	for _, want := range []domain.ChangeEvent{first, second} {
		var got domain.ChangeEvent
		require.NoError(t, f.conn.ReadJSON(&got))
		assert.Equal(t, want.EventType, got.EventType)
		assert.Equal(t, want.EntityType, got.EntityType)
		assert.Equal(t, want.EntityID, got.EntityID)
		assert.Equal(t, f.orgID, got.OrganizationID)
	}
}

func TestClient_AnswersPing(t *testing.T) {
	f := newFixture(t, ws.DefaultConfig())

	require.NoError(t, f.conn.WriteJSON(ws.ClientMessage{Type: "PING"}))

	var reply ws.ClientMessage
	require.NoError(t, f.conn.ReadJSON(&reply))
	assert.Equal(t, "PONG", reply.Type)
}

func TestClient_BusCloseSendsTryAgainLater(t *testing.T) {
	f := newFixture(t, ws.DefaultConfig())

	f.bus.Close()

	_, _, err := f.conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseTryAgainLater), "got %v", err)
	assert.ErrorIs(t, f.waitServed(t), apperrors.ErrSubscriptionClosed)
}

func TestClient_PeerCloseEndsSession(t *testing.T) {
	f := newFixture(t, ws.DefaultConfig())
	require.Equal(t, 1, f.bus.TotalSubscribers())

	require.NoError(t, f.conn.Close())

	assert.NoError(t, f.waitServed(t))
	assert.Equal(t, 0, f.bus.TotalSubscribers())
}

func TestClient_SendsKeepAlivePings(t *testing.T) {
	cfg := ws.Config{
		WriteWait:    time.Second,
		PongWait:     time.Second,
		PingInterval: 20 * time.Millisecond,
	}
	f := newFixture(t, cfg)

	pinged := make(chan struct{}, 1)
	f.conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := f.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(time.Second):
		t.Fatal("no ping received")
	}
}
