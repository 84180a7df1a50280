package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
)

const writeWait = 10 * time.Second

// Subscription is one open WebSocket change feed.
type Subscription struct {
	conn      *websocket.Conn
	events    chan domain.ChangeEvent
	done      chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// Subscribe opens the change feed of orgID. The server authorizes before
// upgrading, so a rejected subscription comes back as an *APIError.
func (c *Client) Subscribe(ctx context.Context, orgID uuid.UUID) (*Subscription, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/api/v1/ws"
	u.RawQuery = url.Values{
		"token":          {c.token},
		"organizationId": {orgID.String()},
	}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			defer resp.Body.Close()
			apiErr := &APIError{StatusCode: resp.StatusCode}
			_ = json.NewDecoder(resp.Body).Decode(apiErr)
			return nil, apiErr
		}
		return nil, fmt.Errorf("dial change feed: %w", err)
	}

	s := &Subscription{
		conn:   conn,
		events: make(chan domain.ChangeEvent, 64),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Events yields change events until the feed ends; it is then closed and
// Err reports why.
func (s *Subscription) Events() <-chan domain.ChangeEvent {
	return s.events
}

// Err returns the reason the feed ended, or nil after a clean close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the feed. It is idempotent.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = s.conn.Close()
	})
}

// wireMessage is either a ChangeEvent or a control reply such as PONG.
type wireMessage struct {
	Type string `json:"type"`
	domain.ChangeEvent
}

func (s *Subscription) readLoop() {
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.finish(err)
			return
		}

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "" || !msg.EventType.Valid() {
			continue
		}

		select {
		case s.events <- msg.ChangeEvent:
		case <-s.done:
			return
		}
	}
}

func (s *Subscription) finish(err error) {
	select {
	case <-s.done:
		return
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		err = nil
	}

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	_ = s.conn.Close()
}

// ShouldResubscribe reports whether the server ended the feed in a way that
// invites an immediate reconnect.
func ShouldResubscribe(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code == websocket.CloseTryAgainLater || closeErr.Code == websocket.CloseGoingAway
	}
	return false
}
