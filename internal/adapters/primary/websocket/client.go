// Package websocket carries subscription sessions over gorilla/websocket.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

// Maximum message size allowed from peer.
const maxMessageSize = 1024

// Config holds the keep-alive timings of a connection.
type Config struct {
	// Time allowed to write a message to the peer.
	WriteWait time.Duration
	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration
	// Send pings to peer with this period. Must be less than PongWait.
	PingInterval time.Duration
}

// DefaultConfig returns the standard keep-alive timings.
func DefaultConfig() Config {
	return Config{
		WriteWait:    10 * time.Second,
		PongWait:     60 * time.Second,
		PingInterval: 54 * time.Second,
	}
}

// Runner is a subscription session.
type Runner interface {
	Run(ctx context.Context, transport ports.EventTransport) error
}

// Client is one upgraded connection. Writes from the session, the ping
// loop and PONG replies are serialized by writeMu.
type Client struct {
	conn    *websocket.Conn
	cfg     Config
	writeMu sync.Mutex
	logger  *slog.Logger
}

var _ ports.EventTransport = (*Client)(nil)

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, cfg Config, logger *slog.Logger) *Client {
	return &Client{conn: conn, cfg: cfg, logger: logger}
}

// ClientMessage is the structure for messages sent from the client.
type ClientMessage struct {
	Type string `json:"type"`
}

// Serve relays session events until the session ends, the peer goes away
// or ctx is cancelled, then closes the connection.
func (c *Client) Serve(ctx context.Context, session Runner) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer cancel()
		c.readPump()
	}()
	go c.pingLoop(ctx)

	err := session.Run(ctx, c)

	code, text := websocket.CloseNormalClosure, ""
	if errors.Is(err, apperrors.ErrSubscriptionClosed) {
		// Dropped by the bus: the client should resubscribe and refetch.
		code, text = websocket.CloseTryAgainLater, "subscription closed"
	}
	c.writeClose(code, text)
	_ = c.conn.Close()
	<-readDone

	if errors.Is(err, apperrors.ErrSubscriptionClosed) {
		return err
	}
	return nil
}

// Send writes one event as a JSON text message.
func (c *Client) Send(_ context.Context, event domain.ChangeEvent) error {
	return c.writeJSON(event)
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *Client) writeClose(code int, text string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	msg := websocket.FormatCloseMessage(code, text)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteWait)); err != nil {
		c.logger.Debug("failed to send close message", "error", err)
	}
}

// readPump keeps the read deadline fresh on pongs and answers PING
// messages. It returns when the peer closes or stops answering pings.
func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		c.handleIncomingMessage(message)
	}
}

func (c *Client) handleIncomingMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Debug("ignoring malformed client message", "error", err)
		return
	}

	switch msg.Type {
	case "PING":
		if err := c.writeJSON(ClientMessage{Type: "PONG"}); err != nil {
			c.logger.Debug("failed to send pong", "error", err)
		}
	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}
