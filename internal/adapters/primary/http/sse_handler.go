package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	mw "github.com/lorrc/project-hub-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/project-hub-backend/internal/core/domain"
	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
	"github.com/lorrc/project-hub-backend/internal/core/services"
)

// SSEHandler streams an organization's change events as Server-Sent Events.
type SSEHandler struct {
	sessions     *services.SessionManager
	keepAlive    time.Duration
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewSSEHandler creates an event stream handler. A non-positive keepAlive
// falls back to 15 seconds.
func NewSSEHandler(
	sessions *services.SessionManager,
	keepAlive time.Duration,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *SSEHandler {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	return &SSEHandler{
		sessions:     sessions,
		keepAlive:    keepAlive,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "sse"),
	}
}

// ServeHTTP handles GET /organizations/{orgID}/events. EventSource cannot
// set headers, so the token may also come from the query string.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := mw.BearerToken(r)
	if !ok {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		h.errorHandler.Handle(w, r, apperrors.ErrUnauthorized)
		return
	}

	orgID, ok := pathUUID(w, r, h.errorHandler, "orgID")
	if !ok {
		return
	}
	r = orgScoped(r, orgID)

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.errorHandler.Handle(w, r, errors.New("response writer does not support streaming"))
		return
	}

	session, err := h.sessions.Open(r.Context(), token, orgID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	// The server WriteTimeout would otherwise cut the stream.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.DebugContext(r.Context(), "cannot clear write deadline", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.InfoContext(r.Context(), "event stream opened", "session_id", session.ID)

	stream := &sseStream{w: w, flusher: flusher}

	ctx, cancel := context.WithCancel(r.Context())
	keepAliveDone := make(chan struct{})
	go func() {
		defer close(keepAliveDone)
		stream.keepAliveLoop(ctx, cancel, h.keepAlive)
	}()

	err = session.Run(ctx, stream)
	// The response writer must not be touched after ServeHTTP returns.
	cancel()
	<-keepAliveDone

	if err != nil {
		h.logger.InfoContext(r.Context(), "event stream ended", "session_id", session.ID, "error", err)
	}
}

// sseStream writes events and keep-alive comments to one response.
type sseStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

var _ ports.EventTransport = (*sseStream)(nil)

func (s *sseStream) Send(_ context.Context, event domain.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return s.write("data: " + string(data) + "\n\n")
}

func (s *sseStream) write(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprint(s.w, frame); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// keepAliveLoop writes a comment line every interval; a failed write ends
// the stream through cancel.
func (s *sseStream) keepAliveLoop(ctx context.Context, cancel context.CancelFunc, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.write(": keepalive\n\n"); err != nil {
				cancel()
				return
			}
		}
	}
}
