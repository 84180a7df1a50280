package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	mw "github.com/lorrc/project-hub-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/project-hub-backend/internal/adapters/primary/validation"
	wsAdapter "github.com/lorrc/project-hub-backend/internal/adapters/primary/websocket"
	"github.com/lorrc/project-hub-backend/internal/config"
	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
	"github.com/lorrc/project-hub-backend/internal/core/services"
)

// WebSocketHandler upgrades connections into subscription sessions.
type WebSocketHandler struct {
	sessions     *services.SessionManager
	upgrader     websocket.Upgrader
	clientConfig wsAdapter.Config
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	sessions *services.SessionManager,
	cfg *config.Config,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *WebSocketHandler {
	handler := &WebSocketHandler{
		sessions: sessions,
		clientConfig: wsAdapter.Config{
			WriteWait:    cfg.WebSocket.WriteWait,
			PongWait:     cfg.WebSocket.PongWait,
			PingInterval: cfg.WebSocket.PingInterval,
		},
		errorHandler: errorHandler,
		logger:       logger.With("handler", "websocket"),
	}

	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		CheckOrigin:     handler.makeOriginChecker(cfg),
	}

	return handler
}

// makeOriginChecker creates an origin checking function based on configuration
func (h *WebSocketHandler) makeOriginChecker(cfg *config.Config) func(r *http.Request) bool {
	allowedOrigins := cfg.WebSocket.AllowedOrigins

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// In development mode, allow all origins (but log a warning)
		if cfg.IsDevelopment() {
			if origin != "" {
				h.logger.Warn("allowing websocket connection in development mode",
					"origin", origin,
					"remote_addr", r.RemoteAddr,
				)
			}
			return true
		}

		// No origin header (same-origin request or non-browser client)
		if origin == "" {
			return true
		}

		parsedOrigin, err := url.Parse(origin)
		if err != nil {
			h.logger.Warn("failed to parse websocket origin", "origin", origin, "error", err)
			return false
		}

		originHost := parsedOrigin.Host
		for _, allowed := range allowedOrigins {
			// Support wildcard subdomains like "*.example.com"
			if strings.HasPrefix(allowed, "*.") {
				suffix := allowed[1:]
				if strings.HasSuffix(originHost, suffix) || originHost == allowed[2:] {
					return true
				}
			} else if originHost == allowed {
				return true
			}
		}

		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
			"allowed_origins", allowedOrigins,
		)
		return false
	}
}

// ServeHTTP handles GET /ws?token=...&organizationId=...
//
// The session is opened before the upgrade so that authentication and
// authorization failures are reported as ordinary HTTP errors.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if bearer, ok := mw.BearerToken(r); ok {
			token = bearer
		}
	}
	if token == "" {
		h.errorHandler.Handle(w, r, apperrors.ErrUnauthorized)
		return
	}

	orgID, err := validation.ParseUUID("organizationId", r.URL.Query().Get("organizationId"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	r = orgScoped(r, orgID)

	session, err := h.sessions.Open(r.Context(), token, orgID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		session.Close()
		h.logger.WarnContext(r.Context(), "failed to upgrade websocket connection", "error", err)
		return
	}

	h.logger.InfoContext(r.Context(), "websocket connection established",
		"session_id", session.ID,
		"user_id", session.Principal.UserID,
		"remote_addr", r.RemoteAddr,
	)

	client := wsAdapter.NewClient(conn, h.clientConfig, h.logger.With("session_id", session.ID))
	if err := client.Serve(r.Context(), session); err != nil {
		h.logger.InfoContext(r.Context(), "websocket session ended", "session_id", session.ID, "error", err)
	}
}
