package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

// SessionManager opens subscription sessions: one authorized client
// connection following one organization's change feed.
type SessionManager struct {
	authorizer ports.Authorizer
	subscriber ports.EventSubscriber
	logger     *slog.Logger
}

// NewSessionManager creates a new session manager
func NewSessionManager(authorizer ports.Authorizer, subscriber ports.EventSubscriber, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		authorizer: authorizer,
		subscriber: subscriber,
		logger:     logger.With("component", "session"),
	}
}

// Open authorizes the token for orgID and subscribes to the bus. Nothing is
// subscribed when authorization fails. The caller must Close the session,
// or hand it to Run which closes it on return.
func (m *SessionManager) Open(ctx context.Context, token string, orgID uuid.UUID) (*Session, error) {
	principal, err := m.authorizer.Authorize(ctx, token, orgID)
	if err != nil {
		return nil, err
	}

	sub, err := m.subscriber.Subscribe(orgID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Principal:      *principal,
		sub:            sub,
	}
	s.logger = m.logger.With(
		"session_id", s.ID,
		"org_id", orgID,
		"user_id", principal.UserID,
	)
	s.logger.InfoContext(ctx, "session opened")
	return s, nil
}

// Session relays one subscription to one transport.
type Session struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Principal      domain.Principal

	sub       ports.Subscription
	closeOnce sync.Once
	logger    *slog.Logger
}

// Run forwards every event verbatim to transport until ctx is done, the
// subscription ends, or a send fails. It returns nil on cancellation,
// ErrSubscriptionClosed when the bus dropped or closed the subscription,
// and the transport error otherwise. The session is closed on return.
func (s *Session) Run(ctx context.Context, transport ports.EventTransport) error {
	defer s.Close()

	events := s.sub.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				s.logger.WarnContext(ctx, "subscription ended by event bus")
				return apperrors.ErrSubscriptionClosed
			}
			if err := transport.Send(ctx, event); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.InfoContext(ctx, "transport send failed", "error", err)
				return err
			}
		}
	}
}

// Close releases the subscription. It is immediate and idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.sub.Close()
		s.logger.Info("session closed")
	})
}
