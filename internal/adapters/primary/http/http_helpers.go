package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/lorrc/project-hub-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/project-hub-backend/internal/adapters/primary/validation"
	"github.com/lorrc/project-hub-backend/internal/core/domain"
	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
	"github.com/lorrc/project-hub-backend/internal/infrastructure/logging"
)

// principalFrom returns the authenticated principal or writes a 401.
func principalFrom(w http.ResponseWriter, r *http.Request, eh *ErrorHandler) (domain.Principal, bool) {
	p, ok := mw.GetPrincipal(r.Context())
	if !ok {
		eh.Handle(w, r, apperrors.ErrUnauthorized)
		return domain.Principal{}, false
	}
	return p, true
}

// pathUUID parses the chi URL parameter name as a UUID or writes a 400.
func pathUUID(w http.ResponseWriter, r *http.Request, eh *ErrorHandler, name string) (uuid.UUID, bool) {
	id, err := validation.ParseUUID(name, chi.URLParam(r, name))
	if err != nil {
		eh.Handle(w, r, err)
		return uuid.Nil, false
	}
	return id, true
}

// orgScoped stamps orgID on the request context for log lines.
func orgScoped(r *http.Request, orgID uuid.UUID) *http.Request {
	return r.WithContext(logging.WithOrgID(r.Context(), orgID.String()))
}
