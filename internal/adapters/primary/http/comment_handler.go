package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

// CommentHandler serves comment removal. Creation and listing hang off tasks.
type CommentHandler struct {
	gateway      ports.MutationGateway
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewCommentHandler creates a new comment handler
func NewCommentHandler(gateway ports.MutationGateway, errorHandler *ErrorHandler, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{
		gateway:      gateway,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "comment"),
	}
}

// RegisterRoutes mounts the comment routes on r.
func (h *CommentHandler) RegisterRoutes(r chi.Router) {
	r.Delete("/{commentID}", h.HandleDelete)
}

// HandleDelete handles DELETE /comments/{commentID}
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}
	commentID, ok := pathUUID(w, r, h.errorHandler, "commentID")
	if !ok {
		return
	}

	if err := h.gateway.DeleteComment(r.Context(), principal, commentID); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteNoContent(w)
}
