package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lorrc/project-hub-backend/internal/adapters/primary/validation"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

// TaskHandler serves a single task and its comments.
type TaskHandler struct {
	gateway      ports.MutationGateway
	queries      ports.QueryService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(
	gateway ports.MutationGateway,
	queries ports.QueryService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *TaskHandler {
	return &TaskHandler{
		gateway:      gateway,
		queries:      queries,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "task"),
	}
}

// RegisterRoutes mounts the task routes on r.
func (h *TaskHandler) RegisterRoutes(r chi.Router) {
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Patch("/", h.HandleUpdate)
		r.Delete("/", h.HandleDelete)
		r.Get("/comments", h.HandleListComments)
		r.Post("/comments", h.HandleAddComment)
	})
}

// HandleGet handles GET /tasks/{taskID}
func (h *TaskHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, h.errorHandler, "taskID")
	if !ok {
		return
	}

	task, err := h.queries.GetTask(r.Context(), principal, taskID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toTaskDTO(task))
}

// HandleUpdate handles PATCH /tasks/{taskID}
func (h *TaskHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, h.errorHandler, "taskID")
	if !ok {
		return
	}

	req, err := validation.DecodeJSON[UpdateTaskRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	task, err := h.gateway.UpdateTask(r.Context(), principal, taskID, patch)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toTaskDTO(task))
}

// HandleDelete handles DELETE /tasks/{taskID}
func (h *TaskHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, h.errorHandler, "taskID")
	if !ok {
		return
	}

	if err := h.gateway.DeleteTask(r.Context(), principal, taskID); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteNoContent(w)
}

// HandleListComments handles GET /tasks/{taskID}/comments
func (h *TaskHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, h.errorHandler, "taskID")
	if !ok {
		return
	}

	comments, err := h.queries.ListComments(r.Context(), principal, taskID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, mapDTOs(comments, toCommentDTO))
}

// HandleAddComment handles POST /tasks/{taskID}/comments
func (h *TaskHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}
	taskID, ok := pathUUID(w, r, h.errorHandler, "taskID")
	if !ok {
		return
	}

	req, err := validation.DecodeJSON[CreateCommentRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	comment, err := h.gateway.AddComment(r.Context(), principal, taskID, req.Content)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteCreated(w, toCommentDTO(comment))
}
