package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lorrc/project-hub-backend/internal/adapters/primary/validation"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

// ProjectHandler serves a single project and its tasks.
type ProjectHandler struct {
	gateway      ports.MutationGateway
	queries      ports.QueryService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(
	gateway ports.MutationGateway,
	queries ports.QueryService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *ProjectHandler {
	return &ProjectHandler{
		gateway:      gateway,
		queries:      queries,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "project"),
	}
}

// RegisterRoutes mounts the project routes on r.
func (h *ProjectHandler) RegisterRoutes(r chi.Router) {
	r.Route("/{projectID}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Patch("/", h.HandleUpdate)
		r.Delete("/", h.HandleDelete)
		r.Get("/tasks", h.HandleListTasks)
		r.Post("/tasks", h.HandleCreateTask)
	})
}

// HandleGet handles GET /projects/{projectID}
func (h *ProjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}
	projectID, ok := pathUUID(w, r, h.errorHandler, "projectID")
	if !ok {
		return
	}

	project, err := h.queries.GetProject(r.Context(), principal, projectID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toProjectDTO(project))
}

// HandleUpdate handles PATCH /projects/{projectID}
func (h *ProjectHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}
	projectID, ok := pathUUID(w, r, h.errorHandler, "projectID")
	if !ok {
		return
	}

	req, err := validation.DecodeJSON[UpdateProjectRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	project, err := h.gateway.UpdateProject(r.Context(), principal, projectID, patch)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toProjectDTO(project))
}

// HandleDelete handles DELETE /projects/{projectID}
func (h *ProjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}
	projectID, ok := pathUUID(w, r, h.errorHandler, "projectID")
	if !ok {
		return
	}

	if err := h.gateway.DeleteProject(r.Context(), principal, projectID); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "project deleted", "project_id", projectID)
	WriteNoContent(w)
}

// HandleListTasks handles GET /projects/{projectID}/tasks
func (h *ProjectHandler) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}
	projectID, ok := pathUUID(w, r, h.errorHandler, "projectID")
	if !ok {
		return
	}

	tasks, err := h.queries.ListTasks(r.Context(), principal, projectID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, mapDTOs(tasks, toTaskDTO))
}

// HandleCreateTask handles POST /projects/{projectID}/tasks
func (h *ProjectHandler) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}
	projectID, ok := pathUUID(w, r, h.errorHandler, "projectID")
	if !ok {
		return
	}

	req, err := validation.DecodeJSON[CreateTaskRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	params, err := req.toParams()
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	task, err := h.gateway.CreateTask(r.Context(), principal, projectID, params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteCreated(w, toTaskDTO(task))
}
