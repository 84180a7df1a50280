package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lorrc/project-hub-backend/internal/adapters/primary/validation"
	"github.com/lorrc/project-hub-backend/internal/core/domain"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

// OrganizationHandler serves organizations and the collections scoped to one.
type OrganizationHandler struct {
	orgs         ports.OrganizationService
	gateway      ports.MutationGateway
	queries      ports.QueryService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewOrganizationHandler creates a new organization handler
func NewOrganizationHandler(
	orgs ports.OrganizationService,
	gateway ports.MutationGateway,
	queries ports.QueryService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *OrganizationHandler {
	return &OrganizationHandler{
		orgs:         orgs,
		gateway:      gateway,
		queries:      queries,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "organization"),
	}
}

// RegisterRoutes mounts the organization routes on r.
func (h *OrganizationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleCreate)

	r.Route("/{orgID}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Get("/projects", h.HandleListProjects)
		r.Post("/projects", h.HandleCreateProject)
		r.Get("/stats", h.HandleStats)
	})
}

// HandleList handles GET /organizations
func (h *OrganizationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}

	orgs, err := h.orgs.ListOrganizations(r.Context(), principal)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, mapDTOs(orgs, toOrganizationDTO))
}

// HandleCreate handles POST /organizations
func (h *OrganizationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}

	req, err := validation.DecodeJSON[CreateOrganizationRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	org, err := h.orgs.CreateOrganization(r.Context(), principal, domain.OrganizationParams{
		Name:         req.Name,
		Slug:         req.Slug,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "organization created", "org_id", org.ID, "slug", org.Slug)
	WriteCreated(w, toOrganizationDTO(org))
}

// HandleGet handles GET /organizations/{orgID}
func (h *OrganizationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}
	orgID, ok := pathUUID(w, r, h.errorHandler, "orgID")
	if !ok {
		return
	}

	org, err := h.orgs.GetOrganization(r.Context(), principal, orgID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toOrganizationDTO(org))
}

// HandleListProjects handles GET /organizations/{orgID}/projects
func (h *OrganizationHandler) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}
	orgID, ok := pathUUID(w, r, h.errorHandler, "orgID")
	if !ok {
		return
	}

	projects, err := h.queries.ListProjects(r.Context(), principal, orgID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, mapDTOs(projects, toProjectDTO))
}

// HandleCreateProject handles POST /organizations/{orgID}/projects
func (h *OrganizationHandler) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}
	orgID, ok := pathUUID(w, r, h.errorHandler, "orgID")
	if !ok {
		return
	}
	r = orgScoped(r, orgID)

	req, err := validation.DecodeJSON[CreateProjectRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	params, err := req.toParams()
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	project, err := h.gateway.CreateProject(r.Context(), principal, orgID, params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteCreated(w, toProjectDTO(project))
}

// HandleStats handles GET /organizations/{orgID}/stats
func (h *OrganizationHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.errorHandler)
	if !ok {
		return
	}
	orgID, ok := pathUUID(w, r, h.errorHandler, "orgID")
	if !ok {
		return
	}

	stats, err := h.queries.ProjectStats(r.Context(), principal, orgID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}
