package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

// OrganizationService manages tenants. Organizations are not entities of
// the change feed, so nothing here publishes.
type OrganizationService struct {
	orgs   ports.OrganizationRepository
	access *access
}

var _ ports.OrganizationService = (*OrganizationService)(nil)

// NewOrganizationService creates a new organization service
func NewOrganizationService(store ports.Store) *OrganizationService {
	return &OrganizationService{
		orgs:   store.Organizations,
		access: newAccess(store),
	}
}

// CreateOrganization creates an organization owned by the actor. A reused
// slug fails with ErrSlugTaken from the store.
func (s *OrganizationService) CreateOrganization(ctx context.Context, actor domain.Principal, params domain.OrganizationParams) (*domain.Organization, error) {
	org, err := domain.NewOrganization(params, actor.UserID)
	if err != nil {
		return nil, err
	}
	return s.orgs.Create(ctx, org)
}

// GetOrganization returns an organization owned by actor.
func (s *OrganizationService) GetOrganization(ctx context.Context, actor domain.Principal, orgID uuid.UUID) (*domain.Organization, error) {
	return s.access.organization(ctx, actor, orgID)
}

// ListOrganizations returns every organization actor owns.
func (s *OrganizationService) ListOrganizations(ctx context.Context, actor domain.Principal) ([]*domain.Organization, error) {
	return s.orgs.ListByOwner(ctx, actor.UserID)
}
