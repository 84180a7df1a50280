package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

// TenantAuthorizer admits a token holder to an organization's change feed.
// Observing the feed requires the same ownership that reading the
// organization's projects does.
type TenantAuthorizer struct {
	tokens ports.TokenValidator
	orgs   ports.OrganizationRepository
}

var _ ports.Authorizer = (*TenantAuthorizer)(nil)

// NewTenantAuthorizer creates an authorizer backed by tokens and the organization store.
func NewTenantAuthorizer(tokens ports.TokenValidator, orgs ports.OrganizationRepository) *TenantAuthorizer {
	return &TenantAuthorizer{tokens: tokens, orgs: orgs}
}

// Authorize fails with ErrUnauthorized for a bad token, an
// ErrOrganizationNotFound for an unknown organization, and ErrForbidden
// when the principal does not own it.
func (a *TenantAuthorizer) Authorize(ctx context.Context, token string, orgID uuid.UUID) (*domain.Principal, error) {
	principal, err := a.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	access := &access{orgs: a.orgs}
	if _, err := access.organization(ctx, principal, orgID); err != nil {
		return nil, err
	}
	return &principal, nil
}
