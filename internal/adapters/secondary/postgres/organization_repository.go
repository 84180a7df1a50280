package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

type OrganizationRepository struct {
	pool *pgxpool.Pool
}

var _ ports.OrganizationRepository = (*OrganizationRepository)(nil)

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(pool *pgxpool.Pool) *OrganizationRepository {
	return &OrganizationRepository{pool: pool}
}

const organizationColumns = `id, owner_id, name, slug, contact_email, created_at`

func scanOrganization(row pgx.Row) (*domain.Organization, error) {
	var o domain.Organization
	if err := row.Scan(&o.ID, &o.OwnerID, &o.Name, &o.Slug, &o.ContactEmail, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrganizationRepository) Create(ctx context.Context, org *domain.Organization) (*domain.Organization, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO organizations (id, owner_id, name, slug, contact_email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+organizationColumns,
		org.ID, org.OwnerID, org.Name, org.Slug, org.ContactEmail, org.CreatedAt,
	)
	created, err := scanOrganization(row)
	if err != nil {
		if isUniqueViolation(err, "organizations_slug_key") {
			return nil, apperrors.ErrSlugTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, id)
	org, err := scanOrganization(row)
	if err != nil {
		return nil, notFound(err, apperrors.ErrOrganizationNotFound)
	}
	return org, nil
}

func (r *OrganizationRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Organization, error) {
	rows, err := GetDBTX(ctx, r.pool).Query(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE owner_id = $1 ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanOrganization)
}
