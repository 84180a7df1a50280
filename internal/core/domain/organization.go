package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
)

const (
	MaxNameLength = 255
	MaxSlugLength = 63
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Organization is the tenant boundary. Every project, task and comment
// belongs to exactly one organization through its ancestry.
type Organization struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	Name         string
	Slug         string
	ContactEmail string
	CreatedAt    time.Time
}

type OrganizationParams struct {
	Name         string
	Slug         string
	ContactEmail string
}

// Validate normalizes the slug and checks required fields.
func (p *OrganizationParams) Validate() error {
	errs := apperrors.NewValidationErrors()

	p.Name = strings.TrimSpace(p.Name)
	p.Slug = strings.ToLower(strings.TrimSpace(p.Slug))
	p.ContactEmail = NormalizeEmail(p.ContactEmail)

	if p.Name == "" {
		errs.Add("name", "Name is required")
	} else if len(p.Name) > MaxNameLength {
		errs.Add("name", "Name must be 255 characters or less")
	}

	switch {
	case p.Slug == "":
		errs.Add("slug", "Slug is required")
	case len(p.Slug) > MaxSlugLength:
		errs.Add("slug", "Slug must be 63 characters or less")
	case !slugPattern.MatchString(p.Slug):
		errs.Add("slug", "Slug may only contain lowercase letters, digits and single hyphens")
	}

	if p.ContactEmail == "" {
		errs.Add("contactEmail", "Contact email is required")
	} else if !IsValidEmail(p.ContactEmail) {
		errs.Add("contactEmail", "Invalid email format")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// NewOrganization creates an organization owned by ownerID.
func NewOrganization(params OrganizationParams, ownerID uuid.UUID) (*Organization, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Organization{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		Name:         params.Name,
		Slug:         params.Slug,
		ContactEmail: params.ContactEmail,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// IsOwnedBy reports whether userID owns the organization.
func (o *Organization) IsOwnedBy(userID uuid.UUID) bool {
	return o != nil && o.OwnerID == userID
}
