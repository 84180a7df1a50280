package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
)

const MaxDescriptionLength = 10000

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "ACTIVE"
	ProjectCompleted ProjectStatus = "COMPLETED"
	ProjectOnHold    ProjectStatus = "ON_HOLD"
)

// Valid reports whether s is a known project status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectCompleted, ProjectOnHold:
		return true
	}
	return false
}

type Project struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Description    string
	Status         ProjectStatus
	DueDate        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Read model only; filled by list queries.
	TaskCount      int
	CompletedTasks int
}

type ProjectParams struct {
	Name        string
	Description string
	Status      ProjectStatus
	DueDate     *time.Time
}

// Validate checks required fields and the status enum.
func (p *ProjectParams) Validate() error {
	errs := apperrors.NewValidationErrors()

	p.Name = strings.TrimSpace(p.Name)
	if p.Status == "" {
		p.Status = ProjectActive
	}

	validateName(errs, "name", p.Name)
	validateDescription(errs, p.Description)
	if !p.Status.Valid() {
		errs.Add("status", "Status must be one of ACTIVE, COMPLETED, ON_HOLD")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// NewProject creates a project inside orgID.
func NewProject(params ProjectParams, orgID uuid.UUID) (*Project, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Project{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           params.Name,
		Description:    params.Description,
		Status:         params.Status,
		DueDate:        params.DueDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ProjectPatch carries a partial update; nil fields are left untouched.
type ProjectPatch struct {
	Name        *string
	Description *string
	Status      *ProjectStatus
	DueDate     *time.Time
	ClearDue    bool
}

// Apply validates the patch and writes it onto p. On error p is unchanged.
func (p *Project) Apply(patch ProjectPatch) error {
	errs := apperrors.NewValidationErrors()

	next := *p
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
		validateName(errs, "name", next.Name)
	}
	if patch.Description != nil {
		next.Description = *patch.Description
		validateDescription(errs, next.Description)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			errs.Add("status", "Status must be one of ACTIVE, COMPLETED, ON_HOLD")
		}
		next.Status = *patch.Status
	}
	if patch.ClearDue {
		next.DueDate = nil
	} else if patch.DueDate != nil {
		next.DueDate = patch.DueDate
	}

	if errs.HasErrors() {
		return errs
	}
	next.UpdatedAt = time.Now().UTC()
	*p = next
	return nil
}

// ProjectStats summarizes the projects and tasks of one organization.
type ProjectStats struct {
	TotalProjects     int     `json:"totalProjects"`
	ActiveProjects    int     `json:"activeProjects"`
	CompletedProjects int     `json:"completedProjects"`
	OnHoldProjects    int     `json:"onHoldProjects"`
	TotalTasks        int     `json:"totalTasks"`
	CompletedTasks    int     `json:"completedTasks"`
	CompletionRate    float64 `json:"completionRate"`
}

// ComputeCompletionRate sets CompletionRate to the percentage of completed
// tasks, rounded to one decimal.
func (s *ProjectStats) ComputeCompletionRate() {
	if s.TotalTasks == 0 {
		s.CompletionRate = 0
		return
	}
	rate := float64(s.CompletedTasks) / float64(s.TotalTasks) * 100
	s.CompletionRate = math.Round(rate*10) / 10
}

func validateName(errs *apperrors.ValidationErrors, field, value string) {
	if value == "" {
		errs.Add(field, "Field is required")
	} else if len(value) > MaxNameLength {
		errs.Add(field, "Must be 255 characters or less")
	}
}

func validateDescription(errs *apperrors.ValidationErrors, value string) {
	if len(value) > MaxDescriptionLength {
		errs.Add("description", "Description must be 10000 characters or less")
	}
}
