package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone:
		return true
	}
	return false
}

type Task struct {
	ID            uuid.UUID
	ProjectID     uuid.UUID
	Title         string
	Description   string
	Status        TaskStatus
	AssigneeEmail string
	DueDate       *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type TaskParams struct {
	Title         string
	Description   string
	Status        TaskStatus
	AssigneeEmail string
	DueDate       *time.Time
}

// Validate checks required fields and the status enum.
func (p *TaskParams) Validate() error {
	errs := apperrors.NewValidationErrors()

	p.Title = strings.TrimSpace(p.Title)
	p.AssigneeEmail = NormalizeEmail(p.AssigneeEmail)
	if p.Status == "" {
		p.Status = TaskTodo
	}

	validateName(errs, "title", p.Title)
	validateDescription(errs, p.Description)
	if !p.Status.Valid() {
		errs.Add("status", "Status must be one of TODO, IN_PROGRESS, DONE")
	}
	if p.AssigneeEmail != "" && !IsValidEmail(p.AssigneeEmail) {
		errs.Add("assigneeEmail", "Invalid email format")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// NewTask creates a task inside projectID.
func NewTask(params TaskParams, projectID uuid.UUID) (*Task, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Task{
		ID:            uuid.New(),
		ProjectID:     projectID,
		Title:         params.Title,
		Description:   params.Description,
		Status:        params.Status,
		AssigneeEmail: params.AssigneeEmail,
		DueDate:       params.DueDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// TaskPatch carries a partial update; nil fields are left untouched.
type TaskPatch struct {
	Title         *string
	Description   *string
	Status        *TaskStatus
	AssigneeEmail *string
	DueDate       *time.Time
	ClearDue      bool
}

// Apply validates the patch and writes it onto t. On error t is unchanged.
func (t *Task) Apply(patch TaskPatch) error {
	errs := apperrors.NewValidationErrors()

	next := *t
	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
		validateName(errs, "title", next.Title)
	}
	if patch.Description != nil {
		next.Description = *patch.Description
		validateDescription(errs, next.Description)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			errs.Add("status", "Status must be one of TODO, IN_PROGRESS, DONE")
		}
		next.Status = *patch.Status
	}
	if patch.AssigneeEmail != nil {
		next.AssigneeEmail = NormalizeEmail(*patch.AssigneeEmail)
		if next.AssigneeEmail != "" && !IsValidEmail(next.AssigneeEmail) {
			errs.Add("assigneeEmail", "Invalid email format")
		}
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
	*t = next
	return nil
}
