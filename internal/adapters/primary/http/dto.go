package http

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/lorrc/project-hub-backend/internal/adapters/primary/validation"
	"github.com/lorrc/project-hub-backend/internal/core/domain"
)

// --- Responses ---

type UserDTO struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	CreatedAt string `json:"createdAt"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:        u.ID.String(),
		Email:     u.Email,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

type OrganizationDTO struct {
	ID           string `json:"id"`
	OwnerID      string `json:"ownerId"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ContactEmail string `json:"contactEmail"`
	CreatedAt    string `json:"createdAt"`
}

func toOrganizationDTO(o *domain.Organization) OrganizationDTO {
	return OrganizationDTO{
		ID:           o.ID.String(),
		OwnerID:      o.OwnerID.String(),
		Name:         o.Name,
		Slug:         o.Slug,
		ContactEmail: o.ContactEmail,
		CreatedAt:    o.CreatedAt.Format(time.RFC3339),
	}
}

type ProjectDTO struct {
	ID             string  `json:"id"`
	OrganizationID string  `json:"organizationId"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Status         string  `json:"status"`
	DueDate        *string `json:"dueDate"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
	TaskCount      int     `json:"taskCount"`
	CompletedTasks int     `json:"completedTasks"`
}

func toProjectDTO(p *domain.Project) ProjectDTO {
	return ProjectDTO{
		ID:             p.ID.String(),
		OrganizationID: p.OrganizationID.String(),
		Name:           p.Name,
		Description:    p.Description,
		Status:         string(p.Status),
		DueDate:        formatOptional(p.DueDate),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      p.UpdatedAt.Format(time.RFC3339),
		TaskCount:      p.TaskCount,
		CompletedTasks: p.CompletedTasks,
	}
}

type TaskDTO struct {
	ID            string  `json:"id"`
	ProjectID     string  `json:"projectId"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
	AssigneeEmail string  `json:"assigneeEmail"`
	DueDate       *string `json:"dueDate"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

func toTaskDTO(t *domain.Task) TaskDTO {
	return TaskDTO{
		ID:            t.ID.String(),
		ProjectID:     t.ProjectID.String(),
		Title:         t.Title,
		Description:   t.Description,
		Status:        string(t.Status),
		AssigneeEmail: t.AssigneeEmail,
		DueDate:       formatOptional(t.DueDate),
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     t.UpdatedAt.Format(time.RFC3339),
	}
}

type CommentDTO struct {
	ID          string `json:"id"`
	TaskID      string `json:"taskId"`
	Content     string `json:"content"`
	AuthorID    string `json:"authorId"`
	AuthorEmail string `json:"authorEmail"`
	CreatedAt   string `json:"createdAt"`
}

func toCommentDTO(c *domain.Comment) CommentDTO {
	return CommentDTO{
		ID:          c.ID.String(),
		TaskID:      c.TaskID.String(),
		Content:     c.Content,
		AuthorID:    c.AuthorID.String(),
		AuthorEmail: c.AuthorEmail,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
	}
}

func mapDTOs[T any, D any](items []*T, convert func(*T) D) []D {
	out := make([]D, 0, len(items))
	for _, item := range items {
		out = append(out, convert(item))
	}
	return out
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}

// --- Requests ---

// optionalString tells an absent JSON field apart from an explicit null.
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// dueDatePatch converts an optional dueDate into patch fields. null or ""
// clears the date.
func dueDatePatch(field optionalString, v *validation.Validator) (due *time.Time, clear bool) {
	if !field.Set {
		return nil, false
	}
	if field.Value == nil || *field.Value == "" {
		return nil, true
	}
	parsed, err := validation.ParseDate(*field.Value)
	if err != nil {
		v.Custom("dueDate", false, "Must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
		return nil, false
	}
	return parsed, false
}

func parseDueDate(value string, v *validation.Validator) *time.Time {
	parsed, err := validation.ParseDate(value)
	if err != nil {
		v.Custom("dueDate", false, "Must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
		return nil
	}
	return parsed
}

type RegisterRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	v := validation.NewValidator()
	v.Required("email", r.Email)
	v.Required("password", r.Password)
	return v.Err()
}

type TokenResponse struct {
	AccessToken string  `json:"accessToken"`
	TokenType   string  `json:"tokenType"`
	ExpiresIn   int64   `json:"expiresIn"`
	User        UserDTO `json:"user"`
}

type CreateOrganizationRequest struct {
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	ContactEmail string `json:"contactEmail"`
}

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	DueDate     string `json:"dueDate"`
}

func (r *CreateProjectRequest) toParams() (domain.ProjectParams, error) {
	v := validation.NewValidator()
	params := domain.ProjectParams{
		Name:        r.Name,
		Description: r.Description,
		Status:      domain.ProjectStatus(r.Status),
		DueDate:     parseDueDate(r.DueDate, v),
	}
	return params, v.Err()
}

type UpdateProjectRequest struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Status      *string        `json:"status"`
	DueDate     optionalString `json:"dueDate"`
}

func (r *UpdateProjectRequest) toPatch() (domain.ProjectPatch, error) {
	v := validation.NewValidator()
	patch := domain.ProjectPatch{
		Name:        r.Name,
		Description: r.Description,
	}
	if r.Status != nil {
		status := domain.ProjectStatus(*r.Status)
		patch.Status = &status
	}
	patch.DueDate, patch.ClearDue = dueDatePatch(r.DueDate, v)
	return patch, v.Err()
}

type CreateTaskRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Status        string `json:"status"`
	AssigneeEmail string `json:"assigneeEmail"`
	DueDate       string `json:"dueDate"`
}

func (r *CreateTaskRequest) toParams() (domain.TaskParams, error) {
	v := validation.NewValidator()
	params := domain.TaskParams{
		Title:         r.Title,
		Description:   r.Description,
		Status:        domain.TaskStatus(r.Status),
		AssigneeEmail: r.AssigneeEmail,
		DueDate:       parseDueDate(r.DueDate, v),
	}
	return params, v.Err()
}

type UpdateTaskRequest struct {
	Title         *string        `json:"title"`
	Description   *string        `json:"description"`
	Status        *string        `json:"status"`
	AssigneeEmail *string        `json:"assigneeEmail"`
	DueDate       optionalString `json:"dueDate"`
}

func (r *UpdateTaskRequest) toPatch() (domain.TaskPatch, error) {
	v := validation.NewValidator()
	patch := domain.TaskPatch{
		Title:         r.Title,
		Description:   r.Description,
		AssigneeEmail: r.AssigneeEmail,
	}
	if r.Status != nil {
		status := domain.TaskStatus(*r.Status)
		patch.Status = &status
	}
	patch.DueDate, patch.ClearDue = dueDatePatch(r.DueDate, v)
	return patch, v.Err()
}

type CreateCommentRequest struct {
	Content string `json:"content"`
}
