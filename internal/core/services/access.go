package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

// access resolves an entity's ancestry up to its organization and checks
// that the actor owns that organization. Reads and writes share it so both
// are scoped by the same rule.
type access struct {
	orgs     ports.OrganizationRepository
	projects ports.ProjectRepository
	tasks    ports.TaskRepository
	comments ports.CommentRepository
}

func newAccess(store ports.Store) *access {
	return &access{
		orgs:     store.Organizations,
		projects: store.Projects,
		tasks:    store.Tasks,
		comments: store.Comments,
	}
}

// organization returns orgID if the actor owns it.
func (a *access) organization(ctx context.Context, actor domain.Principal, orgID uuid.UUID) (*domain.Organization, error) {
	org, err := a.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !org.IsOwnedBy(actor.UserID) {
		return nil, apperrors.ErrForbidden
	}
	return org, nil
}

// project walks Project -> Organization.
func (a *access) project(ctx context.Context, actor domain.Principal, projectID uuid.UUID) (*domain.Project, *domain.Organization, error) {
	project, err := a.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	org, err := a.organization(ctx, actor, project.OrganizationID)
	if err != nil {
		return nil, nil, err
	}
	return project, org, nil
}

// task walks Task -> Project -> Organization.
func (a *access) task(ctx context.Context, actor domain.Principal, taskID uuid.UUID) (*domain.Task, *domain.Organization, error) {
	task, err := a.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	_, org, err := a.project(ctx, actor, task.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return task, org, nil
}

// comment walks Comment -> Task -> Project -> Organization. The author of
// the comment passes even without owning the organization.
func (a *access) comment(ctx context.Context, actor domain.Principal, commentID uuid.UUID) (*domain.Comment, *domain.Organization, error) {
	comment, err := a.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, nil, err
	}
	task, err := a.tasks.GetByID(ctx, comment.TaskID)
	if err != nil {
		return nil, nil, err
	}
	project, err := a.projects.GetByID(ctx, task.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	org, err := a.orgs.GetByID(ctx, project.OrganizationID)
	if err != nil {
		return nil, nil, err
	}
	if !org.IsOwnedBy(actor.UserID) && !comment.IsAuthoredBy(actor.UserID) {
		return nil, nil, apperrors.ErrForbidden
	}
	return comment, org, nil
}
