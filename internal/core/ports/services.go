package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
)

// AuthService defines the port for account registration and login.
type AuthService interface {
	Register(ctx context.Context, params domain.RegistrationParams) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// OrganizationService manages tenants. Creating an organization publishes
// no change event.
type OrganizationService interface {
	CreateOrganization(ctx context.Context, actor domain.Principal, params domain.OrganizationParams) (*domain.Organization, error)
	GetOrganization(ctx context.Context, actor domain.Principal, orgID uuid.UUID) (*domain.Organization, error)
	ListOrganizations(ctx context.Context, actor domain.Principal) ([]*domain.Organization, error)
}

// MutationGateway is the single entry point for writes to projects, tasks
// and comments. Every successful call publishes exactly one ChangeEvent;
// a failed call writes nothing and publishes nothing.
type MutationGateway interface {
	CreateProject(ctx context.Context, actor domain.Principal, orgID uuid.UUID, params domain.ProjectParams) (*domain.Project, error)
	UpdateProject(ctx context.Context, actor domain.Principal, projectID uuid.UUID, patch domain.ProjectPatch) (*domain.Project, error)
	DeleteProject(ctx context.Context, actor domain.Principal, projectID uuid.UUID) error

	CreateTask(ctx context.Context, actor domain.Principal, projectID uuid.UUID, params domain.TaskParams) (*domain.Task, error)
	UpdateTask(ctx context.Context, actor domain.Principal, taskID uuid.UUID, patch domain.TaskPatch) (*domain.Task, error)
	DeleteTask(ctx context.Context, actor domain.Principal, taskID uuid.UUID) error

	AddComment(ctx context.Context, actor domain.Principal, taskID uuid.UUID, content string) (*domain.Comment, error)
	DeleteComment(ctx context.Context, actor domain.Principal, commentID uuid.UUID) error
}

// QueryService serves reads scoped by the same ownership walk as writes.
type QueryService interface {
	ListProjects(ctx context.Context, actor domain.Principal, orgID uuid.UUID) ([]*domain.Project, error)
	GetProject(ctx context.Context, actor domain.Principal, projectID uuid.UUID) (*domain.Project, error)
	ListTasks(ctx context.Context, actor domain.Principal, projectID uuid.UUID) ([]*domain.Task, error)
	GetTask(ctx context.Context, actor domain.Principal, taskID uuid.UUID) (*domain.Task, error)
	ListComments(ctx context.Context, actor domain.Principal, taskID uuid.UUID) ([]*domain.Comment, error)
	ProjectStats(ctx context.Context, actor domain.Principal, orgID uuid.UUID) (*domain.ProjectStats, error)
}

// Authorizer resolves a bearer token into a principal allowed to observe
// the given organization.
type Authorizer interface {
	Authorize(ctx context.Context, token string, orgID uuid.UUID) (*domain.Principal, error)
}

// TokenValidator turns a bearer token into the identity it was issued for.
type TokenValidator interface {
	ValidateToken(token string) (domain.Principal, error)
}
