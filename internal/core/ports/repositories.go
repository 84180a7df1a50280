package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
)

// Entity store contracts. Implementations return the entity-specific
// apperrors.Err*NotFound sentinels for missing ids.

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type OrganizationRepository interface {
	Create(ctx context.Context, org *domain.Organization) (*domain.Organization, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Organization, error)
}

type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) (*domain.Project, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	// ListByOrganization fills TaskCount and CompletedTasks.
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*domain.Project, error)
	Update(ctx context.Context, project *domain.Project) (*domain.Project, error)
	// Delete removes the project together with its tasks and their comments.
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, orgID uuid.UUID) (*domain.ProjectStats, error)
}

type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) (*domain.Task, error)
	// Delete removes the task together with its comments.
	Delete(ctx context.Context, id uuid.UUID) error
}

type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Comment, error)
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Comment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Store groups the repositories of one storage driver.
type Store struct {
	Users         UserRepository
	Organizations OrganizationRepository
	Projects      ProjectRepository
	Tasks         TaskRepository
	Comments      CommentRepository
}

// Cache is a key-value cache for read models.
type Cache interface {
	// Get fills dest on a hit and reports whether the key was present.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Generation returns the counter stored at key, or zero when it is absent.
	Generation(ctx context.Context, key string) (int64, error)
	// Bump increments the counter stored at key and returns the new value.
	Bump(ctx context.Context, key string) (int64, error)
}

// TransactionManager defines the port for running atomic operations.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
