package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

const cacheOpTimeout = 500 * time.Millisecond

// Gateway performs every project, task and comment mutation. Each method
// runs the same sequence: walk the ownership chain, validate, write to the
// store, then publish exactly one ChangeEvent for the entity that changed.
// Nothing is written or published when any step fails.
//
// Cascading deletes publish only the DELETED event of the root entity;
// subscribers drop the dependent lists themselves.
type Gateway struct {
	access    *access
	projects  ports.ProjectRepository
	tasks     ports.TaskRepository
	comments  ports.CommentRepository
	publisher ports.EventPublisher
	cache     ports.Cache
	logger    *slog.Logger
}

var _ ports.MutationGateway = (*Gateway)(nil)

// NewGateway wires the gateway. cache may be nil.
func NewGateway(store ports.Store, publisher ports.EventPublisher, cache ports.Cache, logger *slog.Logger) *Gateway {
	return &Gateway{
		access:    newAccess(store),
		projects:  store.Projects,
		tasks:     store.Tasks,
		comments:  store.Comments,
		publisher: publisher,
		cache:     cache,
		logger:    logger.With("component", "gateway"),
	}
}

// CreateProject creates a project in an organization owned by actor.
func (g *Gateway) CreateProject(ctx context.Context, actor domain.Principal, orgID uuid.UUID, params domain.ProjectParams) (*domain.Project, error) {
	org, err := g.access.organization(ctx, actor, orgID)
	if err != nil {
		return nil, err
	}

	project, err := domain.NewProject(params, org.ID)
	if err != nil {
		return nil, err
	}

	created, err := g.projects.Create(ctx, project)
	if err != nil {
		return nil, err
	}

	g.commit(ctx, domain.NewChangeEvent(domain.EventCreated, domain.EntityProject, created.ID, org.ID))
	return created, nil
}

// UpdateProject applies a partial update to a project.
func (g *Gateway) UpdateProject(ctx context.Context, actor domain.Principal, projectID uuid.UUID, patch domain.ProjectPatch) (*domain.Project, error) {
	project, org, err := g.access.project(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}

	if err := project.Apply(patch); err != nil {
		return nil, err
	}

	updated, err := g.projects.Update(ctx, project)
	if err != nil {
		return nil, err
	}

	g.commit(ctx, domain.NewChangeEvent(domain.EventUpdated, domain.EntityProject, updated.ID, org.ID))
	return updated, nil
}

// DeleteProject deletes a project together with its tasks and their comments.
func (g *Gateway) DeleteProject(ctx context.Context, actor domain.Principal, projectID uuid.UUID) error {
	project, org, err := g.access.project(ctx, actor, projectID)
	if err != nil {
		return err
	}

	if err := g.projects.Delete(ctx, project.ID); err != nil {
		return err
	}

	g.commit(ctx, domain.NewChangeEvent(domain.EventDeleted, domain.EntityProject, project.ID, org.ID))
	return nil
}

// CreateTask creates a task under a project.
func (g *Gateway) CreateTask(ctx context.Context, actor domain.Principal, projectID uuid.UUID, params domain.TaskParams) (*domain.Task, error) {
	project, org, err := g.access.project(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}

	task, err := domain.NewTask(params, project.ID)
	if err != nil {
		return nil, err
	}

	created, err := g.tasks.Create(ctx, task)
	if err != nil {
		return nil, err
	}

	g.commit(ctx, domain.NewChangeEvent(domain.EventCreated, domain.EntityTask, created.ID, org.ID))
	return created, nil
}

// UpdateTask applies a partial update to a task.
func (g *Gateway) UpdateTask(ctx context.Context, actor domain.Principal, taskID uuid.UUID, patch domain.TaskPatch) (*domain.Task, error) {
	task, org, err := g.access.task(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	if err := task.Apply(patch); err != nil {
		return nil, err
	}

	updated, err := g.tasks.Update(ctx, task)
	if err != nil {
		return nil, err
	}

	g.commit(ctx, domain.NewChangeEvent(domain.EventUpdated, domain.EntityTask, updated.ID, org.ID))
	return updated, nil
}

// DeleteTask deletes a task together with its comments.
func (g *Gateway) DeleteTask(ctx context.Context, actor domain.Principal, taskID uuid.UUID) error {
	task, org, err := g.access.task(ctx, actor, taskID)
	if err != nil {
		return err
	}

	if err := g.tasks.Delete(ctx, task.ID); err != nil {
		return err
	}

	g.commit(ctx, domain.NewChangeEvent(domain.EventDeleted, domain.EntityTask, task.ID, org.ID))
	return nil
}

// AddComment adds a comment authored by actor to a task.
func (g *Gateway) AddComment(ctx context.Context, actor domain.Principal, taskID uuid.UUID, content string) (*domain.Comment, error) {
	task, org, err := g.access.task(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}

	comment, err := domain.NewComment(task.ID, actor, content)
	if err != nil {
		return nil, err
	}

	created, err := g.comments.Create(ctx, comment)
	if err != nil {
		return nil, err
	}

	g.commit(ctx, domain.NewChangeEvent(domain.EventCreated, domain.EntityComment, created.ID, org.ID))
	return created, nil
}

// DeleteComment deletes a comment. The organization owner and the comment's
// author may both delete it.
func (g *Gateway) DeleteComment(ctx context.Context, actor domain.Principal, commentID uuid.UUID) error {
	comment, org, err := g.access.comment(ctx, actor, commentID)
	if err != nil {
		return err
	}

	if err := g.comments.Delete(ctx, comment.ID); err != nil {
		return err
	}

	g.commit(ctx, domain.NewChangeEvent(domain.EventDeleted, domain.EntityComment, comment.ID, org.ID))
	return nil
}

// commit runs after a successful store write. It drops the organization's
// cached stats when the mutation can change them, then publishes the event.
func (g *Gateway) commit(ctx context.Context, event domain.ChangeEvent) {
	if event.EntityType != domain.EntityComment {
		g.invalidateStats(ctx, event.OrganizationID)
	}

	g.publisher.Publish(event.OrganizationID, event)
	g.logger.DebugContext(ctx, "change event published", "event", event.String())
}

// invalidateStats bumps the stats generation before dropping the entry, so
// a snapshot computed before the write is never served afterwards.
func (g *Gateway) invalidateStats(ctx context.Context, orgID uuid.UUID) {
	if g.cache == nil {
		return
	}

	// The write has already happened; a cancelled request must not leave a
	// stale entry behind.
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
	defer cancel()

	if _, err := g.cache.Bump(cacheCtx, StatsGenerationKey(orgID)); err != nil {
		g.logger.WarnContext(ctx, "stats generation bump failed",
			"org_id", orgID,
			"error", err,
		)
	}
	if err := g.cache.Delete(cacheCtx, StatsCacheKey(orgID)); err != nil {
		g.logger.WarnContext(ctx, "stats cache invalidation failed",
			"org_id", orgID,
			"error", err,
		)
	}
}
