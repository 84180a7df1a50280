package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

// StatsCacheKey is the cache key of an organization's ProjectStats.
func StatsCacheKey(orgID uuid.UUID) string {
	return "stats:org:" + orgID.String()
}

// StatsGenerationKey is the counter the gateway bumps whenever an
// organization's stats may have changed.
func StatsGenerationKey(orgID uuid.UUID) string {
	return "stats:gen:" + orgID.String()
}

// cachedStats tags a snapshot with the generation read before computing it.
// An entry from an older generation is a miss, so a read racing a mutation
// cannot put stale stats back after the gateway invalidated them.
type cachedStats struct {
	Generation int64               `json:"generation"`
	Stats      domain.ProjectStats `json:"stats"`
}

// QueryService serves reads. ProjectStats is cache-aside: a miss computes
// the stats from the store and stores them for statsTTL.
type QueryService struct {
	access   *access
	projects ports.ProjectRepository
	tasks    ports.TaskRepository
	comments ports.CommentRepository
	cache    ports.Cache
	statsTTL time.Duration
	logger   *slog.Logger
}

var _ ports.QueryService = (*QueryService)(nil)

// NewQueryService creates the read service. cache may be nil.
func NewQueryService(store ports.Store, cache ports.Cache, statsTTL time.Duration, logger *slog.Logger) *QueryService {
	return &QueryService{
		access:   newAccess(store),
		projects: store.Projects,
		tasks:    store.Tasks,
		comments: store.Comments,
		cache:    cache,
		statsTTL: statsTTL,
		logger:   logger.With("component", "query"),
	}
}

// ListProjects lists an organization's projects with task counts.
func (s *QueryService) ListProjects(ctx context.Context, actor domain.Principal, orgID uuid.UUID) ([]*domain.Project, error) {
	if _, err := s.access.organization(ctx, actor, orgID); err != nil {
		return nil, err
	}
	return s.projects.ListByOrganization(ctx, orgID)
}

// GetProject returns a project in an organization owned by actor.
func (s *QueryService) GetProject(ctx context.Context, actor domain.Principal, projectID uuid.UUID) (*domain.Project, error) {
	project, _, err := s.access.project(ctx, actor, projectID)
	return project, err
}

// ListTasks lists a project's tasks.
func (s *QueryService) ListTasks(ctx context.Context, actor domain.Principal, projectID uuid.UUID) ([]*domain.Task, error) {
	if _, _, err := s.access.project(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.tasks.ListByProject(ctx, projectID)
}

// GetTask returns a task in an organization owned by actor.
func (s *QueryService) GetTask(ctx context.Context, actor domain.Principal, taskID uuid.UUID) (*domain.Task, error) {
	task, _, err := s.access.task(ctx, actor, taskID)
	return task, err
}

// ListComments lists a task's comments.
func (s *QueryService) ListComments(ctx context.Context, actor domain.Principal, taskID uuid.UUID) ([]*domain.Comment, error) {
	if _, _, err := s.access.task(ctx, actor, taskID); err != nil {
		return nil, err
	}
	return s.comments.ListByTask(ctx, taskID)
}

// ProjectStats returns the organization's stats, from the cache when the
// cached generation is current.
func (s *QueryService) ProjectStats(ctx context.Context, actor domain.Principal, orgID uuid.UUID) (*domain.ProjectStats, error) {
	if _, err := s.access.organization(ctx, actor, orgID); err != nil {
		return nil, err
	}

	key := StatsCacheKey(orgID)
	generation, cacheable := s.statsGeneration(ctx, orgID)
	if cacheable {
		var entry cachedStats
		hit, err := s.cache.Get(ctx, key, &entry)
		if err != nil {
			s.logger.WarnContext(ctx, "stats cache read failed", "org_id", orgID, "error", err)
		} else if hit && entry.Generation == generation {
			return &entry.Stats, nil
		}
	}

	stats, err := s.projects.Stats(ctx, orgID)
	if err != nil {
		return nil, err
	}
	stats.ComputeCompletionRate()

	if cacheable {
		entry := cachedStats{Generation: generation, Stats: *stats}
		if err := s.cache.Set(ctx, key, entry, s.statsTTL); err != nil {
			s.logger.WarnContext(ctx, "stats cache write failed", "org_id", orgID, "error", err)
		}
	}
	return stats, nil
}

// statsGeneration reads the current generation. Without one the result is
// served uncached.
func (s *QueryService) statsGeneration(ctx context.Context, orgID uuid.UUID) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	generation, err := s.cache.Generation(ctx, StatsGenerationKey(orgID))
	if err != nil {
		s.logger.WarnContext(ctx, "stats generation read failed", "org_id", orgID, "error", err)
		return 0, false
	}
	return generation, true
}
