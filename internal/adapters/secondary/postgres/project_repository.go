package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

type ProjectRepository struct {
	pool *pgxpool.Pool
	tm   *TransactionManager
}

var _ ports.ProjectRepository = (*ProjectRepository)(nil)

// NewProjectRepository creates a new project repository
func NewProjectRepository(pool *pgxpool.Pool, tm *TransactionManager) *ProjectRepository {
	return &ProjectRepository{pool: pool, tm: tm}
}

const projectColumns = `p.id, p.organization_id, p.name, p.description, p.status, p.due_date, p.created_at, p.updated_at`

func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	if err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Description, &p.Status, &p.DueDate, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProjectWithCounts(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	if err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Description, &p.Status, &p.DueDate, &p.CreatedAt, &p.UpdatedAt,
		&p.TaskCount, &p.CompletedTasks); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO projects AS p (id, organization_id, name, description, status, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+projectColumns,
		project.ID, project.OrganizationID, project.Name, project.Description,
		project.Status, project.DueDate, project.CreatedAt, project.UpdatedAt,
	)
	return scanProject(row)
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects p WHERE p.id = $1`, id)
	project, err := scanProject(row)
	if err != nil {
		return nil, notFound(err, apperrors.ErrProjectNotFound)
	}
	return project, nil
}

// ListByOrganization returns the organization's projects with task counts,
// oldest first.
func (r *ProjectRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*domain.Project, error) {
	rows, err := GetDBTX(ctx, r.pool).Query(ctx, `
		SELECT `+projectColumns+`,
		       COUNT(t.id)::int AS task_count,
		       COUNT(t.id) FILTER (WHERE t.status = 'DONE')::int AS completed_tasks
		FROM projects p
		LEFT JOIN tasks t ON t.project_id = p.id
		WHERE p.organization_id = $1
		GROUP BY p.id
		ORDER BY p.created_at, p.id`, orgID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProjectWithCounts)
}

// Update writes the mutable fields and returns the stored row.
func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx, `
		UPDATE projects AS p
		SET name = $2, description = $3, status = $4, due_date = $5, updated_at = $6
		WHERE p.id = $1
		RETURNING `+projectColumns,
		project.ID, project.Name, project.Description, project.Status, project.DueDate, project.UpdatedAt,
	)
	updated, err := scanProject(row)
	if err != nil {
		return nil, notFound(err, apperrors.ErrProjectNotFound)
	}
	return updated, nil
}

// Delete removes the project, its tasks and their comments in one transaction.
func (r *ProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.tm.WithTransaction(ctx, func(ctx context.Context) error {
		db := GetDBTX(ctx, r.pool)

		if _, err := db.Exec(ctx, `
			DELETE FROM comments
			WHERE task_id IN (SELECT id FROM tasks WHERE project_id = $1)`, id); err != nil {
			return fmt.Errorf("delete project comments: %w", err)
		}
		if _, err := db.Exec(ctx, `DELETE FROM tasks WHERE project_id = $1`, id); err != nil {
			return fmt.Errorf("delete project tasks: %w", err)
		}

		tag, err := db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.ErrProjectNotFound
		}
		return nil
	})
}

// Stats reads project and task counts from one snapshot. CompletionRate is
// left for the caller to compute.
func (r *ProjectRepository) Stats(ctx context.Context, orgID uuid.UUID) (*domain.ProjectStats, error) {
	var stats domain.ProjectStats

	err := r.tm.WithReadOnlyTransaction(ctx, func(ctx context.Context) error {
		db := GetDBTX(ctx, r.pool)

		if err := db.QueryRow(ctx, `
			SELECT COUNT(*)::int,
			       COUNT(*) FILTER (WHERE status = 'ACTIVE')::int,
			       COUNT(*) FILTER (WHERE status = 'COMPLETED')::int,
			       COUNT(*) FILTER (WHERE status = 'ON_HOLD')::int
			FROM projects
			WHERE organization_id = $1`, orgID,
		).Scan(&stats.TotalProjects, &stats.ActiveProjects, &stats.CompletedProjects, &stats.OnHoldProjects); err != nil {
			return fmt.Errorf("count projects: %w", err)
		}

		if err := db.QueryRow(ctx, `
			SELECT COUNT(t.id)::int,
			       COUNT(t.id) FILTER (WHERE t.status = 'DONE')::int
			FROM tasks t
			JOIN projects p ON p.id = t.project_id
			WHERE p.organization_id = $1`, orgID,
		).Scan(&stats.TotalTasks, &stats.CompletedTasks); err != nil {
			return fmt.Errorf("count tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
