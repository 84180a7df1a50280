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

type TaskRepository struct {
	pool *pgxpool.Pool
	tm   *TransactionManager
}

var _ ports.TaskRepository = (*TaskRepository)(nil)

// NewTaskRepository creates a new task repository
func NewTaskRepository(pool *pgxpool.Pool, tm *TransactionManager) *TaskRepository {
	return &TaskRepository{pool: pool, tm: tm}
}

const taskColumns = `id, project_id, title, description, status, assignee_email, due_date, created_at, updated_at`

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status,
		&t.AssigneeEmail, &t.DueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO tasks (id, project_id, title, description, status, assignee_email, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+taskColumns,
		task.ID, task.ProjectID, task.Title, task.Description, task.Status,
		task.AssigneeEmail, task.DueDate, task.CreatedAt, task.UpdatedAt,
	)
	return scanTask(row)
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if err != nil {
		return nil, notFound(err, apperrors.ErrTaskNotFound)
	}
	return task, nil
}

// ListByProject returns the project's tasks, oldest first.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Task, error) {
	rows, err := GetDBTX(ctx, r.pool).Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTask)
}

func (r *TaskRepository) Update(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	row := GetDBTX(ctx, r.pool).QueryRow(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, assignee_email = $5, due_date = $6, updated_at = $7
		WHERE id = $1
		RETURNING `+taskColumns,
		task.ID, task.Title, task.Description, task.Status, task.AssigneeEmail, task.DueDate, task.UpdatedAt,
	)
	updated, err := scanTask(row)
	if err != nil {
		return nil, notFound(err, apperrors.ErrTaskNotFound)
	}
	return updated, nil
}

// Delete removes the task and its comments in one transaction.
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.tm.WithTransaction(ctx, func(ctx context.Context) error {
		db := GetDBTX(ctx, r.pool)

		if _, err := db.Exec(ctx, `DELETE FROM comments WHERE task_id = $1`, id); err != nil {
			return fmt.Errorf("delete task comments: %w", err)
		}

		tag, err := db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.ErrTaskNotFound
		}
		return nil
	})
}
