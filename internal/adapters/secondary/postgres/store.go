// Package postgres implements the entity store on PostgreSQL with pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

const uniqueViolation = "23505"

// NewStore returns the PostgreSQL implementations of every repository.
func NewStore(pool *pgxpool.Pool) ports.Store {
	tm := NewTransactionManager(pool)
	return ports.Store{
		Users:         NewUserRepository(pool),
		Organizations: NewOrganizationRepository(pool),
		Projects:      NewProjectRepository(pool, tm),
		Tasks:         NewTaskRepository(pool, tm),
		Comments:      NewCommentRepository(pool),
	}
}

// Migrate applies every pending migration found at sourceURL.
func Migrate(sourceURL, databaseURL string) error {
	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Pinger adapts a pool to the health checker interface.
type Pinger struct {
	pool *pgxpool.Pool
}

// NewPinger creates a health checker for pool.
func NewPinger(pool *pgxpool.Pool) *Pinger {
	return &Pinger{pool: pool}
}

// Ping checks that a pooled connection answers.
func (p *Pinger) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// notFound translates pgx.ErrNoRows into the given domain error.
func notFound(err, target error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return target
	}
	return err
}

// isUniqueViolation reports whether err violates the named unique constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == uniqueViolation &&
		pgErr.ConstraintName == constraint
}

// collect scans every row with scan and closes rows.
func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()

	out := make([]*T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
