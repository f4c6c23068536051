package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-sync/migrations"
)

const (
	projectSelect = `
		SELECT id, name, description, owner, members, status, start_date, end_date,
		       priority, color, activities, created_at, updated_at
		FROM projects`
	taskSelect = `
		SELECT id, project_id, title, description, status, priority, assignee, tags,
		       due_date, comments, checklist, order_index, created_at, updated_at
		FROM tasks`
)

// PgGateway talks to the hosted Postgres backend.
type PgGateway struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	// listenBackOff schedules reconnects of lost LISTEN connections.
	listenBackOff func() backoff.BackOff
}

func NewPgGateway(pool *pgxpool.Pool, logger *zap.Logger) *PgGateway {
	return &PgGateway{
		pool:          pool,
		logger:        logger,
		listenBackOff: defaultListenBackOff,
	}
}

func defaultListenBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (g *PgGateway) Migrate(ctx context.Context) error {
	sql, err := migrations.FS.ReadFile(migrations.Init)
	if err != nil {
		return err
	}
	if _, err := g.pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply %s: %w", migrations.Init, err)
	}
	return nil
}

func (g *PgGateway) Ping(ctx context.Context) error {
	return g.pool.Ping(ctx)
}

func (g *PgGateway) FetchProjects(ctx context.Context) ([]ProjectRow, error) {
	rows, err := g.pool.Query(ctx, projectSelect+" ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, g.mapError(err)
	}
	defer rows.Close()

	projects := make([]ProjectRow, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (g *PgGateway) FetchTasks(ctx context.Context) ([]TaskRow, error) {
	rows, err := g.pool.Query(ctx, taskSelect+" ORDER BY order_index ASC, created_at ASC")
	if err != nil {
		return nil, g.mapError(err)
	}
	defer rows.Close()

	tasks := make([]TaskRow, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (g *PgGateway) GetProject(ctx context.Context, id string) (ProjectRow, error) {
	p, err := scanProject(g.pool.QueryRow(ctx, projectSelect+" WHERE id = $1", id))
	if err == pgx.ErrNoRows {
		return p, ErrorNotFound
	}
	return p, g.mapError(err)
}

func (g *PgGateway) GetTask(ctx context.Context, id string) (TaskRow, error) {
	t, err := scanTask(g.pool.QueryRow(ctx, taskSelect+" WHERE id = $1", id))
	if err == pgx.ErrNoRows {
		return t, ErrorNotFound
	}
	return t, g.mapError(err)
}

func (g *PgGateway) CountProjects(ctx context.Context) (int, error) {
	var n int
	err := g.pool.QueryRow(ctx, "SELECT COUNT(*) FROM projects").Scan(&n)
	return n, g.mapError(err)
}

func (g *PgGateway) UpsertProject(ctx context.Context, p ProjectRow) error {
	_, err := g.pool.Exec(ctx, `
		INSERT INTO projects (id, name, description, owner, members, status, start_date, end_date,
		                      priority, color, activities, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description, owner = EXCLUDED.owner,
			members = EXCLUDED.members, status = EXCLUDED.status, start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date, priority = EXCLUDED.priority, color = EXCLUDED.color,
			activities = EXCLUDED.activities, created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`, p.ID, p.Name, p.Description, p.Owner, orEmpty(p.Members), p.Status, p.StartDate, p.EndDate,
		p.Priority, p.Color, orEmpty(p.Activities), p.CreatedAt, p.UpdatedAt)
	return g.mapError(err)
}

func (g *PgGateway) UpsertTask(ctx context.Context, t TaskRow) error {
	_, err := g.pool.Exec(ctx, `
		INSERT INTO tasks (id, project_id, title, description, status, priority, assignee, tags,
		                   due_date, comments, checklist, order_index, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			project_id = EXCLUDED.project_id, title = EXCLUDED.title,
			description = EXCLUDED.description, status = EXCLUDED.status,
			priority = EXCLUDED.priority, assignee = EXCLUDED.assignee, tags = EXCLUDED.tags,
			due_date = EXCLUDED.due_date, comments = EXCLUDED.comments,
			checklist = EXCLUDED.checklist, order_index = EXCLUDED.order_index,
			created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at
	`, t.ID, t.ProjectID, t.Title, t.Description, t.Status, t.Priority, t.Assignee, orEmpty(t.Tags),
		t.DueDate, orEmpty(t.Comments), orEmpty(t.Checklist), t.OrderIndex, t.CreatedAt, t.UpdatedAt)
	return g.mapError(err)
}

func (g *PgGateway) Patch(ctx context.Context, kind Kind, id string, patch Patch) error {
	cols, err := columnsFor(kind)
	if err != nil {
		return err
	}

	sets := make([]string, 0, len(patch)+1)
	args := []any{id}
	for _, name := range patch.Columns() {
		if _, ok := cols[name]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrorUnknownColumn, kind, name)
		}
		args = append(args, patch[name])
		sets = append(sets, fmt.Sprintf("%s = $%d", name, len(args)))
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", kind, strings.Join(sets, ", "))
	_, err = g.pool.Exec(ctx, query, args...)
	return g.mapError(err)
}

func (g *PgGateway) Remove(ctx context.Context, kind Kind, id string) error {
	if _, err := columnsFor(kind); err != nil {
		return err
	}
	_, err := g.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", kind), id)
	return g.mapError(err)
}

func scanProject(row pgx.Row) (ProjectRow, error) {
	var p ProjectRow
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Owner, &p.Members, &p.Status,
		&p.StartDate, &p.EndDate, &p.Priority, &p.Color, &p.Activities, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanTask(row pgx.Row) (TaskRow, error) {
	var t TaskRow
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.Assignee, &t.Tags, &t.DueDate, &t.Comments, &t.Checklist, &t.OrderIndex,
		&t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (g *PgGateway) mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrorConflict, pgErr.Message)
		case "23502", "23514", "22P02":
			return fmt.Errorf("%w: %s", ErrorInvalidRow, pgErr.Message)
		}
	}
	return err
}
