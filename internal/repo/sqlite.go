package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	owner TEXT NOT NULL,
	members TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	start_date TEXT,
	end_date TEXT,
	priority TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT '',
	activities TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	priority TEXT NOT NULL,
	assignee TEXT,
	tags TEXT NOT NULL DEFAULT '[]',
	due_date TEXT,
	comments TEXT NOT NULL DEFAULT '[]',
	checklist TEXT NOT NULL DEFAULT '[]',
	order_index INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_projects_created ON projects(created_at);
CREATE INDEX IF NOT EXISTS idx_tasks_order ON tasks(order_index);
`

// SQLiteGateway is a single-file backend for local development and
// tests. Realtime changes are those made through this gateway.
type SQLiteGateway struct {
	db     *sql.DB
	feed   *Broadcaster
	logger *zap.Logger
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" for
// a throwaway database.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteGateway, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps :memory: databases on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteGateway{
		db:     db,
		feed:   NewBroadcaster(logger),
		logger: logger,
	}, nil
}

func (g *SQLiteGateway) Close() error {
	return g.db.Close()
}

func (g *SQLiteGateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

func (g *SQLiteGateway) Subscribe(ctx context.Context, kind Kind, handler func(Change)) (Subscription, error) {
	return g.feed.Subscribe(ctx, kind, handler)
}

func (g *SQLiteGateway) FetchProjects(ctx context.Context) ([]ProjectRow, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, name, description, owner, members, status, start_date, end_date,
		       priority, color, activities, created_at, updated_at
		FROM projects ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]ProjectRow, 0)
	for rows.Next() {
		p, err := scanSQLiteProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (g *SQLiteGateway) FetchTasks(ctx context.Context) ([]TaskRow, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, project_id, title, description, status, priority, assignee, tags,
		       due_date, comments, checklist, order_index, created_at, updated_at
		FROM tasks ORDER BY order_index ASC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]TaskRow, 0)
	for rows.Next() {
		t, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (g *SQLiteGateway) CountProjects(ctx context.Context) (int, error) {
	var n int
	err := g.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects").Scan(&n)
	return n, err
}

func (g *SQLiteGateway) UpsertProject(ctx context.Context, p ProjectRow) error {
	owner, members, activities, err := encode3(p.Owner, orEmpty(p.Members), orEmpty(p.Activities))
	if err != nil {
		return err
	}

	existed, err := g.exists(ctx, KindProjects, p.ID)
	if err != nil {
		return err
	}

	_, err = g.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, owner, members, status, start_date, end_date,
		                      priority, color, activities, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, description = excluded.description, owner = excluded.owner,
			members = excluded.members, status = excluded.status, start_date = excluded.start_date,
			end_date = excluded.end_date, priority = excluded.priority, color = excluded.color,
			activities = excluded.activities, created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.Description, owner, members, p.Status, p.StartDate, p.EndDate,
		p.Priority, p.Color, activities, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return err
	}

	g.publishRow(KindProjects, p.ID, existed, p)
	return nil
}

func (g *SQLiteGateway) UpsertTask(ctx context.Context, t TaskRow) error {
	tags, comments, checklist, err := encode3(orEmpty(t.Tags), orEmpty(t.Comments), orEmpty(t.Checklist))
	if err != nil {
		return err
	}
	assignee, err := encodeNullable(t.Assignee)
	if err != nil {
		return err
	}

	existed, err := g.exists(ctx, KindTasks, t.ID)
	if err != nil {
		return err
	}

	_, err = g.db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, description, status, priority, assignee, tags,
		                   due_date, comments, checklist, order_index, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			project_id = excluded.project_id, title = excluded.title,
			description = excluded.description, status = excluded.status,
			priority = excluded.priority, assignee = excluded.assignee, tags = excluded.tags,
			due_date = excluded.due_date, comments = excluded.comments,
			checklist = excluded.checklist, order_index = excluded.order_index,
			created_at = excluded.created_at, updated_at = excluded.updated_at
	`, t.ID, t.ProjectID, t.Title, t.Description, t.Status, t.Priority, assignee, tags,
		t.DueDate, comments, checklist, t.OrderIndex, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return err
	}

	g.publishRow(KindTasks, t.ID, existed, t)
	return nil
}

func (g *SQLiteGateway) Patch(ctx context.Context, kind Kind, id string, patch Patch) error {
	cols, err := columnsFor(kind)
	if err != nil {
		return err
	}

	sets := make([]string, 0, len(patch)+1)
	args := make([]any, 0, len(patch)+2)
	for _, name := range patch.Columns() {
		col, ok := cols[name]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrorUnknownColumn, kind, name)
		}
		v := patch[name]
		if col.json {
			if v, err = encodeNullable(v); err != nil {
				return err
			}
		}
		sets = append(sets, name+" = ?")
		args = append(args, v)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(time.Now().UTC()), id)

	res, err := g.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", kind, strings.Join(sets, ", ")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	return g.publishCurrent(ctx, kind, id)
}

func (g *SQLiteGateway) Remove(ctx context.Context, kind Kind, id string) error {
	if _, err := columnsFor(kind); err != nil {
		return err
	}
	res, err := g.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", kind), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		g.feed.Publish(Change{Type: ChangeDelete, Kind: kind, ID: id})
	}
	return nil
}

func (g *SQLiteGateway) exists(ctx context.Context, kind Kind, id string) (bool, error) {
	var one int
	err := g.db.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", kind), id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (g *SQLiteGateway) publishCurrent(ctx context.Context, kind Kind, id string) error {
	var (
		row any
		err error
	)
	switch kind {
	case KindTasks:
		row, err = scanSQLiteTask(g.db.QueryRowContext(ctx, `
			SELECT id, project_id, title, description, status, priority, assignee, tags,
			       due_date, comments, checklist, order_index, created_at, updated_at
			FROM tasks WHERE id = ?`, id))
	case KindProjects:
		row, err = scanSQLiteProject(g.db.QueryRowContext(ctx, `
			SELECT id, name, description, owner, members, status, start_date, end_date,
			       priority, color, activities, created_at, updated_at
			FROM projects WHERE id = ?`, id))
	}
	if err != nil {
		return err
	}
	g.publishRow(kind, id, true, row)
	return nil
}

func (g *SQLiteGateway) publishRow(kind Kind, id string, existed bool, row any) {
	data, err := json.Marshal(row)
	if err != nil {
		g.logger.Warn("encode change row", zap.String("id", id), zap.Error(err))
		return
	}
	typ := ChangeInsert
	if existed {
		typ = ChangeUpdate
	}
	g.feed.Publish(Change{Type: typ, Kind: kind, ID: id, Row: data})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteProject(s scanner) (ProjectRow, error) {
	var (
		p                          ProjectRow
		owner, members, activities string
		createdAt, updatedAt       string
	)
	err := s.Scan(&p.ID, &p.Name, &p.Description, &owner, &members, &p.Status, &p.StartDate,
		&p.EndDate, &p.Priority, &p.Color, &activities, &createdAt, &updatedAt)
	if err != nil {
		return p, err
	}
	if err := decodeAll(
		decodeTarget{owner, &p.Owner},
		decodeTarget{members, &p.Members},
		decodeTarget{activities, &p.Activities},
	); err != nil {
		return p, err
	}
	p.CreatedAt, p.UpdatedAt, err = parseTimes(createdAt, updatedAt)
	return p, err
}

func scanSQLiteTask(s scanner) (TaskRow, error) {
	var (
		t                         TaskRow
		assignee                  sql.NullString
		tags, comments, checklist string
		createdAt, updatedAt      string
	)
	err := s.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&assignee, &tags, &t.DueDate, &comments, &checklist, &t.OrderIndex, &createdAt, &updatedAt)
	if err != nil {
		return t, err
	}
	targets := []decodeTarget{
		{tags, &t.Tags},
		{comments, &t.Comments},
		{checklist, &t.Checklist},
	}
	if assignee.Valid {
		targets = append(targets, decodeTarget{assignee.String, &t.Assignee})
	}
	if err := decodeAll(targets...); err != nil {
		return t, err
	}
	t.CreatedAt, t.UpdatedAt, err = parseTimes(createdAt, updatedAt)
	return t, err
}

type decodeTarget struct {
	data string
	dst  any
}

func decodeAll(targets ...decodeTarget) error {
	for _, t := range targets {
		if err := json.Unmarshal([]byte(t.data), t.dst); err != nil {
			return fmt.Errorf("%w: %v", ErrorInvalidRow, err)
		}
	}
	return nil
}

func encode3(a, b, c any) (string, string, string, error) {
	out := make([]string, 3)
	for i, v := range []any{a, b, c} {
		data, err := json.Marshal(v)
		if err != nil {
			return "", "", "", err
		}
		out[i] = string(data)
	}
	return out[0], out[1], out[2], nil
}

// encodeNullable JSON encodes v, mapping JSON null to SQL NULL.
func encodeNullable(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return string(data), nil
}

// timeLayout is fixed width so TEXT comparison orders chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimes(created, updated string) (time.Time, time.Time, error) {
	c, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return c, time.Time{}, fmt.Errorf("%w: created_at: %v", ErrorInvalidRow, err)
	}
	u, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return c, u, fmt.Errorf("%w: updated_at: %v", ErrorInvalidRow, err)
	}
	return c, u, nil
}
