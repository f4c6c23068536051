package repo

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrorNotFound      = errors.New("not found")
	ErrorConflict      = errors.New("conflict")
	ErrorInvalidRow    = errors.New("invalid row")
	ErrorUnknownKind   = errors.New("unknown entity kind")
	ErrorUnknownColumn = errors.New("unknown column")
)

// Kind names a remote table.
type Kind string

const (
	KindProjects Kind = "projects"
	KindTasks    Kind = "tasks"
)

// Gateway is the stateless request/response side of the hosted backend.
type Gateway interface {
	// FetchProjects returns projects ordered by creation time ascending.
	FetchProjects(ctx context.Context) ([]ProjectRow, error)
	// FetchTasks returns tasks ordered by order_index ascending.
	FetchTasks(ctx context.Context) ([]TaskRow, error)
	CountProjects(ctx context.Context) (int, error)
	// Upserts are keyed by id and safe to repeat.
	UpsertProject(ctx context.Context, row ProjectRow) error
	UpsertTask(ctx context.Context, row TaskRow) error
	// Patch sets the named columns only and stamps updated_at.
	Patch(ctx context.Context, kind Kind, id string, patch Patch) error
	// Remove is idempotent: a missing id is not an error.
	Remove(ctx context.Context, kind Kind, id string) error
}

type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Change is one row-level notification from the realtime feed. Row is
// empty for deletes.
type Change struct {
	Type ChangeType      `json:"type"`
	Kind Kind            `json:"kind"`
	ID   string          `json:"id"`
	Row  json.RawMessage `json:"row,omitempty"`
}

type Subscription interface {
	Close() error
}

// ChangeFeed pushes row changes for one table to handler until the
// subscription is closed.
type ChangeFeed interface {
	Subscribe(ctx context.Context, kind Kind, handler func(Change)) (Subscription, error)
}
