package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BuzzLyutic/kanban-sync/internal/repo"
)

type IntentKind string

const (
	IntentUpsertProject IntentKind = "upsertProject"
	IntentUpsertTask    IntentKind = "upsertTask"
	IntentPatchTask     IntentKind = "patchTask"
	IntentPatchProject  IntentKind = "patchProject"
	IntentDeleteTask    IntentKind = "deleteTask"
)

// Intent is a replayable description of one remote write. The set of
// implementations is closed.
type Intent interface {
	Kind() IntentKind
	EntityID() string
	Replay(ctx context.Context, gw repo.Gateway) error
	intent()
}

type UpsertProject struct {
	Row repo.ProjectRow
}

type UpsertTask struct {
	Row repo.TaskRow
}

type PatchTask struct {
	ID    string
	Patch repo.Patch
}

type PatchProject struct {
	ID    string
	Patch repo.Patch
}

type DeleteTask struct {
	ID string
}

func (UpsertProject) Kind() IntentKind { return IntentUpsertProject }
func (UpsertTask) Kind() IntentKind    { return IntentUpsertTask }
func (PatchTask) Kind() IntentKind     { return IntentPatchTask }
func (PatchProject) Kind() IntentKind  { return IntentPatchProject }
func (DeleteTask) Kind() IntentKind    { return IntentDeleteTask }

func (i UpsertProject) EntityID() string { return i.Row.ID }
func (i UpsertTask) EntityID() string    { return i.Row.ID }
func (i PatchTask) EntityID() string     { return i.ID }
func (i PatchProject) EntityID() string  { return i.ID }
func (i DeleteTask) EntityID() string    { return i.ID }

func (i UpsertProject) Replay(ctx context.Context, gw repo.Gateway) error {
	return gw.UpsertProject(ctx, i.Row)
}

func (i UpsertTask) Replay(ctx context.Context, gw repo.Gateway) error {
	return gw.UpsertTask(ctx, i.Row)
}

func (i PatchTask) Replay(ctx context.Context, gw repo.Gateway) error {
	return gw.Patch(ctx, repo.KindTasks, i.ID, i.Patch)
}

func (i PatchProject) Replay(ctx context.Context, gw repo.Gateway) error {
	return gw.Patch(ctx, repo.KindProjects, i.ID, i.Patch)
}

func (i DeleteTask) Replay(ctx context.Context, gw repo.Gateway) error {
	return gw.Remove(ctx, repo.KindTasks, i.ID)
}

func (UpsertProject) intent() {}
func (UpsertTask) intent()    {}
func (PatchTask) intent()     {}
func (PatchProject) intent()  {}
func (DeleteTask) intent()    {}

// Entry is one element of the pending-sync queue.
type Entry struct {
	Intent     Intent
	Attempts   int
	EnqueuedAt time.Time
	LastError  string
}

func (e Entry) MarshalJSON() ([]byte, error) {
	var payload any
	switch in := e.Intent.(type) {
	case UpsertProject:
		payload = in.Row
	case UpsertTask:
		payload = in.Row
	case PatchTask:
		payload = in.Patch
	case PatchProject:
		payload = in.Patch
	}

	return json.Marshal(struct {
		Type       IntentKind `json:"type"`
		ID         string     `json:"id"`
		Payload    any        `json:"payload,omitempty"`
		Attempts   int        `json:"attempts"`
		EnqueuedAt time.Time  `json:"enqueued_at"`
		LastError  string     `json:"last_error,omitempty"`
	}{
		Type:       e.Intent.Kind(),
		ID:         e.Intent.EntityID(),
		Payload:    payload,
		Attempts:   e.Attempts,
		EnqueuedAt: e.EnqueuedAt,
		LastError:  e.LastError,
	})
}
