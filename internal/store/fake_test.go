package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/BuzzLyutic/kanban-sync/internal/repo"
)

var errBackendDown = errors.New("backend unreachable")

// fakeGateway is an in-memory repo.Gateway with failure injection.
type fakeGateway struct {
	mu       sync.Mutex
	down     bool
	failIDs  map[string]bool
	hang     bool
	projects map[string]repo.ProjectRow
	tasks    map[string]repo.TaskRow
	calls    []string
	patches  []repo.Patch

	// entered receives once per write before gate is consulted.
	entered chan string
	gate    chan struct{}

	onCount func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		failIDs:  map[string]bool{},
		projects: map[string]repo.ProjectRow{},
		tasks:    map[string]repo.TaskRow{},
	}
}

func (f *fakeGateway) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeGateway) failFor(id string, fail bool) {
	f.mu.Lock()
	f.failIDs[id] = fail
	f.mu.Unlock()
}

func (f *fakeGateway) write(ctx context.Context, call, id string) error {
	f.mu.Lock()
	entered, gate, hang := f.entered, f.gate, f.hang
	f.mu.Unlock()

	if entered != nil {
		entered <- id
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call+":"+id)
	if f.down || f.failIDs[id] {
		return errBackendDown
	}
	return nil
}

func (f *fakeGateway) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func (f *fakeGateway) task(id string) (repo.TaskRow, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.tasks[id]
	return r, ok
}

func (f *fakeGateway) FetchProjects(ctx context.Context) ([]repo.ProjectRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errBackendDown
	}
	out := make([]repo.ProjectRow, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeGateway) FetchTasks(ctx context.Context) ([]repo.TaskRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errBackendDown
	}
	out := make([]repo.TaskRow, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (f *fakeGateway) CountProjects(ctx context.Context) (int, error) {
	f.mu.Lock()
	hook := f.onCount
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return 0, errBackendDown
	}
	return len(f.projects), nil
}

func (f *fakeGateway) UpsertProject(ctx context.Context, row repo.ProjectRow) error {
	if err := f.write(ctx, "upsertProject", row.ID); err != nil {
		return err
	}
	f.mu.Lock()
	f.projects[row.ID] = row
	f.mu.Unlock()
	return nil
}

func (f *fakeGateway) UpsertTask(ctx context.Context, row repo.TaskRow) error {
	if err := f.write(ctx, "upsertTask", row.ID); err != nil {
		return err
	}
	f.mu.Lock()
	f.tasks[row.ID] = row
	f.mu.Unlock()
	return nil
}

// Patch merges columns through the rows' JSON form, whose keys match the
// column names.
func (f *fakeGateway) Patch(ctx context.Context, kind repo.Kind, id string, patch repo.Patch) error {
	if err := f.write(ctx, "patch"+string(kind), id); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patch)

	switch kind {
	case repo.KindTasks:
		row, ok := f.tasks[id]
		if !ok {
			return repo.ErrorNotFound
		}
		if err := merge(&row, patch); err != nil {
			return err
		}
		f.tasks[id] = row
	case repo.KindProjects:
		row, ok := f.projects[id]
		if !ok {
			return repo.ErrorNotFound
		}
		if err := merge(&row, patch); err != nil {
			return err
		}
		f.projects[id] = row
	default:
		return repo.ErrorUnknownKind
	}
	return nil
}

func (f *fakeGateway) Remove(ctx context.Context, kind repo.Kind, id string) error {
	if err := f.write(ctx, "remove"+string(kind), id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind == repo.KindTasks {
		delete(f.tasks, id)
	} else {
		delete(f.projects, id)
	}
	return nil
}

func merge(dst any, patch repo.Patch) error {
	raw, err := json.Marshal(dst)
	if err != nil {
		return err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	for k, v := range patch {
		fields[k] = v
	}
	raw, err = json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
