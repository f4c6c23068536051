package store

import (
	"github.com/BuzzLyutic/kanban-sync/internal/model"
	"github.com/BuzzLyutic/kanban-sync/internal/repo"
)

// AddTask appends task locally and upserts it remotely. The caller
// assigns the id (see model.NewID).
func (s *Store) AddTask(task model.Task) {
	s.mutate(func(st *State) bool {
		st.Tasks = appendCopy(st.Tasks, task)
		return true
	})
	s.sync(UpsertTask{Row: repo.TaskToRow(task)})
}

// UpdateTask applies patch to the task with id and always refreshes its
// update timestamp. Only the fields present in patch are sent remotely.
// It reports false, and syncs nothing, when no such task exists.
func (s *Store) UpdateTask(id string, patch model.TaskPatch) bool {
	now := s.opts.Now()
	found := s.mutate(func(st *State) bool {
		i := indexTask(st.Tasks, id)
		if i < 0 {
			return false
		}
		tasks := appendCopy(st.Tasks)
		t := patch.Apply(tasks[i])
		t.UpdatedAt = now
		tasks[i] = t
		st.Tasks = tasks
		return true
	})
	if !found {
		return false
	}
	s.sync(PatchTask{ID: id, Patch: repo.TaskPatchRow(patch)})
	return true
}

// MoveTask changes status and order together; used by drag and drop.
func (s *Store) MoveTask(id string, status model.TaskStatus, order int) bool {
	return s.UpdateTask(id, model.TaskPatch{
		Status: model.Set(status),
		Order:  model.Set(order),
	})
}

// ReorderTask moves task id to the slot held by targetID, takes status,
// and renumbers the order of its column locally. Only the moved task's
// status is persisted; sibling order values stay local.
func (s *Store) ReorderTask(id, targetID string, status model.TaskStatus) bool {
	now := s.opts.Now()
	found := s.mutate(func(st *State) bool {
		from := indexTask(st.Tasks, id)
		to := indexTask(st.Tasks, targetID)
		if from < 0 || to < 0 {
			return false
		}

		tasks := appendCopy(st.Tasks)
		moved := tasks[from]
		moved.Status = status
		moved.UpdatedAt = now
		tasks = append(tasks[:from], tasks[from+1:]...)
		if to > len(tasks) {
			to = len(tasks)
		}
		tasks = append(tasks[:to], append([]model.Task{moved}, tasks[to:]...)...)

		order := 0
		for i := range tasks {
			if tasks[i].ProjectID == moved.ProjectID && tasks[i].Status == status {
				tasks[i].Order = order
				order++
			}
		}
		st.Tasks = tasks
		return true
	})
	if !found {
		return false
	}
	s.sync(PatchTask{ID: id, Patch: repo.Patch{"status": string(status)}})
	return true
}

// DeleteTask removes the task locally and remotely. The remote delete is
// idempotent, so it is issued even if the task is not held locally.
func (s *Store) DeleteTask(id string) {
	s.mutate(func(st *State) bool {
		i := indexTask(st.Tasks, id)
		if i < 0 {
			return false
		}
		st.Tasks = removeAt(st.Tasks, i)
		if st.ActiveTaskID == id {
			st.ActiveTaskID = ""
		}
		return true
	})
	s.sync(DeleteTask{ID: id})
}

// Task returns the task with id from the current state.
func (s *Store) Task(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexTask(s.state.Tasks, id); i >= 0 {
		return s.state.Tasks[i], true
	}
	return model.Task{}, false
}

func indexTask(tasks []model.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func removeAt[T any](s []T, i int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}
