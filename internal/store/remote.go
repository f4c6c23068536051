package store

import (
	"github.com/BuzzLyutic/kanban-sync/internal/model"
	"github.com/BuzzLyutic/kanban-sync/internal/repo"
)

// ApplyRemoteTask merges a task received from the change feed. Inserts of
// an id already held are ignored, updates of an unknown id are ignored.
// Remote changes never touch the pending queue.
func (s *Store) ApplyRemoteTask(typ repo.ChangeType, task model.Task) bool {
	return s.mutate(func(st *State) bool {
		i := indexTask(st.Tasks, task.ID)
		switch typ {
		case repo.ChangeInsert:
			if i >= 0 {
				return false
			}
			st.Tasks = appendCopy(st.Tasks, task)
		case repo.ChangeUpdate:
			if i < 0 {
				return false
			}
			tasks := appendCopy(st.Tasks)
			tasks[i] = task
			st.Tasks = tasks
		case repo.ChangeDelete:
			if i < 0 {
				return false
			}
			st.Tasks = removeAt(st.Tasks, i)
			if st.ActiveTaskID == task.ID {
				st.ActiveTaskID = ""
			}
		default:
			return false
		}
		return true
	})
}

func (s *Store) ApplyRemoteProject(typ repo.ChangeType, project model.Project) bool {
	return s.mutate(func(st *State) bool {
		i := indexProject(st.Projects, project.ID)
		switch typ {
		case repo.ChangeInsert:
			if i >= 0 {
				return false
			}
			st.Projects = appendCopy(st.Projects, project)
		case repo.ChangeUpdate:
			if i < 0 {
				return false
			}
			projects := appendCopy(st.Projects)
			projects[i] = project
			st.Projects = projects
		case repo.ChangeDelete:
			if i < 0 {
				return false
			}
			st.Projects = removeAt(st.Projects, i)
			if st.ActiveProjectID == project.ID {
				st.ActiveProjectID = ""
			}
		default:
			return false
		}
		return true
	})
}

// RemoveRemote handles a delete event that carries only an id.
func (s *Store) RemoveRemote(kind repo.Kind, id string) bool {
	switch kind {
	case repo.KindTasks:
		return s.ApplyRemoteTask(repo.ChangeDelete, model.Task{ID: id})
	case repo.KindProjects:
		return s.ApplyRemoteProject(repo.ChangeDelete, model.Project{ID: id})
	}
	return false
}
