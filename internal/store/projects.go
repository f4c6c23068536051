package store

import (
	"github.com/BuzzLyutic/kanban-sync/internal/model"
	"github.com/BuzzLyutic/kanban-sync/internal/repo"
)

func (s *Store) AddProject(project model.Project) {
	s.mutate(func(st *State) bool {
		st.Projects = appendCopy(st.Projects, project)
		return true
	})
	s.sync(UpsertProject{Row: repo.ProjectToRow(project)})
}

// UpdateProject mirrors UpdateTask for projects.
func (s *Store) UpdateProject(id string, patch model.ProjectPatch) bool {
	now := s.opts.Now()
	found := s.mutate(func(st *State) bool {
		i := indexProject(st.Projects, id)
		if i < 0 {
			return false
		}
		projects := appendCopy(st.Projects)
		p := patch.Apply(projects[i])
		p.UpdatedAt = now
		projects[i] = p
		st.Projects = projects
		return true
	})
	if !found {
		return false
	}
	s.sync(PatchProject{ID: id, Patch: repo.ProjectPatchRow(patch)})
	return true
}

// LogActivity appends an entry to a project's activity log.
func (s *Store) LogActivity(projectID string, entry model.ActivityEntry) bool {
	p, ok := s.Project(projectID)
	if !ok {
		return false
	}
	return s.UpdateProject(projectID, model.ProjectPatch{
		Activities: model.Set(appendCopy(p.Activities, entry)),
	})
}

func (s *Store) Project(id string) (model.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexProject(s.state.Projects, id); i >= 0 {
		return s.state.Projects[i], true
	}
	return model.Project{}, false
}

func indexProject(projects []model.Project, id string) int {
	for i := range projects {
		if projects[i].ID == id {
			return i
		}
	}
	return -1
}
