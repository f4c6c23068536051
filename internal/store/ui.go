package store

import "github.com/BuzzLyutic/kanban-sync/internal/model"

// UI state never syncs remotely.

// SetActiveProject selects a project and clears the task selection.
func (s *Store) SetActiveProject(id string) {
	s.mutate(func(st *State) bool {
		st.ActiveProjectID = id
		st.ActiveTaskID = ""
		return true
	})
}

func (s *Store) SetActiveTask(id string) {
	s.mutate(func(st *State) bool {
		if st.ActiveTaskID == id {
			return false
		}
		st.ActiveTaskID = id
		return true
	})
}

func (s *Store) ToggleTheme() Theme {
	var theme Theme
	s.mutate(func(st *State) bool {
		if st.Theme == ThemeDark {
			st.Theme = ThemeLight
		} else {
			st.Theme = ThemeDark
		}
		theme = st.Theme
		return true
	})
	return theme
}

func (s *Store) SetTheme(theme Theme) {
	s.mutate(func(st *State) bool {
		if st.Theme == theme {
			return false
		}
		st.Theme = theme
		return true
	})
}

func (s *Store) SetSearchQuery(q string) {
	s.mutate(func(st *State) bool {
		if st.SearchQuery == q {
			return false
		}
		st.SearchQuery = q
		return true
	})
}

// SetFilterAssignee filters by user id; "" clears the filter.
func (s *Store) SetFilterAssignee(userID string) {
	s.mutate(func(st *State) bool {
		if st.FilterAssignee == userID {
			return false
		}
		st.FilterAssignee = userID
		return true
	})
}

// SetFilterPriority filters by priority; "" clears the filter.
func (s *Store) SetFilterPriority(p model.Priority) {
	s.mutate(func(st *State) bool {
		if st.FilterPriority == p {
			return false
		}
		st.FilterPriority = p
		return true
	})
}
