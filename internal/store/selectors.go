package store

import (
	"math"
	"sort"
	"strings"

	"github.com/BuzzLyutic/kanban-sync/internal/model"
)

// ProjectTasks returns the tasks owned by projectID in state order.
func ProjectTasks(tasks []model.Task, projectID string) []model.Task {
	out := make([]model.Task, 0)
	for _, t := range tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out
}

// FilterTasks narrows a project's tasks. query matches title or any tag,
// case-insensitively. Empty arguments do not filter.
func FilterTasks(tasks []model.Task, projectID, query, assignee string, priority model.Priority) []model.Task {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Task, 0)
	for _, t := range tasks {
		if t.ProjectID != projectID {
			continue
		}
		if q != "" && !matchesQuery(t, q) {
			continue
		}
		if assignee != "" && (t.Assignee == nil || t.Assignee.ID != assignee) {
			continue
		}
		if priority != "" && t.Priority != priority {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesQuery(t model.Task, q string) bool {
	if strings.Contains(strings.ToLower(t.Title), q) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// VisibleTasks applies the state's own search and filter settings.
func (st State) VisibleTasks(projectID string) []model.Task {
	return FilterTasks(st.Tasks, projectID, st.SearchQuery, st.FilterAssignee, st.FilterPriority)
}

type Stats struct {
	Total      int                      `json:"total"`
	Done       int                      `json:"done"`
	Completion int                      `json:"completion"`
	ByStatus   map[model.TaskStatus]int `json:"byStatus"`
	ByPriority map[model.Priority]int   `json:"byPriority"`
	Overdue    int                      `json:"overdue"`
}

// ProjectStats computes dashboard counters. today is a YYYY-MM-DD date;
// unfinished tasks due before it count as overdue.
func ProjectStats(tasks []model.Task, projectID, today string) Stats {
	st := Stats{
		ByStatus:   make(map[model.TaskStatus]int, len(model.Columns)),
		ByPriority: make(map[model.Priority]int, 4),
	}
	for _, c := range model.Columns {
		st.ByStatus[c.ID] = 0
	}
	for _, t := range tasks {
		if t.ProjectID != projectID {
			continue
		}
		st.Total++
		st.ByStatus[t.Status]++
		st.ByPriority[t.Priority]++
		if t.Status == model.StatusDone {
			st.Done++
			continue
		}
		if t.DueDate != nil && *t.DueDate != "" && *t.DueDate < today {
			st.Overdue++
		}
	}
	if st.Total > 0 {
		st.Completion = int(math.Round(float64(st.Done) * 100 / float64(st.Total)))
	}
	return st
}

type BoardColumn struct {
	model.Column
	Tasks []model.Task `json:"tasks"`
}

// Board groups tasks into the fixed column set, each sorted by Order.
// Ties keep state order.
func Board(tasks []model.Task) []BoardColumn {
	cols := make([]BoardColumn, len(model.Columns))
	index := make(map[model.TaskStatus]int, len(model.Columns))
	for i, c := range model.Columns {
		cols[i] = BoardColumn{Column: c, Tasks: []model.Task{}}
		index[c.ID] = i
	}
	for _, t := range tasks {
		if i, ok := index[t.Status]; ok {
			cols[i].Tasks = append(cols[i].Tasks, t)
		}
	}
	for i := range cols {
		ts := cols[i].Tasks
		sort.SliceStable(ts, func(a, b int) bool { return ts[a].Order < ts[b].Order })
	}
	return cols
}
