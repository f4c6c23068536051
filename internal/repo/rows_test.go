package repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BuzzLyutic/kanban-sync/internal/model"
)

var (
	ts    = time.Date(2025, 2, 10, 9, 30, 0, 0, time.UTC)
	alice = model.User{ID: "u1", Name: "Alice Moreau", Email: "alice@example.com", Avatar: "AM", Role: "Lead", Color: "#6366f1"}
	bob   = model.User{ID: "u2", Name: "Bob Tran", Email: "bob@example.com", Avatar: "BT", Role: "Engineer", Color: "#10b981"}
)

func fullTaskRow() TaskRow {
	due := "2025-03-01"
	return TaskRow{
		ID:          "t1",
		ProjectID:   "p1",
		Title:       "Wire the API",
		Description: "REST endpoints",
		Status:      "in_progress",
		Priority:    "high",
		Assignee:    &bob,
		Tags:        []string{"api", "integration"},
		DueDate:     &due,
		Comments:    []model.Comment{{ID: "c1", Author: alice, Content: "ship it", CreatedAt: ts}},
		Checklist:   []model.ChecklistItem{{ID: "k1", Label: "schema", Done: true}},
		OrderIndex:  2,
		CreatedAt:   ts,
		UpdatedAt:   ts.Add(time.Hour),
	}
}

func emptyTaskRow() TaskRow {
	return TaskRow{
		ID:        "t2",
		ProjectID: "p1",
		Title:     "Bare",
		Status:    "todo",
		Priority:  "low",
		Tags:      []string{},
		Comments:  []model.Comment{},
		Checklist: []model.ChecklistItem{},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func fullProjectRow() ProjectRow {
	start, end := "2025-01-01", "2025-06-30"
	return ProjectRow{
		ID:          "p1",
		Name:        "Data platform",
		Description: "Lakehouse migration",
		Owner:       alice,
		Members:     []model.User{alice, bob},
		Status:      "active",
		StartDate:   &start,
		EndDate:     &end,
		Priority:    "critical",
		Color:       "#f97316",
		Activities:  []model.ActivityEntry{{ID: "a1", User: alice, Action: "created", Target: "project", CreatedAt: ts}},
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

func emptyProjectRow() ProjectRow {
	return ProjectRow{
		ID:         "p2",
		Name:       "Bare",
		Owner:      alice,
		Members:    []model.User{},
		Status:     "planning",
		Priority:   "low",
		Activities: []model.ActivityEntry{},
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
}

func TestTaskRow_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		row  TaskRow
	}{
		{"all optional fields populated", fullTaskRow()},
		{"all optional fields absent", emptyTaskRow()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.row, TaskToRow(TaskFromRow(tt.row)))

			task := TaskFromRow(tt.row)
			assert.Equal(t, task, TaskFromRow(TaskToRow(task)))
		})
	}
}

func TestProjectRow_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		row  ProjectRow
	}{
		{"all optional fields populated", fullProjectRow()},
		{"all optional fields absent", emptyProjectRow()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.row, ProjectToRow(ProjectFromRow(tt.row)))

			project := ProjectFromRow(tt.row)
			assert.Equal(t, project, ProjectFromRow(ProjectToRow(project)))
		})
	}
}

func TestFromRow_DefaultFilling(t *testing.T) {
	task := TaskFromRow(TaskRow{ID: "t3"})
	assert.NotNil(t, task.Tags)
	assert.NotNil(t, task.Comments)
	assert.NotNil(t, task.Checklist)
	assert.Nil(t, task.Assignee)
	assert.Nil(t, task.DueDate)

	project := ProjectFromRow(ProjectRow{ID: "p3"})
	assert.NotNil(t, project.Members)
	assert.NotNil(t, project.Activities)
	assert.Equal(t, "", project.StartDate)
	assert.Equal(t, "", project.EndDate)

	row := ProjectToRow(project)
	assert.Nil(t, row.StartDate, "empty date is stored as NULL")
	assert.Nil(t, row.EndDate)
}

func TestTaskPatchRow(t *testing.T) {
	t.Run("only present fields", func(t *testing.T) {
		p := TaskPatchRow(model.TaskPatch{Title: model.Set("x")})
		assert.Equal(t, Patch{"title": "x"}, p)
	})

	t.Run("renamed columns", func(t *testing.T) {
		due := "2025-04-01"
		p := TaskPatchRow(model.TaskPatch{
			Status:  model.Set(model.StatusDone),
			Order:   model.Set(0),
			DueDate: model.Set(&due),
		})
		assert.Equal(t, Patch{"status": "done", "order_index": 0, "due_date": &due}, p)
		assert.Equal(t, []string{"due_date", "order_index", "status"}, p.Columns())
	})

	t.Run("clearing the assignee", func(t *testing.T) {
		p := TaskPatchRow(model.TaskPatch{Assignee: model.Set[*model.User](nil)})
		v, ok := p["assignee"]
		assert.True(t, ok)
		assert.Nil(t, v)
	})

	t.Run("empty patch", func(t *testing.T) {
		assert.Empty(t, TaskPatchRow(model.TaskPatch{}))
	})
}

func TestProjectPatchRow(t *testing.T) {
	p := ProjectPatchRow(model.ProjectPatch{
		Name:    model.Set("Renamed"),
		EndDate: model.Set(""),
		Members: model.Set[[]model.User](nil),
	})

	assert.Equal(t, "Renamed", p["name"])
	assert.Nil(t, p["end_date"])
	assert.Equal(t, []model.User{}, p["members"])
	assert.NotContains(t, p, "description")
}
