package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{StatusBacklog, true},
		{StatusTodo, true},
		{StatusInProgress, true},
		{StatusReview, true},
		{StatusDone, true},
		{"pending", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Valid())
		})
	}
}

func TestPriority_Valid(t *testing.T) {
	assert.True(t, PriorityCritical.Valid())
	assert.True(t, PriorityLow.Valid())
	assert.False(t, Priority("urgent").Valid())
}

func TestNewTask(t *testing.T) {
	task := NewTask("p1", "Write docs", StatusTodo, PriorityHigh)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "p1", task.ProjectID)
	assert.NotNil(t, task.Tags)
	assert.NotNil(t, task.Comments)
	assert.NotNil(t, task.Checklist)
	assert.Nil(t, task.Assignee)
	assert.Equal(t, task.CreatedAt, task.UpdatedAt)
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := NewID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestTaskPatch_Apply(t *testing.T) {
	due := "2025-03-01"
	user := User{ID: "u1", Name: "Ada Lovelace"}
	base := Task{
		ID:       "t1",
		Title:    "Old",
		Status:   StatusTodo,
		Priority: PriorityLow,
		Assignee: &user,
		Tags:     []string{"api"},
		Order:    3,
	}

	t.Run("only set fields change", func(t *testing.T) {
		got := TaskPatch{Title: Set("New")}.Apply(base)

		assert.Equal(t, "New", got.Title)
		assert.Equal(t, StatusTodo, got.Status)
		assert.Equal(t, PriorityLow, got.Priority)
		assert.Equal(t, &user, got.Assignee)
		assert.Equal(t, 3, got.Order)
	})

	t.Run("nullable fields can be cleared", func(t *testing.T) {
		withDue := base
		withDue.DueDate = &due

		got := TaskPatch{Assignee: Set[*User](nil), DueDate: Set[*string](nil)}.Apply(withDue)

		assert.Nil(t, got.Assignee)
		assert.Nil(t, got.DueDate)
	})

	t.Run("empty patch", func(t *testing.T) {
		assert.True(t, TaskPatch{}.Empty())
		assert.False(t, TaskPatch{Order: Set(0)}.Empty())
		assert.Equal(t, base, TaskPatch{}.Apply(base))
	})
}

func TestTask_Clone(t *testing.T) {
	due := "2025-03-01"
	orig := Task{ID: "t1", Tags: []string{"a"}, DueDate: &due, Assignee: &User{ID: "u1"}}

	c := orig.Clone()
	c.Tags[0] = "b"
	*c.DueDate = "2030-01-01"
	c.Assignee.ID = "u2"

	assert.Equal(t, "a", orig.Tags[0])
	assert.Equal(t, "2025-03-01", *orig.DueDate)
	assert.Equal(t, "u1", orig.Assignee.ID)
}

func TestProjectPatch_Apply(t *testing.T) {
	base := Project{ID: "p1", Name: "Old", Status: ProjectPlanning, EndDate: "2025-12-31"}

	got := ProjectPatch{Status: Set(ProjectActive), EndDate: Set("")}.Apply(base)

	assert.Equal(t, "Old", got.Name)
	assert.Equal(t, ProjectActive, got.Status)
	assert.Equal(t, "", got.EndDate)
}

func TestInitials(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Ada Lovelace", "AL"},
		{"grace brewster hopper", "GB"},
		{"Linus", "L"},
		{"  ", ""},
		{"Émile Zola", "ÉZ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Initials(tt.name))
		})
	}
}
