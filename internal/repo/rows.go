package repo

import (
	"sort"
	"time"

	"github.com/BuzzLyutic/kanban-sync/internal/model"
)

// ProjectRow is the persisted shape of a project.
type ProjectRow struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Owner       model.User            `json:"owner"`
	Members     []model.User          `json:"members"`
	Status      string                `json:"status"`
	StartDate   *string               `json:"start_date"`
	EndDate     *string               `json:"end_date"`
	Priority    string                `json:"priority"`
	Color       string                `json:"color"`
	Activities  []model.ActivityEntry `json:"activities"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TaskRow is the persisted shape of a task.
type TaskRow struct {
	ID          string                `json:"id"`
	ProjectID   string                `json:"project_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      string                `json:"status"`
	Priority    string                `json:"priority"`
	Assignee    *model.User           `json:"assignee"`
	Tags        []string              `json:"tags"`
	DueDate     *string               `json:"due_date"`
	Comments    []model.Comment       `json:"comments"`
	Checklist   []model.ChecklistItem `json:"checklist"`
	OrderIndex  int                   `json:"order_index"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

func ProjectFromRow(row ProjectRow) model.Project {
	return model.Project{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Owner:       row.Owner,
		Members:     orEmpty(row.Members),
		Status:      model.ProjectStatus(row.Status),
		StartDate:   deref(row.StartDate),
		EndDate:     deref(row.EndDate),
		Priority:    model.Priority(row.Priority),
		Color:       row.Color,
		Activities:  orEmpty(row.Activities),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func ProjectToRow(p model.Project) ProjectRow {
	return ProjectRow{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Owner:       p.Owner,
		Members:     orEmpty(p.Members),
		Status:      string(p.Status),
		StartDate:   nullable(p.StartDate),
		EndDate:     nullable(p.EndDate),
		Priority:    string(p.Priority),
		Color:       p.Color,
		Activities:  orEmpty(p.Activities),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func TaskFromRow(row TaskRow) model.Task {
	return model.Task{
		ID:          row.ID,
		ProjectID:   row.ProjectID,
		Title:       row.Title,
		Description: row.Description,
		Status:      model.TaskStatus(row.Status),
		Priority:    model.Priority(row.Priority),
		Assignee:    row.Assignee,
		Tags:        orEmpty(row.Tags),
		DueDate:     row.DueDate,
		Comments:    orEmpty(row.Comments),
		Checklist:   orEmpty(row.Checklist),
		Order:       row.OrderIndex,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func TaskToRow(t model.Task) TaskRow {
	return TaskRow{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Assignee:    t.Assignee,
		Tags:        orEmpty(t.Tags),
		DueDate:     t.DueDate,
		Comments:    orEmpty(t.Comments),
		Checklist:   orEmpty(t.Checklist),
		OrderIndex:  t.Order,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// Patch is a set of column assignments. Values are plain Go values; list
// and object columns are JSON encoded by the gateway.
type Patch map[string]any

// Columns returns the patch's column names in a stable order.
func (p Patch) Columns() []string {
	cols := make([]string, 0, len(p))
	for c := range p {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// TaskPatchRow translates only the fields present in p.
func TaskPatchRow(p model.TaskPatch) Patch {
	out := Patch{}
	if p.Title.Set {
		out["title"] = p.Title.Value
	}
	if p.Description.Set {
		out["description"] = p.Description.Value
	}
	if p.Status.Set {
		out["status"] = string(p.Status.Value)
	}
	if p.Priority.Set {
		out["priority"] = string(p.Priority.Value)
	}
	if p.Assignee.Set {
		out["assignee"] = p.Assignee.Value
	}
	if p.DueDate.Set {
		out["due_date"] = p.DueDate.Value
	}
	if p.Tags.Set {
		out["tags"] = orEmpty(p.Tags.Value)
	}
	if p.Checklist.Set {
		out["checklist"] = orEmpty(p.Checklist.Value)
	}
	if p.Comments.Set {
		out["comments"] = orEmpty(p.Comments.Value)
	}
	if p.Order.Set {
		out["order_index"] = p.Order.Value
	}
	return out
}

func ProjectPatchRow(p model.ProjectPatch) Patch {
	out := Patch{}
	if p.Name.Set {
		out["name"] = p.Name.Value
	}
	if p.Description.Set {
		out["description"] = p.Description.Value
	}
	if p.Status.Set {
		out["status"] = string(p.Status.Value)
	}
	if p.Priority.Set {
		out["priority"] = string(p.Priority.Value)
	}
	if p.Color.Set {
		out["color"] = p.Color.Value
	}
	if p.Members.Set {
		out["members"] = orEmpty(p.Members.Value)
	}
	if p.Activities.Set {
		out["activities"] = orEmpty(p.Activities.Value)
	}
	if p.StartDate.Set {
		out["start_date"] = nullable(p.StartDate.Value)
	}
	if p.EndDate.Set {
		out["end_date"] = nullable(p.EndDate.Value)
	}
	return out
}

// column kinds; json columns are stored as JSON documents
type column struct {
	json bool
}

var taskColumns = map[string]column{
	"project_id":  {},
	"title":       {},
	"description": {},
	"status":      {},
	"priority":    {},
	"assignee":    {json: true},
	"tags":        {json: true},
	"due_date":    {},
	"comments":    {json: true},
	"checklist":   {json: true},
	"order_index": {},
}

var projectColumns = map[string]column{
	"name":        {},
	"description": {},
	"owner":       {json: true},
	"members":     {json: true},
	"status":      {},
	"start_date":  {},
	"end_date":    {},
	"priority":    {},
	"color":       {},
	"activities":  {json: true},
}

func columnsFor(kind Kind) (map[string]column, error) {
	switch kind {
	case KindTasks:
		return taskColumns, nil
	case KindProjects:
		return projectColumns, nil
	}
	return nil, ErrorUnknownKind
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
