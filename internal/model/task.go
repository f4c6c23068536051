package model

import "time"

type TaskStatus string

const (
	StatusBacklog    TaskStatus = "backlog"
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	for _, c := range Columns {
		if c.ID == s {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Column describes one board column. Columns is ordered left to right.
type Column struct {
	ID          TaskStatus `json:"id"`
	Title       string     `json:"title"`
	Color       string     `json:"color"`
	Description string     `json:"description"`
}

var Columns = []Column{
	{ID: StatusBacklog, Title: "Backlog", Color: "#6b7280", Description: "Ideas & future work"},
	{ID: StatusTodo, Title: "To Do", Color: "#3b82f6", Description: "Ready to start"},
	{ID: StatusInProgress, Title: "In Progress", Color: "#f59e0b", Description: "Currently being worked on"},
	{ID: StatusReview, Title: "Review", Color: "#8b5cf6", Description: "Awaiting review or approval"},
	{ID: StatusDone, Title: "Done", Color: "#10b981", Description: "Completed tasks"},
}

type Comment struct {
	ID        string    `json:"id"`
	Author    User      `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type ChecklistItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Done  bool   `json:"done"`
}

// Task is a single card on a project board. Order is advisory and only
// used to sort tasks inside a column.
type Task struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"projectId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      TaskStatus      `json:"status"`
	Priority    Priority        `json:"priority"`
	Assignee    *User           `json:"assignee"`
	Tags        []string        `json:"tags"`
	DueDate     *string         `json:"dueDate"`
	Comments    []Comment       `json:"comments"`
	Checklist   []ChecklistItem `json:"checklist"`
	Order       int             `json:"order"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// NewTask returns a task with a fresh id, timestamps and empty collections.
func NewTask(projectID, title string, status TaskStatus, priority Priority) Task {
	now := time.Now().UTC()
	return Task{
		ID:        NewID(),
		ProjectID: projectID,
		Title:     title,
		Status:    status,
		Priority:  priority,
		Tags:      []string{},
		Comments:  []Comment{},
		Checklist: []ChecklistItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy that shares no slices or pointers with t.
func (t Task) Clone() Task {
	c := t
	if t.Assignee != nil {
		a := *t.Assignee
		c.Assignee = &a
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	c.Tags = append([]string{}, t.Tags...)
	c.Comments = append([]Comment{}, t.Comments...)
	c.Checklist = append([]ChecklistItem{}, t.Checklist...)
	return c
}

// TaskPatch is a sparse update. Only fields with Set == true are applied.
type TaskPatch struct {
	Title       Field[string]
	Description Field[string]
	Status      Field[TaskStatus]
	Priority    Field[Priority]
	Assignee    Field[*User]
	DueDate     Field[*string]
	Tags        Field[[]string]
	Checklist   Field[[]ChecklistItem]
	Comments    Field[[]Comment]
	Order       Field[int]
}

func (p TaskPatch) Empty() bool {
	return !p.Title.Set && !p.Description.Set && !p.Status.Set && !p.Priority.Set &&
		!p.Assignee.Set && !p.DueDate.Set && !p.Tags.Set && !p.Checklist.Set &&
		!p.Comments.Set && !p.Order.Set
}

// Apply returns t with the patch applied. UpdatedAt is left to the caller.
func (p TaskPatch) Apply(t Task) Task {
	p.Title.apply(&t.Title)
	p.Description.apply(&t.Description)
	p.Status.apply(&t.Status)
	p.Priority.apply(&t.Priority)
	p.Assignee.apply(&t.Assignee)
	p.DueDate.apply(&t.DueDate)
	p.Tags.apply(&t.Tags)
	p.Checklist.apply(&t.Checklist)
	p.Comments.apply(&t.Comments)
	p.Order.apply(&t.Order)
	return t
}
