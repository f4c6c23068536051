package model

import "time"

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
	ProjectPlanning  ProjectStatus = "planning"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectOnHold, ProjectCompleted, ProjectPlanning:
		return true
	}
	return false
}

// ActivityEntry is one line of a project's append-only activity log.
type ActivityEntry struct {
	ID        string    `json:"id"`
	User      User      `json:"user"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"createdAt"`
}

// Project groups tasks. StartDate and EndDate are free-form date strings,
// "" means unset.
type Project struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Owner       User            `json:"owner"`
	Members     []User          `json:"members"`
	Status      ProjectStatus   `json:"status"`
	StartDate   string          `json:"startDate"`
	EndDate     string          `json:"endDate"`
	Priority    Priority        `json:"priority"`
	Color       string          `json:"color"`
	Activities  []ActivityEntry `json:"activities"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func NewProject(name string, owner User) Project {
	now := time.Now().UTC()
	return Project{
		ID:         NewID(),
		Name:       name,
		Owner:      owner,
		Members:    []User{owner},
		Status:     ProjectPlanning,
		Priority:   PriorityMedium,
		StartDate:  now.Format(time.DateOnly),
		Activities: []ActivityEntry{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (p Project) Clone() Project {
	c := p
	c.Members = append([]User{}, p.Members...)
	c.Activities = append([]ActivityEntry{}, p.Activities...)
	return c
}

type ProjectPatch struct {
	Name        Field[string]
	Description Field[string]
	Status      Field[ProjectStatus]
	Priority    Field[Priority]
	Color       Field[string]
	Members     Field[[]User]
	Activities  Field[[]ActivityEntry]
	StartDate   Field[string]
	EndDate     Field[string]
}

func (p ProjectPatch) Empty() bool {
	return !p.Name.Set && !p.Description.Set && !p.Status.Set && !p.Priority.Set &&
		!p.Color.Set && !p.Members.Set && !p.Activities.Set && !p.StartDate.Set && !p.EndDate.Set
}

func (p ProjectPatch) Apply(pr Project) Project {
	p.Name.apply(&pr.Name)
	p.Description.apply(&pr.Description)
	p.Status.apply(&pr.Status)
	p.Priority.apply(&pr.Priority)
	p.Color.apply(&pr.Color)
	p.Members.apply(&pr.Members)
	p.Activities.apply(&pr.Activities)
	p.StartDate.apply(&pr.StartDate)
	p.EndDate.apply(&pr.EndDate)
	return pr
}
