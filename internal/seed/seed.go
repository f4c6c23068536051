// Package seed provides the sample workspace written to empty accounts.
package seed

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BuzzLyutic/kanban-sync/internal/model"
	"github.com/BuzzLyutic/kanban-sync/internal/store"
)

//go:embed sample.yaml
var sampleYAML []byte

type document struct {
	Users    []userDoc    `yaml:"users"`
	Projects []projectDoc `yaml:"projects"`
}

type userDoc struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Email  string `yaml:"email"`
	Avatar string `yaml:"avatar"`
	Role   string `yaml:"role"`
	Color  string `yaml:"color"`
}

type projectDoc struct {
	Name         string    `yaml:"name"`
	Description  string    `yaml:"description"`
	Status       string    `yaml:"status"`
	Priority     string    `yaml:"priority"`
	Color        string    `yaml:"color"`
	StartsInDays int       `yaml:"starts_in_days"`
	EndsInDays   *int      `yaml:"ends_in_days"`
	Members      []string  `yaml:"members"`
	Tasks        []taskDoc `yaml:"tasks"`
}

type taskDoc struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Status      string   `yaml:"status"`
	Priority    string   `yaml:"priority"`
	Assignee    string   `yaml:"assignee"`
	Tags        []string `yaml:"tags"`
	DueInDays   *int     `yaml:"due_in_days"`
	Checklist   []string `yaml:"checklist"`
}

// Sample is a parsed seed document.
type Sample struct {
	doc   document
	users map[string]model.User
}

// Default parses the embedded sample workspace.
func Default() (*Sample, error) {
	return Parse(sampleYAML)
}

// Parse reads and validates a seed document.
func Parse(data []byte) (*Sample, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	s := &Sample{doc: doc, users: make(map[string]model.User, len(doc.Users))}
	for _, u := range doc.Users {
		avatar := u.Avatar
		if avatar == "" {
			avatar = model.Initials(u.Name)
		}
		s.users[u.ID] = model.User{
			ID: u.ID, Name: u.Name, Email: u.Email,
			Avatar: avatar, Role: u.Role, Color: u.Color,
		}
	}

	for _, p := range doc.Projects {
		if !model.ProjectStatus(p.Status).Valid() {
			return nil, fmt.Errorf("seed project %q: invalid status %q", p.Name, p.Status)
		}
		if !model.Priority(p.Priority).Valid() {
			return nil, fmt.Errorf("seed project %q: invalid priority %q", p.Name, p.Priority)
		}
		for _, m := range p.Members {
			if _, ok := s.users[m]; !ok {
				return nil, fmt.Errorf("seed project %q: unknown member %q", p.Name, m)
			}
		}
		for _, t := range p.Tasks {
			if !model.TaskStatus(t.Status).Valid() {
				return nil, fmt.Errorf("seed task %q: invalid status %q", t.Title, t.Status)
			}
			if !model.Priority(t.Priority).Valid() {
				return nil, fmt.Errorf("seed task %q: invalid priority %q", t.Title, t.Priority)
			}
			if _, ok := s.users[t.Assignee]; t.Assignee != "" && !ok {
				return nil, fmt.Errorf("seed task %q: unknown assignee %q", t.Title, t.Assignee)
			}
		}
	}
	return s, nil
}

// Users returns the reference user list in document order.
func (s *Sample) Users() []model.User {
	out := make([]model.User, 0, len(s.doc.Users))
	for _, u := range s.doc.Users {
		out = append(out, s.users[u.ID])
	}
	return out
}

// Func returns a store.SeedFunc building the sample relative to now.
// Every call produces fresh ids.
func (s *Sample) Func(now func() time.Time) store.SeedFunc {
	return func(owner model.User) ([]model.Project, []model.Task) {
		return s.Build(owner, now().UTC())
	}
}

// Build materializes the sample for owner at time now.
func (s *Sample) Build(owner model.User, now time.Time) ([]model.Project, []model.Task) {
	projects := make([]model.Project, 0, len(s.doc.Projects))
	var tasks []model.Task

	for i, pd := range s.doc.Projects {
		// keep creation order stable for the created_at sort on fetch
		created := now.Add(time.Duration(i) * time.Millisecond)

		members := []model.User{owner}
		for _, id := range pd.Members {
			members = append(members, s.users[id])
		}

		p := model.Project{
			ID:          model.NewID(),
			Name:        pd.Name,
			Description: pd.Description,
			Owner:       owner,
			Members:     members,
			Status:      model.ProjectStatus(pd.Status),
			StartDate:   dayOffset(now, pd.StartsInDays),
			Priority:    model.Priority(pd.Priority),
			Color:       pd.Color,
			CreatedAt:   created,
			UpdatedAt:   created,
			Activities: []model.ActivityEntry{{
				ID:        model.NewID(),
				User:      owner,
				Action:    "created project",
				Target:    pd.Name,
				CreatedAt: created,
			}},
		}
		if pd.EndsInDays != nil {
			p.EndDate = dayOffset(now, *pd.EndsInDays)
		}
		projects = append(projects, p)

		orders := map[model.TaskStatus]int{}
		for _, td := range pd.Tasks {
			status := model.TaskStatus(td.Status)
			t := model.NewTask(p.ID, td.Title, status, model.Priority(td.Priority))
			t.Description = td.Description
			t.CreatedAt, t.UpdatedAt = created, created
			t.Order = orders[status]
			orders[status]++
			if td.Tags != nil {
				t.Tags = append([]string{}, td.Tags...)
			}
			if td.Assignee != "" {
				u := s.users[td.Assignee]
				t.Assignee = &u
			}
			if td.DueInDays != nil {
				d := dayOffset(now, *td.DueInDays)
				t.DueDate = &d
			}
			for _, label := range td.Checklist {
				t.Checklist = append(t.Checklist, model.ChecklistItem{
					ID:    model.NewID(),
					Label: label,
					Done:  status == model.StatusDone,
				})
			}
			tasks = append(tasks, t)
		}
	}
	return projects, tasks
}

func dayOffset(now time.Time, days int) string {
	return now.AddDate(0, 0, days).Format(time.DateOnly)
}
