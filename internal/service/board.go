package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-sync/internal/model"
	"github.com/BuzzLyutic/kanban-sync/internal/store"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("not signed in")
)

// BoardService validates UI-boundary input and turns it into store
// actions. Remote failures never surface here; they end up in the queue.
type BoardService struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewBoardService(st *store.Store, logger *zap.Logger) *BoardService {
	return &BoardService{
		store:  st,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SignIn starts a session and loads its data. A failed load still opens
// the session with empty collections.
func (s *BoardService) SignIn(ctx context.Context, user model.User) (store.State, error) {
	if strings.TrimSpace(user.ID) == "" || strings.TrimSpace(user.Name) == "" {
		return store.State{}, ErrValidation
	}
	if user.Avatar == "" {
		user.Avatar = model.Initials(user.Name)
	}

	s.store.SetCurrentUser(&user)
	if err := s.store.Initialize(ctx); err != nil {
		s.logger.Warn("session opened without remote data", zap.String("user_id", user.ID), zap.Error(err))
	}
	return s.store.Snapshot(), nil
}

func (s *BoardService) SignOut() {
	s.store.SetCurrentUser(nil)
}

func (s *BoardService) State() store.State {
	return s.store.Snapshot()
}

func (s *BoardService) session() (model.User, error) {
	st := s.store.Snapshot()
	if st.CurrentUser == nil {
		return model.User{}, ErrUnauthenticated
	}
	return *st.CurrentUser, nil
}

type CreateProjectInput struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Status      model.ProjectStatus `json:"status"`
	Priority    model.Priority      `json:"priority"`
	Color       string              `json:"color"`
	StartDate   string              `json:"startDate"`
	EndDate     string              `json:"endDate"`
	MemberIDs   []string            `json:"memberIds"`
}

func (s *BoardService) Projects() ([]model.Project, error) {
	if _, err := s.session(); err != nil {
		return nil, err
	}
	return s.store.Snapshot().Projects, nil
}

func (s *BoardService) CreateProject(in CreateProjectInput) (model.Project, error) {
	owner, err := s.session()
	if err != nil {
		return model.Project{}, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return model.Project{}, ErrValidation
	}

	p := model.NewProject(strings.TrimSpace(in.Name), owner)
	p.Description = in.Description
	if in.Status != "" {
		p.Status = in.Status
	}
	if in.Priority != "" {
		p.Priority = in.Priority
	}
	if !p.Status.Valid() || !p.Priority.Valid() {
		return model.Project{}, ErrValidation
	}
	p.Color = in.Color
	if in.StartDate != "" {
		p.StartDate = in.StartDate
	}
	p.EndDate = in.EndDate
	for _, id := range in.MemberIDs {
		u, ok := s.user(id)
		if !ok {
			return model.Project{}, ErrValidation
		}
		if u.ID != owner.ID {
			p.Members = append(p.Members, u)
		}
	}
	p.Activities = []model.ActivityEntry{s.activity(owner, "created project", p.Name)}

	s.store.AddProject(p)
	s.store.SetActiveProject(p.ID)
	return p, nil
}

func (s *BoardService) UpdateProject(id string, patch model.ProjectPatch) (model.Project, error) {
	if _, err := s.session(); err != nil {
		return model.Project{}, err
	}
	if patch.Empty() {
		return model.Project{}, ErrValidation
	}
	if patch.Name.Set && strings.TrimSpace(patch.Name.Value) == "" {
		return model.Project{}, ErrValidation
	}
	if patch.Status.Set && !patch.Status.Value.Valid() {
		return model.Project{}, ErrValidation
	}
	if patch.Priority.Set && !patch.Priority.Value.Valid() {
		return model.Project{}, ErrValidation
	}

	if !s.store.UpdateProject(id, patch) {
		return model.Project{}, ErrNotFound
	}
	p, _ := s.store.Project(id)
	return p, nil
}

type CreateTaskInput struct {
	ProjectID   string           `json:"projectId"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Status      model.TaskStatus `json:"status"`
	Priority    model.Priority   `json:"priority"`
	AssigneeID  string           `json:"assigneeId"`
	Tags        []string         `json:"tags"`
	DueDate     *string          `json:"dueDate"`
}

// CreateTask appends the task to the end of its column.
func (s *BoardService) CreateTask(in CreateTaskInput) (model.Task, error) {
	user, err := s.session()
	if err != nil {
		return model.Task{}, err
	}
	project, ok := s.store.Project(in.ProjectID)
	if !ok {
		return model.Task{}, ErrNotFound
	}
	if strings.TrimSpace(in.Title) == "" {
		return model.Task{}, ErrValidation
	}
	if in.Status == "" {
		in.Status = model.StatusTodo
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	if !in.Status.Valid() || !in.Priority.Valid() {
		return model.Task{}, ErrValidation
	}

	t := model.NewTask(project.ID, strings.TrimSpace(in.Title), in.Status, in.Priority)
	t.Description = in.Description
	if in.Tags != nil {
		t.Tags = normalizeTags(in.Tags)
	}
	if in.DueDate != nil && *in.DueDate != "" {
		if _, err := time.Parse(time.DateOnly, *in.DueDate); err != nil {
			return model.Task{}, ErrValidation
		}
		d := *in.DueDate
		t.DueDate = &d
	}
	if in.AssigneeID != "" {
		u, ok := s.user(in.AssigneeID)
		if !ok {
			return model.Task{}, ErrValidation
		}
		t.Assignee = &u
	}

	st := s.store.Snapshot()
	for _, other := range st.Tasks {
		if other.ProjectID == t.ProjectID && other.Status == t.Status && other.Order >= t.Order {
			t.Order = other.Order + 1
		}
	}

	s.store.AddTask(t)
	s.store.LogActivity(project.ID, s.activity(user, "created task", t.Title))
	return t, nil
}

func (s *BoardService) Task(id string) (model.Task, error) {
	if _, err := s.session(); err != nil {
		return model.Task{}, err
	}
	t, ok := s.store.Task(id)
	if !ok {
		return model.Task{}, ErrNotFound
	}
	return t, nil
}

func (s *BoardService) UpdateTask(id string, patch model.TaskPatch) (model.Task, error) {
	if _, err := s.session(); err != nil {
		return model.Task{}, err
	}
	if err := validateTaskPatch(patch); err != nil {
		return model.Task{}, err
	}
	if patch.Tags.Set {
		patch.Tags.Value = normalizeTags(patch.Tags.Value)
	}
	if !s.store.UpdateTask(id, patch) {
		return model.Task{}, ErrNotFound
	}
	t, _ := s.store.Task(id)
	return t, nil
}

func (s *BoardService) MoveTask(id string, status model.TaskStatus, order int) (model.Task, error) {
	if _, err := s.session(); err != nil {
		return model.Task{}, err
	}
	if !status.Valid() || order < 0 {
		return model.Task{}, ErrValidation
	}
	if !s.store.MoveTask(id, status, order) {
		return model.Task{}, ErrNotFound
	}
	t, _ := s.store.Task(id)
	return t, nil
}

func (s *BoardService) ReorderTask(id, targetID string, status model.TaskStatus) (model.Task, error) {
	if _, err := s.session(); err != nil {
		return model.Task{}, err
	}
	if !status.Valid() {
		return model.Task{}, ErrValidation
	}
	if !s.store.ReorderTask(id, targetID, status) {
		return model.Task{}, ErrNotFound
	}
	t, _ := s.store.Task(id)
	return t, nil
}

// DeleteTask is idempotent; deleting an unknown id still reaches the
// backend.
func (s *BoardService) DeleteTask(id string) error {
	if _, err := s.session(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return ErrValidation
	}
	s.store.DeleteTask(id)
	return nil
}

type TaskQuery struct {
	Query    string
	Assignee string
	Priority model.Priority
}

func (s *BoardService) Tasks(projectID string, q TaskQuery) ([]model.Task, error) {
	if _, err := s.session(); err != nil {
		return nil, err
	}
	if q.Priority != "" && !q.Priority.Valid() {
		return nil, ErrValidation
	}
	st := s.store.Snapshot()
	if _, ok := s.store.Project(projectID); !ok {
		return nil, ErrNotFound
	}
	return store.FilterTasks(st.Tasks, projectID, q.Query, q.Assignee, q.Priority), nil
}

func (s *BoardService) Stats(projectID string) (store.Stats, error) {
	if _, err := s.session(); err != nil {
		return store.Stats{}, err
	}
	if _, ok := s.store.Project(projectID); !ok {
		return store.Stats{}, ErrNotFound
	}
	today := s.now().Format(time.DateOnly)
	return store.ProjectStats(s.store.Snapshot().Tasks, projectID, today), nil
}

// SharedBoard is the read-only view behind a share link.
type SharedBoard struct {
	Project model.Project       `json:"project"`
	Columns []store.BoardColumn `json:"columns"`
}

// SharedBoard needs no session; share links are public.
func (s *BoardService) SharedBoard(projectID string) (SharedBoard, error) {
	p, ok := s.store.Project(projectID)
	if !ok {
		return SharedBoard{}, ErrNotFound
	}
	tasks := store.ProjectTasks(s.store.Snapshot().Tasks, projectID)
	return SharedBoard{Project: p, Columns: store.Board(tasks)}, nil
}

func (s *BoardService) Pending() []store.Entry {
	return s.store.Pending()
}

func (s *BoardService) Flush(ctx context.Context) store.FlushResult {
	return s.store.FlushPendingSyncs(ctx)
}

// UIInput holds optional UI state changes; nil fields are left alone.
type UIInput struct {
	ActiveProjectID *string         `json:"activeProjectId"`
	ActiveTaskID    *string         `json:"activeTaskId"`
	SearchQuery     *string         `json:"searchQuery"`
	FilterAssignee  *string         `json:"filterAssignee"`
	FilterPriority  *model.Priority `json:"filterPriority"`
	Theme           *store.Theme    `json:"theme"`
	ToggleTheme     bool            `json:"toggleTheme"`
}

func (s *BoardService) UpdateUI(in UIInput) (store.State, error) {
	if in.FilterPriority != nil && *in.FilterPriority != "" && !in.FilterPriority.Valid() {
		return store.State{}, ErrValidation
	}
	if in.Theme != nil && *in.Theme != store.ThemeDark && *in.Theme != store.ThemeLight {
		return store.State{}, ErrValidation
	}

	if in.ActiveProjectID != nil {
		s.store.SetActiveProject(*in.ActiveProjectID)
	}
	if in.ActiveTaskID != nil {
		s.store.SetActiveTask(*in.ActiveTaskID)
	}
	if in.SearchQuery != nil {
		s.store.SetSearchQuery(*in.SearchQuery)
	}
	if in.FilterAssignee != nil {
		s.store.SetFilterAssignee(*in.FilterAssignee)
	}
	if in.FilterPriority != nil {
		s.store.SetFilterPriority(*in.FilterPriority)
	}
	if in.Theme != nil {
		s.store.SetTheme(*in.Theme)
	}
	if in.ToggleTheme {
		s.store.ToggleTheme()
	}
	return s.store.Snapshot(), nil
}

// User resolves a member of the session's reference user list.
func (s *BoardService) User(id string) (model.User, error) {
	u, ok := s.user(id)
	if !ok {
		return model.User{}, ErrValidation
	}
	return u, nil
}

func (s *BoardService) user(id string) (model.User, bool) {
	st := s.store.Snapshot()
	if st.CurrentUser != nil && st.CurrentUser.ID == id {
		return *st.CurrentUser, true
	}
	for _, u := range st.Users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}

func (s *BoardService) activity(user model.User, action, target string) model.ActivityEntry {
	return model.ActivityEntry{
		ID:        model.NewID(),
		User:      user,
		Action:    action,
		Target:    target,
		CreatedAt: s.now(),
	}
}

func validateTaskPatch(p model.TaskPatch) error {
	if p.Empty() {
		return ErrValidation
	}
	if p.Title.Set && strings.TrimSpace(p.Title.Value) == "" {
		return ErrValidation
	}
	if p.Status.Set && !p.Status.Value.Valid() {
		return ErrValidation
	}
	if p.Priority.Set && !p.Priority.Value.Valid() {
		return ErrValidation
	}
	if p.Order.Set && p.Order.Value < 0 {
		return ErrValidation
	}
	if p.DueDate.Set && p.DueDate.Value != nil && *p.DueDate.Value != "" {
		if _, err := time.Parse(time.DateOnly, *p.DueDate.Value); err != nil {
			return ErrValidation
		}
	}
	return nil
}

// normalizeTags trims, drops empties and removes duplicates, keeping
// first-seen order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
