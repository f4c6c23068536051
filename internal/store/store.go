// Package store is the client-side source of truth for a kanban session.
//
// Every action applies its change to local state before any network
// attempt. Remote writes run on a single background writer in program
// order; a write that fails, times out, or is issued while offline is
// appended to the pending-sync queue and replayed by FlushPendingSyncs.
// While the queue is non-empty new writes join its tail, so the backend
// sees each client's writes in the order they were made.
// Local state is never rolled back because a remote write failed.
package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-sync/internal/model"
	"github.com/BuzzLyutic/kanban-sync/internal/repo"
	"github.com/BuzzLyutic/kanban-sync/internal/worker"
)

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// State is an immutable snapshot. Slices are shared between snapshots and
// must not be modified by readers.
type State struct {
	Version uint64 `json:"version"`

	Projects []model.Project `json:"projects"`
	Tasks    []model.Task    `json:"tasks"`
	Users    []model.User    `json:"users"`

	ActiveProjectID string         `json:"activeProjectId"`
	ActiveTaskID    string         `json:"activeTaskId"`
	Theme           Theme          `json:"theme"`
	SearchQuery     string         `json:"searchQuery"`
	FilterAssignee  string         `json:"filterAssignee"`
	FilterPriority  model.Priority `json:"filterPriority"`

	CurrentUser *model.User `json:"currentUser"`
	Initialized bool        `json:"initialized"`
	Online      bool        `json:"online"`
	Pending     []Entry     `json:"pending"`
}

// Recorder receives sync telemetry.
type Recorder interface {
	SetQueueDepth(n int)
	SetOnline(online bool)
	ObserveRemoteWrite(kind IntentKind, err error)
	ObserveFlush(replayed, failed, dropped int)
}

type nopRecorder struct{}

func (nopRecorder) SetQueueDepth(int)                    {}
func (nopRecorder) SetOnline(bool)                       {}
func (nopRecorder) ObserveRemoteWrite(IntentKind, error) {}
func (nopRecorder) ObserveFlush(int, int, int)           {}

// SeedFunc returns sample data for an account with no projects.
type SeedFunc func(owner model.User) ([]model.Project, []model.Task)

type Options struct {
	// RemoteTimeout bounds every remote write; expiry queues the intent.
	RemoteTimeout time.Duration
	// MaxAttempts drops a queued intent after that many failed flushes.
	// Zero means retry forever.
	MaxAttempts int
	// WriterQueue is the number of remote writes buffered for the writer.
	WriterQueue int
	Online      bool
	Theme       Theme
	Users       []model.User
	Seed        SeedFunc
	Recorder    Recorder
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.RemoteTimeout <= 0 {
		o.RemoteTimeout = 10 * time.Second
	}
	if o.WriterQueue <= 0 {
		o.WriterQueue = 1024
	}
	if o.Theme == "" {
		o.Theme = ThemeDark
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

type Store struct {
	gw     repo.Gateway
	logger *zap.Logger
	opts   Options
	writer *worker.Pool

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	session   uint64
	flushing  bool
	closed    bool
	listeners map[int]func(State)
	nextID    int
}

func New(gw repo.Gateway, logger *zap.Logger, opts Options) *Store {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Store{
		gw:        gw,
		logger:    logger,
		opts:      opts,
		writer:    worker.NewPool(logger, 1, opts.WriterQueue),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[int]func(State)),
		state: State{
			Projects: []model.Project{},
			Tasks:    []model.Task{},
			Users:    append([]model.User{}, opts.Users...),
			Theme:    opts.Theme,
			Online:   opts.Online,
			Pending:  []Entry{},
		},
	}
	s.writer.Start(ctx)
	opts.Recorder.SetOnline(opts.Online)
	return s
}

// Close waits for in-flight remote writes and stops the writer. Writes
// issued afterwards go straight to the queue.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.writer.Wait()
	s.writer.Stop()
	s.cancel()
}

// Wait blocks until every remote write issued so far has completed or
// been queued.
func (s *Store) Wait() {
	s.writer.Wait()
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every state transition and returns a cancel
// function. fn runs outside the store lock; under concurrent actions
// snapshots may arrive out of order, compare Version to discard stale ones.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// mutate applies fn under the lock. fn reports whether it changed
// anything; unchanged state produces no transition.
func (s *Store) mutate(fn func(st *State) bool) bool {
	s.mu.Lock()
	return s.commitLocked(fn)
}

// commitLocked is mutate for callers already holding s.mu. The lock is
// released before listeners run.
func (s *Store) commitLocked(fn func(st *State) bool) bool {
	if !fn(&s.state) {
		s.mu.Unlock()
		return false
	}
	s.state.Version++
	snap := s.state
	listeners := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	s.opts.Recorder.SetQueueDepth(len(snap.Pending))
	for _, l := range listeners {
		l(snap)
	}
	return true
}

// SetOnline records the connectivity flag and reports whether it changed.
func (s *Store) SetOnline(online bool) bool {
	changed := s.mutate(func(st *State) bool {
		if st.Online == online {
			return false
		}
		st.Online = online
		return true
	})
	if changed {
		s.opts.Recorder.SetOnline(online)
		s.logger.Info("connectivity changed", zap.Bool("online", online))
	}
	return changed
}

// SetCurrentUser starts (user != nil) or ends (user == nil) a session.
// Sign-out clears entities and selection but keeps Initialized so the UI
// does not fall back into a loading state; sign-in clears Initialized
// until Initialize completes.
func (s *Store) SetCurrentUser(user *model.User) {
	s.mutate(func(st *State) bool {
		s.session++
		if user == nil {
			st.CurrentUser = nil
			st.Projects = []model.Project{}
			st.Tasks = []model.Task{}
			st.ActiveProjectID = ""
			st.ActiveTaskID = ""
			return true
		}
		u := *user
		st.CurrentUser = &u
		st.Initialized = false
		return true
	})
}

// Initialize loads the session's data. The loading gate always opens,
// even when the backend is unreachable; the load error is returned for
// the caller to log.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	user := s.state.CurrentUser
	session := s.session
	s.mu.Unlock()

	if user == nil {
		s.mutate(func(st *State) bool {
			st.Initialized = true
			return true
		})
		return nil
	}

	projects, tasks, err := s.load(ctx, *user)
	if err != nil {
		s.logger.Warn("initial load failed, continuing with empty state", zap.Error(err))
	}

	s.mutate(func(st *State) bool {
		if s.session != session {
			// a newer sign-in runs its own Initialize; a sign-out must not stay gated
			if st.CurrentUser == nil && !st.Initialized {
				st.Initialized = true
				return true
			}
			return false
		}
		st.Initialized = true
		if err == nil {
			st.Projects = projects
			st.Tasks = tasks
			st.ActiveProjectID = ""
			if len(projects) > 0 {
				st.ActiveProjectID = projects[0].ID
			}
		}
		return true
	})
	return err
}

func (s *Store) load(ctx context.Context, owner model.User) ([]model.Project, []model.Task, error) {
	n, err := s.gw.CountProjects(ctx)
	if err != nil {
		return nil, nil, err
	}

	if n == 0 && s.opts.Seed != nil {
		projects, tasks := s.opts.Seed(owner)
		for _, p := range projects {
			if err := s.gw.UpsertProject(ctx, repo.ProjectToRow(p)); err != nil {
				return nil, nil, err
			}
		}
		for _, t := range tasks {
			if err := s.gw.UpsertTask(ctx, repo.TaskToRow(t)); err != nil {
				return nil, nil, err
			}
		}
		s.logger.Info("seeded empty account",
			zap.Int("projects", len(projects)), zap.Int("tasks", len(tasks)))
		return projects, tasks, nil
	}

	projectRows, err := s.gw.FetchProjects(ctx)
	if err != nil {
		return nil, nil, err
	}
	taskRows, err := s.gw.FetchTasks(ctx)
	if err != nil {
		return nil, nil, err
	}

	projects := make([]model.Project, 0, len(projectRows))
	for _, r := range projectRows {
		projects = append(projects, repo.ProjectFromRow(r))
	}
	tasks := make([]model.Task, 0, len(taskRows))
	for _, r := range taskRows {
		tasks = append(tasks, repo.TaskFromRow(r))
	}
	return projects, tasks, nil
}

// sync sends in to the backend, or queues it when offline, when earlier
// intents are still queued, or on failure.
func (s *Store) sync(in Intent) {
	s.mu.Lock()
	if s.state.Online && !s.closed && len(s.state.Pending) == 0 {
		if s.writer.Submit(s.remoteWrite(in)) {
			s.mu.Unlock()
			return
		}
		s.logger.Warn("remote writer saturated, queued for retry",
			zap.String("intent", string(in.Kind())), zap.String("id", in.EntityID()))
	}
	s.enqueueLocked(in, nil)
}

func (s *Store) remoteWrite(in Intent) worker.Job {
	return func(ctx context.Context) {
		// an earlier write failed while this one waited
		s.mu.Lock()
		if len(s.state.Pending) > 0 {
			s.enqueueLocked(in, nil)
			return
		}
		s.mu.Unlock()

		rctx, cancel := context.WithTimeout(ctx, s.opts.RemoteTimeout)
		defer cancel()

		err := in.Replay(rctx, s.gw)
		s.opts.Recorder.ObserveRemoteWrite(in.Kind(), err)
		if err != nil {
			s.logger.Warn("remote write failed, queued for retry",
				zap.String("intent", string(in.Kind())),
				zap.String("id", in.EntityID()),
				zap.Error(err))
			s.enqueue(in, err)
		}
	}
}

func (s *Store) enqueue(in Intent, cause error) {
	s.mu.Lock()
	s.enqueueLocked(in, cause)
}

// enqueueLocked appends in to the queue and releases s.mu.
func (s *Store) enqueueLocked(in Intent, cause error) {
	e := Entry{Intent: in, EnqueuedAt: s.opts.Now()}
	if cause != nil {
		e.LastError = cause.Error()
	}
	s.commitLocked(func(st *State) bool {
		st.Pending = appendCopy(st.Pending, e)
		return true
	})
}

func appendCopy[T any](s []T, v ...T) []T {
	out := make([]T, 0, len(s)+len(v))
	out = append(out, s...)
	return append(out, v...)
}
