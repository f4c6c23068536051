// Package realtime folds remote change notifications into the local store
// and carries them over NATS between processes.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-sync/internal/model"
	"github.com/BuzzLyutic/kanban-sync/internal/repo"
)

var ErrMalformedChange = errors.New("malformed change")

// Target is the merge point changes are applied to; *store.Store
// satisfies it.
type Target interface {
	ApplyRemoteTask(typ repo.ChangeType, task model.Task) bool
	ApplyRemoteProject(typ repo.ChangeType, project model.Project) bool
	RemoveRemote(kind repo.Kind, id string) bool
}

// Outcome classifies a handled change.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeMalformed Outcome = "malformed"
)

type Recorder interface {
	ObserveChange(kind repo.Kind, typ repo.ChangeType, outcome Outcome)
}

type nopRecorder struct{}

func (nopRecorder) ObserveChange(repo.Kind, repo.ChangeType, Outcome) {}

type Reconciler struct {
	target   Target
	feed     repo.ChangeFeed
	logger   *zap.Logger
	recorder Recorder

	mu   sync.Mutex
	subs []repo.Subscription
}

func NewReconciler(target Target, feed repo.ChangeFeed, logger *zap.Logger, recorder Recorder) *Reconciler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Reconciler{
		target:   target,
		feed:     feed,
		logger:   logger,
		recorder: recorder,
	}
}

// Start subscribes to projects and tasks. Delivery continues until ctx is
// cancelled or Stop is called.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, kind := range []repo.Kind{repo.KindProjects, repo.KindTasks} {
		sub, err := r.feed.Subscribe(ctx, kind, func(c repo.Change) { r.Handle(c) })
		if err != nil {
			for _, s := range r.subs {
				_ = s.Close()
			}
			r.subs = nil
			return fmt.Errorf("subscribe %s: %w", kind, err)
		}
		r.subs = append(r.subs, sub)
	}

	r.logger.Info("realtime reconciler started")
	return nil
}

// StartRetrying calls Start until it succeeds, waiting per b between
// attempts. It gives up when ctx is done or b stops.
func (r *Reconciler) StartRetrying(ctx context.Context, b backoff.BackOff) error {
	return backoff.RetryNotify(func() error {
		if err := r.Start(ctx); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		r.logger.Warn("realtime unavailable, retrying", zap.Error(err), zap.Duration("retry_in", wait))
	})
}

func (r *Reconciler) Stop() error {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	var errs []error
	for _, s := range subs {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handle applies one change. A malformed change is logged and skipped so
// one bad row never stops the feed.
func (r *Reconciler) Handle(c repo.Change) Outcome {
	outcome, err := r.apply(c)
	if err != nil {
		r.logger.Warn("skipping malformed realtime change",
			zap.String("kind", string(c.Kind)),
			zap.String("type", string(c.Type)),
			zap.String("id", c.ID),
			zap.Error(err))
		outcome = OutcomeMalformed
	}
	r.recorder.ObserveChange(c.Kind, c.Type, outcome)
	return outcome
}

func (r *Reconciler) apply(c repo.Change) (Outcome, error) {
	if c.Kind != repo.KindTasks && c.Kind != repo.KindProjects {
		return "", fmt.Errorf("%w: unknown kind %q", ErrMalformedChange, c.Kind)
	}

	switch c.Type {
	case repo.ChangeDelete:
		if c.ID == "" {
			return "", fmt.Errorf("%w: delete without id", ErrMalformedChange)
		}
		return outcomeOf(r.target.RemoveRemote(c.Kind, c.ID)), nil
	case repo.ChangeInsert, repo.ChangeUpdate:
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrMalformedChange, c.Type)
	}

	switch c.Kind {
	case repo.KindTasks:
		task, err := decodeTask(c.Row)
		if err != nil {
			return "", err
		}
		return outcomeOf(r.target.ApplyRemoteTask(c.Type, task)), nil
	case repo.KindProjects:
		project, err := decodeProject(c.Row)
		if err != nil {
			return "", err
		}
		return outcomeOf(r.target.ApplyRemoteProject(c.Type, project)), nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrMalformedChange, c.Kind)
}

func decodeTask(raw json.RawMessage) (model.Task, error) {
	if len(raw) == 0 {
		return model.Task{}, fmt.Errorf("%w: missing row", ErrMalformedChange)
	}
	var row repo.TaskRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return model.Task{}, fmt.Errorf("%w: %v", ErrMalformedChange, err)
	}
	if row.ID == "" {
		return model.Task{}, fmt.Errorf("%w: missing id", ErrMalformedChange)
	}
	task := repo.TaskFromRow(row)
	if !task.Status.Valid() {
		return model.Task{}, fmt.Errorf("%w: invalid status %q", ErrMalformedChange, row.Status)
	}
	return task, nil
}

func decodeProject(raw json.RawMessage) (model.Project, error) {
	if len(raw) == 0 {
		return model.Project{}, fmt.Errorf("%w: missing row", ErrMalformedChange)
	}
	var row repo.ProjectRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return model.Project{}, fmt.Errorf("%w: %v", ErrMalformedChange, err)
	}
	if row.ID == "" {
		return model.Project{}, fmt.Errorf("%w: missing id", ErrMalformedChange)
	}
	return repo.ProjectFromRow(row), nil
}

func outcomeOf(applied bool) Outcome {
	if applied {
		return OutcomeApplied
	}
	return OutcomeIgnored
}
