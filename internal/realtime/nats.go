package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-sync/internal/repo"
)

const SubjectPrefix = "kanban.changes"

// Subject returns the NATS subject carrying changes for kind.
func Subject(kind repo.Kind) string {
	return SubjectPrefix + "." + string(kind)
}

func validKind(kind repo.Kind) error {
	switch kind {
	case repo.KindProjects, repo.KindTasks:
		return nil
	}
	return fmt.Errorf("%w: %q", repo.ErrorUnknownKind, kind)
}

// NATSFeed is a repo.ChangeFeed reading changes published by a Publisher.
type NATSFeed struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewNATSFeed(conn *nats.Conn, logger *zap.Logger) *NATSFeed {
	return &NATSFeed{conn: conn, logger: logger}
}

type natsSubscription struct {
	sub  *nats.Subscription
	once sync.Once
	err  error
}

func (s *natsSubscription) Close() error {
	s.once.Do(func() {
		s.err = s.sub.Unsubscribe()
	})
	return s.err
}

// Subscribe delivers changes for kind. NATS runs each subscription's
// callbacks on one goroutine, so per-kind order is preserved.
func (f *NATSFeed) Subscribe(ctx context.Context, kind repo.Kind, handler func(repo.Change)) (repo.Subscription, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}

	sub, err := f.conn.Subscribe(Subject(kind), func(msg *nats.Msg) {
		var c repo.Change
		if err := json.Unmarshal(msg.Data, &c); err != nil {
			f.logger.Warn("dropping undecodable change message",
				zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		handler(c)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", Subject(kind), err)
	}
	// make the interest visible to publishers before returning
	if err := f.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flush subscription: %w", err)
	}

	s := &natsSubscription{sub: sub}
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return s, nil
}

type Publisher struct {
	conn *nats.Conn
}

func NewPublisher(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn}
}

func (p *Publisher) Publish(ctx context.Context, c repo.Change) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	if err := validKind(c.Kind); err != nil {
		return err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	return p.conn.Publish(Subject(c.Kind), data)
}

// Relay forwards every change from a source feed, typically the Postgres
// listener, to NATS so that many clients share one database listener.
type Relay struct {
	source repo.ChangeFeed
	pub    *Publisher
	logger *zap.Logger
}

func NewRelay(source repo.ChangeFeed, pub *Publisher, logger *zap.Logger) *Relay {
	return &Relay{source: source, pub: pub, logger: logger}
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	var subs []repo.Subscription
	defer func() {
		for _, s := range subs {
			_ = s.Close()
		}
	}()

	for _, kind := range []repo.Kind{repo.KindProjects, repo.KindTasks} {
		sub, err := r.source.Subscribe(ctx, kind, func(c repo.Change) {
			if err := r.pub.Publish(ctx, c); err != nil {
				r.logger.Error("relay publish failed",
					zap.String("kind", string(c.Kind)), zap.String("id", c.ID), zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("relay subscribe %s: %w", kind, err)
		}
		subs = append(subs, sub)
	}

	r.logger.Info("relaying changes to NATS", zap.String("subjects", SubjectPrefix+".>"))
	<-ctx.Done()
	if err := r.pub.conn.Flush(); err != nil {
		r.logger.Warn("flush on relay shutdown failed", zap.Error(err))
	}
	return nil
}
