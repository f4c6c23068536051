package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NotifyChannel is the Postgres channel the change trigger publishes on.
const NotifyChannel = "kanban_changes"

type notifyPayload struct {
	Table string     `json:"table"`
	Type  ChangeType `json:"type"`
	ID    string     `json:"id"`
}

type pgSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *pgSubscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

// Subscribe holds one pooled connection in LISTEN mode for the lifetime of
// the subscription. Inserts and updates are re-read by id so the handler
// always receives a full row. A lost connection is re-established with
// backoff; notifications sent while it was down are not replayed.
func (g *PgGateway) Subscribe(ctx context.Context, kind Kind, handler func(Change)) (Subscription, error) {
	if _, err := columnsFor(kind); err != nil {
		return nil, err
	}

	conn, err := g.listen(ctx)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &pgSubscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		b := g.listenBackOff()

		for {
			err := g.dispatch(subCtx, conn, kind, handler)
			if subCtx.Err() != nil {
				return
			}
			g.logger.Error("listen connection lost", zap.String("kind", string(kind)), zap.Error(err))

			conn = g.relisten(subCtx, kind, b)
			if conn == nil {
				return
			}
			b.Reset()
			g.logger.Info("listen connection restored", zap.String("kind", string(kind)))
		}
	}()

	return sub, nil
}

func (g *PgGateway) listen(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}
	return conn, nil
}

// relisten retries listen until it succeeds or ctx is done, in which case
// it returns nil.
func (g *PgGateway) relisten(ctx context.Context, kind Kind, b backoff.BackOff) *pgxpool.Conn {
	for {
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			g.logger.Error("giving up on listen connection", zap.String("kind", string(kind)))
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		conn, err := g.listen(ctx)
		if err == nil {
			return conn
		}
		g.logger.Debug("relisten failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

// dispatch forwards notifications until the connection fails or ctx is
// cancelled. It always releases conn; a connection interrupted mid-wait is
// unusable and the pool drops it.
func (g *PgGateway) dispatch(ctx context.Context, conn *pgxpool.Conn, kind Kind, handler func(Change)) error {
	defer conn.Release()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var p notifyPayload
		if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
			g.logger.Warn("malformed notification", zap.String("payload", n.Payload), zap.Error(err))
			continue
		}
		if Kind(p.Table) != kind {
			continue
		}

		change, err := g.resolve(ctx, kind, p)
		if errors.Is(err, ErrorNotFound) {
			// the row was deleted before it could be read; its delete event follows
			continue
		}
		if err != nil {
			g.logger.Warn("resolve notification", zap.String("kind", string(kind)),
				zap.String("id", p.ID), zap.Error(err))
			continue
		}
		handler(change)
	}
}

func (g *PgGateway) resolve(ctx context.Context, kind Kind, p notifyPayload) (Change, error) {
	change := Change{Type: p.Type, Kind: kind, ID: p.ID}
	if p.Type == ChangeDelete {
		return change, nil
	}

	var row any
	var err error
	switch kind {
	case KindTasks:
		row, err = g.GetTask(ctx, p.ID)
	case KindProjects:
		row, err = g.GetProject(ctx, p.ID)
	}
	if err != nil {
		return change, err
	}

	change.Row, err = json.Marshal(row)
	return change, err
}
