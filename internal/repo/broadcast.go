package repo

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const broadcastBuffer = 256

// Broadcaster is an in-process ChangeFeed. Each subscriber gets its own
// buffered channel and goroutine, so delivery order is preserved per
// subscriber and publishers never block on a slow handler.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[Kind]map[*broadcastSub]struct{}
	logger *zap.Logger
}

func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[Kind]map[*broadcastSub]struct{}),
		logger: logger,
	}
}

type broadcastSub struct {
	b    *Broadcaster
	kind Kind
	ch   chan Change
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *broadcastSub) Close() error {
	s.once.Do(func() {
		s.b.mu.Lock()
		delete(s.b.subs[s.kind], s)
		s.b.mu.Unlock()
		close(s.stop)
	})
	<-s.done
	return nil
}

func (b *Broadcaster) Subscribe(ctx context.Context, kind Kind, handler func(Change)) (Subscription, error) {
	if _, err := columnsFor(kind); err != nil {
		return nil, err
	}

	sub := &broadcastSub{
		b:    b,
		kind: kind,
		ch:   make(chan Change, broadcastBuffer),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[*broadcastSub]struct{})
	}
	b.subs[kind][sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer close(sub.done)
		for {
			select {
			case c := <-sub.ch:
				handler(c)
			case <-sub.stop:
				return
			case <-ctx.Done():
				b.mu.Lock()
				delete(b.subs[kind], sub)
				b.mu.Unlock()
				return
			}
		}
	}()

	return sub, nil
}

func (b *Broadcaster) Publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[c.Kind] {
		select {
		case sub.ch <- c:
		default:
			b.logger.Warn("subscriber buffer full, change dropped",
				zap.String("kind", string(c.Kind)), zap.String("id", c.ID))
		}
	}
}
