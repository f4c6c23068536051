package store

import (
	"context"

	"go.uber.org/zap"
)

type FlushResult struct {
	Replayed int  `json:"replayed"`
	Failed   int  `json:"failed"`
	Dropped  int  `json:"dropped"`
	Skipped  bool `json:"skipped"`
}

// FlushPendingSyncs replays the queue in FIFO order. Successes are
// removed and failures kept, in order, and the queue is replaced in a
// single state transition. Intents queued while the flush was running
// follow the residual. A flush already in progress makes this a no-op.
// Remote writes still in flight finish before the replay starts.
func (s *Store) FlushPendingSyncs(ctx context.Context) FlushResult {
	s.mu.Lock()
	if s.flushing {
		s.mu.Unlock()
		return FlushResult{Skipped: true}
	}
	if len(s.state.Pending) == 0 {
		s.mu.Unlock()
		return FlushResult{}
	}
	s.flushing = true
	s.mu.Unlock()

	// writes already handed to the writer either land or join the queue
	s.writer.Wait()
	s.mu.Lock()
	batch := s.state.Pending
	s.mu.Unlock()

	var res FlushResult
	residual := make([]Entry, 0, len(batch))
	for _, e := range batch {
		rctx, cancel := context.WithTimeout(ctx, s.opts.RemoteTimeout)
		err := e.Intent.Replay(rctx, s.gw)
		cancel()

		if err == nil {
			res.Replayed++
			continue
		}

		e.Attempts++
		e.LastError = err.Error()
		if s.opts.MaxAttempts > 0 && e.Attempts >= s.opts.MaxAttempts {
			res.Dropped++
			s.logger.Error("dropping pending sync after max attempts",
				zap.String("intent", string(e.Intent.Kind())),
				zap.String("id", e.Intent.EntityID()),
				zap.Int("attempts", e.Attempts),
				zap.Error(err))
			continue
		}
		res.Failed++
		residual = append(residual, e)
	}

	s.mutate(func(st *State) bool {
		s.flushing = false
		var tail []Entry
		if len(st.Pending) > len(batch) {
			tail = st.Pending[len(batch):]
		}
		st.Pending = appendCopy(residual, tail...)
		return true
	})

	s.opts.Recorder.ObserveFlush(res.Replayed, res.Failed, res.Dropped)
	s.logger.Info("flushed pending syncs",
		zap.Int("replayed", res.Replayed),
		zap.Int("failed", res.Failed),
		zap.Int("dropped", res.Dropped))
	return res
}

// Pending returns the current queue.
func (s *Store) Pending() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Pending
}
