// Package connectivity tracks backend reachability and drains the
// pending-sync queue when it returns.
package connectivity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-sync/internal/store"
)

// Prober reports whether the backend is reachable.
type Prober interface {
	Ping(ctx context.Context) error
}

type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Ping(ctx context.Context) error { return f(ctx) }

// Target is the state the monitor drives; *store.Store satisfies it.
type Target interface {
	SetOnline(online bool) bool
	FlushPendingSyncs(ctx context.Context) store.FlushResult
	Pending() []store.Entry
}

type Options struct {
	// Interval between probes while online.
	Interval     time.Duration
	ProbeTimeout time.Duration
	// InitialBackoff and MaxBackoff bound the probe schedule while offline
	// and the retry schedule for intents that keep failing while online.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 3 * time.Second
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
	return o
}

func (o Options) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.InitialBackoff
	b.MaxInterval = o.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

type Monitor struct {
	target Target
	prober Prober
	logger *zap.Logger
	opts   Options

	mu        sync.Mutex
	offline   *backoff.ExponentialBackOff
	retry     *backoff.ExponentialBackOff
	nextRetry time.Time
}

func New(target Target, prober Prober, logger *zap.Logger, opts Options) *Monitor {
	opts = opts.withDefaults()
	return &Monitor{
		target:  target,
		prober:  prober,
		logger:  logger,
		opts:    opts,
		offline: opts.newBackOff(),
		retry:   opts.newBackOff(),
	}
}

// Report applies an externally observed connectivity signal. On the
// offline to online edge the queue is flushed exactly once; going offline
// only flips the flag. It reports whether the state changed.
func (m *Monitor) Report(ctx context.Context, online bool) bool {
	if !m.target.SetOnline(online) {
		return false
	}
	if online {
		m.flush(ctx)
	}
	return true
}

// Check probes once and reports the result.
func (m *Monitor) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	err := m.prober.Ping(pctx)
	cancel()

	online := err == nil
	if !online {
		m.logger.Debug("backend probe failed", zap.Error(err))
	}
	m.Report(ctx, online)
	return online
}

// Run probes until ctx is cancelled. Probes run every Interval while
// online and on an exponential schedule while offline.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("connectivity monitor started", zap.Duration("interval", m.opts.Interval))

	for {
		var wait time.Duration
		if m.Check(ctx) {
			m.offline.Reset()
			m.retryPending(ctx)
			wait = m.opts.Interval
		} else {
			wait = m.offline.NextBackOff()
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.logger.Info("connectivity monitor stopped")
			return nil
		case <-timer.C:
		}
	}
}

// retryPending re-flushes intents that failed while the backend answered
// probes, backing off between unsuccessful attempts.
func (m *Monitor) retryPending(ctx context.Context) {
	if len(m.target.Pending()) == 0 {
		return
	}
	m.mu.Lock()
	due := !time.Now().Before(m.nextRetry)
	m.mu.Unlock()
	if due {
		m.flush(ctx)
	}
}

func (m *Monitor) flush(ctx context.Context) {
	res := m.target.FlushPendingSyncs(ctx)
	if res.Skipped {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if res.Failed > 0 {
		d := m.retry.NextBackOff()
		m.nextRetry = time.Now().Add(d)
		m.logger.Warn("pending syncs still failing",
			zap.Int("failed", res.Failed), zap.Duration("retry_in", d))
		return
	}
	m.retry.Reset()
	m.nextRetry = time.Time{}
}

var ErrUnhealthy = errors.New("health check failed")

// HTTPProber probes a health endpoint and treats any 2xx as reachable.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

func (p HTTPProber) Ping(ctx context.Context) error {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}
