// Package metrics exposes sync telemetry as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BuzzLyutic/kanban-sync/internal/realtime"
	"github.com/BuzzLyutic/kanban-sync/internal/repo"
	"github.com/BuzzLyutic/kanban-sync/internal/store"
)

const namespace = "kanban_sync"

// Metrics implements store.Recorder and realtime.Recorder on its own
// registry.
type Metrics struct {
	registry *prometheus.Registry

	queueDepth   prometheus.Gauge
	online       prometheus.Gauge
	remoteWrites *prometheus.CounterVec
	flushed      *prometheus.CounterVec
	flushes      prometheus.Counter
	changes      *prometheus.CounterVec
}

var (
	_ store.Recorder    = (*Metrics)(nil)
	_ realtime.Recorder = (*Metrics)(nil)
)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_intents",
			Help:      "Mutation intents waiting to be replayed.",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online",
			Help:      "1 when the backend is reachable.",
		}),
		remoteWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_writes_total",
			Help:      "Direct remote writes by intent kind and result.",
		}, []string{"intent", "result"}),
		flushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushed_intents_total",
			Help:      "Queued intents processed by flushes, by outcome.",
		}, []string{"outcome"}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Completed queue flushes.",
		}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_changes_total",
			Help:      "Realtime changes handled by kind, type and outcome.",
		}, []string{"kind", "type", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.queueDepth, m.online, m.remoteWrites, m.flushed, m.flushes, m.changes,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetQueueDepth(n int) { m.queueDepth.Set(float64(n)) }

func (m *Metrics) SetOnline(online bool) {
	if online {
		m.online.Set(1)
		return
	}
	m.online.Set(0)
}

func (m *Metrics) ObserveRemoteWrite(kind store.IntentKind, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.remoteWrites.WithLabelValues(string(kind), result).Inc()
}

func (m *Metrics) ObserveFlush(replayed, failed, dropped int) {
	m.flushes.Inc()
	m.flushed.WithLabelValues("replayed").Add(float64(replayed))
	m.flushed.WithLabelValues("failed").Add(float64(failed))
	m.flushed.WithLabelValues("dropped").Add(float64(dropped))
}

func (m *Metrics) ObserveChange(kind repo.Kind, typ repo.ChangeType, outcome realtime.Outcome) {
	m.changes.WithLabelValues(string(kind), string(typ), string(outcome)).Inc()
}
