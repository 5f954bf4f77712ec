// Package metrics publishes sync engine counters through a Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Targets of a sync operation.
const (
	TargetLocal  = "local"
	TargetRemote = "remote"
)

// Results of a sync operation.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Sync holds the sync engine collectors. A nil *Sync is valid and records nothing.
type Sync struct {
	registry   *prometheus.Registry
	ops        *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	queueDepth *prometheus.GaugeVec
	dirty      prometheus.Gauge
	pending    prometheus.Gauge
	loads      *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Sync {
	reg := prometheus.NewRegistry()
	m := &Sync{
		registry: reg,
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opsdash",
			Name:      "sync_operations_total",
			Help:      "Sync operations by entity kind, target store and result.",
		}, []string{"kind", "target", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "opsdash",
			Name:      "sync_duration_seconds",
			Help:      "Duration of one collection sync task.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "opsdash",
			Name:      "sync_queue_depth",
			Help:      "Pending sync tasks per entity kind.",
		}, []string{"kind"}),
		dirty: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "opsdash",
			Name:      "cache_dirty_records",
			Help:      "Local records not yet confirmed by the remote store.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "opsdash",
			Name:      "cache_pending_deletes",
			Help:      "Removals not yet replayed to the remote store.",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opsdash",
			Name:      "loads_total",
			Help:      "Full loads by the store that served them.",
		}, []string{"source"}),
	}
	reg.MustRegister(
		m.ops, m.duration, m.queueDepth, m.dirty, m.pending, m.loads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Sync) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Op counts one operation against a store.
func (m *Sync) Op(kind, target, result string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(kind, target, result).Inc()
}

// ObserveTask records how long a sync task for kind took.
func (m *Sync) ObserveTask(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
}

// QueueDepth sets the number of queued tasks for kind.
func (m *Sync) QueueDepth(kind string, n int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(kind).Set(float64(n))
}

// Backlog sets the dirty record and pending delete gauges.
func (m *Sync) Backlog(dirty, pendingDeletes int) {
	if m == nil {
		return
	}
	m.dirty.Set(float64(dirty))
	m.pending.Set(float64(pendingDeletes))
}

// Load counts a full load served by source.
func (m *Sync) Load(source string) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(source).Inc()
}
