// Package metrics holds the Prometheus instruments for the sync pipeline
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for cycles, upserts and publishes.
// All methods are nil-safe so tests can pass a nil *Metrics
type Metrics struct {
	reg *prometheus.Registry

	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	SkippedTicks  *prometheus.CounterVec
	Upserts       *prometheus.CounterVec
	Publishes     *prometheus.CounterVec
	PublishTime   prometheus.Histogram
	QueueDepth    prometheus.Gauge
	LastSuccess   prometheus.Gauge
}

// New registers every instrument on a fresh registry (plus go and process collectors)
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWith(reg)
}

// NewWith registers every instrument on reg
func NewWith(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tariffsync_cycles_total",
			Help: "Pipeline cycles by outcome",
		}, []string{"outcome"}), // ok, source_failed, empty, panic

		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tariffsync_cycle_duration_seconds",
			Help:    "Duration of fetch plus reconcile for one cycle",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		SkippedTicks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tariffsync_skipped_ticks_total",
			Help: "Ticks or manual triggers skipped because a cycle was already running",
		}, []string{"reason"}), // in_flight, lease_held

		Upserts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tariffsync_upserts_total",
			Help: "Per-record reconciliation results",
		}, []string{"result"}), // inserted, updated, failed

		Publishes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tariffsync_publishes_total",
			Help: "Per-target document writes by result",
		}, []string{"result"}), // ok, failed

		PublishTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tariffsync_publish_duration_seconds",
			Help:    "Duration of one queued publish task across all targets",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "tariffsync_propagation_queue_depth",
			Help: "Batches admitted to the propagation queue and not yet started",
		}),

		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "tariffsync_last_success_timestamp_seconds",
			Help: "Unix time of the last cycle that persisted at least one record",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.reg == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// ObserveCycle records a finished cycle
func (m *Metrics) ObserveCycle(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(d.Seconds())
	if outcome == "ok" {
		m.LastSuccess.SetToCurrentTime()
	}
}

// IncSkipped counts a skipped tick
func (m *Metrics) IncSkipped(reason string) {
	if m != nil {
		m.SkippedTicks.WithLabelValues(reason).Inc()
	}
}

// IncUpsert counts one record result
func (m *Metrics) IncUpsert(result string) {
	if m != nil {
		m.Upserts.WithLabelValues(result).Inc()
	}
}

// IncPublish counts one target write
func (m *Metrics) IncPublish(result string) {
	if m != nil {
		m.Publishes.WithLabelValues(result).Inc()
	}
}

// ObservePublish records one publish task duration
func (m *Metrics) ObservePublish(d time.Duration) {
	if m != nil {
		m.PublishTime.Observe(d.Seconds())
	}
}

// SetQueueDepth reports pending batches
func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}
