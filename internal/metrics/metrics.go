// Package metrics holds the Prometheus collectors for saga outcomes, catalog
// traffic and sweeps. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stagehand"

// Prepare outcomes.
const (
	PrepareFound    = "found"
	PrepareImported = "imported"
	PrepareRaced    = "raced"
	PrepareFailed   = "failed"
)

// Rollback outcomes.
const (
	RollbackDeleted = "deleted"
	RollbackEngaged = "engaged"
	RollbackNoop    = "noop"
	RollbackStale   = "stale"
)

// Commit outcomes.
const (
	CommitOK    = "ok"
	CommitStale = "stale"
	CommitGone  = "gone"
)

// Metrics is the service's collector set on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	prepareTotal   *prometheus.CounterVec // outcome
	commitTotal    *prometheus.CounterVec // outcome
	rollbackTotal  *prometheus.CounterVec // outcome
	sweepDeleted   *prometheus.CounterVec // kind
	sweepRuns      prometheus.Counter
	catalogTotal   *prometheus.CounterVec // op, status
	searchImported prometheus.Counter
	sagaDuration   *prometheus.HistogramVec // op
}

// New creates and registers all collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		prepareTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prepare_total",
			Help:      "Prepare calls by outcome (found, imported, raced, failed)",
		}, []string{"outcome"}),

		commitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_total",
			Help:      "Commit calls by outcome (ok, stale, gone)",
		}, []string{"outcome"}),

		rollbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollback_total",
			Help:      "Rollback calls by outcome (deleted, engaged, noop, stale)",
		}, []string{"outcome"}),

		sweepDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_deleted_total",
			Help:      "Provisional entities reclaimed by sweeps, by kind",
		}, []string{"kind"}),

		sweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Completed sweep passes",
		}),

		catalogTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "External catalog requests by operation and status",
		}, []string{"op", "status"}),

		searchImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_imported_total",
			Help:      "Works imported as confirmed from external search hits",
		}),

		sagaDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "saga_duration_seconds",
			Help:      "Staging operation latency in seconds",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.prepareTotal,
		m.commitTotal,
		m.rollbackTotal,
		m.sweepDeleted,
		m.sweepRuns,
		m.catalogTotal,
		m.searchImported,
		m.sagaDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Prepare(outcome string) {
	if m == nil {
		return
	}
	m.prepareTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Commit(outcome string) {
	if m == nil {
		return
	}
	m.commitTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Rollback(outcome string) {
	if m == nil {
		return
	}
	m.rollbackTotal.WithLabelValues(outcome).Inc()
}

// Sweep records one completed pass and what it reclaimed.
func (m *Metrics) Sweep(works, contributors int) {
	if m == nil {
		return
	}
	m.sweepRuns.Inc()
	m.sweepDeleted.WithLabelValues("work").Add(float64(works))
	m.sweepDeleted.WithLabelValues("contributor").Add(float64(contributors))
}

// Catalog matches openlibrary.Observer.
func (m *Metrics) Catalog(op, status string) {
	if m == nil {
		return
	}
	m.catalogTotal.WithLabelValues(op, status).Inc()
}

func (m *Metrics) SearchImported(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.searchImported.Add(float64(n))
}

// Since records the time elapsed from start for op.
func (m *Metrics) Since(op string, start time.Time) {
	if m == nil {
		return
	}
	m.sagaDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
