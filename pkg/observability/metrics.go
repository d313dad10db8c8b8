package observability

import (
	"context"
	"errors"
	"net/http"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "switchboard"

// Metrics holds the collectors fed by lifecycle hooks.
type Metrics struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	runSteps     prometheus.Histogram
	activeRuns   prometheus.Gauge
	nodeVisits   *prometheus.CounterVec
	nodeErrors   *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of finished runs by outcome",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a run",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		runSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_steps",
			Help:      "Node invocations per run",
			Buckets:   prometheus.LinearBuckets(1, 2, 13),
		}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Runs currently in progress",
		}),
		nodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node visits",
		}, []string{"node"}),
		nodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_errors_total",
			Help:      "Total number of failed node invocations",
		}, []string{"node"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of node invocations",
		}, []string{"node"}),
	}
	m.registry.MustRegister(
		m.runs, m.runDuration, m.runSteps, m.activeRuns,
		m.nodeVisits, m.nodeErrors, m.nodeDuration,
	)
	return m
}

// Registry exposes the registry for additional collectors or gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			m.activeRuns.Inc()
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			m.activeRuns.Dec()
			m.runs.WithLabelValues(Outcome(e.Err)).Inc()
			m.runDuration.Observe(e.Duration.Seconds())
			m.runSteps.Observe(float64(e.Steps))
		},
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			m.nodeVisits.WithLabelValues(e.Node).Inc()
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			m.nodeDuration.WithLabelValues(e.Node).Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.nodeErrors.WithLabelValues(e.Node).Inc()
			}
		},
	}
}

// Outcome classifies a run error into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, domain.ErrLoopGuard):
		return "loop_guard"
	case errors.Is(err, domain.ErrContractViolation):
		return "contract_violation"
	case errors.Is(err, domain.ErrCollaboratorUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrRouting):
		return "routing"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence"
	}
	return "error"
}
