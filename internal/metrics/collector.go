// Package metrics exposes evaluation and node execution metrics in the
// Prometheus format. A Collector is installed on the engine as its observer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rendis/verdict/pkg/schema"
)

// Config configures metric names.
type Config struct {
	Namespace string // default "verdict"
	Subsystem string // default "engine"

	// Buckets for duration histograms in seconds. Defaults span 10µs to ~5s.
	DurationBuckets []float64
}

// Collector records evaluation and node metrics.
//
// Metrics:
//   - <ns>_<sub>_evaluations_total{scope,status}
//   - <ns>_<sub>_evaluation_duration_seconds{scope}
//   - <ns>_<sub>_nodes_total{kind,status}
//   - <ns>_<sub>_node_duration_seconds{kind}
//   - <ns>_<sub>_errors_total{kind}
//
// scope is "root" for top-level evaluations and "nested" for sub-decisions.
type Collector struct {
	registry *prometheus.Registry

	evaluations        *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	nodes              *prometheus.CounterVec
	nodeDuration       *prometheus.HistogramVec
	errors             *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with registry.
// A nil registry gets a fresh one.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "verdict"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "engine"
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = prometheus.ExponentialBuckets(0.00001, 4, 10)
	}

	c := &Collector{
		registry: registry,
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of decision evaluations",
			},
			[]string{"scope", "status"},
		),
		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of decision evaluations in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"scope"},
		),
		nodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "nodes_total",
				Help:      "Total number of node executions",
			},
			[]string{"kind", "status"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "node_duration_seconds",
				Help:      "Duration of node executions in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"kind"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "errors_total",
				Help:      "Total number of failed root evaluations by error kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(c.evaluations, c.evaluationDuration, c.nodes, c.nodeDuration, c.errors)
	return c
}

// ObserveNode implements engine.Observer.
func (c *Collector) ObserveNode(kind schema.NodeKind, elapsed time.Duration, err error) {
	c.nodes.WithLabelValues(string(kind), status(err)).Inc()
	c.nodeDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ObserveEvaluation implements engine.Observer. Errors are counted by kind
// only at the root so a failure propagating out of nested decisions is
// counted once.
func (c *Collector) ObserveEvaluation(depth int, elapsed time.Duration, err error) {
	scope := "root"
	if depth > 0 {
		scope = "nested"
	}
	c.evaluations.WithLabelValues(scope, status(err)).Inc()
	c.evaluationDuration.WithLabelValues(scope).Observe(elapsed.Seconds())

	if err != nil && depth == 0 {
		kind := string(schema.KindOf(err))
		if kind == "" {
			kind = "UNKNOWN"
		}
		c.errors.WithLabelValues(kind).Inc()
	}
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
