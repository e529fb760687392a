// Package metrics provides Prometheus metrics collection for modcompose.
package metrics

import (
	"context"
	"errors"

	"github.com/artpar/modcompose/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "modcompose"

// Pass results used as label values.
const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultCancelled = "cancelled"
)

// Collector holds all Prometheus metrics for modcompose.
type Collector struct {
	// Composition metrics
	PassesTotal    *prometheus.CounterVec
	PassDuration   prometheus.Histogram
	ModulesLoaded  prometheus.Gauge
	RoutesResolved prometheus.Gauge
	LastPass       prometheus.Gauge

	// Reload metrics
	Reloads      prometheus.Counter
	ReloadErrors prometheus.Counter

	// Inspection API metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates a collector registered with the default Prometheus registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		PassesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_total",
				Help:      "Total number of composition passes by result",
			},
			[]string{"result"},
		),
		PassDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Composition pass duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
		ModulesLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "modules_loaded",
				Help:      "Number of modules loaded by the last successful pass",
			},
		),
		RoutesResolved: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "routes_resolved",
				Help:      "Number of route nodes produced by the last successful pass",
			},
		),
		LastPass: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_pass_timestamp",
				Help:      "Unix timestamp of the last successful pass",
			},
		),
		Reloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reloads_total",
				Help:      "Total number of recompositions triggered by descriptor or config changes",
			},
		),
		ReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reload_errors_total",
				Help:      "Total number of failed recompositions",
			},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of inspection API requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Inspection API request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "route"},
		),
	}
}

// PassCompleted records a successful pass.
func (c *Collector) PassCompleted(stats ports.PassStats) {
	c.PassesTotal.WithLabelValues(ResultSuccess).Inc()
	c.PassDuration.Observe(stats.Duration.Seconds())
	c.ModulesLoaded.Set(float64(stats.Modules))
	c.RoutesResolved.Set(float64(stats.Routes))
	c.LastPass.Set(float64(stats.StartedAt.Add(stats.Duration).Unix()))
}

// PassFailed records a failed pass. Gauges keep the values of the last
// successful pass.
func (c *Collector) PassFailed(stats ports.PassStats, err error) {
	result := ResultFailure
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		result = ResultCancelled
	}
	c.PassesTotal.WithLabelValues(result).Inc()
	c.PassDuration.Observe(stats.Duration.Seconds())
}

// ReloadSucceeded counts a recomposition triggered by a change.
func (c *Collector) ReloadSucceeded() {
	c.Reloads.Inc()
}

// ReloadFailed counts a failed recomposition.
func (c *Collector) ReloadFailed() {
	c.Reloads.Inc()
	c.ReloadErrors.Inc()
}

var _ ports.CompositionObserver = (*Collector)(nil)
