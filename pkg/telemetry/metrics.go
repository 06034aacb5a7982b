package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/reactor/pkg/reactive"
)

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	// Namespace prefixes every metric name. Default: "reactor".
	Namespace string

	// Subsystem is inserted between namespace and name. Default: "".
	Subsystem string

	// ConstLabels are attached to every metric.
	ConstLabels prometheus.Labels

	// Buckets for the duration histograms. Default: prometheus.DefBuckets.
	Buckets []float64

	// QueueBuckets for the flush queue size histogram.
	QueueBuckets []float64

	// Registry to register metrics with. Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus exporter.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metric namespace.
func WithNamespace(ns string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = ns
	}
}

// WithSubsystem sets the metric subsystem.
func WithSubsystem(ss string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = ss
	}
}

// WithConstLabels sets labels attached to every metric.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithQueueBuckets sets the flush queue size histogram buckets.
func WithQueueBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.QueueBuckets = buckets
	}
}

// WithRegistry sets the registerer. Tests should pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func WithRegistry(reg prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = reg
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:    "reactor",
		Buckets:      prometheus.DefBuckets,
		QueueBuckets: prometheus.ExponentialBuckets(1, 2, 10),
		Registry:     prometheus.DefaultRegisterer,
	}
}

// Metrics is a reactive.Instrumentation that records scheduler activity as
// Prometheus metrics.
type Metrics struct {
	flushesTotal      *prometheus.CounterVec
	flushDuration     prometheus.Histogram
	flushQueueSize    prometheus.Histogram
	watcherRunsTotal  *prometheus.CounterVec
	watcherRunSeconds prometheus.Histogram
	updateCyclesTotal prometheus.Counter
	pendingFlushes    prometheus.Gauge
}

var _ reactive.Instrumentation = (*Metrics)(nil)

// Prometheus creates the metrics and registers them with the configured
// registry. Registering twice with the same registry panics.
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		flushesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "flushes_total",
				Help:        "Total number of update queue flushes, by outcome",
				ConstLabels: config.ConstLabels,
			},
			[]string{"status"},
		),
		flushDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "flush_duration_seconds",
				Help:        "Duration of update queue flushes including post-flush hooks",
				ConstLabels: config.ConstLabels,
				Buckets:     config.Buckets,
			},
		),
		flushQueueSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "flush_queue_size",
				Help:        "Number of watchers queued when a flush starts",
				ConstLabels: config.ConstLabels,
				Buckets:     config.QueueBuckets,
			},
		),
		watcherRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "watcher_runs_total",
				Help:        "Total number of watcher runs inside flushes, by status",
				ConstLabels: config.ConstLabels,
			},
			[]string{"status"},
		),
		watcherRunSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "watcher_run_duration_seconds",
				Help:        "Duration of a single watcher run",
				ConstLabels: config.ConstLabels,
				Buckets:     config.Buckets,
			},
		),
		updateCyclesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "update_cycles_total",
				Help:        "Total number of flushes aborted by the infinite update loop guard",
				ConstLabels: config.ConstLabels,
			},
		),
		pendingFlushes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "flush_in_progress",
				Help:        "1 while a flush is executing",
				ConstLabels: config.ConstLabels,
			},
		),
	}
}

// FlushStarted implements reactive.Instrumentation.
func (m *Metrics) FlushStarted(info reactive.FlushInfo) {
	m.pendingFlushes.Set(1)
	m.flushQueueSize.Observe(float64(info.QueueSize))
}

// WatcherRan implements reactive.Instrumentation.
func (m *Metrics) WatcherRan(info reactive.RunInfo) {
	status := "success"
	if info.Err != nil {
		status = "error"
	}
	m.watcherRunsTotal.WithLabelValues(status).Inc()
	m.watcherRunSeconds.Observe(info.Duration.Seconds())
}

// CycleDetected implements reactive.Instrumentation.
func (m *Metrics) CycleDetected(*reactive.CycleError) {
	m.updateCyclesTotal.Inc()
}

// FlushFinished implements reactive.Instrumentation.
func (m *Metrics) FlushFinished(stats reactive.FlushStats) {
	status := "completed"
	if stats.Aborted {
		status = "aborted"
	}
	m.flushesTotal.WithLabelValues(status).Inc()
	m.flushDuration.Observe(stats.Duration.Seconds())
	m.pendingFlushes.Set(0)
}
