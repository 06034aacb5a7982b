package telemetry

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/reactor/pkg/reactive"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	require.NotNil(t, m.Counter, "expected counter metric")
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	require.NotNil(t, m.Gauge, "expected gauge metric")
	return m.GetGauge().GetValue()
}

func metricHistogram(t *testing.T, o prometheus.Observer) *dto.Histogram {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	require.True(t, ok, "observer %T does not implement prometheus.Metric", o)
	var m dto.Metric
	require.NoError(t, metric.Write(&m))
	require.NotNil(t, m.Histogram, "expected histogram metric")
	return m.GetHistogram()
}

func quietRuntime(opts ...reactive.Option) *reactive.Runtime {
	base := []reactive.Option{
		reactive.WithAsync(false),
		reactive.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		reactive.WithErrorHandler(func(error, *reactive.Watcher, string) {}),
		reactive.WithWarnHandler(func(string, *reactive.Watcher) {}),
	}
	return reactive.New(append(base, opts...)...)
}

func TestPrometheus_RecordsEvents(t *testing.T) {
	m := Prometheus(WithRegistry(prometheus.NewRegistry()))

	m.FlushStarted(reactive.FlushInfo{Seq: 1, QueueSize: 3, Start: time.Now()})
	assert.Equal(t, float64(1), metricGaugeValue(t, m.pendingFlushes))

	m.WatcherRan(reactive.RunInfo{Seq: 1, WatcherID: 1, Duration: time.Millisecond})
	m.WatcherRan(reactive.RunInfo{Seq: 1, WatcherID: 2, Err: errors.New("boom")})
	m.FlushFinished(reactive.FlushStats{Seq: 1, Runs: 2, Updated: 2, Duration: 2 * time.Millisecond})

	assert.Equal(t, float64(1), metricCounterValue(t, m.watcherRunsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), metricCounterValue(t, m.watcherRunsTotal.WithLabelValues("error")))
	assert.Equal(t, float64(1), metricCounterValue(t, m.flushesTotal.WithLabelValues("completed")))
	assert.Equal(t, float64(0), metricCounterValue(t, m.flushesTotal.WithLabelValues("aborted")))
	assert.Equal(t, float64(0), metricGaugeValue(t, m.pendingFlushes))

	queue := metricHistogram(t, m.flushQueueSize)
	assert.Equal(t, uint64(1), queue.GetSampleCount())
	assert.Equal(t, float64(3), queue.GetSampleSum())
	assert.Equal(t, uint64(2), metricHistogram(t, m.watcherRunSeconds).GetSampleCount())
	assert.Equal(t, uint64(1), metricHistogram(t, m.flushDuration).GetSampleCount())
}

func TestPrometheus_CycleAbortsFlush(t *testing.T) {
	m := Prometheus(WithRegistry(prometheus.NewRegistry()))
	rt := quietRuntime(reactive.WithInstrumentation(m))

	obj := rt.Reactive(map[string]any{"n": 0}).(*reactive.Object)
	_, err := rt.Watch(
		func() any { return obj.Get("n") },
		func(v, _ any) { obj.Set("n", v.(int)+1) },
	)
	require.NoError(t, err)

	obj.Set("n", 1)

	assert.Equal(t, float64(1), metricCounterValue(t, m.updateCyclesTotal))
	assert.Equal(t, float64(1), metricCounterValue(t, m.flushesTotal.WithLabelValues("aborted")))
	assert.Equal(t, float64(reactive.DefaultMaxUpdateCount),
		metricCounterValue(t, m.watcherRunsTotal.WithLabelValues("success")))
}

func TestPrometheus_MetricNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := Prometheus(
		WithRegistry(reg),
		WithSubsystem("scheduler"),
		WithConstLabels(prometheus.Labels{"app": "test"}),
		WithBuckets([]float64{0.001, 0.01}),
	)
	rt := quietRuntime(reactive.WithInstrumentation(m))

	obj := rt.Reactive(map[string]any{"n": 0}).(*reactive.Object)
	_, err := rt.Watch(func() any { return obj.Get("n") }, nil)
	require.NoError(t, err)
	obj.Set("n", 1)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		names[f.GetName()] = f
	}
	for _, want := range []string{
		"reactor_scheduler_flushes_total",
		"reactor_scheduler_flush_duration_seconds",
		"reactor_scheduler_flush_queue_size",
		"reactor_scheduler_watcher_runs_total",
		"reactor_scheduler_watcher_run_duration_seconds",
		"reactor_scheduler_flush_in_progress",
	} {
		require.Contains(t, names, want)
	}

	runs := names["reactor_scheduler_watcher_run_duration_seconds"].GetMetric()[0]
	assert.Len(t, runs.GetHistogram().GetBucket(), 2)

	var app string
	for _, l := range runs.GetLabel() {
		if l.GetName() == "app" {
			app = l.GetValue()
		}
	}
	assert.Equal(t, "test", app)
}

func TestPrometheus_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Prometheus(WithRegistry(reg))

	assert.Panics(t, func() {
		Prometheus(WithRegistry(reg))
	})
}
