package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vango-dev/reactor/pkg/reactive"
)

// recordedSpan captures what the tracer does with a span.
type recordedSpan struct {
	noop.Span

	name       string
	parent     *recordedSpan
	start      time.Time
	end        time.Time
	ended      bool
	status     codes.Code
	errs       []error
	attributes map[attribute.Key]attribute.Value
}

func (s *recordedSpan) End(opts ...trace.SpanEndOption) {
	s.ended = true
	s.end = trace.NewSpanEndConfig(opts...).Timestamp()
}

func (s *recordedSpan) SetStatus(code codes.Code, _ string) {
	s.status = code
}

func (s *recordedSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}

func (s *recordedSpan) SetAttributes(kv ...attribute.KeyValue) {
	for _, a := range kv {
		s.attributes[a.Key] = a.Value
	}
}

type spanKey struct{}

type recordingTracer struct {
	noop.Tracer
	spans []*recordedSpan
}

func (r *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	span := &recordedSpan{
		name:       name,
		start:      cfg.Timestamp(),
		attributes: make(map[attribute.Key]attribute.Value),
	}
	if parent, ok := ctx.Value(spanKey{}).(*recordedSpan); ok {
		span.parent = parent
	}
	span.SetAttributes(cfg.Attributes()...)
	r.spans = append(r.spans, span)
	return context.WithValue(ctx, spanKey{}, span), span
}

type recordingProvider struct {
	noop.TracerProvider
	tracer *recordingTracer
	name   string
}

func (p *recordingProvider) Tracer(name string, _ ...trace.TracerOption) trace.Tracer {
	p.name = name
	return p.tracer
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{tracer: &recordingTracer{}}
}

func TestOpenTelemetry_FlushAndRunSpans(t *testing.T) {
	tp := newRecordingProvider()
	tr := OpenTelemetry(
		WithTracerProvider(tp),
		WithTracerName("test"),
		WithAttributes(attribute.String("session", "abc")),
	)
	assert.Equal(t, "test", tp.name)

	start := time.Unix(100, 0)
	tr.FlushStarted(reactive.FlushInfo{Seq: 7, QueueSize: 2, Start: start})
	tr.WatcherRan(reactive.RunInfo{Seq: 7, WatcherID: 3, Expression: "count", Start: start, Duration: time.Second})
	tr.WatcherRan(reactive.RunInfo{Seq: 7, Index: 1, WatcherID: 4, Expression: "total", Start: start, Err: errors.New("bad getter")})
	tr.FlushFinished(reactive.FlushStats{Seq: 7, Runs: 2, Updated: 2})

	spans := tp.tracer.spans
	require.Len(t, spans, 3)

	flush := spans[0]
	assert.Equal(t, "reactor.flush", flush.name)
	assert.True(t, flush.ended)
	assert.Equal(t, start, flush.start)
	assert.Equal(t, codes.Ok, flush.status)
	assert.Equal(t, int64(7), flush.attributes["reactor.flush.seq"].AsInt64())
	assert.Equal(t, "abc", flush.attributes["session"].AsString())
	assert.Equal(t, int64(2), flush.attributes["reactor.flush.runs"].AsInt64())

	first := spans[1]
	assert.Equal(t, "reactor.watcher count", first.name)
	assert.Same(t, flush, first.parent)
	assert.Equal(t, start.Add(time.Second), first.end)
	assert.Equal(t, codes.Unset, first.status)

	second := spans[2]
	assert.Same(t, flush, second.parent)
	assert.Equal(t, codes.Error, second.status)
	require.Len(t, second.errs, 1)
}

func TestOpenTelemetry_CycleMarksFlushFailed(t *testing.T) {
	tp := newRecordingProvider()
	rt := quietRuntime(reactive.WithInstrumentation(OpenTelemetry(
		WithTracerProvider(tp),
		WithoutRunSpans(),
	)))

	obj := rt.Reactive(map[string]any{"n": 0}).(*reactive.Object)
	_, err := rt.Watch(
		func() any { return obj.Get("n") },
		func(v, _ any) { obj.Set("n", v.(int)+1) },
		reactive.Expression("runaway"),
	)
	require.NoError(t, err)
	obj.Set("n", 1)

	spans := tp.tracer.spans
	require.Len(t, spans, 1)

	flush := spans[0]
	assert.True(t, flush.ended)
	assert.Equal(t, codes.Error, flush.status)
	assert.True(t, flush.attributes["reactor.flush.aborted"].AsBool())
	require.Len(t, flush.errs, 1)

	var cerr *reactive.CycleError
	require.ErrorAs(t, flush.errs[0], &cerr)
	assert.Equal(t, "runaway", cerr.Expression)
}

func TestOpenTelemetry_IgnoresRunsOutsideFlush(t *testing.T) {
	tp := newRecordingProvider()
	tr := OpenTelemetry(WithTracerProvider(tp))

	tr.WatcherRan(reactive.RunInfo{WatcherID: 1})
	tr.FlushFinished(reactive.FlushStats{})
	tr.CycleDetected(&reactive.CycleError{})

	assert.Empty(t, tp.tracer.spans)
}

func TestOpenTelemetry_NestedFlushes(t *testing.T) {
	tp := newRecordingProvider()
	tr := OpenTelemetry(WithTracerProvider(tp))

	start := time.Unix(100, 0)
	tr.FlushStarted(reactive.FlushInfo{Seq: 1, QueueSize: 1, Start: start})
	tr.WatcherRan(reactive.RunInfo{Seq: 1, WatcherID: 1, Expression: "render", Start: start})
	tr.FlushStarted(reactive.FlushInfo{Seq: 2, QueueSize: 1, Start: start})
	tr.WatcherRan(reactive.RunInfo{Seq: 2, WatcherID: 2, Expression: "b", Start: start})
	tr.FlushFinished(reactive.FlushStats{Seq: 2, Runs: 1, Updated: 1})
	tr.FlushFinished(reactive.FlushStats{Seq: 1, Runs: 1, Updated: 1})

	spans := tp.tracer.spans
	require.Len(t, spans, 4)
	outer, outerRun, inner, innerRun := spans[0], spans[1], spans[2], spans[3]

	assert.Same(t, outer, outerRun.parent)
	assert.Same(t, outer, inner.parent)
	assert.Same(t, inner, innerRun.parent)
	for _, s := range []*recordedSpan{outer, inner} {
		assert.True(t, s.ended, s.name)
		assert.Equal(t, codes.Ok, s.status)
	}
	assert.Empty(t, tr.flushes)
}

func TestOpenTelemetry_FlushFromUpdatedHook(t *testing.T) {
	tp := newRecordingProvider()
	tr := OpenTelemetry(WithTracerProvider(tp), WithoutRunSpans())
	rt := quietRuntime(reactive.WithInstrumentation(tr))

	sc := rt.NewScope("app", nil)
	data := sc.Data(map[string]any{"a": 0, "b": 0})
	require.NoError(t, sc.Mount(func(root *reactive.Object) any { return root.Get("a") }, nil))
	_, err := rt.Watch(func() any { return data.Get("b") }, nil, reactive.Expression("b"))
	require.NoError(t, err)
	sc.On(reactive.HookUpdated, func() { data.Set("b", data.Peek("a")) })

	data.Set("a", 1)

	spans := tp.tracer.spans
	require.Len(t, spans, 2)
	assert.Same(t, spans[0], spans[1].parent)
	assert.True(t, spans[0].ended)
	assert.True(t, spans[1].ended)
	assert.Empty(t, tr.flushes)
}
