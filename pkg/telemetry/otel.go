package telemetry

import (
	"context"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/reactor/pkg/reactive"
)

const defaultTracerName = "github.com/vango-dev/reactor"

// OTelConfig configures the OpenTelemetry exporter.
type OTelConfig struct {
	// TracerName is the instrumentation scope name.
	TracerName string

	// Provider supplies the tracer. Default: the global provider.
	Provider trace.TracerProvider

	// Context is the parent of every flush span. Default: context.Background().
	Context context.Context

	// Attributes are added to every flush span.
	Attributes []attribute.KeyValue

	// SkipRuns disables the per-watcher child spans.
	SkipRuns bool
}

// OTelOption configures the OpenTelemetry exporter.
type OTelOption func(*OTelConfig)

// WithTracerName sets the instrumentation scope name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the provider the tracer is obtained from.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.Provider = tp
	}
}

// WithParentContext sets the context flush spans are started from.
func WithParentContext(ctx context.Context) OTelOption {
	return func(c *OTelConfig) {
		c.Context = ctx
	}
}

// WithAttributes adds attributes to every flush span.
func WithAttributes(attrs ...attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

// WithoutRunSpans disables the per-watcher child spans.
func WithoutRunSpans() OTelOption {
	return func(c *OTelConfig) {
		c.SkipRuns = true
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
		Context:    context.Background(),
	}
}

// Tracer is a reactive.Instrumentation that emits one "reactor.flush" span per
// flush with a child span per watcher run. A flush started from the
// post-flush hooks of another becomes a child of the outer flush span. A
// Tracer follows a single Runtime.
type Tracer struct {
	config OTelConfig
	tracer trace.Tracer

	// flushes holds the open flush spans, innermost last.
	flushes []openFlush
}

type openFlush struct {
	seq  uint64
	ctx  context.Context
	span trace.Span
}

// current returns the innermost open flush, or nil.
func (t *Tracer) current() *openFlush {
	if len(t.flushes) == 0 {
		return nil
	}
	return &t.flushes[len(t.flushes)-1]
}

// lookup returns the index of the open flush seq, or -1.
func (t *Tracer) lookup(seq uint64) int {
	for i := len(t.flushes) - 1; i >= 0; i-- {
		if t.flushes[i].seq == seq {
			return i
		}
	}
	return -1
}

var _ reactive.Instrumentation = (*Tracer)(nil)

// OpenTelemetry creates a Tracer. Without WithTracerProvider the global
// provider is used, so configure it in main() before creating the runtime:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) *Tracer {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	var tracer trace.Tracer
	if config.Provider != nil {
		tracer = config.Provider.Tracer(config.TracerName)
	} else {
		tracer = otel.Tracer(config.TracerName)
	}
	return &Tracer{config: config, tracer: tracer}
}

// FlushStarted implements reactive.Instrumentation.
func (t *Tracer) FlushStarted(info reactive.FlushInfo) {
	attrs := append([]attribute.KeyValue{
		attribute.Int64("reactor.flush.seq", int64(info.Seq)),
		attribute.Int("reactor.flush.queue_size", info.QueueSize),
	}, t.config.Attributes...)

	parent := t.config.Context
	if outer := t.current(); outer != nil {
		parent = outer.ctx
	}

	ctx, span := t.tracer.Start(
		parent,
		"reactor.flush",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(info.Start),
	)
	t.flushes = append(t.flushes, openFlush{seq: info.Seq, ctx: ctx, span: span})
}

// WatcherRan implements reactive.Instrumentation.
func (t *Tracer) WatcherRan(info reactive.RunInfo) {
	if t.config.SkipRuns {
		return
	}
	i := t.lookup(info.Seq)
	if i == -1 {
		return
	}

	_, span := t.tracer.Start(
		t.flushes[i].ctx,
		"reactor.watcher "+info.Expression,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("reactor.watcher.id", strconv.FormatUint(info.WatcherID, 10)),
			attribute.String("reactor.watcher.expression", info.Expression),
			attribute.Int("reactor.flush.index", info.Index),
		),
		trace.WithTimestamp(info.Start),
	)
	if info.Err != nil {
		span.RecordError(info.Err)
		span.SetStatus(codes.Error, info.Err.Error())
	}
	span.End(trace.WithTimestamp(info.Start.Add(info.Duration)))
}

// CycleDetected implements reactive.Instrumentation.
func (t *Tracer) CycleDetected(err *reactive.CycleError) {
	f := t.current()
	if f == nil {
		return
	}
	f.span.RecordError(err)
	f.span.SetStatus(codes.Error, err.Error())
}

// FlushFinished implements reactive.Instrumentation.
func (t *Tracer) FlushFinished(stats reactive.FlushStats) {
	i := t.lookup(stats.Seq)
	if i == -1 {
		return
	}
	span := t.flushes[i].span
	t.flushes = slices.Delete(t.flushes, i, i+1)

	span.SetAttributes(
		attribute.Int("reactor.flush.runs", stats.Runs),
		attribute.Int("reactor.flush.updated", stats.Updated),
		attribute.Bool("reactor.flush.aborted", stats.Aborted),
	)
	if !stats.Aborted {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(time.Now()))
}
