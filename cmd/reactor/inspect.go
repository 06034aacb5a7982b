package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/pkg/inspector"
	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/telemetry"
	"github.com/vango-dev/reactor/pkg/timeline"
)

type inspectOptions struct {
	addr       string
	interval   time.Duration
	duration   time.Duration
	saveOnExit bool
}

func inspectCmd(g *globalOptions) *cobra.Command {
	opts := inspectOptions{interval: 500 * time.Millisecond}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Run a workload and serve its timeline",
		Long: `Drive a runtime from an event loop with a steady stream of mutations
and serve the recorded timeline, a live websocket stream and Prometheus
metrics over HTTP.

Endpoints:
  GET  /healthz
  GET  /api/timeline          live timeline
  POST /api/timeline          persist a snapshot to the configured store
  GET  /api/timeline/{id}
  GET  /api/timelines
  GET  /ws                    live events (?backlog=true for retained events)
  GET  /metrics

Examples:
  reactor inspect
  reactor inspect --addr=:7070 --interval=100ms
  reactor inspect --duration=1m --save-on-exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.addr != "" {
				g.cfg.Inspector.Addr = opts.addr
			}
			if opts.interval <= 0 {
				return errors.New("--interval must be positive")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if opts.duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.duration)
				defer cancel()
			}
			return runInspect(ctx, g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "Listen address (default from reactor.yaml)")
	cmd.Flags().DurationVarP(&opts.interval, "interval", "i", opts.interval, "Time between workload mutations")
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 0, "Stop after this long (default: until interrupted)")
	cmd.Flags().BoolVar(&opts.saveOnExit, "save-on-exit", false, "Persist a timeline snapshot before exiting")

	return cmd
}

func runInspect(ctx context.Context, g *globalOptions, opts inspectOptions) error {
	cfg, logger := g.cfg, g.logger

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("closing timeline store", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	rec := timeline.NewRecorder(
		timeline.WithCapacity(cfg.Timeline.Capacity),
		timeline.WithLogger(logger),
	)
	metrics := telemetry.Prometheus(
		telemetry.WithRegistry(reg),
		telemetry.WithNamespace(cfg.Metrics.Namespace),
		telemetry.WithSubsystem(cfg.Metrics.Subsystem),
	)
	tracer := telemetry.OpenTelemetry(telemetry.WithParentContext(ctx))

	rt := reactive.New(append(cfg.RuntimeOptions(),
		reactive.WithLogger(logger),
		reactive.WithInstrumentation(reactive.Multi(rec, metrics, tracer)),
	)...)
	loop := reactive.NewEventLoop(rt)

	srv := inspector.New(rec, store,
		inspector.WithLogger(logger),
		inspector.WithGatherer(reg),
	)

	printBanner()
	success("Inspector on http://%s", cfg.Inspector.Addr)
	info("Session:  %s", rec.Session())
	info("Store:    %s", cfg.Store.Kind)
	info("Interval: %s", opts.interval)

	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(ctx) }()

	w := newWorkload(rt)
	loop.Post(w.setup)
	go func() {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !loop.Post(w.tick) {
					warn("event loop busy, skipped a tick")
				}
			}
		}
	}()

	if err := srv.Run(ctx, cfg.Inspector.Addr); err != nil {
		errorMsg("inspector: %v", err)
		return err
	}
	if err := <-loopErr; err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if opts.saveOnExit {
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		t := rec.Snapshot()
		if err := store.Save(saveCtx, t); err != nil {
			errorMsg("saving timeline: %v", err)
			return err
		}
		success("Saved timeline %s (%d events)", t.ID, len(t.Events))
	}
	return nil
}

// workload is a small scope tree mutated on every tick. It only runs on the
// event loop goroutine.
type workload struct {
	rt    *reactive.Runtime
	app   *reactive.Scope
	data  *reactive.Object
	items *reactive.Array
	ticks int
}

func newWorkload(rt *reactive.Runtime) *workload {
	return &workload{rt: rt}
}

func (w *workload) setup() {
	w.app = w.rt.NewScope("app", nil)
	w.data = w.app.Data(map[string]any{
		"count": 0,
		"items": []any{},
	})
	w.items = w.data.Get("items").(*reactive.Array)

	total := w.app.Computed(func() any {
		return w.data.Get("items").(*reactive.Array).Len()
	}, reactive.Expression("total"))

	w.app.WatchPath("count", nil)
	if err := w.app.Mount(func(root *reactive.Object) any {
		return []any{root.Get("count"), total.Get()}
	}, nil); err != nil {
		w.rt.Logger().Error("mounting workload", "error", err)
		return
	}

	list := w.rt.NewScope("list", w.app)
	list.Data(map[string]any{})
	if err := list.Mount(func(*reactive.Object) any {
		return w.items.Values()
	}, nil); err != nil {
		w.rt.Logger().Error("mounting workload", "error", err)
	}
}

func (w *workload) tick() {
	if w.data == nil {
		return
	}
	w.ticks++
	w.data.Set("count", w.ticks)

	switch {
	case w.ticks%7 == 0 && w.items.Len() > 0:
		w.items.Shift()
	case w.ticks%3 == 0:
		w.items.Push(w.ticks)
	}
}
