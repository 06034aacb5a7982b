package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/timeline"
)

type demoOptions struct {
	sync       bool
	runaway    bool
	maxUpdates int
}

func demoCmd(g *globalOptions) *cobra.Command {
	var opts demoOptions

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted scenario and print the flush log",
		Long: `Run a scripted scenario against a small scope tree and print what
every flush did: which watchers ran, in which order, and which hooks fired.

Examples:
  reactor demo
  reactor demo --sync
  reactor demo --runaway --max-updates=20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			base := g.cfg.RuntimeOptions()
			if cmd.Flags().Changed("sync") {
				base = append(base, reactive.WithAsync(!opts.sync))
			}
			if opts.maxUpdates > 0 {
				base = append(base, reactive.WithMaxUpdateCount(opts.maxUpdates))
			}
			_, err := runDemo(cmd.OutOrStdout(), g.logger, base, opts.runaway)
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.sync, "sync", false, "Flush synchronously on every mutation")
	cmd.Flags().BoolVar(&opts.runaway, "runaway", false, "Add a watcher that re-triggers itself")
	cmd.Flags().IntVar(&opts.maxUpdates, "max-updates", 0, "Runaway limit per watcher and flush (default from reactor.yaml)")

	return cmd
}

var announcedHooks = []reactive.HookType{reactive.HookUpdated, reactive.HookActivated, reactive.HookDeactivated, reactive.HookDestroyed}

// demo holds the scenario state shared by its steps.
type demo struct {
	out     io.Writer
	rt      *reactive.Runtime
	rec     *timeline.Recorder
	lastSeq uint64
}

func runDemo(out io.Writer, logger *slog.Logger, base []reactive.Option, runaway bool) (*timeline.Recorder, error) {
	d := &demo{
		out: out,
		rec: timeline.NewRecorder(timeline.WithSession("demo"), timeline.WithLogger(logger)),
	}

	opts := append(base,
		reactive.WithLogger(logger),
		reactive.WithInstrumentation(reactive.Multi(d.rec, cycleWarnings{out: out})),
		reactive.WithWarnHandler(func(msg string, _ *reactive.Watcher) {
			fmt.Fprintf(out, "  warn: %s\n", msg)
		}),
		reactive.WithErrorHandler(func(err error, _ *reactive.Watcher, info string) {
			fmt.Fprintf(out, "  error in %s: %v\n", info, err)
		}),
	)
	d.rt = reactive.New(opts...)

	mode := "async"
	if !d.rt.Config().Async {
		mode = "sync"
	}
	fmt.Fprintf(out, "reactor demo (%s flush, max %d updates per watcher)\n", mode, d.rt.Config().MaxUpdateCount)

	app := d.rt.NewScope("app", nil)
	data := app.Data(map[string]any{
		"count": 0,
		"items": []any{"milk", "eggs"},
	})
	items := data.Get("items").(*reactive.Array)

	total := app.Computed(func() any {
		return data.Get("items").(*reactive.Array).Len()
	}, reactive.Expression("total"))

	app.Watch(
		func(any) any { return data.Get("count") },
		func(next, old any) { fmt.Fprintf(out, "  watch count: %v -> %v\n", old, next) },
		reactive.Expression("count"),
	)
	for _, hook := range announcedHooks {
		d.announce(app, hook)
	}

	var (
		badge *reactive.Scope
		err   error
	)
	d.step("mount", func() {
		err = app.Mount(
			func(root *reactive.Object) any {
				return fmt.Sprintf("<app count=%v items=%v>", root.Get("count"), total.Get())
			},
			d.patch("app"),
		)
		if err != nil {
			return
		}

		badge = d.rt.NewScope("badge", app)
		badge.Data(map[string]any{"label": "clicks"})
		for _, hook := range announcedHooks {
			d.announce(badge, hook)
		}
		err = badge.Mount(
			func(root *reactive.Object) any {
				return fmt.Sprintf("<badge %v=%v>", root.Get("label"), data.Get("count"))
			},
			d.patch("badge"),
		)
	})
	if err != nil {
		return d.rec, err
	}

	d.step("increment count", func() {
		data.Set("count", 1)
	})

	d.step("batch: two increments and a push", func() {
		data.Set("count", 2)
		data.Set("count", 3)
		items.Push("bread")
	})

	d.step("computed only: pop an item", func() {
		items.Pop()
	})

	d.step("deactivate and reactivate badge", func() {
		badge.Deactivate()
		badge.Activate()
	})

	if runaway {
		var w *reactive.Watcher
		d.step("runaway watcher", func() {
			w, _ = d.rt.Watch(
				func() any { return data.Get("count") },
				func(next, _ any) { data.Set("count", next.(int)+1) },
				reactive.Expression("runaway"),
			)
			data.Set("count", 10)
		})
		w.Teardown()
	}

	d.step("destroy", func() {
		app.Destroy()
	})

	return d.rec, nil
}

// step runs fn as one turn, settles the runtime and prints the flushes the
// turn produced.
func (d *demo) step(title string, fn func()) {
	fmt.Fprintf(d.out, "\n== %s\n", title)
	fn()
	d.rt.Settle()

	var events []timeline.Event
	for _, ev := range d.rec.Events() {
		if ev.Seq > d.lastSeq {
			events = append(events, ev)
		}
	}
	if len(events) == 0 {
		fmt.Fprintln(d.out, "  (no flush)")
		return
	}
	d.lastSeq = events[len(events)-1].Seq
	printEvents(d.out, events)
}

func (d *demo) patch(name string) reactive.PatchFunc {
	return func(old, next any) any {
		switch {
		case old == nil:
			fmt.Fprintf(d.out, "  patch %s: create %v\n", name, next)
		case next == nil:
			fmt.Fprintf(d.out, "  patch %s: remove %v\n", name, old)
		default:
			fmt.Fprintf(d.out, "  patch %s: %v -> %v\n", name, old, next)
		}
		return next
	}
}

func (d *demo) announce(s *reactive.Scope, hook reactive.HookType) {
	s.On(hook, func() {
		fmt.Fprintf(d.out, "  hook %s: %s\n", s.Name(), hook)
	})
}

// printEvents writes a flush log. Runs are grouped per watcher in order of
// first appearance, so a runaway flush prints one line per watcher.
func printEvents(w io.Writer, events []timeline.Event) {
	type runs struct {
		ev    timeline.Event
		count int
		err   string
	}
	var (
		order  []uint64
		byID   = make(map[uint64]*runs)
		cycles []timeline.Event
	)

	for _, ev := range events {
		switch ev.Kind {
		case timeline.KindFlushStarted:
			fmt.Fprintf(w, "  flush #%d: %d queued\n", ev.Flush, ev.QueueSize)
			order = order[:0]
			clear(byID)
			cycles = cycles[:0]
		case timeline.KindWatcherRan:
			r, ok := byID[ev.WatcherID]
			if !ok {
				r = &runs{ev: ev}
				byID[ev.WatcherID] = r
				order = append(order, ev.WatcherID)
			}
			r.count++
			if ev.Error != "" {
				r.err = ev.Error
			}
		case timeline.KindCycleDetected:
			cycles = append(cycles, ev)
		case timeline.KindFlushFinished:
			for _, id := range order {
				r := byID[id]
				line := fmt.Sprintf("    run watcher %d %s", id, shortExpr(r.ev.Expression))
				if r.count > 1 {
					line += fmt.Sprintf(" x%d", r.count)
				}
				if r.err != "" {
					line += " error: " + r.err
				}
				fmt.Fprintln(w, line)
			}
			for _, c := range cycles {
				fmt.Fprintf(w, "    cycle: watcher %d %s ran %d times\n", c.WatcherID, shortExpr(c.Expression), c.Runs)
			}

			status := "done"
			if ev.Aborted {
				status = "aborted"
			}
			fmt.Fprintf(w, "  flush #%d %s: %d runs, %d updated\n", ev.Flush, status, ev.Runs, ev.Updated)
		}
	}
}

// shortExpr trims the package path from function-name expressions.
func shortExpr(expr string) string {
	if i := strings.LastIndex(expr, "/"); i != -1 {
		return expr[i+1:]
	}
	return expr
}

// cycleWarnings prints the full R001 diagnostic when a flush is abandoned.
type cycleWarnings struct {
	out io.Writer
}

func (cycleWarnings) FlushStarted(reactive.FlushInfo)   {}
func (cycleWarnings) WatcherRan(reactive.RunInfo)       {}
func (cycleWarnings) FlushFinished(reactive.FlushStats) {}

func (c cycleWarnings) CycleDetected(err *reactive.CycleError) {
	fmt.Fprint(c.out, err.Diagnostic().FormatWarning())
}
