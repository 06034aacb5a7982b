package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/telemetry"
)

type benchOptions struct {
	watchers  int
	keys      int
	mutations int
	batch     int
	sync      bool
}

type benchResult struct {
	Setup    time.Duration
	Elapsed  time.Duration
	Flushes  float64
	Runs     float64
	Watchers int
}

func benchCmd(g *globalOptions) *cobra.Command {
	opts := benchOptions{
		watchers:  1000,
		keys:      100,
		mutations: 10000,
		batch:     10,
	}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure flush throughput",
		Long: `Create watchers over a shared object, apply mutations in batches and
report how long the flushes took.

Every watcher reads one key, so a mutation re-runs watchers/keys watchers.
In async mode each batch is one turn and is flushed once.

Examples:
  reactor bench
  reactor bench --watchers=10000 --keys=10 --mutations=1000
  reactor bench --sync`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.keys <= 0 || opts.watchers <= 0 || opts.batch <= 0 {
				return fmt.Errorf("--watchers, --keys and --batch must be positive")
			}
			res, err := runBench(g.logger, g.cfg.RuntimeOptions(), opts)
			if err != nil {
				return err
			}
			printBench(cmd.OutOrStdout(), opts, res)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.watchers, "watchers", "w", opts.watchers, "Number of watchers")
	cmd.Flags().IntVarP(&opts.keys, "keys", "k", opts.keys, "Number of keys the watchers are spread over")
	cmd.Flags().IntVarP(&opts.mutations, "mutations", "m", opts.mutations, "Number of mutations")
	cmd.Flags().IntVarP(&opts.batch, "batch", "b", opts.batch, "Mutations per turn in async mode")
	cmd.Flags().BoolVar(&opts.sync, "sync", false, "Flush synchronously on every mutation")

	return cmd
}

func runBench(logger *slog.Logger, base []reactive.Option, opts benchOptions) (benchResult, error) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.Prometheus(telemetry.WithRegistry(reg))

	rt := reactive.New(append(base,
		reactive.WithAsync(!opts.sync),
		reactive.WithLogger(logger),
		reactive.WithInstrumentation(metrics),
	)...)

	keys := make([]string, opts.keys)
	initial := make(map[string]any, opts.keys)
	for i := range keys {
		keys[i] = "k" + strconv.Itoa(i)
		initial[keys[i]] = 0
	}
	obj := rt.Reactive(initial).(*reactive.Object)

	start := time.Now()
	for i := 0; i < opts.watchers; i++ {
		key := keys[i%len(keys)]
		if _, err := rt.NewWatcher(obj, func(host any) any {
			return host.(*reactive.Object).Get(key)
		}, nil); err != nil {
			return benchResult{}, err
		}
	}
	setup := time.Since(start)

	start = time.Now()
	for i := 0; i < opts.mutations; i++ {
		obj.Set(keys[i%len(keys)], i+1)
		if (i+1)%opts.batch == 0 {
			rt.Settle()
		}
	}
	rt.Settle()
	elapsed := time.Since(start)

	flushes, err := counterTotal(reg, "reactor_flushes_total")
	if err != nil {
		return benchResult{}, err
	}
	runs, err := counterTotal(reg, "reactor_watcher_runs_total")
	if err != nil {
		return benchResult{}, err
	}

	return benchResult{
		Setup:    setup,
		Elapsed:  elapsed,
		Flushes:  flushes,
		Runs:     runs,
		Watchers: opts.watchers,
	}, nil
}

// counterTotal sums every series of the named counter.
func counterTotal(g prometheus.Gatherer, name string) (float64, error) {
	families, err := g.Gather()
	if err != nil {
		return 0, err
	}

	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total, nil
}

func printBench(w io.Writer, opts benchOptions, res benchResult) {
	mode := "async"
	if opts.sync {
		mode = "sync"
	}

	fmt.Fprintf(w, "reactor bench (%s)\n\n", mode)
	fmt.Fprintf(w, "  watchers:        %d over %d keys\n", opts.watchers, opts.keys)
	fmt.Fprintf(w, "  mutations:       %d (batch %d)\n", opts.mutations, opts.batch)
	fmt.Fprintf(w, "  setup:           %s\n", res.Setup.Round(time.Microsecond))
	fmt.Fprintf(w, "  elapsed:         %s\n", res.Elapsed.Round(time.Microsecond))
	fmt.Fprintf(w, "  flushes:         %.0f\n", res.Flushes)
	fmt.Fprintf(w, "  watcher runs:    %.0f\n", res.Runs)
	if secs := res.Elapsed.Seconds(); secs > 0 {
		fmt.Fprintf(w, "  mutations/sec:   %.0f\n", float64(opts.mutations)/secs)
		fmt.Fprintf(w, "  runs/sec:        %.0f\n", res.Runs/secs)
	}
	if res.Flushes > 0 {
		fmt.Fprintf(w, "  runs/flush:      %.1f\n", res.Runs/res.Flushes)
	}
}
