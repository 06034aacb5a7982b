package reactive

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// reports collects everything a test runtime reports.
type reports struct {
	errors   []error
	infos    []string
	warnings []string
}

func newTestRuntime(t *testing.T, opts ...Option) (*Runtime, *reports) {
	t.Helper()

	r := &reports{}
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithErrorHandler(func(err error, _ *Watcher, info string) {
			r.errors = append(r.errors, err)
			r.infos = append(r.infos, info)
		}),
		WithWarnHandler(func(msg string, _ *Watcher) {
			r.warnings = append(r.warnings, msg)
		}),
	}
	return New(append(base, opts...)...), r
}

func reactiveObject(t *testing.T, rt *Runtime, m map[string]any) *Object {
	t.Helper()

	obj, ok := rt.Reactive(m).(*Object)
	require.True(t, ok, "Reactive(map) should return *Object")
	return obj
}

func mustWatcher(t *testing.T, rt *Runtime, getter Getter, cb Callback, opts ...WatcherOption) *Watcher {
	t.Helper()

	w, err := rt.NewWatcher(nil, getter, cb, opts...)
	require.NoError(t, err)
	return w
}

// counter returns a callback counting its invocations.
func counter(n *int) Callback {
	return func(any, any) { *n++ }
}
