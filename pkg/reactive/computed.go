package reactive

import "errors"

// Computed is a cached derived value backed by a lazy watcher. It evaluates
// only when read after one of its dependencies changed, and readers subscribe
// to the computed's own dependencies.
type Computed struct {
	w *Watcher
}

// Computed creates a computed value over fn. fn is not called until the
// first read.
func (rt *Runtime) Computed(fn func() any, opts ...WatcherOption) *Computed {
	getter := func(any) any { return fn() }
	opts = append([]WatcherOption{Expression(funcName(fn))}, opts...)
	opts = append(opts, Lazy())

	// Lazy watchers never evaluate on construction, so err is always nil.
	w, _ := rt.NewWatcher(nil, getter, nil, opts...)
	return &Computed{w: w}
}

// Get returns the current value, re-evaluating when dirty. A getter failure
// panics with the *EvalError so that an enclosing evaluation sees it; use
// Value to receive it as an error instead.
func (c *Computed) Get() any {
	v, err := c.Value()
	if err != nil && !errors.Is(err, ErrTornDown) {
		panic(err)
	}
	return v
}

// Value returns the current value, re-evaluating when dirty. After Teardown
// the last cached value is returned together with ErrTornDown if it is stale.
func (c *Computed) Value() (any, error) {
	w := c.w
	if w.dirty {
		if err := w.Evaluate(); err != nil {
			return w.value, err
		}
	}
	if w.rt.Target() != nil {
		w.Depend()
	}
	return w.value, nil
}

// Watcher returns the underlying lazy watcher.
func (c *Computed) Watcher() *Watcher {
	return c.w
}

// Teardown stops the computed value from tracking its dependencies.
func (c *Computed) Teardown() {
	c.w.Teardown()
}

// As converts a value read from a reactive source to T, returning the zero
// value when the dynamic type does not match.
func As[T any](v any) T {
	t, _ := v.(T)
	return t
}
