package reactive

import (
	"fmt"
	"reflect"
	"runtime"
	"strconv"

	rerrors "github.com/vango-dev/reactor/internal/errors"
)

// Getter computes a watcher's value. host is the value passed to NewWatcher,
// typically the root data of a scope.
type Getter func(host any) any

// Callback is invoked after a run whose result changed.
type Callback func(newValue, oldValue any)

// Watcher is a reaction: a getter plus the set of trackers it read during its
// last evaluation. Evaluating the getter rebuilds that set, so dependencies
// that are no longer read stop triggering the watcher.
//
// A Watcher is either clean, dirty (lazy watchers only), queued, or torn down.
// Teardown is terminal.
type Watcher struct {
	id         uint64
	rt         *Runtime
	host       any
	expression string
	getter     Getter
	cb         Callback

	deep      bool
	user      bool
	lazy      bool
	sync      bool
	immediate bool
	render    bool

	dirty  bool
	active bool

	// deps/depIDs hold the previous evaluation's trackers, newDeps/newDepIDs
	// the in-flight one. They swap roles in cleanupDeps.
	deps      []*Dep
	newDeps   []*Dep
	depIDs    map[uint64]struct{}
	newDepIDs map[uint64]struct{}

	before func()
	value  any
	scope  *Scope
}

// WatcherOption configures a Watcher.
type WatcherOption interface {
	applyWatcher(*Watcher)
}

type watcherOptionFunc func(*Watcher)

func (f watcherOptionFunc) applyWatcher(w *Watcher) { f(w) }

// Deep makes the watcher subscribe to every aggregate nested in its value and
// fire its callback on every run.
func Deep() WatcherOption {
	return watcherOptionFunc(func(w *Watcher) {
		w.deep = true
	})
}

// Sync makes the watcher run inline on notification instead of queueing.
func Sync() WatcherOption {
	return watcherOptionFunc(func(w *Watcher) {
		w.sync = true
	})
}

// Lazy defers evaluation until the value is read through Evaluate.
func Lazy() WatcherOption {
	return watcherOptionFunc(func(w *Watcher) {
		w.lazy = true
	})
}

// User marks a watcher created on behalf of application code: getter
// failures are reported and the previous value is kept.
func User() WatcherOption {
	return watcherOptionFunc(func(w *Watcher) {
		w.user = true
	})
}

// Before installs a hook run right before the watcher runs inside a flush.
func Before(fn func()) WatcherOption {
	return watcherOptionFunc(func(w *Watcher) {
		w.before = fn
	})
}

// Immediate invokes the callback once with the initial value on creation.
func Immediate() WatcherOption {
	return watcherOptionFunc(func(w *Watcher) {
		w.immediate = true
	})
}

// Expression sets the description used in diagnostics.
func Expression(desc string) WatcherOption {
	return watcherOptionFunc(func(w *Watcher) {
		w.expression = desc
	})
}

func renderMode() WatcherOption {
	return watcherOptionFunc(func(w *Watcher) {
		w.render = true
	})
}

func inScope(s *Scope) WatcherOption {
	return watcherOptionFunc(func(w *Watcher) {
		w.scope = s
	})
}

// NewWatcher creates a watcher over getter and, unless it is lazy, evaluates
// it once. A getter failure of a non-user watcher is returned; the watcher is
// still returned and stays subscribed to whatever it read before failing.
func (rt *Runtime) NewWatcher(host any, getter Getter, cb Callback, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		id:        nextWatcherID(),
		rt:        rt,
		host:      host,
		getter:    getter,
		cb:        cb,
		active:    true,
		depIDs:    make(map[uint64]struct{}),
		newDepIDs: make(map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt.applyWatcher(w)
	}
	if w.getter == nil {
		w.getter = func(any) any { return nil }
	}
	if w.expression == "" {
		w.expression = funcName(getter)
	}
	w.dirty = w.lazy

	if w.scope != nil {
		w.scope.addWatcher(w)
	}

	if w.lazy {
		return w, nil
	}

	value, err := w.get()
	if err != nil {
		return w, err
	}
	w.value = value

	if w.immediate {
		rt.Untracked(func() {
			w.invokeCallback(w.value, nil, "callback for immediate watcher")
		})
	}
	return w, nil
}

// NewPathWatcher watches a dot-delimited property path resolved against
// host. An invalid path is reported as a warning and yields a watcher whose
// value is always nil.
func (rt *Runtime) NewPathWatcher(host any, path string, cb Callback, opts ...WatcherOption) (*Watcher, error) {
	getter, ok := ParsePath(path)
	if !ok {
		rt.warn(rerrors.New(rerrors.CodeInvalidPath).WithSubject(strconv.Quote(path)).Error(), nil)
		getter = func(any) any { return nil }
	}
	return rt.NewWatcher(host, getter, cb, append([]WatcherOption{Expression(path)}, opts...)...)
}

// Watch creates a user watcher over fn. It is the programmatic equivalent of
// a scope's Watch for code that has no scope.
func (rt *Runtime) Watch(fn func() any, cb Callback, opts ...WatcherOption) (*Watcher, error) {
	getter := func(any) any { return fn() }
	opts = append([]WatcherOption{User(), Expression(funcName(fn))}, opts...)
	return rt.NewWatcher(nil, getter, cb, opts...)
}

// ID returns the watcher's creation-order id.
func (w *Watcher) ID() uint64 {
	return w.id
}

// Value returns the cached value without evaluating or subscribing.
func (w *Watcher) Value() any {
	return w.value
}

// Dirty reports whether a lazy watcher needs re-evaluation.
func (w *Watcher) Dirty() bool {
	return w.dirty
}

// Active reports whether the watcher has not been torn down.
func (w *Watcher) Active() bool {
	return w.active
}

// Expression returns the watcher's description.
func (w *Watcher) Expression() string {
	return w.expression
}

// DepCount returns the number of trackers the watcher is subscribed to.
func (w *Watcher) DepCount() int {
	return len(w.deps)
}

// get evaluates the getter with w as the target and rebuilds the dependency
// set. A failing user watcher reports the error and keeps its previous value.
func (w *Watcher) get() (value any, err error) {
	w.rt.withTarget(w, func() {
		defer func() {
			if r := recover(); r != nil {
				err = recoverEval(r, rerrors.CodeEvaluator, w.describe("getter for watcher"))
			}
		}()

		value = w.getter(w.host)
		if w.deep {
			traverse(value)
		}
	})
	w.cleanupDeps()

	if err != nil {
		if w.user {
			w.rt.handleError(err, w, w.describe("getter for watcher"))
			return w.value, nil
		}
		return nil, err
	}
	return value, nil
}

// AddDep records d in the in-flight dependency set and subscribes to it
// unless the previous evaluation already did.
func (w *Watcher) AddDep(d *Dep) {
	if _, ok := w.newDepIDs[d.id]; ok {
		return
	}
	w.newDepIDs[d.id] = struct{}{}
	w.newDeps = append(w.newDeps, d)

	if _, ok := w.depIDs[d.id]; !ok {
		d.AddSub(w)
	}
}

// cleanupDeps unsubscribes from trackers not read by the last evaluation,
// then swaps the two dependency sets and clears the stale one.
func (w *Watcher) cleanupDeps() {
	for _, d := range w.deps {
		if _, ok := w.newDepIDs[d.id]; !ok {
			d.RemoveSub(w)
		}
	}

	w.depIDs, w.newDepIDs = w.newDepIDs, w.depIDs
	clear(w.newDepIDs)

	w.deps, w.newDeps = w.newDeps, w.deps
	clear(w.newDeps)
	w.newDeps = w.newDeps[:0]
}

// Update is called by a tracker when a dependency changed. Lazy watchers are
// marked dirty, sync watchers run inline and everything else is queued.
func (w *Watcher) Update() {
	if !w.active {
		return
	}

	switch {
	case w.lazy:
		w.dirty = true
	case w.sync:
		if err := w.Run(); err != nil {
			w.rt.handleError(err, w, w.describe("getter for watcher"))
		}
	default:
		w.rt.scheduler.Queue(w)
	}
}

// Run re-evaluates the watcher and invokes the callback when the value
// changed, when it may have been mutated in place, or when the watcher is
// deep. Callback failures are reported, never returned.
func (w *Watcher) Run() error {
	if !w.active {
		return nil
	}

	value, err := w.get()
	if err != nil {
		return err
	}

	if w.render || w.deep || !sameValue(value, w.value) || isObjectLike(value) {
		old := w.value
		w.value = value
		w.invokeCallback(value, old, "callback for watcher")
	}
	return nil
}

// Evaluate recomputes a lazy watcher's value and clears its dirty flag.
func (w *Watcher) Evaluate() error {
	if !w.active {
		return ErrTornDown
	}

	value, err := w.get()
	if err != nil {
		return err
	}
	w.value = value
	w.dirty = false
	return nil
}

// Depend subscribes the current target to every tracker this watcher holds.
// Reading a computed value uses it to forward the computed's dependencies.
func (w *Watcher) Depend() {
	for _, d := range w.deps {
		d.Depend()
	}
}

// Teardown unsubscribes from every tracker and deactivates the watcher.
// Later notifications are ignored.
func (w *Watcher) Teardown() {
	if !w.active {
		return
	}

	if w.scope != nil && !w.scope.destroying {
		w.scope.removeWatcher(w)
	}
	for _, d := range w.deps {
		d.RemoveSub(w)
	}
	clear(w.deps)
	w.deps = w.deps[:0]
	clear(w.depIDs)
	w.active = false
}

func (w *Watcher) invokeCallback(value, old any, info string) {
	if w.cb == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			desc := w.describe(info)
			w.rt.handleError(recoverEval(r, rerrors.CodeCallback, desc), w, desc)
		}
	}()
	w.cb(value, old)
}

func (w *Watcher) describe(what string) string {
	return fmt.Sprintf("%s %q", what, w.expression)
}

// funcName returns the symbol name of fn for diagnostics.
func funcName(fn any) string {
	if fn == nil {
		return "<nil>"
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "<nil>"
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return "<anonymous>"
}
