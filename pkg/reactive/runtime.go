package reactive

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/petermattis/goid"

	rerrors "github.com/vango-dev/reactor/internal/errors"
)

// Runtime owns the evaluation context, the update queue and the microtask
// queue shared by every reactive value, watcher and scope created from it.
// A Runtime is single-threaded: only the goroutine driving it may touch the
// values it owns.
type Runtime struct {
	config Config
	logger *slog.Logger
	instr  Instrumentation

	// targets is the evaluation context stack. The top entry is the watcher
	// currently collecting dependencies; a nil entry suspends collection.
	targets []*Watcher

	// observing is false while WithoutObserving runs.
	observing bool

	// observed maps plain aggregates to the Observer of their wrapper. It
	// holds every wrapped aggregate for the lifetime of the runtime.
	observed map[identity]*Observer

	// depSeq is the last dep id handed out.
	depSeq uint64

	scheduler  *Scheduler
	microtasks *MicrotaskQueue
	deferrer   Deferrer
}

// New creates a Runtime configured by opts.
func New(opts ...Option) *Runtime {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Instrumentation == nil {
		cfg.Instrumentation = nopInstrumentation{}
	}

	rt := &Runtime{
		config:    cfg,
		logger:    cfg.Logger,
		instr:     cfg.Instrumentation,
		observing: true,
		observed:  make(map[identity]*Observer),
	}
	rt.scheduler = newScheduler(rt)
	rt.microtasks = newMicrotaskQueue(rt)
	rt.deferrer = cfg.Deferrer
	if rt.deferrer == nil {
		rt.deferrer = rt.microtasks
	}

	return rt
}

// nextDepID returns the next dep id of this runtime.
func (rt *Runtime) nextDepID() uint64 {
	rt.depSeq++
	return rt.depSeq
}

// Config returns a copy of the runtime configuration.
func (rt *Runtime) Config() Config {
	return rt.config
}

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.logger
}

// Scheduler returns the runtime's update queue.
func (rt *Runtime) Scheduler() *Scheduler {
	return rt.scheduler
}

// Microtasks returns the runtime's default microtask queue.
func (rt *Runtime) Microtasks() *MicrotaskQueue {
	return rt.microtasks
}

// =============================================================================
// Per-goroutine runtimes
// =============================================================================

// runtimes maps goroutine ids to the runtime bound to that goroutine.
var runtimes sync.Map

// Current returns the runtime bound to the calling goroutine, creating and
// binding a default one on first use.
func Current() *Runtime {
	gid := goid.Get()
	if rt, ok := runtimes.Load(gid); ok {
		return rt.(*Runtime)
	}

	rt := New()
	runtimes.Store(gid, rt)
	return rt
}

// Bind makes rt the runtime returned by Current on the calling goroutine.
func Bind(rt *Runtime) {
	if rt == nil {
		Release()
		return
	}
	runtimes.Store(goid.Get(), rt)
}

// Release unbinds the calling goroutine's runtime.
// Goroutines that called Current or Bind should release before exiting.
func Release() {
	runtimes.Delete(goid.Get())
}

// =============================================================================
// Evaluation context
// =============================================================================

// Target returns the watcher currently collecting dependencies, or nil.
func (rt *Runtime) Target() *Watcher {
	if n := len(rt.targets); n > 0 {
		return rt.targets[n-1]
	}
	return nil
}

// withTarget runs fn with w on top of the evaluation stack. The previous
// target is restored on every exit path, including panics.
func (rt *Runtime) withTarget(w *Watcher, fn func()) {
	rt.targets = append(rt.targets, w)
	depth := len(rt.targets)
	defer func() {
		rt.targets[depth-1] = nil
		rt.targets = rt.targets[:depth-1]
	}()

	fn()
}

// Untracked runs fn without collecting dependencies for the current watcher.
func (rt *Runtime) Untracked(fn func()) {
	rt.withTarget(nil, fn)
}

// WithoutObserving runs fn with aggregate wrapping disabled: values assigned
// into reactive slots while fn runs are stored as they are.
func (rt *Runtime) WithoutObserving(fn func()) {
	prev := rt.observing
	rt.observing = false
	defer func() { rt.observing = prev }()

	fn()
}

// =============================================================================
// Deferred work
// =============================================================================

// NextTick schedules fn to run after the current synchronous work, in
// registration order with other deferred callbacks.
func (rt *Runtime) NextTick(fn func()) {
	rt.deferrer.Defer(fn)
}

// Settle drains the runtime's microtask queue until it is idle. Hosts that do
// not use an EventLoop call Settle at the end of each turn.
func (rt *Runtime) Settle() {
	rt.microtasks.Settle()
}

// =============================================================================
// Diagnostics
// =============================================================================

// handleError reports err to the configured ErrorHandler, falling back to the
// logger. A panicking handler is logged along with the original error.
func (rt *Runtime) handleError(err error, w *Watcher, info string) {
	if h := rt.config.ErrorHandler; h != nil {
		herr := rt.callErrorHandler(h, err, w, info)
		if herr == nil {
			return
		}
		rt.logError(herr, nil, "config.ErrorHandler")
	}
	rt.logError(err, w, info)
}

func (rt *Runtime) callErrorHandler(h ErrorHandler, err error, w *Watcher, info string) (herr error) {
	defer func() {
		if r := recover(); r != nil {
			herr = recoverEval(r, rerrors.CodeErrorHandler, "config.ErrorHandler")
		}
	}()
	h(err, w, info)
	return nil
}

func (rt *Runtime) logError(err error, w *Watcher, info string) {
	attrs := []any{"error", err, "info", info}
	var ee *EvalError
	if errors.As(err, &ee) && ee.Code != "" {
		attrs = append(attrs, "code", ee.Code)
	}
	if w != nil {
		attrs = append(attrs, "watcher", w.expression, "watcher_id", w.id)
	}
	rt.logger.Error("reactive: error in "+info, attrs...)
}

// runHook runs fn untracked, reporting a panic instead of propagating it.
func (rt *Runtime) runHook(fn func(), code, info string) {
	rt.Untracked(func() {
		defer func() {
			if r := recover(); r != nil {
				rt.handleError(recoverEval(r, code, info), nil, info)
			}
		}()
		fn()
	})
}

// warn emits a developer-facing diagnostic unless the runtime is silent.
func (rt *Runtime) warn(msg string, w *Watcher) {
	if rt.config.Silent {
		return
	}
	if h := rt.config.WarnHandler; h != nil {
		h(msg, w)
		return
	}
	if w != nil {
		rt.logger.Warn("reactive: "+msg, "watcher", w.expression, "watcher_id", w.id)
		return
	}
	rt.logger.Warn("reactive: " + msg)
}
