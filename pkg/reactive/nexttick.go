package reactive

import rerrors "github.com/vango-dev/reactor/internal/errors"

// Deferrer schedules work to run after the current synchronous work
// completes. Callbacks deferred within one turn must run in registration
// order.
type Deferrer interface {
	Defer(fn func())
}

// DeferFunc adapts a function to the Deferrer interface.
type DeferFunc func(fn func())

// Defer calls f(fn).
func (f DeferFunc) Defer(fn func()) { f(fn) }

// MicrotaskQueue is the default Deferrer. Callbacks accumulate until the host
// drains the queue at a microtask checkpoint. A callback that panics is
// reported and does not prevent the remaining callbacks from running.
type MicrotaskQueue struct {
	rt       *Runtime
	pending  []func()
	draining bool
}

func newMicrotaskQueue(rt *Runtime) *MicrotaskQueue {
	return &MicrotaskQueue{rt: rt}
}

// Defer appends fn to the queue.
func (q *MicrotaskQueue) Defer(fn func()) {
	q.pending = append(q.pending, fn)
}

// Pending returns the number of queued callbacks.
func (q *MicrotaskQueue) Pending() int {
	return len(q.pending)
}

// Drain runs the callbacks queued when Drain was called and returns how many
// ran. Callbacks deferred while draining wait for the next Drain. A nested
// call from inside a callback does nothing.
func (q *MicrotaskQueue) Drain() int {
	if q.draining || len(q.pending) == 0 {
		return 0
	}

	q.draining = true
	defer func() { q.draining = false }()

	callbacks := q.pending
	q.pending = nil
	for _, cb := range callbacks {
		q.rt.runHook(cb, rerrors.CodeNextTick, "nextTick")
	}
	return len(callbacks)
}

// Settle drains repeatedly until no callbacks remain.
func (q *MicrotaskQueue) Settle() {
	for q.Drain() > 0 {
	}
}
