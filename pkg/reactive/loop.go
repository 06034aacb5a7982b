package reactive

import (
	"context"
	"runtime/debug"
	"sync/atomic"
)

// DefaultLoopQueueSize is the task buffer of an EventLoop.
const DefaultLoopQueueSize = 256

// EventLoop drives a Runtime from a single goroutine. Tasks posted from any
// goroutine run one at a time on the loop goroutine, and the runtime's
// microtask queue is settled after each task, so mutations made by a task are
// flushed before the next task starts.
type EventLoop struct {
	rt      *Runtime
	tasks   chan func()
	running atomic.Bool
}

// NewEventLoop creates a loop for rt with a task buffer of size
// DefaultLoopQueueSize.
func NewEventLoop(rt *Runtime) *EventLoop {
	return NewEventLoopSize(rt, DefaultLoopQueueSize)
}

// NewEventLoopSize creates a loop for rt with a task buffer of size n.
func NewEventLoopSize(rt *Runtime, n int) *EventLoop {
	return &EventLoop{
		rt:    rt,
		tasks: make(chan func(), n),
	}
}

// Runtime returns the runtime driven by the loop.
func (l *EventLoop) Runtime() *Runtime {
	return l.rt
}

// Post queues task. It never blocks: when the buffer is full the task is
// discarded with a warning and Post returns false.
func (l *EventLoop) Post(task func()) bool {
	select {
	case l.tasks <- task:
		return true
	default:
		l.rt.logger.Warn("reactive: event loop queue full, discarding task")
		return false
	}
}

// Run processes tasks until ctx is done, binding the runtime to the loop
// goroutine for the duration. It returns ctx.Err().
func (l *EventLoop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	Bind(l.rt)
	defer Release()

	l.rt.Settle()
	for {
		select {
		case task := <-l.tasks:
			l.execute(task)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// execute runs one task followed by a microtask checkpoint.
func (l *EventLoop) execute(task func()) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				l.rt.logger.Error("reactive: event loop task panic",
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()
		task()
	}()

	l.rt.Settle()
}
