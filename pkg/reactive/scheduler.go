package reactive

import (
	"slices"
	"time"

	rerrors "github.com/vango-dev/reactor/internal/errors"
)

// Scheduler is the update queue. Watchers notified during a turn are
// deduplicated by id and flushed once, in ascending id order, on the next
// microtask checkpoint (or immediately when the runtime is synchronous).
type Scheduler struct {
	rt *Runtime

	queue     []*Watcher
	activated []*Scope
	has       map[uint64]bool
	circular  map[uint64]int

	waiting  bool
	flushing bool
	index    int
	seq      uint64
}

func newScheduler(rt *Runtime) *Scheduler {
	return &Scheduler{
		rt:       rt,
		has:      make(map[uint64]bool),
		circular: make(map[uint64]int),
	}
}

// Queue adds w to the pending flush unless it is already pending. During a
// flush w is inserted after the cursor at its id position, so it still runs
// in this pass.
func (s *Scheduler) Queue(w *Watcher) {
	id := w.id
	if s.has[id] {
		return
	}
	s.has[id] = true

	if !s.flushing {
		s.queue = append(s.queue, w)
	} else {
		i := len(s.queue) - 1
		for i > s.index && s.queue[i].id > id {
			i--
		}
		s.queue = slices.Insert(s.queue, i+1, w)
	}

	s.schedule()
}

// QueueActivated defers the Activated hook of sc to the end of the next flush.
func (s *Scheduler) QueueActivated(sc *Scope) {
	s.activated = append(s.activated, sc)
	s.schedule()
}

// Pending returns the number of queued watchers.
func (s *Scheduler) Pending() int {
	return len(s.queue)
}

// Flushing reports whether a flush is executing.
func (s *Scheduler) Flushing() bool {
	return s.flushing
}

func (s *Scheduler) schedule() {
	if s.waiting {
		return
	}
	s.waiting = true

	if !s.rt.config.Async {
		s.flush()
		return
	}
	s.rt.deferrer.Defer(s.flush)
}

func (s *Scheduler) flush() {
	rt := s.rt
	s.flushing = true
	s.seq++
	seq := s.seq
	start := time.Now()

	// Parents are created before children and user watchers before the
	// render watcher of their scope, so ascending ids run them first.
	slices.SortFunc(s.queue, compareWatchers)
	rt.instr.FlushStarted(FlushInfo{Seq: seq, QueueSize: len(s.queue), Start: start})

	runs := 0
	aborted := false
	for s.index = 0; s.index < len(s.queue); s.index++ {
		w := s.queue[s.index]
		if w.before != nil {
			rt.runHook(w.before, rerrors.CodeHook, w.describe("before hook for watcher"))
		}

		id := w.id
		delete(s.has, id)

		runStart := time.Now()
		err := w.Run()
		runs++
		if err != nil {
			rt.handleError(err, w, w.describe("getter for watcher"))
		}
		rt.instr.WatcherRan(RunInfo{
			Seq:        seq,
			Index:      s.index,
			WatcherID:  id,
			Expression: w.expression,
			Start:      runStart,
			Duration:   time.Since(runStart),
			Err:        err,
		})

		if limit := rt.config.MaxUpdateCount; limit > 0 && s.has[id] {
			s.circular[id]++
			if s.circular[id] >= limit {
				cerr := &CycleError{WatcherID: id, Expression: w.expression, Count: s.circular[id]}
				rt.warn(cerr.Error(), w)
				rt.instr.CycleDetected(cerr)
				aborted = true
				break
			}
		}
	}

	activated := slices.Clone(s.activated)
	updated := slices.Clone(s.queue)
	s.reset()

	callActivatedHooks(activated)
	callUpdatedHooks(updated)

	rt.instr.FlushFinished(FlushStats{
		Seq:      seq,
		Runs:     runs,
		Updated:  len(updated),
		Duration: time.Since(start),
		Aborted:  aborted,
	})
}

func (s *Scheduler) reset() {
	clear(s.queue)
	s.queue = s.queue[:0]
	s.activated = nil
	clear(s.has)
	clear(s.circular)
	s.index = 0
	s.waiting = false
	s.flushing = false
}

func callActivatedHooks(scopes []*Scope) {
	for _, sc := range scopes {
		sc.activate(true)
	}
}

// callUpdatedHooks fires Updated on the scopes of render watchers that ran,
// children before parents.
func callUpdatedHooks(queue []*Watcher) {
	for i := len(queue) - 1; i >= 0; i-- {
		w := queue[i]
		sc := w.scope
		if sc != nil && sc.renderWatcher == w && sc.mounted && !sc.destroyed {
			sc.callHook(HookUpdated)
		}
	}
}
