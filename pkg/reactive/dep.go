package reactive

import (
	"slices"
)

// Dep is a dependency tracker: the subscription point one reactive key or one
// collection exposes to the watchers reading it.
//
// Deduplication lives in the Watcher: a Dep only ever holds a watcher because
// that watcher chose to add itself through AddDep.
type Dep struct {
	id   uint64
	rt   *Runtime
	subs []*Watcher
}

func newDep(rt *Runtime) *Dep {
	return &Dep{
		id: rt.nextDepID(),
		rt: rt,
	}
}

// ID returns the tracker's unique identifier.
func (d *Dep) ID() uint64 {
	return d.id
}

// Subscribers returns the number of watchers currently subscribed.
func (d *Dep) Subscribers() int {
	return len(d.subs)
}

// AddSub appends w to the subscriber list.
func (d *Dep) AddSub(w *Watcher) {
	d.subs = append(d.subs, w)
}

// RemoveSub removes w by identity. It is a no-op when w is not subscribed.
func (d *Dep) RemoveSub(w *Watcher) {
	if i := slices.Index(d.subs, w); i != -1 {
		d.subs = slices.Delete(d.subs, i, i+1)
	}
}

// Depend asks the watcher currently evaluating, if any, to record a
// dependency on this tracker.
func (d *Dep) Depend() {
	if t := d.rt.Target(); t != nil {
		t.AddDep(d)
	}
}

// Notify calls Update on every subscriber. The list is snapshotted first so
// subscriptions changing during delivery do not affect this pass. When the
// runtime flushes synchronously, delivery is in ascending watcher id order.
func (d *Dep) Notify() {
	subs := slices.Clone(d.subs)

	if !d.rt.config.Async {
		slices.SortStableFunc(subs, compareWatchers)
	}

	for _, sub := range subs {
		sub.Update()
	}
}

func compareWatchers(a, b *Watcher) int {
	switch {
	case a.id < b.id:
		return -1
	case a.id > b.id:
		return 1
	default:
		return 0
	}
}
