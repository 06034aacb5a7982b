package reactive

import (
	"encoding/json"
	"slices"
)

// Array is the reactive proxy for an ordered sequence. Reads subscribe to the
// collection tracker; every mutation method wraps inserted aggregates and
// notifies the collection tracker exactly once.
type Array struct {
	ob    *Observer
	items []any
}

func (rt *Runtime) newArray(items []any) *Array {
	arr := &Array{}
	arr.ob = rt.newObserver(arr)
	rt.register(items, arr.ob)
	arr.items = arr.observeItems(items)
	return arr
}

func (a *Array) observer() *Observer {
	if a == nil {
		return nil
	}
	return a.ob
}

// Observer returns the array's Observer.
func (a *Array) Observer() *Observer {
	return a.ob
}

func (a *Array) observeItems(items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i], _ = a.ob.rt.observe(item, false)
	}
	return out
}

// Len returns the number of items.
func (a *Array) Len() int {
	a.ob.depend()
	return len(a.items)
}

// At returns the item at i, or nil when i is out of range.
func (a *Array) At(i int) any {
	a.ob.depend()
	if i < 0 || i >= len(a.items) {
		return nil
	}
	return a.items[i]
}

// Peek returns the item at i without subscribing.
func (a *Array) Peek(i int) any {
	if i < 0 || i >= len(a.items) {
		return nil
	}
	return a.items[i]
}

// Values returns a copy of the items.
func (a *Array) Values() []any {
	a.ob.depend()
	return slices.Clone(a.items)
}

// Push appends items and returns the new length.
func (a *Array) Push(items ...any) int {
	a.items = append(a.items, a.observeItems(items)...)
	a.ob.dep.Notify()
	return len(a.items)
}

// Pop removes and returns the last item.
func (a *Array) Pop() any {
	var last any
	if n := len(a.items); n > 0 {
		last = a.items[n-1]
		a.items[n-1] = nil
		a.items = a.items[:n-1]
	}
	a.ob.dep.Notify()
	return last
}

// Shift removes and returns the first item.
func (a *Array) Shift() any {
	var first any
	if len(a.items) > 0 {
		first = a.items[0]
		a.items = slices.Delete(a.items, 0, 1)
	}
	a.ob.dep.Notify()
	return first
}

// Unshift prepends items and returns the new length.
func (a *Array) Unshift(items ...any) int {
	a.items = slices.Insert(a.items, 0, a.observeItems(items)...)
	a.ob.dep.Notify()
	return len(a.items)
}

// Splice removes deleteCount items starting at start, inserts items in their
// place and returns the removed items. A negative start counts from the end.
func (a *Array) Splice(start, deleteCount int, items ...any) []any {
	n := len(a.items)
	switch {
	case start < 0:
		start = max(n+start, 0)
	case start > n:
		start = n
	}
	deleteCount = min(max(deleteCount, 0), n-start)

	removed := slices.Clone(a.items[start : start+deleteCount])
	a.items = slices.Replace(a.items, start, start+deleteCount, a.observeItems(items)...)
	a.ob.dep.Notify()
	return removed
}

// Insert inserts v at i.
func (a *Array) Insert(i int, v any) {
	a.Splice(i, 0, v)
}

// RemoveAt removes and returns the item at i, or nil when i is out of range.
func (a *Array) RemoveAt(i int) any {
	if i < 0 || i >= len(a.items) {
		return nil
	}
	return a.Splice(i, 1)[0]
}

// Set replaces the item at i, growing the array with nils when i is past the
// end. Unlike a plain index assignment the change is observable.
func (a *Array) Set(i int, v any) {
	if i < 0 {
		return
	}
	if i >= len(a.items) {
		a.items = append(a.items, make([]any, i+1-len(a.items))...)
	}
	a.Splice(i, 1, v)
}

// Clear removes every item.
func (a *Array) Clear() {
	clear(a.items)
	a.items = a.items[:0]
	a.ob.dep.Notify()
}

// Sort sorts the items in place with a stable sort.
func (a *Array) Sort(cmp func(x, y any) int) {
	slices.SortStableFunc(a.items, cmp)
	a.ob.dep.Notify()
}

// Reverse reverses the items in place.
func (a *Array) Reverse() {
	slices.Reverse(a.items)
	a.ob.dep.Notify()
}

// Raw returns a deep plain copy without subscribing.
func (a *Array) Raw() []any {
	return a.raw(make(map[*Observer]any))
}

func (a *Array) raw(seen map[*Observer]any) []any {
	out := make([]any, len(a.items))
	seen[a.ob] = out
	for i, item := range a.items {
		out[i] = rawValue(item, seen)
	}
	return out
}

// MarshalJSON encodes the plain snapshot.
func (a *Array) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Raw())
}
