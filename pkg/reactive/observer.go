package reactive

import (
	"reflect"
	"unsafe"
)

// Observer is the per-aggregate bookkeeping attached to every *Object and
// *Array. It owns the collection-level tracker, which fires when the
// aggregate changes shape (keys defined or deleted, items inserted or
// removed). An aggregate has exactly one Observer for its whole lifetime.
type Observer struct {
	rt    *Runtime
	value any
	dep   *Dep

	// rootCount counts the scopes using the aggregate as root data.
	rootCount int
}

// Dep returns the collection-level tracker.
func (ob *Observer) Dep() *Dep {
	return ob.dep
}

// Value returns the *Object or *Array owning this Observer.
func (ob *Observer) Value() any {
	return ob.value
}

// RootCount returns how many scopes use the aggregate as root data.
func (ob *Observer) RootCount() int {
	return ob.rootCount
}

// depend registers the current target with the collection tracker.
func (ob *Observer) depend() {
	if ob.rt.Target() != nil {
		ob.dep.Depend()
	}
}

// observable is implemented by the wrapper types; the observer is the hidden
// marker that makes wrapping idempotent.
type observable interface {
	observer() *Observer
}

// Reactive wraps v into its proxy type: map[string]any becomes *Object and
// []any becomes *Array, recursively. Already wrapped values and scalars are
// returned unchanged.
func (rt *Runtime) Reactive(v any) any {
	wrapped, _ := rt.observe(v, false)
	return wrapped
}

// Observe returns the Observer of v, wrapping v first when it is a plain
// aggregate. It returns nil for scalars and when observing is disabled.
// Callers that need the wrapped value use Observer.Value or Reactive.
func (rt *Runtime) Observe(v any) *Observer {
	_, ob := rt.observe(v, false)
	return ob
}

// observe returns the value to store in a reactive slot and its Observer.
// A plain aggregate that was wrapped before yields its existing wrapper, so
// aliases of one map or slice share trackers.
func (rt *Runtime) observe(v any, asRoot bool) (any, *Observer) {
	var ob *Observer

	switch x := v.(type) {
	case observable:
		ob = x.observer()
	case map[string]any:
		if rt.observing && x != nil {
			if ob = rt.observed[identityOf(x)]; ob == nil {
				ob = rt.newObject(x).ob
			}
			v = ob.value
		}
	case []any:
		if rt.observing && x != nil {
			if ob = rt.observed[identityOf(x)]; ob == nil {
				ob = rt.newArray(x).ob
			}
			v = ob.value
		}
	}

	if asRoot && ob != nil {
		ob.rootCount++
	}
	return v, ob
}

// identity is the key of a plain aggregate in the observed registry. ptr
// keeps the underlying map or array alive, so a key is never reused by an
// unrelated aggregate. Slices also key on their length since s and s[:n]
// share a data pointer.
type identity struct {
	ptr unsafe.Pointer
	len int
}

// identityOf returns the registry key of a plain map or slice. Slices with
// no backing array have no identity and are never registered.
func identityOf(v any) identity {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Cap() == 0 {
			return identity{}
		}
		return identity{ptr: rv.UnsafePointer(), len: rv.Len()}
	case reflect.Map:
		return identity{ptr: rv.UnsafePointer()}
	}
	return identity{}
}

// register records ob as the Observer of the plain aggregate raw. It runs
// before the aggregate's children are walked, so a value reachable from
// itself resolves to the wrapper under construction.
func (rt *Runtime) register(raw any, ob *Observer) {
	if id := identityOf(raw); id.ptr != nil {
		rt.observed[id] = ob
	}
}

// wrapperOf returns the wrapper of a plain aggregate observed before, or v
// unchanged.
func (rt *Runtime) wrapperOf(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		if ob := rt.observed[identityOf(v)]; ob != nil {
			return ob.value
		}
	}
	return v
}

func (rt *Runtime) newObserver(owner any) *Observer {
	return &Observer{
		rt:    rt,
		value: owner,
		dep:   newDep(rt),
	}
}

// dependArray registers the current target with every nested aggregate of a,
// since array elements are not reached through a reactive getter.
func dependArray(a *Array) {
	dependItems(a, map[*Array]struct{}{a: {}})
}

func dependItems(a *Array, seen map[*Array]struct{}) {
	for _, item := range a.items {
		switch x := item.(type) {
		case *Object:
			x.ob.dep.Depend()
		case *Array:
			x.ob.dep.Depend()
			if _, ok := seen[x]; !ok {
				seen[x] = struct{}{}
				dependItems(x, seen)
			}
		}
	}
}
