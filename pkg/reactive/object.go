package reactive

import (
	"encoding/json"
	"maps"
	"slices"

	rerrors "github.com/vango-dev/reactor/internal/errors"
)

// Object is the reactive proxy for a keyed record. Every key present when the
// record was wrapped, and every key added through Define, owns a tracker.
//
// Keys added with Set after wrapping are stored but are NOT reactive: reading
// them subscribes nothing and writing them notifies nobody. Define is the
// explicit path for adding a reactive key.
type Object struct {
	ob    *Observer
	keys  []string
	props map[string]*property
}

// property is the accessor state of one key. A nil dep marks a plain,
// non-reactive key.
type property struct {
	value   any
	dep     *Dep
	childOb *Observer

	shallow      bool
	frozen       bool
	customSetter func(any)
}

// PropertyOption configures DefineReactive.
type PropertyOption func(*propertyOptions)

type propertyOptions struct {
	shallow      bool
	customSetter func(any)
}

// Shallow stores assigned aggregates as they are instead of wrapping them.
func Shallow() PropertyOption {
	return func(o *propertyOptions) {
		o.shallow = true
	}
}

// WithCustomSetter installs a development-only hook invoked with the new value
// before every effective write, typically to warn about mutations of derived
// state.
func WithCustomSetter(fn func(any)) PropertyOption {
	return func(o *propertyOptions) {
		o.customSetter = fn
	}
}

// newObject wraps m, walking its keys in sorted order so tracker ids are
// deterministic.
func (rt *Runtime) newObject(m map[string]any) *Object {
	obj := &Object{
		keys:  make([]string, 0, len(m)),
		props: make(map[string]*property, len(m)),
	}
	obj.ob = rt.newObserver(obj)
	rt.register(m, obj.ob)

	for _, key := range slices.Sorted(maps.Keys(m)) {
		rt.defineReactive(obj, key, m[key], propertyOptions{})
	}
	return obj
}

// DefineReactive installs a reactive accessor for key on obj, replacing a
// plain value. It is a no-op for frozen keys. Installing an accessor is
// irreversible for that key.
func DefineReactive(obj *Object, key string, val any, opts ...PropertyOption) {
	var po propertyOptions
	for _, opt := range opts {
		opt(&po)
	}
	obj.ob.rt.defineReactive(obj, key, val, po)
}

func (rt *Runtime) defineReactive(obj *Object, key string, val any, po propertyOptions) {
	existing, exists := obj.props[key]
	if exists && existing.frozen {
		return
	}

	p := &property{
		dep:          newDep(rt),
		shallow:      po.shallow,
		customSetter: po.customSetter,
	}
	if po.shallow {
		p.value = val
	} else {
		p.value, p.childOb = rt.observe(val, false)
	}

	if !exists {
		obj.keys = append(obj.keys, key)
	}
	obj.props[key] = p
}

func (obj *Object) observer() *Observer {
	if obj == nil {
		return nil
	}
	return obj.ob
}

// Observer returns the object's Observer.
func (obj *Object) Observer() *Observer {
	return obj.ob
}

// Get returns the value of key and subscribes the current watcher to it.
// When the value is itself an aggregate the watcher also subscribes to that
// aggregate's collection tracker.
func (obj *Object) Get(key string) any {
	p, ok := obj.props[key]
	if !ok {
		return nil
	}

	if p.dep != nil && obj.ob.rt.Target() != nil {
		p.dep.Depend()
		if p.childOb != nil {
			p.childOb.dep.Depend()
			if arr, ok := p.value.(*Array); ok {
				dependArray(arr)
			}
		}
	}
	return p.value
}

// Peek returns the value of key without subscribing.
func (obj *Object) Peek(key string) any {
	if p, ok := obj.props[key]; ok {
		return p.value
	}
	return nil
}

// Set assigns key. Assigning the same value (NaN included) is a no-op;
// otherwise a new aggregate is wrapped and the key's subscribers notified.
// Writes to frozen keys are ignored. Unknown keys are added as plain,
// non-reactive keys; use Define to add a reactive key.
func (obj *Object) Set(key string, value any) {
	rt := obj.ob.rt

	p, ok := obj.props[key]
	if !ok {
		obj.keys = append(obj.keys, key)
		obj.props[key] = &property{value: value}
		return
	}

	if p.frozen {
		if !rt.config.Production {
			rt.warn(rerrors.New(rerrors.CodeFrozenWrite).WithSubject(key).Error(), rt.Target())
		}
		return
	}

	if p.dep == nil {
		p.value = value
		return
	}

	if !p.shallow {
		value = rt.wrapperOf(value)
	}
	if sameValue(p.value, value) {
		return
	}

	if p.customSetter != nil && !rt.config.Production {
		p.customSetter(value)
	}

	if p.shallow {
		p.value, p.childOb = value, nil
	} else {
		p.value, p.childOb = rt.observe(value, false)
	}
	p.dep.Notify()
}

// Define adds key as a reactive key and notifies the collection tracker.
// When key is already reactive Define behaves like Set. Defining keys on a
// scope's root data is refused with a warning; declare them up front instead.
func (obj *Object) Define(key string, value any) {
	rt := obj.ob.rt

	if p, ok := obj.props[key]; ok && (p.dep != nil || p.frozen) {
		obj.Set(key, value)
		return
	}

	if obj.ob.rootCount > 0 {
		rt.warn(rerrors.New(rerrors.CodeRootDataKey).WithSubject(key).Error(), rt.Target())
		return
	}

	rt.defineReactive(obj, key, value, propertyOptions{})
	obj.ob.dep.Notify()
}

// Delete removes key and notifies the collection tracker. Deleting frozen
// keys or keys of a scope's root data is refused with a warning.
func (obj *Object) Delete(key string) {
	rt := obj.ob.rt

	p, ok := obj.props[key]
	if !ok {
		return
	}
	if obj.ob.rootCount > 0 {
		rt.warn(rerrors.New(rerrors.CodeRootDataKey).WithSubject(key).Error(), rt.Target())
		return
	}
	if p.frozen {
		if !rt.config.Production {
			rt.warn(rerrors.New(rerrors.CodeFrozenWrite).WithSubject(key).Error(), rt.Target())
		}
		return
	}

	delete(obj.props, key)
	if i := slices.Index(obj.keys, key); i != -1 {
		obj.keys = slices.Delete(obj.keys, i, i+1)
	}
	obj.ob.dep.Notify()
}

// Freeze makes key non-configurable: later writes and deletes are ignored.
func (obj *Object) Freeze(key string) {
	if p, ok := obj.props[key]; ok {
		p.frozen = true
	}
}

// IsReactive reports whether key owns a tracker.
func (obj *Object) IsReactive(key string) bool {
	p, ok := obj.props[key]
	return ok && p.dep != nil
}

// Has reports whether key is present. It subscribes to the collection tracker.
func (obj *Object) Has(key string) bool {
	obj.ob.depend()
	_, ok := obj.props[key]
	return ok
}

// Keys returns the keys in insertion order. It subscribes to the collection
// tracker.
func (obj *Object) Keys() []string {
	obj.ob.depend()
	return slices.Clone(obj.keys)
}

// Len returns the number of keys. It subscribes to the collection tracker.
func (obj *Object) Len() int {
	obj.ob.depend()
	return len(obj.keys)
}

// Raw returns a deep plain copy without subscribing.
func (obj *Object) Raw() map[string]any {
	return obj.raw(make(map[*Observer]any))
}

func (obj *Object) raw(seen map[*Observer]any) map[string]any {
	out := make(map[string]any, len(obj.keys))
	seen[obj.ob] = out
	for _, key := range obj.keys {
		out[key] = rawValue(obj.props[key].value, seen)
	}
	return out
}

// MarshalJSON encodes the plain snapshot.
func (obj *Object) MarshalJSON() ([]byte, error) {
	return json.Marshal(obj.Raw())
}

// rawValue converts a wrapped value to its plain form. seen maps each
// converted aggregate to its copy so cyclic data yields cyclic copies.
func rawValue(v any, seen map[*Observer]any) any {
	switch x := v.(type) {
	case *Object:
		if x != nil {
			if out, ok := seen[x.ob]; ok {
				return out
			}
			return x.raw(seen)
		}
	case *Array:
		if x != nil {
			if out, ok := seen[x.ob]; ok {
				return out
			}
			return x.raw(seen)
		}
	}
	return v
}
