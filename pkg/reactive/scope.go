package reactive

import (
	"slices"
	"strconv"

	rerrors "github.com/vango-dev/reactor/internal/errors"
)

// HookType identifies a lifecycle hook of a Scope.
type HookType uint8

const (
	HookBeforeMount HookType = iota + 1
	HookMounted
	HookBeforeUpdate
	HookUpdated
	HookActivated
	HookDeactivated
	HookBeforeDestroy
	HookDestroyed
)

// String returns a human-readable name for the hook type.
func (h HookType) String() string {
	switch h {
	case HookBeforeMount:
		return "beforeMount"
	case HookMounted:
		return "mounted"
	case HookBeforeUpdate:
		return "beforeUpdate"
	case HookUpdated:
		return "updated"
	case HookActivated:
		return "activated"
	case HookDeactivated:
		return "deactivated"
	case HookBeforeDestroy:
		return "beforeDestroy"
	case HookDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// RenderFunc produces a tree from a scope's root data.
type RenderFunc func(data *Object) any

// PatchFunc projects a rendered tree onto the host and returns the resulting
// handle. old is nil on the first render and next is nil on destroy.
type PatchFunc func(old, next any) any

// Scope is the host-side owner of a root data object, the watchers created
// for it and an optional render watcher. Scopes form a tree; destroying a
// scope tears down its watchers and destroys its children, last created first.
type Scope struct {
	id     uint64
	name   string
	rt     *Runtime
	parent *Scope

	children []*Scope
	data     *Object
	watchers []*Watcher
	hooks    map[HookType][]func()

	renderWatcher *Watcher
	patch         PatchFunc
	tree          any
	element       any

	mounted        bool
	destroying     bool
	destroyed      bool
	inactive       bool
	directInactive bool
}

// NewScope creates a scope. A non-nil parent owns it.
func (rt *Runtime) NewScope(name string, parent *Scope) *Scope {
	s := &Scope{
		id:     nextScopeID(),
		name:   name,
		rt:     rt,
		parent: parent,
		hooks:  make(map[HookType][]func()),
	}
	if parent != nil {
		parent.children = append(parent.children, s)
	}
	return s
}

// ID returns the scope's unique identifier.
func (s *Scope) ID() uint64 {
	return s.id
}

// Name returns the scope's name.
func (s *Scope) Name() string {
	return s.name
}

// Parent returns the owning scope, or nil.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Children returns the child scopes in creation order.
func (s *Scope) Children() []*Scope {
	return slices.Clone(s.children)
}

// Runtime returns the runtime the scope belongs to.
func (s *Scope) Runtime() *Runtime {
	return s.rt
}

// Mounted reports whether Mount completed.
func (s *Scope) Mounted() bool {
	return s.mounted
}

// Destroyed reports whether Destroy completed.
func (s *Scope) Destroyed() bool {
	return s.destroyed
}

// Active reports whether the scope is not deactivated.
func (s *Scope) Active() bool {
	return !s.inactive
}

// Element returns the handle returned by the last patch.
func (s *Scope) Element() any {
	return s.element
}

// Tree returns the last rendered tree.
func (s *Scope) Tree() any {
	return s.tree
}

// Data installs data as the scope's root data and returns the reactive
// object. data must be a map[string]any or an *Object; anything else is
// refused with a warning. Root data refuses Define and Delete.
func (s *Scope) Data(data any) *Object {
	wrapped, ob := s.rt.observe(data, true)
	obj, ok := wrapped.(*Object)
	if !ok {
		if ob != nil {
			ob.rootCount--
		}
		s.rt.warn(rerrors.New(rerrors.CodeInvalidData).WithSubject(strconv.Quote(s.name)).Error(), nil)
		return nil
	}

	if s.data != nil {
		s.data.ob.rootCount--
	}
	s.data = obj
	return obj
}

// Root returns the root data, or nil.
func (s *Scope) Root() *Object {
	return s.data
}

// Watch creates a user watcher over getter, evaluated against the root data.
// It is torn down with the scope.
func (s *Scope) Watch(getter Getter, cb Callback, opts ...WatcherOption) *Watcher {
	opts = append([]WatcherOption{User(), inScope(s)}, opts...)

	// User watchers report getter failures instead of returning them.
	w, _ := s.rt.NewWatcher(s.data, getter, cb, opts...)
	return w
}

// WatchPath creates a user watcher over a dot-delimited path into the root
// data.
func (s *Scope) WatchPath(path string, cb Callback, opts ...WatcherOption) *Watcher {
	opts = append([]WatcherOption{User(), inScope(s)}, opts...)
	w, _ := s.rt.NewPathWatcher(s.data, path, cb, opts...)
	return w
}

// Computed creates a computed value torn down with the scope.
func (s *Scope) Computed(fn func() any, opts ...WatcherOption) *Computed {
	return s.rt.Computed(fn, append([]WatcherOption{inScope(s)}, opts...)...)
}

// On registers fn for hook. Hooks run untracked; a panicking hook is
// reported and the remaining hooks still run.
func (s *Scope) On(hook HookType, fn func()) {
	s.hooks[hook] = append(s.hooks[hook], fn)
}

func (s *Scope) callHook(hook HookType) {
	for _, fn := range s.hooks[hook] {
		s.rt.runHook(fn, rerrors.CodeHook, hook.String()+" hook")
	}
}

// Mount creates the render watcher. render is evaluated against the root
// data; each time its result changes, patch is called once with the previous
// and the new tree. The first render happens synchronously. A render failure
// is returned and leaves the scope unmounted.
func (s *Scope) Mount(render RenderFunc, patch PatchFunc) error {
	switch {
	case s.destroyed:
		return ErrScopeDestroyed
	case s.renderWatcher != nil:
		return ErrScopeMounted
	}

	s.patch = patch
	s.callHook(HookBeforeMount)

	getter := func(any) any { return render(s.data) }
	before := func() {
		if s.mounted && !s.destroyed {
			s.callHook(HookBeforeUpdate)
		}
	}

	w, err := s.rt.NewWatcher(s.data, getter, s.patchTree,
		renderMode(),
		inScope(s),
		Immediate(),
		Before(before),
		Expression(s.name+" render"),
	)
	if err != nil {
		w.Teardown()
		return err
	}

	s.mounted = true
	s.callHook(HookMounted)
	return nil
}

func (s *Scope) patchTree(next, old any) {
	s.tree = next
	if s.patch == nil {
		s.element = next
		return
	}
	s.element = s.patch(old, next)
}

// Activate re-activates a deactivated scope and its subtree. Activated hooks
// run at the end of the next flush, children first.
func (s *Scope) Activate() {
	if s.destroyed || !s.inactive {
		return
	}
	s.rt.scheduler.QueueActivated(s)
}

func (s *Scope) activate(direct bool) {
	if direct {
		s.directInactive = false
		if s.inInactiveTree() {
			return
		}
	} else if s.directInactive {
		return
	}
	if !s.inactive || s.destroyed {
		return
	}

	s.inactive = false
	for _, child := range s.children {
		child.activate(false)
	}
	s.callHook(HookActivated)
}

// Deactivate deactivates the scope and its subtree synchronously, calling
// Deactivated hooks children first.
func (s *Scope) Deactivate() {
	s.deactivate(true)
}

func (s *Scope) deactivate(direct bool) {
	if direct {
		s.directInactive = true
		if s.inInactiveTree() {
			return
		}
	}
	if s.inactive || s.destroyed {
		return
	}

	s.inactive = true
	for _, child := range s.children {
		child.deactivate(false)
	}
	s.callHook(HookDeactivated)
}

func (s *Scope) inInactiveTree() bool {
	for p := s.parent; p != nil; p = p.parent {
		if p.inactive {
			return true
		}
	}
	return false
}

// Destroy tears down every watcher of the scope, destroys its children in
// reverse order and patches the rendered tree away. It is idempotent.
func (s *Scope) Destroy() {
	if s.destroying {
		return
	}

	s.callHook(HookBeforeDestroy)
	s.destroying = true

	if p := s.parent; p != nil && !p.destroying {
		if i := slices.Index(p.children, s); i != -1 {
			p.children = slices.Delete(p.children, i, i+1)
		}
	}

	for _, w := range s.watchers {
		w.Teardown()
	}
	s.watchers = nil

	if s.data != nil {
		s.data.ob.rootCount--
	}
	s.destroyed = true

	children := s.children
	s.children = nil
	for i := len(children) - 1; i >= 0; i-- {
		children[i].Destroy()
	}

	if s.mounted && s.patch != nil {
		s.rt.runHook(func() { s.element = s.patch(s.tree, nil) }, rerrors.CodeHook, "patch")
	}
	s.tree = nil

	s.callHook(HookDestroyed)
	s.hooks = make(map[HookType][]func())
}

func (s *Scope) addWatcher(w *Watcher) {
	s.watchers = append(s.watchers, w)
	if w.render {
		s.renderWatcher = w
	}
}

func (s *Scope) removeWatcher(w *Watcher) {
	if i := slices.Index(s.watchers, w); i != -1 {
		s.watchers = slices.Delete(s.watchers, i, i+1)
	}
	if s.renderWatcher == w {
		s.renderWatcher = nil
	}
}
