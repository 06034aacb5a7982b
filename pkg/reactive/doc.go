// Package reactive provides the fine-grained reactive-update engine for reactor.
//
// Plain aggregates (map[string]any and []any) are wrapped into explicit proxy
// types, *Object and *Array. Every reactive key owns a dependency tracker
// (Dep); every wrapped aggregate owns an Observer whose tracker fires when the
// collection changes shape. Reading a value while a Watcher is evaluating
// subscribes that watcher automatically, so no explicit subscribe calls are
// needed and dependency sets are rebuilt on every run.
//
// # Core Types
//
// A Runtime owns the evaluation context, the update queue and the microtask
// queue:
//
//	rt := reactive.New()
//	state := rt.Reactive(map[string]any{"count": 0}).(*reactive.Object)
//
// A Watcher re-runs its getter when anything it read changes and invokes its
// callback with the new and old values:
//
//	rt.NewWatcher(nil, func(any) any {
//	    return state.Get("count")
//	}, func(newValue, oldValue any) {
//	    fmt.Println(oldValue, "->", newValue)
//	})
//
//	state.Set("count", 1)
//	rt.Settle() // flushes the queue: prints "0 -> 1"
//
// A Computed is a lazy watcher whose value is recomputed only when read after
// one of its dependencies changed:
//
//	double := rt.Computed(func() any { return state.Get("count").(int) * 2 })
//
// # Scheduling
//
// Watcher updates are deduplicated and flushed once per turn, in ascending
// creation order, through the runtime's Deferrer (by default its
// MicrotaskQueue). An EventLoop drives a runtime from a single goroutine and
// performs a microtask checkpoint after every task. WithAsync(false) flushes
// synchronously instead.
//
// # Thread Safety
//
// A Runtime and everything created from it are single-threaded. Use
// EventLoop.Post to hand work to the goroutine that owns a runtime.
package reactive
