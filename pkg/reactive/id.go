package reactive

import "sync/atomic"

// Watcher and scope ids are process-wide so they stay unique across
// runtimes. Watcher ids are the flush order key. Dep ids come from a
// per-runtime counter (Runtime.nextDepID); they only break ties and
// deduplicate deep traversal within one runtime.
var (
	watcherIDCounter uint64
	scopeIDCounter   uint64
)

func nextWatcherID() uint64 {
	return atomic.AddUint64(&watcherIDCounter, 1)
}

func nextScopeID() uint64 {
	return atomic.AddUint64(&scopeIDCounter, 1)
}
