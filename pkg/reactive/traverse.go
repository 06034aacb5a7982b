package reactive

// traverse reads every nested aggregate reachable from v so that the current
// watcher subscribes to all of them. Aggregates are visited once, keyed by
// the id of their collection tracker.
func traverse(v any) {
	seen := make(map[uint64]struct{})
	traverseValue(v, seen)
}

func traverseValue(v any, seen map[uint64]struct{}) {
	switch x := v.(type) {
	case *Object:
		if x == nil || !markSeen(x.ob, seen) {
			return
		}
		for _, key := range x.Keys() {
			traverseValue(x.Get(key), seen)
		}
	case *Array:
		if x == nil || !markSeen(x.ob, seen) {
			return
		}
		for _, item := range x.Values() {
			traverseValue(item, seen)
		}
	}
}

func markSeen(ob *Observer, seen map[uint64]struct{}) bool {
	if _, ok := seen[ob.dep.id]; ok {
		return false
	}
	seen[ob.dep.id] = struct{}{}
	return true
}
