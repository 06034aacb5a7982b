// Package errors provides coded diagnostics for reactor.
//
// Every warning and reported failure of the reactive runtime, and every
// configuration error of the reactor tooling, carries a short code that maps
// to a registered template:
//
//   - R0xx: runtime diagnostics (update loops, invalid paths, failures in
//     getters, callbacks, hooks and nextTick callbacks)
//   - C0xx: configuration errors
//   - S0xx: timeline storage errors
//
// # Usage
//
//	err := errors.New(errors.CodeUpdateLoop).
//	    WithSubject(`watcher "count"`).
//	    WithSuggestion("Stop the callback from writing to what the watcher reads")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR R001: Runaway update loop
//	//
//	//   watcher "count"
//	//
//	//   A watcher re-entered the update queue too many times within a single
//	//   flush. The rest of the flush was abandoned.
//	//
//	//   Hint: Stop the callback from writing to what the watcher reads
package errors
