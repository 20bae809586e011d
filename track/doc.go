// Package track records accurate timing for asynchronous accelerator
// operations without changing what the submitting caller observes.
//
// Every tracked kernel dispatch or memory copy gets a proxy completion
// signal. The hardware completes the proxy; the tracker captures begin,
// end and notification timestamps, forwards completion to the caller's
// own signal (including its timing fields) and then invokes the caller's
// handler.
//
// # Quick Start
//
// An interception layer configures the process-wide tracker once and
// routes every submission through it:
//
//	track.Configure(rt, track.Options{Ordering: true})
//	defer track.Fini()
//
//	e, err := track.Alloc(agent, completion)
//	if err != nil {
//		return err
//	}
//	// Submit the packet with e.Signal() as its completion signal.
//	track.EnableDispatch(e, onComplete, arg)
//
// Alloc must be followed by EnableDispatch or EnableMemcopy. The
// operation may complete in between; its handler then waits until the
// Enable call publishes it.
//
// # Delivery
//
// With Options.Ordering unset, handlers run on the runtime's notification
// goroutine as soon as their operation completes. With Ordering set,
// handlers run in admission order: a young operation that finishes early
// is held until every older one has been delivered.
//
// # Configuration
//
// ConfigureFromEnv reads:
//
//	ASYNCTRACK_ORDERING     ordered delivery (bool)
//	ASYNCTRACK_TRACE        per-entry glog trace at -v=2 (bool)
//	ASYNCTRACK_SAMPLE_RATE  persist one of every N activities
//	ASYNCTRACK_STORE        pebble directory for delivered activities
//
// # Shutdown
//
// Destroy waits for every outstanding operation to complete and be
// delivered. Fini does the same and prints a summary to stderr:
//
//	==================
//	Async Tracker Report
//	==================
//	Admitted:    1,024 operations
//	Delivered:   1,024 handlers
//	✓ All tracked operations completed.
//	==================
package track
