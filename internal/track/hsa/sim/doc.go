// Package sim implements an in-process accelerator runtime for the
// completion tracker.
//
// The simulated runtime provides everything hsa.Runtime promises:
//   - Countdown signals with atomic values and attached start/end timing fields
//   - Threshold handlers invoked on runtime-owned notification goroutines,
//     never on the goroutine that changed the signal
//   - Dispatch and async copy profiling time queries
//   - Blocking waits
//
// Work is "executed" with Begin/End (or Run, which ends the operation after
// a delay): Begin stamps the start tick, End stamps the end tick and
// decrements the signal by one, exactly as a hardware packet processor
// would on completion.
//
// Failure injection (FailSignalCreate, FailAsyncHandler, FailTimingQueries)
// lets tests exercise the tracker's error paths.
//
// Example:
//
//	rt := sim.New(sim.Config{})
//	sig, _ := rt.SignalCreate(1)
//	rt.SignalAsyncHandler(sig, hsa.CondLt, 1, func(v int64, _ any) bool {
//		fmt.Println("done", v)
//		return false
//	}, nil)
//	rt.Run(sig, time.Millisecond)
package sim
