// Package hsa defines the accelerator runtime capabilities consumed by the
// completion tracker.
//
// The tracker never talks to a concrete runtime. It is handed a Runtime
// that can create and destroy countdown signals, register one-shot
// threshold handlers on them, answer profiling time queries for completed
// signals, and read or write the timing fields attached to a signal. The
// in-process implementation lives in package hsa/sim.
//
// Signals and agents are opaque handles. A zero Signal handle means "no
// signal" (the caller supplied none).
package hsa

// Signal is an opaque reference to a runtime completion signal.
type Signal struct {
	Handle uint64
}

// IsZero reports whether s is the absent signal.
func (s Signal) IsZero() bool {
	return s.Handle == 0
}

// Agent is an opaque reference to an executing hardware unit.
type Agent struct {
	Handle uint64
}

// Condition is the comparison applied by a threshold handler.
type Condition int

const (
	// CondEq fires when the signal value equals the threshold.
	CondEq Condition = iota
	// CondNe fires when the signal value differs from the threshold.
	CondNe
	// CondLt fires when the signal value is below the threshold.
	CondLt
	// CondGte fires when the signal value is at or above the threshold.
	CondGte
)

// String returns the string representation of a Condition.
func (c Condition) String() string {
	switch c {
	case CondEq:
		return "EQ"
	case CondNe:
		return "NE"
	case CondLt:
		return "LT"
	case CondGte:
		return "GTE"
	default:
		return "UNKNOWN"
	}
}

// Satisfied reports whether value satisfies the condition against threshold.
func (c Condition) Satisfied(value, threshold int64) bool {
	switch c {
	case CondEq:
		return value == threshold
	case CondNe:
		return value != threshold
	case CondLt:
		return value < threshold
	case CondGte:
		return value >= threshold
	default:
		return false
	}
}

// AsyncHandler is invoked by the runtime on its notification goroutine when
// a signal satisfies the registered condition. value is the signal value
// observed at notification time. Returning true re-arms the handler;
// returning false makes it one-shot.
type AsyncHandler func(value int64, arg any) bool

// ProfilingTime is a start/end pair in accelerator clock ticks.
type ProfilingTime struct {
	Start uint64
	End   uint64
}

// Runtime is the set of accelerator runtime capabilities used by the tracker.
//
// All methods must be safe for concurrent use.
type Runtime interface {
	// Version returns the runtime's semantic version ("v1.2.0").
	Version() string

	// SignalCreate creates a countdown signal with the given initial value.
	SignalCreate(initial int64) (Signal, error)

	// SignalDestroy releases a signal. Pending handlers are dropped.
	SignalDestroy(s Signal) error

	// SignalAsyncHandler registers h to run when s satisfies cond against
	// threshold. If the condition already holds, h fires promptly.
	SignalAsyncHandler(s Signal, cond Condition, threshold int64, h AsyncHandler, arg any) error

	// SignalLoadRelaxed reads the current signal value.
	SignalLoadRelaxed(s Signal) int64

	// SignalStoreRelease writes the signal value with release ordering and
	// wakes waiters and handlers whose condition now holds.
	SignalStoreRelease(s Signal, value int64)

	// SignalSubtractRelease atomically decrements s by n with release
	// ordering and returns the value it held before the decrement.
	SignalSubtractRelease(s Signal, n int64) int64

	// SignalWait blocks until s satisfies cond against threshold and
	// returns the observed value.
	SignalWait(s Signal, cond Condition, threshold int64) int64

	// DispatchTime returns kernel start/end ticks for a dispatch that
	// completed s on agent.
	DispatchTime(agent Agent, s Signal) (ProfilingTime, error)

	// AsyncCopyTime returns start/end ticks for an async copy that completed s.
	AsyncCopyTime(s Signal) (ProfilingTime, error)

	// SignalTiming reads the timing fields attached to s.
	SignalTiming(s Signal) ProfilingTime

	// SetSignalTiming writes the timing fields attached to s.
	SetSignalTiming(s Signal, t ProfilingTime)
}
