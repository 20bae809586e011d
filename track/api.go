package track

import (
	"github.com/kolkov/asynctrack/internal/track/api"
	"github.com/kolkov/asynctrack/internal/track/hsa"
	"github.com/kolkov/asynctrack/internal/track/tracker"
)

// Types re-exported from the engine.
type (
	// Runtime is the accelerator runtime capability set.
	Runtime = hsa.Runtime
	// Agent identifies a hardware unit.
	Agent = hsa.Agent
	// Signal is a countdown completion signal.
	Signal = hsa.Signal

	// Tracker is the registry of in-flight operations.
	Tracker = tracker.Tracker
	// Entry is one tracked operation.
	Entry = tracker.Entry
	// Handler receives the caller signal's final value and the Enable argument.
	Handler = tracker.Handler
	// Options configures the tracker.
	Options = tracker.Options
	// Stats is a snapshot of tracker counters.
	Stats = tracker.Stats
	// Record holds submit/begin/end/notify timestamps.
	Record = tracker.Record
	// Activity is a delivered entry as seen by a Sink.
	Activity = tracker.Activity
	// Sink receives delivered activities.
	Sink = tracker.Sink
)

// Errors.
var (
	// ErrNotConfigured is returned when the tracker is used before Configure.
	ErrNotConfigured = api.ErrNotConfigured
	// ErrClosed is returned by Alloc after the tracker is destroyed.
	ErrClosed = tracker.ErrClosed
	// ErrUnsupportedRuntime is returned for runtimes older than MinRuntimeVersion.
	ErrUnsupportedRuntime = hsa.ErrUnsupportedRuntime
)

// Configure sets the runtime and options of the process-wide tracker.
//
// Call Configure once at startup, before the first Alloc.
func Configure(rt Runtime, opts Options) {
	api.Configure(rt, opts)
}

// ConfigureFromEnv configures rt from the ASYNCTRACK_* environment variables.
func ConfigureFromEnv(rt Runtime) error {
	return api.ConfigureFromEnv(rt)
}

// Create returns the process-wide tracker, creating it on first call.
func Create() (*Tracker, error) {
	return api.Create()
}

// Instance returns the process-wide tracker. It panics if the tracker
// cannot be created.
func Instance() *Tracker {
	return api.Instance()
}

// Destroy drains and discards the process-wide tracker.
//
// Callers must stop calling Alloc first. Destroy blocks until every
// outstanding operation has completed and been delivered.
func Destroy() error {
	return api.Destroy()
}

// Alloc admits an operation on agent whose caller-visible completion
// signal is orig (zero if none).
//
// Parameters:
//   - agent: The hardware unit executing the operation
//   - orig: The caller's completion signal, or the zero Signal
//
// Returns the entry whose Signal must be used in place of orig.
func Alloc(agent Agent, orig Signal) (*Entry, error) {
	return api.Alloc(agent, orig)
}

// EnableDispatch activates e as a kernel dispatch with handler h.
func EnableDispatch(e *Entry, h Handler, arg any) {
	api.EnableDispatch(e, h, arg)
}

// EnableMemcopy activates e as an async memory copy with handler h.
func EnableMemcopy(e *Entry, h Handler, arg any) {
	api.EnableMemcopy(e, h, arg)
}

// CurrentStats returns the counters of the process-wide tracker.
func CurrentStats() Stats {
	return api.Stats()
}

// Fini destroys the process-wide tracker and prints a summary to stderr.
func Fini() {
	api.Fini()
}
