// Package api provides the process-wide tracker used by interception layers.
//
// A runtime interception layer does not own a Tracker; it calls Alloc and
// Enable* on the one instance configured for the process. The instance is
// created lazily on first use under a global lock and drained by Destroy.
//
// Lifecycle:
//
//	api.Configure(rt, tracker.Options{Ordering: true})
//	defer api.Fini()
//
//	e, err := api.Alloc(agent, completion)
//	...
//	api.EnableDispatch(e, handler, arg)
//
// Configure may be replaced by ConfigureFromEnv, which reads the
// ASYNCTRACK_* variables and attaches a persistent store when one is named.
package api

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"go.uber.org/multierr"

	"github.com/kolkov/asynctrack/internal/track/config"
	"github.com/kolkov/asynctrack/internal/track/hsa"
	"github.com/kolkov/asynctrack/internal/track/store"
	"github.com/kolkov/asynctrack/internal/track/tracker"
)

// ErrNotConfigured is returned when the tracker is used before Configure.
var ErrNotConfigured = errors.New("asynctrack: runtime not configured")

// Global tracker state.
//
// mu serializes configuration, creation and teardown. inst is the fast
// path for Instance once the tracker exists.
var (
	mu         sync.Mutex
	configured hsa.Runtime
	options    tracker.Options
	closers    []io.Closer

	inst atomic.Pointer[tracker.Tracker]

	// last holds the statistics of the most recently destroyed tracker
	// so Fini can report after Destroy.
	last tracker.Stats
)

// Configure sets the runtime and options used by the next Create.
//
// Configure does not affect an already created tracker; call Destroy
// first to apply new settings.
//
// Thread Safety: Safe for concurrent calls.
func Configure(rt hsa.Runtime, opts tracker.Options) {
	mu.Lock()
	defer mu.Unlock()
	configured = rt
	options = opts
}

// ConfigureFromEnv configures rt with settings from the ASYNCTRACK_*
// environment variables. When ASYNCTRACK_STORE names a directory, a
// pebble store is opened there and used as the activity sink; Destroy
// closes it.
func ConfigureFromEnv(rt hsa.Runtime) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("asynctrack: environment: %w", err)
	}
	if err := cfg.ApplyTrace(); err != nil {
		return fmt.Errorf("asynctrack: enable trace: %w", err)
	}

	opts := cfg.Options()
	var extra []io.Closer
	if cfg.StoreDir != "" {
		st, err := store.Open(cfg.StoreDir, store.Options{})
		if err != nil {
			return err
		}
		opts.Sink = st
		extra = append(extra, st)
	}

	mu.Lock()
	defer mu.Unlock()
	configured = rt
	options = opts
	closers = append(closers, extra...)
	return nil
}

// Create returns the process-wide tracker, creating it on first call.
//
// Returns ErrNotConfigured if Configure has not been called, or the
// tracker construction error (for example hsa.ErrUnsupportedRuntime).
func Create() (*tracker.Tracker, error) {
	if t := inst.Load(); t != nil {
		return t, nil
	}

	mu.Lock()
	defer mu.Unlock()
	if t := inst.Load(); t != nil {
		return t, nil
	}
	if configured == nil {
		return nil, ErrNotConfigured
	}
	t, err := tracker.New(configured, options)
	if err != nil {
		return nil, err
	}
	inst.Store(t)
	return t, nil
}

// Instance returns the process-wide tracker, creating it if needed.
//
// Instance panics if the tracker cannot be created. Interception layers
// that cannot tolerate a panic should call Create during startup.
func Instance() *tracker.Tracker {
	t, err := Create()
	if err != nil {
		panic(err)
	}
	return t
}

// Destroy drains and discards the process-wide tracker, then closes any
// store opened by ConfigureFromEnv. Destroy with no tracker is a no-op.
//
// Callers must stop calling Alloc before Destroy.
func Destroy() error {
	mu.Lock()
	defer mu.Unlock()

	var err error
	if t := inst.Load(); t != nil {
		err = t.Close()
		last = t.Stats()
		inst.Store(nil)
	}
	for _, c := range closers {
		err = multierr.Append(err, c.Close())
	}
	closers = nil
	if err != nil {
		glog.Errorf("asynctrack: destroy: %v", err)
	}
	return err
}

// Current returns the process-wide tracker without creating it.
func Current() *tracker.Tracker {
	return inst.Load()
}

// Alloc admits an operation on the process-wide tracker.
func Alloc(agent hsa.Agent, orig hsa.Signal) (*tracker.Entry, error) {
	t, err := Create()
	if err != nil {
		return nil, err
	}
	return t.Alloc(agent, orig)
}

// EnableDispatch activates e as a kernel dispatch on the tracker that
// admitted it.
func EnableDispatch(e *tracker.Entry, h tracker.Handler, arg any) {
	e.Tracker().EnableDispatch(e, h, arg)
}

// EnableMemcopy activates e as an async memory copy on the tracker that
// admitted it.
func EnableMemcopy(e *tracker.Entry, h tracker.Handler, arg any) {
	e.Tracker().EnableMemcopy(e, h, arg)
}

// Stats returns the live tracker's counters, or those of the most
// recently destroyed tracker.
func Stats() tracker.Stats {
	if t := inst.Load(); t != nil {
		return t.Stats()
	}
	mu.Lock()
	defer mu.Unlock()
	return last
}

// Fini destroys the process-wide tracker and prints a summary report.
//
// This should be called at program exit, typically with defer right
// after Configure. It is safe to call more than once.
//
// Example:
//
//	func main() {
//	    api.Configure(rt, tracker.Options{})
//	    defer api.Fini()
//	    // ...
//	}
//	// On exit, Fini() prints:
//	// ==================
//	// Async Tracker Report
//	// ==================
//	// Admitted:    12 operations
//	// Delivered:   12 handlers
//	// ✓ All tracked operations completed.
//	// ==================
func Fini() {
	finiTo(os.Stderr)
}

func finiTo(w io.Writer) {
	if err := Destroy(); err != nil {
		fmt.Fprintf(w, "asynctrack: %v\n", err)
	}
	tracker.WriteSummary(w, Stats())
}

// reset clears all global state. Tests only.
func reset() {
	_ = Destroy()
	mu.Lock()
	defer mu.Unlock()
	configured = nil
	options = tracker.Options{}
	last = tracker.Stats{}
}
