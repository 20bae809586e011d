package sim

import (
	"sync"
	"sync/atomic"

	"github.com/kolkov/asynctrack/internal/track/hsa"
)

// signal is the runtime-side state behind an hsa.Signal handle.
//
// value is written only under mu so that threshold checks and handler
// dispatch observe a consistent sequence of values. Loads may bypass mu.
type signal struct {
	handle uint64

	value atomic.Int64
	start atomic.Uint64
	end   atomic.Uint64

	mu       sync.Mutex
	cond     *sync.Cond
	handlers []*handlerReg
}

// handlerReg is one registered threshold handler.
type handlerReg struct {
	cond      hsa.Condition
	threshold int64
	fn        hsa.AsyncHandler
	arg       any
}

func newSignal(handle uint64, initial int64) *signal {
	s := &signal{handle: handle}
	s.cond = sync.NewCond(&s.mu)
	s.value.Store(initial)
	return s
}

// signalTable maps signal handles to their runtime state.
//
// Using sync.Map for lock-free lookups:
//   - Every signal operation is a lookup
//   - Writes happen only on create and destroy
//
// Thread Safety: All methods are safe for concurrent calls.
type signalTable struct {
	signals sync.Map // uint64 (handle) → *signal
	live    atomic.Int64
}

// insert adds a signal to the table.
func (t *signalTable) insert(s *signal) {
	t.signals.Store(s.handle, s)
	t.live.Add(1)
}

// lookup returns the signal for handle, or nil if unknown or destroyed.
func (t *signalTable) lookup(handle uint64) *signal {
	val, ok := t.signals.Load(handle)
	if !ok {
		return nil
	}
	return val.(*signal)
}

// remove deletes handle from the table and returns its state.
func (t *signalTable) remove(handle uint64) *signal {
	val, ok := t.signals.LoadAndDelete(handle)
	if !ok {
		return nil
	}
	t.live.Add(-1)
	return val.(*signal)
}

// len returns the number of live signals.
func (t *signalTable) len() int {
	return int(t.live.Load())
}
