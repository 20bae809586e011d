package tracker

import (
	"container/list"
	"runtime"
	"sync/atomic"

	"github.com/kolkov/asynctrack/internal/track/hsa"
)

// Handler is the caller's completion callback. value is the caller's
// signal value after the tracker's decrement, or the proxy signal value
// (zero) when the caller supplied no signal.
type Handler func(value int64, arg any)

// Entry is one tracked asynchronous operation.
//
// Lifecycle:
//  1. Alloc: proxy signal created, completion callback registered, entry
//     appended to the live list with the next sequence number
//  2. EnableDispatch / EnableMemcopy: kind and handler argument stored,
//     handler published (the callback may proceed from here on)
//  3. Completion callback: timing captured, caller signal forwarded,
//     completed set
//  4. Delivery: sink, handler, then Delete (proxy destroyed, entry unlinked)
//
// Thread Safety: fields written before the handler is published are
// read-only afterwards. Completion fields are written once by the callback
// before completed is set and read only after observing it.
type Entry struct {
	seq     uint64
	tracker *Tracker
	elem    *list.Element

	agent hsa.Agent
	orig  hsa.Signal
	proxy hsa.Signal

	// Set by Enable* before handler is published.
	kind Kind
	arg  any

	// handler is the publish point of the admit/activate handshake.
	handler atomic.Pointer[Handler]

	// Completion fields, valid once completed is true.
	record    Record
	value     int64
	completed atomic.Bool

	// done is closed by Delete.
	done chan struct{}
	err  error
}

// Sequence returns the admission index of the entry.
func (e *Entry) Sequence() uint64 {
	return e.seq
}

// Tracker returns the tracker that admitted the entry.
func (e *Entry) Tracker() *Tracker {
	return e.tracker
}

// Agent returns the agent executing the operation.
func (e *Entry) Agent() hsa.Agent {
	return e.agent
}

// Signal returns the proxy signal the hardware operation must complete.
func (e *Entry) Signal() hsa.Signal {
	return e.proxy
}

// Original returns the caller's signal (zero if none was supplied).
func (e *Entry) Original() hsa.Signal {
	return e.orig
}

// Kind returns the entry kind. Valid after Enable*.
func (e *Entry) Kind() Kind {
	return e.kind
}

// Completed reports whether timing has been captured.
func (e *Entry) Completed() bool {
	return e.completed.Load()
}

// Record returns the timing record and whether it is complete.
//
// Before completion only SubmitNs is meaningful.
func (e *Entry) Record() (Record, bool) {
	if !e.completed.Load() {
		return Record{SubmitNs: e.record.SubmitNs}, false
	}
	return e.record, true
}

// Done returns a channel closed once the entry has been deleted.
func (e *Entry) Done() <-chan struct{} {
	return e.done
}

// enabled reports whether the handler has been published.
func (e *Entry) enabled() bool {
	return e.handler.Load() != nil
}

// waitEnabled spins, yielding the processor, until the handler is published.
//
// Bounded in practice: Enable* runs right after Alloc on the producer side.
func (e *Entry) waitEnabled() {
	for !e.enabled() {
		runtime.Gosched()
	}
}

// activity returns the sink/observer view of a completed entry.
func (e *Entry) activity() Activity {
	return Activity{
		Sequence: e.seq,
		Kind:     e.kind,
		Agent:    e.agent,
		Record:   e.record,
	}
}
