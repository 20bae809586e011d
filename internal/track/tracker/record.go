package tracker

import (
	"time"

	"github.com/kolkov/asynctrack/internal/track/hsa"
)

// Kind selects which profiling time query describes an entry.
type Kind uint8

const (
	// KindDispatch is a kernel dispatch (per-agent dispatch time query).
	KindDispatch Kind = iota
	// KindMemcopy is an async memory copy (async copy time query).
	KindMemcopy
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindDispatch:
		return "dispatch"
	case KindMemcopy:
		return "memcopy"
	default:
		return "unknown"
	}
}

// Record holds the four timestamps of one operation, in nanoseconds on the
// tracker clock's timeline.
//
// Invariant: SubmitNs <= BeginNs <= EndNs <= NotifyNs once the owning entry
// is completed. Before completion only SubmitNs is valid.
type Record struct {
	SubmitNs uint64 // Alloc time
	BeginNs  uint64 // hardware start
	EndNs    uint64 // hardware end
	NotifyNs uint64 // completion callback time
}

// Ordered reports whether the timestamps are non-decreasing.
func (r Record) Ordered() bool {
	return r.SubmitNs <= r.BeginNs && r.BeginNs <= r.EndNs && r.EndNs <= r.NotifyNs
}

// Duration returns the hardware execution time.
func (r Record) Duration() time.Duration {
	return span(r.BeginNs, r.EndNs)
}

// QueueDelay returns the time between submission and hardware start.
func (r Record) QueueDelay() time.Duration {
	return span(r.SubmitNs, r.BeginNs)
}

// NotifyLatency returns the time between hardware end and the callback.
func (r Record) NotifyLatency() time.Duration {
	return span(r.EndNs, r.NotifyNs)
}

func span(from, to uint64) time.Duration {
	if to < from {
		return 0
	}
	return time.Duration(to - from)
}

// Activity is a completed entry as seen by sinks and observers.
type Activity struct {
	Sequence uint64
	Kind     Kind
	Agent    hsa.Agent
	Record   Record
}

// Sink receives activities at delivery time.
//
// With ordered delivery, Put is called in admission order.
// Implementations must be safe for concurrent use when ordering is off.
type Sink interface {
	Put(a Activity) error
}

// Observer is notified of entry lifecycle events (see package metrics).
type Observer interface {
	Admitted()
	Completed(a Activity)
	Deleted()
}
