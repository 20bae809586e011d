package clock

import (
	"math"
	"math/bits"
)

// NsPerSecond is the number of nanoseconds in one second.
const NsPerSecond = 1_000_000_000

// DefaultFrequency is the accelerator clock frequency assumed when none is
// given: one tick per nanosecond.
const DefaultFrequency = NsPerSecond

// Source is the timestamp source consumed by the tracker.
//
// Implementations must be safe for concurrent use: NowNs is called from
// producers (Alloc) and from runtime notification goroutines (completion).
type Source interface {
	// NowNs returns the current monotonic time in nanoseconds.
	NowNs() uint64

	// SysclockToNs converts accelerator clock ticks to nanoseconds.
	SysclockToNs(ticks uint64) uint64
}

// Monotonic is a Source backed by runtime.nanotime with an accelerator
// clock running at a fixed frequency on the same origin.
//
// Thread Safety: Immutable after creation, safe for concurrent use.
type Monotonic struct {
	freq uint64
}

// New creates a Monotonic source for an accelerator clock running at freqHz.
//
// A zero frequency selects DefaultFrequency.
func New(freqHz uint64) *Monotonic {
	if freqHz == 0 {
		freqHz = DefaultFrequency
	}
	return &Monotonic{freq: freqHz}
}

// Frequency returns the accelerator clock frequency in Hz.
func (m *Monotonic) Frequency() uint64 {
	return m.freq
}

// NowNs returns the current monotonic time in nanoseconds.
//
//go:nosplit
func (m *Monotonic) NowNs() uint64 {
	return nanotime()
}

// SysclockToNs converts accelerator ticks to nanoseconds, rounding down.
//
// Results that do not fit in 64 bits saturate at math.MaxUint64.
func (m *Monotonic) SysclockToNs(ticks uint64) uint64 {
	if m.freq == NsPerSecond {
		return ticks
	}
	return scale(ticks, NsPerSecond, m.freq, false)
}

// NsToSysclock converts nanoseconds to accelerator ticks, rounding up.
//
// This is the inverse used by runtimes that stamp hardware time from the
// host clock (see package hsa/sim).
func (m *Monotonic) NsToSysclock(ns uint64) uint64 {
	if m.freq == NsPerSecond {
		return ns
	}
	return scale(ns, m.freq, NsPerSecond, true)
}

// NowSysclock returns the current time in accelerator ticks.
func (m *Monotonic) NowSysclock() uint64 {
	return m.NsToSysclock(m.NowNs())
}

// scale computes v*mul/div with a 128-bit intermediate product.
func scale(v, mul, div uint64, roundUp bool) uint64 {
	hi, lo := bits.Mul64(v, mul)
	if hi >= div {
		return math.MaxUint64
	}
	q, r := bits.Div64(hi, lo, div)
	if roundUp && r != 0 {
		if q == math.MaxUint64 {
			return q
		}
		q++
	}
	return q
}
