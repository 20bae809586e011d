package tracker

import (
	"sync/atomic"
)

// Sampler selects which delivered activities are forwarded to the sink.
//
// Uses an atomic counter with modulo-based selection, like TSAN's trace_pos:
//   - Rate 0 or 1: every activity is forwarded
//   - Rate N: one in every N activities is forwarded
//
// Deterministic within an execution: with ordered delivery the forwarded
// activities are exactly sequences 0, N, 2N, ...
//
// Thread Safety: All methods are safe for concurrent calls.
type Sampler struct {
	rate uint64
	pos  atomic.Uint64

	sampled atomic.Uint64
	skipped atomic.Uint64
}

// SamplerStats tracks sampling decisions.
type SamplerStats struct {
	Sampled uint64 // Activities forwarded.
	Skipped uint64 // Activities dropped by sampling.
}

// NewSampler creates a Sampler forwarding one of every rate activities.
func NewSampler(rate uint64) *Sampler {
	if rate == 0 {
		rate = 1
	}
	return &Sampler{rate: rate}
}

// Rate returns the normalized sampling rate.
func (s *Sampler) Rate() uint64 {
	return s.rate
}

// ShouldSample reports whether the next activity is forwarded.
func (s *Sampler) ShouldSample() bool {
	if s.rate == 1 {
		s.sampled.Add(1)
		return true
	}
	pos := s.pos.Add(1) - 1
	if pos%s.rate == 0 {
		s.sampled.Add(1)
		return true
	}
	s.skipped.Add(1)
	return false
}

// Stats returns a snapshot of the sampling counters.
func (s *Sampler) Stats() SamplerStats {
	return SamplerStats{
		Sampled: s.sampled.Load(),
		Skipped: s.skipped.Load(),
	}
}
