package tracker

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/kolkov/asynctrack/internal/track/hsa"
)

// handle is the completion callback registered on every proxy signal.
//
// The runtime invokes it on a notification goroutine once the proxy value
// drops below proxyInitial. It always returns false (one-shot).
func (t *Tracker) handle(value int64, arg any) bool {
	e := arg.(*Entry)

	// The operation may complete before Enable* has published the handler.
	e.waitEnabled()

	t.complete(value, e)

	if t.ordering {
		t.deliverOrdered()
	} else {
		t.deliver(e)
	}
	return false
}

// complete captures the entry's timing and forwards completion to the
// caller's signal.
func (t *Tracker) complete(value int64, e *Entry) {
	if glog.V(2) {
		glog.Infof("tracker handler: entry %d (%s), outstanding %d", e.seq, e.kind, t.outstanding.Load())
	}

	var (
		pt  hsa.ProfilingTime
		err error
	)
	if e.kind == KindMemcopy {
		pt, err = t.rt.AsyncCopyTime(e.proxy)
	} else {
		pt, err = t.rt.DispatchTime(e.agent, e.proxy)
	}

	rec := &e.record
	if err != nil {
		t.abort(fmt.Errorf("entry %d: %w", e.seq, err))
		// Only reached when Abort returns: keep the record ordered.
		now := t.clock.NowNs()
		rec.BeginNs, rec.EndNs, rec.NotifyNs = now, now, now
	} else {
		rec.BeginNs = t.clock.SysclockToNs(pt.Start)
		rec.EndNs = t.clock.SysclockToNs(pt.End)
		rec.NotifyNs = t.clock.NowNs()
		// Ticks convert rounding up, so end may land past the host clock.
		if rec.NotifyNs < rec.EndNs {
			rec.NotifyNs = rec.EndNs
		}
	}

	e.value = value
	if !e.orig.IsZero() {
		e.value = t.forward(value, e)
	}

	// Single publish point for the record and the delivered value.
	e.completed.Store(true)
	t.completed.Add(1)
	if t.observer != nil {
		t.observer.Completed(e.activity())
	}
}

// forward copies the proxy timing fields to the caller's signal and
// atomically decrements it by one, returning the caller's new value.
//
// A proxy that did not land exactly one below its initial value, or a
// caller signal that was already complete, means a double completion or a
// lost decrement somewhere; both go to Abort.
func (t *Tracker) forward(value int64, e *Entry) int64 {
	t.rt.SetSignalTiming(e.orig, t.rt.SignalTiming(e.proxy))

	if value != proxyInitial-1 {
		t.violation(&ConsistencyError{Sequence: e.seq, Signal: "proxy", Expected: proxyInitial - 1, Observed: value})
	}

	// One atomic read-modify-write: entries sharing a caller signal must
	// each observe a distinct previous value.
	old := t.rt.SignalSubtractRelease(e.orig, 1)
	if old < 1 {
		t.violation(&ConsistencyError{Sequence: e.seq, Signal: "original", Expected: 1, Observed: old})
	}
	return old - 1
}

func (t *Tracker) violation(err *ConsistencyError) {
	glog.Errorf("tracker: %v", err)
	t.abort(err)
}

// deliver forwards e to the sink, runs its handler and deletes it.
func (t *Tracker) deliver(e *Entry) {
	if t.sink != nil && t.sampler.ShouldSample() {
		if err := t.sink.Put(e.activity()); err != nil {
			t.sinkErrors.Add(1)
			glog.Warningf("tracker: sink put entry %d: %v", e.seq, err)
		}
	}

	if h := *e.handler.Load(); h != nil {
		h(e.value, e.arg)
	}
	t.delivered.Add(1)

	if err := t.Delete(e); err != nil {
		glog.Errorf("tracker: %v", err)
	}
}

// deliverOrdered delivers every contiguous completed entry from the head
// of the live list, stopping at the first incomplete entry or after the
// tail observed on entry.
func (t *Tracker) deliverOrdered() {
	t.mu.Lock()
	back := t.live.Back()
	t.mu.Unlock()
	if back == nil {
		return
	}
	tail := back.Value.(*Entry)
	tail.waitEnabled()

	t.deliveryMu.Lock()
	defer t.deliveryMu.Unlock()

	for {
		t.mu.Lock()
		front := t.live.Front()
		t.mu.Unlock()
		if front == nil {
			return
		}

		e := front.Value.(*Entry)
		if !e.completed.Load() {
			return
		}
		t.deliver(e)
		if e == tail {
			return
		}
	}
}
