package tracker

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"go.uber.org/multierr"

	"github.com/kolkov/asynctrack/internal/track/clock"
	"github.com/kolkov/asynctrack/internal/track/hsa"
)

// proxyInitial is the proxy signal's "one outstanding operation" value.
const proxyInitial = 1

// Options configures a Tracker.
//
// Usage:
//
//	// Default: unordered delivery, monotonic clock, abort on corruption
//	t, err := tracker.New(rt, tracker.Options{})
//
//	// Ordered delivery with every 10th activity persisted
//	t, err := tracker.New(rt, tracker.Options{
//	    Ordering:   true,
//	    Sink:       st,
//	    SampleRate: 10,
//	})
type Options struct {
	// Ordering delivers handlers in admission order. Fixed for the
	// lifetime of the Tracker. Default: false.
	Ordering bool

	// Clock is the timestamp source. Default: clock.New(0).
	Clock clock.Source

	// Abort is called on unrecoverable conditions: signal drift or a
	// failed profiling time query. Default: glog.Fatalf (process exit).
	Abort func(error)

	// Sink receives delivered activities. Default: none.
	Sink Sink

	// SampleRate forwards one of every SampleRate activities to Sink.
	// Default: 0 (all).
	SampleRate uint64

	// Observer is notified of lifecycle events. Default: none.
	Observer Observer
}

// Stats is a snapshot of tracker counters.
type Stats struct {
	Admitted    uint64 // Entries returned by Alloc.
	Enabled     uint64 // Entries whose handler was published.
	Completed   uint64 // Entries whose timing was captured.
	Delivered   uint64 // Handlers invoked.
	Deleted     uint64 // Entries removed.
	Outstanding int64  // Entries admitted and not yet deleted.
	SinkErrors  uint64 // Failed Sink.Put calls.
}

// Tracker is the registry of in-flight operations.
//
// Thread Safety: Alloc, Enable*, Delete and the completion callback are
// safe for concurrent calls. Close must not race with Alloc.
type Tracker struct {
	rt       hsa.Runtime
	clock    clock.Source
	ordering bool
	abort    func(error)
	sink     Sink
	sampler  *Sampler
	observer Observer

	// mu guards live and counter.
	mu      sync.Mutex
	live    *list.List // *Entry in admission order
	counter uint64

	// deliveryMu serializes ordered-delivery walks.
	deliveryMu sync.Mutex

	closed atomic.Bool

	outstanding atomic.Int64
	admitted    atomic.Uint64
	enabled     atomic.Uint64
	completed   atomic.Uint64
	delivered   atomic.Uint64
	deleted     atomic.Uint64
	sinkErrors  atomic.Uint64
}

// New creates a Tracker over rt.
//
// Returns hsa.ErrUnsupportedRuntime (wrapped) if rt is older than hsa.MinVersion.
func New(rt hsa.Runtime, opts Options) (*Tracker, error) {
	if err := hsa.CheckVersion(rt); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clock.New(0)
	}
	if opts.Abort == nil {
		opts.Abort = func(err error) { glog.Fatalf("asynctrack: %v", err) }
	}

	t := &Tracker{
		rt:       rt,
		clock:    opts.Clock,
		ordering: opts.Ordering,
		abort:    opts.Abort,
		sink:     opts.Sink,
		sampler:  NewSampler(opts.SampleRate),
		observer: opts.Observer,
		live:     list.New(),
	}
	glog.V(1).Infof("tracker created: ordering=%t runtime=%s", t.ordering, rt.Version())
	return t, nil
}

// Ordering reports whether handlers are delivered in admission order.
func (t *Tracker) Ordering() bool {
	return t.ordering
}

// Alloc admits a new entry for an operation on agent whose caller-visible
// completion signal is orig (zero if none).
//
// The returned entry's Signal must be given to the hardware in place of
// orig, and EnableDispatch or EnableMemcopy must follow.
//
// Errors from signal creation or handler registration are returned
// wrapped; they are not retried.
func (t *Tracker) Alloc(agent hsa.Agent, orig hsa.Signal) (*Entry, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}

	e := &Entry{
		tracker: t,
		agent:   agent,
		orig:    orig,
		done:    make(chan struct{}),
	}
	e.record.SubmitNs = t.clock.NowNs()

	proxy, err := t.rt.SignalCreate(proxyInitial)
	if err != nil {
		return nil, fmt.Errorf("create proxy signal: %w", err)
	}
	e.proxy = proxy

	if err := t.rt.SignalAsyncHandler(proxy, hsa.CondLt, proxyInitial, t.handle, e); err != nil {
		_ = t.rt.SignalDestroy(proxy)
		return nil, fmt.Errorf("register completion handler: %w", err)
	}

	t.mu.Lock()
	e.elem = t.live.PushBack(e)
	e.seq = t.counter
	t.counter++
	t.mu.Unlock()

	t.admitted.Add(1)
	t.outstanding.Add(1)
	if t.observer != nil {
		t.observer.Admitted()
	}
	return e, nil
}

// EnableDispatch activates e as a kernel dispatch with handler h.
//
// h may be nil when the caller has no completion callback.
func (t *Tracker) EnableDispatch(e *Entry, h Handler, arg any) {
	t.enable(e, KindDispatch, h, arg)
}

// EnableMemcopy activates e as an async memory copy with handler h.
func (t *Tracker) EnableMemcopy(e *Entry, h Handler, arg any) {
	t.enable(e, KindMemcopy, h, arg)
}

func (t *Tracker) enable(e *Entry, kind Kind, h Handler, arg any) {
	e.kind = kind
	e.arg = arg
	// Publish last: the completion callback proceeds once it observes this.
	e.handler.Store(&h)

	t.enabled.Add(1)
	if glog.V(2) {
		glog.Infof("tracker add: entry %d (%s), outstanding %d", e.seq, kind, t.outstanding.Load())
	}
}

// Delete destroys e's proxy signal and removes e from the live list.
//
// Precondition: the proxy signal has fired. The completion callback calls
// Delete itself after delivering the handler.
func (t *Tracker) Delete(e *Entry) error {
	err := t.rt.SignalDestroy(e.proxy)

	t.mu.Lock()
	t.live.Remove(e.elem)
	t.mu.Unlock()

	t.deleted.Add(1)
	t.outstanding.Add(-1)
	if t.observer != nil {
		t.observer.Deleted()
	}

	if err != nil {
		err = fmt.Errorf("entry %d: destroy proxy signal: %w", e.seq, err)
	}
	e.err = err
	close(e.done)
	return err
}

// Len returns the number of live entries.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live.Len()
}

// Outstanding returns the diagnostic count of live entries.
func (t *Tracker) Outstanding() int64 {
	return t.outstanding.Load()
}

// Stats returns a snapshot of the tracker counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Admitted:    t.admitted.Load(),
		Enabled:     t.enabled.Load(),
		Completed:   t.completed.Load(),
		Delivered:   t.delivered.Load(),
		Deleted:     t.deleted.Load(),
		Outstanding: t.outstanding.Load(),
		SinkErrors:  t.sinkErrors.Load(),
	}
}

// SamplerStats returns the sink sampling counters.
func (t *Tracker) SamplerStats() SamplerStats {
	return t.sampler.Stats()
}

// Close drains the tracker: it waits for every live entry's proxy signal
// to fire and for the normal delivery path to delete the entry.
//
// Close blocks for as long as the slowest outstanding operation. Callers
// must stop calling Alloc first; Alloc after Close returns ErrClosed.
// Failures to destroy proxy signals are aggregated into the result.
// Closing a tracker with no live entries is a no-op.
func (t *Tracker) Close() error {
	t.closed.Store(true)

	t.mu.Lock()
	entries := make([]*Entry, 0, t.live.Len())
	for el := t.live.Front(); el != nil; el = el.Next() {
		entries = append(entries, el.Value.(*Entry))
	}
	t.mu.Unlock()

	var errs error
	for _, e := range entries {
		select {
		case <-e.done:
		default:
			t.rt.SignalWait(e.proxy, hsa.CondLt, proxyInitial)
			<-e.done
		}
		errs = multierr.Append(errs, e.err)
	}
	glog.V(1).Infof("tracker closed: drained %d entries", len(entries))
	return errs
}
