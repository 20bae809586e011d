package sim

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kolkov/asynctrack/internal/track/clock"
	"github.com/kolkov/asynctrack/internal/track/hsa"
)

// DefaultVersion is the version reported by a simulated runtime when
// Config.Version is empty.
const DefaultVersion = "v1.4.0"

// agentBase offsets agent handles so they never collide with signal handles
// in debug output.
const agentBase = 0xA000

// Config configures a simulated runtime.
type Config struct {
	// Clock is the host clock the accelerator clock is derived from.
	// Default: clock.New(Frequency).
	Clock *clock.Monotonic

	// Frequency is the accelerator clock frequency in Hz when Clock is nil.
	// Default: clock.DefaultFrequency.
	Frequency uint64

	// Agents is the number of agents to expose. Default: 1.
	Agents int

	// Version is the reported runtime version. Default: DefaultVersion.
	Version string
}

// Runtime is an in-process hsa.Runtime.
//
// Thread Safety: All methods are safe for concurrent calls.
type Runtime struct {
	clock   *clock.Monotonic
	version string
	agents  []hsa.Agent

	signals    signalTable
	nextHandle atomic.Uint64

	failCreate  atomic.Int32
	failHandler atomic.Int32
	failTiming  atomic.Bool

	inflight      sync.WaitGroup
	notifications atomic.Uint64
}

var _ hsa.Runtime = (*Runtime)(nil)

// New creates a simulated runtime.
func New(cfg Config) *Runtime {
	if cfg.Clock == nil {
		cfg.Clock = clock.New(cfg.Frequency)
	}
	if cfg.Agents <= 0 {
		cfg.Agents = 1
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}

	r := &Runtime{
		clock:   cfg.Clock,
		version: cfg.Version,
		agents:  make([]hsa.Agent, cfg.Agents),
	}
	for i := range r.agents {
		r.agents[i] = hsa.Agent{Handle: agentBase + uint64(i)}
	}
	return r
}

// Clock returns the clock the accelerator timestamps are derived from.
func (r *Runtime) Clock() *clock.Monotonic {
	return r.clock
}

// Agents returns the simulated agents.
func (r *Runtime) Agents() []hsa.Agent {
	out := make([]hsa.Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// Version implements hsa.Runtime.
func (r *Runtime) Version() string {
	return r.version
}

// SignalCreate implements hsa.Runtime.
func (r *Runtime) SignalCreate(initial int64) (hsa.Signal, error) {
	if consume(&r.failCreate) {
		return hsa.Signal{}, hsa.NewStatusError("hsa_signal_create", hsa.StatusOutOfResources)
	}
	handle := r.nextHandle.Add(1)
	r.signals.insert(newSignal(handle, initial))
	return hsa.Signal{Handle: handle}, nil
}

// SignalDestroy implements hsa.Runtime.
func (r *Runtime) SignalDestroy(s hsa.Signal) error {
	sig := r.signals.remove(s.Handle)
	if sig == nil {
		return hsa.NewStatusError("hsa_signal_destroy", hsa.StatusInvalidSignal)
	}
	sig.mu.Lock()
	sig.handlers = nil
	sig.cond.Broadcast()
	sig.mu.Unlock()
	return nil
}

// SignalAsyncHandler implements hsa.Runtime.
func (r *Runtime) SignalAsyncHandler(s hsa.Signal, cond hsa.Condition, threshold int64, h hsa.AsyncHandler, arg any) error {
	if consume(&r.failHandler) {
		return hsa.NewStatusError("hsa_amd_signal_async_handler", hsa.StatusOutOfResources)
	}
	if h == nil {
		return hsa.NewStatusError("hsa_amd_signal_async_handler", hsa.StatusInvalidArgument)
	}
	sig := r.signals.lookup(s.Handle)
	if sig == nil {
		return hsa.NewStatusError("hsa_amd_signal_async_handler", hsa.StatusInvalidSignal)
	}
	r.arm(sig, &handlerReg{cond: cond, threshold: threshold, fn: h, arg: arg})
	return nil
}

// arm adds reg to sig, firing it immediately if its condition already holds.
func (r *Runtime) arm(sig *signal, reg *handlerReg) {
	sig.mu.Lock()
	v := sig.value.Load()
	if reg.cond.Satisfied(v, reg.threshold) {
		sig.mu.Unlock()
		r.notify(sig, reg, v)
		return
	}
	sig.handlers = append(sig.handlers, reg)
	sig.mu.Unlock()
}

// notify runs reg on a fresh notification goroutine.
func (r *Runtime) notify(sig *signal, reg *handlerReg, value int64) {
	r.inflight.Add(1)
	r.notifications.Add(1)
	go func() {
		defer r.inflight.Done()
		if reg.fn(value, reg.arg) && r.signals.lookup(sig.handle) == sig {
			r.arm(sig, reg)
		}
	}()
}

// set applies update to sig's value under its lock, dispatches every
// handler whose condition now holds and returns the previous value.
func (r *Runtime) set(sig *signal, update func(old int64) int64) int64 {
	sig.mu.Lock()
	old := sig.value.Load()
	v := update(old)
	sig.value.Store(v)

	var fire []*handlerReg
	kept := sig.handlers[:0]
	for _, reg := range sig.handlers {
		if reg.cond.Satisfied(v, reg.threshold) {
			fire = append(fire, reg)
		} else {
			kept = append(kept, reg)
		}
	}
	sig.handlers = kept
	sig.cond.Broadcast()
	sig.mu.Unlock()

	for _, reg := range fire {
		r.notify(sig, reg, v)
	}
	return old
}

// SignalLoadRelaxed implements hsa.Runtime. Unknown signals read as zero.
func (r *Runtime) SignalLoadRelaxed(s hsa.Signal) int64 {
	sig := r.signals.lookup(s.Handle)
	if sig == nil {
		return 0
	}
	return sig.value.Load()
}

// SignalStoreRelease implements hsa.Runtime. Stores to unknown signals are dropped.
func (r *Runtime) SignalStoreRelease(s hsa.Signal, value int64) {
	sig := r.signals.lookup(s.Handle)
	if sig == nil {
		return
	}
	r.set(sig, func(int64) int64 { return value })
}

// SignalSubtractRelease implements hsa.Runtime. Unknown signals read as zero.
func (r *Runtime) SignalSubtractRelease(s hsa.Signal, n int64) int64 {
	sig := r.signals.lookup(s.Handle)
	if sig == nil {
		return 0
	}
	return r.set(sig, func(old int64) int64 { return old - n })
}

// Subtract decrements a signal by n, the way a packet processor completes work.
func (r *Runtime) Subtract(s hsa.Signal, n int64) {
	r.SignalSubtractRelease(s, n)
}

// SignalWait implements hsa.Runtime.
//
// Waiting on a destroyed signal returns immediately with its last value.
func (r *Runtime) SignalWait(s hsa.Signal, cond hsa.Condition, threshold int64) int64 {
	sig := r.signals.lookup(s.Handle)
	if sig == nil {
		return 0
	}
	sig.mu.Lock()
	defer sig.mu.Unlock()
	for {
		v := sig.value.Load()
		if cond.Satisfied(v, threshold) || r.signals.lookup(s.Handle) != sig {
			return v
		}
		sig.cond.Wait()
	}
}

// DispatchTime implements hsa.Runtime.
func (r *Runtime) DispatchTime(agent hsa.Agent, s hsa.Signal) (hsa.ProfilingTime, error) {
	const op = "hsa_amd_profiling_get_dispatch_time"
	if r.failTiming.Load() {
		return hsa.ProfilingTime{}, hsa.NewStatusError(op, hsa.StatusFailure)
	}
	if !r.knownAgent(agent) {
		return hsa.ProfilingTime{}, hsa.NewStatusError(op, hsa.StatusInvalidAgent)
	}
	return r.timing(op, s)
}

// AsyncCopyTime implements hsa.Runtime.
func (r *Runtime) AsyncCopyTime(s hsa.Signal) (hsa.ProfilingTime, error) {
	const op = "hsa_amd_profiling_get_async_copy_time"
	if r.failTiming.Load() {
		return hsa.ProfilingTime{}, hsa.NewStatusError(op, hsa.StatusFailure)
	}
	return r.timing(op, s)
}

func (r *Runtime) timing(op string, s hsa.Signal) (hsa.ProfilingTime, error) {
	sig := r.signals.lookup(s.Handle)
	if sig == nil {
		return hsa.ProfilingTime{}, hsa.NewStatusError(op, hsa.StatusInvalidSignal)
	}
	return hsa.ProfilingTime{Start: sig.start.Load(), End: sig.end.Load()}, nil
}

func (r *Runtime) knownAgent(a hsa.Agent) bool {
	for _, known := range r.agents {
		if known == a {
			return true
		}
	}
	return false
}

// SignalTiming implements hsa.Runtime.
func (r *Runtime) SignalTiming(s hsa.Signal) hsa.ProfilingTime {
	sig := r.signals.lookup(s.Handle)
	if sig == nil {
		return hsa.ProfilingTime{}
	}
	return hsa.ProfilingTime{Start: sig.start.Load(), End: sig.end.Load()}
}

// SetSignalTiming implements hsa.Runtime.
func (r *Runtime) SetSignalTiming(s hsa.Signal, t hsa.ProfilingTime) {
	sig := r.signals.lookup(s.Handle)
	if sig == nil {
		return
	}
	sig.start.Store(t.Start)
	sig.end.Store(t.End)
}

// Begin stamps the start tick of the operation completing s.
func (r *Runtime) Begin(s hsa.Signal) {
	if sig := r.signals.lookup(s.Handle); sig != nil {
		sig.start.Store(r.clock.NowSysclock())
	}
}

// End stamps the end tick of the operation completing s and decrements s
// by one. An operation that was never begun gets start == end.
func (r *Runtime) End(s hsa.Signal) {
	sig := r.signals.lookup(s.Handle)
	if sig == nil {
		return
	}
	now := r.clock.NowSysclock()
	sig.start.CompareAndSwap(0, now)
	sig.end.Store(now)
	r.Subtract(s, 1)
}

// Run begins the operation completing s now and ends it after d.
func (r *Runtime) Run(s hsa.Signal, d time.Duration) {
	r.Begin(s)
	if d <= 0 {
		r.End(s)
		return
	}
	time.AfterFunc(d, func() { r.End(s) })
}

// FailSignalCreate makes the next n SignalCreate calls fail.
func (r *Runtime) FailSignalCreate(n int) {
	r.failCreate.Store(int32(n))
}

// FailAsyncHandler makes the next n SignalAsyncHandler calls fail.
func (r *Runtime) FailAsyncHandler(n int) {
	r.failHandler.Store(int32(n))
}

// FailTimingQueries makes profiling time queries fail while on is true.
func (r *Runtime) FailTimingQueries(on bool) {
	r.failTiming.Store(on)
}

// LiveSignals returns the number of signals not yet destroyed.
func (r *Runtime) LiveSignals() int {
	return r.signals.len()
}

// Notifications returns the number of handler invocations dispatched so far.
func (r *Runtime) Notifications() uint64 {
	return r.notifications.Load()
}

// Drain waits until every dispatched handler invocation has returned.
//
// Must not be called while new signal completions are being produced.
func (r *Runtime) Drain() {
	r.inflight.Wait()
}

// consume decrements a failure budget, reporting whether one was left.
func consume(budget *atomic.Int32) bool {
	for {
		n := budget.Load()
		if n <= 0 {
			return false
		}
		if budget.CompareAndSwap(n, n-1) {
			return true
		}
	}
}
