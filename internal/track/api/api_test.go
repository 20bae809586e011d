package api

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/kolkov/asynctrack/internal/track/config"
	"github.com/kolkov/asynctrack/internal/track/hsa"
	"github.com/kolkov/asynctrack/internal/track/hsa/sim"
	"github.com/kolkov/asynctrack/internal/track/store"
	"github.com/kolkov/asynctrack/internal/track/tracker"
)

func setup(t *testing.T, opts tracker.Options) *sim.Runtime {
	t.Helper()
	reset()
	t.Cleanup(reset)
	rt := sim.New(sim.Config{})
	if opts.Clock == nil {
		opts.Clock = rt.Clock()
	}
	Configure(rt, opts)
	return rt
}

// TestCreate_NotConfigured verifies use before Configure is reported.
func TestCreate_NotConfigured(t *testing.T) {
	reset()
	if _, err := Create(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Create() = %v, want ErrNotConfigured", err)
	}
	if _, err := Alloc(hsa.Agent{}, hsa.Signal{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Alloc() = %v, want ErrNotConfigured", err)
	}
}

// TestInstance_Panics verifies Instance panics when creation fails.
func TestInstance_Panics(t *testing.T) {
	reset()
	defer func() {
		if r := recover(); r == nil {
			t.Error("Instance() did not panic")
		}
	}()
	Instance()
}

// TestCreate_Singleton verifies concurrent creation yields one tracker.
func TestCreate_Singleton(t *testing.T) {
	setup(t, tracker.Options{})

	var wg sync.WaitGroup
	got := make([]*tracker.Tracker, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = Instance()
		}(i)
	}
	wg.Wait()

	for i, tr := range got {
		if tr != got[0] {
			t.Fatalf("Instance() #%d returned a different tracker", i)
		}
	}
}

// TestDestroy_Drains verifies Destroy waits for live entries and that a
// later Create builds a fresh tracker.
func TestDestroy_Drains(t *testing.T) {
	rt := setup(t, tracker.Options{Ordering: true})
	agent := rt.Agents()[0]

	var mu sync.Mutex
	var delivered []uint64
	handler := func(_ int64, arg any) {
		mu.Lock()
		delivered = append(delivered, arg.(uint64))
		mu.Unlock()
	}

	first := Instance()
	const k = 5
	for i := 0; i < k; i++ {
		e, err := Alloc(agent, hsa.Signal{})
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		EnableDispatch(e, handler, e.Sequence())
		rt.Run(e.Signal(), 0)
	}

	if err := Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if n := rt.LiveSignals(); n != 0 {
		t.Errorf("LiveSignals() after Destroy = %d, want 0", n)
	}
	mu.Lock()
	if len(delivered) != k {
		t.Errorf("delivered %d handlers, want %d", len(delivered), k)
	}
	mu.Unlock()

	s := Stats()
	if s.Admitted != k || s.Deleted != k || s.Outstanding != 0 {
		t.Errorf("Stats() after Destroy = %v", s)
	}

	if err := Destroy(); err != nil {
		t.Errorf("second Destroy: %v", err)
	}
	if Instance() == first {
		t.Error("Create after Destroy returned the destroyed tracker")
	}
}

// TestEnableMemcopy_PassThrough verifies the wrapper forwards to the
// caller's original signal.
func TestEnableMemcopy_PassThrough(t *testing.T) {
	rt := setup(t, tracker.Options{})
	orig, err := rt.SignalCreate(2)
	if err != nil {
		t.Fatalf("SignalCreate: %v", err)
	}

	done := make(chan int64, 1)
	e, err := Alloc(rt.Agents()[0], orig)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	EnableMemcopy(e, func(v int64, _ any) { done <- v }, nil)
	rt.Run(e.Signal(), 0)

	if v := <-done; v != 1 {
		t.Errorf("handler value = %d, want 1", v)
	}
	if v := rt.SignalLoadRelaxed(orig); v != 1 {
		t.Errorf("original signal = %d, want 1", v)
	}
}

// TestFini_Report verifies the summary report.
func TestFini_Report(t *testing.T) {
	rt := setup(t, tracker.Options{})
	e, err := Alloc(rt.Agents()[0], hsa.Signal{})
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	EnableDispatch(e, nil, nil)
	rt.Run(e.Signal(), 0)

	var buf bytes.Buffer
	finiTo(&buf)
	out := buf.String()
	for _, want := range []string{"Async Tracker Report", "Admitted:    1 operations", "All tracked operations completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

// TestConfigureFromEnv_Store verifies the environment store is attached
// as the sink and closed by Destroy.
func TestConfigureFromEnv_Store(t *testing.T) {
	reset()
	t.Cleanup(reset)
	dir := t.TempDir()
	t.Setenv(config.EnvOrdering, "true")
	t.Setenv(config.EnvStore, dir)

	rt := sim.New(sim.Config{})
	if err := ConfigureFromEnv(rt); err != nil {
		t.Fatalf("ConfigureFromEnv: %v", err)
	}
	if !Instance().Ordering() {
		t.Error("ordering from environment not applied")
	}

	for i := 0; i < 3; i++ {
		e, err := Alloc(rt.Agents()[0], hsa.Signal{})
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		EnableDispatch(e, nil, nil)
		rt.Run(e.Signal(), 0)
	}
	if err := Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	st, err := store.Open(dir, store.Options{})
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer st.Close()
	n := 0
	if err := st.Scan(func(tracker.Activity) error { n++; return nil }); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 3 {
		t.Errorf("store holds %d activities, want 3", n)
	}
}

// TestConfigureFromEnv_Malformed verifies bad variables are rejected.
func TestConfigureFromEnv_Malformed(t *testing.T) {
	reset()
	t.Setenv(config.EnvSampleRate, "often")
	if err := ConfigureFromEnv(sim.New(sim.Config{})); err == nil {
		t.Error("ConfigureFromEnv accepted a malformed sample rate")
	}
}

// TestEnable_UsesOwningTracker verifies Enable goes to the tracker that
// admitted the entry and never creates the process-wide one.
func TestEnable_UsesOwningTracker(t *testing.T) {
	reset()
	t.Cleanup(reset)

	rt := sim.New(sim.Config{})
	own, err := tracker.New(rt, tracker.Options{Clock: rt.Clock()})
	if err != nil {
		t.Fatalf("tracker.New: %v", err)
	}
	e, err := own.Alloc(rt.Agents()[0], hsa.Signal{})
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	done := make(chan struct{})
	EnableMemcopy(e, func(int64, any) { close(done) }, nil)
	rt.Run(e.Signal(), 0)
	<-done

	if Current() != nil {
		t.Error("EnableMemcopy created a process-wide tracker")
	}
	if s := own.Stats(); s.Enabled != 1 {
		t.Errorf("owning tracker Enabled = %d, want 1", s.Enabled)
	}
	if err := own.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
