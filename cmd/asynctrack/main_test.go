package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kolkov/asynctrack/internal/track/hsa"
	"github.com/kolkov/asynctrack/internal/track/metrics"
	"github.com/kolkov/asynctrack/internal/track/store"
	"github.com/kolkov/asynctrack/internal/track/tracker"
)

func smallWorkload() workload {
	return workload{
		ops:        200,
		producers:  4,
		agents:     2,
		copyRatio:  0.5,
		maxLatency: 200 * time.Microsecond,
		seed:       7,
	}
}

// TestSimulate_Unordered verifies every operation is delivered.
func TestSimulate_Unordered(t *testing.T) {
	var out bytes.Buffer
	res, err := simulate(context.Background(), smallWorkload(), &out)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if res.violations != 0 {
		t.Errorf("violations = %d", res.violations)
	}
	if len(res.delivered) != 200 {
		t.Errorf("delivered %d, want 200", len(res.delivered))
	}
	if res.stats.Outstanding != 0 || res.stats.Deleted != 200 {
		t.Errorf("stats = %v", res.stats)
	}
	if !strings.Contains(out.String(), "All tracked operations completed") {
		t.Errorf("summary missing:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "records: 200") {
		t.Errorf("record count missing:\n%s", out.String())
	}
}

// TestSimulate_Ordered verifies admission-order delivery under
// concurrent producers.
func TestSimulate_Ordered(t *testing.T) {
	w := smallWorkload()
	w.ordered = true

	var out bytes.Buffer
	res, err := simulate(context.Background(), w, &out)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if res.violations != 0 {
		t.Errorf("violations = %d", res.violations)
	}
	for i := range res.delivered {
		if res.delivered[i] != uint64(i) {
			t.Fatalf("delivered[%d] = %d", i, res.delivered[i])
		}
	}
	if !strings.Contains(out.String(), "ordered delivery: OK") {
		t.Errorf("ordered verdict missing:\n%s", out.String())
	}
}

// TestSimulate_BadArgs verifies argument validation.
func TestSimulate_BadArgs(t *testing.T) {
	w := smallWorkload()
	w.copyRatio = 2
	if _, err := simulate(context.Background(), w, &bytes.Buffer{}); err == nil {
		t.Error("simulate accepted copy-ratio 2")
	}
	w = smallWorkload()
	w.producers = 0
	if _, err := simulate(context.Background(), w, &bytes.Buffer{}); err == nil {
		t.Error("simulate accepted zero producers")
	}
}

// TestSimulate_StoreAndReport verifies the persisted activities, sampling
// and the report over them.
func TestSimulate_StoreAndReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	w := smallWorkload()
	w.ordered = true
	w.storeDir = dir
	w.sample = 4
	w.metrics = true

	var out bytes.Buffer
	if _, err := simulate(context.Background(), w, &out); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !strings.Contains(out.String(), "asynctrack_completions_total") {
		t.Errorf("metrics dump missing:\n%s", out.String())
	}

	st, err := store.Open(dir, store.Options{})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	sum, err := summarize(st)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.total != 50 {
		t.Errorf("stored %d activities, want 50", sum.total)
	}
	if sum.unordered != 0 {
		t.Errorf("unordered = %d", sum.unordered)
	}
	if sum.first != 0 || sum.last != 196 {
		t.Errorf("sequence range %d..%d, want 0..196", sum.first, sum.last)
	}

	var rep bytes.Buffer
	sum.write(&rep)
	if !strings.Contains(rep.String(), "activities: 50") || !strings.Contains(rep.String(), "All timestamps ordered") {
		t.Errorf("report:\n%s", rep.String())
	}
}

// TestSummarize_Unordered verifies bad timestamps are counted.
func TestSummarize_Unordered(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "db"), store.Options{})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	_ = st.Put(tracker.Activity{Sequence: 0, Record: tracker.Record{SubmitNs: 1, BeginNs: 2, EndNs: 3, NotifyNs: 4}})
	_ = st.Put(tracker.Activity{Sequence: 1, Kind: tracker.KindMemcopy, Record: tracker.Record{SubmitNs: 5, BeginNs: 4, EndNs: 6, NotifyNs: 7}})

	sum, err := summarize(st)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.total != 2 || sum.unordered != 1 {
		t.Errorf("total=%d unordered=%d, want 2, 1", sum.total, sum.unordered)
	}
	if k := sum.kinds[tracker.KindMemcopy]; k == nil || k.count != 1 {
		t.Errorf("memcopy summary = %+v", k)
	}
}

// TestVersion verifies the runtime check.
func TestVersion(t *testing.T) {
	var out bytes.Buffer
	cmd := &versionCmd{runtime: "1.4"}
	if err := cmd.run(&out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "runtime v1.4.0: supported") {
		t.Errorf("output:\n%s", out.String())
	}

	cmd.runtime = "1.0.9"
	if err := cmd.run(&bytes.Buffer{}); !errors.Is(err, hsa.ErrUnsupportedRuntime) {
		t.Errorf("run(1.0.9) = %v, want ErrUnsupportedRuntime", err)
	}
}

// TestServeMetrics verifies the metrics endpoint serves the collectors a
// simulate run registers.
func TestServeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	col := metrics.NewCollector()
	if err := col.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	col.Admitted()

	addr, stop, err := serveMetrics("127.0.0.1:0", reg)
	if err != nil {
		t.Fatalf("serveMetrics: %v", err)
	}
	defer stop()

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "asynctrack_outstanding_entries 1") {
		t.Errorf("status %d, body:\n%s", resp.StatusCode, body)
	}
}

// TestSimulate_MetricsAddr verifies the run announces its endpoint.
func TestSimulate_MetricsAddr(t *testing.T) {
	w := smallWorkload()
	w.metricsAt = "127.0.0.1:0"

	var out bytes.Buffer
	if _, err := simulate(context.Background(), w, &out); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !strings.Contains(out.String(), "metrics: http://127.0.0.1:") {
		t.Errorf("endpoint missing:\n%s", out.String())
	}
}
