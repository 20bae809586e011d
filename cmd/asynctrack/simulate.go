package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/kolkov/asynctrack/internal/track/depot"
	"github.com/kolkov/asynctrack/internal/track/hsa"
	"github.com/kolkov/asynctrack/internal/track/hsa/sim"
	"github.com/kolkov/asynctrack/internal/track/metrics"
	"github.com/kolkov/asynctrack/internal/track/store"
	"github.com/kolkov/asynctrack/internal/track/tracker"
)

// workload describes a synthetic simulate run.
type workload struct {
	ops        int
	producers  int
	agents     int
	ordered    bool
	copyRatio  float64
	maxLatency time.Duration
	storeDir   string
	sample     uint64
	metrics    bool
	metricsAt  string
	linger     time.Duration
	seed       uint64
}

type simulateCmd struct {
	w workload
}

func newSimulateCmd() *simulateCmd {
	return &simulateCmd{}
}

func (*simulateCmd) Name() string { return "simulate" }
func (*simulateCmd) Usage() string {
	return "simulate [-n N] [-producers P] [-ordered] [-copy-ratio R] [-store DIR] [-sample N] [-metrics] [-metrics-addr ADDR]\n"
}
func (*simulateCmd) Synopsis() string {
	return "run a synthetic workload through the tracker on a simulated runtime"
}

func (cmd *simulateCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&cmd.w.ops, "n", 1000, "number of operations")
	f.IntVar(&cmd.w.producers, "producers", 4, "concurrent submitting goroutines")
	f.IntVar(&cmd.w.agents, "agents", 2, "simulated agents")
	f.BoolVar(&cmd.w.ordered, "ordered", false, "deliver handlers in admission order")
	f.Float64Var(&cmd.w.copyRatio, "copy-ratio", 0.25, "fraction of operations that are memory copies")
	f.DurationVar(&cmd.w.maxLatency, "max-latency", time.Millisecond, "maximum simulated operation time")
	f.StringVar(&cmd.w.storeDir, "store", "", "persist delivered activities to this pebble directory")
	f.Uint64Var(&cmd.w.sample, "sample", 0, "persist one of every N activities (0 = all)")
	f.BoolVar(&cmd.w.metrics, "metrics", false, "dump Prometheus metrics after the run")
	f.StringVar(&cmd.w.metricsAt, "metrics-addr", "", "serve Prometheus metrics at this address during the run")
	f.DurationVar(&cmd.w.linger, "linger", 0, "keep serving -metrics-addr this long after the run")
	f.Uint64Var(&cmd.w.seed, "seed", 1, "random seed")
}

func (cmd *simulateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	res, err := simulate(ctx, cmd.w, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "asynctrack: simulate: %v\n", err)
		return subcommands.ExitFailure
	}
	if res.violations > 0 {
		fmt.Fprintf(os.Stderr, "asynctrack: %d violation(s)\n", res.violations)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// simResult summarizes a simulate run.
type simResult struct {
	stats      tracker.Stats
	delivered  []uint64 // sequences in handler order
	violations int
}

// recordingObserver keeps every completed activity for verification and
// forwards lifecycle events to next.
type recordingObserver struct {
	depot *depot.Depot
	next  tracker.Observer
}

func (o *recordingObserver) Admitted() {
	if o.next != nil {
		o.next.Admitted()
	}
}

func (o *recordingObserver) Completed(a tracker.Activity) {
	if err := o.depot.Put(a); err != nil {
		glog.Errorf("record entry %d: %v", a.Sequence, err)
	}
	if o.next != nil {
		o.next.Completed(a)
	}
}

func (o *recordingObserver) Deleted() {
	if o.next != nil {
		o.next.Deleted()
	}
}

// simulate runs w and writes a report to out.
func simulate(ctx context.Context, w workload, out io.Writer) (simResult, error) {
	if w.ops < 0 || w.producers <= 0 {
		return simResult{}, errors.New("need n >= 0 and producers > 0")
	}
	if w.copyRatio < 0 || w.copyRatio > 1 {
		return simResult{}, fmt.Errorf("copy-ratio %v outside [0, 1]", w.copyRatio)
	}

	rt := sim.New(sim.Config{Agents: w.agents})
	records := &recordingObserver{depot: depot.New()}
	opts := tracker.Options{
		Ordering: w.ordered,
		Clock:    rt.Clock(),
		Observer: records,
	}

	var st *store.Store
	if w.storeDir != "" {
		var err error
		if st, err = store.Open(w.storeDir, store.Options{}); err != nil {
			return simResult{}, err
		}
		defer st.Close()
		opts.Sink = st
		opts.SampleRate = w.sample
	}

	reg := prometheus.NewRegistry()
	if w.metrics || w.metricsAt != "" {
		col := metrics.NewCollector()
		if err := col.Register(reg); err != nil {
			return simResult{}, err
		}
		records.next = col
	}
	if w.metricsAt != "" {
		addr, stop, err := serveMetrics(w.metricsAt, reg)
		if err != nil {
			return simResult{}, err
		}
		defer func() {
			time.Sleep(w.linger)
			stop()
		}()
		fmt.Fprintf(out, "metrics: http://%s/metrics\n", addr)
	}

	tr, err := tracker.New(rt, opts)
	if err != nil {
		return simResult{}, err
	}

	var (
		mu        sync.Mutex
		delivered []uint64
		badValues int
	)
	handler := func(value int64, arg any) {
		mu.Lock()
		delivered = append(delivered, arg.(uint64))
		if value != 0 {
			badValues++
		}
		mu.Unlock()
	}

	start := time.Now()
	origs := make(chan hsa.Signal, w.ops)
	g, ctx := errgroup.WithContext(ctx)
	for p := 0; p < w.producers; p++ {
		n := w.ops / w.producers
		if p < w.ops%w.producers {
			n++
		}
		rng := rand.New(rand.NewPCG(w.seed, uint64(p)))
		g.Go(func() error {
			return produce(ctx, rt, tr, rng, w, n, handler, origs)
		})
	}
	prodErr := g.Wait()
	closeErr := tr.Close()
	rt.Drain()
	close(origs)
	for s := range origs {
		closeErr = multierr.Append(closeErr, rt.SignalDestroy(s))
	}
	if err := multierr.Append(prodErr, closeErr); err != nil {
		return simResult{}, err
	}
	elapsed := time.Since(start)

	res := simResult{stats: tr.Stats(), delivered: delivered, violations: badValues}
	if w.ordered {
		for i := 1; i < len(delivered); i++ {
			if delivered[i] <= delivered[i-1] {
				glog.Errorf("out of order delivery: %d after %d", delivered[i], delivered[i-1])
				res.violations++
			}
		}
	}
	var byKind [2]int
	for _, a := range records.depot.Sorted() {
		if !a.Record.Ordered() {
			glog.Errorf("entry %d: timestamps out of order: %+v", a.Sequence, a.Record)
			res.violations++
		}
		if int(a.Kind) < len(byKind) {
			byKind[a.Kind]++
		}
	}

	tracker.WriteSummary(out, res.stats)
	fmt.Fprintf(out, "dispatches: %s  copies: %s  elapsed: %v  (%s ops/s)\n",
		humanize.Comma(int64(byKind[tracker.KindDispatch])),
		humanize.Comma(int64(byKind[tracker.KindMemcopy])),
		elapsed.Round(time.Millisecond),
		humanize.Comma(int64(float64(len(delivered))/elapsed.Seconds())))
	if w.ordered {
		fmt.Fprintf(out, "ordered delivery: %s\n", verdict(res.violations == 0))
	}
	n, mem := records.depot.Stats()
	fmt.Fprintf(out, "records: %s (~%s in memory)\n", humanize.Comma(int64(n)), humanize.Bytes(uint64(mem)))
	if st != nil {
		fmt.Fprintf(out, "store: %s\n", w.storeDir)
	}
	if w.metrics {
		if err := metrics.WriteText(out, reg); err != nil {
			return res, err
		}
	}
	return res, nil
}

// produce submits n operations.
func produce(ctx context.Context, rt *sim.Runtime, tr *tracker.Tracker, rng *rand.Rand, w workload, n int, h tracker.Handler, origs chan<- hsa.Signal) error {
	agents := rt.Agents()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		orig, err := rt.SignalCreate(1)
		if err != nil {
			return err
		}
		origs <- orig

		e, err := tr.Alloc(agents[rng.IntN(len(agents))], orig)
		if err != nil {
			return err
		}
		var latency time.Duration
		if w.maxLatency > 0 {
			latency = time.Duration(rng.Int64N(int64(w.maxLatency)))
		}
		// Half the time the hardware finishes before the handler is wired.
		early := rng.IntN(2) == 0
		if early {
			rt.Run(e.Signal(), latency)
		}
		if rng.Float64() < w.copyRatio {
			tr.EnableMemcopy(e, h, e.Sequence())
		} else {
			tr.EnableDispatch(e, h, e.Sequence())
		}
		if !early {
			rt.Run(e.Signal(), latency)
		}
	}
	return nil
}

// serveMetrics serves reg at addr/metrics until stop is called. It returns
// the bound address, which differs from addr when addr has port 0.
func serveMetrics(addr string, reg prometheus.Gatherer) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			glog.Errorf("metrics server: %v", err)
		}
	}()
	return ln.Addr().String(), func() { srv.Close() }, nil
}

func verdict(ok bool) string {
	if ok {
		return "OK"
	}
	return "FAILED"
}
