package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"

	"github.com/kolkov/asynctrack/internal/track/store"
	"github.com/kolkov/asynctrack/internal/track/tracker"
)

type reportCmd struct {
	storeDir string
}

func newReportCmd() *reportCmd {
	return &reportCmd{}
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Usage() string    { return "report -store DIR\n" }
func (*reportCmd) Synopsis() string { return "summarize the activities in a store" }

func (cmd *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.storeDir, "store", "", "pebble directory written by simulate -store")
}

func (cmd *reportCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if cmd.storeDir == "" {
		fmt.Fprintf(os.Stderr, "asynctrack: report: -store is required\n")
		return subcommands.ExitUsageError
	}
	st, err := store.Open(cmd.storeDir, store.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "asynctrack: report: %v\n", err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	sum, err := summarize(st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "asynctrack: report: %v\n", err)
		return subcommands.ExitFailure
	}
	sum.write(os.Stdout)
	if sum.unordered > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// kindSummary aggregates activities of one kind.
type kindSummary struct {
	count    int64
	duration time.Duration
	notify   time.Duration
	queue    time.Duration
}

func (k kindSummary) mean(d time.Duration) time.Duration {
	if k.count == 0 {
		return 0
	}
	return d / time.Duration(k.count)
}

// storeSummary aggregates a store scan.
type storeSummary struct {
	total     int64
	kinds     map[tracker.Kind]*kindSummary
	unordered int64
	first     uint64
	last      uint64
}

var errSequence = errors.New("store sequence not increasing")

// summarize scans st, checking per-record timestamp order and that
// sequences increase.
func summarize(st *store.Store) (storeSummary, error) {
	sum := storeSummary{kinds: make(map[tracker.Kind]*kindSummary)}
	err := st.Scan(func(a tracker.Activity) error {
		if sum.total > 0 && a.Sequence <= sum.last {
			return fmt.Errorf("%w: %d after %d", errSequence, a.Sequence, sum.last)
		}
		if sum.total == 0 {
			sum.first = a.Sequence
		}
		sum.last = a.Sequence
		sum.total++

		if !a.Record.Ordered() {
			sum.unordered++
		}
		k := sum.kinds[a.Kind]
		if k == nil {
			k = &kindSummary{}
			sum.kinds[a.Kind] = k
		}
		k.count++
		k.duration += a.Record.Duration()
		k.notify += a.Record.NotifyLatency()
		k.queue += a.Record.QueueDelay()
		return nil
	})
	return sum, err
}

func (s storeSummary) write(w io.Writer) {
	fmt.Fprintf(w, "activities: %s", humanize.Comma(s.total))
	if s.total > 0 {
		fmt.Fprintf(w, " (sequence %d..%d)", s.first, s.last)
	}
	fmt.Fprintf(w, "\n")
	for _, kind := range []tracker.Kind{tracker.KindDispatch, tracker.KindMemcopy} {
		k := s.kinds[kind]
		if k == nil {
			continue
		}
		fmt.Fprintf(w, "  %-8s %10s  mean exec %v  mean queue %v  mean notify %v\n",
			kind, humanize.Comma(k.count), k.mean(k.duration), k.mean(k.queue), k.mean(k.notify))
	}
	if s.unordered > 0 {
		fmt.Fprintf(w, "WARNING: %s record(s) with out-of-order timestamps\n", humanize.Comma(s.unordered))
	} else {
		fmt.Fprintf(w, "✓ All timestamps ordered.\n")
	}
}
