package tracker

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// String returns a one-line summary of the counters.
func (s Stats) String() string {
	return fmt.Sprintf("admitted=%d enabled=%d completed=%d delivered=%d deleted=%d outstanding=%d",
		s.Admitted, s.Enabled, s.Completed, s.Delivered, s.Deleted, s.Outstanding)
}

// WriteSummary writes the shutdown report for s to w.
//
// Output format:
//
//	==================
//	Async Tracker Report
//	==================
//	Admitted:    1,024 operations
//	Delivered:   1,024 handlers
//	✓ All tracked operations completed.
//	==================
func WriteSummary(w io.Writer, s Stats) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "==================\n")
	fmt.Fprintf(w, "Async Tracker Report\n")
	fmt.Fprintf(w, "==================\n")
	fmt.Fprintf(w, "Admitted:    %s operations\n", humanize.Comma(int64(s.Admitted)))
	fmt.Fprintf(w, "Delivered:   %s handlers\n", humanize.Comma(int64(s.Delivered)))
	if s.SinkErrors > 0 {
		fmt.Fprintf(w, "Sink errors: %s\n", humanize.Comma(int64(s.SinkErrors)))
	}

	if s.Outstanding == 0 {
		fmt.Fprintf(w, "✓ All tracked operations completed.\n")
	} else {
		fmt.Fprintf(w, "WARNING: %s operation(s) still outstanding!\n", humanize.Comma(s.Outstanding))
	}
	fmt.Fprintf(w, "==================\n\n")
}
