// Package depot implements in-memory storage for delivered activities.
//
// The depot is a tracker.Sink that keeps every activity it receives,
// keyed by admission sequence, so tests and short-lived tools can inspect
// completed records after the entries themselves are gone.
//
// Design:
//   - sync.Map storage keyed by sequence (lock-free reads)
//   - Duplicate sequences are rejected (an entry is delivered once)
//   - Memory overhead: ~96 bytes per activity
//
// Usage:
//
//	d := depot.New()
//	t, _ := tracker.New(rt, tracker.Options{Sink: d})
//	...
//	a, ok := d.Get(0)
package depot

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/kolkov/asynctrack/internal/track/tracker"
)

// ErrDuplicate is returned by Put for a sequence already stored.
var ErrDuplicate = errors.New("duplicate activity")

// Depot stores activities in memory.
//
// Thread Safety: All methods are safe for concurrent calls.
type Depot struct {
	activities sync.Map // uint64 (sequence) → tracker.Activity
	count      atomic.Int64
}

var _ tracker.Sink = (*Depot)(nil)

// New creates an empty Depot.
func New() *Depot {
	return &Depot{}
}

// Put implements tracker.Sink.
func (d *Depot) Put(a tracker.Activity) error {
	if _, loaded := d.activities.LoadOrStore(a.Sequence, a); loaded {
		return fmt.Errorf("%w: sequence %d", ErrDuplicate, a.Sequence)
	}
	d.count.Add(1)
	return nil
}

// Get returns the activity stored for seq.
func (d *Depot) Get(seq uint64) (tracker.Activity, bool) {
	val, ok := d.activities.Load(seq)
	if !ok {
		return tracker.Activity{}, false
	}
	return val.(tracker.Activity), true
}

// Len returns the number of stored activities.
func (d *Depot) Len() int {
	return int(d.count.Load())
}

// Sorted returns all stored activities in sequence order.
//
// Performance: O(N log N). Do not call on a hot path.
func (d *Depot) Sorted() []tracker.Activity {
	out := make([]tracker.Activity, 0, d.Len())
	d.activities.Range(func(_, v any) bool {
		out = append(out, v.(tracker.Activity))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// Stats returns the number of stored activities and their approximate
// memory footprint in bytes.
func (d *Depot) Stats() (activities int, totalMemory int64) {
	activities = d.Len()
	// Activity is 56 bytes; sync.Map adds roughly 40 bytes per entry.
	const bytesPerActivity = 56 + 40
	return activities, int64(activities) * bytesPerActivity
}
