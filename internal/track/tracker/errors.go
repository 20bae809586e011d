package tracker

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Alloc after Close has started.
var ErrClosed = errors.New("tracker closed")

// ConsistencyError reports drift between a proxy signal and the signal it
// shadows: a double completion or a lost decrement.
//
// Fields:
//   - Sequence: Admission index of the entry
//   - Signal: Which signal was inconsistent ("proxy" or "original")
//   - Expected: Value the signal should have had
//   - Observed: Value actually read
//
// Thread Safety: Immutable after creation, safe for concurrent use.
type ConsistencyError struct {
	Sequence uint64
	Signal   string
	Expected int64
	Observed int64
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("entry %d: bad %s signal value: expected %d, observed %d",
		e.Sequence, e.Signal, e.Expected, e.Observed)
}
