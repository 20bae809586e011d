package clock

import (
	_ "unsafe" // required for go:linkname
)

//go:linkname runtimeNanotime runtime.nanotime
func runtimeNanotime() int64

// nanotime returns monotonic time in nanoseconds since an unspecified start point.
func nanotime() uint64 {
	return uint64(runtimeNanotime())
}
