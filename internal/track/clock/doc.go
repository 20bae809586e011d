// Package clock implements the timestamp source for the completion tracker.
//
// The tracker needs two things from a clock:
//   - NowNs: a monotonic nanosecond reading (submit and notify stamps)
//   - SysclockToNs: conversion of accelerator clock ticks (the begin/end
//     values reported by the runtime's profiling queries) to nanoseconds
//     on the same timeline as NowNs
//
// The Monotonic source reads runtime.nanotime directly and treats the
// accelerator clock as a counter on the same origin running at a fixed
// frequency. Conversions use 128-bit intermediate products so that large
// tick values do not overflow.
//
// Invariant: for every ns, SysclockToNs(NsToSysclock(ns)) >= ns. Ticks are
// rounded up on the way in and down on the way out, so a hardware stamp
// taken after a host stamp never converts to an earlier nanosecond value.
package clock
