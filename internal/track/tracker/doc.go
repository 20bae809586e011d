// Package tracker implements completion tracking for asynchronous
// accelerator operations.
//
// Every tracked operation (a kernel dispatch or an async memory copy) is an
// Entry. The interception layer admits the entry with Alloc before
// submitting the hardware work, gives the hardware the entry's proxy
// signal instead of the caller's signal, and then calls EnableDispatch or
// EnableMemcopy to install the caller's completion handler.
//
// When the hardware decrements the proxy signal, the runtime invokes the
// tracker's completion callback on its own notification goroutine. The
// callback:
//
//  1. Waits until the handler has been published by Enable*
//  2. Queries begin/end timing and stamps the notify time
//  3. Copies the timing to the caller's signal and decrements it by one
//  4. Delivers the handler, immediately or in admission order
//
// Admit / Activate Handshake:
//
// Alloc and Enable* are separate because the hardware operation may be
// submitted, and may complete, before the caller has wired its handler.
// The handler is published with an atomic store; the callback spins
// (yielding the processor) until it observes the store.
//
// Delivery Policies:
//
//	Unordered: handler runs as soon as its own operation completes.
//	Ordered:   handlers run in admission order. A completion walks the
//	           live entries from the oldest and delivers every contiguous
//	           completed entry, stopping at the first incomplete one.
//
// The policy is fixed when the Tracker is created.
//
// Locking:
//   - mu guards the live list and sequence assignment (Alloc, Delete)
//   - deliveryMu serializes ordered-delivery walks
//   - Entry completion fields are written once by the callback and read
//     only after observing Entry.completed
package tracker
