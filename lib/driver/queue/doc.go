// Package queue provides a driver that coalesces writes in front of any other
// driver.Driver.
//
// Writes (Set, SetMany, SetRaw) and removes are not sent to the wrapped backend
// right away. They are recorded in a pending table that holds at most one
// operation per key, and flushed to the backend in batches. Reads consult the
// pending table first, so a process always observes its own writes even before
// they reach the backend. Operations of a running flush stay visible to reads
// until the backend calls of that flush have returned.
//
// Flush Triggers:
//
//   - Debounce: the first write into an idle queue arms a one-shot timer of
//     FlushInterval. When it fires the table is flushed.
//   - Batch size: as soon as BatchSize keys are pending the timer is cancelled and
//     the table is flushed immediately.
//   - Hard cap: reaching MaxQueueSize always forces a flush.
//   - Explicit: Flush, Clear and Dispose drain the table and return backend errors.
//
// The triggers never run two flushes at once. A flush that finds another flush
// in progress returns without side effects; writes that arrive during a flush
// go into a fresh table and re-arm the timer when the flush ends.
//
// Flush Execution:
//
// A flush sweeps and clears the whole table before the first backend call and
// orders the operations by enqueue time. Sets are delivered first: as one
// SetMany call if the backend supports it, more than one set is pending and
// none of them is raw, otherwise as concurrent single calls (raw values go to
// SetRaw when the backend has it). Removes are always delivered as concurrent
// single calls. Nothing is ordered across keys within one flush.
//
// Merge Policy:
//
// With MergeUpdates (the default) a new write for a queued key replaces the
// queued operation, so the backend only sees the last one. Without it the
// first queued operation wins until the key has been flushed.
//
// Delivery Guarantees:
//
// Pending operations live in memory only and are lost on a crash. They are also
// lost when the backend call of a flush fails, because the table is cleared
// before the backend is called: at least once on success, not at all on
// failure. Failures of background flushes are logged and counted in the
// qkv_queue_flush_errors_total metric. Failures of Flush, Clear and Dispose are
// returned to the caller.
//
// Capabilities:
//
// The queue advertises exactly the features of its backend. Writes the backend
// can not perform are silently ignored, GetRaw falls back to Get, and Clear
// falls back to listing and removing keys.
//
// Example:
//
//	backend := memory.NewMemoryDriver(nil)
//	q := queue.New(backend, nil) // default options
//	defer q.Dispose()
//
//	_ = q.Set("user:1", []byte("alice"), nil) // returns immediately
//	v, ok, _ := q.Get("user:1", nil)          // "alice", served from the queue
package queue
