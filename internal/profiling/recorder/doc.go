// Package recorder implements the per-goroutine measurement log of the block profiler.
//
// A Recorder turns a stream of entry/exit events emitted by instrumented code into
// aggregated per-block statistics. Each Recorder has exactly one writer (the
// goroutine that owns it) and may be read at any time by one other goroutine
// requesting a snapshot or a reset.
//
// # Overview
//
// The Recorder keeps three structures:
//   - stack: the Records of invocations that have not returned yet
//   - measured: a flat log of Records; the prefix [0, lastIndex) is compacted
//     (one canonical Record per block name), the tail is raw
//   - delayed: a FIFO of raw events the owner could not apply because a
//     reader held the log at that moment
//
// Self time is computed incrementally. When a block exits, its duration is
// subtracted from the self time of the enclosing frame, so a parent never
// counts time spent in its children. Wall time of a recursive invocation of a
// block already open further down the stack is forced to zero so that the
// outermost invocation alone carries it.
//
// # Concurrency
//
// Access to the log is coordinated by one atomic status word:
//
//	0 idle       arrays are quiescent
//	1 applying   the owner is applying an event
//	2 snapshot   a reader is compacting and copying the log
//	3 queuing    a deferred event is being queued or drained
//	4 resetting  a reader is discarding the log
//
// Idle is the only state from which applying, snapshot or resetting are
// entered. Queuing entered from applying or snapshot always returns to the
// state it came from; queuing entered from idle is used to drain the queue.
//
// The owner never waits for a reader to finish. If a snapshot is in progress
// the event is pushed onto the delayed queue and applied later, either by the
// owner's next call or by the next reader before it takes the log.
//
// # Usage
//
//	r := recorder.New(600)
//
//	// owner goroutine
//	r.RecordEntry("db.Query")
//	r.RecordExit("db.Query", elapsed.Nanoseconds())
//
//	// any goroutine
//	recs := r.GetRecords(false)
package recorder
