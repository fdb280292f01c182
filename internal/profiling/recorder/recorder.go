package recorder

import (
	"runtime"
	"sync/atomic"
)

const (
	// initialStackSize is the starting capacity of the call stack.
	initialStackSize = 200

	// initialStackBoundary is the stack depth that triggers growth.
	initialStackBoundary = 150

	// bufferShift turns the expected block count into the steady-state log size.
	bufferShift = 8

	// spinBeforeYield bounds the busy wait on a transient queuing state
	// before the waiter starts yielding its processor.
	spinBeforeYield = 64
)

// Recorder accumulates entry/exit events of one goroutine.
//
// Exactly one goroutine (the owner) may call RecordEntry and RecordExit.
// GetRecords and Reset may be called from any goroutine, including the owner.
//
// Thread Safety:
//   - The owner's calls never wait for a reader. While a reader holds the
//     log, the owner defers its event into the delayed queue.
//   - A reader waits only for the owner's current event to finish, which is
//     bounded by one entry or exit.
//   - At most one reader should use a Recorder at a time. Concurrent readers
//     are serialized by the status word but may observe each other's resets.
type Recorder struct {
	status  atomic.Int32
	pending atomic.Int32

	expectedBlocks int
	steadySize     int

	stack         []*Record
	stackPtr      int
	stackBoundary int

	measured    []*Record
	measuredPtr int
	lastIndex   int

	index     map[string]int
	carryOver int64

	delayed eventQueue
}

// New creates a Recorder sized for expectedBlocks distinct block names.
// Values below 1 are treated as 1.
func New(expectedBlocks int) *Recorder {
	if expectedBlocks < 1 {
		expectedBlocks = 1
	}
	steady := expectedBlocks << bufferShift
	return &Recorder{
		expectedBlocks: expectedBlocks,
		steadySize:     steady,
		stack:          make([]*Record, initialStackSize),
		stackPtr:       -1,
		stackBoundary:  initialStackBoundary,
		measured:       make([]*Record, steady),
		index:          make(map[string]int, expectedBlocks),
	}
}

// ExpectedBlocks returns the block count the Recorder was sized for.
func (r *Recorder) ExpectedBlocks() int {
	return r.expectedBlocks
}

// RecordEntry records that the owner entered the named block.
func (r *Recorder) RecordEntry(name string) {
	r.submit(event{name: name})
}

// RecordExit records that the owner left the named block after duration
// nanoseconds.
func (r *Recorder) RecordExit(name string, duration int64) {
	r.submit(event{name: name, duration: duration, exit: true})
}

// submit applies ev directly when the log is idle, otherwise defers it.
//
// Algorithm:
//  1. CAS idle→applying. On success apply queued events, then ev, then
//     return to idle.
//  2. Otherwise wait out a transient queuing state.
//  3. CAS applying→queuing or snapshot→queuing. On success queue ev and
//     restore the previous state.
//  4. Otherwise (resetting, or the state moved) yield and retry.
func (r *Recorder) submit(ev event) {
	for {
		if r.status.CompareAndSwap(int32(StatusIdle), int32(StatusApplying)) {
			if r.delayed.len() > 0 {
				r.drainLocked()
			}
			r.apply(ev)
			r.status.Store(int32(StatusIdle))
			return
		}

		r.waitWhile(StatusQueuing)

		for _, from := range [...]Status{StatusApplying, StatusSnapshot} {
			if r.status.CompareAndSwap(int32(from), int32(StatusQueuing)) {
				r.delayed.push(ev)
				r.pending.Add(1)
				r.status.Store(int32(from))
				return
			}
		}

		runtime.Gosched()
	}
}

// waitWhile busy-waits while the status equals s.
func (r *Recorder) waitWhile(s Status) {
	for i := 0; r.status.Load() == int32(s); i++ {
		if i >= spinBeforeYield {
			runtime.Gosched()
		}
	}
}

// drainLocked applies every deferred event.
// The caller holds the status word in applying or in queuing entered from idle.
func (r *Recorder) drainLocked() {
	n := r.delayed.drain(r.apply)
	r.pending.Add(int32(-n))
}

func (r *Recorder) apply(ev event) {
	if ev.exit {
		r.applyExit(ev.name, ev.duration)
	} else {
		r.applyEntry(ev.name)
	}
}

func (r *Recorder) applyEntry(name string) {
	rec := NewRecord(name)
	r.appendMeasured(rec)
	r.push(rec)
	rec.OnStack = true
	r.carryOver = 0
}

// applyExit closes the top-of-stack invocation.
//
// Formulas:
//
//	wall  = d           (0 if name is still open further down the stack)
//	self += d - carryOver
//	parent.self -= d    (or carryOver = d when there is no parent)
//
// An exit with an empty stack synthesizes a detached Record for name.
func (r *Recorder) applyExit(name string, duration int64) {
	var rec *Record
	if r.stackPtr >= 0 {
		rec = r.stack[r.stackPtr]
		r.stack[r.stackPtr] = nil
		r.stackPtr--
		rec.OnStack = false
	} else {
		rec = NewRecord(name)
		r.appendMeasured(rec)
	}

	rec.WallTime = duration
	rec.SelfTime += duration - r.carryOver
	for i := 0; i <= r.stackPtr; i++ {
		if r.stack[i].BlockName == name {
			rec.WallTime = 0
			break
		}
	}
	rec.SelfTimeMin, rec.SelfTimeMax = rec.SelfTime, rec.SelfTime
	rec.WallTimeMin, rec.WallTimeMax = rec.WallTime, rec.WallTime

	if r.stackPtr >= 0 {
		r.stack[r.stackPtr].SelfTime -= duration
	} else {
		r.carryOver = duration
	}
}

func (r *Recorder) push(rec *Record) {
	r.stackPtr++
	if r.stackPtr > r.stackBoundary {
		grown := make([]*Record, len(r.stack)*3/2)
		copy(grown, r.stack)
		r.stack = grown
		r.stackBoundary = r.stackBoundary * 3 / 2
	}
	r.stack[r.stackPtr] = rec
}

// appendMeasured adds rec to the log, compacting first when the log is full.
// Compaction always leaves at least one free slot.
func (r *Recorder) appendMeasured(rec *Record) {
	if r.measuredPtr == len(r.measured) {
		r.compact()
	}
	r.measured[r.measuredPtr] = rec
	r.measuredPtr++
}

// compact folds the raw tail of the log into the canonical prefix.
//
// Algorithm:
//  1. Walk [lastIndex, measuredPtr). Open Records are skipped. A closed
//     Record whose name has no canonical slot becomes one at the next
//     compacted index; otherwise it is merged into the slot and redirected.
//  2. Replace redirected stack entries with their canonical Record.
//  3. Grow the log when the compacted prefix plus the open frames would
//     fill it (×1.25, ×4 if rounding makes that a no-op, plus the depth).
//  4. Re-append the open frames after the compacted prefix.
//
// Invariant: every open frame lives in the tail, so after step 4 the tail
// consists of exactly the open frames.
func (r *Recorder) compact() {
	next := r.lastIndex
	for i := r.lastIndex; i < r.measuredPtr; i++ {
		rec := r.measured[i]
		if rec.OnStack {
			continue
		}
		if slot, ok := r.index[rec.BlockName]; ok {
			r.measured[slot].Merge(rec)
			rec.redirect = slot
			continue
		}
		r.index[rec.BlockName] = next
		r.measured[next] = rec
		next++
	}

	// Step 1 skips open Records, so a stack entry is never redirected and
	// this loop leaves the stack unchanged.
	depth := r.stackPtr + 1
	for j := 0; j < depth; j++ {
		if slot := r.stack[j].redirect; slot != noRedirect {
			r.stack[j] = r.measured[slot]
		}
	}

	oldPtr := r.measuredPtr
	if next+depth >= len(r.measured) {
		size := (len(r.measured) * 5) >> 2
		if size == len(r.measured) {
			size = len(r.measured) << 2
		}
		grown := make([]*Record, size+depth)
		copy(grown, r.measured[:next])
		r.measured = grown
		oldPtr = 0
	}

	for j := 0; j < depth; j++ {
		r.measured[next+j] = r.stack[j]
	}
	r.lastIndex = next
	r.measuredPtr = next + depth
	if oldPtr > r.measuredPtr {
		clear(r.measured[r.measuredPtr:oldPtr])
	}
}

// acquire takes the log for a reader in state to.
// Deferred events are applied first so the reader sees every event issued
// before the call.
func (r *Recorder) acquire(to Status) {
	for {
		if r.pending.Load() > 0 {
			if r.status.CompareAndSwap(int32(StatusIdle), int32(StatusQueuing)) {
				r.drainLocked()
				r.status.Store(int32(StatusIdle))
			}
		} else if r.status.CompareAndSwap(int32(StatusIdle), int32(to)) {
			return
		}
		runtime.Gosched()
	}
}

// release hands the log back.
// The owner may be queuing on top of a snapshot, so this waits for it.
func (r *Recorder) release(from Status) {
	for !r.status.CompareAndSwap(int32(from), int32(StatusIdle)) {
		r.waitWhile(StatusQueuing)
	}
}

// GetRecords compacts the log and returns detached copies of the canonical
// Records, one per block name with at least one closed invocation.
//
// Open invocations are not included; they are reported once they close.
// When reset is true the log is discarded in the same critical section, so
// no event is reported twice or lost between the copy and the reset.
func (r *Recorder) GetRecords(reset bool) []Record {
	r.acquire(StatusSnapshot)

	r.compact()
	out := make([]Record, r.lastIndex)
	for i := range out {
		out[i] = r.measured[i].Duplicate()
	}
	if reset {
		r.resetLocked()
	}

	r.release(StatusSnapshot)
	return out
}

// Reset discards all closed invocations. Open invocations survive and are
// accounted normally when they close.
func (r *Recorder) Reset() {
	r.acquire(StatusResetting)
	r.resetLocked()
	r.release(StatusResetting)
}

// resetLocked rebuilds the log with the open frames at its head.
// Open frames form the raw tail, never the compacted prefix, so a later
// compaction folds them in once they close.
func (r *Recorder) resetLocked() {
	depth := r.stackPtr + 1
	measured := make([]*Record, r.steadySize+depth)
	copy(measured, r.stack[:depth])
	r.measured = measured
	r.measuredPtr = depth
	r.lastIndex = 0
	clear(r.index)
	r.carryOver = 0
}

// Depth returns the number of open invocations.
// Only the owner, or a caller that knows the owner is quiescent, may use it.
func (r *Recorder) Depth() int {
	return r.stackPtr + 1
}

// Pending returns the number of deferred events not applied yet.
func (r *Recorder) Pending() int {
	return int(r.pending.Load())
}

// Status returns the current value of the status word.
func (r *Recorder) Status() Status {
	return Status(r.status.Load())
}
