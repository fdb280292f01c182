// Package profiler merges per-goroutine Recorders into immutable Snapshots.
//
// A Profiler observes every Recorder created through it without owning it:
// the registry holds weak pointers, so a Recorder whose goroutine has exited
// and dropped its binding is reclaimed by the garbage collector and silently
// disappears from later snapshots.
//
// # Goroutine binding
//
// RecordEntry and RecordExit locate the calling goroutine's Recorder by
// goroutine ID. The binding (ID → Recorder) is the only strong reference the
// Profiler keeps; bindings of exited goroutines are dropped by PruneBindings,
// which also runs in the background every WithPruneInterval new bindings.
//
// Goroutines that record at high frequency should fetch their Recorder once
// with Recorder and call it directly, skipping the ID lookup per event.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Snapshot and Reset are serialized
// with each other so every Recorder sees at most one reader at a time.
package profiler

import (
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/rs/zerolog"

	"github.com/btraceio/btrace-sub009/internal/profiling/goroutine"
	"github.com/btraceio/btrace-sub009/internal/profiling/recorder"
)

// Profiler is the registry of Recorders and the producer of Snapshots.
type Profiler struct {
	expectedBlocks int
	pruneInterval  int64
	now            func() time.Time
	log            zerolog.Logger
	start          time.Time

	regMu     sync.Mutex
	recorders []weak.Pointer[recorder.Recorder]

	bindings sync.Map // int64 goroutine ID → *binding
	bound    atomic.Int64
	pruning  atomic.Bool
	gen      atomic.Int64

	snapMu sync.Mutex
	lastTs time.Time
	last   atomic.Pointer[Snapshot]
}

// New creates a Profiler. The first snapshot window starts at creation time.
func New(opts ...Option) *Profiler {
	p := &Profiler{
		expectedBlocks: DefaultExpectedBlocks,
		pruneInterval:  DefaultPruneInterval,
		now:            time.Now,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.start = p.now()
	p.lastTs = p.start
	return p
}

// StartTime returns the creation time of the Profiler.
func (p *Profiler) StartTime() time.Time {
	return p.start
}

// ExpectedBlocks returns the size hint passed to new Recorders.
func (p *Profiler) ExpectedBlocks() int {
	return p.expectedBlocks
}

// NewRecorder creates a Recorder and registers it weakly.
//
// The caller owns the returned Recorder: it stays in snapshots for as long as
// the caller keeps a reference, and only one goroutine may record into it.
func (p *Profiler) NewRecorder() *recorder.Recorder {
	r := recorder.New(p.expectedBlocks)

	p.regMu.Lock()
	p.recorders = append(p.recorders, weak.Make(r))
	n := len(p.recorders)
	p.regMu.Unlock()

	p.log.Debug().Int("registered", n).Msg("recorder created")
	return r
}

// Recorder returns the Recorder bound to the calling goroutine, creating and
// registering it on first use.
func (p *Profiler) Recorder() *recorder.Recorder {
	gid := goroutine.ID()
	if v, ok := p.bindings.Load(gid); ok {
		return v.(*binding).rec
	}

	// Only this goroutine stores under its own ID. The generation is read
	// while the goroutine is running, see PruneBindings.
	r := p.NewRecorder()
	p.bindings.Store(gid, &binding{rec: r, gen: p.gen.Load()})
	p.maybePrune()
	return r
}

// RecordEntry records entry into the named block on the calling goroutine.
func (p *Profiler) RecordEntry(name string) {
	p.Recorder().RecordEntry(name)
}

// RecordExit records exit from the named block on the calling goroutine after
// duration nanoseconds.
func (p *Profiler) RecordExit(name string, duration int64) {
	p.Recorder().RecordExit(name, duration)
}

// Recorders returns the number of registered Recorders still alive.
func (p *Profiler) Recorders() int {
	return len(p.live())
}

// live returns strong references to every registered Recorder that has not
// been collected, and drops the weak pointers of collected ones.
func (p *Profiler) live() []*recorder.Recorder {
	p.regMu.Lock()
	defer p.regMu.Unlock()

	out := make([]*recorder.Recorder, 0, len(p.recorders))
	kept := p.recorders[:0]
	for _, wp := range p.recorders {
		if r := wp.Value(); r != nil {
			out = append(out, r)
			kept = append(kept, wp)
		}
	}
	clear(p.recorders[len(kept):])
	p.recorders = kept
	return out
}

// Snapshot merges the records of every live Recorder into a new Snapshot.
//
// The window spans from the previous Snapshot (or the Profiler's creation)
// to now. When reset is true each Recorder discards what it returned, so the
// next window starts empty. The result is also stored as the last valid
// Snapshot.
func (p *Profiler) Snapshot(reset bool) *Snapshot {
	p.snapMu.Lock()
	defer p.snapMu.Unlock()

	var m merger
	for _, r := range p.live() {
		m.add(r.GetRecords(reset))
	}

	now := p.now()
	snap := &Snapshot{
		records:     m.records,
		windowStart: p.lastTs,
		windowEnd:   now,
	}
	p.lastTs = now
	p.last.Store(snap)
	return snap
}

// SnapshotAndReset is Snapshot(true).
func (p *Profiler) SnapshotAndReset() *Snapshot {
	return p.Snapshot(true)
}

// Reset discards the closed invocations of every live Recorder.
func (p *Profiler) Reset() {
	p.snapMu.Lock()
	defer p.snapMu.Unlock()

	for _, r := range p.live() {
		r.Reset()
	}
}

// LastSnapshot returns the most recent Snapshot without computing a new one,
// or nil if none was taken yet.
func (p *Profiler) LastSnapshot() *Snapshot {
	return p.last.Load()
}
