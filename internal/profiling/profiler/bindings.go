package profiler

import (
	"github.com/btraceio/btrace-sub009/internal/profiling/goroutine"
	"github.com/btraceio/btrace-sub009/internal/profiling/recorder"
)

// binding ties a goroutine to its Recorder.
// gen is the prune generation current when the binding was stored.
type binding struct {
	rec *recorder.Recorder
	gen int64
}

// maybePrune starts a background PruneBindings every pruneInterval new
// bindings. At most one scan runs at a time.
func (p *Profiler) maybePrune() {
	n := p.bound.Add(1)
	if p.pruneInterval == 0 || n%p.pruneInterval != 0 {
		return
	}
	if !p.pruning.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer p.pruning.Store(false)
		p.PruneBindings()
	}()
}

// PruneBindings drops the bindings of goroutines that no longer exist and
// returns how many were dropped.
//
// Algorithm:
//  1. Advance the prune generation
//  2. List live goroutine IDs via runtime.Stack(all=true)
//  3. Delete every binding of an older generation whose ID is not live
//
// A binding of an older generation was stored by a goroutine running before
// step 1, so it is listed in step 2 unless it has exited. Bindings stored
// during the scan carry the new generation and are never dropped by it.
// Goroutine IDs are not handed out in order, so comparing IDs is not enough.
//
// A dropped Recorder stays in snapshots until the garbage collector reclaims
// it.
func (p *Profiler) PruneBindings() int {
	scan := p.gen.Add(1)
	ids := goroutine.LiveIDs()
	live := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		live[id] = struct{}{}
	}

	dropped := 0
	p.bindings.Range(func(key, value any) bool {
		gid := key.(int64)
		if value.(*binding).gen >= scan {
			return true
		}
		if _, ok := live[gid]; !ok && p.bindings.CompareAndDelete(gid, value) {
			dropped++
		}
		return true
	})

	p.log.Debug().
		Int("dropped", dropped).
		Int("goroutines", len(ids)).
		Msg("pruned goroutine bindings")
	return dropped
}

// Bindings returns the number of goroutines currently bound to a Recorder.
func (p *Profiler) Bindings() int {
	n := 0
	p.bindings.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
