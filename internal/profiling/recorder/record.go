package recorder

import (
	"fmt"
	"math"
	"sort"
)

// unset is the initial value of the min accumulators.
// A min still equal to unset means no closed invocation was folded in yet.
const unset = math.MaxInt64

// noRedirect marks a Record that has not been folded into a canonical slot.
const noRedirect = -1

// Record holds the accumulated statistics of one named block.
//
// A Record is created on block entry, completed on the matching exit and
// later folded by compaction into the canonical Record for its name.
// All times are in the unit supplied by the caller (nanoseconds).
//
// Layout:
//   - BlockName: identity key within one log
//   - Invocations: number of closed invocations folded into this Record
//   - SelfTime/WallTime: accumulated self and wall time
//   - *Min/*Max: extremes over the folded invocations
//   - OnStack: true while the invocation has not returned yet
//
// Records handed out in a Snapshot are detached copies; mutating them
// never affects the live log.
type Record struct {
	BlockName   string `json:"block"`
	Invocations int64  `json:"invocations"`

	SelfTime    int64 `json:"selfTime"`
	SelfTimeMin int64 `json:"selfTimeMin"`
	SelfTimeMax int64 `json:"selfTimeMax"`

	WallTime    int64 `json:"wallTime"`
	WallTimeMin int64 `json:"wallTimeMin"`
	WallTimeMax int64 `json:"wallTimeMax"`

	OnStack bool `json:"-"`

	// redirect is the canonical slot this Record was folded into during
	// compaction, or noRedirect. Only meaningful inside one compaction pass.
	redirect int
}

// NewRecord creates a Record for one invocation of the named block.
func NewRecord(blockName string) *Record {
	return &Record{
		BlockName:   blockName,
		Invocations: 1,
		SelfTimeMin: unset,
		WallTimeMin: unset,
		redirect:    noRedirect,
	}
}

// Merge folds the statistics of o into r.
//
// Invocations, self time and wall time are summed; min and max are folded.
// The block names are not compared, callers merge only same-named Records.
func (r *Record) Merge(o *Record) {
	r.Invocations += o.Invocations
	r.SelfTime += o.SelfTime
	r.WallTime += o.WallTime
	r.SelfTimeMin = min(r.SelfTimeMin, o.SelfTimeMin)
	r.SelfTimeMax = max(r.SelfTimeMax, o.SelfTimeMax)
	r.WallTimeMin = min(r.WallTimeMin, o.WallTimeMin)
	r.WallTimeMax = max(r.WallTimeMax, o.WallTimeMax)
}

// Duplicate returns a detached copy of r.
//
// The copy is never on the stack and carries no redirect, so a reader
// holding it can not observe later mutation of the live log.
func (r *Record) Duplicate() Record {
	d := *r
	d.OnStack = false
	d.redirect = noRedirect
	return d
}

// Equal reports whether r and o describe the same accumulated data.
// Only the name, the totals and the invocation count are compared.
func (r Record) Equal(o Record) bool {
	return r.BlockName == o.BlockName &&
		r.WallTime == o.WallTime &&
		r.SelfTime == o.SelfTime &&
		r.Invocations == o.Invocations
}

// SelfTimeAvg returns the average self time per invocation.
func (r Record) SelfTimeAvg() int64 {
	if r.Invocations == 0 {
		return 0
	}
	return r.SelfTime / r.Invocations
}

// WallTimeAvg returns the average wall time per invocation.
func (r Record) WallTimeAvg() int64 {
	if r.Invocations == 0 {
		return 0
	}
	return r.WallTime / r.Invocations
}

// HasMin reports whether at least one invocation contributed to the min values.
func (r Record) HasMin() bool {
	return r.SelfTimeMin != unset
}

func (r Record) String() string {
	return fmt.Sprintf("Record{block=%s, invocations=%d, selfTime=%d [%d..%d], wallTime=%d [%d..%d], onStack=%t}",
		r.BlockName, r.Invocations,
		r.SelfTime, r.SelfTimeMin, r.SelfTimeMax,
		r.WallTime, r.WallTimeMin, r.WallTimeMax,
		r.OnStack)
}

// SortByName orders records by block name in place.
func SortByName(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].BlockName < recs[j].BlockName
	})
}
