// Package pprofexport converts Snapshots to the pprof profile format so they
// can be inspected with go tool pprof.
package pprofexport

import (
	"fmt"
	"io"

	"github.com/google/pprof/profile"

	"github.com/btraceio/btrace-sub009/internal/profiling/profiler"
)

// Sample value indexes.
const (
	InvocationsIndex = iota
	SelfIndex
	WallIndex
)

// Convert builds a profile with one sample per block.
//
// Each block becomes a function and a single-frame location. Sample values
// are [invocations count, self nanoseconds, wall nanoseconds]; self time is
// the default sample type. Negative self time, possible for a block whose
// children outlived a reset, is clamped to zero.
func Convert(snap *profiler.Snapshot) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "invocations", Unit: "count"},
			{Type: "self", Unit: "nanoseconds"},
			{Type: "wall", Unit: "nanoseconds"},
		},
		DefaultSampleType: "self",
		PeriodType:        &profile.ValueType{Type: "wall", Unit: "nanoseconds"},
		Period:            1,
		TimeNanos:         snap.WindowStart().UnixNano(),
		DurationNanos:     snap.Interval().Nanoseconds(),
	}

	for i, r := range snap.Sorted() {
		id := uint64(i + 1)
		fn := &profile.Function{
			ID:         id,
			Name:       r.BlockName,
			SystemName: r.BlockName,
		}
		loc := &profile.Location{
			ID:   id,
			Line: []profile.Line{{Function: fn}},
		}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{r.Invocations, max(r.SelfTime, 0), r.WallTime},
		})
	}
	return p
}

// Write encodes snap as a gzipped pprof profile.
func Write(w io.Writer, snap *profiler.Snapshot) error {
	p := Convert(snap)
	if err := p.CheckValid(); err != nil {
		return fmt.Errorf("pprof profile: %w", err)
	}
	if err := p.Write(w); err != nil {
		return fmt.Errorf("write pprof profile: %w", err)
	}
	return nil
}
