package profiler

import (
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/btraceio/btrace-sub009/internal/profiling/recorder"
)

// GridHeader is the header row of GridData.
var GridHeader = []string{
	"Block",
	"Invocations",
	"SelfTime.Total",
	"SelfTime.Avg",
	"SelfTime.Min",
	"SelfTime.Max",
	"WallTime.Total",
	"WallTime.Avg",
	"WallTime.Min",
	"WallTime.Max",
}

// NotAvailable is printed in place of a min or max that was never set.
const NotAvailable = "N/A"

// Snapshot is an immutable set of merged Records covering one time window.
type Snapshot struct {
	records     []recorder.Record
	windowStart time.Time
	windowEnd   time.Time
}

// NewSnapshot builds a Snapshot from records. The slice is copied.
func NewSnapshot(records []recorder.Record, windowStart, windowEnd time.Time) *Snapshot {
	return &Snapshot{
		records:     slices.Clone(records),
		windowStart: windowStart,
		windowEnd:   windowEnd,
	}
}

// Records returns a copy of the merged Records in merge order.
func (s *Snapshot) Records() []recorder.Record {
	return slices.Clone(s.records)
}

// Sorted returns a copy of the merged Records ordered by block name.
func (s *Snapshot) Sorted() []recorder.Record {
	out := s.Records()
	recorder.SortByName(out)
	return out
}

// Len returns the number of distinct blocks.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// Lookup returns the Record of the named block.
func (s *Snapshot) Lookup(name string) (recorder.Record, bool) {
	for _, r := range s.records {
		if r.BlockName == name {
			return r, true
		}
	}
	return recorder.Record{}, false
}

// TotalInvocations returns the sum of invocations over all blocks.
func (s *Snapshot) TotalInvocations() int64 {
	var n int64
	for _, r := range s.records {
		n += r.Invocations
	}
	return n
}

// WindowStart returns the start of the covered window.
func (s *Snapshot) WindowStart() time.Time { return s.windowStart }

// WindowEnd returns the time the Snapshot was taken.
func (s *Snapshot) WindowEnd() time.Time { return s.windowEnd }

// Interval returns the length of the covered window.
func (s *Snapshot) Interval() time.Duration {
	return s.windowEnd.Sub(s.windowStart)
}

// GridData returns the Snapshot as rows of text cells, header first, blocks
// ordered by name. Times are in nanoseconds.
func (s *Snapshot) GridData() [][]string {
	rows := make([][]string, 0, len(s.records)+1)
	rows = append(rows, slices.Clone(GridHeader))
	for _, r := range s.Sorted() {
		rows = append(rows, []string{
			r.BlockName,
			strconv.FormatInt(r.Invocations, 10),
			strconv.FormatInt(r.SelfTime, 10),
			strconv.FormatInt(r.SelfTimeAvg(), 10),
			minCell(r.SelfTimeMin),
			maxCell(r.SelfTimeMax),
			strconv.FormatInt(r.WallTime, 10),
			strconv.FormatInt(r.WallTimeAvg(), 10),
			minCell(r.WallTimeMin),
			maxCell(r.WallTimeMax),
		})
	}
	return rows
}

func minCell(v int64) string {
	if v == math.MaxInt64 {
		return NotAvailable
	}
	return strconv.FormatInt(v, 10)
}

func maxCell(v int64) string {
	if v <= 0 {
		return NotAvailable
	}
	return strconv.FormatInt(v, 10)
}
