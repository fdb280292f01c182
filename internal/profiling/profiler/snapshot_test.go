package profiler

import (
	"slices"
	"testing"
	"time"

	"github.com/btraceio/btrace-sub009/internal/profiling/recorder"
)

func testRecord(name string, inv, self, wall int64) recorder.Record {
	r := recorder.NewRecord(name)
	r.Invocations = inv
	r.SelfTime, r.SelfTimeMin, r.SelfTimeMax = self, self/inv, self/inv
	r.WallTime, r.WallTimeMin, r.WallTimeMax = wall, wall/inv, wall/inv
	return *r
}

func TestSnapshot_Accessors(t *testing.T) {
	start := time.Unix(100, 0)
	end := start.Add(2 * time.Second)
	recs := []recorder.Record{
		testRecord("b", 2, 20, 40),
		testRecord("a", 1, 5, 5),
	}
	s := NewSnapshot(recs, start, end)

	recs[0].BlockName = "mutated"
	if _, ok := s.Lookup("mutated"); ok {
		t.Error("NewSnapshot() did not copy its input")
	}

	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if s.Interval() != 2*time.Second {
		t.Errorf("Interval() = %v, want 2s", s.Interval())
	}
	if got := s.TotalInvocations(); got != 3 {
		t.Errorf("TotalInvocations() = %d, want 3", got)
	}
	if _, ok := s.Lookup("missing"); ok {
		t.Error("Lookup(missing) = found, want not found")
	}

	sorted := s.Sorted()
	if sorted[0].BlockName != "a" || sorted[1].BlockName != "b" {
		t.Errorf("Sorted() = [%s %s], want [a b]", sorted[0].BlockName, sorted[1].BlockName)
	}
	if s.Records()[0].BlockName != "b" {
		t.Error("Sorted() reordered the snapshot itself")
	}
}

func TestSnapshot_GridData(t *testing.T) {
	unset := *recorder.NewRecord("open")
	s := NewSnapshot([]recorder.Record{
		testRecord("work", 4, 40, 100),
		unset,
	}, time.Time{}, time.Time{})

	rows := s.GridData()
	if len(rows) != 3 {
		t.Fatalf("len(GridData()) = %d, want 3", len(rows))
	}
	if !slices.Equal(rows[0], GridHeader) {
		t.Errorf("header = %v, want %v", rows[0], GridHeader)
	}

	tests := []struct {
		name string
		row  []string
		want []string
	}{
		{"unset", rows[1], []string{"open", "1", "0", "0", NotAvailable, NotAvailable, "0", "0", NotAvailable, NotAvailable}},
		{"work", rows[2], []string{"work", "4", "40", "10", "10", "10", "100", "25", "25", "25"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !slices.Equal(tt.row, tt.want) {
				t.Errorf("row = %v, want %v", tt.row, tt.want)
			}
		})
	}
}

func TestMerger_Grow(t *testing.T) {
	var m merger
	m.add([]recorder.Record{testRecord("a", 1, 1, 1)})

	for i := 0; i < 10; i++ {
		m.add([]recorder.Record{testRecord(string(rune('b'+i)), 1, 1, 1), testRecord("a", 1, 1, 1)})
	}

	if len(m.records) != 11 {
		t.Fatalf("len(records) = %d, want 11", len(m.records))
	}
	if m.records[0].Invocations != 11 {
		t.Errorf("a.Invocations = %d, want 11", m.records[0].Invocations)
	}
	for name, slot := range m.index {
		if m.records[slot].BlockName != name {
			t.Errorf("index[%q] = %d points at %q", name, slot, m.records[slot].BlockName)
		}
	}
}
