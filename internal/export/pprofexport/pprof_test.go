package pprofexport

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/pprof/profile"

	"github.com/btraceio/btrace-sub009/internal/profiling/profiler"
	"github.com/btraceio/btrace-sub009/internal/profiling/recorder"
)

func testSnapshot() *profiler.Snapshot {
	start := time.Unix(1700000000, 0)
	return profiler.NewSnapshot([]recorder.Record{
		{BlockName: "handler", Invocations: 2, SelfTime: 300, WallTime: 1000},
		{BlockName: "db.Query", Invocations: 5, SelfTime: 700, WallTime: 700},
	}, start, start.Add(time.Minute))
}

func TestConvert(t *testing.T) {
	p := Convert(testSnapshot())

	if err := p.CheckValid(); err != nil {
		t.Fatalf("CheckValid() error = %v", err)
	}
	if len(p.Sample) != 2 {
		t.Fatalf("len(Sample) = %d, want 2", len(p.Sample))
	}
	if p.DurationNanos != int64(time.Minute) {
		t.Errorf("DurationNanos = %d, want %d", p.DurationNanos, int64(time.Minute))
	}

	// Samples follow block name order.
	s := p.Sample[0]
	if got := s.Location[0].Line[0].Function.Name; got != "db.Query" {
		t.Errorf("first sample function = %q, want db.Query", got)
	}
	want := []int64{5, 700, 700}
	for i, v := range want {
		if s.Value[i] != v {
			t.Errorf("Value[%d] = %d, want %d", i, s.Value[i], v)
		}
	}
}

func TestConvert_NegativeSelf(t *testing.T) {
	snap := profiler.NewSnapshot([]recorder.Record{
		{BlockName: "x", Invocations: 1, SelfTime: -5, WallTime: 10},
	}, time.Time{}, time.Time{})

	if got := Convert(snap).Sample[0].Value[SelfIndex]; got != 0 {
		t.Errorf("self value = %d, want 0", got)
	}
}

func TestWrite_Parse(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testSnapshot()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	p, err := profile.Parse(&buf)
	if err != nil {
		t.Fatalf("profile.Parse() error = %v", err)
	}
	if len(p.SampleType) != 3 || p.SampleType[WallIndex].Type != "wall" {
		t.Errorf("SampleType = %v, want invocations/self/wall", p.SampleType)
	}

	var wall int64
	for _, s := range p.Sample {
		wall += s.Value[WallIndex]
	}
	if wall != 1700 {
		t.Errorf("total wall = %d, want 1700", wall)
	}
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, profiler.NewSnapshot(nil, time.Time{}, time.Time{})); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Write() produced no bytes for an empty snapshot")
	}
}
