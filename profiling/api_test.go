package profiling

import (
	"sync"
	"testing"
	"time"

	"golang.org/x/mod/semver"
)

func TestMeasure_Nested(t *testing.T) {
	SnapshotAndReset()
	t.Cleanup(func() { Reset() })

	func() {
		defer Measure("test.outer")()
		func() {
			defer Measure("test.inner")()
			time.Sleep(time.Millisecond)
		}()
	}()

	snap := SnapshotAndReset()
	outer, ok := snap.Lookup("test.outer")
	if !ok {
		t.Fatal("test.outer missing")
	}
	inner, ok := snap.Lookup("test.inner")
	if !ok {
		t.Fatal("test.inner missing")
	}
	if inner.WallTime < int64(time.Millisecond) {
		t.Errorf("inner wall = %v, want >= 1ms", time.Duration(inner.WallTime))
	}
	if outer.WallTime < inner.WallTime {
		t.Errorf("outer wall %d < inner wall %d", outer.WallTime, inner.WallTime)
	}
	if outer.SelfTime != outer.WallTime-inner.WallTime {
		t.Errorf("outer self = %d, want wall %d - inner %d", outer.SelfTime, outer.WallTime, inner.WallTime)
	}
}

func TestRecordExit_Duration(t *testing.T) {
	SnapshotAndReset()
	t.Cleanup(func() { Reset() })

	RecordEntry("test.fixed")
	RecordExit("test.fixed", 3*time.Microsecond)

	rec, ok := Snapshot().Lookup("test.fixed")
	if !ok {
		t.Fatal("test.fixed missing")
	}
	if rec.WallTime != 3000 {
		t.Errorf("wall = %d, want 3000", rec.WallTime)
	}
	if LastSnapshot() == nil {
		t.Error("LastSnapshot() = nil")
	}
}

func TestDisable(t *testing.T) {
	SnapshotAndReset()
	Disable()
	t.Cleanup(Enable)

	RecordEntry("test.off")
	RecordExit("test.off", time.Millisecond)

	if Enabled() {
		t.Error("Enabled() = true")
	}
	if _, ok := Snapshot().Lookup("test.off"); ok {
		t.Error("block recorded while disabled")
	}
}

func TestConcurrentGoroutines(t *testing.T) {
	SnapshotAndReset()
	t.Cleanup(func() { Reset() })

	const goroutines, iterations = 8, 500
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				RecordEntry("test.worker")
				RecordExit("test.worker", time.Microsecond)
			}
		}()
	}
	wg.Wait()

	rec, ok := Snapshot().Lookup("test.worker")
	if !ok {
		t.Fatal("test.worker missing")
	}
	if rec.Invocations != goroutines*iterations {
		t.Errorf("invocations = %d, want %d", rec.Invocations, goroutines*iterations)
	}
}

func TestNewProfiler_Independent(t *testing.T) {
	p := NewProfiler(4)
	p.RecordEntry("own")
	p.RecordExit("own", 1)

	if _, ok := Snapshot().Lookup("own"); ok {
		t.Error("independent profiler leaked into the default one")
	}
	if p.Snapshot(false).Len() != 1 {
		t.Error("independent profiler lost its block")
	}
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if !semver.IsValid("v" + info.Version) {
		t.Errorf("Version %q is not semantic", info.Version)
	}
	if semver.Major("v"+Version) != "v0" || VersionMajor != 0 {
		t.Errorf("major version mismatch: %q vs %d", Version, VersionMajor)
	}
	if !semver.IsValid(info.Schema) {
		t.Errorf("Schema %q is not semantic", info.Schema)
	}
}
