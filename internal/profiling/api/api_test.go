package api

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/btraceio/btrace-sub009/internal/config"
	"github.com/btraceio/btrace-sub009/internal/profiling/profiler"
	"github.com/btraceio/btrace-sub009/internal/report"
)

// isolate restores the package globals when the test ends and captures the
// Fini summary.
func isolate(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut := summaryOut
	summaryOut = &buf
	t.Cleanup(func() {
		mu.Lock()
		stopLocked()
		mu.Unlock()
		summaryOut = prevOut
		prof.Store(profiler.New())
		enabled.Store(true)
	})
	return &buf
}

func quietConfig() config.Config {
	cfg := config.Default()
	cfg.LogLevel = "error"
	return cfg
}

func pair(name string, d int64) {
	RecordEntry(name)
	RecordExit(name, d)
}

// === Hot path ===

func TestRecord_Default(t *testing.T) {
	isolate(t)
	if err := Init(quietConfig()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	pair("a", 10)
	pair("a", 30)

	r, ok := Snapshot().Lookup("a")
	if !ok {
		t.Fatal("block a missing from snapshot")
	}
	if r.Invocations != 2 || r.WallTime != 40 {
		t.Errorf("a = %d invocations / %d wall, want 2 / 40", r.Invocations, r.WallTime)
	}
}

func TestRecord_Disabled(t *testing.T) {
	isolate(t)
	if err := Init(quietConfig()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Disable()
	if Enabled() {
		t.Fatal("Enabled() = true after Disable()")
	}
	pair("ignored", 5)
	if n := Snapshot().Len(); n != 0 {
		t.Errorf("snapshot has %d blocks while disabled, want 0", n)
	}

	Enable()
	pair("counted", 5)
	if _, ok := Snapshot().Lookup("counted"); !ok {
		t.Error("block recorded after Enable() missing")
	}
}

func TestSnapshotAndReset(t *testing.T) {
	isolate(t)
	if err := Init(quietConfig()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	pair("x", 7)
	if got := SnapshotAndReset().TotalInvocations(); got != 1 {
		t.Errorf("SnapshotAndReset() invocations = %d, want 1", got)
	}
	if got := Snapshot().Len(); got != 0 {
		t.Errorf("snapshot after reset has %d blocks, want 0", got)
	}

	pair("y", 7)
	Reset()
	if got := Snapshot().Len(); got != 0 {
		t.Errorf("snapshot after Reset() has %d blocks, want 0", got)
	}
	if LastSnapshot() == nil {
		t.Error("LastSnapshot() = nil after snapshots")
	}
}

// === Init / Fini ===

func TestInit_Invalid(t *testing.T) {
	isolate(t)
	before := Default()

	cfg := quietConfig()
	cfg.ExpectedBlocks = 0
	if err := Init(cfg); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("Init() error = %v, want ErrInvalid", err)
	}
	if Default() != before {
		t.Error("failed Init() replaced the default Profiler")
	}
}

func TestInit_ReplacesProfiler(t *testing.T) {
	isolate(t)
	before := Default()

	cfg := quietConfig()
	cfg.ExpectedBlocks = 7
	cfg.Enabled = false
	if err := Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if Default() == before {
		t.Error("Init() kept the previous Profiler")
	}
	if got := Default().ExpectedBlocks(); got != 7 {
		t.Errorf("ExpectedBlocks() = %d, want 7", got)
	}
	if Enabled() {
		t.Error("Enabled() = true with Enabled=false in config")
	}
	if !report.ValidSession(Session()) {
		t.Errorf("Session() = %q, want a UUID", Session())
	}
}

func TestFini(t *testing.T) {
	out := isolate(t)
	if err := Init(quietConfig()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	pair("final.block", 100)

	snap := Fini()

	if Enabled() {
		t.Error("Enabled() = true after Fini()")
	}
	if _, ok := snap.Lookup("final.block"); !ok {
		t.Error("Fini() snapshot misses final.block")
	}
	text := out.String()
	for _, want := range []string{SummaryTitle, "final.block", "1 blocks, 1 invocations"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
	if Session() != "" {
		t.Errorf("Session() = %q after Fini(), want empty", Session())
	}
}

func TestFini_WithoutInit(t *testing.T) {
	out := isolate(t)
	Fini()
	if !strings.Contains(out.String(), "No blocks recorded.") {
		t.Errorf("summary = %q, want empty table", out.String())
	}
}

// === Metrics ===

func TestMetricsCollector(t *testing.T) {
	isolate(t)
	if err := Init(quietConfig()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	c := MetricsCollector("test")

	if n := testutil.CollectAndCount(c); n != 0 {
		t.Errorf("metrics before any snapshot = %d, want 0", n)
	}

	pair("m", 1000)
	Snapshot()
	// Five per-block metrics plus the window length.
	if n := testutil.CollectAndCount(c); n != 6 {
		t.Errorf("metrics after snapshot = %d, want 6", n)
	}
}
