// Package profiling provides the public API of the block profiler.
//
// See doc.go for detailed documentation and examples.
package profiling

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/btraceio/btrace-sub009/internal/config"
	internal "github.com/btraceio/btrace-sub009/internal/profiling/api"
	"github.com/btraceio/btrace-sub009/internal/profiling/profiler"
	"github.com/btraceio/btrace-sub009/internal/profiling/recorder"
)

// Profile is an immutable merge of every goroutine's records over a window.
type Profile = profiler.Snapshot

// Record holds the statistics of one block.
type Record = recorder.Record

// Profiler is an independent registry of per-goroutine recorders.
type Profiler = profiler.Profiler

// DefaultExpectedBlocks is the log size hint used when none is given.
const DefaultExpectedBlocks = profiler.DefaultExpectedBlocks

// Init configures the default profiler from BTRACE_PROF_* environment
// variables and starts the outputs they select.
//
// Call it at program start and defer Fini:
//
//	func main() {
//		if err := profiling.Init(); err != nil {
//			log.Fatal(err)
//		}
//		defer profiling.Fini()
//		// ... rest of program
//	}
//
// Recording into the default profiler works without Init, with default
// settings and no outputs.
func Init() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	return internal.Init(cfg)
}

// Fini stops recording, flushes the outputs and prints a summary table to
// stderr. It returns the final cumulative Profile.
func Fini() *Profile {
	return internal.Fini()
}

// RecordEntry records entry into the named block on the calling goroutine.
//
// Instrumentation calls it before the probed code:
//
//	profiling.RecordEntry("db.Query")
//	start := time.Now()
//	rows, err := db.Query(q)
//	profiling.RecordExit("db.Query", time.Since(start))
func RecordEntry(name string) {
	internal.RecordEntry(name)
}

// RecordExit records exit from the named block after d.
func RecordExit(name string, d time.Duration) {
	internal.RecordExit(name, d.Nanoseconds())
}

// Measure records entry into the named block and returns the function that
// records the exit:
//
//	defer profiling.Measure("handler")()
func Measure(name string) func() {
	RecordEntry(name)
	start := time.Now()
	return func() {
		RecordExit(name, time.Since(start))
	}
}

// Snapshot returns the cumulative Profile since the last reset.
func Snapshot() *Profile {
	return internal.Snapshot()
}

// SnapshotAndReset returns the Profile of the current window and starts a new
// one.
func SnapshotAndReset() *Profile {
	return internal.SnapshotAndReset()
}

// Reset discards everything recorded so far. Blocks still open keep running
// and are counted when they exit.
func Reset() {
	internal.Reset()
}

// LastSnapshot returns the most recent Profile without taking a new one, or
// nil if none was taken yet.
func LastSnapshot() *Profile {
	return internal.LastSnapshot()
}

// Enable turns recording on.
func Enable() {
	internal.Enable()
}

// Disable turns recording off; RecordEntry and RecordExit become no-ops.
func Disable() {
	internal.Disable()
}

// Enabled reports whether recording is on.
func Enabled() bool {
	return internal.Enabled()
}

// NewProfiler creates a Profiler independent of the default one. Each
// goroutine's log is sized for expectedBlocks distinct blocks.
func NewProfiler(expectedBlocks int) *Profiler {
	return profiler.New(profiler.WithExpectedBlocks(expectedBlocks))
}

// MetricsCollector returns a Prometheus collector exposing the last Profile
// of the default profiler under namespace.
func MetricsCollector(namespace string) prometheus.Collector {
	return internal.MetricsCollector(namespace)
}
