// Package profiling is a block profiler for instrumented Go programs.
//
// Instrumentation marks the entry and exit of named blocks. Every goroutine
// records into its own log without locks; a snapshot merges the logs of all
// goroutines into per-block statistics.
//
// # Quick Start
//
//	package main
//
//	import "github.com/btraceio/btrace-sub009/profiling"
//
//	func main() {
//		profiling.Init()
//		defer profiling.Fini()
//
//		work()
//	}
//
//	func work() {
//		defer profiling.Measure("work")()
//		// ...
//	}
//
// # Statistics
//
// For each block name a Profile holds:
//   - Invocations: closed entry/exit pairs
//   - Wall time: time between entry and exit, total, min and max
//   - Self time: wall time minus the wall time of directly nested blocks
//
// A block entered again while it is already open adds to its invocations
// and self time; only the outermost invocation adds wall time.
//
// # Snapshots and Windows
//
// [Snapshot] returns cumulative statistics; [SnapshotAndReset] returns the
// statistics of the current window and starts a new one. Every Profile
// records the window it covers. Blocks open during a reset keep their entry
// time and are counted in the window in which they exit.
//
// # Outputs
//
// [Init] reads BTRACE_PROF_* environment variables:
//
//	BTRACE_PROF_ENABLED           record from start (default true)
//	BTRACE_PROF_EXPECTED_BLOCKS   log size hint per goroutine (default 600)
//	BTRACE_PROF_LOG_LEVEL         zerolog level (default info)
//	BTRACE_PROF_ENDPOINT          local snapshot endpoint, "auto" for the default
//	BTRACE_PROF_KAFKA_BROKERS     comma separated brokers for publishing
//	BTRACE_PROF_KAFKA_TOPIC       topic (default btrace.profiles)
//	BTRACE_PROF_OTLP_ENDPOINT     OpenTelemetry collector for OTLP metrics
//	BTRACE_PROF_REPORT_INTERVAL   publishing period (default 10s)
//
// The endpoint is read by the btprof command:
//
//	$ btprof snapshot -addr /tmp/btrace-prof-1234.sock -format pprof -o out.pb.gz
//
// [MetricsCollector] exposes the last Profile to a Prometheus registry.
//
// # Independent Profilers
//
// [NewProfiler] creates a Profiler unrelated to the default one, for
// libraries that keep their own statistics.
package profiling
