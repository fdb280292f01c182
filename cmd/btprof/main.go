// Package main implements the btprof CLI tool.
//
// btprof reads block profiles from running programs and renders them:
//
//	btprof snapshot -addr /tmp/btrace-prof-1234.sock           # Text table
//	btprof snapshot -pid 1234 -reset -format pprof -o p.pb.gz  # pprof, new window
//	btprof demo -goroutines 8 -format html -o demo.html        # Synthetic workload
//	btprof instrument -w -main main.go                         # Insert measurements
//
// Programs expose their profile by importing the profiling package and
// setting BTRACE_PROF_ENDPOINT.
package main

import (
	"fmt"
	"os"

	"github.com/btraceio/btrace-sub009/profiling"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "snapshot":
		snapshotCommand(os.Args[2:])
	case "demo":
		demoCommand(os.Args[2:])
	case "instrument":
		instrumentCommand(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("btprof version %s\n", profiling.Version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`btprof - BTrace block profiler tool

USAGE:
    btprof <command> [arguments]

COMMANDS:
    snapshot   Fetch a profile from a running program
    demo       Profile a synthetic workload
    instrument Insert profiling calls into Go source files
    version    Show version information
    help       Show this help message

OUTPUT FORMATS (-format):
    text       Aligned table (default)
    json       Report envelope, one JSON line
    pprof      Gzipped pprof profile for 'go tool pprof'
    html       Bar charts of self and wall time

EXAMPLES:
    # Print the cumulative profile of process 1234
    btprof snapshot -pid 1234

    # Take the current window and start a new one
    btprof snapshot -addr /tmp/app.sock -reset

    # Inspect with pprof
    btprof snapshot -pid 1234 -format pprof -o prof.pb.gz
    go tool pprof -top prof.pb.gz

    # Measure every function of a program, Init/Fini in main
    btprof instrument -w -main ./cmd/app/*.go

    # Run the demo and publish its profile to Kafka
    btprof demo -goroutines 16 -kafka localhost:9092

ABOUT:
    A program records blocks with profiling.RecordEntry/RecordExit (or
    profiling.Measure). Each goroutine keeps its own log; a snapshot merges
    them into per-block invocations, self time and wall time.

    Set BTRACE_PROF_ENDPOINT=auto in the profiled program to listen on the
    default per-process address used by -pid.

`)
}
