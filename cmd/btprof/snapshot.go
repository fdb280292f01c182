// snapshot.go implements the 'btprof snapshot' command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/btraceio/btrace-sub009/internal/export/endpoint"
)

// snapshotConfig holds configuration for the snapshot command.
type snapshotConfig struct {
	// Endpoint address (from -addr, or derived from -pid)
	addr string

	// Reset the profile after reading it (-reset)
	reset bool

	// Output format and file
	format     string
	outputFile string

	timeout time.Duration
}

// snapshotCommand implements the 'btprof snapshot' command.
//
// Example:
//
//	btprof snapshot -pid 1234
//	btprof snapshot -addr /tmp/app.sock -reset -format json
func snapshotCommand(args []string) {
	config, err := parseSnapshotArgs(args, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.timeout)
	defer cancel()

	env, err := endpoint.Fetch(ctx, config.addr, config.reset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	title := fmt.Sprintf("Block profile %s (%s)", env.Session, env.Host.Hostname)
	if err := writeOutput(config.outputFile, config.format, title, env); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseSnapshotArgs parses command-line arguments for 'btprof snapshot'.
// Flag errors and usage go to errOut.
func parseSnapshotArgs(args []string, errOut io.Writer) (*snapshotConfig, error) {
	config := &snapshotConfig{}
	var pid int

	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&config.addr, "addr", "", "endpoint address (unix socket or named pipe)")
	fs.IntVar(&pid, "pid", 0, "process ID; selects the default endpoint address")
	fs.BoolVar(&config.reset, "reset", false, "start a new window after reading")
	fs.StringVar(&config.format, "format", formatText, "output format: text, json, pprof or html")
	fs.StringVar(&config.outputFile, "o", "", "output file (default stdout)")
	fs.DurationVar(&config.timeout, "timeout", 10*time.Second, "request timeout")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	switch {
	case config.addr != "" && pid != 0:
		return nil, errors.New("-addr and -pid are mutually exclusive")
	case pid < 0:
		return nil, fmt.Errorf("invalid pid %d", pid)
	case pid > 0:
		config.addr = endpoint.DefaultAddress(pid)
	case config.addr == "":
		return nil, errors.New("one of -addr or -pid is required")
	}
	if config.timeout <= 0 {
		return nil, fmt.Errorf("invalid timeout %v", config.timeout)
	}
	if err := checkFormat(config.format); err != nil {
		return nil, err
	}
	return config, nil
}
