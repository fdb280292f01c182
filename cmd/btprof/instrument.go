// instrument.go implements the 'btprof instrument' command.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/btraceio/btrace-sub009/cmd/btprof/instrument"
)

// instrumentConfig holds configuration for the instrument command.
type instrumentConfig struct {
	sourceFiles []string

	// Rewrite files in place (-w) instead of printing to stdout
	write bool

	opts instrument.Options
}

// instrumentCommand implements the 'btprof instrument' command.
//
// Example:
//
//	btprof instrument main.go                 # Print instrumented source
//	btprof instrument -w -main *.go           # Rewrite in place, Init in main
//	btprof instrument -skip 'String$' api.go  # Leave String methods alone
func instrumentCommand(args []string) {
	config, err := parseInstrumentArgs(args, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, path := range config.sourceFiles {
		if err := instrumentOne(path, config, os.Stdout, os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if msg := moduleWarning(filepath.Dir(config.sourceFiles[0])); msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
}

// moduleWarning explains how to make the profiling import resolvable from
// dir, or returns "" when it already is.
func moduleWarning(dir string) string {
	st, err := instrument.CheckModule(dir)
	if err != nil {
		return fmt.Sprintf("Warning: %v", err)
	}
	if st.Resolvable() {
		return ""
	}
	return fmt.Sprintf("Warning: %s does not require %s\n    go get %s",
		st.GoMod, instrument.ModulePath, instrument.ProfilingImportPath)
}

func instrumentOne(path string, config *instrumentConfig, out, log io.Writer) error {
	result, err := instrument.File(path, nil, config.opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(log, "%s: %d instrumented, %d already, %d skipped\n",
		path, result.Stats.Instrumented, result.Stats.Already, result.Stats.Skipped)

	if !config.write {
		_, err := io.WriteString(out, result.Code)
		return err
	}
	if result.Stats.Instrumented == 0 && !result.Stats.MainInit {
		return nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(result.Code), fi.Mode().Perm())
}

// parseInstrumentArgs parses command-line arguments for 'btprof instrument'.
func parseInstrumentArgs(args []string, errOut io.Writer) (*instrumentConfig, error) {
	config := &instrumentConfig{}
	var skip string

	fs := flag.NewFlagSet("instrument", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.BoolVar(&config.write, "w", false, "write the result to the source files")
	fs.BoolVar(&config.opts.InitMain, "main", false, "call Init and Fini in func main")
	fs.StringVar(&skip, "skip", "", "regular expression of block names to leave alone")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	config.sourceFiles = fs.Args()
	if len(config.sourceFiles) == 0 {
		return nil, fmt.Errorf("no source files specified")
	}

	if skip != "" {
		re, err := regexp.Compile(skip)
		if err != nil {
			return nil, fmt.Errorf("invalid -skip: %w", err)
		}
		config.opts.Skip = re.MatchString
	}
	return config, nil
}
