// render.go writes profiles in the output formats shared by all commands.
package main

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/btraceio/btrace-sub009/internal/export/chart"
	"github.com/btraceio/btrace-sub009/internal/export/pprofexport"
	"github.com/btraceio/btrace-sub009/internal/report"
)

// Output formats.
const (
	formatText  = "text"
	formatJSON  = "json"
	formatPprof = "pprof"
	formatHTML  = "html"
)

var formats = []string{formatText, formatJSON, formatPprof, formatHTML}

func checkFormat(format string) error {
	if !slices.Contains(formats, format) {
		return fmt.Errorf("unknown format %q (want one of %v)", format, formats)
	}
	return nil
}

// render writes env to w in format.
func render(w io.Writer, format, title string, env report.Envelope) error {
	snap := env.Snapshot()
	switch format {
	case formatText:
		return report.WriteTable(w, title, snap)
	case formatJSON:
		return report.Encode(w, env)
	case formatPprof:
		return pprofexport.Write(w, snap)
	case formatHTML:
		return chart.Render(w, title, snap)
	}
	return checkFormat(format)
}

// writeOutput renders env to path, or to stdout when path is empty.
func writeOutput(path, format, title string, env report.Envelope) error {
	if path == "" {
		return render(os.Stdout, format, title, env)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := render(f, format, title, env); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
