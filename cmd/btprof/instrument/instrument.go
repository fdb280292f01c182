// Package instrument inserts block profiling calls into Go source files.
//
// Every function with a body gets a deferred measurement as its first
// statement, named after the package, receiver type and function:
//
//	// INPUT:
//	func (s *Server) Handle(req Request) error {
//		return s.db.Exec(req)
//	}
//
//	// OUTPUT:
//	func (s *Server) Handle(req Request) error {
//		defer btprofiling.Measure("api.Server.Handle")()
//		return s.db.Exec(req)
//	}
//
// Instrumenting an already instrumented file changes nothing.
//
// Thread Safety: This package is NOT thread-safe per file. Distinct files may
// be instrumented concurrently.
package instrument

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
)

const (
	// ProfilingImportPath is the package the inserted calls refer to.
	ProfilingImportPath = "github.com/btraceio/btrace-sub009/profiling"

	// ProfilingAlias is the import name used when the file does not import
	// the profiling package yet.
	ProfilingAlias = "btprofiling"
)

// Options control what gets instrumented.
type Options struct {
	// InitMain makes func main of package main call Init and defer Fini.
	InitMain bool

	// Skip excludes blocks by name. Nil instruments everything.
	Skip func(block string) bool
}

// Stats counts what a call to File did.
type Stats struct {
	Instrumented int // Functions that received a measurement
	Already      int // Functions that were instrumented before
	Skipped      int // Functions excluded by Options.Skip or init
	MainInit     bool
}

// Result holds the instrumented code and statistics.
type Result struct {
	Code  string
	Stats Stats
}

// File instruments one Go source file. src follows parser.ParseFile: nil
// reads filename, otherwise a string, []byte or io.Reader.
func File(filename string, src any, opts Options) (*Result, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filename, err)
	}

	alias, err := injectImport(fset, file)
	if err != nil {
		return nil, err
	}

	v := &visitor{alias: alias, pkg: file.Name.Name, opts: opts}
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok {
			v.function(fn)
		}
	}
	if v.stats.Instrumented == 0 && !v.stats.MainInit {
		removeUnusedImport(file, alias)
	}

	var buf bytes.Buffer
	cfg := &printer.Config{
		Mode:     printer.UseSpaces | printer.TabIndent,
		Tabwidth: 8,
	}
	if err := cfg.Fprint(&buf, fset, file); err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	return &Result{Code: buf.String(), Stats: v.stats}, nil
}
