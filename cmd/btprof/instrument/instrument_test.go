package instrument

import (
	"errors"
	"go/parser"
	"go/token"
	"strings"
	"testing"
)

const serverSrc = `package api

import "fmt"

type Server struct{}

type List[T any] struct{}

func init() {}

func New() *Server {
	return &Server{}
}

func (s *Server) Handle(n int) error {
	return fmt.Errorf("n=%d", n)
}

func (l List[T]) Len() int { return 0 }

func external() int
`

// mustParse checks that code is valid Go.
func mustParse(t *testing.T, code string) {
	t.Helper()
	if _, err := parser.ParseFile(token.NewFileSet(), "out.go", code, 0); err != nil {
		t.Fatalf("instrumented code does not parse: %v\n%s", err, code)
	}
}

// === Functions ===

func TestFile_Functions(t *testing.T) {
	result, err := File("server.go", serverSrc, Options{})
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	mustParse(t, result.Code)

	for _, want := range []string{
		`btprofiling "` + ProfilingImportPath + `"`,
		`defer btprofiling.Measure("api.New")()`,
		`defer btprofiling.Measure("api.Server.Handle")()`,
		`defer btprofiling.Measure("api.List.Len")()`,
	} {
		if !strings.Contains(result.Code, want) {
			t.Errorf("output missing %s\n%s", want, result.Code)
		}
	}
	if strings.Contains(result.Code, `Measure("api.init")`) {
		t.Error("init was instrumented")
	}

	want := Stats{Instrumented: 3, Skipped: 1}
	if result.Stats != want {
		t.Errorf("Stats = %+v, want %+v", result.Stats, want)
	}
}

func TestFile_Idempotent(t *testing.T) {
	first, err := File("server.go", serverSrc, Options{})
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	second, err := File("server.go", first.Code, Options{})
	if err != nil {
		t.Fatalf("File() second pass error = %v", err)
	}

	if second.Stats.Instrumented != 0 || second.Stats.Already != 3 {
		t.Errorf("second pass Stats = %+v, want 0 instrumented / 3 already", second.Stats)
	}
	if n := strings.Count(second.Code, ProfilingImportPath); n != 1 {
		t.Errorf("import appears %d times, want 1", n)
	}
}

func TestFile_Skip(t *testing.T) {
	opts := Options{Skip: func(block string) bool { return strings.HasPrefix(block, "api.Server.") }}
	result, err := File("server.go", serverSrc, opts)
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	if strings.Contains(result.Code, "api.Server.Handle") {
		t.Error("skipped method was instrumented")
	}
	if result.Stats.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2 (init and Handle)", result.Stats.Skipped)
	}
}

// === main ===

func TestFile_InitMain(t *testing.T) {
	src := `package main

func main() {
	println("hi")
}
`
	result, err := File("main.go", src, Options{InitMain: true})
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	mustParse(t, result.Code)

	initAt := strings.Index(result.Code, "btprofiling.Init()")
	finiAt := strings.Index(result.Code, "defer btprofiling.Fini()")
	measureAt := strings.Index(result.Code, `defer btprofiling.Measure("main.main")()`)
	if initAt < 0 || finiAt < initAt || measureAt < finiAt {
		t.Errorf("want Init, Fini, Measure in order:\n%s", result.Code)
	}
	if !result.Stats.MainInit {
		t.Error("Stats.MainInit = false")
	}

	again, err := File("main.go", result.Code, Options{InitMain: true})
	if err != nil {
		t.Fatalf("File() second pass error = %v", err)
	}
	if again.Stats.Already != 1 || strings.Count(again.Code, "Init()") != 1 {
		t.Errorf("second pass changed main: %+v\n%s", again.Stats, again.Code)
	}
}

// === Imports ===

func TestFile_ExistingImport(t *testing.T) {
	src := `package svc

import prof "` + ProfilingImportPath + `"

func Work() { prof.Enable() }
`
	result, err := File("svc.go", src, Options{})
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	if !strings.Contains(result.Code, `defer prof.Measure("svc.Work")()`) {
		t.Errorf("existing alias not reused:\n%s", result.Code)
	}
	if strings.Contains(result.Code, ProfilingAlias) {
		t.Errorf("second import added:\n%s", result.Code)
	}
}

func TestFile_NoFunctions(t *testing.T) {
	src := "package empty\n\nconst X = 1\n"
	result, err := File("empty.go", src, Options{})
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	if strings.Contains(result.Code, ProfilingImportPath) {
		t.Errorf("unused import left behind:\n%s", result.Code)
	}
	mustParse(t, result.Code)
}

func TestFile_AliasConflict(t *testing.T) {
	src := `package c

var btprofiling = 1

func F() {}
`
	_, err := File("c.go", src, Options{})
	var ierr *InstrumentationError
	if !errors.As(err, &ierr) {
		t.Fatalf("File() error = %v, want InstrumentationError", err)
	}
	if ierr.Line != 3 || ierr.Suggestion == "" {
		t.Errorf("error = %+v, want line 3 with a suggestion", ierr)
	}
}

func TestFile_SyntaxError(t *testing.T) {
	if _, err := File("bad.go", "package x\nfunc {", Options{}); err == nil {
		t.Error("File() error = nil for invalid source")
	}
}

func TestInstrumentationError(t *testing.T) {
	err := &InstrumentationError{File: "a.go", Line: 1, Column: 2, Message: "boom", Suggestion: "fix"}
	if got := err.Error(); got != "a.go:1:2: boom\n\nSuggestion: fix" {
		t.Errorf("Error() = %q", got)
	}
}
