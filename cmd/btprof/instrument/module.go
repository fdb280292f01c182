package instrument

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// ModulePath is the module providing ProfilingImportPath.
const ModulePath = "github.com/btraceio/btrace-sub009"

// ErrNoModule is returned by CheckModule when no go.mod encloses the directory.
var ErrNoModule = errors.New("no go.mod found")

// ModuleStatus describes whether instrumented code in a module can resolve
// the profiling package.
type ModuleStatus struct {
	GoMod    string // path of the enclosing go.mod
	Module   string // its module path
	Required string // version of ModulePath required, or replaced target
	Self     bool   // the module is ModulePath itself
}

// Resolvable reports whether the profiling import will build.
func (s ModuleStatus) Resolvable() bool {
	return s.Self || s.Required != ""
}

// CheckModule finds the go.mod enclosing dir and reports how it provides
// the profiling package.
func CheckModule(dir string) (ModuleStatus, error) {
	goMod := findGoMod(dir)
	if goMod == "" {
		return ModuleStatus{}, fmt.Errorf("%w above %s", ErrNoModule, dir)
	}
	data, err := os.ReadFile(goMod)
	if err != nil {
		return ModuleStatus{}, err
	}
	mf, err := modfile.Parse(goMod, data, nil)
	if err != nil {
		return ModuleStatus{}, fmt.Errorf("parse %s: %w", goMod, err)
	}

	st := ModuleStatus{GoMod: goMod}
	if mf.Module != nil {
		st.Module = mf.Module.Mod.Path
		st.Self = st.Module == ModulePath
	}
	for _, req := range mf.Require {
		if req.Mod.Path == ModulePath {
			st.Required = req.Mod.Version
		}
	}
	// A replace directive points the requirement elsewhere, usually a local
	// checkout.
	for _, rep := range mf.Replace {
		if rep.Old.Path == ModulePath && st.Required != "" {
			st.Required = rep.New.Path
			if rep.New.Version != "" {
				st.Required += "@" + rep.New.Version
			}
		}
	}
	return st, nil
}

// findGoMod walks up from dir looking for go.mod, returning "" at the root.
func findGoMod(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		modPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(modPath); err == nil {
			return modPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
