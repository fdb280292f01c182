package instrument

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeModule creates dir/go.mod with content and a nested package dir.
func writeModule(t *testing.T, content string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	pkg := filepath.Join(root, "internal", "svc")
	if err := os.MkdirAll(pkg, 0o755); err != nil {
		t.Fatal(err)
	}
	return pkg
}

func TestCheckModule(t *testing.T) {
	tests := []struct {
		name       string
		gomod      string
		required   string
		self       bool
		resolvable bool
	}{
		{
			name:  "missing requirement",
			gomod: "module example.com/app\n\ngo 1.24\n",
		},
		{
			name:       "required",
			gomod:      "module example.com/app\n\ngo 1.24\n\nrequire " + ModulePath + " v0.1.0\n",
			required:   "v0.1.0",
			resolvable: true,
		},
		{
			name: "replaced",
			gomod: "module example.com/app\n\ngo 1.24\n\nrequire " + ModulePath + " v0.1.0\n\n" +
				"replace " + ModulePath + " => ../btrace\n",
			required:   "../btrace",
			resolvable: true,
		},
		{
			name:       "self",
			gomod:      "module " + ModulePath + "\n\ngo 1.24\n",
			self:       true,
			resolvable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := CheckModule(writeModule(t, tt.gomod))
			if err != nil {
				t.Fatalf("CheckModule() error = %v", err)
			}
			if st.Required != tt.required || st.Self != tt.self || st.Resolvable() != tt.resolvable {
				t.Errorf("status = %+v, want required %q self %v resolvable %v",
					st, tt.required, tt.self, tt.resolvable)
			}
			if filepath.Base(st.GoMod) != "go.mod" {
				t.Errorf("GoMod = %q", st.GoMod)
			}
		})
	}
}

func TestCheckModule_Invalid(t *testing.T) {
	if _, err := CheckModule(writeModule(t, "module\nrequire (((\n")); err == nil {
		t.Error("CheckModule() error = nil for a broken go.mod")
	}
}

func TestCheckModule_None(t *testing.T) {
	// The filesystem root has no go.mod on any sane test machine.
	root := filepath.VolumeName(os.TempDir()) + string(filepath.Separator)
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
		t.Skip("go.mod at filesystem root")
	}
	if _, err := CheckModule(root); !errors.Is(err, ErrNoModule) {
		t.Errorf("CheckModule(/) error = %v, want ErrNoModule", err)
	}
}
