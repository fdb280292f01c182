// Import injection for instrumented files.
package instrument

import (
	"go/ast"
	"go/token"
	"strconv"
)

// injectImport makes the profiling package available in file and returns the
// name it is imported under. An existing import is reused.
func injectImport(fset *token.FileSet, file *ast.File) (string, error) {
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || path != ProfilingImportPath {
			continue
		}
		if imp.Name == nil {
			return "profiling", nil
		}
		if imp.Name.Name == "_" || imp.Name.Name == "." {
			return "", NewInstrumentationErrorWithSuggestion(fset, imp.Pos(),
				"profiling package imported as "+imp.Name.Name,
				"Import it under a name, or remove the import and let btprof add it")
		}
		return imp.Name.Name, nil
	}

	if obj := file.Scope.Lookup(ProfilingAlias); obj != nil {
		return "", NewInstrumentationErrorWithSuggestion(fset, obj.Pos(),
			ProfilingAlias+" is already declared",
			"Rename the declaration or import "+ProfilingImportPath+" yourself")
	}
	for _, imp := range file.Imports {
		if imp.Name != nil && imp.Name.Name == ProfilingAlias {
			return "", NewInstrumentationErrorWithSuggestion(fset, imp.Pos(),
				ProfilingAlias+" names another import",
				"Rename that import or import "+ProfilingImportPath+" yourself")
		}
	}

	spec := &ast.ImportSpec{
		Name: ast.NewIdent(ProfilingAlias),
		Path: &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(ProfilingImportPath)},
	}

	var importDecl *ast.GenDecl
	for _, decl := range file.Decls {
		if gd, ok := decl.(*ast.GenDecl); ok && gd.Tok == token.IMPORT {
			importDecl = gd
			break
		}
	}
	if importDecl == nil {
		importDecl = &ast.GenDecl{Tok: token.IMPORT}
		file.Decls = append([]ast.Decl{importDecl}, file.Decls...)
	}
	importDecl.Specs = append(importDecl.Specs, spec)
	if importDecl.Lparen == 0 && len(importDecl.Specs) > 1 {
		importDecl.Lparen = 1
	}
	file.Imports = append(file.Imports, spec)
	return ProfilingAlias, nil
}

// removeUnusedImport drops the import added by injectImport.
func removeUnusedImport(file *ast.File, alias string) {
	drop := func(spec ast.Spec) bool {
		imp, ok := spec.(*ast.ImportSpec)
		return ok && imp.Name != nil && imp.Name.Name == alias && alias == ProfilingAlias &&
			imp.Path.Value == strconv.Quote(ProfilingImportPath) && !imp.Path.ValuePos.IsValid()
	}

	decls := file.Decls[:0]
	for _, decl := range file.Decls {
		if gd, ok := decl.(*ast.GenDecl); ok && gd.Tok == token.IMPORT {
			specs := gd.Specs[:0]
			for _, s := range gd.Specs {
				if !drop(s) {
					specs = append(specs, s)
				}
			}
			gd.Specs = specs
			if len(specs) == 0 {
				continue
			}
		}
		decls = append(decls, decl)
	}
	file.Decls = decls

	imports := file.Imports[:0]
	for _, imp := range file.Imports {
		if !drop(imp) {
			imports = append(imports, imp)
		}
	}
	file.Imports = imports
}
