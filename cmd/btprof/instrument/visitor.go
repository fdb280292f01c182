package instrument

import (
	"go/ast"
	"go/token"
	"strconv"
)

type visitor struct {
	alias string
	pkg   string
	opts  Options
	stats Stats
}

// function instruments one declaration.
func (v *visitor) function(fn *ast.FuncDecl) {
	if fn.Body == nil {
		return
	}
	name := blockName(v.pkg, fn)

	switch {
	case v.measured(fn.Body):
		v.stats.Already++
		return
	case fn.Recv == nil && fn.Name.Name == "init":
		v.stats.Skipped++
		return
	case v.opts.Skip != nil && v.opts.Skip(name):
		v.stats.Skipped++
		return
	}

	head := []ast.Stmt{v.measureStmt(name)}
	if v.opts.InitMain && v.pkg == "main" && fn.Recv == nil && fn.Name.Name == "main" {
		head = append([]ast.Stmt{v.initStmt(), v.finiStmt()}, head...)
		v.stats.MainInit = true
	}
	fn.Body.List = append(head, fn.Body.List...)
	v.stats.Instrumented++
}

// measured reports whether body already starts with a measurement, possibly
// after the Init and Fini calls inserted into main.
func (v *visitor) measured(body *ast.BlockStmt) bool {
	for _, stmt := range body.List {
		switch s := stmt.(type) {
		case *ast.DeferStmt:
			if inner, ok := s.Call.Fun.(*ast.CallExpr); ok && v.isCall(inner, "Measure") {
				return true
			}
			if v.isCall(s.Call, "Fini") {
				continue
			}
		case *ast.IfStmt:
			if as, ok := s.Init.(*ast.AssignStmt); ok && len(as.Rhs) == 1 {
				if call, ok := as.Rhs[0].(*ast.CallExpr); ok && v.isCall(call, "Init") {
					continue
				}
			}
		}
		return false
	}
	return false
}

func (v *visitor) isCall(call *ast.CallExpr, fn string) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != fn {
		return false
	}
	x, ok := sel.X.(*ast.Ident)
	return ok && x.Name == v.alias
}

func (v *visitor) sel(fn string) *ast.SelectorExpr {
	return &ast.SelectorExpr{X: ast.NewIdent(v.alias), Sel: ast.NewIdent(fn)}
}

// defer <alias>.Measure("name")()
func (v *visitor) measureStmt(name string) ast.Stmt {
	return &ast.DeferStmt{Call: &ast.CallExpr{
		Fun: &ast.CallExpr{
			Fun:  v.sel("Measure"),
			Args: []ast.Expr{&ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(name)}},
		},
	}}
}

// if err := <alias>.Init(); err != nil { panic(err) }
func (v *visitor) initStmt() ast.Stmt {
	return &ast.IfStmt{
		Init: &ast.AssignStmt{
			Lhs: []ast.Expr{ast.NewIdent("err")},
			Tok: token.DEFINE,
			Rhs: []ast.Expr{&ast.CallExpr{Fun: v.sel("Init")}},
		},
		Cond: &ast.BinaryExpr{X: ast.NewIdent("err"), Op: token.NEQ, Y: ast.NewIdent("nil")},
		Body: &ast.BlockStmt{List: []ast.Stmt{
			&ast.ExprStmt{X: &ast.CallExpr{Fun: ast.NewIdent("panic"), Args: []ast.Expr{ast.NewIdent("err")}}},
		}},
	}
}

// defer <alias>.Fini()
func (v *visitor) finiStmt() ast.Stmt {
	return &ast.DeferStmt{Call: &ast.CallExpr{Fun: v.sel("Fini")}}
}

// blockName is pkg.Func or pkg.Type.Method.
func blockName(pkg string, fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return pkg + "." + fn.Name.Name
	}
	return pkg + "." + receiverType(fn.Recv.List[0].Type) + "." + fn.Name.Name
}

func receiverType(expr ast.Expr) string {
	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			expr = e.X
		case *ast.ParenExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.Ident:
			return e.Name
		default:
			return "?"
		}
	}
}
