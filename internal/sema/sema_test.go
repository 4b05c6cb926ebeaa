package sema

import (
	"testing"

	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/source"
	"lumen/internal/symbols"
	"lumen/internal/types"
)

func sp(start uint32) source.Span {
	return source.Span{File: 0, Start: start, End: start + 1}
}

func ty(name string) ast.TypeExpr {
	return ast.TypeExpr{Name: name, Sp: sp(0)}
}

func intLit(v int64) *ast.Lit    { return &ast.Lit{Kind: ast.LitInt, Int: v, Sp: sp(0)} }
func longLit(v int64) *ast.Lit   { return &ast.Lit{Kind: ast.LitLong, Int: v, Sp: sp(0)} }
func doubleLit(v float64) *ast.Lit {
	return &ast.Lit{Kind: ast.LitDouble, Float: v, Sp: sp(0)}
}
func boolLit(v bool) *ast.Lit   { return &ast.Lit{Kind: ast.LitBool, Bool: v, Sp: sp(0)} }
func strLit(v string) *ast.Lit  { return &ast.Lit{Kind: ast.LitString, Str: v, Sp: sp(0)} }
func ident(name string) *ast.Ident { return &ast.Ident{Name: name, Sp: sp(0)} }

// checkUnit collects and checks a unit, returning the result and diagnostics.
func checkUnit(t *testing.T, unit *ast.Unit) (*Result, *diag.Bag) {
	t.Helper()
	reg := types.NewRegistry()
	bag := diag.NewBag(32)
	reporter := diag.BagReporter{Bag: bag}
	table := symbols.Collect(unit, reg, symbols.NewExports(), reporter)
	res := Collect(unit, table, reg, reporter)
	Check(res, reporter)
	return res, bag
}

func mustClean(t *testing.T, bag *diag.Bag) {
	t.Helper()
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics:\n%s",
			diag.FormatGoldenDiagnostics(bag.Items(), source.NewFileSet()))
	}
}

// mathUnit declares static maxOf overloads over Int and Long plus a body
// calling them, mirroring the classic numeric-width overload setup.
func mathUnit(callArgs ...ast.Expr) *ast.Unit {
	return &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{
			{
				Kind: ast.DeclClass,
				Name: "MathOps",
				Sp:   sp(0),
				Funs: []*ast.Fun{
					{
						Name:   "maxOf",
						Static: true,
						Params: []ast.Param{
							{Name: "a", Type: ty("Int"), Sp: sp(1)},
							{Name: "b", Type: ty("Int"), Sp: sp(2)},
						},
						Return: ty("Int"),
						Body:   ident("a"),
						Sp:     sp(3),
					},
					{
						Name:   "maxOf",
						Static: true,
						Params: []ast.Param{
							{Name: "a", Type: ty("Long"), Sp: sp(4)},
							{Name: "b", Type: ty("Long"), Sp: sp(5)},
						},
						Return: ty("Long"),
						Body:   ident("a"),
						Sp:     sp(6),
					},
					{
						Name:   "use",
						Static: true,
						Return: ty("Unit"),
						Body: &ast.Block{
							Stmts: []ast.Stmt{
								&ast.ExprStmt{E: &ast.Call{Name: "maxOf", Args: callArgs, Sp: sp(7)}, Sp: sp(7)},
							},
							Sp: sp(8),
						},
						Sp: sp(9),
					},
				},
			},
		},
		Sp: sp(0),
	}
}

func findCall(t *testing.T, res *Result) (*ast.Call, *ResolvedCall) {
	t.Helper()
	for call, rc := range res.Calls {
		if call.Name == "maxOf" {
			return call, rc
		}
	}
	t.Fatal("maxOf call site not resolved")
	return nil, nil
}
