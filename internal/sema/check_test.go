package sema

import (
	"testing"

	"lumen/internal/ast"
	"lumen/internal/diag"
)

func TestMixedArithmeticPromotes(t *testing.T) {
	bin := &ast.Binary{Op: ast.BinAdd, Left: intLit(1), Right: doubleLit(2.5), Sp: sp(0)}
	unit := &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{{
			Kind: ast.DeclClass, Name: "A", Sp: sp(0),
			Funs: []*ast.Fun{{
				Name: "f", Static: true, Return: ty("Double"), Body: bin, Sp: sp(1),
			}},
		}},
		Sp: sp(0),
	}
	res, bag := checkUnit(t, unit)
	mustClean(t, bag)
	if res.TypeOf(bin) != res.Reg.Builtins().Double {
		t.Fatalf("promoted type = %s", res.Reg.String(res.TypeOf(bin)))
	}
}

func TestImmutableBindingRejectsAssignment(t *testing.T) {
	body := &ast.Block{
		Stmts: []ast.Stmt{
			&ast.Let{Name: "x", Init: intLit(1), Sp: sp(1)},
			&ast.Assign{Name: "x", Value: intLit(2), Sp: sp(2)},
		},
		Sp: sp(0),
	}
	unit := &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{{
			Kind: ast.DeclClass, Name: "A", Sp: sp(0),
			Funs: []*ast.Fun{{Name: "f", Static: true, Body: body, Sp: sp(3)}},
		}},
		Sp: sp(0),
	}
	_, bag := checkUnit(t, unit)
	var found bool
	for _, d := range bag.Items() {
		if d.Code == diag.SemNotAssignable {
			found = true
		}
	}
	if !found {
		t.Fatal("assignment to immutable binding not rejected")
	}
}

func TestAwaitNarrowsKnownElement(t *testing.T) {
	async := &ast.Async{Body: intLit(7), Sp: sp(1)}
	await := &ast.Await{Value: ident("h"), Sp: sp(3)}
	body := &ast.Block{
		Stmts: []ast.Stmt{&ast.Let{Name: "h", Init: async, Sp: sp(2)}},
		Value: await,
		Sp:    sp(0),
	}
	unit := &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{{
			Kind: ast.DeclClass, Name: "A", Sp: sp(0),
			Funs: []*ast.Fun{{Name: "f", Static: true, Return: ty("Int"), Body: body, Sp: sp(4)}},
		}},
		Sp: sp(0),
	}
	res, bag := checkUnit(t, unit)
	mustClean(t, bag)
	if res.TypeOf(async) != res.Reg.Builtins().Deferred {
		t.Fatal("async block must evaluate to a deferred handle")
	}
	if res.TypeOf(await) != res.Reg.Builtins().Int {
		t.Fatalf("await type = %s, want Int", res.Reg.String(res.TypeOf(await)))
	}
}

func TestAwaitUnknownElementIsObjectTyped(t *testing.T) {
	await := &ast.Await{Value: ident("h"), Sp: sp(2)}
	unit := &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{{
			Kind: ast.DeclClass, Name: "A", Sp: sp(0),
			Funs: []*ast.Fun{{
				Name: "f", Static: true,
				Params: []ast.Param{{Name: "h", Type: ty("Deferred"), Sp: sp(1)}},
				Return: ty("java.lang.Object"),
				Body:   await,
				Sp:     sp(3),
			}},
		}},
		Sp: sp(0),
	}
	res, bag := checkUnit(t, unit)
	mustClean(t, bag)
	if res.TypeOf(await) != res.Reg.Builtins().Object {
		t.Fatalf("await type = %s, want Object", res.Reg.String(res.TypeOf(await)))
	}
}

func TestDeferredBlockInsideGuardIsRejected(t *testing.T) {
	match := &ast.Match{
		Scrutinee: intLit(1),
		Arms: []ast.MatchArm{{
			Pattern: &ast.PatBind{Name: "n", Sp: sp(1)},
			Guard: &ast.Await{
				Value: &ast.Async{Body: boolLit(true), Sp: sp(2)},
				Sp:    sp(3),
			},
			Body: intLit(0),
			Sp:   sp(4),
		}},
		Sp: sp(0),
	}
	unit := &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{{
			Kind: ast.DeclClass, Name: "A", Sp: sp(0),
			Funs: []*ast.Fun{{Name: "f", Static: true, Return: ty("Int"), Body: match, Sp: sp(5)}},
		}},
		Sp: sp(0),
	}
	_, bag := checkUnit(t, unit)
	var found bool
	for _, d := range bag.Items() {
		if d.Code == diag.LowInvalidCaptureContext {
			found = true
		}
	}
	if !found {
		t.Fatal("deferred block in guard not rejected")
	}
}

func TestAsyncMethodSignature(t *testing.T) {
	unit := &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{{
			Kind: ast.DeclClass, Name: "A", Sp: sp(0),
			Funs: []*ast.Fun{{
				Name: "fetch", Async: true, Static: true,
				Return: ty("Int"),
				Body:   intLit(42),
				Sp:     sp(1),
			}},
		}},
		Sp: sp(0),
	}
	res, bag := checkUnit(t, unit)
	mustClean(t, bag)
	m := res.Decls[0].Methods[0]
	if m.Result != res.Reg.Builtins().Deferred {
		t.Fatal("async method must return a handle")
	}
	if m.Elem != res.Reg.Builtins().Int {
		t.Fatalf("elem = %s, want Int", res.Reg.String(m.Elem))
	}
}

func TestVariantPatternArityChecked(t *testing.T) {
	unit := &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{
			{
				Kind: ast.DeclSum, Name: "Opt", Sp: sp(0),
				Variants: []ast.Variant{
					{Name: "None", Sp: sp(1)},
					{Name: "Some", Fields: []ast.Field{{Name: "value", Type: ty("Int"), Sp: sp(2)}}, Sp: sp(3)},
				},
			},
			{
				Kind: ast.DeclClass, Name: "Use", Sp: sp(4),
				Funs: []*ast.Fun{{
					Name: "f", Static: true,
					Params: []ast.Param{{Name: "o", Type: ty("Opt"), Sp: sp(5)}},
					Return: ty("Int"),
					Body: &ast.Match{
						Scrutinee: ident("o"),
						Arms: []ast.MatchArm{
							{Pattern: &ast.PatVariant{Name: "Some", Sp: sp(6)}, Body: intLit(1), Sp: sp(6)},
							{Pattern: &ast.PatWildcard{Sp: sp(7)}, Body: intLit(0), Sp: sp(7)},
						},
						Sp: sp(8),
					},
					Sp: sp(9),
				}},
			},
		},
		Sp: sp(0),
	}
	_, bag := checkUnit(t, unit)
	var found bool
	for _, d := range bag.Items() {
		if d.Code == diag.LowBadPattern {
			found = true
		}
	}
	if !found {
		t.Fatal("arity mismatch in variant pattern not reported")
	}
}
