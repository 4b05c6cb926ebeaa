package lower

import (
	"testing"

	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/sema"
	"lumen/internal/source"
	"lumen/internal/symbols"
	"lumen/internal/types"
)

func sp(start uint32) source.Span {
	return source.Span{File: 0, Start: start, End: start + 1}
}

func ty(name string) ast.TypeExpr { return ast.TypeExpr{Name: name, Sp: sp(0)} }

func intLit(v int64) *ast.Lit      { return &ast.Lit{Kind: ast.LitInt, Int: v, Sp: sp(0)} }
func boolLit(v bool) *ast.Lit      { return &ast.Lit{Kind: ast.LitBool, Bool: v, Sp: sp(0)} }
func ident(name string) *ast.Ident { return &ast.Ident{Name: name, Sp: sp(0)} }

func lowerUnit(t *testing.T, unit *ast.Unit) (*Module, *diag.Bag) {
	t.Helper()
	reg := types.NewRegistry()
	bag := diag.NewBag(32)
	reporter := diag.BagReporter{Bag: bag}
	table := symbols.Collect(unit, reg, symbols.NewExports(), reporter)
	res := sema.Collect(unit, table, reg, reporter)
	sema.Check(res, reporter)
	if bag.HasErrors() {
		t.Fatalf("unit does not check: %+v", bag.Items())
	}
	return Lower(res, reporter), bag
}

// shapeUnit declares a three-variant sum and a function matching over it
// with the given arms.
func shapeUnit(arms []ast.MatchArm) *ast.Unit {
	return &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{
			{
				Kind: ast.DeclSum, Name: "Shape", Sp: sp(0),
				Variants: []ast.Variant{
					{Name: "Dot", Sp: sp(1)},
					{Name: "Line", Fields: []ast.Field{{Name: "len", Type: ty("Int"), Sp: sp(2)}}, Sp: sp(3)},
					{Name: "Rect", Fields: []ast.Field{
						{Name: "w", Type: ty("Int"), Sp: sp(4)},
						{Name: "h", Type: ty("Int"), Sp: sp(5)},
					}, Sp: sp(6)},
				},
			},
			{
				Kind: ast.DeclClass, Name: "Use", Sp: sp(7),
				Funs: []*ast.Fun{{
					Name: "area", Static: true,
					Params: []ast.Param{{Name: "s", Type: ty("Shape"), Sp: sp(8)}},
					Return: ty("Int"),
					Body:   &ast.Match{Scrutinee: ident("s"), Arms: arms, Sp: sp(9)},
					Sp:     sp(10),
				}},
			},
		},
		Sp: sp(0),
	}
}

func variantArm(name string, binds []string, body ast.Expr) ast.MatchArm {
	elems := make([]ast.Pattern, len(binds))
	for i, b := range binds {
		elems[i] = &ast.PatBind{Name: b, Sp: sp(0)}
	}
	return ast.MatchArm{
		Pattern: &ast.PatVariant{Name: name, Elems: elems, Sp: sp(0)},
		Body:    body,
		Sp:      sp(0),
	}
}

func TestMissingVariantIsReported(t *testing.T) {
	unit := shapeUnit([]ast.MatchArm{
		variantArm("Dot", nil, intLit(0)),
		variantArm("Line", []string{"n"}, ident("n")),
	})

	reg := types.NewRegistry()
	bag := diag.NewBag(32)
	reporter := diag.BagReporter{Bag: bag}
	table := symbols.Collect(unit, reg, symbols.NewExports(), reporter)
	res := sema.Collect(unit, table, reg, reporter)
	sema.Check(res, reporter)
	Lower(res, reporter)

	var found *diag.Diagnostic
	for i := range bag.Items() {
		if bag.Items()[i].Code == diag.LowNonExhaustiveMatch {
			found = &bag.Items()[i]
		}
	}
	if found == nil {
		t.Fatal("missing variant not reported")
	}
	if want := "match does not cover: Rect"; found.Message != want {
		t.Fatalf("message = %q, want %q", found.Message, want)
	}
}

func TestFullCoverageIsExhaustive(t *testing.T) {
	unit := shapeUnit([]ast.MatchArm{
		variantArm("Dot", nil, intLit(0)),
		variantArm("Line", []string{"n"}, ident("n")),
		variantArm("Rect", []string{"w", "h"}, &ast.Binary{
			Op: ast.BinMul, Left: ident("w"), Right: ident("h"), Sp: sp(0),
		}),
	})
	m, bag := lowerUnit(t, unit)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	if len(m.Matches) != 1 {
		t.Fatalf("plans = %d, want 1", len(m.Matches))
	}
	for _, plan := range m.Matches {
		if !plan.Exhaustive {
			t.Fatal("full variant coverage must be exhaustive")
		}
		if len(plan.Arms) != 3 {
			t.Fatalf("arms = %d", len(plan.Arms))
		}
		if plan.Arms[2].Test.Kind != TestInstance || plan.Arms[2].Test.Variant.Ctor.Name != "Rect" {
			t.Fatal("third arm must test the Rect variant")
		}
		if len(plan.Arms[2].Test.Elems) != 2 || plan.Arms[2].Test.Elems[0].Bind == nil {
			t.Fatal("payload bindings missing from the Rect arm")
		}
	}
}

func TestGuardedArmAddsNoCoverage(t *testing.T) {
	guarded := variantArm("Rect", []string{"w", "h"}, intLit(1))
	guarded.Guard = boolLit(true)
	unit := shapeUnit([]ast.MatchArm{
		variantArm("Dot", nil, intLit(0)),
		variantArm("Line", []string{"n"}, ident("n")),
		guarded,
	})

	reg := types.NewRegistry()
	bag := diag.NewBag(32)
	reporter := diag.BagReporter{Bag: bag}
	table := symbols.Collect(unit, reg, symbols.NewExports(), reporter)
	res := sema.Collect(unit, table, reg, reporter)
	sema.Check(res, reporter)
	Lower(res, reporter)

	var found bool
	for _, d := range bag.Items() {
		if d.Code == diag.LowNonExhaustiveMatch {
			found = true
		}
	}
	if !found {
		t.Fatal("guarded arm must not count toward coverage")
	}
}

func TestWildcardSealsAndLaterArmsAreRedundant(t *testing.T) {
	unit := shapeUnit([]ast.MatchArm{
		{Pattern: &ast.PatWildcard{Sp: sp(0)}, Body: intLit(0), Sp: sp(0)},
		variantArm("Dot", nil, intLit(1)),
	})
	_, bag := lowerUnit(t, unit)
	var found bool
	for _, d := range bag.Items() {
		if d.Code == diag.LowRedundantArm && d.Severity == diag.SevWarning {
			found = true
		}
	}
	if !found {
		t.Fatal("arm after a catch-all not flagged")
	}
}

// captureUnit builds a method with two locals and an async body using them
// in a fixed order, plus an untouched third local.
func captureUnit(mutableBase bool) *ast.Unit {
	body := &ast.Block{
		Stmts: []ast.Stmt{
			&ast.Let{Name: "base", Mutable: mutableBase, Init: intLit(10), Sp: sp(1)},
			&ast.Let{Name: "scale", Init: intLit(3), Sp: sp(2)},
			&ast.Let{Name: "unused", Init: intLit(99), Sp: sp(3)},
			&ast.Let{Name: "h", Init: &ast.Async{
				Body: &ast.Binary{Op: ast.BinMul, Left: ident("scale"), Right: ident("base"), Sp: sp(4)},
				Sp:   sp(5),
			}, Sp: sp(6)},
		},
		Value: &ast.Await{Value: ident("h"), Sp: sp(7)},
		Sp:    sp(0),
	}
	return &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{{
			Kind: ast.DeclClass, Name: "Calc", Sp: sp(0),
			Funs: []*ast.Fun{{Name: "run", Static: true, Return: ty("Int"), Body: body, Sp: sp(8)}},
		}},
		Sp: sp(0),
	}
}

func TestCapturesAreFirstUseOrdered(t *testing.T) {
	m, _ := lowerUnit(t, captureUnit(false))
	if len(m.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(m.Blocks))
	}
	bc := m.Blocks[0]
	if bc.Name != "demo/Calc$block$1" {
		t.Fatalf("helper name = %q", bc.Name)
	}
	if len(bc.Captures) != 2 {
		t.Fatalf("captures = %d, want 2", len(bc.Captures))
	}
	// scale is read first in the body even though base is declared first
	if bc.Captures[0].Local.Name != "scale" || bc.Captures[1].Local.Name != "base" {
		t.Fatalf("capture order = %s, %s", bc.Captures[0].Local.Name, bc.Captures[1].Local.Name)
	}
	if bc.CapturesThis {
		t.Fatal("static context must not capture a receiver")
	}
}

func TestCaptureOrderIsStableAcrossRuns(t *testing.T) {
	var names [][]string
	for i := 0; i < 5; i++ {
		m, _ := lowerUnit(t, captureUnit(false))
		var run []string
		for _, c := range m.Blocks[0].Captures {
			run = append(run, c.Local.Name)
		}
		names = append(names, run)
	}
	for i := 1; i < len(names); i++ {
		if len(names[i]) != len(names[0]) {
			t.Fatal("capture count drifted between runs")
		}
		for j := range names[i] {
			if names[i][j] != names[0][j] {
				t.Fatalf("run %d capture %d = %s, first run had %s", i, j, names[i][j], names[0][j])
			}
		}
	}
}

func TestReadOnlyMutableCaptureStaysPlain(t *testing.T) {
	// base is mutable, but the body only reads it: a plain value snapshot
	m, _ := lowerUnit(t, captureUnit(true))
	bc := m.Blocks[0]
	for _, c := range bc.Captures {
		if c.Boxed {
			t.Fatalf("capture %s boxed though the body never assigns it", c.Local.Name)
		}
	}
}

func TestWriteOnlyBindingIsCaptured(t *testing.T) {
	body := &ast.Block{
		Stmts: []ast.Stmt{
			&ast.Let{Name: "total", Mutable: true, Init: intLit(0), Sp: sp(1)},
			&ast.Let{Name: "h", Init: &ast.Async{
				Body: &ast.Block{
					Stmts: []ast.Stmt{&ast.Assign{Name: "total", Value: intLit(7), Sp: sp(2)}},
					Value: intLit(1),
					Sp:    sp(3),
				},
				Sp: sp(4),
			}, Sp: sp(5)},
		},
		Value: &ast.Await{Value: ident("h"), Sp: sp(6)},
		Sp:    sp(0),
	}
	unit := &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{{
			Kind: ast.DeclClass, Name: "Calc", Sp: sp(0),
			Funs: []*ast.Fun{{Name: "run", Static: true, Return: ty("Int"), Body: body, Sp: sp(7)}},
		}},
		Sp: sp(0),
	}
	m, _ := lowerUnit(t, unit)
	bc := m.Blocks[0]
	if len(bc.Captures) != 1 || bc.Captures[0].Local.Name != "total" {
		t.Fatalf("captures = %d, want total alone", len(bc.Captures))
	}
	if !bc.Captures[0].Boxed {
		t.Fatal("a capture the body assigns must be boxed")
	}
}

// receiverUnit declares an instance method whose async body reads two
// locals and a field of the receiver.
func receiverUnit() *ast.Unit {
	body := &ast.Block{
		Stmts: []ast.Stmt{
			&ast.Let{Name: "a", Init: intLit(2), Sp: sp(1)},
			&ast.Let{Name: "b", Init: intLit(3), Sp: sp(2)},
			&ast.Let{Name: "h", Init: &ast.Async{
				Body: &ast.Binary{
					Op:    ast.BinAdd,
					Left:  &ast.Binary{Op: ast.BinMul, Left: ident("a"), Right: ident("b"), Sp: sp(3)},
					Right: ident("offset"),
					Sp:    sp(4),
				},
				Sp: sp(5),
			}, Sp: sp(6)},
		},
		Value: &ast.Await{Value: ident("h"), Sp: sp(7)},
		Sp:    sp(0),
	}
	return &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{{
			Kind:   ast.DeclClass, Name: "Calc", Sp: sp(0),
			Fields: []ast.Field{{Name: "offset", Type: ty("Int"), Sp: sp(8)}},
			Funs:   []*ast.Fun{{Name: "run", Return: ty("Int"), Body: body, Sp: sp(9)}},
		}},
		Sp: sp(0),
	}
}

func TestInstanceStateCaptureTakesReceiverAndLocals(t *testing.T) {
	for run := 0; run < 2; run++ {
		m, _ := lowerUnit(t, receiverUnit())
		bc := m.Blocks[0]
		if !bc.CapturesThis {
			t.Fatal("field read must capture the receiver")
		}
		if len(bc.Captures) != 2 ||
			bc.Captures[0].Local.Name != "a" || bc.Captures[1].Local.Name != "b" {
			t.Fatalf("run %d: captures = %d, want a then b", run, len(bc.Captures))
		}
	}
}

func TestLocalsDeclaredInsideBodyAreNotCaptured(t *testing.T) {
	body := &ast.Block{
		Stmts: []ast.Stmt{
			&ast.Let{Name: "h", Init: &ast.Async{
				Body: &ast.Block{
					Stmts: []ast.Stmt{&ast.Let{Name: "local", Init: intLit(5), Sp: sp(1)}},
					Value: ident("local"),
					Sp:    sp(2),
				},
				Sp: sp(3),
			}, Sp: sp(4)},
		},
		Value: &ast.Await{Value: ident("h"), Sp: sp(5)},
		Sp:    sp(0),
	}
	unit := &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{{
			Kind: ast.DeclClass, Name: "Calc", Sp: sp(0),
			Funs: []*ast.Fun{{Name: "run", Static: true, Return: ty("Int"), Body: body, Sp: sp(6)}},
		}},
		Sp: sp(0),
	}
	m, _ := lowerUnit(t, unit)
	if len(m.Blocks[0].Captures) != 0 {
		t.Fatalf("captures = %d, want none", len(m.Blocks[0].Captures))
	}
}

func TestAsyncMethodGetsBodyWrapper(t *testing.T) {
	unit := &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{{
			Kind: ast.DeclClass, Name: "Calc", Sp: sp(0),
			Funs: []*ast.Fun{{
				Name: "fetch", Async: true, Static: true,
				Params: []ast.Param{{Name: "seed", Type: ty("Int"), Sp: sp(1)}},
				Return: ty("Int"),
				Body:   ident("seed"),
				Sp:     sp(2),
			}},
		}},
		Sp: sp(0),
	}
	m, _ := lowerUnit(t, unit)
	meth := m.Res.Decls[0].Methods[0]
	bc := m.ByMethod[meth]
	if bc == nil {
		t.Fatal("async method body has no wrapper class")
	}
	if len(bc.Captures) != 1 || bc.Captures[0].Local.Name != "seed" {
		t.Fatal("parameter used by the body must be captured")
	}
	if bc.Elem != m.Res.Reg.Builtins().Int {
		t.Fatal("wrapper element type must be the declared return")
	}
	// body value crosses the erased surface: box int
	adj := m.Adjusts[meth.Fun.Body]
	if len(adj) != 1 || adj[0].Kind != AdjBox {
		t.Fatalf("body adjusts = %+v, want one boxing step", adj)
	}
}

func TestAwaitNarrowingPlansCastAndUnbox(t *testing.T) {
	m, _ := lowerUnit(t, captureUnit(false))
	var await *ast.Await
	for _, d := range m.Res.Decls {
		walkExprs(d.Methods[0].Fun.Body, func(e ast.Expr) {
			if a, ok := e.(*ast.Await); ok {
				await = a
			}
		})
	}
	if await == nil {
		t.Fatal("no await in unit")
	}
	adj := m.Adjusts[await]
	if len(adj) != 2 || adj[0].Kind != AdjCast || adj[1].Kind != AdjUnbox {
		t.Fatalf("await adjusts = %+v, want cast then unbox", adj)
	}
}

func TestNullaryVariantsBecomeSingletons(t *testing.T) {
	unit := shapeUnit([]ast.MatchArm{
		{Pattern: &ast.PatWildcard{Sp: sp(0)}, Body: intLit(0), Sp: sp(0)},
	})
	m, _ := lowerUnit(t, unit)
	var layout *SumLayout
	for _, l := range m.Sums {
		layout = l
	}
	if layout == nil {
		t.Fatal("sum layout missing")
	}
	dot := layout.ByName("Dot")
	if dot == nil || dot.SingletonField == "" {
		t.Fatal("nullary variant must lower to a singleton field")
	}
	if dot.Internal != "demo/Shape$Dot" {
		t.Fatalf("variant internal name = %q", dot.Internal)
	}
	if line := layout.ByName("Line"); line.SingletonField != "" {
		t.Fatal("payload variant must not be a singleton")
	}
}
