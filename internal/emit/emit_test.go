package emit

import (
	"encoding/binary"
	"testing"

	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/lower"
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
func ident(name string) *ast.Ident { return &ast.Ident{Name: name, Sp: sp(0)} }

func compile(t *testing.T, unit *ast.Unit) ([]Class, *diag.Bag) {
	t.Helper()
	return compileNamed(t, unit, "")
}

func compileNamed(t *testing.T, unit *ast.Unit, src string) ([]Class, *diag.Bag) {
	t.Helper()
	reg := types.NewRegistry()
	bag := diag.NewBag(64)
	reporter := diag.BagReporter{Bag: bag}
	table := symbols.Collect(unit, reg, symbols.NewExports(), reporter)
	res := sema.Collect(unit, table, reg, reporter)
	sema.Check(res, reporter)
	if bag.HasErrors() {
		t.Fatalf("unit does not check: %+v", bag.Items())
	}
	mod := lower.Lower(res, reporter)
	if bag.HasErrors() {
		t.Fatalf("unit does not lower: %+v", bag.Items())
	}
	mod.SourceFile = src
	return Emit(mod, reporter), bag
}

func classNamed(t *testing.T, out []Class, internal string) Class {
	t.Helper()
	for _, c := range out {
		if c.Internal == internal {
			return c
		}
	}
	t.Fatalf("class %s not emitted; have %v", internal, names(out))
	return Class{}
}

func names(out []Class) []string {
	var ns []string
	for _, c := range out {
		ns = append(ns, c.Internal)
	}
	return ns
}

func checkHeader(t *testing.T, c Class) {
	t.Helper()
	if len(c.Data) < 10 {
		t.Fatalf("%s: truncated class file", c.Internal)
	}
	if binary.BigEndian.Uint32(c.Data[:4]) != 0xCAFEBABE {
		t.Fatalf("%s: bad magic", c.Internal)
	}
	if got := binary.BigEndian.Uint16(c.Data[6:8]); got != MajorVersionOnWire(c) {
		t.Fatalf("%s: major = %d", c.Internal, got)
	}
}

func MajorVersionOnWire(Class) uint16 { return 52 }

func TestSumTypeEmitsBaseAndVariantClasses(t *testing.T) {
	unit := &ast.Unit{
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
					Body: &ast.Match{
						Scrutinee: ident("s"),
						Arms: []ast.MatchArm{
							{Pattern: &ast.PatVariant{Name: "Dot", Sp: sp(9)}, Body: intLit(0), Sp: sp(9)},
							{Pattern: &ast.PatVariant{Name: "Line",
								Elems: []ast.Pattern{&ast.PatBind{Name: "n", Sp: sp(10)}}, Sp: sp(10)},
								Body: ident("n"), Sp: sp(10)},
							{Pattern: &ast.PatVariant{Name: "Rect",
								Elems: []ast.Pattern{
									&ast.PatBind{Name: "w", Sp: sp(11)},
									&ast.PatBind{Name: "h", Sp: sp(11)},
								}, Sp: sp(11)},
								Body: &ast.Binary{Op: ast.BinMul, Left: ident("w"), Right: ident("h"), Sp: sp(11)},
								Sp:   sp(11)},
						},
						Sp: sp(12),
					},
					Sp: sp(13),
				}},
			},
		},
		Sp: sp(0),
	}

	out, bag := compile(t, unit)
	if bag.HasErrors() {
		t.Fatalf("diagnostics: %+v", bag.Items())
	}
	for _, want := range []string{"demo/Shape", "demo/Shape$Dot", "demo/Shape$Line", "demo/Shape$Rect", "demo/Use"} {
		checkHeader(t, classNamed(t, out, want))
	}
	if len(out) != 5 {
		t.Fatalf("emitted %d classes: %v", len(out), names(out))
	}
}

func TestAsyncBlockEmitsHelperClass(t *testing.T) {
	body := &ast.Block{
		Stmts: []ast.Stmt{
			&ast.Let{Name: "base", Init: intLit(10), Sp: sp(1)},
			&ast.Let{Name: "h", Init: &ast.Async{Body: ident("base"), Sp: sp(2)}, Sp: sp(3)},
		},
		Value: &ast.Await{Value: ident("h"), Sp: sp(4)},
		Sp:    sp(0),
	}
	unit := &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{{
			Kind: ast.DeclClass, Name: "Calc", Sp: sp(0),
			Funs: []*ast.Fun{{Name: "run", Static: true, Return: ty("Int"), Body: body, Sp: sp(5)}},
		}},
		Sp: sp(0),
	}
	out, bag := compile(t, unit)
	if bag.HasErrors() {
		t.Fatalf("diagnostics: %+v", bag.Items())
	}
	helper := classNamed(t, out, "demo/Calc$block$1")
	checkHeader(t, helper)
}

func TestPostSpawnWritesAreInvisibleToTheBody(t *testing.T) {
	// count is mutable but the body only reads it: the helper gets a plain
	// int snapshot and the enclosing frame keeps its slot, so the assignment
	// after the spawn cannot reach the body
	body := &ast.Block{
		Stmts: []ast.Stmt{
			&ast.Let{Name: "count", Mutable: true, Init: intLit(0), Sp: sp(1)},
			&ast.Let{Name: "h", Init: &ast.Async{Body: ident("count"), Sp: sp(2)}, Sp: sp(3)},
			&ast.Assign{Name: "count", Value: intLit(1), Sp: sp(4)},
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
	out, bag := compile(t, unit)
	if bag.HasErrors() {
		t.Fatalf("diagnostics: %+v", bag.Items())
	}
	helper := classNamed(t, out, "demo/Calc$block$1")
	if containsBytes(helper.Data, []byte("lumen/rt/Cell")) {
		t.Fatal("read-only capture must be a plain snapshot, not a cell")
	}
	owner := classNamed(t, out, "demo/Calc")
	if containsBytes(owner.Data, []byte("lumen/rt/Cell")) {
		t.Fatal("enclosing frame must keep its plain slot")
	}
	if !containsBytes(helper.Data, []byte("(I)V")) {
		t.Fatal("helper constructor must take the int snapshot")
	}
}

func TestBodyWritesGoThroughPrivateCell(t *testing.T) {
	body := &ast.Block{
		Stmts: []ast.Stmt{
			&ast.Let{Name: "total", Mutable: true, Init: intLit(0), Sp: sp(1)},
			&ast.Let{Name: "h", Init: &ast.Async{
				Body: &ast.Block{
					Stmts: []ast.Stmt{&ast.Assign{Name: "total", Value: intLit(7), Sp: sp(2)}},
					Value: ident("total"),
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
	out, bag := compile(t, unit)
	if bag.HasErrors() {
		t.Fatalf("diagnostics: %+v", bag.Items())
	}
	helper := classNamed(t, out, "demo/Calc$block$1")
	if !containsBytes(helper.Data, []byte("lumen/rt/Cell")) {
		t.Fatal("assigned capture must live in a cell inside the body")
	}
	if !containsBytes(helper.Data, []byte("(Llumen/rt/Cell;)V")) {
		t.Fatal("helper constructor must take the snapshot cell")
	}
	// the spawn site builds the fresh cell; the frame's own slot stays plain
	owner := classNamed(t, out, "demo/Calc")
	if !containsBytes(owner.Data, []byte("lumen/rt/Cell")) {
		t.Fatal("spawn site must construct the snapshot cell")
	}
}

func TestHelperConstructorTakesReceiverFirst(t *testing.T) {
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
	unit := &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{{
			Kind:   ast.DeclClass, Name: "Calc", Sp: sp(0),
			Fields: []ast.Field{{Name: "offset", Type: ty("Int"), Sp: sp(8)}},
			Funs:   []*ast.Fun{{Name: "run", Return: ty("Int"), Body: body, Sp: sp(9)}},
		}},
		Sp: sp(0),
	}
	out, bag := compile(t, unit)
	if bag.HasErrors() {
		t.Fatalf("diagnostics: %+v", bag.Items())
	}
	helper := classNamed(t, out, "demo/Calc$block$1")
	if !containsBytes(helper.Data, []byte("(Ldemo/Calc;II)V")) {
		t.Fatal("constructor must take the receiver before the captures")
	}
}

func TestHelperTiedToOwnerWithInnerClasses(t *testing.T) {
	body := &ast.Block{
		Stmts: []ast.Stmt{
			&ast.Let{Name: "base", Init: intLit(10), Sp: sp(1)},
			&ast.Let{Name: "h", Init: &ast.Async{Body: ident("base"), Sp: sp(2)}, Sp: sp(3)},
		},
		Value: &ast.Await{Value: ident("h"), Sp: sp(4)},
		Sp:    sp(0),
	}
	unit := &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{{
			Kind: ast.DeclClass, Name: "Calc", Sp: sp(0),
			Funs: []*ast.Fun{{Name: "run", Static: true, Return: ty("Int"), Body: body, Sp: sp(5)}},
		}},
		Sp: sp(0),
	}
	out, bag := compile(t, unit)
	if bag.HasErrors() {
		t.Fatalf("diagnostics: %+v", bag.Items())
	}
	for _, name := range []string{"demo/Calc", "demo/Calc$block$1"} {
		c := classNamed(t, out, name)
		if !containsBytes(c.Data, []byte("InnerClasses")) {
			t.Fatalf("%s: InnerClasses attribute missing", c.Internal)
		}
	}
}

func TestSourceFileStampsEveryClass(t *testing.T) {
	unit := &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{{
			Kind: ast.DeclClass, Name: "Calc", Sp: sp(0),
			Funs: []*ast.Fun{{Name: "run", Static: true, Return: ty("Int"), Body: intLit(1), Sp: sp(1)}},
		}},
		Sp: sp(0),
	}
	out, bag := compileNamed(t, unit, "calc.lum")
	if bag.HasErrors() {
		t.Fatalf("diagnostics: %+v", bag.Items())
	}
	for _, c := range out {
		if !containsBytes(c.Data, []byte("SourceFile")) || !containsBytes(c.Data, []byte("calc.lum")) {
			t.Fatalf("%s: source file not stamped", c.Internal)
		}
	}
}

func containsBytes(haystack, needle []byte) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func TestJoinShapeMismatchIsLatched(t *testing.T) {
	c := NewCode()
	end := c.NewLabel()
	// one edge carries an int, the other a long
	c.Push(slotInt)
	c.Jump(opGoto, end)
	c.MarkDead()
	c.Push(slotLong)
	c.Jump(opGoto, end)
	if c.Err() == nil {
		t.Fatal("conflicting join shapes not detected")
	}
}

func TestBranchPatching(t *testing.T) {
	c := NewCode()
	l := c.NewLabel()
	c.Push(slotInt)
	c.Pop()
	c.Jump(opIfeq, l)
	c.Op(opNop)
	c.Bind(l)
	c.Op(opReturn)
	raw, err := c.Finish()
	if err != nil {
		t.Fatal(err)
	}
	// ifeq at 0, operand = distance to the bound label
	if raw[0] != opIfeq {
		t.Fatalf("first op = %#x", raw[0])
	}
	off := int16(binary.BigEndian.Uint16(raw[1:3]))
	if int(off) != 4 {
		t.Fatalf("branch offset = %d, want 4", off)
	}
}

func TestStackDepthTracksWideValues(t *testing.T) {
	c := NewCode()
	c.Push(slotLong)
	c.Push(slotLong)
	if c.MaxStack() != 4 {
		t.Fatalf("max stack = %d, want 4", c.MaxStack())
	}
}
