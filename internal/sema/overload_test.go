package sema

import (
	"testing"

	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/types"
)

// Scenario: maxOf(10, 42L) with Int and Long overloads must skip the exact
// phase, resolve in the widening phase to the Long overload, and plan a
// widening conversion for the narrower literal only.
func TestWideningPhasePicksWiderOverload(t *testing.T) {
	res, bag := checkUnit(t, mathUnit(intLit(10), longLit(42)))
	mustClean(t, bag)

	_, rc := findCall(t, res)
	if rc.Phase != PhaseWidening {
		t.Fatalf("phase = %v, want widening", rc.Phase)
	}
	if rc.Method == nil || rc.Method.Params[0] != res.Reg.Builtins().Long {
		t.Fatal("did not pick the Long overload")
	}
	if rc.Plan[0] != ConvWiden || rc.Plan[1] != ConvNone {
		t.Fatalf("plan = %v, want [widen none]", rc.Plan)
	}
}

func TestExactPhaseWinsWhenAvailable(t *testing.T) {
	res, bag := checkUnit(t, mathUnit(intLit(10), intLit(42)))
	mustClean(t, bag)

	_, rc := findCall(t, res)
	if rc.Phase != PhaseExact {
		t.Fatalf("phase = %v, want exact", rc.Phase)
	}
	if rc.Method.Params[0] != res.Reg.Builtins().Int {
		t.Fatal("exact phase must pick the Int overload")
	}
	for i, conv := range rc.Plan {
		if conv != ConvNone {
			t.Fatalf("plan[%d] = %v, want none", i, conv)
		}
	}
}

// Fixed candidates and fixed argument types must resolve identically on
// repeat: same target, same conversion plan.
func TestResolutionIsDeterministic(t *testing.T) {
	reg := types.NewRegistry()
	b := reg.Builtins()
	owner := &Declared{Qualified: "demo.M", Type: reg.RegisterClass("demo.M")}
	cands := []candidate{
		{method: &Method{Name: "f", Owner: owner, Params: []types.TypeID{b.Long}}, params: []types.TypeID{b.Long}},
		{method: &Method{Name: "f", Owner: owner, Params: []types.TypeID{b.String}}, params: []types.TypeID{b.String}},
	}
	args := []types.TypeID{b.Int}

	first := resolveOverload(reg, cands, args, "f", sp(0), diag.NopReporter{})
	if first == nil {
		t.Fatal("resolution failed")
	}
	for i := 0; i < 10; i++ {
		again := resolveOverload(reg, cands, args, "f", sp(0), diag.NopReporter{})
		if again == nil {
			t.Fatal("repeat resolution failed")
		}
		if again.Method != first.Method || again.Phase != first.Phase {
			t.Fatal("resolution is not deterministic")
		}
		if len(again.Plan) != len(first.Plan) {
			t.Fatal("plan changed between runs")
		}
		for j := range again.Plan {
			if again.Plan[j] != first.Plan[j] {
				t.Fatal("conversion plan is not stable")
			}
		}
	}
	// Int widens to both Long and Double inside one phase: that is a tie and
	// must be an error naming both candidates, never an arbitrary pick.
	tied := []candidate{
		{method: &Method{Name: "f", Owner: owner, Params: []types.TypeID{b.Long}}, params: []types.TypeID{b.Long}},
		{method: &Method{Name: "f", Owner: owner, Params: []types.TypeID{b.Double}}, params: []types.TypeID{b.Double}},
	}
	bag := diag.NewBag(8)
	got := resolveOverload(reg, tied, args, "f", sp(0), diag.BagReporter{Bag: bag})
	if got != nil {
		t.Fatal("same-phase tie must not produce a target")
	}
	if bag.Items()[0].Code != diag.SemAmbiguousCall {
		t.Fatalf("code = %v", bag.Items()[0].Code)
	}
	if len(bag.Items()[0].Notes) != 2 {
		t.Fatalf("ambiguity must name all %d ties, got %d notes", 2, len(bag.Items()[0].Notes))
	}
}

func TestEarlierPhaseShadowsLaterOnes(t *testing.T) {
	reg := types.NewRegistry()
	b := reg.Builtins()
	owner := &Declared{Qualified: "demo.M", Type: reg.RegisterClass("demo.M")}
	// Боксирующий кандидат не должен рассматриваться, когда точный нашёлся.
	exact := &Method{Name: "g", Owner: owner, Params: []types.TypeID{b.Int}}
	boxing := &Method{Name: "g", Owner: owner, Params: []types.TypeID{b.BoxedInt}}
	cands := []candidate{
		{method: exact, params: exact.Params},
		{method: boxing, params: boxing.Params},
	}
	rc := resolveOverload(reg, cands, []types.TypeID{b.Int}, "g", sp(0), diag.NopReporter{})
	if rc == nil || rc.Method != exact || rc.Phase != PhaseExact {
		t.Fatalf("got %+v, want the exact candidate", rc)
	}
}

func TestBoxingPhase(t *testing.T) {
	reg := types.NewRegistry()
	b := reg.Builtins()
	owner := &Declared{Qualified: "demo.M", Type: reg.RegisterClass("demo.M")}
	m := &Method{Name: "h", Owner: owner, Params: []types.TypeID{b.Object}}
	cands := []candidate{{method: m, params: m.Params}}

	rc := resolveOverload(reg, cands, []types.TypeID{b.Int}, "h", sp(0), diag.NopReporter{})
	if rc == nil || rc.Phase != PhaseBoxing {
		t.Fatalf("phase = %+v, want boxing", rc)
	}
	if rc.Plan[0] != ConvBox {
		t.Fatalf("plan = %v, want [box]", rc.Plan)
	}

	unbox := &Method{Name: "u", Owner: owner, Params: []types.TypeID{b.Int}}
	rc = resolveOverload(reg, []candidate{{method: unbox, params: unbox.Params}},
		[]types.TypeID{b.BoxedInt}, "u", sp(0), diag.NopReporter{})
	if rc == nil || rc.Phase != PhaseBoxing || rc.Plan[0] != ConvUnbox {
		t.Fatalf("got %+v, want unbox plan", rc)
	}
}

func TestVarargsTailPacking(t *testing.T) {
	reg := types.NewRegistry()
	b := reg.Builtins()
	owner := &Declared{Qualified: "demo.M", Type: reg.RegisterClass("demo.M")}
	m := &Method{
		Name:     "join",
		Owner:    owner,
		Params:   []types.TypeID{b.String, reg.RegisterArray(b.Int)},
		Variadic: true,
	}
	cands := []candidate{{method: m, params: m.Params, variadic: true}}

	rc := resolveOverload(reg, cands,
		[]types.TypeID{b.String, b.Int, b.Int, b.Int}, "join", sp(0), diag.NopReporter{})
	if rc == nil || rc.Phase != PhaseVarargs {
		t.Fatalf("got %+v, want varargs phase", rc)
	}
	want := []ConvKind{ConvNone, ConvPackTail, ConvPackTail, ConvPackTail}
	for i, conv := range rc.Plan {
		if conv != want[i] {
			t.Fatalf("plan = %v, want %v", rc.Plan, want)
		}
	}
	if rc.PackFrom != 1 {
		t.Fatalf("PackFrom = %d, want 1", rc.PackFrom)
	}

	// пустой хвост тоже упаковывается
	rc = resolveOverload(reg, cands, []types.TypeID{b.String}, "join", sp(0), diag.NopReporter{})
	if rc == nil || rc.Phase != PhaseVarargs || rc.PackFrom != 1 {
		t.Fatalf("empty tail: got %+v", rc)
	}
}

func TestNoApplicableOverloadNamesCandidates(t *testing.T) {
	res, bag := checkUnit(t, mathUnit(strLit("nope"), intLit(1)))
	_ = res
	if !bag.HasErrors() {
		t.Fatal("expected NoApplicableOverload")
	}
	var found bool
	for _, d := range bag.Items() {
		if d.Code == diag.SemNoApplicableOverload && len(d.Notes) == 2 {
			found = true
		}
	}
	if !found {
		t.Fatal("diagnostic must enumerate both candidates")
	}
}

func TestVariantCtorParticipatesInResolution(t *testing.T) {
	unit := &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{
			{
				Kind: ast.DeclSum,
				Name: "Shape",
				Sp:   sp(0),
				Variants: []ast.Variant{
					{Name: "Dot", Sp: sp(1)},
					{Name: "Circle", Fields: []ast.Field{{Name: "radius", Type: ty("Double"), Sp: sp(2)}}, Sp: sp(3)},
				},
			},
			{
				Kind: ast.DeclClass,
				Name: "Use",
				Sp:   sp(4),
				Funs: []*ast.Fun{{
					Name:   "mk",
					Static: true,
					Return: ty("Shape"),
					Body:   &ast.Call{Name: "Circle", Args: []ast.Expr{doubleLit(1.5)}, Sp: sp(5)},
					Sp:     sp(6),
				}},
			},
		},
		Sp: sp(0),
	}
	res, bag := checkUnit(t, unit)
	mustClean(t, bag)
	for call, rc := range res.Calls {
		if call.Name != "Circle" {
			continue
		}
		if rc.Variant == nil || rc.Variant.Name != "Circle" {
			t.Fatalf("resolved %+v, want variant ctor", rc)
		}
		if got := res.TypeOf(call); got != rc.Variant.Owner.Type {
			t.Fatalf("constructed value has type %s, want the sum base", res.Reg.String(got))
		}
		return
	}
	t.Fatal("Circle call not resolved")
}
