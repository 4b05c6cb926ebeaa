package symbols

import (
	"testing"

	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/source"
	"lumen/internal/types"
)

func sp(start uint32) source.Span {
	return source.Span{File: 0, Start: start, End: start + 1}
}

func collect(t *testing.T, unit *ast.Unit, exports *Exports) (*Table, *diag.Bag, *types.Registry) {
	t.Helper()
	reg := types.NewRegistry()
	bag := diag.NewBag(16)
	if exports == nil {
		exports = NewExports()
	}
	table := Collect(unit, reg, exports, diag.BagReporter{Bag: bag})
	return table, bag, reg
}

// Tier priority must hold regardless of the order bindings were declared in.
func TestTierPriority(t *testing.T) {
	reg := types.NewRegistry()
	exports := NewExports()
	wildcardString := reg.RegisterClass("other.String")
	exports.Add("other", "String", wildcardString)

	unit := &ast.Unit{
		Package: "demo",
		Imports: []ast.Import{{Path: "other", Wildcard: true, Sp: sp(0)}},
		Decls:   []*ast.TypeDecl{{Kind: ast.DeclClass, Name: "String", Sp: sp(10)}},
	}
	bag := diag.NewBag(16)
	table := Collect(unit, reg, exports, diag.BagReporter{Bag: bag})

	res := table.Resolve("String")
	if !res.Found {
		t.Fatal("String not resolved")
	}
	// native String beats the wildcard import and the in-unit declaration
	if res.Binding.Tier != TierNative {
		t.Fatalf("tier = %v, want native", res.Binding.Tier)
	}
	if res.Binding.Type != reg.Builtins().String {
		t.Fatalf("resolved to %s", reg.String(res.Binding.Type))
	}
}

func TestExplicitImportBeatsWildcardAndUnit(t *testing.T) {
	reg := types.NewRegistry()
	exports := NewExports()
	direct := reg.RegisterClass("a.List")
	wild := reg.RegisterClass("b.List")
	exports.Add("a", "List", direct)
	exports.Add("b", "List", wild)

	unit := &ast.Unit{
		Package: "demo",
		Imports: []ast.Import{
			// порядок объявления не влияет на приоритет
			{Path: "b", Wildcard: true, Sp: sp(0)},
			{Path: "a.List", Sp: sp(5)},
		},
		Decls: []*ast.TypeDecl{{Kind: ast.DeclClass, Name: "List", Sp: sp(10)}},
	}
	bag := diag.NewBag(16)
	table := Collect(unit, reg, exports, diag.BagReporter{Bag: bag})

	res := table.Resolve("List")
	if !res.Found || res.Binding.Type != direct {
		t.Fatalf("List resolved to %+v, want explicit import", res)
	}
}

func TestWildcardCollisionNamesAllCandidates(t *testing.T) {
	reg := types.NewRegistry()
	exports := NewExports()
	exports.Add("a", "Set", reg.RegisterClass("a.Set"))
	exports.Add("b", "Set", reg.RegisterClass("b.Set"))

	unit := &ast.Unit{
		Package: "demo",
		Imports: []ast.Import{
			{Path: "a", Wildcard: true, Sp: sp(0)},
			{Path: "b", Wildcard: true, Sp: sp(5)},
		},
	}
	bag := diag.NewBag(16)
	table := Collect(unit, reg, exports, diag.BagReporter{Bag: bag})

	res := table.Resolve("Set")
	if res.Found {
		t.Fatal("collision silently picked a candidate")
	}
	if !res.Collision || len(res.Candidates) != 2 {
		t.Fatalf("candidates = %+v", res.Candidates)
	}
}

func TestDuplicateExplicitImport(t *testing.T) {
	unit := &ast.Unit{
		Package: "demo",
		Imports: []ast.Import{
			{Path: "a.Thing", Sp: sp(0)},
			{Path: "b.Thing", Sp: sp(5)},
		},
	}
	_, bag, _ := collect(t, unit, nil)
	if !bag.HasErrors() {
		t.Fatal("duplicate explicit import not reported")
	}
	if bag.Items()[0].Code != diag.SemDuplicateDeclaration {
		t.Fatalf("code = %v", bag.Items()[0].Code)
	}
}

func TestDuplicateUnitDeclaration(t *testing.T) {
	unit := &ast.Unit{
		Package: "demo",
		Decls: []*ast.TypeDecl{
			{Kind: ast.DeclClass, Name: "Box", Sp: sp(0)},
			{Kind: ast.DeclRecord, Name: "Box", Sp: sp(20)},
		},
	}
	_, bag, _ := collect(t, unit, nil)
	if !bag.HasErrors() {
		t.Fatal("duplicate unit declaration not reported")
	}
}

func TestHostNamespaceIsLastResort(t *testing.T) {
	unit := &ast.Unit{Package: "demo"}
	table, _, reg := collect(t, unit, nil)

	res := table.Resolve("Exception")
	if !res.Found || res.Binding.Tier != TierHost {
		t.Fatalf("Exception resolved as %+v", res)
	}
	if reg.String(res.Binding.Type) != "java.lang.Exception" {
		t.Fatalf("type = %s", reg.String(res.Binding.Type))
	}
	if res := table.Resolve("NoSuchThing"); res.Found || res.Collision {
		t.Fatalf("phantom name resolved: %+v", res)
	}
}

func TestNormalizeNFC(t *testing.T) {
	// е + combining acute vs precomposed е́ must intern identically
	decomposed := "café"
	precomposed := "café"
	if Normalize(decomposed) != Normalize(precomposed) {
		t.Fatal("NFC normalization is not applied")
	}
}
