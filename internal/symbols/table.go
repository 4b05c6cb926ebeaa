// Package symbols builds the per-unit name resolution table.
//
// Short names resolve through a fixed tier order: native types, explicit
// single imports, wildcard imports, in-unit declarations, then the implicit
// host namespace. Lower tiers never override higher ones; duplicates inside
// one tier are errors. The table is built once per unit and read-only after.
package symbols

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/source"
	"lumen/internal/types"
)

// Tier orders resolution priority; a smaller value wins.
type Tier uint8

const (
	TierNative Tier = iota
	TierImport
	TierWildcard
	TierUnit
	TierHost
)

func (t Tier) String() string {
	switch t {
	case TierNative:
		return "native"
	case TierImport:
		return "import"
	case TierWildcard:
		return "wildcard import"
	case TierUnit:
		return "unit declaration"
	case TierHost:
		return "host namespace"
	}
	return "invalid"
}

// Binding is one resolved short name.
type Binding struct {
	Name string
	Type types.TypeID
	Tier Tier
	Sp   source.Span
}

// Result is the outcome of a table lookup.
type Result struct {
	Binding    Binding
	Found      bool
	Collision  bool
	Candidates []Binding // populated on same-tier collisions
}

// Table is the per-unit symbol and import table.
type Table struct {
	reg      *types.Registry
	exports  *Exports
	imports  map[string]Binding
	wildcard map[string][]Binding // collisions kept; reported on use
	unit     map[string]Binding
}

// Collect builds the table for one unit. Same-tier duplicates among explicit
// imports and in-unit declarations are reported immediately; wildcard
// collisions surface only if the colliding name is actually resolved.
func Collect(unit *ast.Unit, reg *types.Registry, exports *Exports, r diag.Reporter) *Table {
	t := &Table{
		reg:      reg,
		exports:  exports,
		imports:  make(map[string]Binding),
		wildcard: make(map[string][]Binding),
		unit:     make(map[string]Binding),
	}

	for _, imp := range unit.Imports {
		if imp.Wildcard {
			t.collectWildcard(imp)
			continue
		}
		t.collectImport(imp, r)
	}

	for _, decl := range unit.Decls {
		name := Normalize(decl.Name)
		if prev, ok := t.unit[name]; ok {
			diag.ReportError(r, diag.SemDuplicateDeclaration, decl.Sp,
				fmt.Sprintf("type %q is declared twice in this unit", name)).
				WithNote(prev.Sp, "first declaration is here").
				Emit()
			continue
		}
		qualified := name
		if unit.Package != "" {
			qualified = unit.Package + "." + name
		}
		t.unit[name] = Binding{
			Name: name,
			Type: reg.RegisterClass(qualified),
			Tier: TierUnit,
			Sp:   decl.Sp,
		}
	}
	return t
}

func (t *Table) collectImport(imp ast.Import, r diag.Reporter) {
	path := Normalize(imp.Path)
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 {
		// single-segment import: nothing to bind beyond the unit itself
		diag.ReportWarning(r, diag.SemAmbiguousImport, imp.Sp,
			fmt.Sprintf("import %q has no package qualifier", path)).Emit()
		return
	}
	pkg, name := path[:dot], path[dot+1:]
	if prev, ok := t.imports[name]; ok {
		diag.ReportError(r, diag.SemDuplicateDeclaration, imp.Sp,
			fmt.Sprintf("name %q is imported twice", name)).
			WithNote(prev.Sp, "first import is here").
			Emit()
		return
	}
	id, ok := t.exports.Lookup(pkg, name)
	if !ok {
		// допускаем импорт типов, которых нет в индексе экспортов:
		// ссылка на внешний класс хоста разрешится по qualified имени
		id = t.reg.RegisterClass(path)
	}
	t.imports[name] = Binding{Name: name, Type: id, Tier: TierImport, Sp: imp.Sp}
}

func (t *Table) collectWildcard(imp ast.Import) {
	pkg := Normalize(imp.Path)
	for _, name := range t.exports.Names(pkg) {
		id, _ := t.exports.Lookup(pkg, name)
		t.wildcard[name] = append(t.wildcard[name], Binding{
			Name: name,
			Type: id,
			Tier: TierWildcard,
			Sp:   imp.Sp,
		})
	}
}

// Resolve applies the tier order to a short name. It never silently picks
// among same-tier candidates: a wildcard collision comes back with
// Collision=true and all candidates.
func (t *Table) Resolve(name string) Result {
	name = Normalize(name)
	if id, ok := t.reg.Native(name); ok {
		return found(Binding{Name: name, Type: id, Tier: TierNative})
	}
	if b, ok := t.imports[name]; ok {
		return found(b)
	}
	if cands := t.wildcard[name]; len(cands) > 0 {
		if len(cands) > 1 {
			sorted := append([]Binding(nil), cands...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].Type < sorted[j].Type })
			return Result{Collision: true, Candidates: sorted}
		}
		return found(cands[0])
	}
	if b, ok := t.unit[name]; ok {
		return found(b)
	}
	if id, ok := t.reg.Host(name); ok {
		return found(Binding{Name: name, Type: id, Tier: TierHost})
	}
	return Result{}
}

func found(b Binding) Result {
	return Result{Binding: b, Found: true}
}

// UnitBinding returns the binding for an in-unit declaration.
func (t *Table) UnitBinding(name string) (Binding, bool) {
	b, ok := t.unit[Normalize(name)]
	return b, ok
}

// Normalize canonicalizes identifier text. The front end is external, so the
// table applies NFC at its boundary instead of trusting the producer.
func Normalize(s string) string {
	if norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}
