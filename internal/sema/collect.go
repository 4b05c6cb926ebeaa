package sema

import (
	"fmt"
	"strings"

	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/symbols"
	"lumen/internal/types"
)

// Collect builds the declared type units for one unit and registers their
// canonical types. It must run before Check; the returned Result is then
// passed to Check to fill in body-level information.
func Collect(unit *ast.Unit, table *symbols.Table, reg *types.Registry, r diag.Reporter) *Result {
	res := newResult(unit, table, reg)

	// Первый проход: канонические типы для всех деклараций юнита,
	// чтобы методы могли ссылаться друг на друга независимо от порядка.
	for _, declAST := range unit.Decls {
		binding, ok := table.UnitBinding(declAST.Name)
		if !ok {
			// дубликат декларации: таблица уже сообщила об ошибке
			continue
		}
		d := &Declared{
			Decl:      declAST,
			Type:      binding.Type,
			Qualified: qualifiedName(unit.Package, declAST.Name),
			Super:     reg.Builtins().Object,
		}
		res.Decls = append(res.Decls, d)
		res.ByType[d.Type] = d
	}

	for _, d := range res.Decls {
		collectSupers(res, d, r)
		collectFields(res, d, r)
		collectVariants(res, d, r)
		collectMethods(res, d, r)
	}
	return res
}

func qualifiedName(pkg, name string) string {
	name = symbols.Normalize(name)
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

func collectSupers(res *Result, d *Declared, r diag.Reporter) {
	for _, sup := range d.Decl.Supers {
		id := ResolveType(res, r, sup)
		if !id.IsValid() {
			continue
		}
		if res.Reg.Get(id).Kind != types.KindClass {
			diag.ReportError(r, diag.SemTypeMismatch, sup.Sp,
				fmt.Sprintf("%s cannot be a supertype", res.Reg.String(id))).Emit()
			continue
		}
		// одна цепочка наследования: первый супертип-класс становится базой
		if d.Super == res.Reg.Builtins().Object {
			d.Super = id
			res.Reg.SetSuper(d.Type, id)
		}
	}
}

func collectFields(res *Result, d *Declared, r diag.Reporter) {
	if d.Decl.Kind == ast.DeclSum || d.Decl.Kind == ast.DeclTrait {
		return
	}
	for i, f := range d.Decl.Fields {
		ft := ResolveType(res, r, f.Type)
		d.Fields = append(d.Fields, FieldInfo{
			Name:  symbols.Normalize(f.Name),
			Type:  ft,
			Index: i,
			Sp:    f.Sp,
		})
	}
}

func collectVariants(res *Result, d *Declared, r diag.Reporter) {
	if d.Decl.Kind != ast.DeclSum {
		return
	}
	seen := make(map[string]*ast.Variant, len(d.Decl.Variants))
	for i := range d.Decl.Variants {
		v := &d.Decl.Variants[i]
		name := symbols.Normalize(v.Name)
		if prev, ok := seen[name]; ok {
			diag.ReportError(r, diag.SemDuplicateDeclaration, v.Sp,
				fmt.Sprintf("variant %q is declared twice in sum type %q", name, d.Decl.Name)).
				WithNote(prev.Sp, "first declaration is here").
				Emit()
			continue
		}
		seen[name] = v

		// Каждый конструктор получает собственный класс-наследник базы —
		// представления вариантов не пересекаются.
		variantType := res.Reg.RegisterClass(d.Qualified + "$" + name)
		res.Reg.SetSuper(variantType, d.Type)

		ctor := &VariantCtor{
			Name:  name,
			Owner: d,
			Index: len(d.Variants),
			Type:  variantType,
			Sp:    v.Sp,
		}
		for j, f := range v.Fields {
			ctor.Fields = append(ctor.Fields, FieldInfo{
				Name:  symbols.Normalize(f.Name),
				Type:  ResolveType(res, r, f.Type),
				Index: j,
				Sp:    f.Sp,
			})
		}
		d.Variants = append(d.Variants, ctor)
	}
}

func collectMethods(res *Result, d *Declared, r diag.Reporter) {
	for _, fun := range d.Decl.Funs {
		m := &Method{
			Name:   symbols.Normalize(fun.Name),
			Owner:  d,
			Fun:    fun,
			Static: fun.Static,
			Async:  fun.Async,
			Result: res.Reg.Builtins().Unit,
		}
		for i := range fun.Params {
			p := &fun.Params[i]
			pt := ResolveType(res, r, p.Type)
			if p.Variadic {
				if i != len(fun.Params)-1 {
					diag.ReportError(r, diag.SemTypeMismatch, p.Sp,
						"variadic parameter must be last").Emit()
				} else {
					m.Variadic = true
					pt = res.Reg.RegisterArray(pt)
				}
			}
			m.Params = append(m.Params, pt)
		}
		if !fun.Return.IsZero() {
			m.Result = ResolveType(res, r, fun.Return)
		}
		if fun.Async {
			// асинхронный метод возвращает handle;
			// объявленный тип — это элемент, а не сам результат
			m.Elem = m.Result
			m.Result = res.Reg.Builtins().Deferred
		}
		d.Methods = append(d.Methods, m)
	}
}

// ResolveType resolves a type expression to a canonical type, applying the
// tier order for short names. Dotted names bypass the tiers and resolve as
// qualified host references. Failures are reported and yield NoTypeID;
// collisions enumerate every candidate and never silently pick.
func ResolveType(res *Result, r diag.Reporter, te ast.TypeExpr) types.TypeID {
	if te.IsZero() {
		return res.Reg.Builtins().Unit
	}
	name := symbols.Normalize(te.Name)
	if strings.ContainsRune(name, '.') {
		return res.Reg.RegisterClass(name)
	}
	result := res.Table.Resolve(name)
	switch {
	case result.Found:
		return result.Binding.Type
	case result.Collision:
		b := diag.ReportError(r, diag.SemUnresolvedType, te.Sp,
			fmt.Sprintf("type %q is ambiguous between wildcard imports", name))
		for _, cand := range result.Candidates {
			b = b.WithNote(cand.Sp, fmt.Sprintf("candidate: %s", res.Reg.String(cand.Type)))
		}
		b.Emit()
		return types.NoTypeID
	default:
		diag.ReportError(r, diag.SemUnresolvedType, te.Sp,
			fmt.Sprintf("cannot resolve type %q", name)).Emit()
		return types.NoTypeID
	}
}
