package sema

import (
	"fmt"

	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/symbols"
	"lumen/internal/types"
)

// Check type-checks every method body of a collected unit. Recoverable
// errors are reported and checking continues with the remaining
// declarations so one pass surfaces as many diagnostics as possible.
func Check(res *Result, r diag.Reporter) {
	c := &checker{res: res, r: r, reg: res.Reg, b: res.Reg.Builtins()}
	for _, d := range res.Decls {
		for _, m := range d.Methods {
			c.checkMethod(d, m)
		}
	}
}

type checker struct {
	res *Result
	r   diag.Reporter
	reg *types.Registry
	b   types.Builtins

	cur       *Declared
	curMethod *Method
	scopes    []map[string]*Local
	inGuard   bool
}

func (c *checker) checkMethod(d *Declared, m *Method) {
	if m.Fun.Body == nil {
		if d.Decl.Kind != ast.DeclTrait {
			diag.ReportError(c.r, diag.SemTypeMismatch, m.Fun.Sp,
				fmt.Sprintf("method %q has no body", m.Name)).Emit()
		}
		return
	}
	c.cur = d
	c.curMethod = m
	c.scopes = c.scopes[:0]
	c.pushScope()
	defer c.popScope()

	for i := range m.Fun.Params {
		p := &m.Fun.Params[i]
		local := &Local{
			Name: symbols.Normalize(p.Name),
			Kind: LocalParam,
			Type: m.Params[i],
			Sp:   p.Sp,
		}
		c.res.Params[p] = local
		c.declare(local)
	}

	want := m.Result
	if m.Async {
		want = m.Elem
	}
	got := c.checkExpr(m.Fun.Body)
	if want == c.b.Unit {
		return // результат отбрасывается
	}
	if !c.assignable(got, want) {
		diag.ReportError(c.r, diag.SemTypeMismatch, m.Fun.Body.Span(),
			fmt.Sprintf("method %q returns %s, body has type %s",
				m.Name, c.reg.String(want), c.reg.String(got))).Emit()
	}
}

func (c *checker) pushScope() {
	c.scopes = append(c.scopes, make(map[string]*Local))
}

func (c *checker) popScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *checker) declare(l *Local) {
	c.scopes[len(c.scopes)-1][l.Name] = l
}

func (c *checker) lookup(name string) *Local {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if l, ok := c.scopes[i][name]; ok {
			return l
		}
	}
	return nil
}

// assignable reports whether a value of type `from` can flow into a slot of
// type `to`. Every admitted conversion is realizable by the bridge pass:
// identity, reference subtyping, numeric widening, boxing and unboxing.
func (c *checker) assignable(from, to types.TypeID) bool {
	if !from.IsValid() || !to.IsValid() {
		return true // ошибка уже зарепорчена при разрешении типа
	}
	if from == to {
		return true
	}
	if !c.reg.Get(from).IsPrimitive() && c.reg.IsSubtype(from, to) {
		return true
	}
	if c.reg.CanWiden(from, to) {
		return true
	}
	if boxed, ok := c.reg.Boxed(from); ok && c.reg.IsSubtype(boxed, to) {
		return true
	}
	if prim, ok := c.reg.Unboxed(from); ok && prim == to {
		return true
	}
	return false
}

// merge computes the type of a control-flow join of two expression values.
func (c *checker) merge(a, b types.TypeID) types.TypeID {
	if !a.IsValid() || !b.IsValid() {
		return types.NoTypeID
	}
	if a == b {
		return a
	}
	if a == c.b.Unit || b == c.b.Unit {
		return c.b.Unit
	}
	if c.reg.CanWiden(a, b) {
		return b
	}
	if c.reg.CanWiden(b, a) {
		return a
	}
	if c.reg.IsSubtype(a, b) {
		return b
	}
	if c.reg.IsSubtype(b, a) {
		return a
	}
	ta, tb := c.reg.Get(a), c.reg.Get(b)
	if ta.Kind == types.KindClass && tb.Kind == types.KindClass {
		// ближайший общий предок; в худшем случае universal base
		for cur := a; ; {
			parent, ok := c.reg.Super(cur)
			if !ok {
				break
			}
			if c.reg.IsSubtype(b, parent) {
				return parent
			}
			cur = parent
		}
		return c.b.Object
	}
	return types.NoTypeID
}

func (c *checker) checkStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.Let:
		c.checkLet(st)
	case *ast.Assign:
		c.checkAssign(st)
	case *ast.ExprStmt:
		c.checkExpr(st.E)
	}
}

func (c *checker) checkLet(st *ast.Let) {
	got := c.checkExpr(st.Init)
	declared := got
	if !st.Type.IsZero() {
		declared = ResolveType(c.res, c.r, st.Type)
		if !c.assignable(got, declared) {
			diag.ReportError(c.r, diag.SemTypeMismatch, st.Init.Span(),
				fmt.Sprintf("cannot initialize %s binding with %s",
					c.reg.String(declared), c.reg.String(got))).Emit()
		}
	}
	local := &Local{
		Name:    symbols.Normalize(st.Name),
		Kind:    LocalLet,
		Type:    declared,
		Mutable: st.Mutable,
		Sp:      st.Sp,
	}
	if elem, ok := c.res.DeferredElem[st.Init]; ok {
		local.DeferredElem = elem
	}
	c.res.Lets[st] = local
	c.declare(local)
}

func (c *checker) checkAssign(st *ast.Assign) {
	got := c.checkExpr(st.Value)
	local := c.lookup(symbols.Normalize(st.Name))
	if local == nil {
		diag.ReportError(c.r, diag.SemUnresolvedSymbol, st.Sp,
			fmt.Sprintf("cannot resolve %q", st.Name)).Emit()
		return
	}
	if !local.Mutable {
		diag.ReportError(c.r, diag.SemNotAssignable, st.Sp,
			fmt.Sprintf("binding %q is immutable", st.Name)).
			WithNote(local.Sp, "declared here").Emit()
		return
	}
	if !c.assignable(got, local.Type) {
		diag.ReportError(c.r, diag.SemTypeMismatch, st.Value.Span(),
			fmt.Sprintf("cannot assign %s to %s binding",
				c.reg.String(got), c.reg.String(local.Type))).Emit()
		return
	}
	c.res.Assigns[st] = local
}
