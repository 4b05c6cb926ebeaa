package sema

import (
	"fmt"

	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/symbols"
	"lumen/internal/types"
)

func (c *checker) checkExpr(e ast.Expr) types.TypeID {
	t := c.checkExprInner(e)
	c.res.ExprTypes[e] = t
	return t
}

func (c *checker) checkExprInner(e ast.Expr) types.TypeID {
	switch ex := e.(type) {
	case *ast.Lit:
		return c.litType(ex.Kind)
	case *ast.Ident:
		return c.checkIdent(ex)
	case *ast.This:
		return c.checkThis(ex)
	case *ast.FieldGet:
		return c.checkFieldGet(ex)
	case *ast.Call:
		return c.checkCall(ex)
	case *ast.New:
		return c.checkNew(ex)
	case *ast.Unary:
		return c.checkUnary(ex)
	case *ast.Binary:
		return c.checkBinary(ex)
	case *ast.Block:
		return c.checkBlock(ex)
	case *ast.If:
		return c.checkIf(ex)
	case *ast.While:
		return c.checkWhile(ex)
	case *ast.Match:
		return c.checkMatch(ex)
	case *ast.Async:
		return c.checkDeferredBlock(e, ex.Body, nil)
	case *ast.Within:
		return c.checkDeferredBlock(e, ex.Body, ex.Millis)
	case *ast.Await:
		return c.checkAwait(ex)
	}
	return types.NoTypeID
}

func (c *checker) litType(k ast.LitKind) types.TypeID {
	switch k {
	case ast.LitInt:
		return c.b.Int
	case ast.LitLong:
		return c.b.Long
	case ast.LitDouble:
		return c.b.Double
	case ast.LitBool:
		return c.b.Bool
	case ast.LitString:
		return c.b.String
	case ast.LitUnit:
		return c.b.Unit
	}
	return types.NoTypeID
}

func (c *checker) checkIdent(ex *ast.Ident) types.TypeID {
	name := symbols.Normalize(ex.Name)
	if local := c.lookup(name); local != nil {
		c.res.Idents[ex] = &IdentRef{Kind: RefLocal, Local: local}
		if local.DeferredElem.IsValid() {
			c.res.DeferredElem[ex] = local.DeferredElem
		}
		return local.Type
	}
	// поле текущего типа через неявный this
	if !c.curMethod.Static {
		if owner, f := c.findField(c.cur, name); f != nil {
			c.res.Idents[ex] = &IdentRef{Kind: RefField, Field: f, Owner: owner}
			return f.Type
		}
	}
	// нульарный вариант как значение-синглтон
	if v := c.findVariant(name); v != nil && v.Nullary() {
		c.res.Idents[ex] = &IdentRef{Kind: RefVariant, Variant: v}
		return v.Owner.Type
	}
	diag.ReportError(c.r, diag.SemUnresolvedSymbol, ex.Sp,
		fmt.Sprintf("cannot resolve %q", ex.Name)).Emit()
	return types.NoTypeID
}

func (c *checker) checkThis(ex *ast.This) types.TypeID {
	if c.curMethod.Static {
		diag.ReportError(c.r, diag.SemUnresolvedSymbol, ex.Sp,
			"`this` is not available in a static method").Emit()
		return types.NoTypeID
	}
	return c.cur.Type
}

// findField walks the declared super chain.
func (c *checker) findField(d *Declared, name string) (*Declared, *FieldInfo) {
	for cur := d; cur != nil; cur = c.res.DeclaredFor(cur.Super) {
		for i := range cur.Fields {
			if cur.Fields[i].Name == name {
				return cur, &cur.Fields[i]
			}
		}
	}
	return nil, nil
}

// findVariant searches the unit's sum declarations for a constructor name.
func (c *checker) findVariant(name string) *VariantCtor {
	for _, d := range c.res.Decls {
		for _, v := range d.Variants {
			if v.Name == name {
				return v
			}
		}
	}
	return nil
}

func (c *checker) checkFieldGet(ex *ast.FieldGet) types.TypeID {
	recv := c.checkExpr(ex.Recv)
	if !recv.IsValid() {
		return types.NoTypeID
	}
	d := c.res.DeclaredFor(recv)
	if d == nil {
		diag.ReportError(c.r, diag.SemUnknownField, ex.Sp,
			fmt.Sprintf("type %s has no accessible fields", c.reg.String(recv))).Emit()
		return types.NoTypeID
	}
	if _, f := c.findField(d, symbols.Normalize(ex.Name)); f != nil {
		return f.Type
	}
	diag.ReportError(c.r, diag.SemUnknownField, ex.Sp,
		fmt.Sprintf("type %s has no field %q", c.reg.String(recv), ex.Name)).Emit()
	return types.NoTypeID
}

// methodsNamed collects candidates along the declared super chain.
func (c *checker) methodsNamed(d *Declared, name string) []candidate {
	var cands []candidate
	for cur := d; cur != nil; cur = c.res.DeclaredFor(cur.Super) {
		for _, m := range cur.Methods {
			if m.Name == name {
				cands = append(cands, candidate{method: m, params: m.Params, variadic: m.Variadic})
			}
		}
	}
	return cands
}

func (c *checker) checkCall(ex *ast.Call) types.TypeID {
	name := symbols.Normalize(ex.Name)
	args := make([]types.TypeID, len(ex.Args))
	valid := true
	for i, a := range ex.Args {
		args[i] = c.checkExpr(a)
		if !args[i].IsValid() {
			valid = false
		}
	}
	if !valid {
		return types.NoTypeID
	}

	var cands []candidate
	if ex.Recv == nil {
		cands = c.methodsNamed(c.cur, name)
		if v := c.findVariant(name); v != nil {
			params := make([]types.TypeID, len(v.Fields))
			for i, f := range v.Fields {
				params[i] = f.Type
			}
			cands = append(cands, candidate{variant: v, params: params})
		}
	} else {
		recv := c.checkExpr(ex.Recv)
		if !recv.IsValid() {
			return types.NoTypeID
		}
		d := c.res.DeclaredFor(recv)
		if d == nil {
			diag.ReportError(c.r, diag.SemNoApplicableOverload, ex.Sp,
				fmt.Sprintf("type %s has no callable members", c.reg.String(recv))).Emit()
			return types.NoTypeID
		}
		cands = c.methodsNamed(d, name)
	}

	rc := resolveOverload(c.reg, cands, args, name, ex.Sp, c.r)
	if rc == nil {
		return types.NoTypeID
	}
	c.res.Calls[ex] = rc
	switch {
	case rc.Variant != nil:
		return rc.Variant.Owner.Type
	case rc.Method != nil:
		if rc.Method.Static && ex.Recv != nil {
			// статический вызов через значение допустим, но значение не нужно
			diag.ReportWarning(c.r, diag.SemTypeMismatch, ex.Sp,
				fmt.Sprintf("static method %q called through an instance", name)).Emit()
		}
		if !rc.Method.Static && ex.Recv == nil && c.curMethod.Static {
			diag.ReportError(c.r, diag.SemUnresolvedSymbol, ex.Sp,
				fmt.Sprintf("instance method %q needs a receiver in a static context", name)).Emit()
		}
		if rc.Method.Async {
			c.res.DeferredElem[ex] = rc.Method.Elem
		}
		return rc.Method.Result
	}
	return types.NoTypeID
}

func (c *checker) checkNew(ex *ast.New) types.TypeID {
	id := ResolveType(c.res, c.r, ex.Type)
	if !id.IsValid() {
		return types.NoTypeID
	}
	d := c.res.DeclaredFor(id)
	if d == nil || (d.Decl.Kind != ast.DeclClass && d.Decl.Kind != ast.DeclRecord) {
		diag.ReportError(c.r, diag.SemTypeMismatch, ex.Sp,
			fmt.Sprintf("%s cannot be constructed directly", c.reg.String(id))).Emit()
		return types.NoTypeID
	}
	args := make([]types.TypeID, len(ex.Args))
	for i, a := range ex.Args {
		args[i] = c.checkExpr(a)
		if !args[i].IsValid() {
			return types.NoTypeID
		}
	}
	params := make([]types.TypeID, len(d.Fields))
	for i, f := range d.Fields {
		params[i] = f.Type
	}
	rc := resolveOverload(c.reg, []candidate{{ctor: d, params: params}}, args, d.Qualified, ex.Sp, c.r)
	if rc == nil {
		return types.NoTypeID
	}
	c.res.News[ex] = rc
	return id
}

func (c *checker) checkUnary(ex *ast.Unary) types.TypeID {
	t := c.checkExpr(ex.Operand)
	if !t.IsValid() {
		return types.NoTypeID
	}
	switch ex.Op {
	case ast.UnNeg:
		if !c.reg.Get(t).IsNumeric() {
			diag.ReportError(c.r, diag.SemBadOperandTypes, ex.Sp,
				fmt.Sprintf("operator - is not defined for %s", c.reg.String(t))).Emit()
			return types.NoTypeID
		}
		return t
	case ast.UnNot:
		if t != c.b.Bool {
			diag.ReportError(c.r, diag.SemBadOperandTypes, ex.Sp,
				fmt.Sprintf("operator ! is not defined for %s", c.reg.String(t))).Emit()
			return types.NoTypeID
		}
		return c.b.Bool
	}
	return types.NoTypeID
}

func (c *checker) checkBinary(ex *ast.Binary) types.TypeID {
	lt := c.checkExpr(ex.Left)
	rt := c.checkExpr(ex.Right)
	if !lt.IsValid() || !rt.IsValid() {
		return types.NoTypeID
	}
	report := func() {
		diag.ReportError(c.r, diag.SemBadOperandTypes, ex.Sp,
			fmt.Sprintf("operator %s is not defined for %s and %s",
				ex.Op, c.reg.String(lt), c.reg.String(rt))).Emit()
	}
	switch ex.Op {
	case ast.BinAdd, ast.BinSub, ast.BinMul, ast.BinDiv, ast.BinRem:
		promoted, ok := c.promote(lt, rt)
		if !ok {
			report()
			return types.NoTypeID
		}
		return promoted
	case ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe:
		if _, ok := c.promote(lt, rt); !ok {
			report()
			return types.NoTypeID
		}
		return c.b.Bool
	case ast.BinEq, ast.BinNe:
		if _, ok := c.promote(lt, rt); ok {
			return c.b.Bool
		}
		if lt == c.b.Bool && rt == c.b.Bool {
			return c.b.Bool
		}
		if !c.reg.Get(lt).IsPrimitive() && !c.reg.Get(rt).IsPrimitive() {
			return c.b.Bool
		}
		report()
		return types.NoTypeID
	case ast.BinAnd, ast.BinOr:
		if lt != c.b.Bool || rt != c.b.Bool {
			report()
			return types.NoTypeID
		}
		return c.b.Bool
	}
	return types.NoTypeID
}

// promote returns the common numeric type of two operands; the narrower
// operand is widened to it by the bridge pass before emission.
func (c *checker) promote(lt, rt types.TypeID) (types.TypeID, bool) {
	if !c.reg.Get(lt).IsNumeric() || !c.reg.Get(rt).IsNumeric() {
		return types.NoTypeID, false
	}
	if lt == rt {
		return lt, true
	}
	if c.reg.CanWiden(lt, rt) {
		return rt, true
	}
	if c.reg.CanWiden(rt, lt) {
		return lt, true
	}
	return types.NoTypeID, false
}

func (c *checker) checkBlock(ex *ast.Block) types.TypeID {
	c.pushScope()
	defer c.popScope()
	for _, s := range ex.Stmts {
		c.checkStmt(s)
	}
	if ex.Value == nil {
		return c.b.Unit
	}
	t := c.checkExpr(ex.Value)
	if elem, ok := c.res.DeferredElem[ex.Value]; ok {
		c.res.DeferredElem[ex] = elem
	}
	return t
}

func (c *checker) checkIf(ex *ast.If) types.TypeID {
	cond := c.checkExpr(ex.Cond)
	if cond.IsValid() && cond != c.b.Bool {
		diag.ReportError(c.r, diag.SemConditionNotBool, ex.Cond.Span(),
			fmt.Sprintf("condition has type %s, expected Bool", c.reg.String(cond))).Emit()
	}
	thenT := c.checkExpr(ex.Then)
	if ex.Else == nil {
		return c.b.Unit
	}
	elseT := c.checkExpr(ex.Else)
	merged := c.merge(thenT, elseT)
	if !merged.IsValid() {
		diag.ReportError(c.r, diag.SemTypeMismatch, ex.Sp,
			fmt.Sprintf("if branches disagree: %s vs %s",
				c.reg.String(thenT), c.reg.String(elseT))).Emit()
	}
	return merged
}

func (c *checker) checkWhile(ex *ast.While) types.TypeID {
	cond := c.checkExpr(ex.Cond)
	if cond.IsValid() && cond != c.b.Bool {
		diag.ReportError(c.r, diag.SemConditionNotBool, ex.Cond.Span(),
			fmt.Sprintf("condition has type %s, expected Bool", c.reg.String(cond))).Emit()
	}
	c.checkExpr(ex.Body)
	return c.b.Unit
}

func (c *checker) checkMatch(ex *ast.Match) types.TypeID {
	scrut := c.checkExpr(ex.Scrutinee)
	result := types.NoTypeID
	first := true
	for i := range ex.Arms {
		arm := &ex.Arms[i]
		c.pushScope()
		c.checkPattern(arm.Pattern, scrut)
		if arm.Guard != nil {
			wasGuard := c.inGuard
			c.inGuard = true
			gt := c.checkExpr(arm.Guard)
			c.inGuard = wasGuard
			if gt.IsValid() && gt != c.b.Bool {
				diag.ReportError(c.r, diag.LowGuardNotBool, arm.Guard.Span(),
					fmt.Sprintf("guard has type %s, expected Bool", c.reg.String(gt))).Emit()
			}
		}
		bodyT := c.checkExpr(arm.Body)
		c.popScope()
		if first {
			result = bodyT
			first = false
			continue
		}
		merged := c.merge(result, bodyT)
		if !merged.IsValid() {
			diag.ReportError(c.r, diag.SemTypeMismatch, arm.Body.Span(),
				fmt.Sprintf("match arms disagree: %s vs %s",
					c.reg.String(result), c.reg.String(bodyT))).Emit()
			merged = result
		}
		result = merged
	}
	if first {
		return c.b.Unit
	}
	return result
}

func (c *checker) checkPattern(p ast.Pattern, scrut types.TypeID) {
	switch pat := p.(type) {
	case *ast.PatWildcard:
		// matches anything
	case *ast.PatBind:
		local := &Local{
			Name: symbols.Normalize(pat.Name),
			Kind: LocalLet,
			Type: scrut,
			Sp:   pat.Sp,
		}
		c.res.PatBinds[pat] = local
		c.declare(local)
	case *ast.PatLit:
		lt := c.litType(pat.Lit.Kind)
		if scrut.IsValid() && lt != scrut {
			diag.ReportError(c.r, diag.LowBadPattern, pat.Sp,
				fmt.Sprintf("literal pattern of type %s cannot match %s",
					c.reg.String(lt), c.reg.String(scrut))).Emit()
		}
	case *ast.PatVariant:
		c.checkVariantPattern(pat, scrut)
	}
}

func (c *checker) checkVariantPattern(pat *ast.PatVariant, scrut types.TypeID) {
	d := c.res.DeclaredFor(scrut)
	if d == nil || d.Decl.Kind != ast.DeclSum {
		diag.ReportError(c.r, diag.LowBadPattern, pat.Sp,
			fmt.Sprintf("variant pattern cannot match non-sum type %s", c.reg.String(scrut))).Emit()
		return
	}
	name := symbols.Normalize(pat.Name)
	var ctor *VariantCtor
	for _, v := range d.Variants {
		if v.Name == name {
			ctor = v
			break
		}
	}
	if ctor == nil {
		diag.ReportError(c.r, diag.LowBadPattern, pat.Sp,
			fmt.Sprintf("sum type %s has no variant %q", c.reg.String(scrut), pat.Name)).Emit()
		return
	}
	if len(pat.Elems) != len(ctor.Fields) {
		diag.ReportError(c.r, diag.LowBadPattern, pat.Sp,
			fmt.Sprintf("variant %q has %d fields, pattern destructures %d",
				pat.Name, len(ctor.Fields), len(pat.Elems))).Emit()
		return
	}
	for i, sub := range pat.Elems {
		c.checkPattern(sub, ctor.Fields[i].Type)
	}
}

// checkDeferredBlock handles async and bounded-wait bodies. The expression
// value is an object-typed handle; the element type is remembered so awaits
// can be narrowed.
func (c *checker) checkDeferredBlock(whole ast.Expr, body ast.Expr, millis ast.Expr) types.TypeID {
	if c.inGuard {
		diag.ReportError(c.r, diag.LowInvalidCaptureContext, whole.Span(),
			"deferred blocks are not allowed inside pattern guards").Emit()
	}
	if millis != nil {
		mt := c.checkExpr(millis)
		if mt.IsValid() && mt != c.b.Int && mt != c.b.Long {
			diag.ReportError(c.r, diag.SemTypeMismatch, millis.Span(),
				fmt.Sprintf("wait bound has type %s, expected Int or Long", c.reg.String(mt))).Emit()
		}
	}
	elem := c.checkExpr(body)
	c.res.DeferredElem[whole] = elem
	return c.b.Deferred
}

func (c *checker) checkAwait(ex *ast.Await) types.TypeID {
	t := c.checkExpr(ex.Value)
	if t.IsValid() && !c.reg.IsSubtype(t, c.b.Deferred) {
		diag.ReportError(c.r, diag.SemTypeMismatch, ex.Value.Span(),
			fmt.Sprintf("await needs a deferred handle, got %s", c.reg.String(t))).Emit()
		return types.NoTypeID
	}
	if elem, ok := c.res.DeferredElem[ex.Value]; ok && elem.IsValid() {
		return elem
	}
	// элемент статически неизвестен: объектный тип, сужение вставит эмиттер
	return c.b.Object
}
