package lower

import (
	"lumen/internal/ast"
	"lumen/internal/sema"
	"lumen/internal/types"
)

// AdjustKind enumerates the bridge conversions the emitter inserts after an
// expression's value is on the stack.
type AdjustKind uint8

const (
	AdjWiden AdjustKind = iota // numeric widening, i2l / i2d / l2d
	AdjBox                     // primitive to wrapper valueOf
	AdjUnbox                   // wrapper to primitive xxxValue
	AdjCast                    // reference checkcast
)

// Adjust is one conversion step. Steps for the same expression apply in
// order.
type Adjust struct {
	Kind AdjustKind
	From types.TypeID
	To   types.TypeID
}

// planAdjusts walks every checked body and records the conversions each
// value site needs so emission never has to re-derive expected types.
func (m *Module) planAdjusts() {
	for _, d := range m.Res.Decls {
		for _, meth := range d.Methods {
			if meth.Fun.Body == nil {
				continue
			}
			if meth.Async {
				// the body runs inside a spawned helper and returns erased
				m.erase(meth.Fun.Body, meth.Elem)
			} else if meth.Result != m.Res.Reg.Builtins().Unit {
				m.adjustTo(meth.Fun.Body, meth.Result)
			}
			walkExprs(meth.Fun.Body, m.planExpr)
		}
	}
}

func (m *Module) planExpr(e ast.Expr) {
	b := m.Res.Reg.Builtins()
	switch ex := e.(type) {
	case *ast.Call:
		m.planCallArgs(ex.Args, m.Res.Calls[ex])
	case *ast.New:
		m.planCallArgs(ex.Args, m.Res.News[ex])
	case *ast.Binary:
		switch ex.Op {
		case ast.BinAdd, ast.BinSub, ast.BinMul, ast.BinDiv, ast.BinRem,
			ast.BinEq, ast.BinNe, ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe:
			lt, rt := m.Res.TypeOf(ex.Left), m.Res.TypeOf(ex.Right)
			if m.Res.Reg.Get(lt).IsNumeric() && m.Res.Reg.Get(rt).IsNumeric() {
				wide := lt
				if m.Res.Reg.CanWiden(lt, rt) {
					wide = rt
				}
				m.adjustTo(ex.Left, wide)
				m.adjustTo(ex.Right, wide)
			}
		}
	case *ast.If:
		if ex.Else != nil {
			result := m.Res.TypeOf(ex)
			if result != b.Unit {
				m.adjustTo(ex.Then, result)
				m.adjustTo(ex.Else, result)
			}
		}
	case *ast.Match:
		result := m.Res.TypeOf(ex)
		if result != b.Unit {
			for i := range ex.Arms {
				m.adjustTo(ex.Arms[i].Body, result)
			}
		}
	case *ast.Async:
		// the helper's entry point returns an erased object
		m.adjustTo(ex.Body, b.Object)
	case *ast.Within:
		m.adjustTo(ex.Body, b.Object)
		if m.Res.TypeOf(ex.Millis) == b.Int {
			m.Adjusts[ex.Millis] = append(m.Adjusts[ex.Millis],
				Adjust{Kind: AdjWiden, From: b.Int, To: b.Long})
		}
	case *ast.Await:
		// the runtime hands back an erased object; narrow to the known
		// element or leave as-is when inference saw nothing
		m.narrowFromObject(ex, m.Res.TypeOf(ex))
	case *ast.Block:
		for _, s := range ex.Stmts {
			m.planStmt(s)
		}
	}
}

func (m *Module) planStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.Let:
		if l := m.Res.Lets[st]; l != nil && st.Init != nil {
			m.adjustTo(st.Init, l.Type)
		}
	case *ast.Assign:
		if target := m.Res.Assigns[st]; target != nil {
			m.adjustTo(st.Value, target.Type)
		}
	}
}

func (m *Module) planCallArgs(args []ast.Expr, rc *sema.ResolvedCall) {
	if rc == nil {
		return
	}
	var params []types.TypeID
	switch {
	case rc.Method != nil:
		params = rc.Method.Params
	case rc.Variant != nil:
		params = make([]types.TypeID, len(rc.Variant.Fields))
		for i, f := range rc.Variant.Fields {
			params[i] = f.Type
		}
	case rc.Ctor != nil:
		params = make([]types.TypeID, len(rc.Ctor.Fields))
		for i, f := range rc.Ctor.Fields {
			params[i] = f.Type
		}
	}
	for i, arg := range args {
		if i >= len(rc.Plan) {
			break
		}
		switch rc.Plan[i] {
		case sema.ConvNone:
		case sema.ConvPackTail:
			// tail elements convert to the array element type
			if len(params) > 0 {
				elem := m.Res.Reg.Get(params[len(params)-1]).Elem
				m.adjustTo(arg, elem)
			}
		default:
			if i < len(params) {
				m.adjustTo(arg, params[i])
			}
		}
	}
}

// erase converts e to elem, then boxes a primitive elem so the value can
// cross the runtime's object-typed surface.
func (m *Module) erase(e ast.Expr, elem types.TypeID) {
	m.adjustTo(e, elem)
	if boxed, ok := m.Res.Reg.Boxed(elem); ok {
		m.Adjusts[e] = append(m.Adjusts[e], Adjust{Kind: AdjBox, From: elem, To: boxed})
	}
}

// adjustTo records the conversion chain taking e's checked type to want.
// Unit never adjusts; the emitter materializes it as needed.
func (m *Module) adjustTo(e ast.Expr, want types.TypeID) {
	if e == nil || !want.IsValid() {
		return
	}
	have := m.Res.TypeOf(e)
	if !have.IsValid() || have == want {
		return
	}
	reg := m.Res.Reg
	if have == reg.Builtins().Unit || want == reg.Builtins().Unit {
		return
	}
	ht, wt := reg.Get(have), reg.Get(want)
	switch {
	case ht.IsPrimitive() && wt.IsPrimitive():
		if reg.CanWiden(have, want) {
			m.Adjusts[e] = append(m.Adjusts[e], Adjust{Kind: AdjWiden, From: have, To: want})
		}
	case ht.IsPrimitive():
		// box, then the upcast to want is free
		if boxed, ok := reg.Boxed(have); ok {
			m.Adjusts[e] = append(m.Adjusts[e], Adjust{Kind: AdjBox, From: have, To: boxed})
		}
	case wt.IsPrimitive():
		boxed, ok := reg.Boxed(want)
		if !ok {
			return
		}
		if have != boxed {
			m.Adjusts[e] = append(m.Adjusts[e], Adjust{Kind: AdjCast, From: have, To: boxed})
		}
		m.Adjusts[e] = append(m.Adjusts[e], Adjust{Kind: AdjUnbox, From: boxed, To: want})
	default:
		if !reg.IsSubtype(have, want) {
			m.Adjusts[e] = append(m.Adjusts[e], Adjust{Kind: AdjCast, From: have, To: want})
		}
	}
}

// narrowFromObject plans the conversions for a value the runtime returns
// erased. want Object means no narrowing was possible.
func (m *Module) narrowFromObject(e ast.Expr, want types.TypeID) {
	b := m.Res.Reg.Builtins()
	if !want.IsValid() || want == b.Object || want == b.Unit {
		return
	}
	reg := m.Res.Reg
	if boxed, ok := reg.Boxed(want); ok {
		m.Adjusts[e] = append(m.Adjusts[e],
			Adjust{Kind: AdjCast, From: b.Object, To: boxed},
			Adjust{Kind: AdjUnbox, From: boxed, To: want})
		return
	}
	m.Adjusts[e] = append(m.Adjusts[e], Adjust{Kind: AdjCast, From: b.Object, To: want})
}
