package lower

import "lumen/internal/ast"

// visitor receives nodes in pre-order, source order. Nil callbacks are
// skipped.
type visitor struct {
	expr func(ast.Expr)
	stmt func(ast.Stmt)
	pat  func(ast.Pattern)
}

// walkExprs visits every expression under e in pre-order, including the
// bodies of nested blocks and deferred expressions.
func walkExprs(e ast.Expr, f func(ast.Expr)) {
	walk(e, &visitor{expr: f})
}

func walk(e ast.Expr, v *visitor) {
	if e == nil {
		return
	}
	if v.expr != nil {
		v.expr(e)
	}
	switch ex := e.(type) {
	case *ast.Lit, *ast.Ident, *ast.This:
	case *ast.FieldGet:
		walk(ex.Recv, v)
	case *ast.Call:
		walk(ex.Recv, v)
		for _, a := range ex.Args {
			walk(a, v)
		}
	case *ast.New:
		for _, a := range ex.Args {
			walk(a, v)
		}
	case *ast.Unary:
		walk(ex.Operand, v)
	case *ast.Binary:
		walk(ex.Left, v)
		walk(ex.Right, v)
	case *ast.Block:
		for _, s := range ex.Stmts {
			walkStmt(s, v)
		}
		walk(ex.Value, v)
	case *ast.If:
		walk(ex.Cond, v)
		walk(ex.Then, v)
		walk(ex.Else, v)
	case *ast.While:
		walk(ex.Cond, v)
		walk(ex.Body, v)
	case *ast.Match:
		walk(ex.Scrutinee, v)
		for i := range ex.Arms {
			walkPattern(ex.Arms[i].Pattern, v)
			walk(ex.Arms[i].Guard, v)
			walk(ex.Arms[i].Body, v)
		}
	case *ast.Async:
		walk(ex.Body, v)
	case *ast.Within:
		walk(ex.Millis, v)
		walk(ex.Body, v)
	case *ast.Await:
		walk(ex.Value, v)
	}
}

func walkStmt(s ast.Stmt, v *visitor) {
	if v.stmt != nil {
		v.stmt(s)
	}
	switch st := s.(type) {
	case *ast.Let:
		walk(st.Init, v)
	case *ast.Assign:
		walk(st.Value, v)
	case *ast.ExprStmt:
		walk(st.E, v)
	}
}

func walkPattern(p ast.Pattern, v *visitor) {
	if p == nil {
		return
	}
	if v.pat != nil {
		v.pat(p)
	}
	if pv, ok := p.(*ast.PatVariant); ok {
		for _, sub := range pv.Elems {
			walkPattern(sub, v)
		}
	}
}
