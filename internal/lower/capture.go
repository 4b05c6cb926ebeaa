package lower

import (
	"fmt"

	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/sema"
	"lumen/internal/types"
)

// Capture is one enclosing-frame binding a deferred body reads or writes.
// Captures are value snapshots taken when the helper is constructed; the
// enclosing frame never shares storage with the body, so writes made after
// scheduling are invisible inside it. A binding the body itself assigns is
// boxed in a helper-private cell so in-body reads observe in-body writes.
type Capture struct {
	Local *sema.Local
	Boxed bool // the body assigns this binding
}

// BlockClass is a synthetic helper class generated for one async or
// bounded-wait body. It implements the runtime's block interface; its
// constructor takes the captures in order, receiver first when captured.
type BlockClass struct {
	Name  string // internal name, Owner$block$N
	Owner *sema.Declared
	Expr  ast.Expr // the originating *ast.Async or *ast.Within
	Body  ast.Expr
	// Millis is evaluated in the enclosing frame at spawn time, never
	// inside the helper; nil for plain async blocks.
	Millis       ast.Expr
	Captures     []Capture // first-use order
	CapturesThis bool
	Elem         types.TypeID // body result type
	// Method is set when the helper wraps a whole async method body
	// rather than an async/bounded-wait expression.
	Method *sema.Method
}

func (m *Module) collectBlocks(d *sema.Declared, meth *sema.Method, r diag.Reporter) {
	if meth.Async {
		bc := &BlockClass{
			Name:   fmt.Sprintf("%s$block$%d", m.Res.Reg.InternalName(d.Type), m.nextBlockSeq(d)),
			Owner:  d,
			Expr:   meth.Fun.Body,
			Body:   meth.Fun.Body,
			Elem:   meth.Elem,
			Method: meth,
		}
		m.analyzeCaptures(bc, meth, r)
		m.Blocks = append(m.Blocks, bc)
		m.ByMethod[meth] = bc
	}
	walkExprs(meth.Fun.Body, func(e ast.Expr) {
		var body, millis ast.Expr
		switch ex := e.(type) {
		case *ast.Async:
			body = ex.Body
		case *ast.Within:
			body, millis = ex.Body, ex.Millis
		default:
			return
		}
		bc := &BlockClass{
			Name:   fmt.Sprintf("%s$block$%d", m.Res.Reg.InternalName(d.Type), m.nextBlockSeq(d)),
			Owner:  d,
			Expr:   e,
			Body:   body,
			Millis: millis,
			Elem:   m.Res.TypeOf(body),
		}
		m.analyzeCaptures(bc, meth, r)
		m.Blocks = append(m.Blocks, bc)
		m.ByExpr[e] = bc
	})
}

func (m *Module) nextBlockSeq(d *sema.Declared) int {
	if m.blockSeq == nil {
		m.blockSeq = make(map[*sema.Declared]int)
	}
	m.blockSeq[d]++
	return m.blockSeq[d]
}

// analyzeCaptures collects the free bindings of a deferred body: every
// local read or written inside the body but declared outside it, in
// first-use order, plus the receiver when instance state is touched.
func (m *Module) analyzeCaptures(bc *BlockClass, meth *sema.Method, r diag.Reporter) {
	inner := make(map[*sema.Local]bool)
	seen := make(map[*sema.Local]int) // position in bc.Captures

	capture := func(l *sema.Local, written bool) {
		if inner[l] {
			return
		}
		if i, ok := seen[l]; ok {
			if written {
				bc.Captures[i].Boxed = true
			}
			return
		}
		seen[l] = len(bc.Captures)
		bc.Captures = append(bc.Captures, Capture{Local: l, Boxed: written})
	}

	walk(bc.Body, &visitor{
		stmt: func(s ast.Stmt) {
			switch st := s.(type) {
			case *ast.Let:
				if l := m.Res.Lets[st]; l != nil {
					inner[l] = true
				}
			case *ast.Assign:
				if l := m.Res.Assigns[st]; l != nil {
					capture(l, true)
				}
			}
		},
		pat: func(p ast.Pattern) {
			if pb, ok := p.(*ast.PatBind); ok {
				if l := m.Res.PatBinds[pb]; l != nil {
					inner[l] = true
				}
			}
		},
		expr: func(e ast.Expr) {
			switch ex := e.(type) {
			case *ast.This:
				bc.CapturesThis = true
			case *ast.Ident:
				ref := m.Res.Idents[ex]
				if ref == nil {
					return
				}
				switch ref.Kind {
				case sema.RefField:
					bc.CapturesThis = true
				case sema.RefLocal:
					capture(ref.Local, false)
				}
			case *ast.Call:
				if ex.Recv != nil {
					return
				}
				if rc := m.Res.Calls[ex]; rc != nil && rc.Method != nil && !rc.Method.Static {
					bc.CapturesThis = true
				}
			}
		},
	})

	if bc.CapturesThis && meth.Static {
		diag.ReportError(r, diag.LowInvalidCaptureContext, bc.Expr.Span(),
			"deferred body touches instance state inside a static method").Emit()
	}
}
