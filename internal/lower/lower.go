// Package lower turns a checked unit into the shapes the emitter consumes:
// sum-type layouts, ordered match plans, capture sets for deferred blocks
// and the per-expression adjustment plan that bridges checked types onto
// the runtime's erased surfaces.
package lower

import (
	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/sema"
	"lumen/internal/types"
)

// Module is the lowered form of one unit.
type Module struct {
	Res *sema.Result

	// SourceFile is the base name of the originating source file, stamped
	// into each emitted class; empty when the producer supplied no sources.
	SourceFile string

	// Sums maps each declared sum type to its class layout.
	Sums map[types.TypeID]*SumLayout

	// Matches holds one ordered plan per match expression.
	Matches map[*ast.Match]*MatchPlan

	// Blocks lists synthetic helper classes for deferred bodies in the
	// order they are encountered; ByExpr finds the helper for a given
	// async or bounded-wait expression, ByMethod the wrapper for an
	// async method's whole body.
	Blocks   []*BlockClass
	ByExpr   map[ast.Expr]*BlockClass
	ByMethod map[*sema.Method]*BlockClass

	blockSeq map[*sema.Declared]int

	// Adjusts carries post-evaluation conversions per expression, applied
	// by the emitter right after the expression's value is on the stack.
	Adjusts map[ast.Expr][]Adjust
}

// Lower runs every lowering pass over a checked unit. Diagnostics go to r;
// the returned module is complete even when errors were reported, so later
// phases can decide what is still usable.
func Lower(res *sema.Result, r diag.Reporter) *Module {
	m := &Module{
		Res:      res,
		Sums:     make(map[types.TypeID]*SumLayout),
		Matches:  make(map[*ast.Match]*MatchPlan),
		ByExpr:   make(map[ast.Expr]*BlockClass),
		ByMethod: make(map[*sema.Method]*BlockClass),
		Adjusts:  make(map[ast.Expr][]Adjust),
	}
	m.layoutSums()
	for _, d := range res.Decls {
		for _, meth := range d.Methods {
			if meth.Fun.Body == nil {
				continue
			}
			m.lowerMatches(meth, r)
			m.collectBlocks(d, meth, r)
		}
	}
	m.planAdjusts()
	return m
}
