package lower

import (
	"fmt"
	"sort"
	"strings"

	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/sema"
	"lumen/internal/types"
)

// TestKind is the runtime check one pattern compiles to.
type TestKind uint8

const (
	TestAlways   TestKind = iota // wildcard and plain bindings
	TestInstance                 // variant instance check
	TestLit                      // literal comparison
)

// PatTest is the compiled form of one pattern node. Variant tests carry a
// sub-test per payload field, evaluated left to right after the instance
// check succeeds.
type PatTest struct {
	Kind    TestKind
	Variant *VariantShape // TestInstance
	Lit     *ast.Lit      // TestLit
	Bind    *sema.Local   // non-nil when the matched value binds a name
	Elems   []PatTest     // TestInstance payload sub-tests
}

// Irrefutable reports whether the test matches every value of its type.
func (t *PatTest) Irrefutable() bool {
	return t.Kind == TestAlways
}

// ArmPlan is one arm in evaluation order. A failing guard falls through to
// the next arm, re-testing later patterns that overlap this one.
type ArmPlan struct {
	Arm     *ast.MatchArm
	Test    PatTest
	Guarded bool
}

// MatchPlan is the ordered lowering of one match expression.
type MatchPlan struct {
	Match     *ast.Match
	Scrutinee types.TypeID
	Arms      []ArmPlan
	// Exhaustive means no value can fall off the end: either an
	// irrefutable unguarded arm exists, or every variant of the sum
	// scrutinee is covered by an unguarded arm.
	Exhaustive bool
}

func (m *Module) lowerMatches(meth *sema.Method, r diag.Reporter) {
	walkExprs(meth.Fun.Body, func(e ast.Expr) {
		ex, ok := e.(*ast.Match)
		if !ok {
			return
		}
		m.Matches[ex] = m.planMatch(ex, r)
	})
}

func (m *Module) planMatch(ex *ast.Match, r diag.Reporter) *MatchPlan {
	scrut := m.Res.TypeOf(ex.Scrutinee)
	plan := &MatchPlan{
		Match:     ex,
		Scrutinee: scrut,
		Arms:      make([]ArmPlan, 0, len(ex.Arms)),
	}

	layout := m.Sums[scrut]
	covered := make(map[string]bool)
	sealed := false // true once no further value can reach an arm

	for i := range ex.Arms {
		arm := &ex.Arms[i]
		ap := ArmPlan{
			Arm:     arm,
			Test:    m.compilePattern(arm.Pattern, layout),
			Guarded: arm.Guard != nil,
		}
		if sealed {
			diag.ReportWarning(r, diag.LowRedundantArm, arm.Sp,
				"arm is unreachable, earlier arms match every value").Emit()
		} else if ap.Test.Kind == TestInstance && !ap.Guarded {
			name := ap.Test.Variant.Ctor.Name
			if covered[name] {
				diag.ReportWarning(r, diag.LowRedundantArm, arm.Sp,
					fmt.Sprintf("variant %q is already fully matched by an earlier arm", name)).Emit()
			} else if allIrrefutable(ap.Test.Elems) {
				covered[name] = true
			}
		}
		if !ap.Guarded && ap.Test.Irrefutable() {
			sealed = true
		}
		plan.Arms = append(plan.Arms, ap)
	}

	if layout != nil && !sealed && len(covered) == len(layout.Variants) {
		sealed = true
	}
	plan.Exhaustive = sealed

	if !plan.Exhaustive {
		if layout != nil {
			var missing []string
			for _, v := range layout.Variants {
				if !covered[v.Ctor.Name] {
					missing = append(missing, v.Ctor.Name)
				}
			}
			sort.Strings(missing)
			diag.ReportError(r, diag.LowNonExhaustiveMatch, ex.Sp,
				fmt.Sprintf("match does not cover: %s", strings.Join(missing, ", "))).Emit()
		} else {
			diag.ReportError(r, diag.LowNonExhaustiveMatch, ex.Sp,
				"match over a non-sum value needs an unguarded catch-all arm").Emit()
		}
	}
	return plan
}

func (m *Module) compilePattern(p ast.Pattern, layout *SumLayout) PatTest {
	switch pat := p.(type) {
	case *ast.PatWildcard:
		return PatTest{Kind: TestAlways}
	case *ast.PatBind:
		return PatTest{Kind: TestAlways, Bind: m.Res.PatBinds[pat]}
	case *ast.PatLit:
		return PatTest{Kind: TestLit, Lit: pat.Lit}
	case *ast.PatVariant:
		t := PatTest{Kind: TestInstance}
		if layout != nil {
			t.Variant = layout.ByName(pat.Name)
		}
		if t.Variant == nil {
			// The checker already reported the bad pattern; an always-fail
			// instance test keeps the plan well formed.
			return t
		}
		fields := t.Variant.Ctor.Fields
		for i, sub := range pat.Elems {
			var elemLayout *SumLayout
			if i < len(fields) {
				elemLayout = m.Sums[fields[i].Type]
			}
			t.Elems = append(t.Elems, m.compilePattern(sub, elemLayout))
		}
		return t
	}
	return PatTest{Kind: TestAlways}
}

func allIrrefutable(elems []PatTest) bool {
	for i := range elems {
		if !elems[i].Irrefutable() {
			return false
		}
	}
	return true
}
