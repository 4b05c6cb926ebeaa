package sema

import (
	"fmt"
	"sort"
	"strings"

	"lumen/internal/diag"
	"lumen/internal/source"
	"lumen/internal/types"
)

// candidate is one callable considered by overload resolution. Methods,
// record constructors and variant constructors all funnel through the same
// staged applicability.
type candidate struct {
	method  *Method
	ctor    *Declared
	variant *VariantCtor

	params   []types.TypeID
	variadic bool
}

func (c candidate) describe(reg *types.Registry) string {
	var name string
	switch {
	case c.method != nil:
		name = c.method.Owner.Qualified + "." + c.method.Name
	case c.ctor != nil:
		name = c.ctor.Qualified
	case c.variant != nil:
		name = c.variant.Owner.Qualified + "." + c.variant.Name
	}
	parts := make([]string, len(c.params))
	for i, p := range c.params {
		parts[i] = reg.String(p)
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// resolveOverload runs the four ascending-permissiveness phases over the
// candidate set and stops at the first phase with any applicable candidate.
// Exactly one survivor in the stopping phase is the target; several is an
// ambiguity naming all ties; none across all phases is no-match. The result
// is deterministic for fixed candidates and argument types, so callers cache
// it per call-site node.
func resolveOverload(reg *types.Registry, cands []candidate, args []types.TypeID, name string, sp source.Span, r diag.Reporter) *ResolvedCall {
	if len(cands) == 0 {
		diag.ReportError(r, diag.SemNoApplicableOverload, sp,
			fmt.Sprintf("no callable named %q", name)).Emit()
		return nil
	}

	phases := []struct {
		phase Phase
		apply func(*types.Registry, candidate, []types.TypeID) []ConvKind
	}{
		{PhaseExact, applyExact},
		{PhaseWidening, applyWidening},
		{PhaseBoxing, applyBoxing},
		{PhaseVarargs, applyVarargs},
	}

	for _, st := range phases {
		type fit struct {
			cand candidate
			plan []ConvKind
		}
		var fits []fit
		for _, c := range cands {
			if plan := st.apply(reg, c, args); plan != nil {
				fits = append(fits, fit{cand: c, plan: plan})
			}
		}
		if len(fits) == 0 {
			continue // следующая, более либеральная фаза
		}
		if len(fits) > 1 {
			// same-stage tie: ошибка с перечислением всех кандидатов,
			// произвольный выбор запрещён
			descs := make([]string, len(fits))
			for i, f := range fits {
				descs[i] = f.cand.describe(reg)
			}
			sort.Strings(descs)
			b := diag.ReportError(r, diag.SemAmbiguousCall, sp,
				fmt.Sprintf("call to %q is ambiguous in the %s phase", name, st.phase))
			for _, d := range descs {
				b = b.WithNote(source.Span{File: source.NoFile}, "candidate: "+d)
			}
			b.Emit()
			return nil
		}
		won := fits[0]
		rc := &ResolvedCall{
			Method:   won.cand.method,
			Ctor:     won.cand.ctor,
			Variant:  won.cand.variant,
			Phase:    st.phase,
			Plan:     won.plan,
			PackFrom: len(won.plan),
		}
		for i, conv := range won.plan {
			if conv == ConvPackTail {
				rc.PackFrom = i
				break
			}
		}
		return rc
	}

	descs := make([]string, len(cands))
	for i, c := range cands {
		descs[i] = c.describe(reg)
	}
	sort.Strings(descs)
	b := diag.ReportError(r, diag.SemNoApplicableOverload, sp,
		fmt.Sprintf("no applicable overload of %q for (%s)", name, describeArgs(reg, args)))
	for _, d := range descs {
		b = b.WithNote(source.Span{File: source.NoFile}, "candidate: "+d)
	}
	b.Emit()
	return nil
}

func describeArgs(reg *types.Registry, args []types.TypeID) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = reg.String(a)
	}
	return strings.Join(parts, ", ")
}

// applyExact admits identity and reference-widening (subtype) conversions.
func applyExact(reg *types.Registry, c candidate, args []types.TypeID) []ConvKind {
	if len(args) != len(c.params) {
		return nil
	}
	plan := make([]ConvKind, len(args))
	for i, arg := range args {
		if arg == c.params[i] {
			continue
		}
		if !reg.Get(arg).IsPrimitive() && reg.IsSubtype(arg, c.params[i]) {
			continue
		}
		return nil
	}
	return plan
}

// applyWidening additionally admits primitive numeric widening.
func applyWidening(reg *types.Registry, c candidate, args []types.TypeID) []ConvKind {
	if len(args) != len(c.params) {
		return nil
	}
	plan := make([]ConvKind, len(args))
	for i, arg := range args {
		switch {
		case arg == c.params[i]:
		case !reg.Get(arg).IsPrimitive() && reg.IsSubtype(arg, c.params[i]):
		case reg.CanWiden(arg, c.params[i]):
			plan[i] = ConvWiden
		default:
			return nil
		}
	}
	return plan
}

// applyBoxing additionally admits boxing and unboxing conversions.
func applyBoxing(reg *types.Registry, c candidate, args []types.TypeID) []ConvKind {
	if len(args) != len(c.params) {
		return nil
	}
	plan := make([]ConvKind, len(args))
	for i, arg := range args {
		conv, ok := boxingConv(reg, arg, c.params[i])
		if !ok {
			return nil
		}
		plan[i] = conv
	}
	return plan
}

func boxingConv(reg *types.Registry, arg, param types.TypeID) (ConvKind, bool) {
	switch {
	case arg == param:
		return ConvNone, true
	case !reg.Get(arg).IsPrimitive() && reg.IsSubtype(arg, param):
		return ConvNone, true
	case reg.CanWiden(arg, param):
		return ConvWiden, true
	}
	if boxed, ok := reg.Boxed(arg); ok && reg.IsSubtype(boxed, param) {
		return ConvBox, true
	}
	if prim, ok := reg.Unboxed(arg); ok && prim == param {
		return ConvUnbox, true
	}
	return ConvNone, false
}

// applyVarargs packs trailing arguments into the variadic component type.
func applyVarargs(reg *types.Registry, c candidate, args []types.TypeID) []ConvKind {
	if !c.variadic {
		return nil
	}
	fixed := len(c.params) - 1
	if len(args) < fixed {
		return nil
	}
	plan := make([]ConvKind, len(args))
	for i := 0; i < fixed; i++ {
		conv, ok := boxingConv(reg, args[i], c.params[i])
		if !ok {
			return nil
		}
		plan[i] = conv
	}
	elem := reg.Get(c.params[fixed]).Elem
	for i := fixed; i < len(args); i++ {
		if _, ok := boxingConv(reg, args[i], elem); !ok {
			return nil
		}
		plan[i] = ConvPackTail
	}
	return plan
}
