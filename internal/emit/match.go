package emit

import (
	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/lower"
	"lumen/internal/types"
)

// emitMatch compiles the ordered arm plan: each arm tests, binds, checks
// its guard and either runs its body or falls through to the next arm. A
// value that clears every arm hits the trap at the end; exhaustive plans
// only reach it through runtime type confusion.
func (f *frame) emitMatch(ex *ast.Match) {
	plan := f.e.mod.Matches[ex]
	if plan == nil {
		diag.ReportInternal(f.e.r, diag.EmitInternalLowering, ex.Sp,
			"match expression has no lowered plan").Emit()
		return
	}
	b := f.e.reg.Builtins()
	result := f.res().TypeOf(ex)
	hasVal := result != b.Unit

	f.expr(ex.Scrutinee)
	sk, scrutHasSlot := kindOf(f.e.reg, plan.Scrutinee)
	var sslot int
	if scrutHasSlot {
		sslot = f.alloc(sk)
		f.c.Store(sk, sslot)
	}

	endL := f.c.NewLabel()
	sealed := false
	for i := range plan.Arms {
		ap := &plan.Arms[i]
		nextL := f.c.NewLabel()
		f.emitPatTest(&ap.Test, sslot, plan.Scrutinee, nextL)
		if ap.Arm.Guard != nil {
			f.expr(ap.Arm.Guard)
			f.c.Pop()
			f.c.Jump(opIfeq, nextL)
		}
		f.expr(ap.Arm.Body)
		if !hasVal {
			f.discard(f.res().TypeOf(ap.Arm.Body))
		}
		f.c.Jump(opGoto, endL)
		f.c.Bind(nextL)
		if !ap.Guarded && ap.Test.Irrefutable() {
			sealed = true
			break
		}
	}
	if !sealed {
		f.emitMatchTrap()
	}
	f.c.Bind(endL)
}

const iseInternal = "java/lang/IllegalStateException"

func (f *frame) emitMatchTrap() {
	f.c.Op2(opNew, f.cf.Pool.Class(iseInternal))
	f.c.Push(slotRef)
	f.c.Op(opDup)
	f.c.Push(slotRef)
	f.emitLdcRef(f.cf.Pool.String("unmatched value"))
	f.c.Op2(opInvspecial, f.cf.Pool.Methodref(iseInternal, "<init>", "(Ljava/lang/String;)V"))
	f.c.Pop()
	f.c.Pop()
	f.c.Op(opAthrow)
	f.c.Pop()
	f.c.MarkDead()
}

// emitPatTest checks the value in slot against one compiled pattern,
// jumping to failL on mismatch and recording bindings on success.
func (f *frame) emitPatTest(t *lower.PatTest, slot int, slotType types.TypeID, failL Label) {
	switch t.Kind {
	case lower.TestAlways:
		if t.Bind != nil {
			// the binding aliases the slot holding the matched value
			f.slots[t.Bind] = slot
		}
	case lower.TestLit:
		f.emitLitTest(t.Lit, slot, failL)
	case lower.TestInstance:
		f.emitInstanceTest(t, slot, failL)
	}
}

func (f *frame) emitLitTest(lit *ast.Lit, slot int, failL Label) {
	switch lit.Kind {
	case ast.LitInt, ast.LitBool:
		f.c.Load(slotInt, slot)
		f.emitLit(lit)
		f.c.Pop()
		f.c.Pop()
		f.c.Jump(opIfIcmpne, failL)
	case ast.LitLong:
		f.c.Load(slotLong, slot)
		f.emitLit(lit)
		f.c.Op(opLcmp)
		f.c.Pop()
		f.c.Pop()
		f.c.Push(slotInt)
		f.c.Pop()
		f.c.Jump(opIfne, failL)
	case ast.LitDouble:
		f.c.Load(slotDouble, slot)
		f.emitLit(lit)
		f.c.Op(opDcmpl)
		f.c.Pop()
		f.c.Pop()
		f.c.Push(slotInt)
		f.c.Pop()
		f.c.Jump(opIfne, failL)
	case ast.LitString:
		f.c.Load(slotRef, slot)
		f.emitLit(lit)
		f.c.Op2(opInvvirtual, f.cf.Pool.Methodref("java/lang/String", "equals",
			"(Ljava/lang/Object;)Z"))
		f.c.Pop()
		f.c.Pop()
		f.c.Push(slotInt)
		f.c.Pop()
		f.c.Jump(opIfeq, failL)
	}
}

func (f *frame) emitInstanceTest(t *lower.PatTest, slot int, failL Label) {
	if t.Variant == nil {
		// a bad pattern was already reported; fail unconditionally while
		// keeping the stream statically alive
		f.pushInt(0)
		f.c.Pop()
		f.c.Jump(opIfeq, failL)
		return
	}
	internal := t.Variant.Internal
	f.c.Load(slotRef, slot)
	f.c.Op2(opInstanceof, f.cf.Pool.Class(internal))
	f.c.Pop()
	f.c.Push(slotInt)
	f.c.Pop()
	f.c.Jump(opIfeq, failL)

	if !needsPayload(t) {
		return
	}
	f.c.Load(slotRef, slot)
	f.c.Op2(opCheckcast, f.cf.Pool.Class(internal))
	vslot := f.alloc(slotRef)
	f.c.Store(slotRef, vslot)

	for i := range t.Elems {
		sub := &t.Elems[i]
		if sub.Kind == lower.TestAlways && sub.Bind == nil {
			continue
		}
		fld := &t.Variant.Ctor.Fields[i]
		f.c.Load(slotRef, vslot)
		f.emitGetfield(internal, fld)
		k, ok := kindOf(f.e.reg, fld.Type)
		if !ok {
			continue
		}
		fslot := f.alloc(k)
		f.c.Store(k, fslot)
		f.emitPatTest(sub, fslot, fld.Type, failL)
	}
}

func needsPayload(t *lower.PatTest) bool {
	for i := range t.Elems {
		if t.Elems[i].Kind != lower.TestAlways || t.Elems[i].Bind != nil {
			return true
		}
	}
	return false
}
