package emit

import (
	"fmt"
	"strings"

	"lumen/internal/classfile"
	"lumen/internal/diag"
	"lumen/internal/lower"
	"lumen/internal/sema"
	"lumen/internal/source"
	"lumen/internal/types"
)

// frame emits one method body: slot assignment, expression emission and
// the capture environment when the body lives inside a deferred helper.
type frame struct {
	e  *emitter
	cf *classfile.ClassFile
	c  *Code
	d  *sema.Declared

	meth   *sema.Method      // enclosing declared method, nil for synthetic bodies
	helper *lower.BlockClass // set while emitting a helper's entry point

	slots map[*sema.Local]int
	next  int
	max   int

	sp source.Span
}

func (e *emitter) newFrame(cf *classfile.ClassFile, d *sema.Declared, sp source.Span) *frame {
	return &frame{
		e:     e,
		cf:    cf,
		c:     NewCode(),
		d:     d,
		slots: make(map[*sema.Local]int),
		sp:    sp,
	}
}

func (f *frame) alloc(k slotKind) int {
	s := f.next
	f.next += k.units()
	if f.next > f.max {
		f.max = f.next
	}
	return s
}

func (f *frame) res() *sema.Result { return f.e.mod.Res }

func (f *frame) internalOf(d *sema.Declared) string {
	return f.e.reg.InternalName(d.Type)
}

// emitMethod compiles one declared method into the class. Async methods
// compile to a constructor call on their body helper plus a spawn; the
// body itself lives in the helper's entry point.
func (e *emitter) emitMethod(cf *classfile.ClassFile, d *sema.Declared, meth *sema.Method) {
	if meth.Fun.Body == nil {
		return
	}
	f := e.newFrame(cf, d, meth.Fun.Sp)
	f.meth = meth
	if !meth.Static {
		f.alloc(slotRef) // this
	}
	for i := range meth.Fun.Params {
		local := e.mod.Res.Params[&meth.Fun.Params[i]]
		if local == nil {
			continue
		}
		k, ok := kindOf(e.reg, local.Type)
		if !ok {
			continue
		}
		f.slots[local] = f.alloc(k)
	}

	if meth.Async {
		bc := e.mod.ByMethod[meth]
		if bc == nil {
			diag.ReportInternal(e.r, diag.EmitInternalLowering, meth.Fun.Sp,
				fmt.Sprintf("async method %s has no body helper", meth.Name)).Emit()
			return
		}
		f.constructHelper(bc)
		f.c.Op2(opInvstatic, cf.Pool.Methodref(rtDeferred, "spawn", descSpawn))
		f.c.Pop()
		f.c.Push(slotRef)
		f.c.Op(opAreturn)
		f.c.Pop()
		f.c.MarkDead()
	} else {
		f.expr(meth.Fun.Body)
		f.emitReturn(meth.Result, f.res().TypeOf(meth.Fun.Body))
	}

	flags := uint16(classfile.AccPublic)
	if meth.Static {
		flags |= classfile.AccStatic
	}
	if meth.Variadic {
		flags |= classfile.AccVarargs
	}
	desc := e.reg.MethodDescriptor(meth.Params, meth.Result)
	e.addMethod(cf, flags, meth.Name, desc, f.c, f.max, meth.Fun.Sp)
}

func (f *frame) emitReturn(want, got types.TypeID) {
	b := f.e.reg.Builtins()
	if want == b.Unit {
		f.discard(got)
		f.c.Op(opReturn)
		f.c.MarkDead()
		return
	}
	k, ok := kindOf(f.e.reg, want)
	if !ok {
		f.c.Op(opReturn)
		f.c.MarkDead()
		return
	}
	switch k {
	case slotInt:
		f.c.Op(opIreturn)
	case slotLong:
		f.c.Op(opLreturn)
	case slotDouble:
		f.c.Op(opDreturn)
	default:
		f.c.Op(opAreturn)
	}
	f.c.Pop()
	f.c.MarkDead()
}

// discard pops an unused value off the operand stack.
func (f *frame) discard(t types.TypeID) {
	k, ok := kindOf(f.e.reg, t)
	if !ok {
		return
	}
	if k.units() == 2 {
		f.c.Op(opPop2)
	} else {
		f.c.Op(opPop)
	}
	f.c.Pop()
}

// loadReceiver pushes the original declared-type receiver: slot zero in an
// instance method, the captured receiver field inside a helper.
func (f *frame) loadReceiver() {
	if f.helper != nil {
		f.c.Load(slotRef, 0)
		f.c.Op2(opGetfield, f.cf.Pool.Fieldref(f.helper.Name, "this$0",
			"L"+f.internalOf(f.d)+";"))
		// field ref replaces the helper ref
		return
	}
	f.c.Load(slotRef, 0)
}

func captureFieldName(l *sema.Local) string { return "val$" + l.Name }

func (f *frame) captureOf(l *sema.Local) (lower.Capture, bool) {
	if f.helper == nil {
		return lower.Capture{}, false
	}
	for _, c := range f.helper.Captures {
		if c.Local == l {
			return c, true
		}
	}
	return lower.Capture{}, false
}

// loadCellRef pushes the helper-private cell of a boxed capture.
func (f *frame) loadCellRef(l *sema.Local) {
	f.c.Load(slotRef, 0)
	f.c.Op2(opGetfield, f.cf.Pool.Fieldref(f.helper.Name, captureFieldName(l),
		"L"+rtCell+";"))
	// field ref replaces the helper ref
}

// loadLocal pushes the current value of a binding, reading through its
// cell or capture field as needed.
func (f *frame) loadLocal(l *sema.Local) {
	if c, ok := f.captureOf(l); ok {
		if c.Boxed {
			f.loadCellRef(l)
			f.c.Op2(opInvvirtual, f.cf.Pool.Methodref(rtCell, "get", descCellGet))
			f.unboxTo(l.Type)
			return
		}
		k, ok := kindOf(f.e.reg, l.Type)
		if !ok {
			return
		}
		f.c.Load(slotRef, 0)
		f.c.Pop()
		f.c.Op2(opGetfield, f.cf.Pool.Fieldref(f.helper.Name, captureFieldName(l),
			f.e.reg.Descriptor(l.Type)))
		f.c.Push(k)
		return
	}
	k, ok := kindOf(f.e.reg, l.Type)
	if !ok {
		return
	}
	f.c.Load(k, f.slots[l])
}

// unboxTo narrows an erased object on the stack to the given type.
func (f *frame) unboxTo(want types.TypeID) {
	reg := f.e.reg
	desc := reg.Descriptor(want)
	if bx, ok := boxTable[desc[0]]; ok {
		f.c.Op2(opCheckcast, f.cf.Pool.Class(bx.wrapper))
		f.c.Op2(opInvvirtual, f.cf.Pool.Methodref(bx.wrapper, bx.unboxName, bx.unboxDesc))
		f.c.Pop()
		k, _ := kindOf(reg, want)
		f.c.Push(k)
		return
	}
	if want != reg.Builtins().Object {
		f.c.Op2(opCheckcast, f.cf.Pool.Class(reg.InternalName(want)))
	}
}

// boxValue wraps the primitive on top of the stack.
func (f *frame) boxValue(prim types.TypeID) {
	desc := f.e.reg.Descriptor(prim)
	bx, ok := boxTable[desc[0]]
	if !ok {
		return
	}
	f.c.Op2(opInvstatic, f.cf.Pool.Methodref(bx.wrapper, "valueOf", bx.valueOf))
	f.c.Pop()
	f.c.Push(slotRef)
}

// constructHelper news up a deferred-body helper, snapshotting captured
// values as constructor arguments, receiver first. A capture the body
// assigns gets its snapshot wrapped in a fresh cell; the enclosing frame
// keeps its plain slot either way.
func (f *frame) constructHelper(bc *lower.BlockClass) {
	f.c.Op2(opNew, f.cf.Pool.Class(bc.Name))
	f.c.Push(slotRef)
	f.c.Op(opDup)
	f.c.Push(slotRef)
	if bc.CapturesThis {
		f.loadReceiver()
	}
	for _, cap := range bc.Captures {
		if cap.Boxed {
			f.c.Op2(opNew, f.cf.Pool.Class(rtCell))
			f.c.Push(slotRef)
			f.c.Op(opDup)
			f.c.Push(slotRef)
			f.loadLocal(cap.Local)
			f.boxIfPrimitive(cap.Local.Type)
			f.c.Op2(opInvspecial, f.cf.Pool.Methodref(rtCell, "<init>", descCellInit))
			f.c.Pop() // ctor argument
			f.c.Pop() // consumed dup
			continue
		}
		f.loadLocal(cap.Local)
	}
	f.c.Op2(opInvspecial, f.cf.Pool.Methodref(bc.Name, "<init>", f.e.helperCtorDesc(bc)))
	// ctor consumes the dup and every argument
	if bc.CapturesThis {
		f.c.Pop()
	}
	for range bc.Captures {
		f.c.Pop()
	}
	f.c.Pop()
}

// helperCtorDesc is the constructor descriptor of a helper class:
// receiver first when captured, then captures in first-use order, cells
// for the boxed ones.
func (e *emitter) helperCtorDesc(bc *lower.BlockClass) string {
	desc := "("
	if bc.CapturesThis {
		desc += "L" + e.reg.InternalName(bc.Owner.Type) + ";"
	}
	for _, cap := range bc.Captures {
		if cap.Boxed {
			desc += "L" + rtCell + ";"
		} else {
			desc += e.reg.Descriptor(cap.Local.Type)
		}
	}
	return desc + ")V"
}

// emitHelper writes one deferred-body helper class: capture fields, a
// constructor storing them and the runtime entry point evaluating the
// body.
func (e *emitter) emitHelper(bc *lower.BlockClass) {
	cf := classfile.New()
	cf.AccessFlags = classfile.AccSuper | classfile.AccFinal | classfile.AccSynthetic
	cf.ThisClass = cf.Pool.Class(bc.Name)
	cf.SuperClass = cf.Pool.Class(objectInternal)
	cf.Interfaces = append(cf.Interfaces, cf.Pool.Class(rtBlock))

	ownerInternal := e.reg.InternalName(bc.Owner.Type)
	if bc.CapturesThis {
		cf.Fields = append(cf.Fields, classfile.Field{
			AccessFlags:     classfile.AccFinal | classfile.AccSynthetic,
			NameIndex:       cf.Pool.Utf8("this$0"),
			DescriptorIndex: cf.Pool.Utf8("L" + ownerInternal + ";"),
		})
	}
	for _, cap := range bc.Captures {
		desc := e.reg.Descriptor(cap.Local.Type)
		if cap.Boxed {
			desc = "L" + rtCell + ";"
		}
		cf.Fields = append(cf.Fields, classfile.Field{
			AccessFlags:     classfile.AccFinal | classfile.AccSynthetic,
			NameIndex:       cf.Pool.Utf8(captureFieldName(cap.Local)),
			DescriptorIndex: cf.Pool.Utf8(desc),
		})
	}

	// constructor
	c := NewCode()
	c.Load(slotRef, 0)
	c.Pop()
	c.Op2(opInvspecial, cf.Pool.Methodref(objectInternal, "<init>", "()V"))
	slot := 1
	store := func(name, desc string, k slotKind) {
		c.Load(slotRef, 0)
		c.Load(k, slot)
		c.Op2(opPutfield, cf.Pool.Fieldref(bc.Name, name, desc))
		c.Pop()
		c.Pop()
		slot += k.units()
	}
	if bc.CapturesThis {
		store("this$0", "L"+ownerInternal+";", slotRef)
	}
	for _, cap := range bc.Captures {
		if cap.Boxed {
			store(captureFieldName(cap.Local), "L"+rtCell+";", slotRef)
			continue
		}
		k, ok := kindOf(e.reg, cap.Local.Type)
		if !ok {
			continue
		}
		store(captureFieldName(cap.Local), e.reg.Descriptor(cap.Local.Type), k)
	}
	c.Op(opReturn)
	e.addMethod(cf, classfile.AccSynthetic, "<init>", e.helperCtorDesc(bc), c, slot, bc.Expr.Span())

	// entry point
	f := e.newFrame(cf, bc.Owner, bc.Expr.Span())
	f.helper = bc
	f.alloc(slotRef) // the helper itself
	f.expr(bc.Body)
	bodyType := e.mod.Res.TypeOf(bc.Body)
	if bodyType == e.reg.Builtins().Unit {
		f.c.Op(opAconstNull)
		f.c.Push(slotRef)
	}
	f.c.Op(opAreturn)
	f.c.Pop()
	f.c.MarkDead()
	e.addMethod(cf, classfile.AccPublic, "call", descCall, f.c, f.max, bc.Expr.Span())

	cf.Attributes = append(cf.Attributes, classfile.InnerClassesAttr(cf.Pool, []classfile.InnerClassRef{{
		Inner:       bc.Name,
		Outer:       ownerInternal,
		SimpleName:  strings.TrimPrefix(bc.Name, ownerInternal+"$"),
		AccessFlags: classfile.AccFinal | classfile.AccSynthetic,
	}}))
	e.finish(cf, bc.Name, bc.Expr.Span())
}
