// Package emit turns lowered units into class files. One class per
// declared type, one per sum variant and one per deferred-body helper.
// Emission validates its own invariants as it goes: an inconsistent stack
// shape at a join point is a compiler bug, reported with internal severity
// and aborting the method.
package emit

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"lumen/internal/ast"
	"lumen/internal/classfile"
	"lumen/internal/diag"
	"lumen/internal/lower"
	"lumen/internal/sema"
	"lumen/internal/source"
	"lumen/internal/types"
)

const objectInternal = "java/lang/Object"

// Class is one emitted class file.
type Class struct {
	Internal string
	Data     []byte
}

type emitter struct {
	mod *lower.Module
	reg *types.Registry
	r   diag.Reporter

	out []Class
}

// Emit compiles every class of a lowered unit. Errors are reported; the
// caller decides whether the outputs are still usable.
func Emit(mod *lower.Module, r diag.Reporter) []Class {
	e := &emitter{
		mod: mod,
		reg: mod.Res.Reg,
		r:   r,
	}
	for _, d := range mod.Res.Decls {
		switch d.Decl.Kind {
		case ast.DeclTrait:
			e.emitTrait(d)
		case ast.DeclSum:
			e.emitSumBase(d)
			for _, shape := range mod.Sums[d.Type].Variants {
				e.emitVariant(d, shape)
			}
		default:
			e.emitClass(d)
		}
	}
	for _, bc := range mod.Blocks {
		e.emitHelper(bc)
	}
	return e.out
}

func (e *emitter) finish(cf *classfile.ClassFile, internal string, sp source.Span) {
	if e.mod.SourceFile != "" {
		cf.Attributes = append(cf.Attributes, classfile.SourceFileAttr(cf.Pool, e.mod.SourceFile))
	}
	data, err := cf.Bytes()
	if err != nil {
		diag.ReportError(e.r, diag.EmitUnitTooLarge, sp,
			fmt.Sprintf("class %s: %v", internal, err)).Emit()
		return
	}
	e.out = append(e.out, Class{Internal: internal, Data: data})
}

func (e *emitter) superInternal(d *sema.Declared) string {
	if d.Super == e.reg.Builtins().Object {
		return objectInternal
	}
	return e.reg.InternalName(d.Super)
}

func (e *emitter) emitClass(d *sema.Declared) {
	internal := e.reg.InternalName(d.Type)
	cf := classfile.New()
	cf.ThisClass = cf.Pool.Class(internal)
	cf.SuperClass = cf.Pool.Class(e.superInternal(d))

	for _, f := range d.Fields {
		cf.Fields = append(cf.Fields, classfile.Field{
			AccessFlags:     classfile.AccPublic | classfile.AccFinal,
			NameIndex:       cf.Pool.Utf8(f.Name),
			DescriptorIndex: cf.Pool.Utf8(e.reg.Descriptor(f.Type)),
		})
	}
	e.emitFieldCtor(cf, internal, e.superInternal(d), d.Fields)
	for _, meth := range d.Methods {
		e.emitMethod(cf, d, meth)
	}
	if refs := e.innerRefs(d); len(refs) > 0 {
		cf.Attributes = append(cf.Attributes, classfile.InnerClassesAttr(cf.Pool, refs))
	}
	e.finish(cf, internal, d.Decl.Sp)
}

// innerRefs lists the deferred-body helpers owned by d, tying them back to
// their owner in its InnerClasses attribute.
func (e *emitter) innerRefs(d *sema.Declared) []classfile.InnerClassRef {
	internal := e.reg.InternalName(d.Type)
	var refs []classfile.InnerClassRef
	for _, bc := range e.mod.Blocks {
		if bc.Owner != d {
			continue
		}
		refs = append(refs, classfile.InnerClassRef{
			Inner:       bc.Name,
			Outer:       internal,
			SimpleName:  strings.TrimPrefix(bc.Name, internal+"$"),
			AccessFlags: classfile.AccFinal | classfile.AccSynthetic,
		})
	}
	return refs
}

func (e *emitter) emitTrait(d *sema.Declared) {
	internal := e.reg.InternalName(d.Type)
	cf := classfile.New()
	cf.AccessFlags = classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract
	cf.ThisClass = cf.Pool.Class(internal)
	cf.SuperClass = cf.Pool.Class(objectInternal)
	for _, meth := range d.Methods {
		cf.Methods = append(cf.Methods, classfile.Method{
			AccessFlags:     classfile.AccPublic | classfile.AccAbstract,
			NameIndex:       cf.Pool.Utf8(meth.Name),
			DescriptorIndex: cf.Pool.Utf8(e.reg.MethodDescriptor(meth.Params, meth.Result)),
		})
	}
	e.finish(cf, internal, d.Decl.Sp)
}

// emitSumBase writes the abstract base of a sum type. Nullary variants
// live as static final singleton fields, created in the class initializer.
func (e *emitter) emitSumBase(d *sema.Declared) {
	internal := e.reg.InternalName(d.Type)
	layout := e.mod.Sums[d.Type]
	cf := classfile.New()
	cf.AccessFlags = classfile.AccPublic | classfile.AccSuper | classfile.AccAbstract
	cf.ThisClass = cf.Pool.Class(internal)
	cf.SuperClass = cf.Pool.Class(objectInternal)

	baseDesc := "L" + internal + ";"
	var singletons []*lower.VariantShape
	for _, shape := range layout.Variants {
		if shape.SingletonField == "" {
			continue
		}
		singletons = append(singletons, shape)
		cf.Fields = append(cf.Fields, classfile.Field{
			AccessFlags:     classfile.AccPublic | classfile.AccStatic | classfile.AccFinal,
			NameIndex:       cf.Pool.Utf8(shape.SingletonField),
			DescriptorIndex: cf.Pool.Utf8(baseDesc),
		})
	}

	// protected <init>()V for the subclasses
	ctor := NewCode()
	ctor.Load(slotRef, 0)
	ctor.Pop()
	ctor.Op2(opInvspecial, cf.Pool.Methodref(objectInternal, "<init>", "()V"))
	ctor.Op(opReturn)
	e.addMethod(cf, classfile.AccProtected, "<init>", "()V", ctor, 1, d.Decl.Sp)

	if len(singletons) > 0 {
		clinit := NewCode()
		for _, shape := range singletons {
			clinit.Op2(opNew, cf.Pool.Class(shape.Internal))
			clinit.Push(slotRef)
			clinit.Op(opDup)
			clinit.Push(slotRef)
			clinit.Pop()
			clinit.Op2(opInvspecial, cf.Pool.Methodref(shape.Internal, "<init>", "()V"))
			clinit.Op2(opPutstatic, cf.Pool.Fieldref(internal, shape.SingletonField, baseDesc))
			clinit.Pop()
		}
		clinit.Op(opReturn)
		e.addMethod(cf, classfile.AccStatic, "<clinit>", "()V", clinit, 0, d.Decl.Sp)
	}
	e.finish(cf, internal, d.Decl.Sp)
}

func (e *emitter) emitVariant(d *sema.Declared, shape *lower.VariantShape) {
	cf := classfile.New()
	cf.AccessFlags = classfile.AccPublic | classfile.AccSuper | classfile.AccFinal
	cf.ThisClass = cf.Pool.Class(shape.Internal)
	cf.SuperClass = cf.Pool.Class(e.reg.InternalName(d.Type))

	for _, f := range shape.Ctor.Fields {
		cf.Fields = append(cf.Fields, classfile.Field{
			AccessFlags:     classfile.AccPublic | classfile.AccFinal,
			NameIndex:       cf.Pool.Utf8(f.Name),
			DescriptorIndex: cf.Pool.Utf8(e.reg.Descriptor(f.Type)),
		})
	}
	e.emitFieldCtor(cf, shape.Internal, e.reg.InternalName(d.Type), shape.Ctor.Fields)
	e.finish(cf, shape.Internal, shape.Ctor.Sp)
}

// emitFieldCtor writes <init> taking one argument per field, assigning
// them in order after delegating to the superclass.
func (e *emitter) emitFieldCtor(cf *classfile.ClassFile, internal, super string, fields []sema.FieldInfo) {
	params := make([]types.TypeID, len(fields))
	for i, f := range fields {
		params[i] = f.Type
	}
	desc := e.reg.MethodDescriptor(params, e.reg.Builtins().Unit)

	c := NewCode()
	c.Load(slotRef, 0)
	c.Pop()
	c.Op2(opInvspecial, cf.Pool.Methodref(super, "<init>", "()V"))
	slot := 1
	for _, f := range fields {
		k, ok := kindOf(e.reg, f.Type)
		if !ok {
			continue
		}
		c.Load(slotRef, 0)
		c.Load(k, slot)
		c.Op2(opPutfield, cf.Pool.Fieldref(internal, f.Name, e.reg.Descriptor(f.Type)))
		c.Pop()
		c.Pop()
		slot += k.units()
	}
	c.Op(opReturn)
	e.addMethod(cf, classfile.AccPublic, "<init>", desc, c, slot, source.Span{})
}

// addMethod finalizes a code buffer into a method_info entry.
func (e *emitter) addMethod(cf *classfile.ClassFile, flags uint16, name, desc string, c *Code, maxLocals int, sp source.Span) {
	body, err := c.Finish()
	var maxStack, locals uint16
	if err == nil {
		maxStack, err = safecast.Conv[uint16](c.MaxStack())
	}
	if err == nil {
		locals, err = safecast.Conv[uint16](maxLocals)
	}
	if err != nil {
		diag.ReportInternal(e.r, diag.EmitInternalLowering, sp,
			fmt.Sprintf("method %s%s: %v", name, desc, err)).Emit()
		return
	}
	cf.Methods = append(cf.Methods, classfile.Method{
		AccessFlags:     flags,
		NameIndex:       cf.Pool.Utf8(name),
		DescriptorIndex: cf.Pool.Utf8(desc),
		Attributes: []classfile.Attribute{
			classfile.CodeAttr(cf.Pool, maxStack, locals, body),
		},
	})
}
