package emit

import (
	"fmt"
	"math"

	"lumen/internal/ast"
	"lumen/internal/diag"
	"lumen/internal/lower"
	"lumen/internal/sema"
	"lumen/internal/types"
)

// expr emits an expression's value followed by its planned bridge
// conversions. Unit-typed expressions leave nothing on the stack.
func (f *frame) expr(e ast.Expr) {
	if e == nil {
		return
	}
	f.emitBare(e)
	f.applyAdjusts(e)
}

func (f *frame) emitBare(e ast.Expr) {
	switch ex := e.(type) {
	case *ast.Lit:
		f.emitLit(ex)
	case *ast.Ident:
		f.emitIdent(ex)
	case *ast.This:
		f.loadReceiver()
	case *ast.FieldGet:
		f.emitFieldGet(ex)
	case *ast.Call:
		f.emitCall(ex)
	case *ast.New:
		f.emitNew(ex)
	case *ast.Unary:
		f.emitUnary(ex)
	case *ast.Binary:
		f.emitBinary(ex)
	case *ast.Block:
		f.emitBlock(ex)
	case *ast.If:
		f.emitIf(ex)
	case *ast.While:
		f.emitWhile(ex)
	case *ast.Match:
		f.emitMatch(ex)
	case *ast.Async:
		f.emitAsync(ex)
	case *ast.Within:
		f.emitWithin(ex)
	case *ast.Await:
		f.emitAwait(ex)
	default:
		diag.ReportInternal(f.e.r, diag.EmitInternalLowering, e.Span(),
			fmt.Sprintf("no emission for %T", e)).Emit()
	}
}

func (f *frame) applyAdjusts(e ast.Expr) {
	for _, adj := range f.e.mod.Adjusts[e] {
		switch adj.Kind {
		case lower.AdjWiden:
			f.emitWiden(adj.From, adj.To)
		case lower.AdjBox:
			f.boxValue(adj.From)
		case lower.AdjUnbox:
			f.unboxPrim(adj.To)
		case lower.AdjCast:
			f.c.Op2(opCheckcast, f.cf.Pool.Class(f.e.reg.InternalName(adj.To)))
		}
	}
}

func (f *frame) emitWiden(from, to types.TypeID) {
	b := f.e.reg.Builtins()
	switch {
	case from == b.Int && to == b.Long:
		f.c.Op(opI2l)
		f.c.Pop()
		f.c.Push(slotLong)
	case from == b.Int && to == b.Double:
		f.c.Op(opI2d)
		f.c.Pop()
		f.c.Push(slotDouble)
	case from == b.Long && to == b.Double:
		f.c.Op(opL2d)
		f.c.Pop()
		f.c.Push(slotDouble)
	}
}

// unboxPrim assumes the wrapper reference is already on the stack with the
// matching wrapper type.
func (f *frame) unboxPrim(want types.TypeID) {
	desc := f.e.reg.Descriptor(want)
	bx, ok := boxTable[desc[0]]
	if !ok {
		return
	}
	f.c.Op2(opInvvirtual, f.cf.Pool.Methodref(bx.wrapper, bx.unboxName, bx.unboxDesc))
	f.c.Pop()
	k, _ := kindOf(f.e.reg, want)
	f.c.Push(k)
}

func (f *frame) emitLit(ex *ast.Lit) {
	p := f.cf.Pool
	switch ex.Kind {
	case ast.LitInt:
		f.pushInt(int32(ex.Int))
	case ast.LitBool:
		if ex.Bool {
			f.c.Op(opIconst1)
		} else {
			f.c.Op(opIconst0)
		}
		f.c.Push(slotInt)
	case ast.LitLong:
		switch ex.Int {
		case 0:
			f.c.Op(opLconst0)
		case 1:
			f.c.Op(opLconst1)
		default:
			f.c.Op2(opLdc2W, p.Long(ex.Int))
		}
		f.c.Push(slotLong)
	case ast.LitDouble:
		switch ex.Float {
		case 0:
			f.c.Op(opDconst0)
		case 1:
			f.c.Op(opDconst1)
		default:
			f.c.Op2(opLdc2W, p.Double(ex.Float))
		}
		f.c.Push(slotDouble)
	case ast.LitString:
		f.emitLdcRef(p.String(ex.Str))
	case ast.LitUnit:
		// no value
	}
}

func (f *frame) pushInt(v int32) {
	switch {
	case v >= -1 && v <= 5:
		f.c.Op(byte(opIconst0 + int(v)))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		f.c.Op1(opBipush, byte(int8(v)))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		f.c.Op2(opSipush, uint16(int16(v)))
	default:
		idx := f.cf.Pool.Int(v)
		if idx <= 0xFF {
			f.c.Op1(opLdc, byte(idx))
		} else {
			f.c.Op2(opLdcW, idx)
		}
	}
	f.c.Push(slotInt)
}

func (f *frame) emitLdcRef(idx uint16) {
	if idx <= 0xFF {
		f.c.Op1(opLdc, byte(idx))
	} else {
		f.c.Op2(opLdcW, idx)
	}
	f.c.Push(slotRef)
}

func (f *frame) emitIdent(ex *ast.Ident) {
	ref := f.res().Idents[ex]
	if ref == nil {
		diag.ReportInternal(f.e.r, diag.EmitInternalLowering, ex.Sp,
			fmt.Sprintf("unresolved identifier %q survived checking", ex.Name)).Emit()
		return
	}
	switch ref.Kind {
	case sema.RefLocal:
		f.loadLocal(ref.Local)
	case sema.RefField:
		f.loadReceiver()
		f.emitGetfield(f.internalOf(ref.Owner), ref.Field)
	case sema.RefVariant:
		f.emitSingleton(ref.Variant)
	}
}

// emitSingleton pushes the shared instance of a nullary variant, narrowed
// to its own class because the field is declared with the base type.
func (f *frame) emitSingleton(v *sema.VariantCtor) {
	base := f.e.reg.InternalName(v.Owner.Type)
	f.c.Op2(opGetstatic, f.cf.Pool.Fieldref(base, v.Name, "L"+base+";"))
	f.c.Push(slotRef)
	f.c.Op2(opCheckcast, f.cf.Pool.Class(f.e.reg.InternalName(v.Type)))
}

func (f *frame) emitGetfield(owner string, fi *sema.FieldInfo) {
	f.c.Op2(opGetfield, f.cf.Pool.Fieldref(owner, fi.Name, f.e.reg.Descriptor(fi.Type)))
	f.c.Pop()
	k, ok := kindOf(f.e.reg, fi.Type)
	if ok {
		f.c.Push(k)
	}
}

func (f *frame) emitFieldGet(ex *ast.FieldGet) {
	f.expr(ex.Recv)
	recvType := f.res().TypeOf(ex.Recv)
	owner, fi := f.findFieldOwner(recvType, ex.Name)
	if fi == nil {
		diag.ReportInternal(f.e.r, diag.EmitInternalLowering, ex.Sp,
			fmt.Sprintf("field %q vanished after checking", ex.Name)).Emit()
		return
	}
	f.emitGetfield(owner, fi)
}

// findFieldOwner walks the super chain for the declaring class, mirroring
// the checker's lookup.
func (f *frame) findFieldOwner(t types.TypeID, name string) (string, *sema.FieldInfo) {
	for cur := t; cur.IsValid(); {
		d := f.res().DeclaredFor(cur)
		if d == nil {
			break
		}
		for i := range d.Fields {
			if d.Fields[i].Name == name {
				return f.internalOf(d), &d.Fields[i]
			}
		}
		sup, ok := f.e.reg.Super(cur)
		if !ok {
			break
		}
		cur = sup
	}
	return "", nil
}

func (f *frame) emitCall(ex *ast.Call) {
	rc := f.res().Calls[ex]
	if rc == nil {
		diag.ReportInternal(f.e.r, diag.EmitInternalLowering, ex.Sp,
			fmt.Sprintf("call %q has no resolution", ex.Name)).Emit()
		return
	}
	if rc.Variant != nil {
		f.emitVariantCtor(rc.Variant, ex.Args, rc)
		return
	}
	m := rc.Method
	if !m.Static {
		if ex.Recv != nil {
			f.expr(ex.Recv)
		} else {
			f.loadReceiver()
		}
	}
	f.emitArgs(ex.Args, m.Params, rc)

	owner := f.e.reg.InternalName(m.Owner.Type)
	desc := f.e.reg.MethodDescriptor(m.Params, m.Result)
	if m.Static {
		f.c.Op2(opInvstatic, f.cf.Pool.Methodref(owner, m.Name, desc))
	} else if m.Owner.Decl.Kind == ast.DeclTrait {
		f.c.Op2(opInvinterface, f.cf.Pool.InterfaceMethodref(owner, m.Name, desc))
		// historical count-and-zero operand pair
		f.c.Op(byte(f.invokeCount(m)))
		f.c.Op(0)
	} else {
		f.c.Op2(opInvvirtual, f.cf.Pool.Methodref(owner, m.Name, desc))
	}

	for range m.Params {
		f.c.Pop()
	}
	if !m.Static {
		f.c.Pop()
	}
	if k, ok := kindOf(f.e.reg, m.Result); ok {
		f.c.Push(k)
	}
}

// invokeCount is the historical operand of the interface invoke: one unit
// for the receiver plus the argument widths.
func (f *frame) invokeCount(m *sema.Method) int {
	n := 1
	for _, p := range m.Params {
		n += f.e.reg.Get(p).Width()
	}
	return n
}

// emitArgs pushes call arguments, packing a variadic tail into an array
// when the resolution chose the variable-arity phase. The per-argument
// conversions were planned by the bridge and ride on the expressions.
func (f *frame) emitArgs(args []ast.Expr, params []types.TypeID, rc *sema.ResolvedCall) {
	packed := rc.Phase == sema.PhaseVarargs
	fixed := len(args)
	if packed {
		fixed = rc.PackFrom
	}
	for i := 0; i < fixed && i < len(args); i++ {
		f.expr(args[i])
	}
	if !packed {
		return
	}
	elem := f.e.reg.Get(params[len(params)-1]).Elem
	tail := args[fixed:]
	f.pushInt(int32(len(tail)))
	f.emitNewArray(elem)
	for i, arg := range tail {
		f.c.Op(opDup)
		f.c.Push(slotRef)
		f.pushInt(int32(i))
		f.expr(arg)
		f.emitArrayStore(elem)
	}
}

func (f *frame) emitNewArray(elem types.TypeID) {
	b := f.e.reg.Builtins()
	// newarray atype codes for the primitive element kinds
	switch elem {
	case b.Bool:
		f.c.Op1(opNewarray, 4)
	case b.Double:
		f.c.Op1(opNewarray, 7)
	case b.Int:
		f.c.Op1(opNewarray, 10)
	case b.Long:
		f.c.Op1(opNewarray, 11)
	default:
		f.c.Op2(opAnewarray, f.cf.Pool.Class(f.e.reg.InternalName(elem)))
	}
	f.c.Pop() // length
	f.c.Push(slotRef)
}

func (f *frame) emitArrayStore(elem types.TypeID) {
	b := f.e.reg.Builtins()
	switch elem {
	case b.Bool:
		f.c.Op(opBastore)
	case b.Int:
		f.c.Op(opIastore)
	case b.Long:
		f.c.Op(opLastore)
	case b.Double:
		f.c.Op(opDastore)
	default:
		f.c.Op(opAastore)
	}
	f.c.Pop() // value
	f.c.Pop() // index
	f.c.Pop() // array ref (the dup)
}

func (f *frame) emitVariantCtor(v *sema.VariantCtor, args []ast.Expr, rc *sema.ResolvedCall) {
	if v.Nullary() {
		f.emitSingleton(v)
		return
	}
	internal := f.e.reg.InternalName(v.Type)
	f.c.Op2(opNew, f.cf.Pool.Class(internal))
	f.c.Push(slotRef)
	f.c.Op(opDup)
	f.c.Push(slotRef)
	params := make([]types.TypeID, len(v.Fields))
	for i, fld := range v.Fields {
		params[i] = fld.Type
	}
	f.emitArgs(args, params, rc)
	f.c.Op2(opInvspecial, f.cf.Pool.Methodref(internal, "<init>",
		f.e.reg.MethodDescriptor(params, f.e.reg.Builtins().Unit)))
	for range params {
		f.c.Pop()
	}
	f.c.Pop() // the dup
}

func (f *frame) emitNew(ex *ast.New) {
	rc := f.res().News[ex]
	if rc == nil || rc.Ctor == nil {
		diag.ReportInternal(f.e.r, diag.EmitInternalLowering, ex.Sp,
			"constructor call has no resolution").Emit()
		return
	}
	internal := f.internalOf(rc.Ctor)
	f.c.Op2(opNew, f.cf.Pool.Class(internal))
	f.c.Push(slotRef)
	f.c.Op(opDup)
	f.c.Push(slotRef)
	params := make([]types.TypeID, len(rc.Ctor.Fields))
	for i, fld := range rc.Ctor.Fields {
		params[i] = fld.Type
	}
	f.emitArgs(ex.Args, params, rc)
	f.c.Op2(opInvspecial, f.cf.Pool.Methodref(internal, "<init>",
		f.e.reg.MethodDescriptor(params, f.e.reg.Builtins().Unit)))
	for range params {
		f.c.Pop()
	}
	f.c.Pop()
}

func (f *frame) emitUnary(ex *ast.Unary) {
	f.expr(ex.Operand)
	switch ex.Op {
	case ast.UnNeg:
		t := f.res().TypeOf(ex.Operand)
		b := f.e.reg.Builtins()
		switch t {
		case b.Long:
			f.c.Op(opLneg)
		case b.Double:
			f.c.Op(opDneg)
		default:
			f.c.Op(opIneg)
		}
	case ast.UnNot:
		trueL := f.c.NewLabel()
		endL := f.c.NewLabel()
		f.c.Pop()
		f.c.Jump(opIfeq, trueL)
		f.c.Op(opIconst0)
		f.c.Push(slotInt)
		f.c.Jump(opGoto, endL)
		f.c.Bind(trueL)
		f.c.Op(opIconst1)
		f.c.Push(slotInt)
		f.c.Bind(endL)
	}
}

func (f *frame) emitBlock(ex *ast.Block) {
	for _, s := range ex.Stmts {
		f.emitStmt(s)
	}
	f.expr(ex.Value)
}

func (f *frame) emitStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.Let:
		f.emitLet(st)
	case *ast.Assign:
		f.emitAssign(st)
	case *ast.ExprStmt:
		f.expr(st.E)
		f.discard(f.res().TypeOf(st.E))
	}
}

func (f *frame) emitLet(st *ast.Let) {
	local := f.res().Lets[st]
	if local == nil {
		return
	}
	f.expr(st.Init)
	k, ok := kindOf(f.e.reg, local.Type)
	if !ok {
		return
	}
	slot := f.alloc(k)
	f.slots[local] = slot
	f.c.Store(k, slot)
}

func (f *frame) boxIfPrimitive(t types.TypeID) {
	if f.e.reg.Get(t).IsPrimitive() {
		f.boxValue(t)
	}
}

func (f *frame) emitAssign(st *ast.Assign) {
	local := f.res().Assigns[st]
	if local == nil {
		return
	}
	if c, ok := f.captureOf(local); ok && c.Boxed {
		f.loadCellRef(local)
		f.expr(st.Value)
		f.boxIfPrimitive(local.Type)
		f.c.Op2(opInvvirtual, f.cf.Pool.Methodref(rtCell, "set", descCellSet))
		f.c.Pop()
		f.c.Pop()
		return
	}
	f.expr(st.Value)
	k, ok := kindOf(f.e.reg, local.Type)
	if !ok {
		return
	}
	f.c.Store(k, f.slots[local])
}

func (f *frame) emitBinary(ex *ast.Binary) {
	switch ex.Op {
	case ast.BinAnd, ast.BinOr:
		f.emitShortCircuit(ex)
		return
	case ast.BinEq, ast.BinNe, ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe:
		f.emitCompare(ex)
		return
	}
	f.expr(ex.Left)
	f.expr(ex.Right)
	k := f.c.Pop()
	f.c.Pop()
	var op byte
	switch k {
	case slotLong:
		op = map[ast.BinOp]byte{
			ast.BinAdd: opLadd, ast.BinSub: opLsub, ast.BinMul: opLmul,
			ast.BinDiv: opLdiv, ast.BinRem: opLrem,
		}[ex.Op]
	case slotDouble:
		op = map[ast.BinOp]byte{
			ast.BinAdd: opDadd, ast.BinSub: opDsub, ast.BinMul: opDmul,
			ast.BinDiv: opDdiv, ast.BinRem: opDrem,
		}[ex.Op]
	default:
		op = map[ast.BinOp]byte{
			ast.BinAdd: opIadd, ast.BinSub: opIsub, ast.BinMul: opImul,
			ast.BinDiv: opIdiv, ast.BinRem: opIrem,
		}[ex.Op]
	}
	f.c.Op(op)
	f.c.Push(k)
}

func (f *frame) emitShortCircuit(ex *ast.Binary) {
	shortL := f.c.NewLabel()
	endL := f.c.NewLabel()
	f.expr(ex.Left)
	f.c.Pop()
	if ex.Op == ast.BinAnd {
		f.c.Jump(opIfeq, shortL)
	} else {
		f.c.Jump(opIfne, shortL)
	}
	f.expr(ex.Right)
	f.c.Jump(opGoto, endL)
	f.c.Bind(shortL)
	if ex.Op == ast.BinAnd {
		f.c.Op(opIconst0)
	} else {
		f.c.Op(opIconst1)
	}
	f.c.Push(slotInt)
	f.c.Bind(endL)
}

// emitCompare leaves a boolean int on the stack. Numeric comparisons pick
// the width of the already-bridged operands; reference equality compares
// identity.
func (f *frame) emitCompare(ex *ast.Binary) {
	f.expr(ex.Left)
	f.expr(ex.Right)
	rk := f.c.Pop()
	f.c.Pop()

	trueL := f.c.NewLabel()
	endL := f.c.NewLabel()

	switch rk {
	case slotLong, slotDouble:
		if rk == slotLong {
			f.c.Op(opLcmp)
		} else {
			f.c.Op(opDcmpl)
		}
		var op byte
		switch ex.Op {
		case ast.BinEq:
			op = opIfeq
		case ast.BinNe:
			op = opIfne
		case ast.BinLt:
			op = opIflt
		case ast.BinLe:
			op = opIfle
		case ast.BinGt:
			op = opIfgt
		case ast.BinGe:
			op = opIfge
		}
		f.c.Jump(op, trueL)
	case slotRef:
		if ex.Op == ast.BinEq {
			f.c.Jump(opIfAcmpeq, trueL)
		} else {
			f.c.Jump(opIfAcmpne, trueL)
		}
	default:
		var op byte
		switch ex.Op {
		case ast.BinEq:
			op = opIfIcmpeq
		case ast.BinNe:
			op = opIfIcmpne
		case ast.BinLt:
			op = opIfIcmplt
		case ast.BinLe:
			op = opIfIcmple
		case ast.BinGt:
			op = opIfIcmpgt
		case ast.BinGe:
			op = opIfIcmpge
		}
		f.c.Jump(op, trueL)
	}
	f.c.Op(opIconst0)
	f.c.Push(slotInt)
	f.c.Jump(opGoto, endL)
	f.c.Bind(trueL)
	f.c.Op(opIconst1)
	f.c.Push(slotInt)
	f.c.Bind(endL)
}

func (f *frame) emitIf(ex *ast.If) {
	b := f.e.reg.Builtins()
	result := f.res().TypeOf(ex)
	elseL := f.c.NewLabel()
	endL := f.c.NewLabel()

	f.expr(ex.Cond)
	f.c.Pop()
	f.c.Jump(opIfeq, elseL)

	f.expr(ex.Then)
	if result == b.Unit {
		f.discard(f.res().TypeOf(ex.Then))
	}
	if ex.Else != nil {
		f.c.Jump(opGoto, endL)
		f.c.Bind(elseL)
		f.expr(ex.Else)
		if result == b.Unit {
			f.discard(f.res().TypeOf(ex.Else))
		}
		f.c.Bind(endL)
	} else {
		f.c.Bind(elseL)
	}
}

func (f *frame) emitWhile(ex *ast.While) {
	headL := f.c.NewLabel()
	endL := f.c.NewLabel()
	f.c.Bind(headL)
	f.expr(ex.Cond)
	f.c.Pop()
	f.c.Jump(opIfeq, endL)
	f.expr(ex.Body)
	f.discard(f.res().TypeOf(ex.Body))
	f.c.Jump(opGoto, headL)
	f.c.Bind(endL)
}

func (f *frame) emitAsync(ex *ast.Async) {
	bc := f.e.mod.ByExpr[ex]
	if bc == nil {
		diag.ReportInternal(f.e.r, diag.EmitInternalLowering, ex.Sp,
			"async body has no helper class").Emit()
		return
	}
	f.constructHelper(bc)
	f.c.Op2(opInvstatic, f.cf.Pool.Methodref(rtDeferred, "spawn", descSpawn))
	f.c.Pop()
	f.c.Push(slotRef)
}

func (f *frame) emitWithin(ex *ast.Within) {
	bc := f.e.mod.ByExpr[ex]
	if bc == nil {
		diag.ReportInternal(f.e.r, diag.EmitInternalLowering, ex.Sp,
			"bounded-wait body has no helper class").Emit()
		return
	}
	// the bound is evaluated eagerly in this frame, before the spawn
	f.expr(ex.Millis)
	f.constructHelper(bc)
	f.c.Op2(opInvstatic, f.cf.Pool.Methodref(rtDeferred, "within", descWithin))
	f.c.Pop()
	f.c.Pop()
	f.c.Push(slotRef)
}

func (f *frame) emitAwait(ex *ast.Await) {
	f.expr(ex.Value)
	f.c.Op2(opInvvirtual, f.cf.Pool.Methodref(rtDeferred, "get", descGet))
	// erased object replaces the handle; the planned narrowing follows
}
