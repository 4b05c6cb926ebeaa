// Package sema resolves names, types and overloads for one unit.
//
// The pipeline per unit: Collect declared type units (registering their
// canonical types), then Check every method body. Checking records its
// findings in a Result that the lowering and emission phases consume;
// after Check returns, the Result is read-only.
package sema

import (
	"lumen/internal/ast"
	"lumen/internal/source"
	"lumen/internal/symbols"
	"lumen/internal/types"
)

// Declared is one declared type unit, immutable after collection.
type Declared struct {
	Decl      *ast.TypeDecl
	Type      types.TypeID
	Qualified string
	Super     types.TypeID // universal base unless declared otherwise
	Fields    []FieldInfo
	Methods   []*Method
	Variants  []*VariantCtor // sum types only, declaration order
}

// FieldInfo is a resolved field of a class or record.
type FieldInfo struct {
	Name  string
	Type  types.TypeID
	Index int
	Sp    source.Span
}

// Method is a resolved method signature bound to its declaration.
type Method struct {
	Name     string
	Owner    *Declared
	Fun      *ast.Fun
	Params   []types.TypeID
	Variadic bool
	Result   types.TypeID
	// Elem is the deferred element type for async methods: the declared
	// return type names the element, the caller-visible result is a handle.
	Elem   types.TypeID
	Static bool
	Async  bool
}

// VariantCtor is a resolved sum-type constructor. Nullary constructors are
// lowered to singletons, payload constructors to factory classes; that
// decision lives in the lowering phase, sema only resolves the signature.
type VariantCtor struct {
	Name   string
	Owner  *Declared
	Index  int
	Fields []FieldInfo
	Type   types.TypeID // the variant's own class type
	Sp     source.Span
}

func (v *VariantCtor) Nullary() bool { return len(v.Fields) == 0 }

// LocalKind distinguishes parameter bindings from let bindings.
type LocalKind uint8

const (
	LocalParam LocalKind = iota
	LocalLet
)

// Local is the canonical identity of one local binding. Every identifier
// use resolves to the same *Local, which is what capture analysis and slot
// assignment key on.
type Local struct {
	Name    string
	Kind    LocalKind
	Type    types.TypeID
	Mutable bool
	// DeferredElem is the element type when the binding holds a deferred
	// handle produced by an async/bounded-wait block, NoTypeID otherwise.
	DeferredElem types.TypeID
	Sp           source.Span
}

// RefKind says what an identifier expression resolved to.
type RefKind uint8

const (
	RefLocal RefKind = iota
	RefField           // implicit receiver field
	RefVariant         // nullary variant used as a value
)

// IdentRef is the resolution of one identifier expression.
type IdentRef struct {
	Kind    RefKind
	Local   *Local
	Field   *FieldInfo
	Variant *VariantCtor
	Owner   *Declared // for RefField
}

// ConvKind enumerates per-argument conversions in a call plan.
type ConvKind uint8

const (
	ConvNone ConvKind = iota
	ConvWiden
	ConvBox
	ConvUnbox
	ConvPackTail
)

func (c ConvKind) String() string {
	switch c {
	case ConvNone:
		return "none"
	case ConvWiden:
		return "widen"
	case ConvBox:
		return "box"
	case ConvUnbox:
		return "unbox"
	case ConvPackTail:
		return "pack-tail"
	}
	return "invalid"
}

// Phase is one applicability stage of overload resolution.
type Phase uint8

const (
	PhaseExact Phase = iota + 1
	PhaseWidening
	PhaseBoxing
	PhaseVarargs
)

func (p Phase) String() string {
	switch p {
	case PhaseExact:
		return "exact"
	case PhaseWidening:
		return "widening"
	case PhaseBoxing:
		return "boxing"
	case PhaseVarargs:
		return "variable-arity"
	}
	return "invalid"
}

// ResolvedCall is the cached outcome of one call site.
type ResolvedCall struct {
	Method  *Method      // nil when Ctor or Variant is set
	Ctor    *Declared    // constructor call (New)
	Variant *VariantCtor // variant construction
	Phase   Phase
	Plan    []ConvKind // one entry per source argument
	// PackFrom is the argument index where tail packing starts
	// (len(Plan) when no packing happened).
	PackFrom int
}

// Result carries everything later phases need about one checked unit.
type Result struct {
	Unit  *ast.Unit
	Table *symbols.Table
	Reg   *types.Registry

	Decls  []*Declared
	ByType map[types.TypeID]*Declared

	ExprTypes map[ast.Expr]types.TypeID
	// DeferredElem tracks the statically-known element type of deferred
	// handles per expression, where inference could see the producing block.
	DeferredElem map[ast.Expr]types.TypeID

	Idents map[*ast.Ident]*IdentRef
	Lets   map[*ast.Let]*Local
	Params map[*ast.Param]*Local
	// PatBinds covers binding patterns and variant payload bindings.
	PatBinds map[*ast.PatBind]*Local

	Calls map[*ast.Call]*ResolvedCall
	News  map[*ast.New]*ResolvedCall

	// Assigns records the binding each assignment statement writes.
	Assigns map[*ast.Assign]*Local
}

func newResult(unit *ast.Unit, table *symbols.Table, reg *types.Registry) *Result {
	return &Result{
		Unit:         unit,
		Table:        table,
		Reg:          reg,
		ByType:       make(map[types.TypeID]*Declared),
		ExprTypes:    make(map[ast.Expr]types.TypeID),
		DeferredElem: make(map[ast.Expr]types.TypeID),
		Idents:       make(map[*ast.Ident]*IdentRef),
		Lets:         make(map[*ast.Let]*Local),
		Params:       make(map[*ast.Param]*Local),
		PatBinds:     make(map[*ast.PatBind]*Local),
		Calls:        make(map[*ast.Call]*ResolvedCall),
		News:         make(map[*ast.New]*ResolvedCall),
		Assigns:      make(map[*ast.Assign]*Local),
	}
}

// TypeOf returns the checked type of an expression.
func (res *Result) TypeOf(e ast.Expr) types.TypeID {
	return res.ExprTypes[e]
}

// DeclaredFor returns the declared unit backing a type, if any.
func (res *Result) DeclaredFor(id types.TypeID) *Declared {
	return res.ByType[id]
}
