package types

import (
	"fmt"
	"strings"
)

// Builtins exposes the TypeIDs every phase needs by name.
type Builtins struct {
	Int    TypeID
	Long   TypeID
	Double TypeID
	Bool   TypeID
	Unit   TypeID

	Object    TypeID // java.lang.Object
	String    TypeID // java.lang.String
	BoxedInt  TypeID // java.lang.Integer
	BoxedLong TypeID // java.lang.Long
	BoxedDbl  TypeID // java.lang.Double
	BoxedBool TypeID // java.lang.Boolean

	Deferred TypeID // lumen.rt.Deferred
	Block    TypeID // lumen.rt.Block
	Cell     TypeID // lumen.rt.Cell
}

// Registry interns types and carries the native/host tiers plus the declared
// subtype relation. Seeded once; read-only after unit collection.
type Registry struct {
	byID     []Type
	classIdx map[string]TypeID
	arrayIdx map[TypeID]TypeID
	super    map[TypeID]TypeID

	builtins Builtins
	natives  map[string]TypeID // native tier: short name -> type
	host     map[string]TypeID // implicit host namespace: short name -> type
}

// HostNamespace is the implicit namespace consulted as the lowest resolution
// tier, mirroring how the target loader treats its core package.
const HostNamespace = "java.lang"

// hostCore lists the well-known host classes available without any import.
var hostCore = []string{
	"Object", "String", "Integer", "Long", "Double", "Boolean",
	"CharSequence", "Comparable", "Exception", "RuntimeException", "Throwable",
}

func NewRegistry() *Registry {
	r := &Registry{
		classIdx: make(map[string]TypeID),
		arrayIdx: make(map[TypeID]TypeID),
		super:    make(map[TypeID]TypeID),
		natives:  make(map[string]TypeID),
		host:     make(map[string]TypeID),
	}
	// ID 0 зарезервирован под NoTypeID
	r.byID = append(r.byID, Type{Kind: KindInvalid})

	b := &r.builtins
	b.Int = r.addPrimitive(KindInt)
	b.Long = r.addPrimitive(KindLong)
	b.Double = r.addPrimitive(KindDouble)
	b.Bool = r.addPrimitive(KindBool)
	b.Unit = r.addPrimitive(KindUnit)

	for _, name := range hostCore {
		id := r.RegisterClass(HostNamespace + "." + name)
		r.host[name] = id
	}
	b.Object = r.host["Object"]
	b.String = r.host["String"]
	b.BoxedInt = r.host["Integer"]
	b.BoxedLong = r.host["Long"]
	b.BoxedDbl = r.host["Double"]
	b.BoxedBool = r.host["Boolean"]

	b.Deferred = r.RegisterClass("lumen.rt.Deferred")
	b.Block = r.RegisterClass("lumen.rt.Block")
	b.Cell = r.RegisterClass("lumen.rt.Cell")

	// Native tier: the names that win over every import.
	r.natives["Int"] = b.Int
	r.natives["Long"] = b.Long
	r.natives["Double"] = b.Double
	r.natives["Bool"] = b.Bool
	r.natives["Unit"] = b.Unit
	r.natives["String"] = b.String
	r.natives["Deferred"] = b.Deferred
	return r
}

func (r *Registry) addPrimitive(k Kind) TypeID {
	id := TypeID(len(r.byID))
	r.byID = append(r.byID, Type{Kind: k})
	return id
}

// Builtins returns the well-known type IDs.
func (r *Registry) Builtins() Builtins { return r.builtins }

// Get returns the canonical record for id.
func (r *Registry) Get(id TypeID) Type {
	if int(id) >= len(r.byID) {
		return Type{Kind: KindInvalid}
	}
	return r.byID[id]
}

// RegisterClass interns a reference type by dotted qualified name.
func (r *Registry) RegisterClass(qualified string) TypeID {
	if id, ok := r.classIdx[qualified]; ok {
		return id
	}
	id := TypeID(len(r.byID))
	r.byID = append(r.byID, Type{Kind: KindClass, Qualified: qualified})
	r.classIdx[qualified] = id
	return id
}

// LookupClass returns an already-interned class by qualified name.
func (r *Registry) LookupClass(qualified string) (TypeID, bool) {
	id, ok := r.classIdx[qualified]
	return id, ok
}

// RegisterArray interns the array type with the given component.
func (r *Registry) RegisterArray(elem TypeID) TypeID {
	if id, ok := r.arrayIdx[elem]; ok {
		return id
	}
	id := TypeID(len(r.byID))
	r.byID = append(r.byID, Type{Kind: KindArray, Elem: elem})
	r.arrayIdx[elem] = id
	return id
}

// Native resolves a name in the native tier.
func (r *Registry) Native(name string) (TypeID, bool) {
	id, ok := r.natives[name]
	return id, ok
}

// Host resolves a name in the implicit host namespace tier.
func (r *Registry) Host(name string) (TypeID, bool) {
	id, ok := r.host[name]
	return id, ok
}

// SetSuper records a declared subtype edge (variant -> sum base,
// class -> declared supertype).
func (r *Registry) SetSuper(child, parent TypeID) {
	r.super[child] = parent
}

// Super returns the recorded supertype, or the universal base for reference
// types without an explicit one.
func (r *Registry) Super(id TypeID) (TypeID, bool) {
	if p, ok := r.super[id]; ok {
		return p, true
	}
	t := r.Get(id)
	if t.Kind == KindClass && id != r.builtins.Object {
		return r.builtins.Object, true
	}
	return NoTypeID, false
}

// IsSubtype reports whether `sub` is `sup` or one of its declared subtypes.
// Primitives are only subtypes of themselves.
func (r *Registry) IsSubtype(sub, sup TypeID) bool {
	if sub == sup {
		return true
	}
	if !r.Get(sub).IsPrimitive() && sup == r.builtins.Object && r.Get(sub).Kind == KindClass {
		return true
	}
	for cur := sub; ; {
		parent, ok := r.super[cur]
		if !ok {
			return false
		}
		if parent == sup {
			return true
		}
		cur = parent
	}
}

// CanWiden reports whether a primitive widening conversion exists.
func (r *Registry) CanWiden(from, to TypeID) bool {
	b := r.builtins
	switch from {
	case b.Int:
		return to == b.Long || to == b.Double
	case b.Long:
		return to == b.Double
	}
	return false
}

// Boxed returns the box class for a primitive, if any.
func (r *Registry) Boxed(prim TypeID) (TypeID, bool) {
	b := r.builtins
	switch prim {
	case b.Int:
		return b.BoxedInt, true
	case b.Long:
		return b.BoxedLong, true
	case b.Double:
		return b.BoxedDbl, true
	case b.Bool:
		return b.BoxedBool, true
	}
	return NoTypeID, false
}

// Unboxed returns the primitive behind a box class, if any.
func (r *Registry) Unboxed(boxed TypeID) (TypeID, bool) {
	b := r.builtins
	switch boxed {
	case b.BoxedInt:
		return b.Int, true
	case b.BoxedLong:
		return b.Long, true
	case b.BoxedDbl:
		return b.Double, true
	case b.BoxedBool:
		return b.Bool, true
	}
	return NoTypeID, false
}

// String renders a type for diagnostics.
func (r *Registry) String(id TypeID) string {
	t := r.Get(id)
	switch t.Kind {
	case KindClass:
		return t.Qualified
	case KindArray:
		return r.String(t.Elem) + "[]"
	default:
		return t.Kind.String()
	}
}

// InternalName returns the loader-facing name for a class: the qualified
// path with dots substituted by the path separator.
func (r *Registry) InternalName(id TypeID) string {
	t := r.Get(id)
	if t.Kind != KindClass {
		panic(fmt.Errorf("internal name of non-class type %s", r.String(id)))
	}
	return strings.ReplaceAll(t.Qualified, ".", "/")
}

// Descriptor returns the target binary descriptor for a type.
func (r *Registry) Descriptor(id TypeID) string {
	t := r.Get(id)
	switch t.Kind {
	case KindInt:
		return "I"
	case KindLong:
		return "J"
	case KindDouble:
		return "D"
	case KindBool:
		return "Z"
	case KindUnit:
		return "V"
	case KindClass:
		return "L" + r.InternalName(id) + ";"
	case KindArray:
		return "[" + r.Descriptor(t.Elem)
	}
	panic(fmt.Errorf("descriptor of invalid type %d", id))
}

// MethodDescriptor assembles a target method descriptor from parameter and
// result types.
func (r *Registry) MethodDescriptor(params []TypeID, result TypeID) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		sb.WriteString(r.Descriptor(p))
	}
	sb.WriteByte(')')
	sb.WriteString(r.Descriptor(result))
	return sb.String()
}
