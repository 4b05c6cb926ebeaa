// Package types holds canonical type identities for the backend.
//
// A TypeID is stable within one Registry. The Registry is seeded with the
// native types and the well-known host classes once, then extended with
// declared types while units are collected; after collection it is treated
// as read-only by resolution and emission.
package types

// TypeID identifies a canonical type inside a Registry.
type TypeID uint32

// NoTypeID marks an unresolved or invalid type.
const NoTypeID TypeID = 0

func (id TypeID) IsValid() bool { return id != NoTypeID }

// Kind enumerates type categories.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindInt is the 32-bit integer primitive.
	KindInt
	// KindLong is the wide (64-bit) integer primitive.
	KindLong
	// KindDouble is the floating-point primitive.
	KindDouble
	KindBool
	// KindUnit is the empty result type (void on the target).
	KindUnit
	// KindClass covers every reference type: host classes, declared classes,
	// records, sealed sum bases and their variant classes.
	KindClass
	// KindArray is a component-typed array (varargs tail packing).
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindLong:
		return "Long"
	case KindDouble:
		return "Double"
	case KindBool:
		return "Bool"
	case KindUnit:
		return "Unit"
	case KindClass:
		return "class"
	case KindArray:
		return "array"
	}
	return "invalid"
}

// Type is the canonical record behind a TypeID.
type Type struct {
	Kind Kind
	// Qualified is the dotted qualified name for KindClass
	// ("java.lang.String", "demo.Color").
	Qualified string
	// Elem is the component type for KindArray.
	Elem TypeID
}

// IsPrimitive reports whether the type lives unboxed on the operand stack.
func (t Type) IsPrimitive() bool {
	switch t.Kind {
	case KindInt, KindLong, KindDouble, KindBool:
		return true
	}
	return false
}

// IsNumeric reports whether arithmetic applies.
func (t Type) IsNumeric() bool {
	switch t.Kind {
	case KindInt, KindLong, KindDouble:
		return true
	}
	return false
}

// Width is the operand-stack/local-slot width: wide primitives take two
// slots, everything else one. Unit occupies none.
func (t Type) Width() int {
	switch t.Kind {
	case KindLong, KindDouble:
		return 2
	case KindUnit:
		return 0
	}
	return 1
}
