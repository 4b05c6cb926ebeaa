// Package ast defines the input tree handed to the backend by the front end.
//
// The tree arrives structurally pre-validated: no duplicate field or
// parameter names inside one declaration, all required children present,
// correct arity on operators. Type correctness is NOT guaranteed; the
// backend owns it. Nodes are immutable by convention after decoding.
package ast

import (
	"lumen/internal/source"
)

// Unit is one compilation unit: a package clause, imports and declarations.
type Unit struct {
	Package string // dotted package path, may be empty for the default package
	Imports []Import
	Decls   []*TypeDecl
	Sp      source.Span
}

// Import brings a type (or, with Wildcard, a whole package) into scope.
type Import struct {
	Path     string // dotted: "lumen.collections.List" or "lumen.collections"
	Wildcard bool
	Sp       source.Span
}

// DeclKind enumerates declared type unit kinds.
type DeclKind uint8

const (
	DeclClass DeclKind = iota
	DeclRecord
	DeclSum
	DeclTrait
)

func (k DeclKind) String() string {
	switch k {
	case DeclClass:
		return "class"
	case DeclRecord:
		return "record"
	case DeclSum:
		return "sum"
	case DeclTrait:
		return "trait"
	}
	return "invalid"
}

// TypeDecl is one declared type unit: class, record, sum type or trait.
type TypeDecl struct {
	Kind     DeclKind
	Name     string
	Supers   []TypeExpr // declared supertypes (host interop)
	Fields   []Field    // classes and records
	Funs     []*Fun
	Variants []Variant // sum types only
	Sp       source.Span
}

type Field struct {
	Name string
	Type TypeExpr
	Sp   source.Span
}

// Variant is one constructor of a sum type. Empty Fields means nullary.
type Variant struct {
	Name   string
	Fields []Field
	Sp     source.Span
}

type Param struct {
	Name     string
	Type     TypeExpr
	Variadic bool // only legal on the last parameter
	Sp       source.Span
}

// Fun is a method of a declared type. Body is nil for trait members.
type Fun struct {
	Name   string
	Params []Param
	Return TypeExpr // zero Name means Unit
	Body   Expr
	Static bool
	Async  bool // body is scheduled as a deferred computation
	Sp     source.Span
}

// TypeExpr references a type by short or dotted name.
type TypeExpr struct {
	Name string
	Sp   source.Span
}

func (t TypeExpr) IsZero() bool { return t.Name == "" }
