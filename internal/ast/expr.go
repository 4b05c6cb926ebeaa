package ast

import (
	"lumen/internal/source"
)

// Expr is any expression node. The language is expression-oriented: method
// bodies, match arms and block tails are all expressions.
type Expr interface {
	Span() source.Span
	exprNode()
}

// LitKind enumerates literal kinds.
type LitKind uint8

const (
	LitInt LitKind = iota
	LitLong
	LitDouble
	LitBool
	LitString
	LitUnit
)

func (k LitKind) String() string {
	switch k {
	case LitInt:
		return "int"
	case LitLong:
		return "long"
	case LitDouble:
		return "double"
	case LitBool:
		return "bool"
	case LitString:
		return "string"
	case LitUnit:
		return "unit"
	}
	return "invalid"
}

// Lit is a literal. Exactly one of the value fields is meaningful per Kind.
type Lit struct {
	Kind  LitKind
	Int   int64
	Float float64
	Bool  bool
	Str   string
	Sp    source.Span
}

// Ident references a local binding or parameter by name.
type Ident struct {
	Name string
	Sp   source.Span
}

// This references the enclosing receiver.
type This struct {
	Sp source.Span
}

// FieldGet reads a field of a receiver expression.
type FieldGet struct {
	Recv Expr
	Name string
	Sp   source.Span
}

// Call invokes a method. Recv nil means an unqualified call resolved against
// the enclosing type (instance or static) or a variant constructor.
type Call struct {
	Recv Expr
	Name string
	Args []Expr
	Sp   source.Span
}

// New constructs an instance of a class or record type.
type New struct {
	Type TypeExpr
	Args []Expr
	Sp   source.Span
}

// UnOp enumerates unary operators.
type UnOp uint8

const (
	UnNeg UnOp = iota
	UnNot
)

type Unary struct {
	Op      UnOp
	Operand Expr
	Sp      source.Span
}

// BinOp enumerates binary operators.
type BinOp uint8

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinAnd
	BinOr
)

func (op BinOp) String() string {
	switch op {
	case BinAdd:
		return "+"
	case BinSub:
		return "-"
	case BinMul:
		return "*"
	case BinDiv:
		return "/"
	case BinRem:
		return "%"
	case BinEq:
		return "=="
	case BinNe:
		return "!="
	case BinLt:
		return "<"
	case BinLe:
		return "<="
	case BinGt:
		return ">"
	case BinGe:
		return ">="
	case BinAnd:
		return "&&"
	case BinOr:
		return "||"
	}
	return "?"
}

type Binary struct {
	Op    BinOp
	Left  Expr
	Right Expr
	Sp    source.Span
}

// Block is a statement sequence with an optional trailing value expression.
// A nil Value makes the block Unit-typed.
type Block struct {
	Stmts []Stmt
	Value Expr
	Sp    source.Span
}

// If is an expression; a nil Else makes it Unit-typed.
type If struct {
	Cond Expr
	Then Expr
	Else Expr
	Sp   source.Span
}

// While is Unit-typed.
type While struct {
	Cond Expr
	Body Expr
	Sp   source.Span
}

// Match tests a scrutinee against ordered arms.
type Match struct {
	Scrutinee Expr
	Arms      []MatchArm
	Sp        source.Span
}

// MatchArm couples a pattern, an optional boolean guard and a body.
type MatchArm struct {
	Pattern Pattern
	Guard   Expr // nil when absent
	Body    Expr
	Sp      source.Span
}

// Async schedules its body as a deferred computation and evaluates to a
// handle for the body's value.
type Async struct {
	Body Expr
	Sp   source.Span
}

// Within races Body against Millis milliseconds; evaluates to a handle that
// fails with a timeout-kind failure when the bound elapses first.
type Within struct {
	Millis Expr
	Body   Expr
	Sp     source.Span
}

// Await blocks on a deferred handle and yields its value or propagates its
// failure.
type Await struct {
	Value Expr
	Sp    source.Span
}

func (e *Lit) Span() source.Span      { return e.Sp }
func (e *Ident) Span() source.Span    { return e.Sp }
func (e *This) Span() source.Span     { return e.Sp }
func (e *FieldGet) Span() source.Span { return e.Sp }
func (e *Call) Span() source.Span     { return e.Sp }
func (e *New) Span() source.Span      { return e.Sp }
func (e *Unary) Span() source.Span    { return e.Sp }
func (e *Binary) Span() source.Span   { return e.Sp }
func (e *Block) Span() source.Span    { return e.Sp }
func (e *If) Span() source.Span       { return e.Sp }
func (e *While) Span() source.Span    { return e.Sp }
func (e *Match) Span() source.Span    { return e.Sp }
func (e *Async) Span() source.Span    { return e.Sp }
func (e *Within) Span() source.Span   { return e.Sp }
func (e *Await) Span() source.Span    { return e.Sp }

func (*Lit) exprNode()      {}
func (*Ident) exprNode()    {}
func (*This) exprNode()     {}
func (*FieldGet) exprNode() {}
func (*Call) exprNode()     {}
func (*New) exprNode()      {}
func (*Unary) exprNode()    {}
func (*Binary) exprNode()   {}
func (*Block) exprNode()    {}
func (*If) exprNode()       {}
func (*While) exprNode()    {}
func (*Match) exprNode()    {}
func (*Async) exprNode()    {}
func (*Within) exprNode()   {}
func (*Await) exprNode()    {}
