package ast

import (
	"lumen/internal/source"
)

// Stmt is a statement inside a Block.
type Stmt interface {
	Span() source.Span
	stmtNode()
}

// Let introduces a local binding. Bindings are immutable unless Mutable.
type Let struct {
	Name    string
	Mutable bool
	Type    TypeExpr // zero value means "infer from Init"
	Init    Expr
	Sp      source.Span
}

// Assign mutates a Mutable local binding.
type Assign struct {
	Name  string
	Value Expr
	Sp    source.Span
}

// ExprStmt evaluates an expression for effect and discards its value.
type ExprStmt struct {
	E  Expr
	Sp source.Span
}

func (s *Let) Span() source.Span      { return s.Sp }
func (s *Assign) Span() source.Span   { return s.Sp }
func (s *ExprStmt) Span() source.Span { return s.Sp }

func (*Let) stmtNode()      {}
func (*Assign) stmtNode()   {}
func (*ExprStmt) stmtNode() {}
