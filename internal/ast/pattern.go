package ast

import (
	"lumen/internal/source"
)

// Pattern is a match-arm pattern.
type Pattern interface {
	Span() source.Span
	patternNode()
}

// PatWildcard matches anything and binds nothing.
type PatWildcard struct {
	Sp source.Span
}

// PatBind matches anything and binds the scrutinee to Name.
type PatBind struct {
	Name string
	Sp   source.Span
}

// PatLit matches a literal by value.
type PatLit struct {
	Lit *Lit
	Sp  source.Span
}

// PatVariant matches one sum-type constructor with positional sub-patterns
// for its payload fields (empty for nullary constructors).
type PatVariant struct {
	Name  string
	Elems []Pattern
	Sp    source.Span
}

func (p *PatWildcard) Span() source.Span { return p.Sp }
func (p *PatBind) Span() source.Span     { return p.Sp }
func (p *PatLit) Span() source.Span      { return p.Sp }
func (p *PatVariant) Span() source.Span  { return p.Sp }

func (*PatWildcard) patternNode() {}
func (*PatBind) patternNode()     {}
func (*PatLit) patternNode()      {}
func (*PatVariant) patternNode()  {}
