// Package build orchestrates unit compilation: decoding serialized AST
// blobs from the front end, running one unit through the full pipeline, and
// fanning out across units with a disk cache for unchanged blobs.
package build

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"lumen/internal/ast"
	"lumen/internal/source"
)

// Wire node kinds. The front end is a separate tool; this enumeration is the
// contract between it and the backend and only grows at the end.
const (
	wireLit uint8 = iota
	wireIdent
	wireThis
	wireFieldGet
	wireCall
	wireNew
	wireUnary
	wireBinary
	wireBlock
	wireIf
	wireWhile
	wireMatch
	wireAsync
	wireWithin
	wireAwait
)

const (
	wireStmtLet uint8 = iota
	wireStmtAssign
	wireStmtExpr
)

const (
	wirePatWildcard uint8 = iota
	wirePatBind
	wirePatLit
	wirePatVariant
)

type blobSpan struct {
	File  uint32
	Start uint32
	End   uint32
}

type blobType struct {
	Name string
	Sp   blobSpan
}

type blobUnit struct {
	Package string
	Imports []blobImport
	Decls   []*blobDecl
	// Files carries the program text spans point into, ordered by FileID.
	// Optional: without it diagnostics render without source context.
	Files []blobFile
	Sp    blobSpan
}

type blobFile struct {
	Path    string
	Content []byte
}

type blobImport struct {
	Path     string
	Wildcard bool
	Sp       blobSpan
}

type blobDecl struct {
	Kind     uint8
	Name     string
	Supers   []blobType
	Fields   []blobField
	Funs     []*blobFun
	Variants []blobVariant
	Sp       blobSpan
}

type blobField struct {
	Name string
	Type blobType
	Sp   blobSpan
}

type blobVariant struct {
	Name   string
	Fields []blobField
	Sp     blobSpan
}

type blobParam struct {
	Name     string
	Type     blobType
	Variadic bool
	Sp       blobSpan
}

type blobFun struct {
	Name   string
	Params []blobParam
	Return blobType
	Body   *blobExpr
	Static bool
	Async  bool
	Sp     blobSpan
}

// blobExpr is the tagged union for expressions. Which fields are meaningful
// depends on Kind; everything else stays at its zero value on the wire.
type blobExpr struct {
	Kind    uint8
	LitKind uint8
	Int     int64
	Float   float64
	Bool    bool
	Str     string
	Name    string
	Op      uint8
	Type    blobType
	Recv    *blobExpr
	Left    *blobExpr
	Right   *blobExpr
	Cond    *blobExpr
	Then    *blobExpr
	Else    *blobExpr
	Body    *blobExpr
	Value   *blobExpr
	Millis  *blobExpr
	Args    []*blobExpr
	Stmts   []*blobStmt
	Arms    []*blobArm
	Sp      blobSpan
}

type blobStmt struct {
	Kind    uint8
	Name    string
	Mutable bool
	Type    blobType
	E       *blobExpr
	Sp      blobSpan
}

type blobArm struct {
	Pattern *blobPat
	Guard   *blobExpr
	Body    *blobExpr
	Sp      blobSpan
}

type blobPat struct {
	Kind  uint8
	Name  string
	Lit   *blobExpr
	Elems []*blobPat
	Sp    blobSpan
}

// DecodeUnit turns a front-end AST blob into the in-memory AST. Structural
// garbage (unknown kinds, missing required children) is an error, not a
// diagnostic: a malformed blob means a broken producer, not a user mistake.
func DecodeUnit(data []byte) (*ast.Unit, error) {
	unit, _, err := DecodeUnitSources(data)
	return unit, err
}

// DecodeUnitSources also materializes the blob's embedded source files so
// diagnostics can show line context. The file set is empty when the producer
// stripped sources.
func DecodeUnitSources(data []byte) (*ast.Unit, *source.FileSet, error) {
	var b blobUnit
	if err := msgpack.Unmarshal(data, &b); err != nil {
		return nil, nil, fmt.Errorf("decode unit blob: %w", err)
	}
	unit, err := unitFromBlob(&b)
	if err != nil {
		return nil, nil, err
	}
	fs := source.NewFileSet()
	for _, f := range b.Files {
		fs.Add(f.Path, f.Content)
	}
	return unit, fs, nil
}

// EncodeUnit serializes an AST unit into the wire form DecodeUnit accepts.
// The production front end has its own encoder; this one backs tests and
// tooling that fabricate units in-process.
func EncodeUnit(u *ast.Unit) ([]byte, error) {
	b, err := unitToBlob(u)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(b)
}

func spanFromBlob(s blobSpan) source.Span {
	return source.Span{File: source.FileID(s.File), Start: s.Start, End: s.End}
}

func spanToBlob(s source.Span) blobSpan {
	return blobSpan{File: uint32(s.File), Start: s.Start, End: s.End}
}

func typeFromBlob(t blobType) ast.TypeExpr {
	return ast.TypeExpr{Name: t.Name, Sp: spanFromBlob(t.Sp)}
}

func typeToBlob(t ast.TypeExpr) blobType {
	return blobType{Name: t.Name, Sp: spanToBlob(t.Sp)}
}

func unitFromBlob(b *blobUnit) (*ast.Unit, error) {
	u := &ast.Unit{Package: b.Package, Sp: spanFromBlob(b.Sp)}
	for _, imp := range b.Imports {
		u.Imports = append(u.Imports, ast.Import{Path: imp.Path, Wildcard: imp.Wildcard, Sp: spanFromBlob(imp.Sp)})
	}
	for _, d := range b.Decls {
		decl, err := declFromBlob(d)
		if err != nil {
			return nil, err
		}
		u.Decls = append(u.Decls, decl)
	}
	return u, nil
}

func declFromBlob(b *blobDecl) (*ast.TypeDecl, error) {
	if b == nil {
		return nil, fmt.Errorf("nil decl in unit blob")
	}
	if b.Kind > uint8(ast.DeclTrait) {
		return nil, fmt.Errorf("decl %q: unknown kind %d", b.Name, b.Kind)
	}
	d := &ast.TypeDecl{Kind: ast.DeclKind(b.Kind), Name: b.Name, Sp: spanFromBlob(b.Sp)}
	for _, s := range b.Supers {
		d.Supers = append(d.Supers, typeFromBlob(s))
	}
	for _, f := range b.Fields {
		d.Fields = append(d.Fields, fieldFromBlob(f))
	}
	for _, v := range b.Variants {
		nv := ast.Variant{Name: v.Name, Sp: spanFromBlob(v.Sp)}
		for _, f := range v.Fields {
			nv.Fields = append(nv.Fields, fieldFromBlob(f))
		}
		d.Variants = append(d.Variants, nv)
	}
	for _, fn := range b.Funs {
		nf, err := funFromBlob(fn)
		if err != nil {
			return nil, fmt.Errorf("decl %q: %w", b.Name, err)
		}
		d.Funs = append(d.Funs, nf)
	}
	return d, nil
}

func fieldFromBlob(f blobField) ast.Field {
	return ast.Field{Name: f.Name, Type: typeFromBlob(f.Type), Sp: spanFromBlob(f.Sp)}
}

func funFromBlob(b *blobFun) (*ast.Fun, error) {
	if b == nil {
		return nil, fmt.Errorf("nil fun")
	}
	f := &ast.Fun{
		Name:   b.Name,
		Return: typeFromBlob(b.Return),
		Static: b.Static,
		Async:  b.Async,
		Sp:     spanFromBlob(b.Sp),
	}
	for _, p := range b.Params {
		f.Params = append(f.Params, ast.Param{
			Name: p.Name, Type: typeFromBlob(p.Type), Variadic: p.Variadic, Sp: spanFromBlob(p.Sp),
		})
	}
	if b.Body != nil {
		body, err := exprFromBlob(b.Body)
		if err != nil {
			return nil, fmt.Errorf("fun %q: %w", b.Name, err)
		}
		f.Body = body
	}
	return f, nil
}

func exprFromBlob(b *blobExpr) (ast.Expr, error) {
	if b == nil {
		return nil, fmt.Errorf("nil expr node")
	}
	sp := spanFromBlob(b.Sp)
	switch b.Kind {
	case wireLit:
		if b.LitKind > uint8(ast.LitUnit) {
			return nil, fmt.Errorf("unknown literal kind %d", b.LitKind)
		}
		return &ast.Lit{
			Kind: ast.LitKind(b.LitKind), Int: b.Int, Float: b.Float, Bool: b.Bool, Str: b.Str, Sp: sp,
		}, nil
	case wireIdent:
		return &ast.Ident{Name: b.Name, Sp: sp}, nil
	case wireThis:
		return &ast.This{Sp: sp}, nil
	case wireFieldGet:
		recv, err := exprFromBlob(b.Recv)
		if err != nil {
			return nil, err
		}
		return &ast.FieldGet{Recv: recv, Name: b.Name, Sp: sp}, nil
	case wireCall:
		call := &ast.Call{Name: b.Name, Sp: sp}
		if b.Recv != nil {
			recv, err := exprFromBlob(b.Recv)
			if err != nil {
				return nil, err
			}
			call.Recv = recv
		}
		for _, a := range b.Args {
			arg, err := exprFromBlob(a)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
		}
		return call, nil
	case wireNew:
		n := &ast.New{Type: typeFromBlob(b.Type), Sp: sp}
		for _, a := range b.Args {
			arg, err := exprFromBlob(a)
			if err != nil {
				return nil, err
			}
			n.Args = append(n.Args, arg)
		}
		return n, nil
	case wireUnary:
		if b.Op > uint8(ast.UnNot) {
			return nil, fmt.Errorf("unknown unary op %d", b.Op)
		}
		operand, err := exprFromBlob(b.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: ast.UnOp(b.Op), Operand: operand, Sp: sp}, nil
	case wireBinary:
		if b.Op > uint8(ast.BinOr) {
			return nil, fmt.Errorf("unknown binary op %d", b.Op)
		}
		left, err := exprFromBlob(b.Left)
		if err != nil {
			return nil, err
		}
		right, err := exprFromBlob(b.Right)
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Op: ast.BinOp(b.Op), Left: left, Right: right, Sp: sp}, nil
	case wireBlock:
		blk := &ast.Block{Sp: sp}
		for _, s := range b.Stmts {
			st, err := stmtFromBlob(s)
			if err != nil {
				return nil, err
			}
			blk.Stmts = append(blk.Stmts, st)
		}
		if b.Value != nil {
			v, err := exprFromBlob(b.Value)
			if err != nil {
				return nil, err
			}
			blk.Value = v
		}
		return blk, nil
	case wireIf:
		cond, err := exprFromBlob(b.Cond)
		if err != nil {
			return nil, err
		}
		then, err := exprFromBlob(b.Then)
		if err != nil {
			return nil, err
		}
		n := &ast.If{Cond: cond, Then: then, Sp: sp}
		if b.Else != nil {
			els, err := exprFromBlob(b.Else)
			if err != nil {
				return nil, err
			}
			n.Else = els
		}
		return n, nil
	case wireWhile:
		cond, err := exprFromBlob(b.Cond)
		if err != nil {
			return nil, err
		}
		body, err := exprFromBlob(b.Body)
		if err != nil {
			return nil, err
		}
		return &ast.While{Cond: cond, Body: body, Sp: sp}, nil
	case wireMatch:
		scrut, err := exprFromBlob(b.Value)
		if err != nil {
			return nil, err
		}
		m := &ast.Match{Scrutinee: scrut, Sp: sp}
		for _, a := range b.Arms {
			arm, err := armFromBlob(a)
			if err != nil {
				return nil, err
			}
			m.Arms = append(m.Arms, arm)
		}
		return m, nil
	case wireAsync:
		body, err := exprFromBlob(b.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Async{Body: body, Sp: sp}, nil
	case wireWithin:
		millis, err := exprFromBlob(b.Millis)
		if err != nil {
			return nil, err
		}
		body, err := exprFromBlob(b.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Within{Millis: millis, Body: body, Sp: sp}, nil
	case wireAwait:
		v, err := exprFromBlob(b.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Await{Value: v, Sp: sp}, nil
	}
	return nil, fmt.Errorf("unknown expr kind %d", b.Kind)
}

func stmtFromBlob(b *blobStmt) (ast.Stmt, error) {
	if b == nil {
		return nil, fmt.Errorf("nil stmt node")
	}
	sp := spanFromBlob(b.Sp)
	switch b.Kind {
	case wireStmtLet:
		init, err := exprFromBlob(b.E)
		if err != nil {
			return nil, err
		}
		return &ast.Let{Name: b.Name, Mutable: b.Mutable, Type: typeFromBlob(b.Type), Init: init, Sp: sp}, nil
	case wireStmtAssign:
		v, err := exprFromBlob(b.E)
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Name: b.Name, Value: v, Sp: sp}, nil
	case wireStmtExpr:
		e, err := exprFromBlob(b.E)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{E: e, Sp: sp}, nil
	}
	return nil, fmt.Errorf("unknown stmt kind %d", b.Kind)
}

func armFromBlob(b *blobArm) (ast.MatchArm, error) {
	if b == nil {
		return ast.MatchArm{}, fmt.Errorf("nil match arm")
	}
	pat, err := patFromBlob(b.Pattern)
	if err != nil {
		return ast.MatchArm{}, err
	}
	body, err := exprFromBlob(b.Body)
	if err != nil {
		return ast.MatchArm{}, err
	}
	arm := ast.MatchArm{Pattern: pat, Body: body, Sp: spanFromBlob(b.Sp)}
	if b.Guard != nil {
		guard, err := exprFromBlob(b.Guard)
		if err != nil {
			return ast.MatchArm{}, err
		}
		arm.Guard = guard
	}
	return arm, nil
}

func patFromBlob(b *blobPat) (ast.Pattern, error) {
	if b == nil {
		return nil, fmt.Errorf("nil pattern node")
	}
	sp := spanFromBlob(b.Sp)
	switch b.Kind {
	case wirePatWildcard:
		return &ast.PatWildcard{Sp: sp}, nil
	case wirePatBind:
		return &ast.PatBind{Name: b.Name, Sp: sp}, nil
	case wirePatLit:
		lit, err := exprFromBlob(b.Lit)
		if err != nil {
			return nil, err
		}
		l, ok := lit.(*ast.Lit)
		if !ok {
			return nil, fmt.Errorf("literal pattern carries a non-literal node")
		}
		return &ast.PatLit{Lit: l, Sp: sp}, nil
	case wirePatVariant:
		p := &ast.PatVariant{Name: b.Name, Sp: sp}
		for _, e := range b.Elems {
			elem, err := patFromBlob(e)
			if err != nil {
				return nil, err
			}
			p.Elems = append(p.Elems, elem)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown pattern kind %d", b.Kind)
}
