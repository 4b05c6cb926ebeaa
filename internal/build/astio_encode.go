package build

import (
	"fmt"

	"lumen/internal/ast"
)

func unitToBlob(u *ast.Unit) (*blobUnit, error) {
	b := &blobUnit{Package: u.Package, Sp: spanToBlob(u.Sp)}
	for _, imp := range u.Imports {
		b.Imports = append(b.Imports, blobImport{Path: imp.Path, Wildcard: imp.Wildcard, Sp: spanToBlob(imp.Sp)})
	}
	for _, d := range u.Decls {
		decl, err := declToBlob(d)
		if err != nil {
			return nil, err
		}
		b.Decls = append(b.Decls, decl)
	}
	return b, nil
}

func declToBlob(d *ast.TypeDecl) (*blobDecl, error) {
	b := &blobDecl{Kind: uint8(d.Kind), Name: d.Name, Sp: spanToBlob(d.Sp)}
	for _, s := range d.Supers {
		b.Supers = append(b.Supers, typeToBlob(s))
	}
	for _, f := range d.Fields {
		b.Fields = append(b.Fields, fieldToBlob(f))
	}
	for _, v := range d.Variants {
		nv := blobVariant{Name: v.Name, Sp: spanToBlob(v.Sp)}
		for _, f := range v.Fields {
			nv.Fields = append(nv.Fields, fieldToBlob(f))
		}
		b.Variants = append(b.Variants, nv)
	}
	for _, fn := range d.Funs {
		nf, err := funToBlob(fn)
		if err != nil {
			return nil, fmt.Errorf("decl %q: %w", d.Name, err)
		}
		b.Funs = append(b.Funs, nf)
	}
	return b, nil
}

func fieldToBlob(f ast.Field) blobField {
	return blobField{Name: f.Name, Type: typeToBlob(f.Type), Sp: spanToBlob(f.Sp)}
}

func funToBlob(f *ast.Fun) (*blobFun, error) {
	b := &blobFun{
		Name:   f.Name,
		Return: typeToBlob(f.Return),
		Static: f.Static,
		Async:  f.Async,
		Sp:     spanToBlob(f.Sp),
	}
	for _, p := range f.Params {
		b.Params = append(b.Params, blobParam{
			Name: p.Name, Type: typeToBlob(p.Type), Variadic: p.Variadic, Sp: spanToBlob(p.Sp),
		})
	}
	if f.Body != nil {
		body, err := exprToBlob(f.Body)
		if err != nil {
			return nil, fmt.Errorf("fun %q: %w", f.Name, err)
		}
		b.Body = body
	}
	return b, nil
}

func exprToBlob(e ast.Expr) (*blobExpr, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expr")
	}
	b := &blobExpr{Sp: spanToBlob(e.Span())}
	switch n := e.(type) {
	case *ast.Lit:
		b.Kind = wireLit
		b.LitKind = uint8(n.Kind)
		b.Int, b.Float, b.Bool, b.Str = n.Int, n.Float, n.Bool, n.Str
	case *ast.Ident:
		b.Kind = wireIdent
		b.Name = n.Name
	case *ast.This:
		b.Kind = wireThis
	case *ast.FieldGet:
		b.Kind = wireFieldGet
		b.Name = n.Name
		recv, err := exprToBlob(n.Recv)
		if err != nil {
			return nil, err
		}
		b.Recv = recv
	case *ast.Call:
		b.Kind = wireCall
		b.Name = n.Name
		if n.Recv != nil {
			recv, err := exprToBlob(n.Recv)
			if err != nil {
				return nil, err
			}
			b.Recv = recv
		}
		for _, a := range n.Args {
			arg, err := exprToBlob(a)
			if err != nil {
				return nil, err
			}
			b.Args = append(b.Args, arg)
		}
	case *ast.New:
		b.Kind = wireNew
		b.Type = typeToBlob(n.Type)
		for _, a := range n.Args {
			arg, err := exprToBlob(a)
			if err != nil {
				return nil, err
			}
			b.Args = append(b.Args, arg)
		}
	case *ast.Unary:
		b.Kind = wireUnary
		b.Op = uint8(n.Op)
		operand, err := exprToBlob(n.Operand)
		if err != nil {
			return nil, err
		}
		b.Value = operand
	case *ast.Binary:
		b.Kind = wireBinary
		b.Op = uint8(n.Op)
		left, err := exprToBlob(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := exprToBlob(n.Right)
		if err != nil {
			return nil, err
		}
		b.Left, b.Right = left, right
	case *ast.Block:
		b.Kind = wireBlock
		for _, s := range n.Stmts {
			st, err := stmtToBlob(s)
			if err != nil {
				return nil, err
			}
			b.Stmts = append(b.Stmts, st)
		}
		if n.Value != nil {
			v, err := exprToBlob(n.Value)
			if err != nil {
				return nil, err
			}
			b.Value = v
		}
	case *ast.If:
		b.Kind = wireIf
		cond, err := exprToBlob(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := exprToBlob(n.Then)
		if err != nil {
			return nil, err
		}
		b.Cond, b.Then = cond, then
		if n.Else != nil {
			els, err := exprToBlob(n.Else)
			if err != nil {
				return nil, err
			}
			b.Else = els
		}
	case *ast.While:
		b.Kind = wireWhile
		cond, err := exprToBlob(n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := exprToBlob(n.Body)
		if err != nil {
			return nil, err
		}
		b.Cond, b.Body = cond, body
	case *ast.Match:
		b.Kind = wireMatch
		scrut, err := exprToBlob(n.Scrutinee)
		if err != nil {
			return nil, err
		}
		b.Value = scrut
		for i := range n.Arms {
			arm, err := armToBlob(&n.Arms[i])
			if err != nil {
				return nil, err
			}
			b.Arms = append(b.Arms, arm)
		}
	case *ast.Async:
		b.Kind = wireAsync
		body, err := exprToBlob(n.Body)
		if err != nil {
			return nil, err
		}
		b.Body = body
	case *ast.Within:
		b.Kind = wireWithin
		millis, err := exprToBlob(n.Millis)
		if err != nil {
			return nil, err
		}
		body, err := exprToBlob(n.Body)
		if err != nil {
			return nil, err
		}
		b.Millis, b.Body = millis, body
	case *ast.Await:
		b.Kind = wireAwait
		v, err := exprToBlob(n.Value)
		if err != nil {
			return nil, err
		}
		b.Value = v
	default:
		return nil, fmt.Errorf("unsupported expr node %T", e)
	}
	return b, nil
}

func stmtToBlob(s ast.Stmt) (*blobStmt, error) {
	switch n := s.(type) {
	case *ast.Let:
		init, err := exprToBlob(n.Init)
		if err != nil {
			return nil, err
		}
		return &blobStmt{
			Kind: wireStmtLet, Name: n.Name, Mutable: n.Mutable,
			Type: typeToBlob(n.Type), E: init, Sp: spanToBlob(n.Sp),
		}, nil
	case *ast.Assign:
		v, err := exprToBlob(n.Value)
		if err != nil {
			return nil, err
		}
		return &blobStmt{Kind: wireStmtAssign, Name: n.Name, E: v, Sp: spanToBlob(n.Sp)}, nil
	case *ast.ExprStmt:
		e, err := exprToBlob(n.E)
		if err != nil {
			return nil, err
		}
		return &blobStmt{Kind: wireStmtExpr, E: e, Sp: spanToBlob(n.Sp)}, nil
	}
	return nil, fmt.Errorf("unsupported stmt node %T", s)
}

func armToBlob(a *ast.MatchArm) (*blobArm, error) {
	pat, err := patToBlob(a.Pattern)
	if err != nil {
		return nil, err
	}
	body, err := exprToBlob(a.Body)
	if err != nil {
		return nil, err
	}
	b := &blobArm{Pattern: pat, Body: body, Sp: spanToBlob(a.Sp)}
	if a.Guard != nil {
		guard, err := exprToBlob(a.Guard)
		if err != nil {
			return nil, err
		}
		b.Guard = guard
	}
	return b, nil
}

func patToBlob(p ast.Pattern) (*blobPat, error) {
	switch n := p.(type) {
	case *ast.PatWildcard:
		return &blobPat{Kind: wirePatWildcard, Sp: spanToBlob(n.Sp)}, nil
	case *ast.PatBind:
		return &blobPat{Kind: wirePatBind, Name: n.Name, Sp: spanToBlob(n.Sp)}, nil
	case *ast.PatLit:
		lit, err := exprToBlob(n.Lit)
		if err != nil {
			return nil, err
		}
		return &blobPat{Kind: wirePatLit, Lit: lit, Sp: spanToBlob(n.Sp)}, nil
	case *ast.PatVariant:
		b := &blobPat{Kind: wirePatVariant, Name: n.Name, Sp: spanToBlob(n.Sp)}
		for _, e := range n.Elems {
			elem, err := patToBlob(e)
			if err != nil {
				return nil, err
			}
			b.Elems = append(b.Elems, elem)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unsupported pattern node %T", p)
}
