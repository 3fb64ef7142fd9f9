package compiler

import "github.com/roach88/nao/internal/ir"

// withName binds name to the result of e. Kinds with a name slot get it
// written in; an after-leaves block is named through an identity so its
// value stays the last expression; other value kinds are wrapped in a local
// binding.
func (r *Rewriter) withName(e ir.Expr, name string) (ir.Expr, error) {
	switch e := e.(type) {
	case ir.Nameable:
		return e.WithName(name), nil
	case *ir.AfterLeaves:
		return ir.Identity(r.ns, name, e), nil
	case *ir.Local, *ir.AttrRef, *ir.Index, *ir.Cond, *ir.Here, *ir.Above,
		*ir.List, *ir.WhileLoop, *ir.ApplyAttrs, *ir.Definition,
		*ir.AssertShape, *ir.AssertType,
		*ir.Whole, *ir.Fraction, *ir.Bool, *ir.String, *ir.ShapeLit:
		return &ir.DefineLocal{Name: name, Value: e}, nil
	}
	return nil, internalErrorf(ErrUnhandledKind, "name", "cannot name %T as %q", e, name)
}

// ExpressionName returns the name a rewritten expression will be known by,
// or "" when it has none.
func ExpressionName(e ir.Expr) (string, error) {
	switch e := e.(type) {
	case ir.Nameable:
		return e.ExplicitName(), nil
	case *ir.AssertShape:
		return ExpressionName(e.Value)
	case *ir.AssertType:
		return ExpressionName(e.Value)
	case *ir.AfterLeaves:
		if len(e.Exprs) == 0 {
			return "", internalErrorf(ErrEmptyAfterLeaves, "name", "after-leaves block has no expressions")
		}
		return ExpressionName(e.Exprs[len(e.Exprs)-1])
	case *ir.Local:
		return e.Name, nil
	case *ir.AttrRef:
		return e.Name, nil
	case *ir.DefineLocal:
		return e.Name, nil
	case *ir.DefineAttr:
		return e.Name, nil
	case *ir.Var:
		return e.Name, nil
	case *ir.VarUpdate:
		return e.Name, nil
	case *ir.Definition:
		return e.Name, nil
	}
	return "", nil
}
