package compiler

import "github.com/roach88/nao/internal/ir"

// withShape constrains the result of e to shape. A nil shape is no
// constraint.
func (r *Rewriter) withShape(e ir.Expr, shape *ir.Shape) (ir.Expr, error) {
	if shape == nil {
		return e, nil
	}
	switch e := e.(type) {
	case *ir.Tensor:
		t := *e
		t.Shape = shape
		return &t, nil
	case *ir.Definition:
		return nil, internalErrorf(ErrAssertOnFunction, "shape", "cannot assert shape on a function")
	case *ir.AfterLeaves:
		return pushLast(e, "shape", func(last ir.Expr) (ir.Expr, error) { return r.withShape(last, shape) })
	case *ir.DefineLocal:
		v, err := r.withShape(e.Value, shape)
		if err != nil {
			return nil, err
		}
		return &ir.DefineLocal{Name: e.Name, Value: v}, nil
	}
	return &ir.AssertShape{Shape: *shape, Value: e}, nil
}

// withType constrains the element type of e. The empty type is no
// constraint.
func (r *Rewriter) withType(e ir.Expr, typ ir.TensorType) (ir.Expr, error) {
	if typ == "" {
		return e, nil
	}
	switch e := e.(type) {
	case *ir.Tensor:
		t := *e
		t.Type = typ
		return &t, nil
	case *ir.Definition:
		return nil, internalErrorf(ErrAssertOnFunction, "type", "cannot assert type on a function")
	case *ir.AfterLeaves:
		return pushLast(e, "type", func(last ir.Expr) (ir.Expr, error) { return r.withType(last, typ) })
	case *ir.DefineLocal:
		v, err := r.withType(e.Value, typ)
		if err != nil {
			return nil, err
		}
		return &ir.DefineLocal{Name: e.Name, Value: v}, nil
	}
	return &ir.AssertType{Type: typ, Value: e}, nil
}

// pushLast applies fn to the produced value of an after-leaves block.
func pushLast(a *ir.AfterLeaves, op string, fn func(ir.Expr) (ir.Expr, error)) (ir.Expr, error) {
	n := len(a.Exprs)
	if n == 0 {
		return nil, internalErrorf(ErrEmptyAfterLeaves, op, "after-leaves block has no expressions")
	}
	last, err := fn(a.Exprs[n-1])
	if err != nil {
		return nil, err
	}
	exprs := append(append([]ir.Expr{}, a.Exprs[:n-1]...), last)
	return &ir.AfterLeaves{Exprs: exprs}, nil
}
