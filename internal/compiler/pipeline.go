package compiler

import "github.com/roach88/nao/internal/ir"

// pipeline folds "a; b; c" from the first stage on. An application stage
// consumes the accumulated value through its here placeholders: the first
// becomes a named identity of the value and later ones refer to that name,
// so the value is computed once. An application without placeholders
// discards the value. Any other stage is applied to the value.
func (r *Rewriter) pipeline(p *ir.Pipeline) (ir.Expr, error) {
	stages, err := r.exprs(p.Stages)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, internalErrorf(ErrUnhandledKind, "pipeline", "empty pipeline")
	}

	acc := stages[0]
	for _, stage := range stages[1:] {
		switch stage.(type) {
		case *ir.Apply, *ir.ApplyKeywords:
			h := &hereSubst{ns: r.ns, name: r.fresh(), value: acc}
			acc = h.replace(stage)
		default:
			acc = &ir.Apply{Callee: stage, Args: []ir.Expr{acc}}
		}
	}
	return acc, nil
}

// hereSubst replaces the here placeholders of one pipeline stage.
type hereSubst struct {
	ns    string
	name  string
	value ir.Expr
	seen  bool
}

func (h *hereSubst) replaceAll(in []ir.Expr) []ir.Expr {
	if in == nil {
		return nil
	}
	out := make([]ir.Expr, len(in))
	for i, e := range in {
		out[i] = h.replace(e)
	}
	return out
}

func (h *hereSubst) replaceMap(m *ir.AttrMap) *ir.AttrMap {
	if m == nil {
		return nil
	}
	out := &ir.AttrMap{Ellipsis: m.Ellipsis, Entries: make([]ir.Entry, len(m.Entries))}
	for i, e := range m.Entries {
		out.Entries[i] = ir.Entry{Name: e.Name, Value: h.replace(e.Value)}
	}
	return out
}

// replace walks e in encoding order. It stops at references, conditionals
// and definitions: placeholders belong to the innermost application chain.
func (h *hereSubst) replace(e ir.Expr) ir.Expr {
	switch e := e.(type) {
	case *ir.Here:
		if h.seen {
			return &ir.Local{Name: h.name}
		}
		h.seen = true
		return ir.Identity(h.ns, h.name, h.value)

	case *ir.Apply:
		return &ir.Apply{
			Name:   e.Name,
			Callee: h.replace(e.Callee),
			Attrs:  h.replaceMap(e.Attrs),
			Args:   h.replaceAll(e.Args),
		}
	case *ir.ApplyKeywords:
		callee := h.replace(e.Callee)
		attrs := h.replaceMap(e.Attrs)
		kw := &ir.KeywordMap{Entries: make([]ir.Entry, len(e.Args.Entries))}
		for i, arg := range e.Args.Entries {
			kw.Entries[i] = ir.Entry{Name: arg.Name, Value: h.replace(arg.Value)}
		}
		return &ir.ApplyKeywords{Name: e.Name, Callee: callee, Attrs: attrs, Args: kw}
	case *ir.ApplyAttrs:
		callee := h.replace(e.Callee)
		return &ir.ApplyAttrs{Callee: callee, Attrs: h.replaceMap(e.Attrs)}
	case *ir.List:
		return &ir.List{Elems: h.replaceAll(e.Elems)}
	case *ir.DefineLocal:
		return &ir.DefineLocal{Name: e.Name, Value: h.replace(e.Value)}
	case *ir.DefineAttr:
		return &ir.DefineAttr{Name: e.Name, Value: h.replace(e.Value)}
	case *ir.AssertShape:
		return &ir.AssertShape{Shape: e.Shape, Value: h.replace(e.Value)}
	case *ir.AssertType:
		return &ir.AssertType{Type: e.Type, Value: h.replace(e.Value)}
	case *ir.AfterLeaves:
		return &ir.AfterLeaves{Exprs: h.replaceAll(e.Exprs)}
	case *ir.WhileLoop:
		cond := h.replace(e.Cond)
		body := h.replaceAll(e.Body)
		return &ir.WhileLoop{Cond: cond, Body: body, Retvals: e.Retvals, Init: h.replaceAll(e.Init)}
	case *ir.Var:
		return &ir.Var{Name: e.Name, Shape: e.Shape, Type: e.Type, Init: h.replace(e.Init)}
	case *ir.VarUpdate:
		return &ir.VarUpdate{Name: e.Name, Value: h.replace(e.Value)}
	}
	// Literals, references, indexes, conditionals and definitions.
	return e
}
