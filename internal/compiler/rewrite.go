package compiler

import (
	"strconv"

	"github.com/roach88/nao/internal/ir"
)

// Rewriter turns raw builder output into final IR. It owns the fresh-name
// counter for pipeline bindings, so names are unique within one Rewriter and
// independent of every other compilation.
type Rewriter struct {
	ns     string
	anon   int
	bodies []*bodyState
}

// NewRewriter returns a Rewriter whose operators and identity bindings refer
// to the builtin namespace.
func NewRewriter() *Rewriter {
	return &Rewriter{ns: BuiltinNamespace}
}

// bodyState collects what one function, macro or loop body exposes.
type bodyState struct {
	macro   bool
	retvals []ir.Retval
	bound   map[string]bool
}

func newBodyState(macro bool, inputs []ir.Param) *bodyState {
	st := &bodyState{macro: macro, retvals: []ir.Retval{}, bound: map[string]bool{}}
	for _, in := range inputs {
		st.bound[in.Name] = true
	}
	return st
}

// Rewrite rewrites the top-level nodes of one package. Imports pass through;
// everything else is treated as the body of a macro, so package-level
// bindings become attributes of the package.
func (r *Rewriter) Rewrite(raw []ir.Node) ([]ir.Node, error) {
	out := make([]ir.Node, 0, len(raw))
	var exprs []ir.Expr
	for _, n := range raw {
		switch n := n.(type) {
		case *ir.Import:
			out = append(out, n)
		case ir.Expr:
			exprs = append(exprs, n)
		default:
			return nil, internalErrorf(ErrUnhandledKind, "rewrite", "unexpected top-level %T", n)
		}
	}

	st := newBodyState(true, nil)
	body, err := r.body(exprs, st)
	if err != nil {
		return nil, err
	}
	for _, e := range body {
		out = append(out, e)
	}
	return out, nil
}

func (r *Rewriter) fresh() string {
	name := "anon" + strconv.Itoa(r.anon)
	r.anon++
	return name
}

func (r *Rewriter) current() *bodyState {
	return r.bodies[len(r.bodies)-1]
}

// body rewrites the statements of one body, collecting output declarations
// into st.
func (r *Rewriter) body(stmts []ir.Expr, st *bodyState) ([]ir.Expr, error) {
	r.bodies = append(r.bodies, st)
	defer func() { r.bodies = r.bodies[:len(r.bodies)-1] }()
	return r.stmts(stmts)
}

func (r *Rewriter) stmts(stmts []ir.Expr) ([]ir.Expr, error) {
	st := r.current()
	out := make([]ir.Expr, 0, len(stmts))
	for _, s := range stmts {
		var e ir.Expr
		var err error
		switch s := s.(type) {
		case *ir.RetvalDecl:
			e, err = r.retval(s)
		case *ir.AfterLeaves:
			var exprs []ir.Expr
			if exprs, err = r.stmts(s.Exprs); err == nil {
				e = &ir.AfterLeaves{Exprs: exprs}
			}
		default:
			e, err = r.expr(s)
		}
		if err != nil {
			return nil, err
		}

		if dl, ok := e.(*ir.DefineLocal); ok && st.macro {
			e = &ir.DefineAttr{Name: dl.Name, Value: dl.Value}
		}
		if name := boundName(e); name != "" {
			st.bound[name] = true
		}
		out = append(out, e)
	}
	return out, nil
}

// retval lowers "<- name kind = value". The value is bound to a local the
// output refers to; a value with no name of its own, or one that names
// something other than a local of this body, gets a synthesized retval<N>.
func (r *Rewriter) retval(d *ir.RetvalDecl) (ir.Expr, error) {
	st := r.current()

	var value ir.Expr = &ir.Local{Name: d.Name}
	if d.Value != nil {
		var err error
		if value, err = r.expr(d.Value); err != nil {
			return nil, err
		}
	}
	value, err := r.withShape(value, d.Shape)
	if err != nil {
		return nil, err
	}
	if value, err = r.withType(value, d.Type); err != nil {
		return nil, err
	}

	local, err := ExpressionName(value)
	if err != nil {
		return nil, err
	}
	if local == "" || !refersToLocal(value, st) {
		local = "retval" + strconv.Itoa(len(st.retvals))
		if value, err = r.withName(value, local); err != nil {
			return nil, err
		}
	}
	st.retvals = append(st.retvals, ir.Retval{Name: d.Name, Local: local})
	st.bound[local] = true
	return value, nil
}

// refersToLocal reports whether a named value will be visible as a local of
// the body once evaluated.
func refersToLocal(e ir.Expr, st *bodyState) bool {
	switch e := e.(type) {
	case *ir.Local:
		return st.bound[e.Name]
	case *ir.AttrRef:
		return false
	case *ir.AssertShape:
		return refersToLocal(e.Value, st)
	case *ir.AssertType:
		return refersToLocal(e.Value, st)
	}
	return true
}

// boundName is the local a body statement introduces, if any.
func boundName(e ir.Expr) string {
	switch e := e.(type) {
	case *ir.DefineLocal:
		return e.Name
	case *ir.Var:
		return e.Name
	case ir.Nameable:
		return e.ExplicitName()
	case *ir.AfterLeaves:
		if len(e.Exprs) > 0 {
			return boundName(e.Exprs[len(e.Exprs)-1])
		}
	}
	return ""
}

func (r *Rewriter) exprs(in []ir.Expr) ([]ir.Expr, error) {
	out := make([]ir.Expr, len(in))
	for i, e := range in {
		v, err := r.expr(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *Rewriter) attrMap(m *ir.AttrMap) (*ir.AttrMap, error) {
	if m == nil {
		return nil, nil
	}
	out := &ir.AttrMap{Ellipsis: m.Ellipsis, Entries: make([]ir.Entry, len(m.Entries))}
	for i, e := range m.Entries {
		v, err := r.expr(e.Value)
		if err != nil {
			return nil, err
		}
		out.Entries[i] = ir.Entry{Name: e.Name, Value: v}
	}
	return out, nil
}

// expr rewrites one expression bottom-up.
func (r *Rewriter) expr(e ir.Expr) (ir.Expr, error) {
	switch e := e.(type) {
	case *ir.Whole, *ir.Fraction, *ir.Bool, *ir.String, *ir.ShapeLit, *ir.Tensor,
		*ir.Local, *ir.AttrRef, *ir.PackageRef, *ir.Above, *ir.Here:
		return e, nil

	case *ir.Named:
		v, err := r.expr(e.Value)
		if err != nil {
			return nil, err
		}
		return r.withName(v, e.Name)

	case *ir.Let:
		v, err := r.expr(e.Value)
		if err != nil {
			return nil, err
		}
		if v, err = r.withName(v, e.Name); err != nil {
			return nil, err
		}
		if v, err = r.withShape(v, e.Shape); err != nil {
			return nil, err
		}
		return r.withType(v, e.Type)

	case *ir.Var:
		v, err := r.expr(e.Init)
		if err != nil {
			return nil, err
		}
		if v, err = r.withType(v, e.Type); err != nil {
			return nil, err
		}
		if v, err = r.withShape(v, e.Shape); err != nil {
			return nil, err
		}
		return &ir.Var{Name: e.Name, Shape: e.Shape, Type: e.Type, Init: v}, nil

	case *ir.VarUpdate:
		v, err := r.expr(e.Value)
		if err != nil {
			return nil, err
		}
		return &ir.VarUpdate{Name: e.Name, Value: v}, nil

	case *ir.Pipeline:
		return r.pipeline(e)

	case *ir.For:
		return r.loop(e)

	case *ir.Definition:
		st := newBodyState(e.Macro, e.Inputs)
		body, err := r.body(e.Body, st)
		if err != nil {
			return nil, err
		}
		d := *e
		d.Body = body
		d.Retvals = st.retvals
		return &d, nil

	case *ir.DefineLocal:
		v, err := r.expr(e.Value)
		if err != nil {
			return nil, err
		}
		return &ir.DefineLocal{Name: e.Name, Value: v}, nil

	case *ir.DefineAttr:
		v, err := r.expr(e.Value)
		if err != nil {
			return nil, err
		}
		return &ir.DefineAttr{Name: e.Name, Value: v}, nil

	case *ir.List:
		elems, err := r.exprs(e.Elems)
		if err != nil {
			return nil, err
		}
		return &ir.List{Elems: elems}, nil

	case *ir.Index:
		target, err := r.expr(e.Target)
		if err != nil {
			return nil, err
		}
		return &ir.Index{Target: target, Index: e.Index}, nil

	case *ir.Cond:
		parts, err := r.exprs([]ir.Expr{e.Pred, e.Then, e.Else})
		if err != nil {
			return nil, err
		}
		return &ir.Cond{Pred: parts[0], Then: parts[1], Else: parts[2]}, nil

	case *ir.Apply:
		callee, err := r.expr(e.Callee)
		if err != nil {
			return nil, err
		}
		attrs, err := r.attrMap(e.Attrs)
		if err != nil {
			return nil, err
		}
		args, err := r.exprs(e.Args)
		if err != nil {
			return nil, err
		}
		return &ir.Apply{Name: e.Name, Callee: callee, Attrs: attrs, Args: args}, nil

	case *ir.ApplyKeywords:
		callee, err := r.expr(e.Callee)
		if err != nil {
			return nil, err
		}
		attrs, err := r.attrMap(e.Attrs)
		if err != nil {
			return nil, err
		}
		kw := &ir.KeywordMap{Entries: make([]ir.Entry, len(e.Args.Entries))}
		for i, arg := range e.Args.Entries {
			v, err := r.expr(arg.Value)
			if err != nil {
				return nil, err
			}
			kw.Entries[i] = ir.Entry{Name: arg.Name, Value: v}
		}
		return &ir.ApplyKeywords{Name: e.Name, Callee: callee, Attrs: attrs, Args: kw}, nil

	case *ir.ApplyAttrs:
		callee, err := r.expr(e.Callee)
		if err != nil {
			return nil, err
		}
		attrs, err := r.attrMap(e.Attrs)
		if err != nil {
			return nil, err
		}
		return &ir.ApplyAttrs{Callee: callee, Attrs: attrs}, nil

	case *ir.AssertShape:
		v, err := r.expr(e.Value)
		if err != nil {
			return nil, err
		}
		return &ir.AssertShape{Shape: e.Shape, Value: v}, nil

	case *ir.AssertType:
		v, err := r.expr(e.Value)
		if err != nil {
			return nil, err
		}
		return &ir.AssertType{Type: e.Type, Value: v}, nil

	case *ir.AfterLeaves:
		exprs, err := r.stmts(e.Exprs)
		if err != nil {
			return nil, err
		}
		return &ir.AfterLeaves{Exprs: exprs}, nil
	}
	return nil, internalErrorf(ErrUnhandledKind, "rewrite", "unhandled kind %T", e)
}

// loop lowers a for loop into a while loop. The body gets its own output
// declarations; the initializers follow the (currently empty) list of
// closed-over carried variables.
func (r *Rewriter) loop(f *ir.For) (ir.Expr, error) {
	init, err := r.exprs(f.Init)
	if err != nil {
		return nil, err
	}

	st := newBodyState(false, nil)
	for _, e := range init {
		if name := boundName(e); name != "" {
			st.bound[name] = true
		}
	}
	r.bodies = append(r.bodies, st)
	cond, err := r.expr(f.Cond)
	if err != nil {
		r.bodies = r.bodies[:len(r.bodies)-1]
		return nil, err
	}
	body, err := r.stmts(f.Body)
	r.bodies = r.bodies[:len(r.bodies)-1]
	if err != nil {
		return nil, err
	}

	var carried []ir.Expr
	return &ir.WhileLoop{
		Cond:    cond,
		Body:    body,
		Retvals: st.retvals,
		Init:    append(carried, init...),
	}, nil
}
