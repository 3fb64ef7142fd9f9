package ir

// Children returns the direct child nodes of n in encoding order.
// Attribute and keyword map values are included.
func Children(n Node) []Node {
	var kids []Node
	add := func(es ...Expr) {
		for _, e := range es {
			if e != nil {
				kids = append(kids, e)
			}
		}
	}
	addMap := func(m *AttrMap) {
		if m == nil {
			return
		}
		for _, e := range m.Entries {
			add(e.Value)
		}
	}

	switch n := n.(type) {
	case *List:
		add(n.Elems...)
	case *Tensor:
		add(n.Value)
	case *Index:
		add(n.Target, n.Index)
	case *Cond:
		add(n.Pred, n.Then, n.Else)
	case *WhileLoop:
		add(n.Cond)
		add(n.Body...)
		add(n.Init...)
	case *DefineLocal:
		add(n.Value)
	case *DefineAttr:
		add(n.Value)
	case *Apply:
		add(n.Callee)
		addMap(n.Attrs)
		add(n.Args...)
	case *ApplyKeywords:
		add(n.Callee)
		addMap(n.Attrs)
		if n.Args != nil {
			for _, e := range n.Args.Entries {
				add(e.Value)
			}
		}
	case *ApplyAttrs:
		add(n.Callee)
		addMap(n.Attrs)
	case *AssertType:
		add(n.Value)
	case *AssertShape:
		add(n.Value)
	case *AfterLeaves:
		add(n.Exprs...)
	case *Var:
		add(n.Init)
	case *VarUpdate:
		add(n.Value)
	case *Definition:
		add(n.Body...)
	case *Package:
		kids = append(kids, n.Decls...)
	case *Named:
		add(n.Value)
	case *Let:
		add(n.Value)
	case *Pipeline:
		add(n.Stages...)
	case *For:
		add(n.Init...)
		add(n.Cond)
		add(n.Body...)
	case *RetvalDecl:
		add(n.Value)
	}
	return kids
}

// Walk visits n and its descendants depth-first in encoding order. If fn
// returns false the children of that node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}
