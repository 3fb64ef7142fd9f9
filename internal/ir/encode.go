package ir

import "fmt"

// Encode converts a node into the backend's nested tagged-array form.
// Every array starts with the tag the backend dispatches on; empty slots
// are null.
//
// Encode panics on a nil node or a node type it does not know, which would
// mean a variant was added to this package without an encoding.
func Encode(n Node) IRValue {
	switch n := n.(type) {
	case *Whole:
		return Tag("_sf_whole", IRString(n.Digits))
	case *Fraction:
		return Tag("_sf_fraction", IRString(n.Digits))
	case *Bool:
		return IRBool(n.Value)
	case *String:
		return IRString(n.Value)
	case *List:
		return Tag("list", encodeExprs(n.Elems)...)
	case *Tensor:
		return Tag("_named_tensor", optString(n.Name), encodeShapePtr(n.Shape), encodeType(n.Type), Encode(n.Value))
	case *ShapeLit:
		return encodeShape(n.Shape)
	case *Local:
		return Tag("_sf_local", IRString(n.Name))
	case *AttrRef:
		return Tag("_sf_attr", IRString(n.Name))
	case *PackageRef:
		return Tag("_named_apply", optString(n.Name),
			Tag("_sf_package_lookup", IRString(n.Package)), IRNull{}, IRString(n.Member))
	case *Index:
		return Tag("_sf_index", Encode(n.Target), Encode(n.Index))
	case *Above:
		return Tag("_sf_local", IRString("^"))
	case *Here:
		return Tag("__sf_here")
	case *Cond:
		return Tag("_sf_cond", Encode(n.Pred), Encode(n.Then), Encode(n.Else))
	case *WhileLoop:
		return Tag("_sf_while_loop", Encode(n.Cond),
			IRArray(encodeExprs(n.Body)), encodeRetvals(n.Retvals), IRArray(encodeExprs(n.Init)))
	case *DefineLocal:
		return Tag("_named_define_local", IRString(n.Name), Encode(n.Value))
	case *DefineAttr:
		return Tag("_named_define_attr", IRString(n.Name), Encode(n.Value))
	case *Apply:
		head := []IRValue{optString(n.Name), Encode(n.Callee), encodeAttrMap(n.Attrs)}
		return Tag("_named_apply", append(head, encodeExprs(n.Args)...)...)
	case *ApplyKeywords:
		return Tag("_named_apply_keywords", optString(n.Name), Encode(n.Callee),
			encodeAttrMap(n.Attrs), encodeKeywords(n.Args))
	case *ApplyAttrs:
		return Tag("apply_attrs", Encode(n.Callee), encodeAttrMap(n.Attrs))
	case *AssertType:
		return Tag("assert_type", encodeType(n.Type), Encode(n.Value))
	case *AssertShape:
		return Tag("assert_shape", encodeShape(n.Shape), Encode(n.Value))
	case *AfterLeaves:
		return Tag("_sf_after_leaves", encodeExprs(n.Exprs)...)
	case *Var:
		return Tag("_named_var", IRString(n.Name), encodeShapePtr(n.Shape), encodeType(n.Type), Encode(n.Init))
	case *VarUpdate:
		return Tag("_named_var_update", IRString(n.Name), Encode(n.Value))
	case *Definition:
		return encodeDefinition(n)
	case *Import:
		specs := make(IRArray, len(n.Specs))
		for i, s := range n.Specs {
			specs[i] = IRArray{IRString(s.Name), IRString(s.Path), optString(s.Scope)}
		}
		return Tag("_sf_import", specs)
	case *Package:
		decls := make([]IRValue, 0, len(n.Decls)+1)
		decls = append(decls, IRString(n.Name))
		for _, d := range n.Decls {
			decls = append(decls, Encode(d))
		}
		return Tag("_sf_package", decls...)
	case *ForeignPackage:
		return Tag("_sf_foreign_package", IRString(n.Language), IRString(n.Name),
			optString(n.Scope), IRString(n.Content))

	// Builder-only forms, encoded so raw IR can be inspected.
	case *Named:
		return Tag("__sf_named", IRString(n.Name), Encode(n.Value))
	case *Let:
		return Tag("__sf_let", IRString(n.Name), encodeShapePtr(n.Shape), encodeType(n.Type), Encode(n.Value))
	case *Pipeline:
		return Tag("__sf_pipeline", encodeExprs(n.Stages)...)
	case *For:
		return Tag("__sf_for", IRArray(encodeExprs(n.Init)), Encode(n.Cond), IRArray(encodeExprs(n.Body)))
	case *RetvalDecl:
		return Tag("__retval", IRString(n.Name), encodeShapePtr(n.Shape), encodeType(n.Type), optExpr(n.Value))
	}
	panic(fmt.Sprintf("ir.Encode: unhandled node %T", n))
}

func encodeExprs(exprs []Expr) []IRValue {
	out := make([]IRValue, len(exprs))
	for i, e := range exprs {
		out[i] = Encode(e)
	}
	return out
}

func encodeDefinition(d *Definition) IRValue {
	attrs := make(IRArray, len(d.Attrs))
	for i, a := range d.Attrs {
		attrs[i] = IRArray{IRString(a.Name), encodeShapePtr(a.Shape), encodeType(a.Type)}
	}
	retvals := encodeRetvals(d.Retvals)
	body := encodeExprs(d.Body)

	if d.Macro {
		head := []IRValue{optString(d.Name), attrs, retvals}
		return Tag("_sf_macro", append(head, body...)...)
	}

	inputs := make(IRArray, len(d.Inputs))
	for i, in := range d.Inputs {
		inputs[i] = IRArray{IRString(in.Name), encodeShapePtr(in.Shape), encodeType(in.Type)}
	}
	head := []IRValue{optString(d.Name), attrs, inputs, retvals}
	return Tag("_sf_function", append(head, body...)...)
}

func encodeRetvals(retvals []Retval) IRArray {
	out := make(IRArray, len(retvals))
	for i, r := range retvals {
		out[i] = IRArray{IRString(r.Name), IRString(r.Local)}
	}
	return out
}

func encodeAttrMap(m *AttrMap) IRValue {
	if m == nil {
		return IRNull{}
	}
	entries := make([]IRValue, 0, len(m.Entries)+1)
	if m.Ellipsis {
		entries = append(entries, IRArray{IRString("_ellipsis"), IRBool(true)})
	}
	for _, e := range m.Entries {
		entries = append(entries, IRArray{IRString(e.Name), Encode(e.Value)})
	}
	return Tag("_sf_map", entries...)
}

func encodeKeywords(m *KeywordMap) IRValue {
	if m == nil {
		return Tag("_sf_map")
	}
	entries := make([]IRValue, len(m.Entries))
	for i, e := range m.Entries {
		entries[i] = IRArray{IRString(e.Name), Encode(e.Value)}
	}
	return Tag("_sf_map", entries...)
}

func encodeShape(s Shape) IRValue {
	dims := make([]IRValue, len(s.Dims))
	for i, d := range s.Dims {
		if d == UnknownDim {
			dims[i] = IRNull{}
		} else {
			dims[i] = IRInt(d)
		}
	}
	return Tag("shape", dims...)
}

func encodeShapePtr(s *Shape) IRValue {
	if s == nil {
		return IRNull{}
	}
	return encodeShape(*s)
}

func encodeType(t TensorType) IRValue {
	if t == "" {
		return IRNull{}
	}
	return Tag("_sf_type", IRString(t))
}

// optExpr encodes e, or null when a raw form leaves the value out (a bare
// output declaration "<- x").
func optExpr(e Expr) IRValue {
	if e == nil {
		return IRNull{}
	}
	return Encode(e)
}

func optString(s string) IRValue {
	if s == "" {
		return IRNull{}
	}
	return IRString(s)
}
