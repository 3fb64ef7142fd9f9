package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/nao/internal/ir"
	"github.com/roach88/nao/internal/syntax"
)

// BuiltinNamespace is the package operators and identity lower onto.
const BuiltinNamespace = "tf"

// operators maps infix operators to builtin members.
var operators = map[string]string{
	"<=": "less_equal",
	"<":  "less",
	"==": "equal",
	"!=": "not_equal",
	">=": "greater_equal",
	">":  "greater",
	"+":  "add",
	"-":  "subtract",
	"*":  "multiply",
	"/":  "divide",
	"%":  "mod",
}

// Build converts a parsed program into raw top-level IR: imports first, then
// declarations in source order. The result still holds builder-only forms
// and must go through a Rewriter.
func Build(prog *syntax.Node) ([]ir.Node, error) {
	if prog == nil || prog.Rule != syntax.RuleProgram {
		return nil, fmt.Errorf("build: expected %s node", syntax.RuleProgram)
	}
	b := &builder{}

	var imports, decls []ir.Node
	for _, kid := range prog.Kids {
		if kid.Rule == syntax.RuleImportDecl {
			imp, err := b.importDecl(kid)
			if err != nil {
				return nil, err
			}
			imports = append(imports, imp)
			continue
		}
		decl, err := b.topLevel(kid)
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	return append(imports, decls...), nil
}

// builder tracks the names declared at each nesting level so that a bare
// identifier can be told apart as an attribute or a local. Inputs shadow
// attributes of enclosing definitions.
type builder struct {
	attrScopes []map[string]bool
}

func (b *builder) isAttr(name string) bool {
	for i := len(b.attrScopes) - 1; i >= 0; i-- {
		if isAttr, ok := b.attrScopes[i][name]; ok {
			return isAttr
		}
	}
	return false
}

func (b *builder) importDecl(n *syntax.Node) (*ir.Import, error) {
	imp := &ir.Import{}
	for _, spec := range n.Kids {
		path, scope, _ := strings.Cut(spec.Tok.Text, ":")
		if path == "" {
			return nil, compileErrorf(ErrInvalidLiteral, spec.Pos(), "", "empty import path")
		}
		name := ""
		if alias := spec.Kid(0); alias != nil {
			name = alias.Tok.Text
		} else {
			name = defaultImportName(path, scope)
		}
		imp.Specs = append(imp.Specs, ir.ImportSpec{Name: name, Path: path, Scope: scope})
	}
	return imp, nil
}

// defaultImportName is the last "/" fragment of the scope, or of the path
// when there is no scope.
func defaultImportName(path, scope string) string {
	s := path
	if scope != "" {
		s = scope
	}
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func (b *builder) topLevel(n *syntax.Node) (ir.Node, error) {
	switch n.Rule {
	case syntax.RuleFunctionDecl:
		def, err := b.definition(n.Tok.Text, n.Kid(0), n.Kid(1))
		if err != nil {
			return nil, err
		}
		return &ir.DefineAttr{Name: n.Tok.Text, Value: def}, nil
	case syntax.RuleGraphDecl:
		def, err := b.definition(n.Tok.Text, nil, n.Kid(0))
		if err != nil {
			return nil, err
		}
		return &ir.DefineAttr{Name: n.Tok.Text, Value: def}, nil
	case syntax.RuleLetDecl, syntax.RuleVarDecl:
		return b.statement(n)
	}
	return nil, fmt.Errorf("build: unexpected top-level %s", n.Rule)
}

// definition builds a function or macro. A nil signature, or one without an
// input list, makes a macro.
func (b *builder) definition(name string, sig, block *syntax.Node) (*ir.Definition, error) {
	def := &ir.Definition{Name: name, Macro: true}
	scope := map[string]bool{}

	if attrs := sig.Kid(0); attrs != nil {
		for _, p := range attrs.Kids {
			if scope[p.Tok.Text] {
				return nil, compileErrorf(ErrAlreadyDefined, p.Pos(), p.Tok.Text,
					"attribute %q already defined", p.Tok.Text)
			}
			scope[p.Tok.Text] = true
			def.Attrs = append(def.Attrs, ir.Param{Name: p.Tok.Text})
		}
	}
	if inputs := sig.Kid(1); inputs != nil {
		def.Macro = false
		def.Inputs = []ir.Param{}
		for _, p := range inputs.Kids {
			shape, typ, err := kind(p.Kid(0))
			if err != nil {
				return nil, err
			}
			def.Inputs = append(def.Inputs, ir.Param{Name: p.Tok.Text, Shape: shape, Type: typ})
			if !scope[p.Tok.Text] {
				scope[p.Tok.Text] = false
			}
		}
	}

	// Attribute declarations in the body are visible from its first line.
	for _, stmt := range block.Kids {
		if stmt.Rule != syntax.RuleAttrDecl {
			continue
		}
		if scope[stmt.Tok.Text] {
			return nil, compileErrorf(ErrAlreadyDefined, stmt.Pos(), stmt.Tok.Text,
				"attribute %q already defined", stmt.Tok.Text)
		}
		scope[stmt.Tok.Text] = true
		def.Attrs = append(def.Attrs, ir.Param{Name: stmt.Tok.Text})
	}

	b.attrScopes = append(b.attrScopes, scope)
	defer func() { b.attrScopes = b.attrScopes[:len(b.attrScopes)-1] }()

	body, err := b.block(block, true)
	if err != nil {
		return nil, err
	}
	def.Body = body
	return def, nil
}

// block builds the statements of a block. Attribute declarations are only
// allowed directly in a definition body, where definition has already
// lifted them.
func (b *builder) block(n *syntax.Node, inDefinition bool) ([]ir.Expr, error) {
	out := make([]ir.Expr, 0, len(n.Kids))
	for _, stmt := range n.Kids {
		if stmt.Rule == syntax.RuleAttrDecl {
			if !inDefinition {
				return nil, compileErrorf(ErrMisplacedAttrDecl, stmt.Pos(), stmt.Tok.Text,
					"attribute %q must be declared in a definition body", stmt.Tok.Text)
			}
			continue
		}
		e, err := b.statement(stmt)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (b *builder) statement(n *syntax.Node) (ir.Expr, error) {
	switch n.Rule {
	case syntax.RuleOutputDecl:
		shape, typ, err := kind(n.Kid(0))
		if err != nil {
			return nil, err
		}
		var value ir.Expr
		if v := n.Kid(1); v != nil {
			if value, err = b.expr(v); err != nil {
				return nil, err
			}
		}
		return &ir.RetvalDecl{Name: n.Tok.Text, Shape: shape, Type: typ, Value: value}, nil

	case syntax.RuleLetDecl, syntax.RuleAssignment:
		shape, typ, err := kind(n.Kid(0))
		if err != nil {
			return nil, err
		}
		value, err := b.expr(n.Kid(1))
		if err != nil {
			return nil, err
		}
		return &ir.Let{Name: n.Tok.Text, Shape: shape, Type: typ, Value: value}, nil

	case syntax.RuleVarDecl:
		shape, typ, err := kind(n.Kid(0))
		if err != nil {
			return nil, err
		}
		value, err := b.expr(n.Kid(1))
		if err != nil {
			return nil, err
		}
		return &ir.Var{Name: n.Tok.Text, Shape: shape, Type: typ, Init: value}, nil

	case syntax.RuleVarUpdate:
		value, err := b.expr(n.Kid(0))
		if err != nil {
			return nil, err
		}
		return &ir.VarUpdate{Name: n.Tok.Text, Value: value}, nil
	}
	return b.expr(n)
}

func (b *builder) exprs(nodes []*syntax.Node) ([]ir.Expr, error) {
	out := make([]ir.Expr, len(nodes))
	for i, n := range nodes {
		e, err := b.expr(n)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (b *builder) expr(n *syntax.Node) (ir.Expr, error) {
	switch n.Rule {
	case syntax.RuleNamed:
		value, err := b.expr(n.Kid(0))
		if err != nil {
			return nil, err
		}
		return &ir.Named{Name: n.Tok.Text, Value: value}, nil

	case syntax.RulePipeline:
		stages, err := b.exprs(n.Kids)
		if err != nil {
			return nil, err
		}
		return &ir.Pipeline{Stages: stages}, nil

	case syntax.RuleBinary:
		args, err := b.exprs(n.Kids)
		if err != nil {
			return nil, err
		}
		member, ok := operators[n.Tok.Text]
		if !ok {
			return nil, fmt.Errorf("build: %s: unknown operator %q", n.Pos(), n.Tok.Text)
		}
		return &ir.Apply{
			Callee: &ir.PackageRef{Package: BuiltinNamespace, Member: member},
			Args:   args,
		}, nil

	case syntax.RuleIndex:
		target, err := b.expr(n.Kid(0))
		if err != nil {
			return nil, err
		}
		var index ir.Expr = &ir.String{Value: n.Tok.Text}
		if n.Tok.Kind == syntax.Number {
			index = numeral(n.Tok.Text)
		}
		return &ir.Index{Target: target, Index: index}, nil

	case syntax.RuleReference:
		return b.reference(n.Tok.Text, n.Kid(0), n.Kid(1))

	case syntax.RuleApply:
		callee, attrs, err := b.callee(n)
		if err != nil {
			return nil, err
		}
		args, err := b.exprs(n.Kid(2).Kids)
		if err != nil {
			return nil, err
		}
		return &ir.Apply{Callee: callee, Attrs: attrs, Args: args}, nil

	case syntax.RuleApplyKeywords:
		callee, attrs, err := b.callee(n)
		if err != nil {
			return nil, err
		}
		kw := &ir.KeywordMap{}
		seen := map[string]bool{}
		for _, arg := range n.Kid(2).Kids {
			if seen[arg.Tok.Text] {
				return nil, compileErrorf(ErrDuplicateKeywordArg, arg.Pos(), arg.Tok.Text,
					"keyword argument %q already defined", arg.Tok.Text)
			}
			seen[arg.Tok.Text] = true
			value, err := b.expr(arg.Kid(0))
			if err != nil {
				return nil, err
			}
			kw.Entries = append(kw.Entries, ir.Entry{Name: arg.Tok.Text, Value: value})
		}
		return &ir.ApplyKeywords{Callee: callee, Attrs: attrs, Args: kw}, nil

	case syntax.RuleAbove:
		return &ir.Above{}, nil
	case syntax.RuleHere:
		return &ir.Here{}, nil
	case syntax.RuleString:
		return &ir.String{Value: n.Tok.Text}, nil
	case syntax.RuleBool:
		return &ir.Bool{Value: n.Tok.Text == "true"}, nil

	case syntax.RuleTensorLiteral:
		return &ir.Tensor{Value: tensorValue(n.Kid(0))}, nil

	case syntax.RuleListLiteral:
		elems, err := b.exprs(n.Kids)
		if err != nil {
			return nil, err
		}
		return &ir.List{Elems: elems}, nil

	case syntax.RuleFuncLiteral:
		return b.definition("", n.Kid(0), n.Kid(1))

	case syntax.RuleIf:
		parts, err := b.exprs(n.Kids)
		if err != nil {
			return nil, err
		}
		return &ir.Cond{Pred: parts[0], Then: parts[1], Else: parts[2]}, nil

	case syntax.RuleFor:
		loop := &ir.For{}
		for _, init := range n.Kid(0).Kids {
			e, err := b.statement(init)
			if err != nil {
				return nil, err
			}
			loop.Init = append(loop.Init, e)
		}
		cond, err := b.expr(n.Kid(1))
		if err != nil {
			return nil, err
		}
		body, err := b.block(n.Kid(2), false)
		if err != nil {
			return nil, err
		}
		loop.Cond, loop.Body = cond, body
		return loop, nil

	case syntax.RuleAfter:
		body, err := b.block(n.Kid(0), false)
		if err != nil {
			return nil, err
		}
		return &ir.AfterLeaves{Exprs: body}, nil
	}
	return nil, fmt.Errorf("build: %s: unexpected %s in expression", n.Pos(), n.Rule)
}

// reference resolves an identifier: qualified names are package lookups,
// declared attributes are attribute references and everything else is a
// local. A trailing attribute block binds attributes without applying.
func (b *builder) reference(name string, ns, attrBlock *syntax.Node) (ir.Expr, error) {
	var ref ir.Expr
	switch {
	case ns != nil:
		ref = &ir.PackageRef{Package: ns.Tok.Text, Member: name}
	case b.isAttr(name):
		ref = &ir.AttrRef{Name: name}
	default:
		ref = &ir.Local{Name: name}
	}
	if attrBlock == nil {
		return ref, nil
	}
	attrs, err := b.attrMap(attrBlock)
	if err != nil {
		return nil, err
	}
	return &ir.ApplyAttrs{Callee: ref, Attrs: attrs}, nil
}

// callee builds the head of an application. The attribute block of an
// application must be complete.
func (b *builder) callee(n *syntax.Node) (ir.Expr, *ir.AttrMap, error) {
	callee, err := b.reference(n.Tok.Text, n.Kid(0), nil)
	if err != nil {
		return nil, nil, err
	}
	block := n.Kid(1)
	if block == nil {
		return callee, nil, nil
	}
	attrs, err := b.attrMap(block)
	if err != nil {
		return nil, nil, err
	}
	if attrs.Ellipsis {
		return nil, nil, compileErrorf(ErrEllipsisInApply, block.Pos(), n.Tok.Text,
			"attribute ellipsis is not allowed in an apply of %q", n.Tok.Text)
	}
	return callee, attrs, nil
}

func (b *builder) attrMap(n *syntax.Node) (*ir.AttrMap, error) {
	m := &ir.AttrMap{}
	seen := map[string]bool{}
	for _, kid := range n.Kids {
		if kid.Rule == syntax.RuleEllipsis {
			if m.Ellipsis {
				return nil, compileErrorf(ErrEllipsisCount, kid.Pos(), "",
					"an attribute block may contain up to one ellipsis")
			}
			m.Ellipsis = true
			continue
		}
		if seen[kid.Tok.Text] {
			return nil, compileErrorf(ErrAlreadyDefined, kid.Pos(), kid.Tok.Text,
				"attribute %q already defined", kid.Tok.Text)
		}
		seen[kid.Tok.Text] = true
		value, err := b.attrValue(kid.Kid(0))
		if err != nil {
			return nil, err
		}
		m.Entries = append(m.Entries, ir.Entry{Name: kid.Tok.Text, Value: value})
	}
	return m, nil
}

func (b *builder) attrValue(n *syntax.Node) (ir.Expr, error) {
	switch n.Rule {
	case syntax.RuleNumber:
		return numeral(n.Tok.Text), nil
	case syntax.RuleString:
		return &ir.String{Value: n.Tok.Text}, nil
	case syntax.RuleBool:
		return &ir.Bool{Value: n.Tok.Text == "true"}, nil
	case syntax.RuleShape:
		s, err := shape(n)
		if err != nil {
			return nil, err
		}
		return &ir.ShapeLit{Shape: *s}, nil
	case syntax.RuleAttrList:
		l := &ir.List{}
		for _, kid := range n.Kids {
			v, err := b.attrValue(kid)
			if err != nil {
				return nil, err
			}
			l.Elems = append(l.Elems, v)
		}
		return l, nil
	case syntax.RuleAttrReference:
		return b.reference(n.Tok.Text, n.Kid(0), n.Kid(1))
	}
	return nil, fmt.Errorf("build: %s: unexpected %s in attribute value", n.Pos(), n.Rule)
}

// numeral keeps the exact source digits of a number, sign included.
func numeral(digits string) ir.Expr {
	if strings.Contains(digits, ".") {
		return &ir.Fraction{Digits: digits}
	}
	return &ir.Whole{Digits: digits}
}

func tensorValue(n *syntax.Node) ir.Expr {
	if n.Rule == syntax.RuleNumber {
		return numeral(n.Tok.Text)
	}
	l := &ir.List{Elems: make([]ir.Expr, len(n.Kids))}
	for i, kid := range n.Kids {
		l.Elems[i] = tensorValue(kid)
	}
	return l
}

// kind converts an optional Kind node into a declared shape and type.
func kind(n *syntax.Node) (*ir.Shape, ir.TensorType, error) {
	if n == nil {
		return nil, "", nil
	}
	var typ ir.TensorType
	if t := n.Kid(0); t != nil {
		typ = ir.TensorType(t.Tok.Text)
	}
	var s *ir.Shape
	if sn := n.Kid(1); sn != nil {
		var err error
		if s, err = shape(sn); err != nil {
			return nil, "", err
		}
	}
	return s, typ, nil
}

func shape(n *syntax.Node) (*ir.Shape, error) {
	s := &ir.Shape{Dims: []ir.Dim{}}
	for _, d := range n.Kids {
		if d.Tok.Is("?") {
			s.Dims = append(s.Dims, ir.UnknownDim)
			continue
		}
		v, err := strconv.ParseInt(d.Tok.Text, 10, 64)
		if err != nil {
			return nil, compileErrorf(ErrInvalidLiteral, d.Pos(), "", "invalid dimension %q", d.Tok.Text)
		}
		s.Dims = append(s.Dims, ir.Dim(v))
	}
	return s, nil
}
