package ir

// Node is a sealed interface over every IR tree node.
type Node interface {
	irNode() // Sealed - only types in this package implement it
}

// Expr is a node that produces a value when the backend evaluates it.
type Expr interface {
	Node
	irExpr()
}

type exprNode struct{}

func (exprNode) irNode() {}
func (exprNode) irExpr() {}

type declNode struct{}

func (declNode) irNode() {}

// TensorType is an element type name such as "float" or "int32".
// The empty string means no type was declared.
type TensorType string

// UnknownDim marks a dimension written as "?".
const UnknownDim Dim = -1

// Dim is one tensor dimension.
type Dim int64

// Shape is a declared tensor shape. A nil *Shape means no shape was declared;
// an empty Dims slice is the scalar shape "<>".
type Shape struct {
	Dims []Dim
}

// Whole is an integral numeral with its exact source digits, sign included.
type Whole struct {
	exprNode
	Digits string
}

// Fraction is a decimal numeral with its exact source digits, sign included.
type Fraction struct {
	exprNode
	Digits string
}

type Bool struct {
	exprNode
	Value bool
}

type String struct {
	exprNode
	Value string
}

type List struct {
	exprNode
	Elems []Expr
}

// Tensor is a tensor literal. Name, Shape and Type are slots filled in by the
// rewriter; Value is a numeral or a List of tensor elements.
type Tensor struct {
	exprNode
	Name  string
	Shape *Shape
	Type  TensorType
	Value Expr
}

// ShapeLit is a shape used as an attribute value, e.g. shape: <5, 5>.
type ShapeLit struct {
	exprNode
	Shape Shape
}

// Local references a local binding.
type Local struct {
	exprNode
	Name string
}

// AttrRef references an attribute of the enclosing graph or function.
type AttrRef struct {
	exprNode
	Name string
}

// PackageRef is a package-qualified member lookup such as tf.add.
// It carries an explicit name slot like an application does.
type PackageRef struct {
	exprNode
	Name    string
	Package string
	Member  string
}

// Index selects a named output (String) or a position (Whole) of Target.
type Index struct {
	exprNode
	Target Expr
	Index  Expr
}

// Above is the result of the immediately preceding expression in a body.
type Above struct {
	exprNode
}

// Here is the implicit argument slot of a pipeline stage. It never survives
// rewriting.
type Here struct {
	exprNode
}

type Cond struct {
	exprNode
	Pred Expr
	Then Expr
	Else Expr
}

// Retval pairs an externally visible output name with the local bound to it.
type Retval struct {
	Name  string
	Local string
}

// WhileLoop is a loop lowered into explicit carried-state form.
type WhileLoop struct {
	exprNode
	Cond    Expr
	Body    []Expr
	Retvals []Retval
	Init    []Expr
}

// DefineLocal binds Name to Value in the enclosing body.
type DefineLocal struct {
	exprNode
	Name  string
	Value Expr
}

// DefineAttr binds Name as an attribute of the enclosing graph or package.
type DefineAttr struct {
	exprNode
	Name  string
	Value Expr
}

// Entry is one name/value pair of an attribute or keyword map.
type Entry struct {
	Name  string
	Value Expr
}

// AttrMap is an attribute block. Ellipsis marks a partial application that
// expects more attributes in a later block; a block holds at most one.
type AttrMap struct {
	Ellipsis bool
	Entries  []Entry
}

// Lookup returns the value bound to name in the block.
func (m *AttrMap) Lookup(name string) (Expr, bool) {
	if m == nil {
		return nil, false
	}
	for _, e := range m.Entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

// KeywordMap holds the arguments of a keyword application in source order.
type KeywordMap struct {
	Entries []Entry
}

// Apply is a positional application. Name is the explicit name slot.
type Apply struct {
	exprNode
	Name   string
	Callee Expr
	Attrs  *AttrMap
	Args   []Expr
}

// ApplyKeywords is an application with named arguments.
type ApplyKeywords struct {
	exprNode
	Name   string
	Callee Expr
	Attrs  *AttrMap
	Args   *KeywordMap
}

// ApplyAttrs binds attributes to a callee without invoking it.
type ApplyAttrs struct {
	exprNode
	Callee Expr
	Attrs  *AttrMap
}

type AssertType struct {
	exprNode
	Type  TensorType
	Value Expr
}

type AssertShape struct {
	exprNode
	Shape Shape
	Value Expr
}

// AfterLeaves evaluates Exprs once every pending leaf has settled. The last
// expression is the produced value.
type AfterLeaves struct {
	exprNode
	Exprs []Expr
}

// Var declares a mutable variable.
type Var struct {
	exprNode
	Name  string
	Shape *Shape
	Type  TensorType
	Init  Expr
}

// VarUpdate assigns a new value to a variable declared with Var.
type VarUpdate struct {
	exprNode
	Name  string
	Value Expr
}

// Param is an attribute or input parameter of a definition.
type Param struct {
	Name  string
	Shape *Shape
	Type  TensorType
}

// Definition is a function or, when Macro is set, a macro. A macro is a
// definition written without an input-parameter list.
type Definition struct {
	exprNode
	Name    string
	Macro   bool
	Attrs   []Param
	Inputs  []Param
	Retvals []Retval
	Body    []Expr
}

// AttrNames returns the declared attribute names in order.
func (d *Definition) AttrNames() []string {
	names := make([]string, len(d.Attrs))
	for i, a := range d.Attrs {
		names[i] = a.Name
	}
	return names
}

// ImportSpec is one imported package: local alias, logical path and
// optional scope (the part after ':' in the source string).
type ImportSpec struct {
	Name  string
	Path  string
	Scope string
}

// Key is the memoization key of the import, "path" or "path:scope".
func (s ImportSpec) Key() string {
	if s.Scope == "" {
		return s.Path
	}
	return s.Path + ":" + s.Scope
}

type Import struct {
	declNode
	Specs []ImportSpec
}

// Package is one resolved native package.
type Package struct {
	declNode
	Name  string
	Decls []Node
}

// Imports returns every import spec of the package in declaration order.
func (p *Package) Imports() []ImportSpec {
	var specs []ImportSpec
	for _, d := range p.Decls {
		if imp, ok := d.(*Import); ok {
			specs = append(specs, imp.Specs...)
		}
	}
	return specs
}

// ForeignPackage carries content in another language, untouched.
type ForeignPackage struct {
	declNode
	Language string
	Name     string
	Scope    string
	Content  string
}

// Raw-only forms. The builder produces them and the rewriter consumes them;
// final IR never contains any of these.

// Named is "expr -- name" or the right-hand side of an assignment.
type Named struct {
	exprNode
	Name  string
	Value Expr
}

// Let is a binding with an optional declared shape and type.
type Let struct {
	exprNode
	Name  string
	Shape *Shape
	Type  TensorType
	Value Expr
}

// Pipeline is a chain of stages "a(); b(here)".
type Pipeline struct {
	exprNode
	Stages []Expr
}

// For is a loop before lowering. Init holds Let initializers.
type For struct {
	exprNode
	Init []Expr
	Cond Expr
	Body []Expr
}

// RetvalDecl is an output declaration "<- name kind = value".
type RetvalDecl struct {
	exprNode
	Name  string
	Shape *Shape
	Type  TensorType
	Value Expr
}

// IsRaw reports whether n is a builder-only form.
func IsRaw(n Node) bool {
	switch n.(type) {
	case *Named, *Let, *Pipeline, *For, *RetvalDecl:
		return true
	}
	return false
}
