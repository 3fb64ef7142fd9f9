package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nao/internal/ir"
)

// compileDef compiles src and returns the last top-level definition.
func compileDef(t *testing.T, src string) *ir.Definition {
	t.Helper()
	pkg, err := CompileSource("test", "test.nao", src)
	require.NoError(t, err)
	require.NotEmpty(t, pkg.Decls)

	da, ok := pkg.Decls[len(pkg.Decls)-1].(*ir.DefineAttr)
	require.True(t, ok, "expected a definition, got %T", pkg.Decls[len(pkg.Decls)-1])
	def, ok := da.Value.(*ir.Definition)
	require.True(t, ok)
	return def
}

func tensor(digits string) *ir.Tensor {
	return &ir.Tensor{Value: &ir.Whole{Digits: digits}}
}

// =============================================================================
// Name Propagation
// =============================================================================

func TestRewriteNameSlots(t *testing.T) {
	def := compileDef(t, "func f() {\n  x = tf.add(1, 2)\n  t = 3\n  p = tf.add\n}")
	require.Len(t, def.Body, 3)

	assert.Equal(t, &ir.Apply{
		Name:   "x",
		Callee: tfRef("add"),
		Args:   []ir.Expr{tensor("1"), tensor("2")},
	}, def.Body[0])
	assert.Equal(t, &ir.Tensor{Name: "t", Value: &ir.Whole{Digits: "3"}}, def.Body[1])
	assert.Equal(t, &ir.PackageRef{Name: "p", Package: "tf", Member: "add"}, def.Body[2])
}

func TestRewriteNameWrappers(t *testing.T) {
	def := compileDef(t, "func f(x) {\n  l = {1, 2}\n  i = x:out\n  c = if x { 1 } else { 2 }\n  y = x\n  g = f[a: 1, ...]\n}")
	require.Len(t, def.Body, 5)

	assert.Equal(t, &ir.DefineLocal{Name: "l", Value: &ir.List{Elems: []ir.Expr{tensor("1"), tensor("2")}}}, def.Body[0])
	assert.Equal(t, &ir.DefineLocal{Name: "i", Value: &ir.Index{
		Target: &ir.Local{Name: "x"},
		Index:  &ir.String{Value: "out"},
	}}, def.Body[1])
	assert.Equal(t, &ir.DefineLocal{Name: "c", Value: &ir.Cond{
		Pred: &ir.Local{Name: "x"}, Then: tensor("1"), Else: tensor("2"),
	}}, def.Body[2])
	assert.Equal(t, &ir.DefineLocal{Name: "y", Value: &ir.Local{Name: "x"}}, def.Body[3])

	g, ok := def.Body[4].(*ir.DefineLocal)
	require.True(t, ok)
	assert.IsType(t, &ir.ApplyAttrs{}, g.Value)
}

func TestRewriteExplicitNameOperator(t *testing.T) {
	def := compileDef(t, "func f(x) {\n  tf.add(x, x) -- s\n  x -- alias\n}")
	assert.Equal(t, "s", def.Body[0].(*ir.Apply).Name)
	assert.Equal(t, &ir.DefineLocal{Name: "alias", Value: &ir.Local{Name: "x"}}, def.Body[1])
}

func TestRewriteMacroBindsAttributes(t *testing.T) {
	macro := compileDef(t, "graph g {\n  x = {1}\n}")
	fn := compileDef(t, "func f() {\n  x = {1}\n}")

	assert.Equal(t, &ir.DefineAttr{Name: "x", Value: &ir.List{Elems: []ir.Expr{tensor("1")}}}, macro.Body[0])
	assert.Equal(t, &ir.DefineLocal{Name: "x", Value: &ir.List{Elems: []ir.Expr{tensor("1")}}}, fn.Body[0])
}

func TestRewritePackageBindingsAreAttributes(t *testing.T) {
	pkg, err := CompileSource("test", "", "let weights = {1}\nlet w float <2> = 1")
	require.NoError(t, err)
	require.Len(t, pkg.Decls, 2)

	assert.Equal(t, &ir.DefineAttr{Name: "weights", Value: &ir.List{Elems: []ir.Expr{tensor("1")}}}, pkg.Decls[0])
	assert.Equal(t, &ir.Tensor{
		Name:  "w",
		Shape: &ir.Shape{Dims: []ir.Dim{2}},
		Type:  "float",
		Value: &ir.Whole{Digits: "1"},
	}, pkg.Decls[1])
}

// =============================================================================
// Shape and Type Propagation
// =============================================================================

func TestRewriteShapeAndTypeOnTensorSlots(t *testing.T) {
	def := compileDef(t, "func f() {\n  let w float <2, ?> = 1\n}")
	assert.Equal(t, &ir.Tensor{
		Name:  "w",
		Shape: &ir.Shape{Dims: []ir.Dim{2, ir.UnknownDim}},
		Type:  "float",
		Value: &ir.Whole{Digits: "1"},
	}, def.Body[0])
}

func TestRewriteShapeAndTypePushedIntoLocal(t *testing.T) {
	def := compileDef(t, "func f() {\n  let s float <1> = {1}\n}")
	assert.Equal(t, &ir.DefineLocal{
		Name: "s",
		Value: &ir.AssertType{
			Type: "float",
			Value: &ir.AssertShape{
				Shape: ir.Shape{Dims: []ir.Dim{1}},
				Value: &ir.List{Elems: []ir.Expr{tensor("1")}},
			},
		},
	}, def.Body[0])
}

func TestRewriteAssertionWrapsApply(t *testing.T) {
	def := compileDef(t, "func f(x) {\n  let y float = tf.add(x, x)\n}")
	assert.Equal(t, &ir.AssertType{
		Type: "float",
		Value: &ir.Apply{
			Name:   "y",
			Callee: tfRef("add"),
			Args:   []ir.Expr{&ir.Local{Name: "x"}, &ir.Local{Name: "x"}},
		},
	}, def.Body[0])
}

func TestRewriteShapeOnFunctionIsInternal(t *testing.T) {
	_, err := CompileSource("test", "", "func f() {\n  let g <2> = func() {\n  }\n}")
	require.Error(t, err)
	assert.True(t, IsInternal(err))
	assert.Equal(t, ErrAssertOnFunction, ErrorCode(err))
}

func TestRewriteVar(t *testing.T) {
	def := compileDef(t, "func f() {\n  var v float <> = 0\n  v := v + 1\n}")
	scalar := &ir.Shape{Dims: []ir.Dim{}}

	assert.Equal(t, &ir.Var{
		Name:  "v",
		Shape: scalar,
		Type:  "float",
		Init:  &ir.Tensor{Shape: scalar, Type: "float", Value: &ir.Whole{Digits: "0"}},
	}, def.Body[0])
	assert.Equal(t, &ir.VarUpdate{Name: "v", Value: &ir.Apply{
		Callee: tfRef("add"),
		Args:   []ir.Expr{&ir.Local{Name: "v"}, tensor("1")},
	}}, def.Body[1])
}

// =============================================================================
// Pipelines
// =============================================================================

func TestRewritePipelineBindsValueOnce(t *testing.T) {
	def := compileDef(t, "func f() {\n  A(); B(here, here)\n}")
	require.Len(t, def.Body, 1)

	a := &ir.Apply{Callee: &ir.Local{Name: "A"}, Args: []ir.Expr{}}
	assert.Equal(t, &ir.Apply{
		Callee: &ir.Local{Name: "B"},
		Args: []ir.Expr{
			&ir.Apply{Name: "anon0", Callee: tfRef("identity"), Args: []ir.Expr{a}},
			&ir.Local{Name: "anon0"},
		},
	}, def.Body[0])

	calls := 0
	ir.Walk(def.Body[0], func(n ir.Node) bool {
		if app, ok := n.(*ir.Apply); ok {
			if l, ok := app.Callee.(*ir.Local); ok && l.Name == "A" {
				calls++
			}
		}
		return true
	})
	assert.Equal(t, 1, calls)
}

func TestRewritePipelineNonApplyStage(t *testing.T) {
	def := compileDef(t, "func f(x) {\n  x; g\n}")
	assert.Equal(t, &ir.Apply{
		Callee: &ir.Local{Name: "g"},
		Args:   []ir.Expr{&ir.Local{Name: "x"}},
	}, def.Body[0])
}

func TestRewritePipelineWithoutHereDropsValue(t *testing.T) {
	def := compileDef(t, "func f(x) {\n  x; g(1)\n}")
	assert.Equal(t, &ir.Apply{
		Callee: &ir.Local{Name: "g"},
		Args:   []ir.Expr{tensor("1")},
	}, def.Body[0])
}

func TestRewritePipelineFreshNamesPerRewriter(t *testing.T) {
	src := "func f(x) {\n  x; g(here)\n  x; h(here)\n}"
	first := compileDef(t, src)
	second := compileDef(t, src)

	assert.Equal(t, first, second, "names must not leak between compilations")
	assert.Equal(t, "anon0", first.Body[0].(*ir.Apply).Args[0].(*ir.Apply).Name)
	assert.Equal(t, "anon1", first.Body[1].(*ir.Apply).Args[0].(*ir.Apply).Name)
}

func TestRewritePipelineDoesNotEnterConditionals(t *testing.T) {
	def := compileDef(t, "func f(x) {\n  x; g(if x { here } else { 1 })\n}")
	app := def.Body[0].(*ir.Apply)
	cond := app.Args[0].(*ir.Cond)
	assert.Equal(t, &ir.Here{}, cond.Then)

	errs := Validate(def)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnresolvedHere, errs[0].Code)
}

func TestRewriteNamedPipeline(t *testing.T) {
	def := compileDef(t, "func f(x) {\n  y = x; g(here)\n}")
	app := def.Body[0].(*ir.Apply)
	assert.Equal(t, "y", app.Name)
	assert.Equal(t, "anon0", app.Args[0].(*ir.Apply).Name)
}

// =============================================================================
// Output Declarations and Loops
// =============================================================================

func TestRewriteRetvals(t *testing.T) {
	def := compileDef(t, "func f(a) {\n  <- y = a\n  <- z = tf.add(a, a)\n  <- w\n}")

	assert.Equal(t, []ir.Retval{
		{Name: "y", Local: "a"},
		{Name: "z", Local: "retval1"},
		{Name: "w", Local: "retval2"},
	}, def.Retvals)
	assert.Equal(t, []ir.Expr{
		&ir.Local{Name: "a"},
		&ir.Apply{Name: "retval1", Callee: tfRef("add"), Args: []ir.Expr{&ir.Local{Name: "a"}, &ir.Local{Name: "a"}}},
		&ir.DefineLocal{Name: "retval2", Value: &ir.Local{Name: "w"}},
	}, def.Body)
	assert.Empty(t, Validate(def))
}

func TestRewriteRetvalKeepsExplicitName(t *testing.T) {
	def := compileDef(t, "func f(a) {\n  <- y = tf.add(a, a) -- s\n}")
	assert.Equal(t, []ir.Retval{{Name: "y", Local: "s"}}, def.Retvals)
}

func TestRewriteRetvalOfAttribute(t *testing.T) {
	def := compileDef(t, "func f[k]() {\n  <- y = k\n}")
	assert.Equal(t, []ir.Retval{{Name: "y", Local: "retval0"}}, def.Retvals)
	assert.Equal(t, &ir.DefineLocal{Name: "retval0", Value: &ir.AttrRef{Name: "k"}}, def.Body[0])
}

func TestRewriteRetvalTypeBeforeName(t *testing.T) {
	def := compileDef(t, "func f(a) {\n  <- y float = tf.add(a, a)\n}")
	assert.Equal(t, &ir.DefineLocal{
		Name: "retval0",
		Value: &ir.AssertType{Type: "float", Value: &ir.Apply{
			Callee: tfRef("add"),
			Args:   []ir.Expr{&ir.Local{Name: "a"}, &ir.Local{Name: "a"}},
		}},
	}, def.Body[0])
}

func TestRewriteLoopLowering(t *testing.T) {
	def := compileDef(t, "func f() {\n  out = for x = 1; x <= 5 {\n    <- x = x + 1\n  }\n  <- r = out:x\n}")
	require.Len(t, def.Body, 2)

	assert.Equal(t, &ir.DefineLocal{Name: "out", Value: &ir.WhileLoop{
		Cond: &ir.Apply{Callee: tfRef("less_equal"), Args: []ir.Expr{&ir.Local{Name: "x"}, tensor("5")}},
		Body: []ir.Expr{
			&ir.Apply{Name: "retval0", Callee: tfRef("add"), Args: []ir.Expr{&ir.Local{Name: "x"}, tensor("1")}},
		},
		Retvals: []ir.Retval{{Name: "x", Local: "retval0"}},
		Init:    []ir.Expr{&ir.Tensor{Name: "x", Value: &ir.Whole{Digits: "1"}}},
	}}, def.Body[0])

	assert.Equal(t, []ir.Retval{{Name: "r", Local: "retval0"}}, def.Retvals)
	assert.Empty(t, Validate(def))
}

// =============================================================================
// After-leaves
// =============================================================================

func TestRewriteAfterLeavesNamedThroughIdentity(t *testing.T) {
	def := compileDef(t, "func f() {\n  x = after __leaves { tf.add(1, 2) }\n}")
	assert.Equal(t, ir.Identity("tf", "x", &ir.AfterLeaves{Exprs: []ir.Expr{
		&ir.Apply{Callee: tfRef("add"), Args: []ir.Expr{tensor("1"), tensor("2")}},
	}}), def.Body[0])
}

func TestRewriteAfterLeavesTypePushedOnLast(t *testing.T) {
	def := compileDef(t, "func f() {\n  <- y float = after __leaves { 1 }\n}")
	assert.Equal(t, ir.Identity("tf", "retval0", &ir.AfterLeaves{Exprs: []ir.Expr{
		&ir.Tensor{Type: "float", Value: &ir.Whole{Digits: "1"}},
	}}), def.Body[0])
}

func TestRewriteAfterLeavesCollectsRetvals(t *testing.T) {
	def := compileDef(t, "func f(a) {\n  after __leaves {\n    <- y = a\n  }\n}")
	assert.Equal(t, []ir.Retval{{Name: "y", Local: "a"}}, def.Retvals)
}

func TestRewriteEmptyAfterLeavesIsInternal(t *testing.T) {
	_, err := CompileSource("test", "", "func f() {\n  <- y float = after __leaves { }\n}")
	require.Error(t, err)
	assert.True(t, IsInternal(err))
	assert.Equal(t, ErrEmptyAfterLeaves, ErrorCode(err))
}

func TestWithNameUnhandledKindIsInternal(t *testing.T) {
	r := NewRewriter()
	_, err := r.withName(&ir.VarUpdate{Name: "v", Value: tensor("1")}, "x")
	require.Error(t, err)
	assert.True(t, IsInternal(err))
	assert.Equal(t, ErrUnhandledKind, ErrorCode(err))
}

func TestExpressionName(t *testing.T) {
	tests := []struct {
		name string
		expr ir.Expr
		want string
	}{
		{"named apply", &ir.Apply{Name: "a"}, "a"},
		{"local", &ir.Local{Name: "l"}, "l"},
		{"assertion", &ir.AssertShape{Value: &ir.Tensor{Name: "t"}}, "t"},
		{"after leaves", &ir.AfterLeaves{Exprs: []ir.Expr{&ir.Local{Name: "x"}, &ir.Local{Name: "y"}}}, "y"},
		{"index", &ir.Index{Target: &ir.Local{Name: "x"}}, ""},
		{"list", &ir.List{}, ""},
		{"literal", &ir.Whole{Digits: "1"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpressionName(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
