package engine

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/nao/internal/compiler"
	"github.com/roach88/nao/internal/ir"
)

// decimalCtx is the context for all arithmetic. Source numerals are kept
// exact well beyond float64 precision.
var decimalCtx = apd.BaseContext.WithPrecision(50)

// Value is a runtime value. Only the types in this file implement it.
type Value interface {
	isValue()
}

// Number is an exact decimal scalar. The decimal is never mutated after
// construction.
type Number struct {
	D *apd.Decimal
}

// Bool is a boolean scalar.
type Bool bool

// Str is a string scalar.
type Str string

// List is a tensor of rank one or more, as nested lists.
type List []Value

// ShapeValue is a shape passed as an attribute.
type ShapeValue ir.Shape

// Outputs is the result of applying a definition or running a loop: its
// declared outputs in declaration order.
type Outputs struct {
	Names  []string
	Values map[string]Value
}

// Func is a definition closed over the frame it was defined in, with the
// attributes bound so far.
type Func struct {
	def     *ir.Definition
	closure *frame
	curry   *compiler.Curry
	attrs   map[string]Value
}

// Builtin is a member of the builtin namespace.
type Builtin struct {
	Qualified string
	fn        builtinFunc
}

// Namespace is an imported package used as a value.
type Namespace struct {
	Key     string
	pkg     *pkgEnv
	builtin bool
	foreign *ir.ForeignPackage
}

func (Number) isValue()     {}
func (Bool) isValue()       {}
func (Str) isValue()        {}
func (List) isValue()       {}
func (ShapeValue) isValue() {}
func (*Outputs) isValue()   {}
func (*Func) isValue()      {}
func (*Builtin) isValue()   {}
func (*Namespace) isValue() {}

// NewNumber parses decimal digits, such as "-3" or "2.5".
func NewNumber(digits string) (Number, error) {
	d, _, err := apd.NewFromString(digits)
	if err != nil {
		return Number{}, runtimeErrorf(ErrCodeTypeMismatch, "invalid numeral %q", digits)
	}
	return Number{D: d}, nil
}

// Int returns n as a Number.
func Int(n int64) Number {
	return Number{D: apd.New(n, 0)}
}

func (n Number) String() string {
	return n.D.Text('f')
}

// Name is the definition name, or "function literal".
func (f *Func) Name() string {
	if f.def.Name != "" {
		return f.def.Name
	}
	return "function literal"
}

// Get returns the output called name.
func (o *Outputs) Get(name string) (Value, bool) {
	v, ok := o.Values[name]
	return v, ok
}

// Format renders a value for display.
func Format(v Value) string {
	switch v := v.(type) {
	case nil:
		return "<nothing>"
	case Number:
		return v.String()
	case Bool:
		if v {
			return "true"
		}
		return "false"
	case Str:
		return fmt.Sprintf("%q", string(v))
	case List:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = Format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ShapeValue:
		dims := make([]string, len(v.Dims))
		for i, d := range v.Dims {
			if d == ir.UnknownDim {
				dims[i] = "?"
			} else {
				dims[i] = fmt.Sprint(int64(d))
			}
		}
		return "<" + strings.Join(dims, ", ") + ">"
	case *Outputs:
		parts := make([]string, 0, len(v.Names))
		for _, name := range v.Names {
			if val, ok := v.Values[name]; ok {
				parts = append(parts, name+": "+Format(val))
			}
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Func:
		return "<function " + v.Name() + ">"
	case *Builtin:
		return "<builtin " + v.Qualified + ">"
	case *Namespace:
		return "<package " + v.Key + ">"
	}
	return fmt.Sprintf("<%T>", v)
}

// scalar unwraps the value a single-output application stands for: an
// Outputs used as an operand means its first output.
func scalar(v Value) (Value, error) {
	if o, ok := v.(*Outputs); ok {
		for _, name := range o.Names {
			if val, ok := o.Values[name]; ok {
				return scalar(val)
			}
		}
		return nil, runtimeErrorf(ErrCodeTypeMismatch, "application has no outputs to use as a value")
	}
	return v, nil
}

func asNumber(v Value) (Number, error) {
	v, err := scalar(v)
	if err != nil {
		return Number{}, err
	}
	n, ok := v.(Number)
	if !ok {
		return Number{}, runtimeErrorf(ErrCodeTypeMismatch, "expected a number, got %s", Format(v))
	}
	return n, nil
}

func asBool(v Value) (Bool, error) {
	v, err := scalar(v)
	if err != nil {
		return false, err
	}
	b, ok := v.(Bool)
	if !ok {
		return false, runtimeErrorf(ErrCodeTypeMismatch, "expected a bool, got %s", Format(v))
	}
	return b, nil
}

// equal compares two scalars or lists element-wise.
func equal(a, b Value) (bool, error) {
	a, err := scalar(a)
	if err != nil {
		return false, err
	}
	if b, err = scalar(b); err != nil {
		return false, err
	}
	switch a := a.(type) {
	case Number:
		bn, ok := b.(Number)
		return ok && a.D.Cmp(bn.D) == 0, nil
	case Bool:
		bb, ok := b.(Bool)
		return ok && a == bb, nil
	case Str:
		bs, ok := b.(Str)
		return ok && a == bs, nil
	case List:
		bl, ok := b.(List)
		if !ok || len(a) != len(bl) {
			return false, nil
		}
		for i := range a {
			eq, err := equal(a[i], bl[i])
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	}
	return false, runtimeErrorf(ErrCodeTypeMismatch, "cannot compare %s", Format(a))
}

// checkType enforces a tensor type on a value. Unknown type names are not
// checked.
func checkType(v Value, t ir.TensorType) error {
	if t == "" {
		return nil
	}
	v, err := scalar(v)
	if err != nil {
		return err
	}
	if l, ok := v.(List); ok {
		for _, e := range l {
			if err := checkType(e, t); err != nil {
				return err
			}
		}
		return nil
	}

	name := string(t)
	switch {
	case name == "bool":
		if _, ok := v.(Bool); ok {
			return nil
		}
	case name == "string":
		if _, ok := v.(Str); ok {
			return nil
		}
	case strings.HasPrefix(name, "int"), strings.HasPrefix(name, "uint"):
		n, ok := v.(Number)
		if !ok {
			break
		}
		var r apd.Decimal
		r.Reduce(n.D)
		if r.Exponent < 0 {
			return runtimeErrorf(ErrCodeTypeMismatch, "%s is not a valid %s", n, name)
		}
		if strings.HasPrefix(name, "uint") && n.D.Negative {
			return runtimeErrorf(ErrCodeTypeMismatch, "%s is not a valid %s", n, name)
		}
		return nil
	case strings.HasPrefix(name, "float"), name == "double", name == "half", name == "bfloat16":
		if _, ok := v.(Number); ok {
			return nil
		}
	default:
		return nil
	}
	return runtimeErrorf(ErrCodeTypeMismatch, "%s is not a valid %s", Format(v), name)
}

// checkShape enforces a shape: no dimensions means a scalar, otherwise each
// known dimension must match the list length at that depth.
func checkShape(v Value, s ir.Shape) error {
	v, err := scalar(v)
	if err != nil {
		return err
	}
	return checkDims(v, s.Dims, s)
}

func checkDims(v Value, dims []ir.Dim, s ir.Shape) error {
	l, isList := v.(List)
	if len(dims) == 0 {
		if isList {
			return runtimeErrorf(ErrCodeTypeMismatch, "%s does not have shape %s", Format(v), Format(ShapeValue(s)))
		}
		return nil
	}
	if !isList || (dims[0] != ir.UnknownDim && int64(len(l)) != int64(dims[0])) {
		return runtimeErrorf(ErrCodeTypeMismatch, "%s does not have shape %s", Format(v), Format(ShapeValue(s)))
	}
	for _, e := range l {
		if err := checkDims(e, dims[1:], s); err != nil {
			return err
		}
	}
	return nil
}
