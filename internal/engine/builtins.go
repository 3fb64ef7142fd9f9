package engine

import (
	"strings"

	"github.com/cockroachdb/apd/v3"
)

type builtinFunc func(args []Value) (Value, error)

// builtins is the builtin namespace. Operators lower onto these members.
var builtins = map[string]builtinFunc{
	"add":      arith(decimalCtx.Add),
	"subtract": arith(decimalCtx.Sub),
	"multiply": arith(decimalCtx.Mul),
	"divide":   arith(decimalCtx.Quo),
	"mod":      arith(decimalCtx.Rem),
	"maximum":  pick(func(c int) bool { return c >= 0 }),
	"minimum":  pick(func(c int) bool { return c <= 0 }),

	"less":          compare(func(c int) bool { return c < 0 }),
	"less_equal":    compare(func(c int) bool { return c <= 0 }),
	"greater":       compare(func(c int) bool { return c > 0 }),
	"greater_equal": compare(func(c int) bool { return c >= 0 }),
	"equal":         equality(true),
	"not_equal":     equality(false),

	"logical_and": logical(func(a, b bool) bool { return a && b }),
	"logical_or":  logical(func(a, b bool) bool { return a || b }),
	"logical_not": logicalNot,

	"negative": unary(func(d, x *apd.Decimal) { d.Neg(x) }),
	"abs":      unary(func(d, x *apd.Decimal) { d.Abs(x) }),
	"identity": identity,
	"Assert":   assertTrue,
}

func lookupBuiltin(ns, member string) (*Builtin, bool) {
	fn, ok := builtins[member]
	if !ok {
		return nil, false
	}
	return &Builtin{Qualified: ns + "." + member, fn: fn}, true
}

func arity(args []Value, n int) error {
	if len(args) != n {
		return runtimeErrorf(ErrCodeArity, "expected %d arguments, got %d", n, len(args))
	}
	return nil
}

func numbers(args []Value, n int) ([]Number, error) {
	if err := arity(args, n); err != nil {
		return nil, err
	}
	out := make([]Number, n)
	for i, a := range args {
		num, err := asNumber(a)
		if err != nil {
			return nil, err
		}
		out[i] = num
	}
	return out, nil
}

func arith(op func(d, x, y *apd.Decimal) (apd.Condition, error)) builtinFunc {
	return func(args []Value) (Value, error) {
		nums, err := numbers(args, 2)
		if err != nil {
			return nil, err
		}
		d := new(apd.Decimal)
		if _, err := op(d, nums[0].D, nums[1].D); err != nil {
			return nil, runtimeErrorf(ErrCodeArithmetic, "%s", err)
		}
		return Number{D: d}, nil
	}
}

func pick(first func(cmp int) bool) builtinFunc {
	return func(args []Value) (Value, error) {
		nums, err := numbers(args, 2)
		if err != nil {
			return nil, err
		}
		if first(nums[0].D.Cmp(nums[1].D)) {
			return nums[0], nil
		}
		return nums[1], nil
	}
}

func compare(holds func(cmp int) bool) builtinFunc {
	return func(args []Value) (Value, error) {
		nums, err := numbers(args, 2)
		if err != nil {
			return nil, err
		}
		return Bool(holds(nums[0].D.Cmp(nums[1].D))), nil
	}
}

func equality(want bool) builtinFunc {
	return func(args []Value) (Value, error) {
		if err := arity(args, 2); err != nil {
			return nil, err
		}
		eq, err := equal(args[0], args[1])
		if err != nil {
			return nil, err
		}
		return Bool(eq == want), nil
	}
}

func logical(op func(a, b bool) bool) builtinFunc {
	return func(args []Value) (Value, error) {
		if err := arity(args, 2); err != nil {
			return nil, err
		}
		a, err := asBool(args[0])
		if err != nil {
			return nil, err
		}
		b, err := asBool(args[1])
		if err != nil {
			return nil, err
		}
		return Bool(op(bool(a), bool(b))), nil
	}
}

func logicalNot(args []Value) (Value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	b, err := asBool(args[0])
	if err != nil {
		return nil, err
	}
	return !b, nil
}

func unary(op func(d, x *apd.Decimal)) builtinFunc {
	return func(args []Value) (Value, error) {
		nums, err := numbers(args, 1)
		if err != nil {
			return nil, err
		}
		d := new(apd.Decimal)
		op(d, nums[0].D)
		return Number{D: d}, nil
	}
}

func identity(args []Value) (Value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	return args[0], nil
}

// assertTrue fails with its data arguments when the condition is false.
func assertTrue(args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, runtimeErrorf(ErrCodeArity, "Assert needs a condition")
	}
	ok, err := asBool(args[0])
	if err != nil {
		return nil, err
	}
	if ok {
		return Bool(true), nil
	}
	parts := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		if s, isStr := a.(Str); isStr {
			parts = append(parts, string(s))
		} else {
			parts = append(parts, Format(a))
		}
	}
	msg := "assertion failed"
	if len(parts) > 0 {
		msg += ": " + strings.Join(parts, " ")
	}
	return nil, &RuntimeError{Code: ErrCodeAssertionFailed, Message: msg}
}
