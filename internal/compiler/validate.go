package compiler

import (
	"fmt"

	"github.com/roach88/nao/internal/ir"
)

// Validation error codes (E400-E499). They check the invariants final IR
// must hold before it is handed to a backend.
const (
	// General validation errors (E400)
	ErrUnsupportedIRType = "E400" // unsupported IR type for validation

	ErrUnboundRetval     = "E401" // retval refers to a local the body never binds
	ErrLoopWithoutOutput = "E402" // a loop whose value is used declares no outputs
	ErrApplyEllipsis     = "E403" // ellipsis in the attribute block of an application
	ErrRawNode           = "E404" // builder-only form left in final IR
	ErrUnresolvedHere    = "E405" // here placeholder outside any pipeline stage
)

// ValidationError represents an invariant violation in final IR.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks rewritten IR. It returns every violation found instead of
// stopping at the first one. Supports packages and definitions.
func Validate(v any) []ValidationError {
	val := &validator{}
	switch n := v.(type) {
	case *ir.Package:
		val.pkg(n)
	case *ir.Definition:
		val.definition(n, "definition")
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
	return val.errs
}

type validator struct {
	errs []ValidationError
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
}

func (v *validator) pkg(p *ir.Package) {
	for i, d := range p.Decls {
		field := fmt.Sprintf("%s.decls[%d]", p.Name, i)
		if e, ok := d.(ir.Expr); ok {
			v.stmt(e, field)
		}
	}
}

func (v *validator) definition(d *ir.Definition, field string) {
	bound := map[string]bool{}
	for _, in := range d.Inputs {
		bound[in.Name] = true
	}
	v.body(d.Body, field, bound)
	v.retvals(d.Retvals, field, bound)
}

// body validates statements and records the locals they bind.
func (v *validator) body(stmts []ir.Expr, field string, bound map[string]bool) {
	for i, s := range stmts {
		sf := fmt.Sprintf("%s.body[%d]", field, i)
		if after, ok := s.(*ir.AfterLeaves); ok {
			v.body(after.Exprs, sf, bound)
			continue
		}
		v.stmt(s, sf)
		if name := boundName(s); name != "" {
			bound[name] = true
		}
		if da, ok := s.(*ir.DefineAttr); ok {
			bound[da.Name] = true
		}
	}
}

func (v *validator) retvals(retvals []ir.Retval, field string, bound map[string]bool) {
	for i, r := range retvals {
		if !bound[r.Local] {
			v.add(fmt.Sprintf("%s.retvals[%d]", field, i), ErrUnboundRetval,
				"output %q refers to %q, which the body does not bind", r.Name, r.Local)
		}
	}
}

// stmt validates a statement. A loop in statement position may run for its
// effects alone and so may declare no outputs.
func (v *validator) stmt(e ir.Expr, field string) {
	if loop, ok := e.(*ir.WhileLoop); ok {
		v.loop(loop, field)
		return
	}
	v.expr(e, field)
}

func (v *validator) loop(l *ir.WhileLoop, field string) {
	bound := map[string]bool{}
	for i, init := range l.Init {
		v.stmt(init, fmt.Sprintf("%s.init[%d]", field, i))
		if name := boundName(init); name != "" {
			bound[name] = true
		}
	}
	v.expr(l.Cond, field+".cond")
	v.body(l.Body, field, bound)
	v.retvals(l.Retvals, field, bound)
}

func (v *validator) expr(e ir.Expr, field string) {
	if ir.IsRaw(e) {
		v.add(field, ErrRawNode, "unrewritten %T", e)
		return
	}
	switch n := e.(type) {
	case *ir.Here:
		v.add(field, ErrUnresolvedHere, "here is only allowed in a pipeline stage")
		return
	case *ir.Definition:
		v.definition(n, field)
		return
	case *ir.WhileLoop:
		if len(n.Retvals) == 0 {
			v.add(field, ErrLoopWithoutOutput, "loop value is used but the loop declares no outputs")
		}
		v.loop(n, field)
		return
	case *ir.Apply:
		if n.Attrs != nil && n.Attrs.Ellipsis {
			v.add(field+".attrs", ErrApplyEllipsis, "attribute ellipsis in an application")
		}
	case *ir.ApplyKeywords:
		if n.Attrs != nil && n.Attrs.Ellipsis {
			v.add(field+".attrs", ErrApplyEllipsis, "attribute ellipsis in an application")
		}
	case *ir.AfterLeaves:
		v.body(n.Exprs, field, map[string]bool{})
		return
	}

	for i, kid := range ir.Children(e) {
		if k, ok := kid.(ir.Expr); ok {
			v.expr(k, fmt.Sprintf("%s[%d]", field, i))
		}
	}
}
