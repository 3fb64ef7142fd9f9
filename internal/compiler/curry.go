package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/nao/internal/ir"
)

// Curry tracks the attributes bound to a callee across chained attribute
// blocks. It is immutable: Bind returns a new value.
type Curry struct {
	Callee   string
	Declared []string
	Bound    []string
	Partial  bool
}

// NewCurry starts a callee with no attributes bound.
func NewCurry(callee string, declared []string) *Curry {
	return &Curry{Callee: callee, Declared: declared}
}

// Missing returns the declared attributes not yet bound, in declaration
// order.
func (c *Curry) Missing() []string {
	var missing []string
	for _, d := range c.Declared {
		if !slices.Contains(c.Bound, d) {
			missing = append(missing, d)
		}
	}
	return missing
}

// Bind applies one attribute block. With an ellipsis the result is partial
// and some attributes must still be missing; without one every declared
// attribute must be bound afterwards.
func (c *Curry) Bind(names []string, ellipsis bool) (*Curry, error) {
	next := &Curry{
		Callee:   c.Callee,
		Declared: c.Declared,
		Bound:    slices.Clone(c.Bound),
		Partial:  ellipsis,
	}
	for _, name := range names {
		if slices.Contains(next.Bound, name) {
			return nil, &CompileError{Code: ErrAlreadyDefined, Name: name,
				Message: fmt.Sprintf("attribute %q already defined for %s", name, c.Callee)}
		}
		if !slices.Contains(c.Declared, name) {
			return nil, &CompileError{Code: ErrMissingAttributes, Name: name,
				Message: fmt.Sprintf("missing attributes: %s has no attribute %q", c.Callee, name)}
		}
		next.Bound = append(next.Bound, name)
	}

	missing := next.Missing()
	switch {
	case ellipsis && len(missing) == 0:
		return nil, &CompileError{Code: ErrEllipsisNotNeeded, Name: c.Callee,
			Message: fmt.Sprintf("ellipsis given but no missing attributes for %s", c.Callee)}
	case !ellipsis && len(missing) > 0:
		return nil, missingError(c.Callee, missing)
	}
	return next, nil
}

// Complete checks that the callee may be invoked as it stands.
func (c *Curry) Complete() error {
	if missing := c.Missing(); len(missing) > 0 {
		return missingError(c.Callee, missing)
	}
	return nil
}

func missingError(callee string, missing []string) *CompileError {
	return &CompileError{Code: ErrMissingAttributes, Name: callee,
		Message: fmt.Sprintf("missing attributes for %s: %s", callee, strings.Join(missing, ", "))}
}

// CheckAttributes checks every attribute application in pkg against the
// attributes its callee declares. deps maps import names to their resolved
// packages. Callees that cannot be resolved statically, such as builtins and
// foreign packages, are not checked.
func CheckAttributes(pkg *ir.Package, deps map[string]*ir.Package) error {
	c := &attrChecker{deps: deps}
	env := c.packageEnv(pkg, "")
	for _, d := range pkg.Decls {
		e, ok := d.(ir.Expr)
		if !ok {
			continue
		}
		if err := c.stmt(e, env); err != nil {
			return err
		}
	}
	return nil
}

type attrChecker struct {
	deps map[string]*ir.Package
}

// curryEnv maps local names to the callee they are bound to. A nil entry
// shadows an outer binding with a value that is not a callee.
type curryEnv map[string]*Curry

func (e curryEnv) clone() curryEnv {
	out := make(curryEnv, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// packageEnv collects the top-level definitions of pkg, qualified by prefix
// when pkg is an import.
func (c *attrChecker) packageEnv(pkg *ir.Package, prefix string) curryEnv {
	env := curryEnv{}
	for _, d := range pkg.Decls {
		da, ok := d.(*ir.DefineAttr)
		if !ok {
			continue
		}
		if def, ok := da.Value.(*ir.Definition); ok {
			env[da.Name] = NewCurry(prefix+da.Name, def.AttrNames())
		}
	}
	return env
}

// resolve returns the curry state of a callee expression, or nil when it
// is not statically known.
func (c *attrChecker) resolve(e ir.Expr, env curryEnv) (*Curry, error) {
	switch e := e.(type) {
	case *ir.Local:
		return env[e.Name], nil
	case *ir.PackageRef:
		dep, ok := c.deps[e.Package]
		if !ok {
			return nil, nil
		}
		return c.packageEnv(dep, e.Package+".")[e.Member], nil
	case *ir.Definition:
		name := e.Name
		if name == "" {
			name = "function literal"
		}
		return NewCurry(name, e.AttrNames()), nil
	case *ir.ApplyAttrs:
		base, err := c.resolve(e.Callee, env)
		if err != nil || base == nil {
			return nil, err
		}
		return base.Bind(attrNames(e.Attrs), e.Attrs.Ellipsis)
	case *ir.DefineLocal:
		return c.resolve(e.Value, env)
	case *ir.DefineAttr:
		return c.resolve(e.Value, env)
	}
	return nil, nil
}

func attrNames(m *ir.AttrMap) []string {
	if m == nil {
		return nil
	}
	names := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		names[i] = e.Name
	}
	return names
}

// stmt checks one body statement and records what it binds.
func (c *attrChecker) stmt(e ir.Expr, env curryEnv) error {
	if err := c.expr(e, env); err != nil {
		return err
	}
	var name string
	switch b := e.(type) {
	case *ir.DefineLocal:
		name = b.Name
	case *ir.DefineAttr:
		name = b.Name
	case *ir.Var:
		name = b.Name
	default:
		return nil
	}
	cur, err := c.resolve(e, env)
	if err != nil {
		return err
	}
	env[name] = cur
	return nil
}

func (c *attrChecker) body(stmts []ir.Expr, env curryEnv) error {
	for _, s := range stmts {
		if err := c.stmt(s, env); err != nil {
			return err
		}
	}
	return nil
}

// invoke checks an application of callee with an optional final attribute
// block.
func (c *attrChecker) invoke(callee ir.Expr, attrs *ir.AttrMap, env curryEnv) error {
	cur, err := c.resolve(callee, env)
	if err != nil || cur == nil {
		return err
	}
	if attrs == nil {
		return cur.Complete()
	}
	_, err = cur.Bind(attrNames(attrs), attrs.Ellipsis)
	return err
}

func (c *attrChecker) expr(e ir.Expr, env curryEnv) error {
	switch e := e.(type) {
	case *ir.Definition:
		inner := env.clone()
		for _, in := range e.Inputs {
			inner[in.Name] = nil
		}
		return c.body(e.Body, inner)

	case *ir.WhileLoop:
		inner := env.clone()
		if err := c.body(e.Init, inner); err != nil {
			return err
		}
		if err := c.expr(e.Cond, inner); err != nil {
			return err
		}
		return c.body(e.Body, inner)

	case *ir.AfterLeaves:
		return c.body(e.Exprs, env)

	case *ir.Apply:
		if err := c.children(e, env); err != nil {
			return err
		}
		return c.invoke(e.Callee, e.Attrs, env)

	case *ir.ApplyKeywords:
		if err := c.children(e, env); err != nil {
			return err
		}
		return c.invoke(e.Callee, e.Attrs, env)

	case *ir.ApplyAttrs:
		if err := c.children(e, env); err != nil {
			return err
		}
		_, err := c.resolve(e, env)
		return err
	}
	return c.children(e, env)
}

func (c *attrChecker) children(n ir.Node, env curryEnv) error {
	for _, kid := range ir.Children(n) {
		e, ok := kid.(ir.Expr)
		if !ok {
			continue
		}
		if err := c.expr(e, env); err != nil {
			return err
		}
	}
	return nil
}
