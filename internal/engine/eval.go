package engine

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/roach88/nao/internal/compiler"
	"github.com/roach88/nao/internal/ir"
)

// frame is one lexical scope: a package, a definition call, a loop or one
// loop iteration. Locals and attributes live in separate maps; a lookup
// tries both before moving to the parent.
type frame struct {
	parent *frame
	pkg    *pkgEnv
	vars   map[string]Value
	attrs  map[string]Value
	above  Value
}

func newFrame(parent *frame) *frame {
	f := &frame{parent: parent, vars: map[string]Value{}, attrs: map[string]Value{}}
	if parent != nil {
		f.pkg = parent.pkg
	}
	return f
}

// own looks name up in this frame only.
func (f *frame) own(name string) (Value, bool) {
	if v, ok := f.vars[name]; ok {
		return v, true
	}
	v, ok := f.attrs[name]
	return v, ok
}

func (f *frame) lookup(name string) (Value, bool) {
	for s := f; s != nil; s = s.parent {
		if v, ok := s.own(name); ok {
			return v, true
		}
	}
	return nil, false
}

// attr prefers attributes over locals at each level.
func (f *frame) attr(name string) (Value, bool) {
	for s := f; s != nil; s = s.parent {
		if v, ok := s.attrs[name]; ok {
			return v, true
		}
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// update assigns to the nearest frame that declares name as a local.
func (f *frame) update(name string, v Value) bool {
	for s := f; s != nil; s = s.parent {
		if _, ok := s.vars[name]; ok {
			s.vars[name] = v
			return true
		}
	}
	return false
}

// pkgEnv is an evaluated native package.
type pkgEnv struct {
	key     string
	name    string
	frame   *frame
	imports map[string]*Namespace
}

func newPkgEnv(key, name string) *pkgEnv {
	env := &pkgEnv{key: key, name: name, imports: map[string]*Namespace{}}
	env.frame = newFrame(nil)
	env.frame.pkg = env
	return env
}

// evaluator runs IR against frames. One evaluator serves one top-level
// operation.
type evaluator struct {
	ctx      context.Context
	maxSteps int
	calls    *CallTracker
}

func newEvaluator(ctx context.Context, maxSteps int) *evaluator {
	return &evaluator{ctx: ctx, maxSteps: maxSteps, calls: NewCallTracker()}
}

// body evaluates statements in order and returns the last value. Each
// statement's value is what ^ means in the next one.
func (ev *evaluator) body(stmts []ir.Expr, f *frame) (Value, error) {
	var last Value
	for _, s := range stmts {
		v, err := ev.eval(s, f)
		if err != nil {
			return nil, err
		}
		f.above = v
		last = v
	}
	return last, nil
}

func (ev *evaluator) evalAll(exprs []ir.Expr, f *frame) ([]Value, error) {
	out := make([]Value, len(exprs))
	for i, e := range exprs {
		v, err := ev.eval(e, f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// bind records the result of a named application or tensor.
func bind(f *frame, name string, v Value) Value {
	if name != "" {
		f.vars[name] = v
	}
	return v
}

func (ev *evaluator) eval(e ir.Expr, f *frame) (Value, error) {
	switch e := e.(type) {
	case *ir.Whole:
		return NewNumber(e.Digits)
	case *ir.Fraction:
		return NewNumber(e.Digits)
	case *ir.Bool:
		return Bool(e.Value), nil
	case *ir.String:
		return Str(e.Value), nil
	case *ir.ShapeLit:
		return ShapeValue(e.Shape), nil
	case *ir.List:
		vals, err := ev.evalAll(e.Elems, f)
		if err != nil {
			return nil, err
		}
		return List(vals), nil

	case *ir.Tensor:
		v, err := ev.eval(e.Value, f)
		if err != nil {
			return nil, err
		}
		if e.Shape != nil {
			if err := checkShape(v, *e.Shape); err != nil {
				return nil, err
			}
		}
		if err := checkType(v, e.Type); err != nil {
			return nil, err
		}
		return bind(f, e.Name, v), nil

	case *ir.Local:
		v, ok := f.lookup(e.Name)
		if !ok {
			return nil, runtimeErrorf(ErrCodeUnbound, "undefined: %s", e.Name)
		}
		return v, nil

	case *ir.AttrRef:
		v, ok := f.attr(e.Name)
		if !ok {
			return nil, runtimeErrorf(ErrCodeUnbound, "attribute %s is not bound", e.Name)
		}
		return v, nil

	case *ir.PackageRef:
		v, err := ev.member(e, f)
		if err != nil {
			return nil, err
		}
		return bind(f, e.Name, v), nil

	case *ir.Above:
		for s := f; s != nil; s = s.parent {
			if s.above != nil {
				return s.above, nil
			}
		}
		return nil, runtimeErrorf(ErrCodeUnbound, "^ has no preceding expression")

	case *ir.Here:
		return nil, runtimeErrorf(ErrCodeUnsupported, "here outside a pipeline stage")

	case *ir.Index:
		return ev.index(e, f)

	case *ir.Cond:
		pred, err := ev.eval(e.Pred, f)
		if err != nil {
			return nil, err
		}
		ok, err := asBool(pred)
		if err != nil {
			return nil, err
		}
		if ok {
			return ev.eval(e.Then, f)
		}
		return ev.eval(e.Else, f)

	case *ir.DefineLocal:
		v, err := ev.eval(e.Value, f)
		if err != nil {
			return nil, err
		}
		f.vars[e.Name] = v
		return v, nil

	case *ir.DefineAttr:
		v, err := ev.eval(e.Value, f)
		if err != nil {
			return nil, err
		}
		f.attrs[e.Name] = v
		return v, nil

	case *ir.Var:
		v, err := ev.eval(e.Init, f)
		if err != nil {
			return nil, err
		}
		f.vars[e.Name] = v
		return v, nil

	case *ir.VarUpdate:
		v, err := ev.eval(e.Value, f)
		if err != nil {
			return nil, err
		}
		if !f.update(e.Name, v) {
			return nil, runtimeErrorf(ErrCodeUnbound, "assignment to undeclared variable %s", e.Name)
		}
		return v, nil

	case *ir.AssertShape:
		v, err := ev.eval(e.Value, f)
		if err != nil {
			return nil, err
		}
		if err := checkShape(v, e.Shape); err != nil {
			return nil, err
		}
		return v, nil

	case *ir.AssertType:
		v, err := ev.eval(e.Value, f)
		if err != nil {
			return nil, err
		}
		if err := checkType(v, e.Type); err != nil {
			return nil, err
		}
		return v, nil

	case *ir.AfterLeaves:
		return ev.body(e.Exprs, f)

	case *ir.Definition:
		return &Func{
			def:     e,
			closure: f,
			curry:   compiler.NewCurry(displayName(e), e.AttrNames()),
			attrs:   map[string]Value{},
		}, nil

	case *ir.WhileLoop:
		return ev.loop(e, f)

	case *ir.ApplyAttrs:
		callee, err := ev.eval(e.Callee, f)
		if err != nil {
			return nil, err
		}
		fn, ok := callee.(*Func)
		if !ok {
			return nil, runtimeErrorf(ErrCodeTypeMismatch, "cannot bind attributes to %s", Format(callee))
		}
		return ev.bindAttrs(fn, e.Attrs, f)

	case *ir.Apply:
		callee, err := ev.eval(e.Callee, f)
		if err != nil {
			return nil, err
		}
		args, err := ev.evalAll(e.Args, f)
		if err != nil {
			return nil, err
		}
		v, err := ev.apply(callee, e.Attrs, args, nil, f)
		if err != nil {
			return nil, err
		}
		return bind(f, e.Name, v), nil

	case *ir.ApplyKeywords:
		callee, err := ev.eval(e.Callee, f)
		if err != nil {
			return nil, err
		}
		kw := map[string]Value{}
		for _, arg := range e.Args.Entries {
			v, err := ev.eval(arg.Value, f)
			if err != nil {
				return nil, err
			}
			kw[arg.Name] = v
		}
		v, err := ev.apply(callee, e.Attrs, nil, kw, f)
		if err != nil {
			return nil, err
		}
		return bind(f, e.Name, v), nil
	}
	return nil, runtimeErrorf(ErrCodeUnsupported, "cannot evaluate %T", e)
}

func displayName(d *ir.Definition) string {
	if d.Name != "" {
		return d.Name
	}
	return "function literal"
}

// member resolves a package-qualified reference.
func (ev *evaluator) member(ref *ir.PackageRef, f *frame) (Value, error) {
	qualified := ref.Package + "." + ref.Member
	if ref.Package == compiler.BuiltinNamespace {
		if b, ok := lookupBuiltin(ref.Package, ref.Member); ok {
			return b, nil
		}
		return nil, runtimeErrorf(ErrCodeUnbound, "undefined: %s", qualified)
	}

	var ns *Namespace
	if f.pkg != nil {
		ns = f.pkg.imports[ref.Package]
	}
	switch {
	case ns == nil:
		return nil, runtimeErrorf(ErrCodeUnbound, "undefined package: %s", ref.Package)
	case ns.builtin:
		if b, ok := lookupBuiltin(ref.Package, ref.Member); ok {
			return b, nil
		}
		return nil, runtimeErrorf(ErrCodeUnbound, "undefined: %s", qualified)
	case ns.foreign != nil:
		return nil, runtimeErrorf(ErrCodeUnsupported, "cannot evaluate %s: %s is a %s package",
			qualified, ns.Key, ns.foreign.Language)
	}
	v, ok := ns.pkg.frame.own(ref.Member)
	if !ok {
		return nil, runtimeErrorf(ErrCodeUnbound, "undefined: %s", qualified)
	}
	return v, nil
}

func (ev *evaluator) index(e *ir.Index, f *frame) (Value, error) {
	target, err := ev.eval(e.Target, f)
	if err != nil {
		return nil, err
	}
	switch idx := e.Index.(type) {
	case *ir.String:
		out, ok := target.(*Outputs)
		if !ok {
			return nil, runtimeErrorf(ErrCodeTypeMismatch, "%s has no output %s", Format(target), idx.Value)
		}
		v, ok := out.Get(idx.Value)
		if !ok {
			return nil, runtimeErrorf(ErrCodeUnbound, "no output %s", idx.Value)
		}
		return v, nil
	case *ir.Whole:
		i, err := strconv.Atoi(idx.Digits)
		if err != nil || i < 0 {
			return nil, runtimeErrorf(ErrCodeTypeMismatch, "invalid index %s", idx.Digits)
		}
		switch t := target.(type) {
		case *Outputs:
			if i >= len(t.Names) {
				return nil, runtimeErrorf(ErrCodeUnbound, "output %d out of range", i)
			}
			v, ok := t.Get(t.Names[i])
			if !ok {
				return nil, runtimeErrorf(ErrCodeUnbound, "no output %s", t.Names[i])
			}
			return v, nil
		case List:
			if i >= len(t) {
				return nil, runtimeErrorf(ErrCodeUnbound, "index %d out of range", i)
			}
			return t[i], nil
		}
		return nil, runtimeErrorf(ErrCodeTypeMismatch, "cannot index %s", Format(target))
	}
	return nil, runtimeErrorf(ErrCodeUnsupported, "cannot index with %T", e.Index)
}

// loop runs a while loop. Initializers bind in the loop frame; each
// iteration runs the body in a fresh frame and writes the outputs back to
// the loop frame under their output names, where the condition and the next
// iteration see them.
func (ev *evaluator) loop(l *ir.WhileLoop, f *frame) (Value, error) {
	lf := newFrame(f)
	if _, err := ev.body(l.Init, lf); err != nil {
		return nil, err
	}

	names := make([]string, len(l.Retvals))
	for i, r := range l.Retvals {
		names[i] = r.Name
	}
	quota := NewQuotaEnforcer(ev.maxSteps)
	label := "(" + strings.Join(names, ", ") + ")"

	for {
		if err := ev.ctx.Err(); err != nil {
			return nil, err
		}
		cond, err := ev.eval(l.Cond, lf)
		if err != nil {
			return nil, err
		}
		ok, err := asBool(cond)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if err := quota.Check(label); err != nil {
			return nil, err
		}

		it := newFrame(lf)
		if _, err := ev.body(l.Body, it); err != nil {
			return nil, err
		}
		for _, r := range l.Retvals {
			v, ok := it.lookup(r.Local)
			if !ok {
				return nil, runtimeErrorf(ErrCodeUnbound, "loop output %s is not bound", r.Name)
			}
			lf.vars[r.Name] = v
		}
	}

	out := &Outputs{Names: names, Values: map[string]Value{}}
	for _, name := range names {
		if v, ok := lf.own(name); ok {
			out.Values[name] = v
		}
	}
	return out, nil
}

// bindAttrs evaluates an attribute block and binds it to fn, returning the
// partially or fully bound function.
func (ev *evaluator) bindAttrs(fn *Func, block *ir.AttrMap, f *frame) (*Func, error) {
	names := make([]string, len(block.Entries))
	for i, entry := range block.Entries {
		names[i] = entry.Name
	}
	cur, err := fn.curry.Bind(names, block.Ellipsis)
	if err != nil {
		return nil, curryError(err)
	}

	attrs := make(map[string]Value, len(fn.attrs)+len(block.Entries))
	for k, v := range fn.attrs {
		attrs[k] = v
	}
	for _, entry := range block.Entries {
		v, err := ev.eval(entry.Value, f)
		if err != nil {
			return nil, err
		}
		attrs[entry.Name] = v
	}
	return &Func{def: fn.def, closure: fn.closure, curry: cur, attrs: attrs}, nil
}

func curryError(err error) error {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return &RuntimeError{Code: ErrCodeArity, Message: ce.Message}
	}
	return err
}

// apply invokes callee with either positional or keyword arguments and an
// optional final attribute block.
func (ev *evaluator) apply(callee Value, block *ir.AttrMap, args []Value, kw map[string]Value, f *frame) (Value, error) {
	switch fn := callee.(type) {
	case *Builtin:
		if block != nil && len(block.Entries) > 0 {
			return nil, runtimeErrorf(ErrCodeArity, "%s takes no attributes", fn.Qualified)
		}
		if kw != nil {
			return nil, runtimeErrorf(ErrCodeUnsupported, "%s takes positional arguments only", fn.Qualified)
		}
		return fn.fn(args)

	case *Func:
		if block != nil {
			bound, err := ev.bindAttrs(fn, block, f)
			if err != nil {
				return nil, err
			}
			fn = bound
		} else if err := fn.curry.Complete(); err != nil {
			return nil, curryError(err)
		}
		if kw != nil {
			ordered, err := keywordArgs(fn, kw)
			if err != nil {
				return nil, err
			}
			args = ordered
		}
		return ev.call(fn, args)
	}
	return nil, runtimeErrorf(ErrCodeTypeMismatch, "cannot apply %s", Format(callee))
}

func keywordArgs(fn *Func, kw map[string]Value) ([]Value, error) {
	args := make([]Value, len(fn.def.Inputs))
	for i, in := range fn.def.Inputs {
		v, ok := kw[in.Name]
		if !ok {
			return nil, runtimeErrorf(ErrCodeArity, "missing argument %s for %s", in.Name, fn.Name())
		}
		args[i] = v
	}
	if len(kw) != len(fn.def.Inputs) {
		for name := range kw {
			if !hasInput(fn.def, name) {
				return nil, runtimeErrorf(ErrCodeArity, "%s has no input %s", fn.Name(), name)
			}
		}
	}
	return args, nil
}

func hasInput(d *ir.Definition, name string) bool {
	for _, in := range d.Inputs {
		if in.Name == name {
			return true
		}
	}
	return false
}

// call runs a fully bound function on its arguments and collects its
// outputs.
func (ev *evaluator) call(fn *Func, args []Value) (Value, error) {
	if err := ev.ctx.Err(); err != nil {
		return nil, err
	}
	def := fn.def
	if len(args) != len(def.Inputs) {
		return nil, runtimeErrorf(ErrCodeArity, "%s takes %d arguments, got %d", fn.Name(), len(def.Inputs), len(args))
	}
	if err := ev.calls.Enter(fn); err != nil {
		return nil, err
	}
	defer ev.calls.Leave(fn)

	out, err := ev.run(fn, args)
	if err != nil {
		var re *RuntimeError
		if errors.As(err, &re) && re.Definition == "" {
			re.Definition = fn.Name()
		}
		return nil, err
	}
	return out, nil
}

func (ev *evaluator) run(fn *Func, args []Value) (*Outputs, error) {
	def := fn.def
	cf := newFrame(fn.closure)
	for _, p := range def.Attrs {
		v, ok := fn.attrs[p.Name]
		if !ok {
			return nil, runtimeErrorf(ErrCodeArity, "attribute %s is not bound", p.Name)
		}
		if err := checkParam(p, v); err != nil {
			return nil, err
		}
		cf.attrs[p.Name] = v
	}
	for i, p := range def.Inputs {
		if err := checkParam(p, args[i]); err != nil {
			return nil, err
		}
		cf.vars[p.Name] = args[i]
	}

	if _, err := ev.body(def.Body, cf); err != nil {
		return nil, err
	}

	out := &Outputs{Names: make([]string, len(def.Retvals)), Values: map[string]Value{}}
	for i, r := range def.Retvals {
		v, ok := cf.own(r.Local)
		if !ok {
			return nil, runtimeErrorf(ErrCodeUnbound, "output %s is not bound", r.Name)
		}
		out.Names[i] = r.Name
		out.Values[r.Name] = v
	}
	return out, nil
}

func checkParam(p ir.Param, v Value) error {
	if _, isFunc := v.(*Func); isFunc {
		return nil
	}
	if p.Shape != nil {
		if err := checkShape(v, *p.Shape); err != nil {
			return err
		}
	}
	return checkType(v, p.Type)
}
