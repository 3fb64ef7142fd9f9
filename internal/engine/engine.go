package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/nao/internal/ir"
	"github.com/roach88/nao/internal/resolver"
)

// Engine holds the evaluated packages of one pallet. It is not safe for
// concurrent use.
type Engine struct {
	logger   *slog.Logger
	maxSteps int
	builtin  string
	packages map[string]*pkgEnv
	foreign  map[string]*ir.ForeignPackage
	root     *pkgEnv
	tests    []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMaxSteps sets the iteration limit of a single loop.
func WithMaxSteps(n int) Option {
	return func(e *Engine) { e.maxSteps = n }
}

// WithBuiltinRoot sets the import path that names the builtin namespace.
func WithBuiltinRoot(path string) Option {
	return func(e *Engine) { e.builtin = path }
}

// New evaluates the top level of every package in p, in pallet order.
func New(ctx context.Context, p *resolver.Pallet, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:   slog.Default(),
		maxSteps: DefaultMaxSteps,
		builtin:  resolver.DefaultBuiltinRoot,
		packages: map[string]*pkgEnv{},
		foreign:  map[string]*ir.ForeignPackage{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if len(p.Units) == 0 {
		return nil, fmt.Errorf("engine: empty pallet")
	}

	ev := newEvaluator(ctx, e.maxSteps)
	for i, u := range p.Units {
		switch pkg := u.Package.(type) {
		case *ir.ForeignPackage:
			e.foreign[u.Key] = pkg
		case *ir.Package:
			env, err := e.load(ev, u.Key, pkg)
			if err != nil {
				return nil, fmt.Errorf("evaluate package %s: %w", u.Key, err)
			}
			e.packages[u.Key] = env
			if i == len(p.Units)-1 {
				e.root = env
				e.tests = testNames(pkg)
			}
		default:
			return nil, fmt.Errorf("engine: unexpected unit %T", u.Package)
		}
	}
	if e.root == nil {
		return nil, fmt.Errorf("engine: root package %s is not native", p.Units[len(p.Units)-1].Key)
	}
	return e, nil
}

func (e *Engine) load(ev *evaluator, key string, pkg *ir.Package) (*pkgEnv, error) {
	env := newPkgEnv(key, pkg.Name)
	for _, spec := range pkg.Imports() {
		ns := &Namespace{Key: spec.Key()}
		switch {
		case spec.Path == e.builtin:
			ns.builtin = true
		case e.foreign[spec.Key()] != nil:
			ns.foreign = e.foreign[spec.Key()]
		case e.packages[spec.Key()] != nil:
			ns.pkg = e.packages[spec.Key()]
		default:
			return nil, fmt.Errorf("import %s was not evaluated first", spec.Key())
		}
		env.imports[spec.Name] = ns
	}

	var stmts []ir.Expr
	for _, d := range pkg.Decls {
		if x, ok := d.(ir.Expr); ok {
			stmts = append(stmts, x)
		}
	}
	if _, err := ev.body(stmts, env.frame); err != nil {
		return nil, err
	}
	e.logger.Debug("evaluated package", "key", key, "bindings", len(env.frame.vars)+len(env.frame.attrs))
	return env, nil
}

// testNames returns the top-level definitions whose names start with
// "test" or "Test", in declaration order.
func testNames(pkg *ir.Package) []string {
	var names []string
	for _, d := range pkg.Decls {
		da, ok := d.(*ir.DefineAttr)
		if !ok {
			continue
		}
		if _, isDef := da.Value.(*ir.Definition); !isDef {
			continue
		}
		if strings.HasPrefix(da.Name, "test") || strings.HasPrefix(da.Name, "Test") {
			names = append(names, da.Name)
		}
	}
	return names
}

// Lookup returns a top-level binding of the root package.
func (e *Engine) Lookup(name string) (Value, bool) {
	return e.root.frame.own(name)
}

// Call applies the root package's top-level definition name to args.
func (e *Engine) Call(ctx context.Context, name string, args ...Value) (Value, error) {
	v, ok := e.Lookup(name)
	if !ok {
		return nil, runtimeErrorf(ErrCodeUnbound, "undefined: %s", name)
	}
	fn, ok := v.(*Func)
	if !ok {
		return nil, runtimeErrorf(ErrCodeTypeMismatch, "%s is not a definition", name)
	}
	if err := fn.curry.Complete(); err != nil {
		return nil, curryError(err)
	}
	return newEvaluator(ctx, e.maxSteps).call(fn, args)
}

// Tests returns the names of the root package's test definitions.
func (e *Engine) Tests() []string {
	return append([]string(nil), e.tests...)
}

// TestResult is the outcome of one test definition.
type TestResult struct {
	Name string
	Err  error
}

// Passed reports whether the test ran without error.
func (r TestResult) Passed() bool {
	return r.Err == nil
}

// RunTests applies every test definition with no arguments. A failing test
// does not stop the others; cancellation does.
func (e *Engine) RunTests(ctx context.Context) ([]TestResult, error) {
	results := make([]TestResult, 0, len(e.tests))
	for _, name := range e.tests {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		_, err := e.Call(ctx, name)
		if err != nil && ctx.Err() != nil {
			return results, ctx.Err()
		}
		if err != nil {
			e.logger.Info("test failed", "name", name, "error", err)
		} else {
			e.logger.Debug("test passed", "name", name)
		}
		results = append(results, TestResult{Name: name, Err: err})
	}
	return results, nil
}
