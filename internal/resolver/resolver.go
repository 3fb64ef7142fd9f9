// Package resolver turns a root package and its transitive imports into a
// pallet. Each import is looked up and compiled once per compilation, even
// when several packages import it concurrently.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/nao/internal/compiler"
	"github.com/roach88/nao/internal/ir"
)

// DefaultBuiltinRoot is the import path served by the backend itself.
const DefaultBuiltinRoot = "tensorflow"

// Resolver resolves imports through a SourceLookup. It holds no state
// between calls, so one Resolver may serve many concurrent compilations.
type Resolver struct {
	lookup  SourceLookup
	logger  *slog.Logger
	builtin string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for resolution events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithBuiltinRoot overrides the import path that is left to the backend.
func WithBuiltinRoot(root string) Option {
	return func(r *Resolver) { r.builtin = root }
}

func New(lookup SourceLookup, opts ...Option) *Resolver {
	r := &Resolver{
		lookup:  lookup,
		logger:  slog.Default(),
		builtin: DefaultBuiltinRoot,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve compiles the root package name from content and every package it
// imports, transitively.
func (r *Resolver) Resolve(ctx context.Context, name, content string) (*Pallet, error) {
	c := r.newCompilation()
	root := &pending{done: make(chan struct{})}
	c.memo[name] = root

	root.unit, root.err = c.compile(ctx, name, name, name+".nao", content)
	close(root.done)
	if root.err != nil {
		return nil, root.err
	}
	return newPallet(root.unit), nil
}

// ResolvePackages resolves already published packages by import path. The
// pallet holds each of them and their imports.
func (r *Resolver) ResolvePackages(ctx context.Context, paths ...string) (*Pallet, error) {
	c := r.newCompilation()
	roots := make([]*unit, len(paths))
	for i, p := range paths {
		u, err := c.require(ctx, "", ir.ImportSpec{Name: path.Base(p), Path: p})
		if err != nil {
			return nil, err
		}
		roots[i] = u
	}
	return newPallet(roots...), nil
}

// compilation is the memo for one Resolve call.
type compilation struct {
	r *Resolver

	mu    sync.Mutex
	memo  map[string]*pending
	edges map[string][]string
}

// pending is a package that one goroutine is loading and others may wait on.
type pending struct {
	done chan struct{}
	unit *unit
	err  error
}

type unit struct {
	key  string
	node ir.Node
	deps []*unit
}

func (r *Resolver) newCompilation() *compilation {
	return &compilation{
		r:     r,
		memo:  make(map[string]*pending),
		edges: make(map[string][]string),
	}
}

// require returns the unit for spec, loading it if no other goroutine has
// started to. The import edge is recorded and checked for cycles before
// waiting, so a cycle fails instead of deadlocking.
func (c *compilation) require(ctx context.Context, importer string, spec ir.ImportSpec) (*unit, error) {
	key := spec.Key()

	c.mu.Lock()
	if importer != "" {
		if cycle := c.pathTo(key, importer); cycle != nil {
			c.mu.Unlock()
			return nil, &CycleError{Path: append([]string{importer}, cycle...)}
		}
		c.edges[importer] = append(c.edges[importer], key)
	}
	p, ok := c.memo[key]
	if !ok {
		p = &pending{done: make(chan struct{})}
		c.memo[key] = p
	}
	c.mu.Unlock()

	if ok {
		select {
		case <-p.done:
			return p.unit, p.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.unit, p.err = c.load(ctx, importer, spec)
	close(p.done)
	return p.unit, p.err
}

// pathTo returns the import chain from one package to another, from and to
// included, or nil. The caller holds c.mu.
func (c *compilation) pathTo(from, to string) []string {
	seen := map[string]bool{}
	var walk func(string) []string
	walk = func(n string) []string {
		if n == to {
			return []string{n}
		}
		if seen[n] {
			return nil
		}
		seen[n] = true
		for _, next := range c.edges[n] {
			if rest := walk(next); rest != nil {
				return append([]string{n}, rest...)
			}
		}
		return nil
	}
	return walk(from)
}

func (c *compilation) load(ctx context.Context, importer string, spec ir.ImportSpec) (*unit, error) {
	key := spec.Key()
	src, err := c.r.lookup.Lookup(ctx, spec.Path, spec.Scope)
	if errors.Is(err, ErrNotFound) {
		return nil, &ImportError{Path: key, Importer: importer}
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", key, err)
	}

	name := src.Name
	if name == "" {
		name = path.Base(spec.Path)
	}
	if src.Language != LanguageNao {
		c.r.logger.Debug("foreign package", "package", key, "language", src.Language)
		return &unit{key: key, node: &ir.ForeignPackage{
			Language: src.Language,
			Name:     name,
			Scope:    src.Scope,
			Content:  src.Content,
		}}, nil
	}

	file := src.File
	if file == "" {
		file = key + ".nao"
	}
	return c.compile(ctx, key, name, file, src.Content)
}

// compile compiles one native package and, concurrently, everything it
// imports. Attribute checks and validation run after the imports join
// because they read the imported definitions.
func (c *compilation) compile(ctx context.Context, key, name, file, content string) (*unit, error) {
	pkg, err := compiler.CompileSource(name, file, content)
	if err != nil {
		return nil, err
	}

	var specs []ir.ImportSpec
	for _, spec := range pkg.Imports() {
		if spec.Path != c.r.builtin {
			specs = append(specs, spec)
		}
	}

	deps := make([]*unit, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			u, err := c.require(gctx, key, spec)
			deps[i] = u
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	native := make(map[string]*ir.Package, len(specs))
	for i, spec := range specs {
		if dep, ok := deps[i].node.(*ir.Package); ok {
			native[spec.Name] = dep
		}
	}
	if err := compiler.CheckAttributes(pkg, native); err != nil {
		return nil, fmt.Errorf("package %s: %w", key, err)
	}
	if verrs := compiler.Validate(pkg); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, ve := range verrs {
			errs[i] = ve
		}
		return nil, fmt.Errorf("package %s: %w", key, errors.Join(errs...))
	}

	c.r.logger.Debug("package resolved", "package", key, "imports", len(specs))
	return &unit{key: key, node: pkg, deps: deps}, nil
}
