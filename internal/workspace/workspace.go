package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/roach88/nao/internal/resolver"
)

// Workspace serves package sources from a directory tree. Sources put with
// PutSource take precedence over files.
type Workspace struct {
	Root   string
	Config *Config

	overrides *resolver.MemoryLookup
}

// Open loads the configuration of the workspace at root.
func Open(root string) (*Workspace, error) {
	cfg, err := LoadConfig(root)
	if err != nil {
		return nil, err
	}
	return New(root, cfg), nil
}

func New(root string, cfg *Config) *Workspace {
	return &Workspace{Root: root, Config: cfg, overrides: resolver.NewMemoryLookup()}
}

// PutSource overrides the source of an import path with in-memory content.
func (w *Workspace) PutSource(importPath, language, content string) {
	w.overrides.Put(importPath, &resolver.Source{
		Language: language,
		Name:     path.Base(importPath),
		Content:  content,
		File:     importPath,
	})
}

// ErrOutsideWorkspace reports an import path that would leave the
// workspace root.
var ErrOutsideWorkspace = errors.New("import path leaves the workspace")

// Lookup implements resolver.SourceLookup. Overrides are consulted first,
// the scoped key before the bare path, then each configured attempt in
// order.
func (w *Workspace) Lookup(ctx context.Context, importPath, scope string) (*resolver.Source, error) {
	src, err := w.override(ctx, importPath, scope)
	if err == nil || !errors.Is(err, resolver.ErrNotFound) {
		return src, err
	}

	rel := filepath.FromSlash(importPath)
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("%w: %q", ErrOutsideWorkspace, importPath)
	}

	for _, a := range w.Config.Attempts {
		file := filepath.Join(w.Root, a.Dir, rel+a.Suffix)
		data, err := os.ReadFile(file)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		return &resolver.Source{
			Language: a.Language,
			Name:     path.Base(importPath),
			Scope:    scope,
			Content:  string(data),
			File:     file,
		}, nil
	}
	return nil, resolver.ErrNotFound
}

// override returns the PutSource content for importPath. A scoped import
// falls back to the override of its bare path.
func (w *Workspace) override(ctx context.Context, importPath, scope string) (*resolver.Source, error) {
	src, err := w.overrides.Lookup(ctx, importPath, scope)
	if scope == "" || !errors.Is(err, resolver.ErrNotFound) {
		return src, err
	}
	if src, err = w.overrides.Lookup(ctx, importPath, ""); err != nil {
		return nil, err
	}
	src.Scope = scope
	return src, nil
}

// Resolver returns a resolver reading from this workspace.
func (w *Workspace) Resolver(opts ...resolver.Option) *resolver.Resolver {
	opts = append([]resolver.Option{resolver.WithBuiltinRoot(w.Config.Builtin)}, opts...)
	return resolver.New(w, opts...)
}
