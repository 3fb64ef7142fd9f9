package resolver

import (
	"context"
	"errors"
	"path"
	"sync"
)

// Language tags a Source understands. Everything but LanguageNao is carried
// through to the backend untouched.
const (
	LanguageNao       = "nao"
	LanguagePython    = "python"
	LanguageMetagraph = "tensorflow:metagraph:pbtxt"
)

// Source is the content behind one import path.
type Source struct {
	Language string
	Name     string // package name; defaults to the last path element
	Scope    string
	Content  string
	File     string // file name used in diagnostics, if any
}

// ErrNotFound is returned by a SourceLookup that has nothing for a path.
var ErrNotFound = errors.New("package not found")

// SourceLookup finds the source of an import. Implementations must be safe
// for concurrent use and should honor ctx.
type SourceLookup interface {
	Lookup(ctx context.Context, importPath, scope string) (*Source, error)
}

// LookupFunc adapts a function to SourceLookup.
type LookupFunc func(ctx context.Context, importPath, scope string) (*Source, error)

func (f LookupFunc) Lookup(ctx context.Context, importPath, scope string) (*Source, error) {
	return f(ctx, importPath, scope)
}

// MemoryLookup serves sources held in memory, keyed by "path" or
// "path:scope".
type MemoryLookup struct {
	mu      sync.RWMutex
	sources map[string]*Source
}

func NewMemoryLookup() *MemoryLookup {
	return &MemoryLookup{sources: make(map[string]*Source)}
}

// Put registers src under key, replacing any earlier source.
func (m *MemoryLookup) Put(key string, src *Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[key] = src
}

// PutNao registers nao source text for an import path.
func (m *MemoryLookup) PutNao(importPath, content string) {
	m.Put(importPath, &Source{
		Language: LanguageNao,
		Name:     path.Base(importPath),
		Content:  content,
		File:     importPath + ".nao",
	})
}

func (m *MemoryLookup) Lookup(ctx context.Context, importPath, scope string) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := importPath
	if scope != "" {
		key += ":" + scope
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.sources[key]
	if !ok {
		return nil, ErrNotFound
	}
	c := *src
	return &c, nil
}
