package testutil

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/nao/internal/resolver"
)

// CountingLookup wraps a SourceLookup and counts lookups per import key.
// Tests use it to check that a shared import is fetched once.
type CountingLookup struct {
	inner resolver.SourceLookup

	mu     sync.Mutex
	counts map[string]int
}

func NewCountingLookup(inner resolver.SourceLookup) *CountingLookup {
	return &CountingLookup{inner: inner, counts: make(map[string]int)}
}

func (l *CountingLookup) Lookup(ctx context.Context, importPath, scope string) (*resolver.Source, error) {
	key := importPath
	if scope != "" {
		key += ":" + scope
	}
	l.mu.Lock()
	l.counts[key]++
	l.mu.Unlock()
	return l.inner.Lookup(ctx, importPath, scope)
}

// Count returns how many times key was looked up.
func (l *CountingLookup) Count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[key]
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
