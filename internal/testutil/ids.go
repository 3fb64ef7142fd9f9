package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDGenerator generates predictable compilation IDs:
// "<prefix>-0001", "<prefix>-0002", ...
//
// This keeps stored history and golden snapshots byte-identical between
// runs. If prefix is empty, "test-compilation" is used.
//
// Thread-safety: safe for concurrent use.
type SequenceIDGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	if prefix == "" {
		prefix = "test-compilation"
	}
	return &SequenceIDGenerator{prefix: prefix, next: 1}
}

// Generate returns the next ID in sequence.
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("%s-%04d", g.prefix, g.next)
	g.next++
	return id
}
