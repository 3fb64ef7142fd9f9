package engine

import (
	"strings"

	"github.com/roach88/nao/internal/ir"
)

// CallTracker records the definitions currently being applied and rejects
// re-entry.
//
// Compiled graphs cannot recurse: a definition that applies itself,
// directly or through others, would unfold forever. Entering a definition
// that is already on the stack is a RECURSION error.
//
// A CallTracker belongs to one evaluation and is not safe for concurrent
// use.
type CallTracker struct {
	stack  []string
	active map[*ir.Definition]bool
}

func NewCallTracker() *CallTracker {
	return &CallTracker{active: make(map[*ir.Definition]bool)}
}

// Enter pushes fn, failing if it is already running.
func (c *CallTracker) Enter(fn *Func) error {
	if c.active[fn.def] {
		chain := append(append([]string{}, c.stack...), fn.Name())
		return runtimeErrorf(ErrCodeRecursion, "recursive application: %s", strings.Join(chain, " -> "))
	}
	c.active[fn.def] = true
	c.stack = append(c.stack, fn.Name())
	return nil
}

// Leave pops fn.
func (c *CallTracker) Leave(fn *Func) {
	delete(c.active, fn.def)
	c.stack = c.stack[:len(c.stack)-1]
}

// Depth returns the number of definitions being applied.
func (c *CallTracker) Depth() int {
	return len(c.stack)
}
