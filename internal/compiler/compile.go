// Package compiler turns nao source into final IR: the builder maps the
// syntax tree onto raw IR, the rewriter lowers it, and the checkers verify
// attribute currying and IR invariants.
package compiler

import (
	"github.com/roach88/nao/internal/ir"
	"github.com/roach88/nao/internal/syntax"
)

// BuildSource parses one file and returns its raw IR.
func BuildSource(file, src string) ([]ir.Node, error) {
	prog, err := syntax.Parse(file, src)
	if err != nil {
		return nil, err
	}
	return Build(prog)
}

// CompileSource parses, builds and rewrites one file into the package name.
// Each call uses a fresh Rewriter, so generated names depend only on the
// source.
func CompileSource(name, file, src string) (*ir.Package, error) {
	raw, err := BuildSource(file, src)
	if err != nil {
		return nil, err
	}
	decls, err := NewRewriter().Rewrite(raw)
	if err != nil {
		return nil, err
	}
	return &ir.Package{Name: name, Decls: decls}, nil
}
