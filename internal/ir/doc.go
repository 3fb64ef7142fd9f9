// Package ir defines the intermediate representation produced by the nao
// compiler and consumed by the graph backend.
//
// Nodes form a closed set of tagged variants behind the sealed Node and Expr
// interfaces. ir imports nothing internal; every other package builds on it.
//
// Key constraints:
//   - Numerals keep their source digits (Whole, Fraction); there are no floats
//     anywhere in the IR.
//   - Nodes are never mutated once handed out. Rewrites return new nodes and
//     may share unchanged subtrees.
//   - Encode produces the backend's nested tagged-array form; MarshalCanonical
//     is the only serialization used for content-addressed identity.
package ir
