package resolver

import "github.com/roach88/nao/internal/ir"

// Unit is one package of a pallet.
type Unit struct {
	Key     string  // import key, "path" or "path:scope"
	Package ir.Node // *ir.Package or *ir.ForeignPackage
}

// Pallet is a root package with its transitive imports. Units are ordered so
// that every package follows the packages it imports; imports keep their
// declaration order and the root comes last.
type Pallet struct {
	Units []Unit
}

func newPallet(roots ...*unit) *Pallet {
	p := &Pallet{}
	seen := map[string]bool{}
	var visit func(u *unit)
	visit = func(u *unit) {
		if seen[u.key] {
			return
		}
		seen[u.key] = true
		for _, dep := range u.deps {
			visit(dep)
		}
		p.Units = append(p.Units, Unit{Key: u.key, Package: u.node})
	}
	for _, r := range roots {
		visit(r)
	}
	return p
}

// Packages returns the pallet's packages in order.
func (p *Pallet) Packages() []ir.Node {
	out := make([]ir.Node, len(p.Units))
	for i, u := range p.Units {
		out[i] = u.Package
	}
	return out
}

// Keys returns the import keys of the pallet's packages in order.
func (p *Pallet) Keys() []string {
	out := make([]string, len(p.Units))
	for i, u := range p.Units {
		out[i] = u.Key
	}
	return out
}

// Root is the last unit, the package the pallet was resolved for.
func (p *Pallet) Root() ir.Node {
	if len(p.Units) == 0 {
		return nil
	}
	return p.Units[len(p.Units)-1].Package
}
