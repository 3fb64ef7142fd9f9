package ir

// Nameable is implemented by the kinds that carry an explicit-name slot.
// Naming one of them writes the slot instead of introducing a binding node.
type Nameable interface {
	Expr
	ExplicitName() string
	WithName(name string) Expr
}

// HasNameSlot reports whether e carries an explicit-name slot.
func HasNameSlot(e Expr) bool {
	_, ok := e.(Nameable)
	return ok
}

func (a *Apply) ExplicitName() string { return a.Name }

// WithName returns a copy of a with its name slot set.
func (a *Apply) WithName(name string) Expr {
	c := *a
	c.Name = name
	return &c
}

func (a *ApplyKeywords) ExplicitName() string { return a.Name }

func (a *ApplyKeywords) WithName(name string) Expr {
	c := *a
	c.Name = name
	return &c
}

func (t *Tensor) ExplicitName() string { return t.Name }

func (t *Tensor) WithName(name string) Expr {
	c := *t
	c.Name = name
	return &c
}

func (p *PackageRef) ExplicitName() string { return p.Name }

func (p *PackageRef) WithName(name string) Expr {
	c := *p
	c.Name = name
	return &c
}

// Identity wraps value in the backend's identity operation on the builtin
// namespace ns, naming the result.
func Identity(ns, name string, value Expr) *Apply {
	return &Apply{
		Name:   name,
		Callee: &PackageRef{Package: ns, Member: "identity"},
		Args:   []Expr{value},
	}
}
