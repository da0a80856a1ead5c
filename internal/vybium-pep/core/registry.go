package core

import "fmt"

// Registry owns every leaf point, leaf function value and function declared
// for one PEP. Indices are assigned in creation order and are the Gram matrix
// and value vector indices used at compile time. A registry is append-only
// until Finalize; mutating it afterwards panics.
type Registry struct {
	points    []*Point
	values    []*Expression
	functions []*Function
	finalized bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// NewPoint registers a new leaf point
func (r *Registry) NewPoint(name string) *Point {
	r.mustBeOpen("NewPoint")
	idx := len(r.points)
	if name == "" {
		name = fmt.Sprintf("x%d", idx)
	}
	p := &Point{
		reg:    r,
		kind:   NodeLeaf,
		name:   name,
		leaf:   idx,
		decomp: map[int]float64{idx: 1},
	}
	r.points = append(r.points, p)
	return p
}

// NewValue registers a new leaf function value
func (r *Registry) NewValue(name string) *Expression {
	r.mustBeOpen("NewValue")
	idx := len(r.values)
	if name == "" {
		name = fmt.Sprintf("f%d", idx)
	}
	form := NewLinearForm()
	form.Values[idx] = 1
	e := &Expression{
		reg:  r,
		kind: NodeLeaf,
		name: name,
		leaf: idx,
		form: form,
	}
	r.values = append(r.values, e)
	return e
}

// DeclareFunction registers a new leaf function or operator
func (r *Registry) DeclareFunction(name string, opts ...FunctionOption) *Function {
	r.mustBeOpen("DeclareFunction")
	f := &Function{
		reg:  r,
		id:   len(r.functions),
		name: name,
		leaf: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	for _, c := range f.classes {
		if c.Differentiable() {
			f.differentiable = true
		}
	}
	if f.name == "" {
		f.name = fmt.Sprintf("func%d", f.id)
	}
	f.terms = []term{{fn: f, weight: 1}}
	r.functions = append(r.functions, f)
	return f
}

// Finalize freezes the registry; it is idempotent
func (r *Registry) Finalize() {
	r.finalized = true
}

// Finalized reports whether the registry was finalized
func (r *Registry) Finalized() bool {
	return r.finalized
}

// NumPoints returns the number of leaf points
func (r *Registry) NumPoints() int {
	return len(r.points)
}

// NumValues returns the number of leaf function values
func (r *Registry) NumValues() int {
	return len(r.values)
}

// Point returns the leaf point with the given index
func (r *Registry) Point(i int) *Point {
	return r.points[i]
}

// Value returns the leaf value with the given index
func (r *Registry) Value(i int) *Expression {
	return r.values[i]
}

// PointName returns the name of leaf point i
func (r *Registry) PointName(i int) string {
	if i < 0 || i >= len(r.points) {
		return fmt.Sprintf("?x%d", i)
	}
	return r.points[i].name
}

// ValueName returns the name of leaf value i
func (r *Registry) ValueName(i int) string {
	if i < 0 || i >= len(r.values) {
		return fmt.Sprintf("?f%d", i)
	}
	return r.values[i].name
}

// Functions returns every declared leaf function, in declaration order
func (r *Registry) Functions() []*Function {
	out := make([]*Function, 0, len(r.functions))
	for _, f := range r.functions {
		if f.leaf {
			out = append(out, f)
		}
	}
	return out
}

// FormatForm renders a linear form with this registry's leaf names
func (r *Registry) FormatForm(l LinearForm) string {
	return l.Format(r.PointName, r.ValueName)
}

func (r *Registry) mustBeOpen(op string) {
	if r.finalized {
		panic(NewError(ErrFinalized, "%s called on a finalized registry", op))
	}
}

// sameRegistry returns the registry shared by a and b, treating nil as
// compatible with anything, or an invalid reference error.
func sameRegistry(a, b *Registry) (*Registry, error) {
	switch {
	case a == nil:
		return b, nil
	case b == nil, a == b:
		return a, nil
	}
	return a, NewError(ErrInvalidReference, "operands belong to different PEP registries")
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Err returns the first sticky error recorded on a declared function
func (r *Registry) Err() error {
	for _, f := range r.functions {
		if f.err != nil {
			return f.err
		}
	}
	return nil
}
