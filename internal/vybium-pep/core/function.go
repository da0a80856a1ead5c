package core

import (
	"fmt"
	"sort"
	"strings"
)

// Triple is one registered evaluation (x, g, f) of a function: a point, a
// subgradient (or operator output) at that point, and the function value.
type Triple struct {
	X *Point
	G *Point
	F *Expression
}

// Class is a function or operator class able to emit interpolation
// constraints for a finite list of triples. The constraints must hold if and
// only if some member of the class realizes every triple.
type Class interface {
	// Name identifies the class and its parameters
	Name() string
	// Differentiable reports whether every member of the class is
	// differentiable, so repeated evaluations may share a gradient
	Differentiable() bool
	// Interpolate returns the interpolation constraints for triples;
	// prefix names the owning function in constraint names
	Interpolate(prefix string, triples []Triple) ConstraintSet
}

// FunctionOption configures a declared function
type FunctionOption func(*Function)

// WithClass adds a class to the function; a function may belong to several
func WithClass(c Class) FunctionOption {
	return func(f *Function) {
		if c != nil {
			f.classes = append(f.classes, c)
		}
	}
}

// Differentiable marks the function as differentiable
func Differentiable() FunctionOption {
	return func(f *Function) {
		f.differentiable = true
	}
}

type term struct {
	fn     *Function
	weight float64
}

// Function is a declared function or operator. Leaf functions own an
// append-only log of triples; composite functions (sums and scalings of
// leaves) delegate every evaluation to their leaves.
type Function struct {
	reg            *Registry
	id             int
	name           string
	leaf           bool
	classes        []Class
	differentiable bool
	terms          []term
	triples        []Triple
	extra          []*Constraint
	err            error
}

// Add returns the composite function f + g
func (f *Function) Add(g *Function) *Function {
	return f.combine(g, 1)
}

// Sub returns the composite function f - g
func (f *Function) Sub(g *Function) *Function {
	return f.combine(g, -1)
}

// Scale returns the composite function c * f
func (f *Function) Scale(c float64) *Function {
	terms := make([]term, 0, len(f.terms))
	for _, t := range f.terms {
		if w := c * t.weight; w != 0 {
			terms = append(terms, term{fn: t.fn, weight: w})
		}
	}
	return f.composite(fmt.Sprintf("%g*%s", c, f.name), terms, f.err)
}

func (f *Function) combine(g *Function, sign float64) *Function {
	_, err := sameRegistry(f.reg, g.reg)
	weights := make(map[*Function]float64)
	var order []*Function
	for _, t := range f.terms {
		if _, ok := weights[t.fn]; !ok {
			order = append(order, t.fn)
		}
		weights[t.fn] += t.weight
	}
	for _, t := range g.terms {
		if _, ok := weights[t.fn]; !ok {
			order = append(order, t.fn)
		}
		weights[t.fn] += sign * t.weight
	}
	terms := make([]term, 0, len(order))
	for _, fn := range order {
		if w := weights[fn]; w != 0 {
			terms = append(terms, term{fn: fn, weight: w})
		}
	}
	op := "+"
	if sign < 0 {
		op = "-"
	}
	return f.composite(fmt.Sprintf("(%s %s %s)", f.name, op, g.name), terms, firstErr(f.err, g.err, err))
}

func (f *Function) composite(name string, terms []term, err error) *Function {
	f.reg.mustBeOpen("Function composition")
	sort.SliceStable(terms, func(a, b int) bool { return terms[a].fn.id < terms[b].fn.id })
	c := &Function{
		reg:   f.reg,
		id:    len(f.reg.functions),
		name:  name,
		terms: terms,
		err:   err,
	}
	f.reg.functions = append(f.reg.functions, c)
	return c
}

// Oracle evaluates the function at x and returns a (sub)gradient and the value.
// A differentiable leaf reuses the triple of an already evaluated point; a
// non-differentiable leaf reuses the value but issues a fresh subgradient.
func (f *Function) Oracle(x *Point) (*Point, *Expression) {
	if err := f.check(x); err != nil {
		return ZeroPoint().withErr(err), Constant(0).withErr(err)
	}
	if f.leaf {
		return f.leafOracle(x)
	}
	g, v := ZeroPoint(), Constant(0)
	for _, t := range f.terms {
		gk, vk := t.fn.leafOracle(x)
		g = g.Add(gk.Scale(t.weight))
		v = v.Add(vk.Scale(t.weight))
	}
	return g, v
}

// Gradient returns a (sub)gradient of the function at x
func (f *Function) Gradient(x *Point) *Point {
	if err := f.check(x); err != nil {
		return ZeroPoint().withErr(err)
	}
	if f.leaf {
		if t, ok := f.lookup(x); ok && f.differentiable {
			return t.G
		}
		g, _ := f.leafOracle(x)
		return g
	}
	g := ZeroPoint()
	for _, t := range f.terms {
		g = g.Add(t.fn.Gradient(x).Scale(t.weight))
	}
	return g
}

// Subgradient is an alias of Gradient
func (f *Function) Subgradient(x *Point) *Point {
	return f.Gradient(x)
}

// Value returns the function value at x, reusing earlier evaluations
func (f *Function) Value(x *Point) *Expression {
	if err := f.check(x); err != nil {
		return Constant(0).withErr(err)
	}
	if f.leaf {
		if t, ok := f.lookup(x); ok {
			return t.F
		}
		_, v := f.leafOracle(x)
		return v
	}
	v := Constant(0)
	for _, t := range f.terms {
		v = v.Add(t.fn.Value(x).Scale(t.weight))
	}
	return v
}

// StationaryPoint returns a new point at which the function admits a zero
// (sub)gradient. For a composite function every leaf but the last is
// evaluated normally and the last leaf's subgradient is the negated
// weighted sum of the others.
func (f *Function) StationaryPoint(name string) *Point {
	if f.err != nil {
		return ZeroPoint().withErr(f.err)
	}
	if len(f.terms) == 0 {
		return ZeroPoint().withErr(NewError(ErrMalformedExpression, "stationary point of the empty function %s", f.name))
	}
	if name == "" {
		name = fmt.Sprintf("%s_star", f.name)
	}
	x := f.reg.NewPoint(name)
	if f.leaf {
		f.AddTriple(x, ZeroPoint(), f.reg.NewValue(fmt.Sprintf("%s(%s)", f.name, name)))
		return x
	}
	f.distribute(x, ZeroPoint(), nil)
	return x
}

// AddTriple registers (x, g, v) as an evaluation of the function. On a
// composite function, every leaf but the last receives a fresh subgradient
// and value; the last receives what remains of g and v. A nil v registers
// fresh values only.
func (f *Function) AddTriple(x, g *Point, v *Expression) {
	f.reg.mustBeOpen("AddTriple")
	err := firstErr(f.check(x), f.check(g))
	if err == nil && v != nil {
		if _, rerr := sameRegistry(f.reg, v.reg); rerr != nil {
			err = WrapError(ErrInvalidReference, rerr, "value %s used with function %s", v.Name(), f.name)
		} else {
			err = v.err
		}
	}
	if err != nil {
		f.err = firstErr(f.err, err)
		return
	}
	if f.leaf {
		if v == nil {
			v = f.reg.NewValue(fmt.Sprintf("%s_%d", f.name, len(f.triples)))
		}
		f.triples = append(f.triples, Triple{X: x, G: g, F: v})
		return
	}
	f.distribute(x, g, v)
}

func (f *Function) distribute(x, g *Point, v *Expression) {
	last := len(f.terms) - 1
	restG, restV := g, v
	for k, t := range f.terms {
		if k == last {
			break
		}
		gk, vk := t.fn.leafOracle(x)
		restG = restG.Sub(gk.Scale(t.weight))
		if restV != nil {
			restV = restV.Sub(vk.Scale(t.weight))
		}
	}
	lt := f.terms[last]
	var vLast *Expression
	if restV != nil {
		vLast = restV.Scale(1 / lt.weight)
	}
	lt.fn.AddTriple(x, restG.Scale(1/lt.weight), vLast)
}

// AddConstraint attaches an extra constraint to the function; it is emitted
// with the function's interpolation constraints
func (f *Function) AddConstraint(c *Constraint) {
	f.reg.mustBeOpen("AddConstraint")
	if !f.leaf {
		f.err = firstErr(f.err, NewError(ErrInvalidInput, "constraints can only be attached to leaf functions, not %s", f.name))
		return
	}
	f.extra = append(f.extra, c)
}

// Interpolate returns the class constraints of a leaf function over its
// triples, followed by its attached constraints
func (f *Function) Interpolate() ConstraintSet {
	var set ConstraintSet
	if !f.leaf {
		return set
	}
	triples := f.Triples()
	for _, c := range f.classes {
		set.Merge(c.Interpolate(f.name, triples))
	}
	set.Add(f.Extras()...)
	return set
}

// Extras returns the constraints attached with AddConstraint; unnamed ones
// are named after the function
func (f *Function) Extras() []*Constraint {
	out := make([]*Constraint, len(f.extra))
	for i, c := range f.extra {
		if c.Name == "" {
			c = c.Named(fmt.Sprintf("%s:extra[%d]", f.name, i))
		}
		out[i] = c
	}
	return out
}

// Triples returns a copy of the registered triples of a leaf function
func (f *Function) Triples() []Triple {
	return append([]Triple(nil), f.triples...)
}

// Classes returns the declared classes
func (f *Function) Classes() []Class {
	return append([]Class(nil), f.classes...)
}

// ClassNames returns the declared class names joined by "+"
func (f *Function) ClassNames() string {
	names := make([]string, len(f.classes))
	for i, c := range f.classes {
		names[i] = c.Name()
	}
	return strings.Join(names, "+")
}

// IsLeaf reports whether the function was declared (not composed)
func (f *Function) IsLeaf() bool {
	return f.leaf
}

// IsDifferentiable reports whether gradients are reused across evaluations
func (f *Function) IsDifferentiable() bool {
	return f.differentiable
}

// Name returns the function name
func (f *Function) Name() string {
	return f.name
}

// Registry returns the owning registry
func (f *Function) Registry() *Registry {
	return f.reg
}

// Err returns the sticky construction error, if any
func (f *Function) Err() error {
	return f.err
}

// Leaves returns the leaf functions and weights of the decomposition
func (f *Function) Leaves() ([]*Function, []float64) {
	fns := make([]*Function, len(f.terms))
	ws := make([]float64, len(f.terms))
	for i, t := range f.terms {
		fns[i] = t.fn
		ws[i] = t.weight
	}
	return fns, ws
}

func (f *Function) leafOracle(x *Point) (*Point, *Expression) {
	f.reg.mustBeOpen("Oracle")
	idx := len(f.triples)
	if t, ok := f.lookup(x); ok {
		if f.differentiable {
			return t.G, t.F
		}
		g := f.reg.NewPoint(fmt.Sprintf("g_%s_%d", f.name, idx))
		f.triples = append(f.triples, Triple{X: x, G: g, F: t.F})
		return g, t.F
	}
	g := f.reg.NewPoint(fmt.Sprintf("g_%s_%d", f.name, idx))
	v := f.reg.NewValue(fmt.Sprintf("%s_%d", f.name, idx))
	f.triples = append(f.triples, Triple{X: x, G: g, F: v})
	return g, v
}

func (f *Function) lookup(x *Point) (Triple, bool) {
	for _, t := range f.triples {
		if t.X.Equal(x) {
			return t, true
		}
	}
	return Triple{}, false
}

func (f *Function) check(p *Point) error {
	if f.err != nil {
		return f.err
	}
	if p == nil {
		return NewError(ErrMalformedExpression, "nil point passed to %s", f.name)
	}
	if p.err != nil {
		return p.err
	}
	if _, err := sameRegistry(f.reg, p.reg); err != nil {
		return WrapError(ErrInvalidReference, err, "point %s used with function %s", p.Name(), f.name)
	}
	return nil
}
