package core

import "fmt"

// Expression is an immutable scalar node: a constant, a registered function
// value, an inner product of points, or a linear combination of those. Its
// canonical linear form over Gram entries and function values is computed
// on construction.
type Expression struct {
	reg      *Registry
	kind     NodeKind
	name     string
	leaf     int
	args     []*Expression
	points   []*Point
	coef     float64
	constant float64
	form     LinearForm
	err      error
}

// Constant returns a constant expression; it is compatible with every registry
func Constant(c float64) *Expression {
	form := NewLinearForm()
	form.Constant = c
	return &Expression{kind: NodeConstant, leaf: -1, constant: c, form: form}
}

// Add returns e + o
func (e *Expression) Add(o *Expression) *Expression {
	reg, err := sameRegistry(e.reg, o.reg)
	form := e.form.Clone()
	form.AddScaled(1, o.form)
	return &Expression{
		reg:  reg,
		kind: NodeSum,
		leaf: -1,
		args: []*Expression{e, o},
		form: form,
		err:  firstErr(e.err, o.err, err),
	}
}

// Sub returns e - o
func (e *Expression) Sub(o *Expression) *Expression {
	return e.Add(o.Neg())
}

// Scale returns c * e
func (e *Expression) Scale(c float64) *Expression {
	return &Expression{
		reg:  e.reg,
		kind: NodeScale,
		leaf: -1,
		args: []*Expression{e},
		coef: c,
		form: e.form.Scaled(c),
		err:  e.err,
	}
}

// Neg returns -e
func (e *Expression) Neg() *Expression {
	return e.Scale(-1)
}

// AddConstant returns e + c
func (e *Expression) AddConstant(c float64) *Expression {
	return e.Add(Constant(c))
}

// Le returns the constraint e <= o
func (e *Expression) Le(o *Expression) *Constraint {
	return newConstraint(Inequality, e.Sub(o))
}

// Ge returns the constraint e >= o
func (e *Expression) Ge(o *Expression) *Constraint {
	return newConstraint(Inequality, o.Sub(e))
}

// Eq returns the constraint e == o
func (e *Expression) Eq(o *Expression) *Constraint {
	return newConstraint(Equality, e.Sub(o))
}

// LeConst returns the constraint e <= c
func (e *Expression) LeConst(c float64) *Constraint {
	return e.Le(Constant(c))
}

// GeConst returns the constraint e >= c
func (e *Expression) GeConst(c float64) *Constraint {
	return e.Ge(Constant(c))
}

// EqConst returns the constraint e == c
func (e *Expression) EqConst(c float64) *Constraint {
	return e.Eq(Constant(c))
}

// Form returns a copy of the canonical linear form
func (e *Expression) Form() LinearForm {
	return e.form.Clone()
}

// IsLeaf reports whether e is a registered function value
func (e *Expression) IsLeaf() bool {
	return e.kind == NodeLeaf
}

// LeafIndex returns the registry index of a leaf value, or -1
func (e *Expression) LeafIndex() int {
	return e.leaf
}

// Kind returns the node kind
func (e *Expression) Kind() NodeKind {
	return e.kind
}

// Operands returns the child expressions of a sum or scale node
func (e *Expression) Operands() []*Expression {
	return append([]*Expression(nil), e.args...)
}

// InnerOperands returns the two points of an inner product node
func (e *Expression) InnerOperands() (*Point, *Point, bool) {
	if e.kind != NodeInner {
		return nil, nil, false
	}
	return e.points[0], e.points[1], true
}

// Registry returns the owning registry, nil for constants
func (e *Expression) Registry() *Registry {
	return e.reg
}

// Err returns the sticky construction error, if any
func (e *Expression) Err() error {
	return e.err
}

// Name returns the leaf name, or the rendered form
func (e *Expression) Name() string {
	if e.kind == NodeLeaf {
		return e.name
	}
	return e.String()
}

// String renders the canonical form
func (e *Expression) String() string {
	if e.kind == NodeLeaf {
		return e.name
	}
	if e.reg == nil {
		return e.form.Format(
			func(i int) string { return fmt.Sprintf("x%d", i) },
			func(i int) string { return fmt.Sprintf("f%d", i) },
		)
	}
	return e.reg.FormatForm(e.form)
}

// SumExpressions returns the sum of the given expressions
func SumExpressions(exprs ...*Expression) *Expression {
	out := Constant(0)
	for _, e := range exprs {
		out = out.Add(e)
	}
	return out
}

func (e *Expression) withErr(err error) *Expression {
	if err == nil {
		return e
	}
	c := *e
	c.err = firstErr(e.err, err)
	return &c
}
