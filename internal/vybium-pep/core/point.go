package core

import (
	"fmt"
	"sort"
	"strings"
)

// NodeKind is the vocabulary of the symbolic tree
type NodeKind int

const (
	// NodeLeaf is a registered point or function value
	NodeLeaf NodeKind = iota
	// NodeConstant is the zero point or a scalar constant
	NodeConstant
	// NodeSum is the sum of two operands
	NodeSum
	// NodeScale is an operand multiplied by a scalar
	NodeScale
	// NodeInner is the inner product of two points
	NodeInner
)

// String returns the name of the node kind
func (k NodeKind) String() string {
	switch k {
	case NodeLeaf:
		return "leaf"
	case NodeConstant:
		return "constant"
	case NodeSum:
		return "sum"
	case NodeScale:
		return "scale"
	case NodeInner:
		return "inner"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Point is an immutable handle to a vector of an abstract inner-product
// space. Arithmetic returns new points; the canonical decomposition over
// leaf points is computed on construction.
type Point struct {
	reg    *Registry
	kind   NodeKind
	name   string
	leaf   int
	args   []*Point
	coef   float64
	decomp map[int]float64
	err    error
}

// ZeroPoint returns the zero vector; it is compatible with every registry
func ZeroPoint() *Point {
	return &Point{kind: NodeConstant, leaf: -1, decomp: map[int]float64{}}
}

// Add returns p + q
func (p *Point) Add(q *Point) *Point {
	reg, err := sameRegistry(p.reg, q.reg)
	decomp := make(map[int]float64, len(p.decomp)+len(q.decomp))
	for k, v := range p.decomp {
		addCoef(decomp, k, v)
	}
	for k, v := range q.decomp {
		addCoef(decomp, k, v)
	}
	return &Point{
		reg:    reg,
		kind:   NodeSum,
		leaf:   -1,
		args:   []*Point{p, q},
		decomp: decomp,
		err:    firstErr(p.err, q.err, err),
	}
}

// Sub returns p - q
func (p *Point) Sub(q *Point) *Point {
	return p.Add(q.Neg())
}

// Scale returns c * p
func (p *Point) Scale(c float64) *Point {
	decomp := make(map[int]float64, len(p.decomp))
	for k, v := range p.decomp {
		addCoef(decomp, k, c*v)
	}
	return &Point{
		reg:    p.reg,
		kind:   NodeScale,
		leaf:   -1,
		args:   []*Point{p},
		coef:   c,
		decomp: decomp,
		err:    p.err,
	}
}

// Neg returns -p
func (p *Point) Neg() *Point {
	return p.Scale(-1)
}

// Dot returns the inner product <p, q>, expanded bilinearly over leaf pairs
func (p *Point) Dot(q *Point) *Expression {
	reg, err := sameRegistry(p.reg, q.reg)
	form := NewLinearForm()
	for i, a := range p.decomp {
		for j, b := range q.decomp {
			addCoef(form.Products, NewPair(i, j), a*b)
		}
	}
	return &Expression{
		reg:    reg,
		kind:   NodeInner,
		leaf:   -1,
		points: []*Point{p, q},
		form:   form,
		err:    firstErr(p.err, q.err, err),
	}
}

// NormSquared returns <p, p>
func (p *Point) NormSquared() *Expression {
	return p.Dot(p)
}

// Decomposition returns a copy of the coefficients over leaf point indices
func (p *Point) Decomposition() map[int]float64 {
	out := make(map[int]float64, len(p.decomp))
	for k, v := range p.decomp {
		out[k] = v
	}
	return out
}

// Equal reports whether p and q have the same decomposition
func (p *Point) Equal(q *Point) bool {
	if p == q {
		return true
	}
	if p.reg != nil && q.reg != nil && p.reg != q.reg {
		return false
	}
	if len(p.decomp) != len(q.decomp) {
		return false
	}
	for k, v := range p.decomp {
		if w, ok := q.decomp[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// IsZero reports whether p is the zero vector
func (p *Point) IsZero() bool {
	return len(p.decomp) == 0
}

// IsLeaf reports whether p is a registered leaf point
func (p *Point) IsLeaf() bool {
	return p.kind == NodeLeaf
}

// LeafIndex returns the registry index of a leaf point, or -1
func (p *Point) LeafIndex() int {
	return p.leaf
}

// Kind returns the node kind
func (p *Point) Kind() NodeKind {
	return p.kind
}

// Operands returns the child nodes of a sum or scale node
func (p *Point) Operands() []*Point {
	return append([]*Point(nil), p.args...)
}

// Coefficient returns the multiplier of a scale node
func (p *Point) Coefficient() float64 {
	return p.coef
}

// Registry returns the owning registry, nil for constants
func (p *Point) Registry() *Registry {
	return p.reg
}

// Err returns the sticky construction error, if any
func (p *Point) Err() error {
	return p.err
}

// Name returns the leaf name, or the rendered decomposition
func (p *Point) Name() string {
	if p.kind == NodeLeaf {
		return p.name
	}
	return p.String()
}

// String renders the canonical decomposition
func (p *Point) String() string {
	if p.kind == NodeLeaf {
		return p.name
	}
	if len(p.decomp) == 0 {
		return "0"
	}
	keys := make([]int, 0, len(p.decomp))
	for k := range p.decomp {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	terms := make([]string, 0, len(keys))
	for _, k := range keys {
		name := fmt.Sprintf("x%d", k)
		if p.reg != nil {
			name = p.reg.PointName(k)
		}
		terms = append(terms, formatTerm(p.decomp[k], name))
	}
	return strings.ReplaceAll(strings.Join(terms, " + "), "+ -", "- ")
}

// Sum returns the sum of the given points
func Sum(points ...*Point) *Point {
	out := ZeroPoint()
	for _, p := range points {
		out = out.Add(p)
	}
	return out
}

func (p *Point) withErr(err error) *Point {
	if err == nil {
		return p
	}
	q := *p
	q.err = firstErr(p.err, err)
	return &q
}
