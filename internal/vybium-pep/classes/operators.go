package classes

import (
	"fmt"

	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
)

// Operator classes constrain only the (point, output) pairs of each triple.
// Their conditions are symmetric in (i, j), so each is emitted once per
// unordered pair.

// Monotone is the class of maximally monotone operators
type Monotone struct{}

// NewMonotone returns the monotone class
func NewMonotone() *Monotone {
	return &Monotone{}
}

// Name returns the class name
func (c *Monotone) Name() string { return "Monotone" }

// Differentiable returns false: maximally monotone operators may be set-valued
func (c *Monotone) Differentiable() bool { return false }

// Interpolate emits <g_i - g_j, x_i - x_j> >= 0
func (c *Monotone) Interpolate(prefix string, triples []core.Triple) core.ConstraintSet {
	var set core.ConstraintSet
	for _, p := range Pairs(len(triples)) {
		ti, tj := triples[p.I], triples[p.J]
		e := ti.G.Sub(tj.G).Dot(ti.X.Sub(tj.X))
		set.Add(e.GeConst(0).Named(pairName(prefix, c.Name(), p)))
	}
	return set
}

// StronglyMonotone is the class of maximally mu-strongly monotone operators
type StronglyMonotone struct {
	Mu float64
}

// NewStronglyMonotone validates mu > 0
func NewStronglyMonotone(mu float64) (*StronglyMonotone, error) {
	if err := checkFinitePositive("StronglyMonotone", "mu", mu); err != nil {
		return nil, err
	}
	return &StronglyMonotone{Mu: mu}, nil
}

// Name returns the class name with its parameter
func (c *StronglyMonotone) Name() string { return fmt.Sprintf("StronglyMonotone(mu=%g)", c.Mu) }

// Differentiable returns false
func (c *StronglyMonotone) Differentiable() bool { return false }

// Interpolate emits <g_i - g_j, x_i - x_j> >= mu |x_i - x_j|^2
func (c *StronglyMonotone) Interpolate(prefix string, triples []core.Triple) core.ConstraintSet {
	var set core.ConstraintSet
	for _, p := range Pairs(len(triples)) {
		set.Add(stronglyMonotone(triples[p.I], triples[p.J], c.Mu).Named(pairName(prefix, "StronglyMonotone", p)))
	}
	return set
}

// LipschitzOperator is the class of L-Lipschitz operators
type LipschitzOperator struct {
	L float64
}

// NewLipschitzOperator validates L > 0
func NewLipschitzOperator(l float64) (*LipschitzOperator, error) {
	if err := checkFinitePositive("LipschitzOperator", "L", l); err != nil {
		return nil, err
	}
	return &LipschitzOperator{L: l}, nil
}

// Name returns the class name with its parameter
func (c *LipschitzOperator) Name() string { return fmt.Sprintf("LipschitzOperator(L=%g)", c.L) }

// Differentiable returns true: Lipschitz operators are single-valued
func (c *LipschitzOperator) Differentiable() bool { return true }

// Interpolate emits |g_i - g_j|^2 <= L^2 |x_i - x_j|^2
func (c *LipschitzOperator) Interpolate(prefix string, triples []core.Triple) core.ConstraintSet {
	var set core.ConstraintSet
	for _, p := range Pairs(len(triples)) {
		set.Add(lipschitz(triples[p.I], triples[p.J], c.L).Named(pairName(prefix, "Lipschitz", p)))
	}
	return set
}

// Cocoercive is the class of beta-cocoercive operators
type Cocoercive struct {
	Beta float64
}

// NewCocoercive validates beta > 0
func NewCocoercive(beta float64) (*Cocoercive, error) {
	if err := checkFinitePositive("Cocoercive", "beta", beta); err != nil {
		return nil, err
	}
	return &Cocoercive{Beta: beta}, nil
}

// Name returns the class name with its parameter
func (c *Cocoercive) Name() string { return fmt.Sprintf("Cocoercive(beta=%g)", c.Beta) }

// Differentiable returns true: cocoercive operators are single-valued
func (c *Cocoercive) Differentiable() bool { return true }

// Interpolate emits <g_i - g_j, x_i - x_j> >= beta |g_i - g_j|^2
func (c *Cocoercive) Interpolate(prefix string, triples []core.Triple) core.ConstraintSet {
	var set core.ConstraintSet
	for _, p := range Pairs(len(triples)) {
		ti, tj := triples[p.I], triples[p.J]
		dg := ti.G.Sub(tj.G)
		e := dg.NormSquared().Scale(c.Beta).Sub(dg.Dot(ti.X.Sub(tj.X)))
		set.Add(e.LeConst(0).Named(pairName(prefix, "Cocoercive", p)))
	}
	return set
}

// LipschitzStronglyMonotone is the class of L-Lipschitz mu-strongly
// monotone operators. The two conditions are necessary; they are not
// sufficient for interpolation in general, so bounds are upper bounds.
type LipschitzStronglyMonotone struct {
	Mu float64
	L  float64
}

// NewLipschitzStronglyMonotone validates 0 <= mu <= L
func NewLipschitzStronglyMonotone(mu, l float64) (*LipschitzStronglyMonotone, error) {
	if err := checkNonNegative("LipschitzStronglyMonotone", "mu", mu); err != nil {
		return nil, err
	}
	if err := checkFinitePositive("LipschitzStronglyMonotone", "L", l); err != nil {
		return nil, err
	}
	if mu > l {
		return nil, core.NewError(core.ErrInvalidInput, "LipschitzStronglyMonotone: mu (%g) must not exceed L (%g)", mu, l)
	}
	return &LipschitzStronglyMonotone{Mu: mu, L: l}, nil
}

// Name returns the class name with its parameters
func (c *LipschitzStronglyMonotone) Name() string {
	return fmt.Sprintf("LipschitzStronglyMonotone(mu=%g,L=%g)", c.Mu, c.L)
}

// Differentiable returns true
func (c *LipschitzStronglyMonotone) Differentiable() bool { return true }

// Interpolate emits the strong monotonicity and Lipschitz conditions
func (c *LipschitzStronglyMonotone) Interpolate(prefix string, triples []core.Triple) core.ConstraintSet {
	var set core.ConstraintSet
	for _, p := range Pairs(len(triples)) {
		ti, tj := triples[p.I], triples[p.J]
		set.Add(stronglyMonotone(ti, tj, c.Mu).Named(pairName(prefix, "StronglyMonotone", p)))
		set.Add(lipschitz(ti, tj, c.L).Named(pairName(prefix, "Lipschitz", p)))
	}
	return set
}

func stronglyMonotone(ti, tj core.Triple, mu float64) *core.Constraint {
	dx := ti.X.Sub(tj.X)
	e := dx.NormSquared().Scale(mu).Sub(ti.G.Sub(tj.G).Dot(dx))
	return e.LeConst(0)
}

func lipschitz(ti, tj core.Triple, l float64) *core.Constraint {
	dg := ti.G.Sub(tj.G)
	e := dg.NormSquared().Sub(ti.X.Sub(tj.X).NormSquared().Scale(l * l))
	return e.LeConst(0)
}
