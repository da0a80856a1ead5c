package classes

import (
	"fmt"
	"math"

	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
)

// Convex is the class of closed proper convex functions
type Convex struct{}

// NewConvex returns the convex class
func NewConvex() *Convex {
	return &Convex{}
}

// Name returns the class name
func (c *Convex) Name() string { return "Convex" }

// Differentiable returns false: convex functions may have several subgradients
func (c *Convex) Differentiable() bool { return false }

// Interpolate emits f_i >= f_j + <g_j, x_i - x_j> for every ordered pair
func (c *Convex) Interpolate(prefix string, triples []core.Triple) core.ConstraintSet {
	var set core.ConstraintSet
	for _, p := range OrderedPairs(len(triples)) {
		ti, tj := triples[p.I], triples[p.J]
		set.Add(convexGap(ti, tj).LeConst(0).Named(pairName(prefix, c.Name(), p)))
	}
	return set
}

// StronglyConvex is the class of mu-strongly convex functions
type StronglyConvex struct {
	Mu float64
}

// NewStronglyConvex validates mu > 0
func NewStronglyConvex(mu float64) (*StronglyConvex, error) {
	if err := checkFinitePositive("StronglyConvex", "mu", mu); err != nil {
		return nil, err
	}
	return &StronglyConvex{Mu: mu}, nil
}

// Name returns the class name with its parameter
func (c *StronglyConvex) Name() string { return fmt.Sprintf("StronglyConvex(mu=%g)", c.Mu) }

// Differentiable returns false
func (c *StronglyConvex) Differentiable() bool { return false }

// Interpolate emits f_i >= f_j + <g_j, x_i - x_j> + mu/2 |x_i - x_j|^2 for every ordered pair
func (c *StronglyConvex) Interpolate(prefix string, triples []core.Triple) core.ConstraintSet {
	var set core.ConstraintSet
	for _, p := range OrderedPairs(len(triples)) {
		ti, tj := triples[p.I], triples[p.J]
		dx := ti.X.Sub(tj.X)
		e := convexGap(ti, tj).Add(dx.NormSquared().Scale(c.Mu / 2))
		set.Add(e.LeConst(0).Named(pairName(prefix, "StronglyConvex", p)))
	}
	return set
}

// ConvexLipschitz is the class of convex functions with subgradients bounded by M
type ConvexLipschitz struct {
	M float64
}

// NewConvexLipschitz validates M > 0
func NewConvexLipschitz(m float64) (*ConvexLipschitz, error) {
	if err := checkFinitePositive("ConvexLipschitz", "M", m); err != nil {
		return nil, err
	}
	return &ConvexLipschitz{M: m}, nil
}

// Name returns the class name with its parameter
func (c *ConvexLipschitz) Name() string { return fmt.Sprintf("ConvexLipschitz(M=%g)", c.M) }

// Differentiable returns false
func (c *ConvexLipschitz) Differentiable() bool { return false }

// Interpolate emits the convex conditions and |g_i|^2 <= M^2 for every triple
func (c *ConvexLipschitz) Interpolate(prefix string, triples []core.Triple) core.ConstraintSet {
	set := (&Convex{}).Interpolate(prefix, triples)
	for i, t := range triples {
		set.Add(t.G.NormSquared().LeConst(c.M * c.M).Named(pointName(prefix, "Lipschitz", i)))
	}
	return set
}

// ConvexIndicator is the class of indicator functions of closed convex sets
// of diameter at most D (D = +Inf for unbounded sets)
type ConvexIndicator struct {
	D float64
}

// NewConvexIndicator validates D > 0; math.Inf(1) means unbounded
func NewConvexIndicator(d float64) (*ConvexIndicator, error) {
	if math.IsNaN(d) || d <= 0 {
		return nil, core.NewError(core.ErrInvalidInput, "ConvexIndicator: D must be positive, got %g", d)
	}
	return &ConvexIndicator{D: d}, nil
}

// Name returns the class name with its parameter
func (c *ConvexIndicator) Name() string {
	if math.IsInf(c.D, 1) {
		return "ConvexIndicator"
	}
	return fmt.Sprintf("ConvexIndicator(D=%g)", c.D)
}

// Differentiable returns false
func (c *ConvexIndicator) Differentiable() bool { return false }

// Interpolate emits f_i == 0, the normal cone conditions <g_j, x_i - x_j> <= 0
// for every ordered pair and, for bounded sets, |x_i - x_j|^2 <= D^2
func (c *ConvexIndicator) Interpolate(prefix string, triples []core.Triple) core.ConstraintSet {
	var set core.ConstraintSet
	for i, t := range triples {
		set.Add(t.F.EqConst(0).Named(pointName(prefix, "IndicatorValue", i)))
	}
	for _, p := range OrderedPairs(len(triples)) {
		ti, tj := triples[p.I], triples[p.J]
		set.Add(tj.G.Dot(ti.X.Sub(tj.X)).LeConst(0).Named(pairName(prefix, "NormalCone", p)))
	}
	if !math.IsInf(c.D, 1) {
		for _, p := range Pairs(len(triples)) {
			dx := triples[p.I].X.Sub(triples[p.J].X)
			set.Add(dx.NormSquared().LeConst(c.D * c.D).Named(pairName(prefix, "Diameter", p)))
		}
	}
	return set
}

// ConvexSupport is the class of support functions of closed convex sets
// contained in the ball of radius M (M = +Inf for unbounded sets)
type ConvexSupport struct {
	M float64
}

// NewConvexSupport validates M > 0; math.Inf(1) means unbounded
func NewConvexSupport(m float64) (*ConvexSupport, error) {
	if math.IsNaN(m) || m <= 0 {
		return nil, core.NewError(core.ErrInvalidInput, "ConvexSupport: M must be positive, got %g", m)
	}
	return &ConvexSupport{M: m}, nil
}

// Name returns the class name with its parameter
func (c *ConvexSupport) Name() string {
	if math.IsInf(c.M, 1) {
		return "ConvexSupport"
	}
	return fmt.Sprintf("ConvexSupport(M=%g)", c.M)
}

// Differentiable returns false
func (c *ConvexSupport) Differentiable() bool { return false }

// Interpolate emits f_i == <g_i, x_i>, <g_j - g_i, x_i> <= 0 for every ordered
// pair and, for bounded sets, |g_i|^2 <= M^2
func (c *ConvexSupport) Interpolate(prefix string, triples []core.Triple) core.ConstraintSet {
	var set core.ConstraintSet
	for i, t := range triples {
		set.Add(t.F.Eq(t.G.Dot(t.X)).Named(pointName(prefix, "SupportValue", i)))
		if !math.IsInf(c.M, 1) {
			set.Add(t.G.NormSquared().LeConst(c.M * c.M).Named(pointName(prefix, "SupportBound", i)))
		}
	}
	for _, p := range OrderedPairs(len(triples)) {
		ti, tj := triples[p.I], triples[p.J]
		set.Add(tj.G.Sub(ti.G).Dot(ti.X).LeConst(0).Named(pairName(prefix, "Support", p)))
	}
	return set
}
