package classes

import (
	"fmt"

	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
)

// SmoothStronglyConvex is the class of L-smooth mu-strongly convex
// functions, 0 <= mu < L
type SmoothStronglyConvex struct {
	Mu float64
	L  float64
}

// NewSmoothStronglyConvex validates 0 <= mu < L
func NewSmoothStronglyConvex(mu, l float64) (*SmoothStronglyConvex, error) {
	if err := checkNonNegative("SmoothStronglyConvex", "mu", mu); err != nil {
		return nil, err
	}
	if err := checkFinitePositive("SmoothStronglyConvex", "L", l); err != nil {
		return nil, err
	}
	if mu >= l {
		return nil, core.NewError(core.ErrInvalidInput, "SmoothStronglyConvex: mu (%g) must be smaller than L (%g)", mu, l)
	}
	return &SmoothStronglyConvex{Mu: mu, L: l}, nil
}

// NewSmoothConvex returns the class of L-smooth convex functions
func NewSmoothConvex(l float64) (*SmoothStronglyConvex, error) {
	return NewSmoothStronglyConvex(0, l)
}

// Name returns the class name with its parameters
func (c *SmoothStronglyConvex) Name() string {
	if c.Mu == 0 {
		return fmt.Sprintf("SmoothConvex(L=%g)", c.L)
	}
	return fmt.Sprintf("SmoothStronglyConvex(mu=%g,L=%g)", c.Mu, c.L)
}

// Differentiable returns true
func (c *SmoothStronglyConvex) Differentiable() bool { return true }

// Interpolate emits, for every ordered pair,
//
//	f_i >= f_j + <g_j, x_i - x_j> + 1/(2L) |g_i - g_j|^2
//	       + mu/(2(1 - mu/L)) |x_i - x_j - (g_i - g_j)/L|^2
func (c *SmoothStronglyConvex) Interpolate(prefix string, triples []core.Triple) core.ConstraintSet {
	var set core.ConstraintSet
	for _, p := range OrderedPairs(len(triples)) {
		ti, tj := triples[p.I], triples[p.J]
		dg := ti.G.Sub(tj.G)
		e := convexGap(ti, tj).Add(dg.NormSquared().Scale(1 / (2 * c.L)))
		if c.Mu != 0 {
			r := ti.X.Sub(tj.X).Sub(dg.Scale(1 / c.L))
			e = e.Add(r.NormSquared().Scale(c.Mu / (2 * (1 - c.Mu/c.L))))
		}
		set.Add(e.LeConst(0).Named(pairName(prefix, "SmoothStronglyConvex", p)))
	}
	return set
}

// Smooth is the class of L-smooth, possibly nonconvex, functions
type Smooth struct {
	L float64
}

// NewSmooth validates L > 0
func NewSmooth(l float64) (*Smooth, error) {
	if err := checkFinitePositive("Smooth", "L", l); err != nil {
		return nil, err
	}
	return &Smooth{L: l}, nil
}

// Name returns the class name with its parameter
func (c *Smooth) Name() string { return fmt.Sprintf("Smooth(L=%g)", c.L) }

// Differentiable returns true
func (c *Smooth) Differentiable() bool { return true }

// Interpolate emits, for every ordered pair,
//
//	f_i >= f_j - L/4 |x_i - x_j|^2 + 1/2 <g_i + g_j, x_i - x_j> + 1/(4L) |g_i - g_j|^2
func (c *Smooth) Interpolate(prefix string, triples []core.Triple) core.ConstraintSet {
	var set core.ConstraintSet
	for _, p := range OrderedPairs(len(triples)) {
		ti, tj := triples[p.I], triples[p.J]
		dx := ti.X.Sub(tj.X)
		dg := ti.G.Sub(tj.G)
		e := tj.F.Sub(ti.F).
			Add(ti.G.Add(tj.G).Dot(dx).Scale(0.5)).
			Add(dg.NormSquared().Scale(1 / (4 * c.L))).
			Sub(dx.NormSquared().Scale(c.L / 4))
		set.Add(e.LeConst(0).Named(pairName(prefix, "Smooth", p)))
	}
	return set
}
