package classes

import (
	"fmt"

	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
)

// SmoothStronglyConvexQuadratic is the class of quadratic functions
// f(x) = 1/2 <x, Qx> with mu I <= Q <= L I
type SmoothStronglyConvexQuadratic struct {
	Mu float64
	L  float64
}

// NewSmoothStronglyConvexQuadratic validates 0 <= mu <= L
func NewSmoothStronglyConvexQuadratic(mu, l float64) (*SmoothStronglyConvexQuadratic, error) {
	if err := checkNonNegative("SmoothStronglyConvexQuadratic", "mu", mu); err != nil {
		return nil, err
	}
	if err := checkFinitePositive("SmoothStronglyConvexQuadratic", "L", l); err != nil {
		return nil, err
	}
	if mu > l {
		return nil, core.NewError(core.ErrInvalidInput, "SmoothStronglyConvexQuadratic: mu (%g) must not exceed L (%g)", mu, l)
	}
	return &SmoothStronglyConvexQuadratic{Mu: mu, L: l}, nil
}

// Name returns the class name with its parameters
func (c *SmoothStronglyConvexQuadratic) Name() string {
	return fmt.Sprintf("SmoothStronglyConvexQuadratic(mu=%g,L=%g)", c.Mu, c.L)
}

// Differentiable returns true
func (c *SmoothStronglyConvexQuadratic) Differentiable() bool { return true }

// Interpolate emits f_i == 1/2 <x_i, g_i>, the symmetry conditions
// <x_i, g_j> == <x_j, g_i> for every unordered pair, and the LMI
// [<L x_i - g_i, g_j - mu x_j>]_ij >= 0 (symmetrized)
func (c *SmoothStronglyConvexQuadratic) Interpolate(prefix string, triples []core.Triple) core.ConstraintSet {
	var set core.ConstraintSet
	n := len(triples)
	if n == 0 {
		return set
	}
	for i, t := range triples {
		set.Add(t.F.Eq(t.X.Dot(t.G).Scale(0.5)).Named(pointName(prefix, "QuadraticValue", i)))
	}
	for _, p := range Pairs(n) {
		ti, tj := triples[p.I], triples[p.J]
		set.Add(ti.X.Dot(tj.G).Eq(tj.X.Dot(ti.G)).Named(pairName(prefix, "QuadraticSymmetry", p)))
	}

	rows := make([][]*core.Expression, n)
	for i := range rows {
		rows[i] = make([]*core.Expression, n)
	}
	for i, ti := range triples {
		for j := i; j < n; j++ {
			tj := triples[j]
			a := ti.X.Scale(c.L).Sub(ti.G).Dot(tj.G.Sub(tj.X.Scale(c.Mu)))
			b := tj.X.Scale(c.L).Sub(tj.G).Dot(ti.G.Sub(ti.X.Scale(c.Mu)))
			e := a.Add(b).Scale(0.5)
			rows[i][j] = e
			rows[j][i] = e
		}
	}
	m, err := core.NewPSDMatrix(fmt.Sprintf("%s:QuadraticSpectrum", prefix), rows)
	if err != nil {
		set.Fail(err)
		return set
	}
	set.AddMatrix(m)
	return set
}
