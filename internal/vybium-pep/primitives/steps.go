// Package primitives provides the algorithmic building blocks of methods:
// proximal, Bregman, inexact gradient, linear optimization and line search
// steps. Each step registers the triples it implies on the functions it uses.
package primitives

import (
	"fmt"

	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
)

// Inexactness selects how InexactGradientStep bounds the gradient error
type Inexactness int

const (
	// Relative bounds the error by epsilon times the gradient norm
	Relative Inexactness = iota
	// Absolute bounds the error by epsilon
	Absolute
)

// String returns the notion name
func (n Inexactness) String() string {
	switch n {
	case Relative:
		return "relative"
	case Absolute:
		return "absolute"
	}
	return fmt.Sprintf("inexactness(%d)", int(n))
}

// ProximalStep performs x = prox_{gamma f}(x0). It returns x, the subgradient
// (x0 - x)/gamma of f at x, and f(x).
func ProximalStep(x0 *core.Point, f *core.Function, gamma float64) (*core.Point, *core.Point, *core.Expression) {
	reg := f.Registry()
	x := reg.NewPoint("")
	g := x0.Sub(x).Scale(1 / gamma)
	fx := reg.NewValue("")
	f.AddTriple(x, g, fx)
	return x, g, fx
}

// InexactGradientStep performs x = x0 - gamma*d where d is an approximate
// gradient of f at x0 satisfying |d - g0|^2 <= epsilon^2 |g0|^2 (relative) or
// |d - g0|^2 <= epsilon^2 (absolute). It returns x, d and f(x0).
func InexactGradientStep(x0 *core.Point, f *core.Function, gamma, epsilon float64, notion Inexactness) (*core.Point, *core.Point, *core.Expression) {
	g0, fx0 := f.Oracle(x0)
	d := f.Registry().NewPoint("")
	gap := d.Sub(g0).NormSquared()
	switch notion {
	case Relative:
		f.AddConstraint(gap.Le(g0.NormSquared().Scale(epsilon * epsilon)))
	case Absolute:
		f.AddConstraint(gap.LeConst(epsilon * epsilon))
	default:
		panic(core.NewError(core.ErrInvalidInput, "unknown inexactness notion %s", notion))
	}
	return x0.Sub(d.Scale(gamma)), d, fx0
}

// BregmanGradientStep performs the mirror step
// grad h(x) = grad h(x0) - gamma * g0 with mirror map h. It returns x,
// grad h(x) and h(x).
func BregmanGradientStep(g0, sx0 *core.Point, mirrorMap *core.Function, gamma float64) (*core.Point, *core.Point, *core.Expression) {
	reg := mirrorMap.Registry()
	sx := sx0.Sub(g0.Scale(gamma))
	x := reg.NewPoint("")
	hx := reg.NewValue("")
	mirrorMap.AddTriple(x, sx, hx)
	return x, sx, hx
}

// BregmanProximalStep performs
// x = argmin_u { gamma f(u) + h(u) - <grad h(x0), u> }. It returns x,
// grad h(x), h(x), a subgradient of f at x and f(x).
func BregmanProximalStep(sx0 *core.Point, mirrorMap, f *core.Function, gamma float64) (x, sx *core.Point, hx *core.Expression, gx *core.Point, fx *core.Expression) {
	reg := f.Registry()
	gx = reg.NewPoint("")
	fx = reg.NewValue("")
	x = reg.NewPoint("")
	f.AddTriple(x, gx, fx)
	hx = reg.NewValue("")
	sx = sx0.Sub(gx.Scale(gamma))
	mirrorMap.AddTriple(x, sx, hx)
	return x, sx, hx, gx, fx
}

// LinearOptimizationStep returns a minimizer x of <dir, u> over the set whose
// indicator is ind, together with the normal vector -dir and ind(x)
func LinearOptimizationStep(dir *core.Point, ind *core.Function) (*core.Point, *core.Point, *core.Expression) {
	reg := ind.Registry()
	x := reg.NewPoint("")
	gx := dir.Neg()
	fx := reg.NewValue("")
	ind.AddTriple(x, gx, fx)
	return x, gx, fx
}

// ExactLineSearchStep returns a point x minimizing f over x0 + span(directions),
// relaxed to the optimality conditions <g(x), x - x0> == 0 and
// <g(x), d> == 0 for every direction d. It returns x, g(x) and f(x).
func ExactLineSearchStep(x0 *core.Point, f *core.Function, directions ...*core.Point) (*core.Point, *core.Point, *core.Expression) {
	x := f.Registry().NewPoint("")
	gx, fx := f.Oracle(x)
	f.AddConstraint(gx.Dot(x.Sub(x0)).EqConst(0))
	for _, d := range directions {
		f.AddConstraint(gx.Dot(d).EqConst(0))
	}
	return x, gx, fx
}
