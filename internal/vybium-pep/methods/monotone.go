package methods

import (
	vybiumpep "github.com/vybium/vybium-pep/internal/vybium-pep"
	"github.com/vybium/vybium-pep/internal/vybium-pep/classes"
	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
	"github.com/vybium/vybium-pep/internal/vybium-pep/primitives"
)

// pastExtragradient solves the variational inequality of a Lipschitz
// monotone operator over a convex set, reusing the previous operator
// evaluation in the extrapolation step
func pastExtragradient(pep *vybiumpep.PEP, p Params) (*Instance, error) {
	l, gamma := p.get("L", 1), p.get("gamma", 0.25)
	if err := positive("gamma", gamma); err != nil {
		return nil, err
	}
	n, err := p.steps()
	if err != nil {
		return nil, err
	}
	ind, err := indicatorFunction(pep, "ind_C")
	if err != nil {
		return nil, err
	}
	class, err := classes.NewLipschitzStronglyMonotone(0, l)
	if err != nil {
		return nil, err
	}
	op := pep.DeclareFunction("F", core.WithClass(class))
	xs := op.Add(ind).StationaryPoint("x_star")
	x0 := pep.SetInitialPoint("x0")
	pep.SetInitialCondition(x0.Sub(xs).NormSquared().LeConst(1))

	x, _, _ := primitives.ProximalStep(x0, ind, gamma)
	v := op.Gradient(x)
	var prev *core.Point
	for i := 0; i < n; i++ {
		xt, _, _ := primitives.ProximalStep(x.Sub(v.Scale(gamma)), ind, gamma)
		v = op.Gradient(xt)
		prev = x
		x, _, _ = primitives.ProximalStep(x.Sub(v.Scale(gamma)), ind, gamma)
	}
	pep.AddPerformanceMetric(x.Sub(prev).NormSquared())
	return &Instance{Theoretical: unknown(), Guarantee: "|x_n - x_n-1|^2 <= tau |x_0 - x_*|^2"}, nil
}

// alternateProjections projects alternately onto two convex sets with a
// common point
func alternateProjections(pep *vybiumpep.PEP, p Params) (*Instance, error) {
	n, err := p.steps()
	if err != nil {
		return nil, err
	}
	q1, err := indicatorFunction(pep, "ind_Q1")
	if err != nil {
		return nil, err
	}
	q2, err := indicatorFunction(pep, "ind_Q2")
	if err != nil {
		return nil, err
	}
	xs := q1.Add(q2).StationaryPoint("x_star")
	x0 := pep.SetInitialPoint("x0")

	x := x0
	for i := 0; i < n; i++ {
		y, _, _ := primitives.ProximalStep(x, q1, 1)
		x, _, _ = primitives.ProximalStep(y, q2, 1)
	}
	proj, _, _ := primitives.ProximalStep(x, q1, 1)
	pep.AddPerformanceMetric(x.Sub(proj).NormSquared())
	pep.SetInitialCondition(x0.Sub(xs).NormSquared().LeConst(1))
	return &Instance{Theoretical: unknown(), Guarantee: "|P_Q1(x_n) - x_n|^2 <= tau |x_0 - x_*|^2"}, nil
}
