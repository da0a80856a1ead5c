package methods

import (
	"math"

	vybiumpep "github.com/vybium/vybium-pep/internal/vybium-pep"
	"github.com/vybium/vybium-pep/internal/vybium-pep/classes"
	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
	"github.com/vybium/vybium-pep/internal/vybium-pep/primitives"
)

// distanceStart declares the minimizer of f and a starting point at
// squared distance at most 1 from it
func distanceStart(pep *vybiumpep.PEP, f *core.Function) (x0, xs *core.Point, fs *core.Expression) {
	xs = f.StationaryPoint("x_star")
	fs = f.Value(xs)
	x0 = pep.SetInitialPoint("x0")
	pep.SetInitialCondition(x0.Sub(xs).NormSquared().LeConst(1))
	return x0, xs, fs
}

func smoothFunction(pep *vybiumpep.PEP, name string, mu, l float64) (*core.Function, error) {
	class, err := classes.NewSmoothStronglyConvex(mu, l)
	if err != nil {
		return nil, err
	}
	return pep.DeclareFunction(name, core.WithClass(class)), nil
}

func gradientDescent(pep *vybiumpep.PEP, p Params) (*Instance, error) {
	l := p.get("L", 1)
	if err := positive("L", l); err != nil {
		return nil, err
	}
	gamma := p.get("gamma", 1/l)
	n, err := p.steps()
	if err != nil {
		return nil, err
	}
	f, err := smoothFunction(pep, "f", 0, l)
	if err != nil {
		return nil, err
	}
	x0, _, fs := distanceStart(pep, f)

	x := x0
	for i := 0; i < n; i++ {
		x = x.Sub(f.Gradient(x).Scale(gamma))
	}
	pep.AddPerformanceMetric(f.Value(x).Sub(fs))

	in := &Instance{Theoretical: unknown(), Guarantee: "f(x_n) - f_* <= tau |x_0 - x_*|^2"}
	if math.Abs(gamma*l-1) < 1e-12 {
		in.Theoretical = l / float64(4*n+2)
		in.Tight = true
	}
	return in, nil
}

func gradientDescentQuadratics(pep *vybiumpep.PEP, p Params) (*Instance, error) {
	mu, l := p.get("mu", 0), p.get("L", 1)
	if err := positive("L", l); err != nil {
		return nil, err
	}
	gamma := p.get("gamma", 1/l)
	n, err := p.steps()
	if err != nil {
		return nil, err
	}
	class, err := classes.NewSmoothStronglyConvexQuadratic(mu, l)
	if err != nil {
		return nil, err
	}
	f := pep.DeclareFunction("f", core.WithClass(class))
	x0, _, fs := distanceStart(pep, f)

	x := x0
	for i := 0; i < n; i++ {
		x = x.Sub(f.Gradient(x).Scale(gamma))
	}
	pep.AddPerformanceMetric(f.Value(x).Sub(fs))

	in := &Instance{Theoretical: unknown(), Guarantee: "f(x_n) - f_* <= tau |x_0 - x_*|^2"}
	if gamma > 0 && gamma <= 2/l {
		alpha := math.Min(1, math.Max(mu/l, 1/(l*gamma*float64(2*n+1))))
		k := float64(2 * n)
		in.Theoretical = 0.5 * l * math.Max(alpha*math.Pow(1-alpha*l*gamma, k), math.Pow(1-l*gamma, k))
		in.Tight = true
	}
	return in, nil
}

func heavyBall(pep *vybiumpep.PEP, p Params) (*Instance, error) {
	mu, l := p.get("mu", 0.1), p.get("L", 1)
	if err := positive("L", l); err != nil {
		return nil, err
	}
	sl, smu := math.Sqrt(l), math.Sqrt(mu)
	alpha := p.get("alpha", 4*l/((sl+smu)*(sl+smu)))
	beta := p.get("beta", math.Pow((sl-smu)/(sl+smu), 2))
	n, err := p.steps()
	if err != nil {
		return nil, err
	}
	f, err := smoothFunction(pep, "f", mu, l)
	if err != nil {
		return nil, err
	}
	x0, _, fs := distanceStart(pep, f)

	prev := x0
	x := x0.Sub(f.Gradient(x0).Scale(alpha / l))
	for i := 0; i < n; i++ {
		x, prev = x.Sub(f.Gradient(x).Scale(alpha/l)).Add(x.Sub(prev).Scale(beta)), x
	}
	pep.AddPerformanceMetric(f.Value(x).Sub(fs))
	return &Instance{Theoretical: unknown(), Guarantee: "f(x_n) - f_* <= tau |x_0 - x_*|^2"}, nil
}

func acceleratedGradient(pep *vybiumpep.PEP, p Params) (*Instance, error) {
	l := p.get("L", 1)
	if err := positive("L", l); err != nil {
		return nil, err
	}
	n, err := p.steps()
	if err != nil {
		return nil, err
	}
	f, err := smoothFunction(pep, "f", 0, l)
	if err != nil {
		return nil, err
	}
	x0, _, fs := distanceStart(pep, f)

	x, y := x0, x0
	for i := 0; i < n; i++ {
		prev := x
		x = y.Sub(f.Gradient(y).Scale(1 / l))
		y = x.Add(x.Sub(prev).Scale(float64(i) / float64(i+3)))
	}
	pep.AddPerformanceMetric(f.Value(x).Sub(fs))

	nf := float64(n)
	return &Instance{
		Theoretical: 2 * l / (nf*nf + 5*nf + 6),
		Guarantee:   "f(x_n) - f_* <= tau |x_0 - x_*|^2",
	}, nil
}

func inexactGradient(pep *vybiumpep.PEP, p Params) (*Instance, error) {
	mu, l, eps := p.get("mu", 0.1), p.get("L", 1), p.get("epsilon", 0.1)
	if err := positive("L", l); err != nil {
		return nil, err
	}
	if eps < 0 || eps >= 1 {
		return nil, core.NewError(core.ErrInvalidInput, "epsilon must be in [0, 1), got %g", eps)
	}
	n, err := p.steps()
	if err != nil {
		return nil, err
	}
	f, err := smoothFunction(pep, "f", mu, l)
	if err != nil {
		return nil, err
	}
	xs := f.StationaryPoint("x_star")
	fs := f.Value(xs)
	x0 := pep.SetInitialPoint("x0")
	pep.SetInitialCondition(f.Value(x0).Sub(fs).LeConst(1))

	lEps, muEps := (1+eps)*l, (1-eps)*mu
	gamma := 2 / (lEps + muEps)
	x := x0
	for i := 0; i < n; i++ {
		x, _, _ = primitives.InexactGradientStep(x, f, gamma, eps, primitives.Relative)
	}
	pep.AddPerformanceMetric(f.Value(x).Sub(fs))

	return &Instance{
		Theoretical: math.Pow((lEps-muEps)/(lEps+muEps), float64(2*n)),
		Tight:       true,
		Guarantee:   "f(x_n) - f_* <= tau (f(x_0) - f_*)",
	}, nil
}
