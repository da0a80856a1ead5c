package methods

import (
	"math"

	vybiumpep "github.com/vybium/vybium-pep/internal/vybium-pep"
	"github.com/vybium/vybium-pep/internal/vybium-pep/classes"
	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
	"github.com/vybium/vybium-pep/internal/vybium-pep/primitives"
)

func convexFunction(pep *vybiumpep.PEP, name string, opts ...core.FunctionOption) *core.Function {
	return pep.DeclareFunction(name, append([]core.FunctionOption{core.WithClass(classes.NewConvex())}, opts...)...)
}

func indicatorFunction(pep *vybiumpep.PEP, name string) (*core.Function, error) {
	class, err := classes.NewConvexIndicator(math.Inf(1))
	if err != nil {
		return nil, err
	}
	return pep.DeclareFunction(name, core.WithClass(class)), nil
}

func proximalGradient(pep *vybiumpep.PEP, p Params) (*Instance, error) {
	mu, l := p.get("mu", 0.1), p.get("L", 1)
	if err := positive("L", l); err != nil {
		return nil, err
	}
	gamma := p.get("gamma", 1/l)
	n, err := p.steps()
	if err != nil {
		return nil, err
	}
	f, err := smoothFunction(pep, "f", mu, l)
	if err != nil {
		return nil, err
	}
	h := convexFunction(pep, "h")
	x0, xs, _ := distanceStart(pep, f.Add(h))

	x := x0
	for i := 0; i < n; i++ {
		x, _, _ = primitives.ProximalStep(x.Sub(f.Gradient(x).Scale(gamma)), h, gamma)
	}
	pep.AddPerformanceMetric(x.Sub(xs).NormSquared())

	in := &Instance{Theoretical: unknown(), Guarantee: "|x_n - x_*|^2 <= tau |x_0 - x_*|^2"}
	if gamma > 0 && gamma <= 2/l {
		rate := math.Max(math.Pow(1-l*gamma, 2), math.Pow(1-mu*gamma, 2))
		in.Theoretical = math.Pow(rate, float64(n))
		in.Tight = true
	}
	return in, nil
}

func acceleratedProximalGradient(pep *vybiumpep.PEP, p Params) (*Instance, error) {
	mu, l := p.get("mu", 0), p.get("L", 1)
	if err := positive("L", l); err != nil {
		return nil, err
	}
	n, err := p.steps()
	if err != nil {
		return nil, err
	}
	f, err := smoothFunction(pep, "f", mu, l)
	if err != nil {
		return nil, err
	}
	h := convexFunction(pep, "h")
	x0, _, fs := distanceStart(pep, f.Add(h))

	x, y := x0, x0
	var hx *core.Expression
	for i := 0; i < n; i++ {
		prev := x
		x, _, hx = primitives.ProximalStep(y.Sub(f.Gradient(y).Scale(1/l)), h, 1/l)
		y = x.Add(x.Sub(prev).Scale(float64(i) / float64(i+3)))
	}
	pep.AddPerformanceMetric(f.Value(x).Add(hx).Sub(fs))

	nf := float64(n)
	return &Instance{
		Theoretical: 2 * l / (nf*nf + 5*nf + 2),
		// the momentum is tuned for mu = 0
		Tight:     mu == 0,
		Guarantee: "F(x_n) - F_* <= tau |x_0 - x_*|^2",
	}, nil
}

// douglasRachford is the accelerated Douglas-Rachford splitting on f1 + f2
// with f1 convex and f2 smooth and strongly convex
func douglasRachford(pep *vybiumpep.PEP, p Params) (*Instance, error) {
	mu, l, alpha := p.get("mu", 0.1), p.get("L", 1), p.get("alpha", 0.9)
	if err := positive("alpha", alpha); err != nil {
		return nil, err
	}
	if alpha*l >= 1 {
		return nil, core.NewError(core.ErrInvalidInput, "alpha*L must be smaller than 1, got %g", alpha*l)
	}
	n, err := p.steps()
	if err != nil {
		return nil, err
	}
	f1 := convexFunction(pep, "f1")
	f2, err := smoothFunction(pep, "f2", mu, l)
	if err != nil {
		return nil, err
	}
	xs := f1.Add(f2).StationaryPoint("x_star")
	fs := f1.Add(f2).Value(xs)
	g2s := f2.Gradient(xs)
	x0 := pep.SetInitialPoint("x0")
	pep.SetInitialCondition(xs.Add(g2s.Scale(alpha)).Sub(x0).NormSquared().LeConst(1))

	theta := (1 - alpha*l) / (1 + alpha*l)
	u, w := x0, x0
	var y *core.Point
	var fy *core.Expression
	for i := 0; i < n; i++ {
		x, _, _ := primitives.ProximalStep(u, f2, alpha)
		y, _, fy = primitives.ProximalStep(x.Scale(2).Sub(u), f1, alpha)
		next := u.Add(y.Sub(x).Scale(theta))
		if i >= 1 {
			u = next.Add(next.Sub(w).Scale(float64(i-1) / float64(i+2)))
		} else {
			u = next
		}
		w = next
	}
	pep.AddPerformanceMetric(f2.Value(y).Add(fy).Sub(fs))

	nf := float64(n)
	return &Instance{
		Theoretical: 2 / (alpha * theta * (nf + 3) * (nf + 3)),
		Guarantee:   "F(y_n) - F_* <= tau |w_0 - w_*|^2",
	}, nil
}

// noLips runs the Bregman gradient method on f1 + f2 where f1 is L-smooth
// relative to the kernel h and f2 is a convex indicator. The metrics are the
// Bregman distances between consecutive iterates.
func noLips(pep *vybiumpep.PEP, p Params) (*Instance, error) {
	l := p.get("L", 1)
	if err := positive("L", l); err != nil {
		return nil, err
	}
	gamma := p.get("gamma", 1/l)
	if err := positive("gamma", gamma); err != nil {
		return nil, err
	}
	n, err := p.steps()
	if err != nil {
		return nil, err
	}
	// f1 = (d2 - d1)/2 and h = (d1 + d2)/(2L) with d1, d2 convex, so that
	// L h - f1 and L h + f1 are convex
	d1 := convexFunction(pep, "d1", core.Differentiable())
	d2 := convexFunction(pep, "d2", core.Differentiable())
	f1 := d2.Sub(d1).Scale(0.5)
	h := d1.Add(d2).Scale(1 / (2 * l))
	f2, err := indicatorFunction(pep, "f2")
	if err != nil {
		return nil, err
	}
	total := f1.Add(f2)
	mirror := f2.Add(h)

	x0 := pep.SetInitialPoint("x0")
	gh, hPrev := h.Oracle(x0)
	gf, _ := f1.Oracle(x0)
	_, total0 := total.Oracle(x0)

	prev, x := x0, x0
	for i := 0; i < n; i++ {
		x, _, _ = primitives.BregmanGradientStep(gf, gh, mirror, gamma)
		gf, _ = f1.Oracle(x)
		var hx *core.Expression
		gh, hx = h.Oracle(x)
		pep.AddPerformanceMetric(hPrev.Sub(hx).Sub(gh.Dot(prev.Sub(x))))
		prev, hPrev = x, hx
	}
	_, totalN := total.Oracle(x)
	pep.SetInitialCondition(total0.Sub(totalN).LeConst(1))

	return &Instance{
		Theoretical: gamma / float64(n),
		Tight:       true,
		Guarantee:   "min_k D_h(x_k, x_k-1) <= tau (F(x_0) - F(x_n))",
	}, nil
}
