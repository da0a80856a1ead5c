package methods

import "math"

var derived = math.NaN()

func steps(def float64) Param {
	return Param{Name: "n", Default: def, Doc: "number of iterations"}
}

func init() {
	initializeBuiltInMethods()
}

func initializeBuiltInMethods() {
	MustRegister("gradient_descent",
		"gradient descent with a fixed step on an L-smooth convex function",
		[]Param{
			{Name: "L", Default: 1, Doc: "smoothness"},
			{Name: "gamma", Default: derived, Doc: "step size, 1/L by default"},
			steps(1),
		}, gradientDescent)

	MustRegister("gradient_descent_quadratics",
		"gradient descent with a fixed step on a smooth strongly convex quadratic",
		[]Param{
			{Name: "mu", Default: 0, Doc: "strong convexity"},
			{Name: "L", Default: 1, Doc: "smoothness"},
			{Name: "gamma", Default: derived, Doc: "step size, 1/L by default"},
			steps(1),
		}, gradientDescentQuadratics)

	MustRegister("heavy_ball",
		"Polyak's heavy-ball method on an L-smooth mu-strongly convex function",
		[]Param{
			{Name: "mu", Default: 0.1, Doc: "strong convexity"},
			{Name: "L", Default: 1, Doc: "smoothness"},
			{Name: "alpha", Default: derived, Doc: "scaled step, 4L/(sqrt(L)+sqrt(mu))^2 by default"},
			{Name: "beta", Default: derived, Doc: "momentum, ((sqrt(L)-sqrt(mu))/(sqrt(L)+sqrt(mu)))^2 by default"},
			steps(1),
		}, heavyBall)

	MustRegister("accelerated_gradient",
		"Nesterov's accelerated gradient method on an L-smooth convex function",
		[]Param{
			{Name: "L", Default: 1, Doc: "smoothness"},
			steps(1),
		}, acceleratedGradient)

	MustRegister("inexact_gradient",
		"gradient descent with relatively inexact gradients on an L-smooth mu-strongly convex function",
		[]Param{
			{Name: "mu", Default: 0.1, Doc: "strong convexity"},
			{Name: "L", Default: 1, Doc: "smoothness"},
			{Name: "epsilon", Default: 0.1, Doc: "relative gradient error"},
			steps(2),
		}, inexactGradient)

	MustRegister("proximal_gradient",
		"proximal gradient on the sum of a smooth strongly convex and a convex function",
		[]Param{
			{Name: "mu", Default: 0.1, Doc: "strong convexity of the smooth term"},
			{Name: "L", Default: 1, Doc: "smoothness of the smooth term"},
			{Name: "gamma", Default: derived, Doc: "step size, 1/L by default"},
			steps(2),
		}, proximalGradient)

	MustRegister("accelerated_proximal_gradient",
		"fast proximal gradient on the sum of a smooth convex and a convex function",
		[]Param{
			{Name: "mu", Default: 0, Doc: "strong convexity of the smooth term"},
			{Name: "L", Default: 1, Doc: "smoothness of the smooth term"},
			steps(1),
		}, acceleratedProximalGradient)

	MustRegister("douglas_rachford",
		"accelerated Douglas-Rachford splitting on the sum of a convex and a smooth strongly convex function",
		[]Param{
			{Name: "mu", Default: 0.1, Doc: "strong convexity of the smooth term"},
			{Name: "L", Default: 1, Doc: "smoothness of the smooth term"},
			{Name: "alpha", Default: 0.9, Doc: "step size, alpha*L < 1"},
			steps(2),
		}, douglasRachford)

	MustRegister("nolips",
		"the Bregman gradient method on a relatively smooth function over a convex set",
		[]Param{
			{Name: "L", Default: 1, Doc: "relative smoothness"},
			{Name: "gamma", Default: derived, Doc: "step size, 1/L by default"},
			steps(3),
		}, noLips)

	MustRegister("past_extragradient",
		"past extragradient for a Lipschitz monotone variational inequality",
		[]Param{
			{Name: "L", Default: 1, Doc: "Lipschitz constant of the operator"},
			{Name: "gamma", Default: 0.25, Doc: "step size"},
			steps(2),
		}, pastExtragradient)

	MustRegister("alternate_projections",
		"alternate projections onto two intersecting convex sets",
		[]Param{steps(2)}, alternateProjections)
}
