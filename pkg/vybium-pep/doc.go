// Package vybiumpep computes tight worst-case guarantees of first-order
// optimization methods by performance estimation.
//
// A performance estimation problem (PEP) asks: over every function of some
// classes and every starting point that satisfies the initial conditions,
// what is the worst value of a performance metric after running a method?
// The question is compiled into a semidefinite program over the Gram matrix
// of the points involved, solved by a built-in interior-point method, and
// certified by the dual multipliers of the constraints.
//
// # Features
//
// - Symbolic points, function values and gradients with exact bookkeeping
// - Function classes: convex, strongly convex, smooth, Lipschitz, indicators,
// support functions, quadratics
// - Operator classes: monotone, strongly monotone, Lipschitz, cocoercive
// - Proximal, Bregman, inexact gradient and linear optimization steps
// - Several performance metrics (worst case of their minimum)
// - Dual certificates, independently verified and committed by a Tip5 Merkle root
// - Low-rank worst-case functions recovered from the Gram matrix
// - A catalog of named methods with their known theoretical bounds
// - An archive of solved results keyed by problem digest
//
// # Quick Start
//
// Worst case of one gradient step on a 1-smooth convex function:
//
//	class, err := vybiumpep.NewSmoothConvex(1)
//	if err != nil {
//		log.Fatal(err)
//	}
//	pep := vybiumpep.New(nil)
//	f := pep.DeclareFunction("f", vybiumpep.WithClass(class))
//	xs := f.StationaryPoint("x_star")
//	fs := f.Value(xs)
//	x0 := pep.SetInitialPoint("x0")
//	pep.SetInitialCondition(x0.Sub(xs).NormSquared().LeConst(1))
//
//	x1 := x0.Sub(f.Gradient(x0))
//	pep.AddPerformanceMetric(f.Value(x1).Sub(fs))
//
//	res, err := pep.Solve(context.Background())
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(res.Status, res.Bound) // SOLVED 0.1666...
//
// # Using the method catalog
//
// Running a named method with parameters:
//
//	run, err := vybiumpep.RunMethod(ctx, "gradient_descent", vybiumpep.Params{"L": 1, "n": 3}, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(run.Result.Bound, run.Instance.Theoretical)
//
// # Architecture
//
// Vybium PEP uses a hybrid public/private architecture:
//
// - pkg/vybium-pep/: Public API (this package)
// - internal/vybium-pep/: Private implementation (not importable)
//
// The public API provides stable names for:
// - Problem construction and solving
// - Classes, method steps and the method catalog
// - Results, certificates and the archive
// - Common types and errors
//
// Implementation details in internal/ can be refactored without breaking the public API.
//
// # References
//
// - Taylor, Hendrickx, Glineur, Smooth strongly convex interpolation and exact
// worst-case performance of first-order methods (2017)
// - Drori, Teboulle, Performance of first-order methods for smooth convex
// minimization: a novel approach (2014)
//
// # License
//
// See LICENSE file in the repository root.
package vybiumpep
