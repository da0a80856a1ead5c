package sdp

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// InteriorPoint is a primal-dual path-following method using the HKM search
// direction with a Mehrotra predictor-corrector step.
//
// Before iterating, equalities are eliminated by substitution, blocks that
// no longer depend on the variables are checked once and dropped, and
// directions that no block restricts are projected out (reporting
// StatusUnbounded when the objective grows along one of them).
type InteriorPoint struct{}

// NewInteriorPoint creates the built-in solver
func NewInteriorPoint() *InteriorPoint {
	return &InteriorPoint{}
}

// Name returns the solver name
func (s *InteriorPoint) Name() string {
	return "interior-point"
}

// Solve solves p. The returned error is non-nil only for malformed input
// and cancellation.
func (s *InteriorPoint) Solve(ctx context.Context, p *Problem, opts Options) (*Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	el := eliminate(p)
	if !el.consistent {
		return &Solution{Status: StatusInfeasible, Reason: "equality constraints are inconsistent"}, nil
	}

	r := restate(p, el)
	for t, k := range r.constant {
		c := r.constantC[t]
		lmin, ok := minEigen(c)
		if !ok {
			return &Solution{Status: StatusSolverError, Reason: fmt.Sprintf("eigendecomposition of block %q failed", p.Blocks[k].Name)}, nil
		}
		if lmin < -1e-9*math.Max(1, maxAbsSym(c)) {
			return &Solution{
				Status: StatusInfeasible,
				Reason: fmt.Sprintf("block %q is fixed by the equalities and not PSD (min eigenvalue %.3e)", p.Blocks[k].Name, lmin),
			}, nil
		}
	}
	if !r.dropFreeColumns() {
		return &Solution{Status: StatusUnbounded, Reason: "objective increases along a direction no constraint restricts"}, nil
	}

	var res ipmResult
	if len(r.keep) == 0 {
		res = ipmResult{status: StatusOptimal}
	} else {
		var err error
		res, err = r.run(ctx, opts)
		if err != nil {
			return nil, err
		}
	}

	sol := &Solution{
		Status:     res.status,
		Reason:     res.reason,
		Iterations: res.iterations,
		Residual:   res.residual,
	}
	if !res.status.Solved() {
		return sol, nil
	}

	sol.Y = r.expand(el, res.y)
	sol.X = make([]*mat.SymDense, len(p.Blocks))
	for t, k := range r.blockIndex {
		sol.X[k] = res.x[t]
	}
	for _, k := range r.constant {
		sol.X[k] = mat.NewSymDense(p.Blocks[k].Size(), nil)
	}
	sol.Nu = equalityMultipliers(p, el, sol.X)
	if sol.Nu == nil {
		sol.Nu = make([]float64, len(p.Equalities))
	}
	sol.Objective = floats.Dot(p.B, sol.Y)
	for k, blk := range p.Blocks {
		sol.DualObjective += symInner(blk.C, sol.X[k])
	}
	for j, e := range p.Equalities {
		sol.DualObjective += sol.Nu[j] * e.Rhs
	}
	return sol, nil
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.StepFraction <= 0 || o.StepFraction >= 1 {
		o.StepFraction = d.StepFraction
	}
	return o
}

type ipmResult struct {
	status     Status
	reason     string
	y          []float64
	x          []*mat.SymDense
	iterations int
	residual   float64
}

const (
	// maxBacktracks bounds the step halvings when an update leaves the cone
	maxBacktracks = 30
	// stallWindow is the number of iterations without a better residual
	// after which the best iterate is returned
	stallWindow = 10
)

func (r *reduced) run(ctx context.Context, opts Options) (ipmResult, error) {
	m := len(r.b)
	nb := len(r.blocks)

	total := 0
	normC2 := 0.0
	normA2 := make([]float64, m)
	for _, blk := range r.blocks {
		total += blk.size()
		normC2 += symInner(blk.c, blk.c)
		for t, i := range blk.vars {
			normA2[i] += symInner(blk.mats[t], blk.mats[t])
		}
	}
	normC := math.Sqrt(normC2)
	normB := floats.Norm(r.b, 2)
	maxA, ratio := 0.0, 0.0
	for i, a2 := range normA2 {
		na := math.Sqrt(a2)
		maxA = math.Max(maxA, na)
		ratio = math.Max(ratio, (1+math.Abs(r.b[i]))/(1+na))
	}

	x := make([]*mat.SymDense, nb)
	z := make([]*mat.SymDense, nb)
	for k, blk := range r.blocks {
		n := float64(blk.size())
		a := math.Max(math.Max(10, math.Sqrt(n)), ratio)
		beta := math.Max(math.Max(10, math.Sqrt(n)), math.Max(normC, maxA))
		x[k] = scaledIdentity(blk.size(), a*n)
		z[k] = scaledIdentity(blk.size(), beta)
	}
	y := make([]float64, m)

	best := ipmResult{residual: math.Inf(1)}
	out := ipmResult{status: StatusSolverError}
	finished := false
	it := 0
	for ; it < opts.MaxIterations && !finished; it++ {
		if err := ctx.Err(); err != nil {
			return ipmResult{}, err
		}

		ax := r.apply(x)
		rp := make([]float64, m)
		floats.SubTo(rp, r.b, ax)
		aty := r.adjoint(y)
		rd := make([]*mat.SymDense, nb)
		pobj, gap, rd2 := 0.0, 0.0, 0.0
		for k, blk := range r.blocks {
			rd[k] = mat.NewSymDense(blk.size(), nil)
			rd[k].CopySym(blk.c)
			addScaledSym(rd[k], -1, aty[k])
			addScaledSym(rd[k], -1, z[k])
			rd2 += symInner(rd[k], rd[k])
			pobj += symInner(blk.c, x[k])
			gap += symInner(x[k], z[k])
		}
		dobj := floats.Dot(r.b, y)
		mu := gap / float64(total)
		pinf := floats.Norm(rp, 2) / (1 + normB)
		dinf := math.Sqrt(rd2) / (1 + normC)
		relgap := math.Abs(pobj-dobj) / (1 + math.Abs(pobj) + math.Abs(dobj))
		residual := math.Max(pinf, math.Max(dinf, relgap))
		if opts.Trace != nil {
			opts.Trace(it, dobj, pobj, residual)
		}
		if residual < best.residual {
			best = ipmResult{y: append([]float64(nil), y...), x: x, residual: residual, iterations: it}
		}

		switch {
		case pinf < opts.Tolerance && dinf < opts.Tolerance && relgap < opts.Tolerance:
			out = ipmResult{status: StatusOptimal, y: y, x: x, residual: residual}
			finished = true
			continue
		case best.residual < 1e-5 && (residual > 100*best.residual || it-best.iterations >= stallWindow):
			out = ipmResult{status: StatusOptimalInaccurate, reason: "progress stalled"}
			finished = true
			continue
		}
		if dobj > 0 {
			ray := 0.0
			for k := range r.blocks {
				s := mat.NewSymDense(r.blocks[k].size(), nil)
				s.AddSym(aty[k], z[k])
				ray += symInner(s, s)
			}
			if math.Sqrt(ray)/dobj < opts.Tolerance || dobj > 1e12 {
				out = ipmResult{status: StatusUnbounded, reason: "dual iterates diverge along an improving ray"}
				finished = true
				continue
			}
		}
		if pobj < 0 {
			if floats.Norm(ax, 2)/-pobj < opts.Tolerance || -pobj > 1e12 {
				out = ipmResult{status: StatusInfeasible, reason: "found a certificate of infeasibility"}
				finished = true
				continue
			}
		}

		zinv := make([]*mat.SymDense, nb)
		for k := range z {
			var ch mat.Cholesky
			if !ch.Factorize(z[k]) {
				out = ipmResult{status: StatusSolverError, reason: "slack matrix lost definiteness"}
				finished = true
				break
			}
			zinv[k] = mat.NewSymDense(z[k].SymmetricDim(), nil)
			if err := ch.InverseTo(zinv[k]); err != nil && !isCondition(err) {
				out = ipmResult{status: StatusSolverError, reason: "slack matrix inversion failed"}
				finished = true
				break
			}
		}
		if finished {
			continue
		}
		schur, ok := factorSchur(r.schur(x, zinv))
		if !ok {
			out = ipmResult{status: StatusSolverError, reason: "Schur complement is singular"}
			finished = true
			continue
		}

		xz := make([]*mat.Dense, nb)
		target := make([]*mat.Dense, nb)
		for k := range r.blocks {
			xz[k] = new(mat.Dense)
			xz[k].Mul(x[k], z[k])
			target[k] = new(mat.Dense)
			target[k].Scale(-1, xz[k])
		}
		dx, _, dz := r.direction(schur, x, zinv, rp, rd, target)
		ap := math.Min(1, stepLengths(x, dx))
		ad := math.Min(1, stepLengths(z, dz))
		newgap := 0.0
		for k := range r.blocks {
			xs := mat.NewSymDense(x[k].SymmetricDim(), nil)
			xs.CopySym(x[k])
			addScaledSym(xs, ap, dx[k])
			zs := mat.NewSymDense(z[k].SymmetricDim(), nil)
			zs.CopySym(z[k])
			addScaledSym(zs, ad, dz[k])
			newgap += symInner(xs, zs)
		}
		sigma := math.Min(1, math.Pow(newgap/gap, 3))

		for k := range r.blocks {
			var cross mat.Dense
			cross.Mul(dx[k], dz[k])
			target[k].Sub(target[k], &cross)
			n := x[k].SymmetricDim()
			for i := 0; i < n; i++ {
				target[k].Set(i, i, target[k].At(i, i)+sigma*mu)
			}
		}
		dx, dy, dz := r.direction(schur, x, zinv, rp, rd, target)
		ap = math.Min(1, opts.StepFraction*stepLengths(x, dx))
		ad = math.Min(1, opts.StepFraction*stepLengths(z, dz))

		nx, nz, ok := advance(x, z, dx, dz, ap, ad)
		for tries := 0; !ok && tries < maxBacktracks; tries++ {
			ap /= 2
			ad /= 2
			nx, nz, ok = advance(x, z, dx, dz, ap, ad)
		}
		if !ok {
			out = ipmResult{status: StatusSolverError, reason: fmt.Sprintf("iterates lost definiteness after %d step reductions", maxBacktracks)}
			finished = true
			continue
		}
		x, z = nx, nz
		ny := append([]float64(nil), y...)
		floats.AddScaled(ny, ad, dy)
		y = ny
	}
	if !finished {
		out = ipmResult{status: StatusSolverError, reason: fmt.Sprintf("no convergence after %d iterations", opts.MaxIterations)}
	}

	if out.status != StatusOptimal && best.residual < 1e-6 &&
		(out.status == StatusSolverError || out.status == StatusOptimalInaccurate) {
		best.status = StatusOptimalInaccurate
		best.reason = out.reason
		best.iterations = it
		return best, nil
	}
	if out.status == StatusOptimalInaccurate {
		best.status = StatusOptimalInaccurate
		best.reason = out.reason
		best.iterations = it
		return best, nil
	}
	if out.status != StatusOptimal && out.residual == 0 {
		out.residual = best.residual
	}
	out.iterations = it
	return out, nil
}

// apply returns A(X), the vector of <A_i, X>
func (r *reduced) apply(xs []*mat.SymDense) []float64 {
	out := make([]float64, len(r.b))
	for k, blk := range r.blocks {
		for t, i := range blk.vars {
			out[i] += symInner(blk.mats[t], xs[k])
		}
	}
	return out
}

// adjoint returns sum_i v_i A_i per block
func (r *reduced) adjoint(v []float64) []*mat.SymDense {
	out := make([]*mat.SymDense, len(r.blocks))
	for k, blk := range r.blocks {
		out[k] = mat.NewSymDense(blk.size(), nil)
		for t, i := range blk.vars {
			if v[i] != 0 {
				addScaledSym(out[k], v[i], blk.mats[t])
			}
		}
	}
	return out
}

// schur builds M_ij = tr(A_i X A_j Z^-1)
func (r *reduced) schur(x, zinv []*mat.SymDense) *mat.SymDense {
	out := mat.NewSymDense(len(r.b), nil)
	for k, blk := range r.blocks {
		if blk.size() == 1 {
			w := x[k].At(0, 0) * zinv[k].At(0, 0)
			for s, i := range blk.vars {
				ai := blk.mats[s].At(0, 0)
				for t, j := range blk.vars {
					if j < i {
						continue
					}
					out.SetSym(i, j, out.At(i, j)+w*ai*blk.mats[t].At(0, 0))
				}
			}
			continue
		}
		for s, i := range blk.vars {
			var xa, b mat.Dense
			xa.Mul(x[k], blk.mats[s])
			b.Mul(&xa, zinv[k])
			for t, j := range blk.vars {
				if j < i {
					continue
				}
				out.SetSym(i, j, out.At(i, j)+symInner(blk.mats[t], &b))
			}
		}
	}
	return out
}

// schurSystem is the factored Schur complement. The matrix is kept for one
// round of iterative refinement.
type schurSystem struct {
	m  *mat.SymDense
	ch mat.Cholesky
}

func factorSchur(m *mat.SymDense) (*schurSystem, bool) {
	s := &schurSystem{m: m}
	if s.ch.Factorize(m) {
		return s, true
	}
	n := m.SymmetricDim()
	maxDiag := 0.0
	for i := 0; i < n; i++ {
		maxDiag = math.Max(maxDiag, math.Abs(m.At(i, i)))
	}
	reg := 1e-12 * math.Max(maxDiag, 1)
	shifted := mat.NewSymDense(n, nil)
	shifted.CopySym(m)
	for i := 0; i < n; i++ {
		shifted.SetSym(i, i, shifted.At(i, i)+reg)
	}
	if s.ch.Factorize(shifted) {
		return s, true
	}
	return nil, false
}

// solve returns M^-1 rhs, refined once against the unshifted matrix
func (s *schurSystem) solve(rhs []float64) []float64 {
	n := len(rhs)
	b := mat.NewVecDense(n, rhs)
	var x mat.VecDense
	if err := s.ch.SolveVecTo(&x, b); err != nil && !isCondition(err) {
		return make([]float64, n)
	}
	var mx, res, d mat.VecDense
	mx.MulVec(s.m, &x)
	res.SubVec(b, &mx)
	if err := s.ch.SolveVecTo(&d, &res); err == nil || isCondition(err) {
		x.AddVec(&x, &d)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out
}

// direction solves for (dX, dy, dZ) with dX Z + X dZ = target, the
// linearized primal residual rp and dual residual rd
func (r *reduced) direction(schur *schurSystem, x, zinv []*mat.SymDense, rp []float64, rd []*mat.SymDense, target []*mat.Dense) ([]*mat.SymDense, []float64, []*mat.SymDense) {
	nb := len(r.blocks)
	g := make([]*mat.SymDense, nb)
	for k := range r.blocks {
		g[k] = solveSide(target[k], x[k], rd[k], zinv[k])
	}
	ag := r.apply(g)
	rhs := make([]float64, len(rp))
	floats.SubTo(rhs, rp, ag)

	dy := schur.solve(rhs)

	atdy := r.adjoint(dy)
	dz := make([]*mat.SymDense, nb)
	dx := make([]*mat.SymDense, nb)
	for k := range r.blocks {
		dz[k] = mat.NewSymDense(rd[k].SymmetricDim(), nil)
		dz[k].CopySym(rd[k])
		addScaledSym(dz[k], -1, atdy[k])
		dx[k] = solveSide(target[k], x[k], dz[k], zinv[k])
	}
	return dx, dy, dz
}

// solveSide returns sym((target - X d) Z^-1)
func solveSide(target *mat.Dense, x, d, zinv *mat.SymDense) *mat.SymDense {
	var xd, w, out mat.Dense
	xd.Mul(x, d)
	w.Sub(target, &xd)
	out.Mul(&w, zinv)
	return symPart(&out)
}

// stepLengths returns the largest alpha with X_k + alpha dX_k PSD for all k
func stepLengths(x, dx []*mat.SymDense) float64 {
	out := math.Inf(1)
	for k := range x {
		out = math.Min(out, stepLength(x[k], dx[k]))
	}
	return out
}

func stepLength(x, dx *mat.SymDense) float64 {
	n := x.SymmetricDim()
	if n == 1 {
		d := dx.At(0, 0)
		if d >= 0 {
			return math.Inf(1)
		}
		return -x.At(0, 0) / d
	}
	var ch mat.Cholesky
	if !ch.Factorize(x) {
		return 0
	}
	var l mat.TriDense
	ch.LTo(&l)
	// S = L^-1 dX L^-T, by two forward substitutions
	y := lowerSolve(&l, dx)
	s := lowerSolve(&l, y.T())
	lmin, ok := minEigen(symPart(s))
	if !ok {
		return 0
	}
	if lmin >= 0 {
		return math.Inf(1)
	}
	return -1 / lmin
}

// advance returns X + ap dX and Z + ad dZ, and whether every block of both
// stays positive definite
func advance(x, z, dx, dz []*mat.SymDense, ap, ad float64) ([]*mat.SymDense, []*mat.SymDense, bool) {
	nx := make([]*mat.SymDense, len(x))
	nz := make([]*mat.SymDense, len(z))
	for k := range x {
		nx[k] = mat.NewSymDense(x[k].SymmetricDim(), nil)
		nx[k].CopySym(x[k])
		addScaledSym(nx[k], ap, dx[k])
		nz[k] = mat.NewSymDense(z[k].SymmetricDim(), nil)
		nz[k].CopySym(z[k])
		addScaledSym(nz[k], ad, dz[k])
		if !positiveDefinite(nx[k]) || !positiveDefinite(nz[k]) {
			return nil, nil, false
		}
	}
	return nx, nz, true
}

func positiveDefinite(a *mat.SymDense) bool {
	if a.SymmetricDim() == 1 {
		return a.At(0, 0) > 0
	}
	var ch mat.Cholesky
	return ch.Factorize(a)
}

// lowerSolve returns L^-1 B for lower triangular L
func lowerSolve(l *mat.TriDense, b mat.Matrix) *mat.Dense {
	n, cols := b.Dims()
	out := mat.NewDense(n, cols, nil)
	for j := 0; j < cols; j++ {
		for i := 0; i < n; i++ {
			v := b.At(i, j)
			for k := 0; k < i; k++ {
				v -= l.At(i, k) * out.At(k, j)
			}
			out.Set(i, j, v/l.At(i, i))
		}
	}
	return out
}

func symPart(a mat.Matrix) *mat.SymDense {
	n, _ := a.Dims()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, (a.At(i, j)+a.At(j, i))/2)
		}
	}
	return out
}

func scaledIdentity(n int, v float64) *mat.SymDense {
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		out.SetSym(i, i, v)
	}
	return out
}

func isCondition(err error) bool {
	_, ok := err.(mat.Condition)
	return ok
}
