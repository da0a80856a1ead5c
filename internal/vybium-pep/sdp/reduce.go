package sdp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// rref brings rows to reduced row echelon form in place over the first
// ncols columns, with partial pivoting. It returns the pivot columns and the
// original index of each pivot row; the first len(pivots) rows are the
// pivot rows.
func rref(rows [][]float64, ncols int, tol float64) (pivots, origin []int) {
	origin = make([]int, len(rows))
	for i := range origin {
		origin[i] = i
	}
	r := 0
	for c := 0; c < ncols && r < len(rows); c++ {
		p, best := -1, tol
		for t := r; t < len(rows); t++ {
			if v := math.Abs(rows[t][c]); v > best {
				p, best = t, v
			}
		}
		if p < 0 {
			continue
		}
		rows[r], rows[p] = rows[p], rows[r]
		origin[r], origin[p] = origin[p], origin[r]
		inv := 1 / rows[r][c]
		for k := range rows[r] {
			rows[r][k] *= inv
		}
		for t := range rows {
			if t == r || rows[t][c] == 0 {
				continue
			}
			g := rows[t][c]
			for k := range rows[t] {
				rows[t][k] -= g * rows[r][k]
			}
			rows[t][c] = 0
		}
		pivots = append(pivots, c)
		r++
	}
	return pivots, origin
}

// elimination parametrizes the solutions of the equalities as y = y0 + N w
type elimination struct {
	y0          []float64
	null        [][]float64 // NumVars x len(w)
	independent []int       // equalities whose rows are linearly independent
	consistent  bool
}

func eliminate(p *Problem) elimination {
	n := p.NumVars
	if len(p.Equalities) == 0 {
		null := make([][]float64, n)
		for i := range null {
			null[i] = make([]float64, n)
			null[i][i] = 1
		}
		return elimination{y0: make([]float64, n), null: null, consistent: true}
	}

	scale := 1.0
	rows := make([][]float64, len(p.Equalities))
	for j, e := range p.Equalities {
		rows[j] = make([]float64, n+1)
		for i, v := range e.Coef {
			rows[j][i] += v
			scale = math.Max(scale, math.Abs(v))
		}
		rows[j][n] = e.Rhs
		scale = math.Max(scale, math.Abs(e.Rhs))
	}
	tol := 1e-10 * scale
	pivots, origin := rref(rows, n, tol)

	el := elimination{y0: make([]float64, n), consistent: true}
	for t := len(pivots); t < len(rows); t++ {
		if math.Abs(rows[t][n]) > tol {
			el.consistent = false
			return el
		}
	}
	el.independent = append([]int(nil), origin[:len(pivots)]...)

	isPivot := make([]bool, n)
	for t, c := range pivots {
		isPivot[c] = true
		el.y0[c] = rows[t][n]
	}
	var free []int
	for c := 0; c < n; c++ {
		if !isPivot[c] {
			free = append(free, c)
		}
	}
	el.null = make([][]float64, n)
	for i := range el.null {
		el.null[i] = make([]float64, len(free))
	}
	for f, c := range free {
		el.null[c][f] = 1
		for t, pc := range pivots {
			el.null[pc][f] = -rows[t][c]
		}
	}
	return el
}

// reduced is the problem restated over w, restricted to the columns that
// move some block
type reduced struct {
	b      []float64 // over kept columns
	blocks []ipmBlock
	// blockIndex maps reduced blocks to Problem.Blocks
	blockIndex []int
	// constant lists Problem.Blocks whose matrix does not depend on w,
	// with the restated matrix in constantC
	constant  []int
	constantC []*mat.SymDense
	// keep lists the kept columns of w, out of width
	keep  []int
	width int
	bw    []float64
}

type ipmBlock struct {
	c    *mat.SymDense
	vars []int
	mats []*mat.SymDense
}

func (b *ipmBlock) size() int {
	return b.c.SymmetricDim()
}

// restate substitutes y = y0 + N w into every block
func restate(p *Problem, el elimination) *reduced {
	n := p.NumVars
	w := 0
	if n > 0 {
		w = len(el.null[0])
	}
	r := &reduced{width: w, bw: make([]float64, w)}
	for j := 0; j < w; j++ {
		for i := 0; i < n; i++ {
			r.bw[j] += p.B[i] * el.null[i][j]
		}
	}
	for k, blk := range p.Blocks {
		size := blk.Size()
		c := mat.NewSymDense(size, nil)
		c.CopySym(blk.C)
		cols := make(map[int]*mat.SymDense)
		for _, i := range sortedVars(blk.A) {
			a := blk.A[i]
			if el.y0[i] != 0 {
				addScaledSym(c, -el.y0[i], a)
			}
			for j := 0; j < w; j++ {
				if coef := el.null[i][j]; coef != 0 {
					m, ok := cols[j]
					if !ok {
						m = mat.NewSymDense(size, nil)
						cols[j] = m
					}
					addScaledSym(m, coef, a)
				}
			}
		}
		ib := ipmBlock{c: c}
		for j := 0; j < w; j++ {
			if m, ok := cols[j]; ok && maxAbsSym(m) > 0 {
				ib.vars = append(ib.vars, j)
				ib.mats = append(ib.mats, m)
			}
		}
		if len(ib.vars) == 0 {
			r.constant = append(r.constant, k)
			r.constantC = append(r.constantC, c)
			continue
		}
		r.blocks = append(r.blocks, ib)
		r.blockIndex = append(r.blockIndex, k)
	}
	return r
}

// dropFreeColumns removes the columns of w that no block depends on, after
// the rest of the columns are expressed through them. It reports false when
// the objective grows along such a direction, that is when the problem is
// unbounded.
func (r *reduced) dropFreeColumns() bool {
	var rows [][]float64
	scale := 1.0
	for _, blk := range r.blocks {
		n := blk.size()
		for a := 0; a < n; a++ {
			for b := a; b < n; b++ {
				row := make([]float64, r.width)
				nz := false
				for t, j := range blk.vars {
					if v := blk.mats[t].At(a, b); v != 0 {
						row[j] = v
						nz = true
						scale = math.Max(scale, math.Abs(v))
					}
				}
				if nz {
					rows = append(rows, row)
				}
			}
		}
	}
	pivots, _ := rref(rows, r.width, 1e-10*scale)

	isPivot := make([]bool, r.width)
	for _, c := range pivots {
		isPivot[c] = true
	}
	bscale := 1.0
	for _, v := range r.bw {
		bscale = math.Max(bscale, math.Abs(v))
	}
	for c := 0; c < r.width; c++ {
		if isPivot[c] {
			continue
		}
		growth := r.bw[c]
		for t, pc := range pivots {
			growth -= r.bw[pc] * rows[t][c]
		}
		if math.Abs(growth) > 1e-9*bscale {
			return false
		}
	}

	r.keep = pivots
	index := make(map[int]int, len(pivots))
	for t, c := range pivots {
		index[c] = t
	}
	r.b = make([]float64, len(pivots))
	for t, c := range pivots {
		r.b[t] = r.bw[c]
	}
	for k := range r.blocks {
		blk := &r.blocks[k]
		var vars []int
		var mats []*mat.SymDense
		for t, j := range blk.vars {
			if idx, ok := index[j]; ok {
				vars = append(vars, idx)
				mats = append(mats, blk.mats[t])
			}
		}
		blk.vars, blk.mats = vars, mats
	}
	return true
}

// expand maps a solution over the kept columns back to y
func (r *reduced) expand(el elimination, wk []float64) []float64 {
	wfull := make([]float64, r.width)
	for t, c := range r.keep {
		wfull[c] = wk[t]
	}
	y := append([]float64(nil), el.y0...)
	for i := range y {
		for j, v := range wfull {
			if v != 0 {
				y[i] += el.null[i][j] * v
			}
		}
	}
	return y
}

// equalityMultipliers solves E_ind' nu = b - A*(X) in the least squares
// sense over the independent equalities
func equalityMultipliers(p *Problem, el elimination, xs []*mat.SymDense) []float64 {
	nu := make([]float64, len(p.Equalities))
	if len(el.independent) == 0 {
		return nu
	}
	rhs := append([]float64(nil), p.B...)
	for k, blk := range p.Blocks {
		if xs[k] == nil {
			continue
		}
		for i, a := range blk.A {
			rhs[i] -= symInner(a, xs[k])
		}
	}
	et := mat.NewDense(p.NumVars, len(el.independent), nil)
	for col, j := range el.independent {
		for i, v := range p.Equalities[j].Coef {
			et.Set(i, col, et.At(i, col)+v)
		}
	}
	var sol mat.Dense
	if err := sol.Solve(et, mat.NewVecDense(len(rhs), rhs)); err != nil {
		return nil
	}
	for col, j := range el.independent {
		nu[j] = sol.At(col, 0)
	}
	return nu
}

func addScaledSym(dst *mat.SymDense, alpha float64, a mat.Symmetric) {
	n := dst.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			dst.SetSym(i, j, dst.At(i, j)+alpha*a.At(i, j))
		}
	}
}

func maxAbsSym(a mat.Symmetric) float64 {
	n := a.SymmetricDim()
	out := 0.0
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out = math.Max(out, math.Abs(a.At(i, j)))
		}
	}
	return out
}

// symInner returns the Frobenius inner product of two square matrices
func symInner(a, b mat.Matrix) float64 {
	n, _ := a.Dims()
	out := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out += a.At(i, j) * b.At(i, j)
		}
	}
	return out
}

// minEigen returns the smallest eigenvalue of a symmetric matrix
func minEigen(a mat.Symmetric) (float64, bool) {
	if a.SymmetricDim() == 1 {
		return a.At(0, 0), true
	}
	var eig mat.EigenSym
	if !eig.Factorize(a, false) {
		return 0, false
	}
	return eig.Values(nil)[0], true
}

func sortedVars(a map[int]*mat.SymDense) []int {
	out := make([]int, 0, len(a))
	for i := range a {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
