package vybiumpep

import (
	"gonum.org/v1/gonum/mat"

	"github.com/vybium/vybium-pep/internal/vybium-pep/assembler"
	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
	"github.com/vybium/vybium-pep/internal/vybium-pep/sdp"
)

// layout maps an assembled problem onto the variables and blocks of the
// conic form. Variables are the upper triangle of the Gram matrix, then the
// function values, then the auxiliary tau bounded by every metric.
type layout struct {
	points int
	values int
	tau    int

	gramBlock   int
	metricBlock []int
	rowBlock    []int // -1 for equalities
	rowEquality []int // -1 for inequalities
	lmiBlock    []int
}

func newLayout(p *assembler.Problem) *layout {
	ng := p.NumPoints * (p.NumPoints + 1) / 2
	return &layout{
		points:    p.NumPoints,
		values:    p.NumValues,
		tau:       ng + p.NumValues,
		gramBlock: -1,
	}
}

func (l *layout) numVars() int {
	return l.tau + 1
}

func (l *layout) gramIndex(i, j int) int {
	if i > j {
		i, j = j, i
	}
	return i*l.points - i*(i-1)/2 + (j - i)
}

func (l *layout) valueIndex(k int) int {
	return l.points*(l.points+1)/2 + k
}

func (l *layout) coefficients(f core.LinearForm) map[int]float64 {
	out := make(map[int]float64, len(f.Values)+len(f.Products))
	for k, v := range f.Values {
		out[l.valueIndex(k)] += v
	}
	for pr, v := range f.Products {
		out[l.gramIndex(pr.I, pr.J)] += v
	}
	return out
}

// scalarBlock encodes form <= 0 as the 1x1 block -c - a'y >= 0
func scalarBlock(name string, coef map[int]float64, constant float64) *sdp.Block {
	blk := &sdp.Block{
		Name: name,
		C:    mat.NewSymDense(1, []float64{-constant}),
		A:    make(map[int]*mat.SymDense, len(coef)),
	}
	for i, v := range coef {
		if v != 0 {
			blk.A[i] = mat.NewSymDense(1, []float64{v})
		}
	}
	return blk
}

// buildConic translates the assembled problem into its conic form
func buildConic(p *assembler.Problem) (*sdp.Problem, *layout) {
	l := newLayout(p)
	sp := &sdp.Problem{
		NumVars: l.numVars(),
		B:       make([]float64, l.numVars()),
	}
	sp.B[l.tau] = 1

	if n := p.NumPoints; n > 0 {
		gram := &sdp.Block{Name: "gram", C: mat.NewSymDense(n, nil), A: make(map[int]*mat.SymDense)}
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				a := mat.NewSymDense(n, nil)
				a.SetSym(i, j, -1)
				gram.A[l.gramIndex(i, j)] = a
			}
		}
		l.gramBlock = len(sp.Blocks)
		sp.Blocks = append(sp.Blocks, gram)
	}

	for _, o := range p.Objectives {
		// tau - metric <= 0
		coef := l.coefficients(o.Form)
		for i, v := range coef {
			coef[i] = -v
		}
		coef[l.tau] = 1
		l.metricBlock = append(l.metricBlock, len(sp.Blocks))
		sp.Blocks = append(sp.Blocks, scalarBlock(o.Name, coef, -o.Form.Constant))
	}

	for _, r := range p.Rows {
		coef := l.coefficients(r.Form)
		if r.Kind == core.Equality {
			l.rowBlock = append(l.rowBlock, -1)
			l.rowEquality = append(l.rowEquality, len(sp.Equalities))
			sp.Equalities = append(sp.Equalities, sdp.Equality{Name: r.Name, Coef: coef, Rhs: -r.Form.Constant})
			continue
		}
		l.rowEquality = append(l.rowEquality, -1)
		l.rowBlock = append(l.rowBlock, len(sp.Blocks))
		sp.Blocks = append(sp.Blocks, scalarBlock(r.Name, coef, r.Form.Constant))
	}

	for _, m := range p.LMIs {
		// L0 + sum_i y_i L_i PSD, so C = L0 and A_i = -L_i
		n := m.Size()
		blk := &sdp.Block{Name: m.Name, C: mat.NewSymDense(n, nil), A: make(map[int]*mat.SymDense)}
		for a := 0; a < n; a++ {
			for b := a; b < n; b++ {
				entry := m.Entries[a][b]
				blk.C.SetSym(a, b, entry.Constant)
				for i, v := range l.coefficients(entry) {
					if v == 0 {
						continue
					}
					ai, ok := blk.A[i]
					if !ok {
						ai = mat.NewSymDense(n, nil)
						blk.A[i] = ai
					}
					ai.SetSym(a, b, -v)
				}
			}
		}
		l.lmiBlock = append(l.lmiBlock, len(sp.Blocks))
		sp.Blocks = append(sp.Blocks, blk)
	}
	return sp, l
}

// gram reads the numeric Gram matrix out of y
func (l *layout) gram(y []float64) *mat.SymDense {
	if l.points == 0 {
		return nil
	}
	g := mat.NewSymDense(l.points, nil)
	for i := 0; i < l.points; i++ {
		for j := i; j < l.points; j++ {
			g.SetSym(i, j, y[l.gramIndex(i, j)])
		}
	}
	return g
}

// valueVector reads the numeric function values out of y
func (l *layout) valueVector(y []float64) []float64 {
	out := make([]float64, l.values)
	for k := range out {
		out[k] = y[l.valueIndex(k)]
	}
	return out
}

// multipliers aligns the solver's dual variables with the assembled problem
func (l *layout) multipliers(p *assembler.Problem, sol *sdp.Solution) (mults certificateInput) {
	mults.metrics = make([]float64, len(l.metricBlock))
	for k, b := range l.metricBlock {
		mults.metrics[k] = sol.X[b].At(0, 0)
	}
	mults.rows = make([]float64, len(p.Rows))
	for r := range p.Rows {
		switch {
		case l.rowBlock[r] >= 0:
			mults.rows[r] = sol.X[l.rowBlock[r]].At(0, 0)
		case l.rowEquality[r] >= 0 && l.rowEquality[r] < len(sol.Nu):
			mults.rows[r] = sol.Nu[l.rowEquality[r]]
		}
	}
	for _, b := range l.lmiBlock {
		mults.lmis = append(mults.lmis, sol.X[b])
	}
	if l.gramBlock >= 0 {
		mults.gram = sol.X[l.gramBlock]
	}
	return mults
}

type certificateInput struct {
	metrics []float64
	rows    []float64
	lmis    []*mat.SymDense
	gram    *mat.SymDense
}
