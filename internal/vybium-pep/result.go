package vybiumpep

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/vybium/vybium-pep/internal/vybium-pep/certificate"
	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
	"github.com/vybium/vybium-pep/internal/vybium-pep/sdp"
	"github.com/vybium/vybium-pep/internal/vybium-pep/store"
	"github.com/vybium/vybium-pep/internal/vybium-pep/utils"
)

// Result is the outcome of a solve. Solve completes it, warnings included,
// before returning and does not touch it afterwards.
type Result struct {
	ID           string
	Status       State
	SolverStatus sdp.Status
	Reason       string

	// Bound is the worst-case value of the smallest performance metric
	Bound float64
	// DualBound is the bound certified by the dual solution
	DualBound  float64
	Iterations int
	Residual   float64
	Duration   time.Duration

	Certificate  *certificate.Certificate
	Verification *certificate.Report
	// Commitment is the hex Merkle root of the certificate
	Commitment string
	Warnings   []string

	// Gram is the numeric Gram matrix of the worst case
	Gram *mat.SymDense
	// Values are the numeric function values of the worst case
	Values []float64
	// Rank is the numerical rank of Gram
	Rank int
	// Eigenvalues of Gram, largest first
	Eigenvalues []float64

	Digest     string
	Stats      map[string]int
	Scalars    int
	LMIs       int
	Duplicates int

	reg *core.Registry
	// coords holds one row of worst-case coordinates per leaf point, with
	// columns ordered by decreasing eigenvalue
	coords *mat.Dense
}

func (r *Result) warn(log *utils.Logger, msg string) {
	r.Warnings = append(r.Warnings, msg)
	log.Warn(msg)
}

// Verified reports whether a certificate was built and verified
func (r *Result) Verified() bool {
	return r.Verification != nil && r.Verification.Verified
}

// factorize computes G = V diag(lambda) V' and the coordinates V sqrt(lambda)
func (r *Result) factorize(rankTol float64) {
	if r.Gram == nil {
		return
	}
	var eig mat.EigenSym
	if !eig.Factorize(r.Gram, true) {
		return
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })

	r.Eigenvalues = make([]float64, n)
	r.coords = mat.NewDense(n, n, nil)
	for c, k := range order {
		lambda := values[k]
		r.Eigenvalues[c] = lambda
		if lambda <= 0 {
			continue
		}
		s := math.Sqrt(lambda)
		for i := 0; i < n; i++ {
			r.coords.Set(i, c, vectors.At(i, k)*s)
		}
	}
	if n > 0 && r.Eigenvalues[0] > 0 {
		for _, lambda := range r.Eigenvalues {
			if lambda > rankTol*r.Eigenvalues[0] {
				r.Rank++
			}
		}
	}
}

func (r *Result) checkSolved() error {
	if r.Status != StateSolved {
		return core.NewError(core.ErrInvalidState, "result is %s, no worst case to evaluate", r.Status)
	}
	return nil
}

func (r *Result) gramAt(i, j int) float64 {
	return r.Gram.At(i, j)
}

func (r *Result) form(e *core.Expression) (core.LinearForm, error) {
	if err := e.Err(); err != nil {
		return core.LinearForm{}, err
	}
	if reg := e.Registry(); reg != nil && reg != r.reg {
		return core.LinearForm{}, core.NewError(core.ErrInvalidReference, "expression %s belongs to another PEP", e.Name())
	}
	f := e.Form()
	if f.MaxPointIndex() >= len(r.Eigenvalues) || f.MaxValueIndex() >= len(r.Values) {
		return core.LinearForm{}, core.NewError(core.ErrInvalidReference, "expression %s was built after solving", e.Name())
	}
	return f, nil
}

// Eval evaluates an expression on the worst case
func (r *Result) Eval(e *core.Expression) (float64, error) {
	if err := r.checkSolved(); err != nil {
		return 0, err
	}
	f, err := r.form(e)
	if err != nil {
		return 0, err
	}
	return f.Eval(r.gramAt, r.Values), nil
}

// EvalPoint returns coordinates of p in a factorization of the worst-case
// Gram matrix, one coordinate per positive eigenvalue
func (r *Result) EvalPoint(p *core.Point) ([]float64, error) {
	return r.coordinates(p, r.positive())
}

// WorstCasePoint returns the coordinates of p in the low-rank worst case,
// keeping the Rank leading eigen-directions
func (r *Result) WorstCasePoint(p *core.Point) ([]float64, error) {
	return r.coordinates(p, r.Rank)
}

// WorstCaseValue evaluates e on the low-rank worst case, that is with the
// Gram matrix truncated to its Rank leading eigen-directions
func (r *Result) WorstCaseValue(e *core.Expression) (float64, error) {
	if err := r.checkSolved(); err != nil {
		return 0, err
	}
	f, err := r.form(e)
	if err != nil {
		return 0, err
	}
	gram := func(i, j int) float64 {
		out := 0.0
		for c := 0; c < r.Rank; c++ {
			out += r.coords.At(i, c) * r.coords.At(j, c)
		}
		return out
	}
	return f.Eval(gram, r.Values), nil
}

func (r *Result) positive() int {
	n := 0
	for _, lambda := range r.Eigenvalues {
		if lambda > 0 {
			n++
		}
	}
	return n
}

func (r *Result) coordinates(p *core.Point, dims int) ([]float64, error) {
	if err := r.checkSolved(); err != nil {
		return nil, err
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	if reg := p.Registry(); reg != nil && reg != r.reg {
		return nil, core.NewError(core.ErrInvalidReference, "point %s belongs to another PEP", p.Name())
	}
	out := make([]float64, dims)
	for leaf, coef := range p.Decomposition() {
		if leaf >= len(r.Eigenvalues) {
			return nil, core.NewError(core.ErrInvalidReference, "point %s was built after solving", p.Name())
		}
		for c := 0; c < dims; c++ {
			out[c] += coef * r.coords.At(leaf, c)
		}
	}
	return out, nil
}

// Summary renders a short human-readable report
func (r *Result) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "status:      %s (solver: %s)\n", r.Status, r.SolverStatus)
	if r.Reason != "" {
		fmt.Fprintf(&sb, "reason:      %s\n", r.Reason)
	}
	if r.Status == StateSolved {
		fmt.Fprintf(&sb, "bound:       %.9g\n", r.Bound)
		fmt.Fprintf(&sb, "dual bound:  %.9g\n", r.DualBound)
		fmt.Fprintf(&sb, "rank:        %d\n", r.Rank)
	}
	fmt.Fprintf(&sb, "iterations:  %d\n", r.Iterations)
	fmt.Fprintf(&sb, "constraints: %d scalar, %d lmi, %d merged\n", r.Scalars, r.LMIs, r.Duplicates)
	fmt.Fprintf(&sb, "digest:      %s\n", r.Digest)
	if r.Verification != nil {
		fmt.Fprintf(&sb, "proof:       verified=%t residual=%.2e\n", r.Verification.Verified, r.Verification.Residual)
	}
	if r.Commitment != "" {
		fmt.Fprintf(&sb, "commitment:  %s\n", r.Commitment)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&sb, "warning:     %s\n", w)
	}
	return sb.String()
}

// Record converts the result into its archived form
func (r *Result) Record() *store.Record {
	rec := &store.Record{
		Digest:       r.Digest,
		ProblemID:    r.ID,
		Status:       r.Status.String(),
		SolverStatus: r.SolverStatus.String(),
		Reason:       r.Reason,
		Bound:        r.Bound,
		DualBound:    r.DualBound,
		Iterations:   r.Iterations,
		Rank:         r.Rank,
		Values:       append([]float64(nil), r.Values...),
		Verified:     r.Verified(),
		Commitment:   r.Commitment,
		Warnings:     append([]string(nil), r.Warnings...),
		SolvedAt:     time.Now().UTC(),
	}
	if r.Gram != nil {
		n := r.Gram.SymmetricDim()
		rec.Gram = make([][]float64, n)
		for i := range rec.Gram {
			rec.Gram[i] = make([]float64, n)
			for j := range rec.Gram[i] {
				rec.Gram[i][j] = r.Gram.At(i, j)
			}
		}
	}
	if r.Certificate != nil {
		for _, t := range r.Certificate.Metrics {
			rec.Weights = append(rec.Weights, store.Weight{Name: t.Name, Value: t.Weight})
		}
		for _, t := range r.Certificate.Active(0) {
			rec.Weights = append(rec.Weights, store.Weight{Name: t.Name, Value: t.Weight})
		}
	}
	return rec
}
