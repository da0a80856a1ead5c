// Package sdp holds the conic form a PEP compiles to and the built-in
// primal-dual interior-point solver.
//
// A Problem is stated in linear matrix inequality form:
//
//	maximize    b'y
//	subject to  Z_k = C_k - sum_i y_i A_ki  PSD, for every block k
//	            a_j'y = r_j, for every equality j
//
// Its conic dual is
//
//	minimize    sum_k <C_k, X_k> + sum_j nu_j r_j
//	subject to  sum_k <A_ki, X_k> + sum_j nu_j a_ji = b_i,  X_k PSD
//
// The dual variables X_k and nu are the multipliers the certificate is built
// from.
package sdp

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Status is the outcome of a solve
type Status int

const (
	// StatusOptimal means the tolerances were met
	StatusOptimal Status = iota
	// StatusOptimalInaccurate means the best iterate is close to optimal but
	// did not meet the tolerances
	StatusOptimalInaccurate
	// StatusInfeasible means no y satisfies the constraints
	StatusInfeasible
	// StatusUnbounded means the objective is unbounded above
	StatusUnbounded
	// StatusSolverError means the solver failed numerically
	StatusSolverError
)

var statusNames = map[Status]string{
	StatusOptimal:           "optimal",
	StatusOptimalInaccurate: "optimal_inaccurate",
	StatusInfeasible:        "infeasible",
	StatusUnbounded:         "unbounded",
	StatusSolverError:       "solver_error",
}

// String returns the status name
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Solved reports whether the status carries a usable optimum
func (s Status) Solved() bool {
	return s == StatusOptimal || s == StatusOptimalInaccurate
}

// Block is one diagonal block C - sum_i y_i A_i of the LMI. A maps variable
// indices to their (symmetric) coefficient matrices; absent variables do
// not appear in the block.
type Block struct {
	Name string
	C    *mat.SymDense
	A    map[int]*mat.SymDense
}

// Size returns the block dimension
func (b *Block) Size() int {
	if b.C == nil {
		return 0
	}
	return b.C.SymmetricDim()
}

// Equality is the linear constraint sum_i Coef[i] y_i = Rhs
type Equality struct {
	Name string
	Coef map[int]float64
	Rhs  float64
}

// Problem is a conic program in LMI form
type Problem struct {
	NumVars    int
	B          []float64
	Blocks     []*Block
	Equalities []Equality
}

// Validate checks dimensions and variable indices
func (p *Problem) Validate() error {
	if p.NumVars <= 0 {
		return fmt.Errorf("problem has no variables")
	}
	if len(p.B) != p.NumVars {
		return fmt.Errorf("objective has %d entries, want %d", len(p.B), p.NumVars)
	}
	for k, b := range p.Blocks {
		n := b.Size()
		if n == 0 {
			return fmt.Errorf("block %d (%s) is empty", k, b.Name)
		}
		for i, a := range b.A {
			if i < 0 || i >= p.NumVars {
				return fmt.Errorf("block %d (%s) references variable %d of %d", k, b.Name, i, p.NumVars)
			}
			if a.SymmetricDim() != n {
				return fmt.Errorf("block %d (%s) variable %d has size %d, want %d", k, b.Name, i, a.SymmetricDim(), n)
			}
		}
	}
	for j, e := range p.Equalities {
		for i := range e.Coef {
			if i < 0 || i >= p.NumVars {
				return fmt.Errorf("equality %d (%s) references variable %d of %d", j, e.Name, i, p.NumVars)
			}
		}
	}
	return nil
}

// Options tunes the interior-point method
type Options struct {
	MaxIterations int
	Tolerance     float64
	StepFraction  float64
	// Trace, when set, receives one call per iteration
	Trace func(it int, primal, dual, residual float64)
}

// DefaultOptions returns the default solver options
func DefaultOptions() Options {
	return Options{
		MaxIterations: 100,
		Tolerance:     1e-8,
		StepFraction:  0.95,
	}
}

// Solution is what a solver returns. Y, X and Nu are set when Status.Solved().
type Solution struct {
	Status Status
	Reason string
	// Y is the optimal variable vector
	Y []float64
	// X holds one dual matrix per block, aligned with Problem.Blocks
	X []*mat.SymDense
	// Nu holds one multiplier per equality, aligned with Problem.Equalities
	Nu []float64
	// Objective is b'y
	Objective float64
	// DualObjective is sum_k <C_k, X_k> + nu'r
	DualObjective float64
	Iterations    int
	// Residual is the largest of the relative primal, dual and gap residuals
	Residual float64
}

// Solver solves a conic problem; INFEASIBLE and UNBOUNDED are statuses, not errors
type Solver interface {
	Name() string
	Solve(ctx context.Context, p *Problem, opts Options) (*Solution, error)
}
