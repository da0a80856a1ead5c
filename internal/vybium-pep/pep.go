package vybiumpep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vybium/vybium-pep/internal/vybium-pep/assembler"
	"github.com/vybium/vybium-pep/internal/vybium-pep/certificate"
	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
	"github.com/vybium/vybium-pep/internal/vybium-pep/sdp"
	"github.com/vybium/vybium-pep/internal/vybium-pep/store"
	"github.com/vybium/vybium-pep/internal/vybium-pep/utils"
)

// State is the lifecycle state of a PEP
type State int

const (
	// StateUnsolved accepts declarations
	StateUnsolved State = iota
	// StateCompiling is entered once by Solve
	StateCompiling
	// StateSolved means a worst case was found
	StateSolved
	// StateInfeasible means the problem admits no finite worst case
	StateInfeasible
	// StateError means compilation or the solver failed
	StateError
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateUnsolved:
		return "UNSOLVED"
	case StateCompiling:
		return "COMPILING"
	case StateSolved:
		return "SOLVED"
	case StateInfeasible:
		return "INFEASIBLE"
	case StateError:
		return "ERROR"
	}
	return fmt.Sprintf("STATE(%d)", int(s))
}

// label is the lowercase state name used in metrics
func (s State) label() string {
	return strings.ToLower(s.String())
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateSolved || s == StateInfeasible || s == StateError
}

// PEP is a performance estimation problem. It owns an isolated registry of
// points, values and functions, and is solved at most once.
type PEP struct {
	id     uuid.UUID
	config *utils.Config
	log    *utils.Logger
	solver sdp.Solver

	reg        *core.Registry
	initial    []*core.Point
	conditions []*core.Constraint
	user       []*core.Constraint
	matrices   []*core.PSDMatrix
	metrics    []*core.Expression

	state  State
	result *Result
}

// Option configures a PEP
type Option func(*PEP)

// WithSolver replaces the built-in interior-point solver
func WithSolver(s sdp.Solver) Option {
	return func(p *PEP) {
		p.solver = s
	}
}

// WithLogger sets the logger; the default is built from the configuration
func WithLogger(l *utils.Logger) Option {
	return func(p *PEP) {
		p.log = l
	}
}

// New creates an empty PEP. A nil configuration means DefaultConfig.
func New(cfg *utils.Config, opts ...Option) *PEP {
	if cfg == nil {
		cfg = utils.DefaultConfig()
	}
	p := &PEP{
		id:     uuid.New(),
		config: cfg.Clone(),
		reg:    core.NewRegistry(),
		state:  StateUnsolved,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.solver == nil {
		p.solver = sdp.NewInteriorPoint()
	}
	if p.log == nil {
		p.log = utils.LoggerFromConfig(p.config)
	}
	p.log = p.log.With("problem_id", p.id.String())
	return p
}

// ID returns the problem identifier
func (p *PEP) ID() string {
	return p.id.String()
}

// Config returns a copy of the configuration
func (p *PEP) Config() *utils.Config {
	return p.config.Clone()
}

// Registry returns the PEP's registry
func (p *PEP) Registry() *core.Registry {
	return p.reg
}

// State returns the lifecycle state
func (p *PEP) State() State {
	return p.state
}

// Result returns the result of Solve, or nil before it completes
func (p *PEP) Result() *Result {
	return p.result
}

func (p *PEP) mustBeUnsolved(op string) {
	if p.state != StateUnsolved {
		panic(core.NewError(core.ErrFinalized, "%s called on a PEP in state %s", op, p.state))
	}
}

// SetInitialPoint declares a leaf point, typically a starting iterate
func (p *PEP) SetInitialPoint(name string) *core.Point {
	p.mustBeUnsolved("SetInitialPoint")
	x := p.reg.NewPoint(name)
	p.initial = append(p.initial, x)
	return x
}

// InitialPoints returns the points declared with SetInitialPoint
func (p *PEP) InitialPoints() []*core.Point {
	return append([]*core.Point(nil), p.initial...)
}

// DeclareFunction declares a function or operator of the given classes
func (p *PEP) DeclareFunction(name string, opts ...core.FunctionOption) *core.Function {
	p.mustBeUnsolved("DeclareFunction")
	return p.reg.DeclareFunction(name, opts...)
}

// SetInitialCondition adds a constraint on the starting configuration
func (p *PEP) SetInitialCondition(c *core.Constraint) {
	p.mustBeUnsolved("SetInitialCondition")
	p.conditions = append(p.conditions, c)
}

// AddConstraint adds any other constraint
func (p *PEP) AddConstraint(c *core.Constraint) {
	p.mustBeUnsolved("AddConstraint")
	p.user = append(p.user, c)
}

// AddPerformanceMetric adds a metric; the worst case of the smallest metric
// is computed
func (p *PEP) AddPerformanceMetric(e *core.Expression) {
	p.mustBeUnsolved("AddPerformanceMetric")
	p.metrics = append(p.metrics, e)
}

// AddPSDMatrix requires a symmetric matrix of expressions to be PSD
func (p *PEP) AddPSDMatrix(name string, rows [][]*core.Expression) error {
	p.mustBeUnsolved("AddPSDMatrix")
	m, err := core.NewPSDMatrix(name, rows)
	if err != nil {
		return err
	}
	p.matrices = append(p.matrices, m)
	return nil
}

// Solve compiles the problem, solves it once and interprets the outcome.
// INFEASIBLE and ERROR outcomes are reported through the result; the error
// is non-nil only for configuration, construction and compilation failures,
// cancellation, and calls after the first.
func (p *PEP) Solve(ctx context.Context) (*Result, error) {
	if p.state != StateUnsolved {
		return nil, core.NewError(core.ErrInvalidState, "PEP %s is %s, it can only be solved once", p.id, p.state)
	}
	if err := p.config.Validate(); err != nil {
		return nil, core.WrapError(core.ErrInvalidConfig, err, "invalid configuration")
	}

	ctx, span := utils.StartSpan(ctx, "pep.Solve", attribute.String("problem_id", p.id.String()))
	start := time.Now()
	p.state = StateCompiling

	res, err := p.solve(ctx)
	if err != nil {
		p.state = StateError
		p.log.Error("solve failed", "error", err)
		utils.RecordSolve(StateError.label(), time.Since(start), 0)
		utils.EndSpan(span, err)
		return nil, err
	}
	res.Duration = time.Since(start)
	p.state = res.Status
	p.result = res
	utils.RecordSolve(res.Status.label(), res.Duration, res.Iterations)
	span.SetAttributes(
		attribute.String("status", res.Status.String()),
		attribute.Float64("bound", res.Bound),
	)
	utils.EndSpan(span, nil)

	if p.config.StorePath != "" {
		if err := p.archive(res); err != nil {
			res.warn(p.log, fmt.Sprintf("result not archived: %v", err))
		}
	}
	return res, nil
}

func (p *PEP) solve(ctx context.Context) (*Result, error) {
	prob, err := p.compile(ctx)
	if err != nil {
		return nil, err
	}
	conic, lay := buildConic(prob)

	opts := sdp.Options{
		MaxIterations: p.config.MaxIterations,
		Tolerance:     p.config.Tolerance,
		StepFraction:  p.config.StepFraction,
		Trace: func(it int, primal, dual, residual float64) {
			p.log.Debug("solver iteration", "iteration", it, "primal", primal, "dual", dual, "residual", residual)
		},
	}
	sctx, span := utils.StartSpan(ctx, "sdp.Solve",
		attribute.String("solver", p.solver.Name()),
		attribute.Int("variables", conic.NumVars),
		attribute.Int("blocks", len(conic.Blocks)),
		attribute.Int("equalities", len(conic.Equalities)),
	)
	sol, err := p.solver.Solve(sctx, conic, opts)
	utils.EndSpan(span, err)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, core.WrapError(core.ErrSolver, err, "solver %s failed", p.solver.Name())
	}

	res := &Result{
		ID:           p.id.String(),
		SolverStatus: sol.Status,
		Reason:       sol.Reason,
		Iterations:   sol.Iterations,
		Residual:     sol.Residual,
		Digest:       prob.Digest,
		Stats:        prob.Stats(),
		Scalars:      len(prob.Rows),
		LMIs:         len(prob.LMIs),
		Duplicates:   prob.Duplicates,
		reg:          p.reg,
	}
	p.log.Info("solver finished",
		"solver", p.solver.Name(),
		"status", sol.Status.String(),
		"iterations", sol.Iterations,
		"bound", sol.Objective,
	)

	switch sol.Status {
	case sdp.StatusOptimal, sdp.StatusOptimalInaccurate:
		res.Status = StateSolved
	case sdp.StatusInfeasible:
		res.Status = StateInfeasible
		return res, nil
	case sdp.StatusUnbounded:
		res.Status = StateInfeasible
		res.Reason = "unbounded: " + sol.Reason
		return res, nil
	default:
		res.Status = StateError
		return res, nil
	}

	if sol.Status == sdp.StatusOptimalInaccurate {
		res.warn(p.log, fmt.Sprintf("solver status %s (residual %.2e): %s", sol.Status, sol.Residual, sol.Reason))
	}
	if len(sol.Y) != conic.NumVars || len(sol.X) != len(conic.Blocks) {
		res.Status = StateError
		res.Reason = fmt.Sprintf("solver %s returned a solution of the wrong shape", p.solver.Name())
		return res, nil
	}

	res.Bound = sol.Y[lay.tau]
	res.DualBound = sol.DualObjective
	res.Gram = lay.gram(sol.Y)
	res.Values = lay.valueVector(sol.Y)
	res.factorize(p.config.RankTolerance)

	if p.config.ComputeCertificate {
		p.certify(ctx, res, prob, lay, sol)
	}
	return res, nil
}

// compile finalizes the registry and assembles the problem
func (p *PEP) compile(ctx context.Context) (*assembler.Problem, error) {
	ctx, span := utils.StartSpan(ctx, "pep.Compile")
	start := time.Now()
	p.reg.Finalize()
	p.log.Info("compiling",
		"points", p.reg.NumPoints(),
		"values", p.reg.NumValues(),
		"functions", len(p.reg.Functions()),
		"metrics", len(p.metrics),
		"initial_conditions", len(p.conditions),
		"constraints", len(p.user),
		"matrices", len(p.matrices),
	)

	prob, err := assembler.Assemble(assembler.Input{
		Registry:          p.reg,
		Metrics:           p.metrics,
		InitialConditions: p.conditions,
		Constraints:       p.user,
		Matrices:          p.matrices,
		DedupDigits:       p.config.DedupDigits,
		HashFunction:      p.config.HashFunction,
	})
	rows := 0
	if prob != nil {
		rows = len(prob.Rows)
	}
	utils.RecordCompile(ctx, time.Since(start), rows, err == nil)
	if err != nil {
		utils.EndSpan(span, err)
		return nil, err
	}

	for _, f := range p.reg.Functions() {
		if !f.IsLeaf() {
			continue
		}
		p.log.Debug("interpolation constraints",
			"function", f.Name(),
			"classes", f.ClassNames(),
			"triples", len(f.Triples()),
			"constraints", prob.Stats()[f.Name()],
		)
	}
	utils.RecordConstraints(len(prob.Rows), len(prob.LMIs), prob.Duplicates)
	p.log.Info("compiled",
		"scalar_constraints", len(prob.Rows),
		"equalities", prob.NumEqualities(),
		"lmis", len(prob.LMIs),
		"duplicates", prob.Duplicates,
		"digest", prob.Digest,
	)
	span.SetAttributes(attribute.Int("rows", len(prob.Rows)), attribute.String("digest", prob.Digest))
	utils.EndSpan(span, nil)
	return prob, nil
}

// certify extracts, verifies and commits to the dual certificate. Failures
// are warnings on the result.
func (p *PEP) certify(ctx context.Context, res *Result, prob *assembler.Problem, lay *layout, sol *sdp.Solution) {
	in := lay.multipliers(prob, sol)
	cert, err := certificate.Extract(ctx, prob, certificate.Multipliers{
		Metrics: in.metrics,
		Rows:    in.rows,
		LMIs:    in.lmis,
		Gram:    in.gram,
		Bound:   sol.DualObjective,
		Primal:  res.Bound,
	})
	if err != nil {
		res.warn(p.log, fmt.Sprintf("certificate unavailable: %v", err))
		utils.RecordCertificate(false)
		return
	}
	res.Certificate = cert
	res.Verification = cert.Verify(p.config.CertificateTolerance)
	utils.RecordCertificate(res.Verification.Verified)
	if !res.Verification.Verified {
		res.warn(p.log, fmt.Sprintf("proof unverified: %v", res.Verification.Err()))
	}
	com, err := cert.Commit()
	if err != nil {
		res.warn(p.log, fmt.Sprintf("certificate commitment failed: %v", err))
		return
	}
	res.Commitment = com.Hex()
}

func (p *PEP) archive(res *Result) error {
	a, err := store.Open(store.DefaultConfig(p.config.StorePath).WithLogger(p.log))
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Put(res.Record())
}
