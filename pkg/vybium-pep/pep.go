package vybiumpep

import (
	"context"
	"fmt"
	"math"

	pep "github.com/vybium/vybium-pep/internal/vybium-pep"
	"github.com/vybium/vybium-pep/internal/vybium-pep/methods"
	"github.com/vybium/vybium-pep/internal/vybium-pep/store"
)

// New creates an empty PEP. A nil configuration means DefaultConfig.
func New(cfg *Config, opts ...Option) *PEP {
	return pep.New(cfg, opts...)
}

// Problem construction
var (
	WithSolver     = pep.WithSolver
	WithLogger     = pep.WithLogger
	WithClass      = pep.WithClass
	Differentiable = pep.Differentiable
	Constant       = pep.Constant
	ZeroPoint      = pep.ZeroPoint
	Sum            = pep.Sum
	SumExpressions = pep.SumExpressions
)

// Class constructors
var (
	LookupClass     = pep.LookupClass
	ClassNames      = pep.ClassNames
	ClassParamNames = pep.ClassParamNames
	RegisterClass   = pep.RegisterClass

	NewConvex                        = pep.NewConvex
	NewStronglyConvex                = pep.NewStronglyConvex
	NewConvexLipschitz               = pep.NewConvexLipschitz
	NewConvexIndicator               = pep.NewConvexIndicator
	NewConvexSupport                 = pep.NewConvexSupport
	NewSmooth                        = pep.NewSmooth
	NewSmoothConvex                  = pep.NewSmoothConvex
	NewSmoothStronglyConvex          = pep.NewSmoothStronglyConvex
	NewSmoothStronglyConvexQuadratic = pep.NewSmoothStronglyConvexQuadratic
	NewMonotone                      = pep.NewMonotone
	NewStronglyMonotone              = pep.NewStronglyMonotone
	NewLipschitzOperator             = pep.NewLipschitzOperator
	NewCocoercive                    = pep.NewCocoercive
	NewLipschitzStronglyMonotone     = pep.NewLipschitzStronglyMonotone
)

// Method steps
var (
	ProximalStep           = pep.ProximalStep
	InexactGradientStep    = pep.InexactGradientStep
	BregmanGradientStep    = pep.BregmanGradientStep
	BregmanProximalStep    = pep.BregmanProximalStep
	LinearOptimizationStep = pep.LinearOptimizationStep
	ExactLineSearchStep    = pep.ExactLineSearchStep
)

// Configuration, logging and solver
var (
	DefaultConfig    = pep.DefaultConfig
	LoadConfig       = pep.LoadConfig
	ParseConfig      = pep.ParseConfig
	NewLogger        = pep.NewLogger
	DiscardLogger    = pep.DiscardLogger
	NewInteriorPoint = pep.NewInteriorPoint
)

// Method catalog
var (
	LookupMethod   = methods.Lookup
	MethodNames    = methods.Names
	RegisterMethod = methods.Register
	BuildMethod    = methods.Build
)

// Run is a solved catalog method
type Run struct {
	Instance *Instance
	Result   *Result
}

// Gap returns the solved bound minus the theoretical bound, NaN when no
// theoretical bound is known or the problem was not solved
func (r *Run) Gap() float64 {
	if !r.Instance.HasTheoretical() || r.Result.Status != StateSolved {
		return math.NaN()
	}
	return r.Result.Bound - r.Instance.Theoretical
}

// Matches reports whether the solved bound agrees with a tight theoretical
// bound, or stays below an upper bound, within the relative tolerance
func (r *Run) Matches(tol float64) bool {
	gap := r.Gap()
	if math.IsNaN(gap) {
		return false
	}
	slack := tol * math.Max(1, math.Abs(r.Instance.Theoretical))
	if r.Instance.Tight {
		return math.Abs(gap) <= slack
	}
	return gap <= slack
}

// RunMethod builds the named catalog method and solves it. The returned error
// covers unknown methods, invalid parameters and construction failures; the
// solve outcome is reported by Run.Result.Status.
func RunMethod(ctx context.Context, name string, params Params, cfg *Config, opts ...Option) (*Run, error) {
	in, err := methods.Build(name, params, cfg, opts...)
	if err != nil {
		return nil, err
	}
	res, err := in.PEP.Solve(ctx)
	if err != nil {
		return nil, fmt.Errorf("solve %s: %w", name, err)
	}
	return &Run{Instance: in, Result: res}, nil
}

// OpenArchive opens the on-disk result archive at path
func OpenArchive(path string, logger *Logger) (*Archive, error) {
	cfg := store.DefaultConfig(path)
	if logger != nil {
		cfg = cfg.WithLogger(logger)
	}
	return store.Open(cfg)
}

// OpenMemoryArchive opens an archive that lives in memory only
func OpenMemoryArchive() (*Archive, error) {
	return store.Open(store.InMemoryConfig())
}
