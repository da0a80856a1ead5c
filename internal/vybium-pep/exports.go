// Package vybiumpep computes worst-case guarantees of first-order
// optimization methods by performance estimation.
//
// A PEP declares points, function values and functions of given classes,
// runs a method symbolically, and asks for the worst value of a performance
// metric over every function of the classes and every starting point that
// satisfies the initial conditions. The problem is compiled into a
// semidefinite program over the Gram matrix of the points and the function
// values, solved, and certified by the dual multipliers.
//
// This package re-exports the building blocks of the internal subpackages
// so that callers need a single import.
package vybiumpep

import (
	"github.com/vybium/vybium-pep/internal/vybium-pep/certificate"
	"github.com/vybium/vybium-pep/internal/vybium-pep/classes"
	"github.com/vybium/vybium-pep/internal/vybium-pep/core"
	"github.com/vybium/vybium-pep/internal/vybium-pep/primitives"
	"github.com/vybium/vybium-pep/internal/vybium-pep/sdp"
	"github.com/vybium/vybium-pep/internal/vybium-pep/utils"
)

// Re-export expression algebra types
type (
	Point          = core.Point
	Expression     = core.Expression
	Constraint     = core.Constraint
	PSDMatrix      = core.PSDMatrix
	Function       = core.Function
	FunctionOption = core.FunctionOption
	Class          = core.Class
	Triple         = core.Triple
	LinearForm     = core.LinearForm
	Error          = core.Error
	ErrorCode      = core.ErrorCode
)

// Re-export expression constructors
var (
	Constant       = core.Constant
	ZeroPoint      = core.ZeroPoint
	Sum            = core.Sum
	SumExpressions = core.SumExpressions
	WithClass      = core.WithClass
	Differentiable = core.Differentiable
	IsCode         = core.IsCode
)

// Re-export error codes
const (
	ErrUnknown             = core.ErrUnknown
	ErrInvalidConfig       = core.ErrInvalidConfig
	ErrInvalidReference    = core.ErrInvalidReference
	ErrFinalized           = core.ErrFinalized
	ErrMalformedExpression = core.ErrMalformedExpression
	ErrNoObjective         = core.ErrNoObjective
	ErrInvalidState        = core.ErrInvalidState
	ErrSolver              = core.ErrSolver
	ErrInfeasible          = core.ErrInfeasible
	ErrCertificate         = core.ErrCertificate
	ErrInvalidInput        = core.ErrInvalidInput
	ErrNotFound            = core.ErrNotFound
)

// Re-export class catalog
type ClassParams = classes.Params

var (
	LookupClass     = classes.Lookup
	ClassNames      = classes.Names
	ClassParamNames = classes.ParamNames
	RegisterClass   = classes.Register

	NewConvex                        = classes.NewConvex
	NewStronglyConvex                = classes.NewStronglyConvex
	NewConvexLipschitz               = classes.NewConvexLipschitz
	NewConvexIndicator               = classes.NewConvexIndicator
	NewConvexSupport                 = classes.NewConvexSupport
	NewSmooth                        = classes.NewSmooth
	NewSmoothConvex                  = classes.NewSmoothConvex
	NewSmoothStronglyConvex          = classes.NewSmoothStronglyConvex
	NewSmoothStronglyConvexQuadratic = classes.NewSmoothStronglyConvexQuadratic
	NewMonotone                      = classes.NewMonotone
	NewStronglyMonotone              = classes.NewStronglyMonotone
	NewLipschitzOperator             = classes.NewLipschitzOperator
	NewCocoercive                    = classes.NewCocoercive
	NewLipschitzStronglyMonotone     = classes.NewLipschitzStronglyMonotone
)

// Re-export method steps
type Inexactness = primitives.Inexactness

const (
	Relative = primitives.Relative
	Absolute = primitives.Absolute
)

var (
	ProximalStep           = primitives.ProximalStep
	InexactGradientStep    = primitives.InexactGradientStep
	BregmanGradientStep    = primitives.BregmanGradientStep
	BregmanProximalStep    = primitives.BregmanProximalStep
	LinearOptimizationStep = primitives.LinearOptimizationStep
	ExactLineSearchStep    = primitives.ExactLineSearchStep
)

// Re-export solver and certificate types
type (
	Solver          = sdp.Solver
	SolverStatus    = sdp.Status
	SolverOptions   = sdp.Options
	Certificate     = certificate.Certificate
	CertificateTerm = certificate.Term
	Verification    = certificate.Report
)

var NewInteriorPoint = sdp.NewInteriorPoint

// Re-export configuration and logging
type (
	Config    = utils.Config
	Logger    = utils.Logger
	LogConfig = utils.LogConfig
)

var (
	DefaultConfig = utils.DefaultConfig
	LoadConfig    = utils.LoadConfig
	ParseConfig   = utils.ParseConfig
	NewLogger     = utils.NewLogger
	DiscardLogger = utils.DiscardLogger
)
