package vybiumpep

import (
	pep "github.com/vybium/vybium-pep/internal/vybium-pep"
	"github.com/vybium/vybium-pep/internal/vybium-pep/methods"
	"github.com/vybium/vybium-pep/internal/vybium-pep/store"
)

// PEP is a performance estimation problem, solved at most once
type PEP = pep.PEP

// Option configures a PEP
type Option = pep.Option

// State is the lifecycle state of a PEP
type State = pep.State

// Result is the outcome of a solve
type Result = pep.Result

const (
	StateUnsolved   = pep.StateUnsolved
	StateCompiling  = pep.StateCompiling
	StateSolved     = pep.StateSolved
	StateInfeasible = pep.StateInfeasible
	StateError      = pep.StateError
)

// Point is a symbolic vector: a leaf or a linear combination of leaves
type Point = pep.Point

// Expression is a symbolic scalar: linear in function values and inner products
type Expression = pep.Expression

// Constraint is an (in)equality between two expressions
type Constraint = pep.Constraint

// Function is a leaf or composite function with its evaluated triples
type Function = pep.Function

// FunctionOption configures a declared function
type FunctionOption = pep.FunctionOption

// Class generates the interpolation constraints of a function or operator class
type Class = pep.Class

// ClassParams holds named class parameters
type ClassParams = pep.ClassParams

// Inexactness selects the error model of an inexact gradient step
type Inexactness = pep.Inexactness

// Certificate holds the dual multipliers proving a bound
type Certificate = pep.Certificate

// CertificateTerm is one weighted constraint of a certificate
type CertificateTerm = pep.CertificateTerm

// Verification is the report of an independent certificate check
type Verification = pep.Verification

// Solver is the conic solver boundary
type Solver = pep.Solver

// SolverStatus is the raw status reported by a Solver
type SolverStatus = pep.SolverStatus

// Config represents configuration for building and solving problems
type Config = pep.Config

// Logger is the structured logger used by every component
type Logger = pep.Logger

// LogConfig configures a Logger
type LogConfig = pep.LogConfig

// Params holds named method parameters
type Params = methods.Params

// Method is an entry of the method catalog
type Method = methods.Method

// MethodParam describes a method parameter
type MethodParam = methods.Param

// Instance is a built catalog method with its known guarantee
type Instance = methods.Instance

// Archive stores solved results keyed by problem digest
type Archive = store.Archive

// Record is an archived result
type Record = store.Record

const (
	Relative = pep.Relative
	Absolute = pep.Absolute
)
