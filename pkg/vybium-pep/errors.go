package vybiumpep

import (
	"errors"

	pep "github.com/vybium/vybium-pep/internal/vybium-pep"
)

// ErrorCode represents a Vybium PEP error code
type ErrorCode = pep.ErrorCode

// Error represents a Vybium PEP error. Is matches on the code, so
// errors.Is(err, &Error{Code: ErrInvalidState}) works across wrapping.
type Error = pep.Error

const (
	// ErrUnknown represents an unknown error
	ErrUnknown = pep.ErrUnknown

	// ErrInvalidConfig represents an invalid configuration error
	ErrInvalidConfig = pep.ErrInvalidConfig

	// ErrInvalidReference represents a reference to a point or function of another problem
	ErrInvalidReference = pep.ErrInvalidReference

	// ErrFinalized represents a mutation of a problem that is already compiled
	ErrFinalized = pep.ErrFinalized

	// ErrMalformedExpression represents an expression that is not linear in the Gram matrix
	ErrMalformedExpression = pep.ErrMalformedExpression

	// ErrNoObjective represents a problem without a performance metric
	ErrNoObjective = pep.ErrNoObjective

	// ErrInvalidState represents an operation in the wrong lifecycle state
	ErrInvalidState = pep.ErrInvalidState

	// ErrSolver represents a failure of the conic solver
	ErrSolver = pep.ErrSolver

	// ErrInfeasible represents a problem without a finite worst case
	ErrInfeasible = pep.ErrInfeasible

	// ErrCertificate represents a certificate that could not be built or verified
	ErrCertificate = pep.ErrCertificate

	// ErrInvalidInput represents an invalid input error
	ErrInvalidInput = pep.ErrInvalidInput

	// ErrNotFound represents a missing method, class or archived result
	ErrNotFound = pep.ErrNotFound
)

// IsCode reports whether err, or any error it wraps, carries the given code
func IsCode(err error, code ErrorCode) bool {
	return pep.IsCode(err, code)
}

// Code returns the code of the first Vybium PEP error in the chain of err,
// ErrUnknown when there is none
func Code(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrUnknown
}
