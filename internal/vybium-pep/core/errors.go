package core

import (
	"errors"
	"fmt"
)

// ErrorCode represents a PEP error code
type ErrorCode int

const (
	// ErrUnknown represents an unknown error
	ErrUnknown ErrorCode = iota

	// ErrInvalidConfig represents an invalid configuration error
	ErrInvalidConfig

	// ErrInvalidReference represents a point, value or function that does not
	// belong to the registry it is used with
	ErrInvalidReference

	// ErrFinalized represents a mutation of a registry that was already finalized
	ErrFinalized

	// ErrMalformedExpression represents an expression that cannot be compiled
	// into a linear form over the Gram matrix and the function values
	ErrMalformedExpression

	// ErrNoObjective represents a PEP solved without a performance metric
	ErrNoObjective

	// ErrInvalidState represents an operation that is not allowed in the
	// current lifecycle state of a PEP
	ErrInvalidState

	// ErrSolver represents a numerical failure of the SDP solver
	ErrSolver

	// ErrInfeasible represents an infeasible or unbounded PEP
	ErrInfeasible

	// ErrCertificate represents a dual certificate that could not be built or verified
	ErrCertificate

	// ErrInvalidInput represents an invalid input error
	ErrInvalidInput

	// ErrNotFound represents a missing catalog entry or archived result
	ErrNotFound
)

var errorCodeNames = map[ErrorCode]string{
	ErrUnknown:             "unknown",
	ErrInvalidConfig:       "invalid config",
	ErrInvalidReference:    "invalid reference",
	ErrFinalized:           "registry finalized",
	ErrMalformedExpression: "malformed expression",
	ErrNoObjective:         "no objective",
	ErrInvalidState:        "invalid state",
	ErrSolver:              "solver error",
	ErrInfeasible:          "infeasible",
	ErrCertificate:         "certificate error",
	ErrInvalidInput:        "invalid input",
	ErrNotFound:            "not found",
}

// String returns the name of the error code
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error represents a PEP error
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// NewError creates an error with the given code and message
func NewError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an error with the given code that wraps cause
func WrapError(code ErrorCode, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vybium-pep error [%s]: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("vybium-pep error [%s]: %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsCode reports whether err, or any error it wraps, is an *Error with the given code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	for {
		if e.Code == code {
			return true
		}
		var next *Error
		if e.Cause == nil || !errors.As(e.Cause, &next) {
			return false
		}
		e = next
	}
}
