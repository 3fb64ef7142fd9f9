package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while evaluating a pallet.
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Definition names the definition being evaluated, if any.
	Definition string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeAssertionFailed indicates a tf.Assert saw false.
	ErrCodeAssertionFailed RuntimeErrorCode = "ASSERTION_FAILED"

	// ErrCodeRecursion indicates a definition was applied while already running.
	ErrCodeRecursion RuntimeErrorCode = "RECURSION"

	// ErrCodeQuotaExceeded indicates a loop exceeded max steps.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeUnbound indicates a name with no binding.
	ErrCodeUnbound RuntimeErrorCode = "UNBOUND"

	// ErrCodeTypeMismatch indicates a value of the wrong kind, type or shape.
	ErrCodeTypeMismatch RuntimeErrorCode = "TYPE_MISMATCH"

	// ErrCodeArity indicates an application with the wrong arguments.
	ErrCodeArity RuntimeErrorCode = "ARITY"

	// ErrCodeArithmetic indicates a failed decimal operation, such as
	// division by zero.
	ErrCodeArithmetic RuntimeErrorCode = "ARITHMETIC"

	// ErrCodeUnsupported indicates IR the evaluator cannot run, such as a
	// member of a foreign package.
	ErrCodeUnsupported RuntimeErrorCode = "UNSUPPORTED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Definition != "" {
		return fmt.Sprintf("%s: %s (in %s)", e.Code, e.Message, e.Definition)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func runtimeErrorf(code RuntimeErrorCode, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the runtime error code of err, or "" if err is not a
// RuntimeError.
func CodeOf(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	if IsStepsExceededError(err) {
		return ErrCodeQuotaExceeded
	}
	return ""
}

// IsAssertionError returns true if the error is a failed tf.Assert.
// Uses errors.As to handle wrapped errors.
func IsAssertionError(err error) bool {
	return CodeOf(err) == ErrCodeAssertionFailed
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	return CodeOf(err) == ErrCodeQuotaExceeded
}
