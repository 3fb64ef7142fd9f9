package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/nao/internal/syntax"
)

// Compile error codes (E200-E299). These are user-facing: the source is
// wrong and the message says how.
const (
	ErrAlreadyDefined      = "E201" // attribute, local or keyword bound twice
	ErrEllipsisCount       = "E202" // more than one ellipsis in an attribute block
	ErrEllipsisInApply     = "E203" // ellipsis in the attribute block of an application
	ErrMissingAttributes   = "E204" // declared attributes left unbound without an ellipsis
	ErrEllipsisNotNeeded   = "E205" // ellipsis given but nothing is missing
	ErrMisplacedAttrDecl   = "E206" // attribute declaration outside a definition body
	ErrDuplicateKeywordArg = "E207" // keyword argument given twice
	ErrInvalidLiteral      = "E208" // malformed import path or dimension
)

// Internal error codes (E900-E999). These mean the compiler itself built a
// tree it cannot process.
const (
	ErrUnhandledKind    = "E901" // a rewrite pass met a node kind it does not know
	ErrEmptyAfterLeaves = "E902" // after-leaves block with no expressions
	ErrAssertOnFunction = "E903" // shape or type asserted on a definition
)

// CompileError is a user-facing error in the source program.
type CompileError struct {
	Code    string
	Name    string // the attribute, local or callee involved, if any
	Message string
	Pos     syntax.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: [%s] %s", e.Pos, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func compileErrorf(code string, pos syntax.Pos, name, format string, args ...any) *CompileError {
	return &CompileError{Code: code, Name: name, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// InternalError reports a broken invariant inside a rewrite pass.
type InternalError struct {
	Code    string
	Op      string // the pass that failed
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal compiler error [%s] in %s: %s", e.Code, e.Op, e.Message)
}

func internalErrorf(code, op, format string, args ...any) *InternalError {
	return &InternalError{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// IsInternal reports whether err is or wraps an internal compiler error.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}

// IsCompileError reports whether err is or wraps a user-facing compile
// error.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// ErrorCode returns the diagnostic code carried by err, or "" when err has
// none.
func ErrorCode(err error) string {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie.Code
	}
	var se *syntax.Error
	if errors.As(err, &se) {
		return syntax.ErrCodeSyntax
	}
	return ""
}
