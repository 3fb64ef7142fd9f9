package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/nao/internal/compiler"
)

// Resolution error codes (E300-E399).
const (
	ErrCodeImport = "E301" // no source for an import
	ErrCodeCycle  = "E302" // import graph has a cycle
)

// ImportError reports an import no lookup could satisfy.
type ImportError struct {
	Path     string
	Importer string
}

func (e *ImportError) Error() string {
	if e.Importer != "" {
		return fmt.Sprintf("no such package: %s (imported by %s)", e.Path, e.Importer)
	}
	return "no such package: " + e.Path
}

// CycleError reports an import cycle. Path starts and ends with the same
// package.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "cyclic import: " + strings.Join(e.Path, " -> ")
}

// IsCycle reports whether err is or wraps a cyclic import.
func IsCycle(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}

// IsImportError reports whether err is or wraps a missing package.
func IsImportError(err error) bool {
	var ie *ImportError
	return errors.As(err, &ie)
}

// ErrorCode returns the diagnostic code carried by a resolution error: an
// import or cycle code, or the code of the compile, syntax or validation
// error underneath. It returns "" when err carries none.
func ErrorCode(err error) string {
	switch {
	case IsCycle(err):
		return ErrCodeCycle
	case IsImportError(err):
		return ErrCodeImport
	}
	if code := compiler.ErrorCode(err); code != "" {
		return code
	}
	var ve compiler.ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
