package syntax

import (
	"errors"
	"fmt"
)

// ErrCodeSyntax is the diagnostic code of every syntax error.
const ErrCodeSyntax = "E100"

// Error is a syntax error. It aborts the build of the source unit.
type Error struct {
	Pos     Pos
	Message string
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: syntax error: %s", e.Pos, e.Message)
	}
	return "syntax error: " + e.Message
}

// IsSyntaxError reports whether err is or wraps a syntax error.
func IsSyntaxError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}
