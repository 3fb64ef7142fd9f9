package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps is the iteration limit of a single loop.
const DefaultMaxSteps = 10000

// QuotaEnforcer counts the iterations of one loop and enforces a maximum.
//
// Each loop evaluation has its own QuotaEnforcer instance. The quota is
// checked before every iteration.
//
// This stops loops whose condition never becomes false, as opposed to
// unbounded recursion caught by the CallTracker.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates against the limit.
//
// Returns StepsExceededError if the quota is exceeded.
func (q *QuotaEnforcer) Check(loop string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			Loop:  loop,
			Steps: q.current,
			Limit: q.maxSteps,
		}
	}
	return nil
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a loop exceeds the max steps quota.
type StepsExceededError struct {
	Loop  string // Outputs of the loop, for diagnostics
	Steps int
	Limit int
}

func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("loop %s exceeded max steps quota: %d steps > %d limit",
		e.Loop, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
