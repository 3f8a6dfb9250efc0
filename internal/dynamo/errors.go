package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for engine operations.
var (
	// ErrInvalidConfig indicates a non-positive count, dimension or time constant.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrPrecondition indicates a query issued before its inputs exist, such as
	// a temperature estimate with no elapsed macro-steps.
	ErrPrecondition = errors.New("dynamo: precondition violated")

	// ErrNoMatch indicates a point lookup found no particle within tolerance.
	ErrNoMatch = errors.New("dynamo: no particle at point")
)

// StepError wraps an error with the macro-step it was raised on.
type StepError struct {
	Step    int
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d: %v", e.Step, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
