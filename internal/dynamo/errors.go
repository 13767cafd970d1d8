package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrConfig indicates invalid run parameters, detected before integration.
	ErrConfig = errors.New("dynamo: invalid configuration")

	// ErrIntegrationFailure indicates the solver could not meet its tolerance.
	ErrIntegrationFailure = errors.New("dynamo: integration failed")

	// ErrDivergence indicates non-finite values appeared in the state.
	ErrDivergence = errors.New("dynamo: simulation diverged (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched state, matrix or vector dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrStepBudget indicates the solver used up its step allowance.
	ErrStepBudget = errors.New("dynamo: step budget exhausted")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("t=%.6g after %d steps: %v", e.Time, e.Step, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
