// Package dynamo provides core simulation primitives for dynamical systems.
//
// The package defines the fundamental types shared by the closed-loop
// model, the integrators and the simulator:
//
//   - [State]: flat vector handed to numerical solvers
//   - [System]: interface for ODE right-hand sides (dX/dt = f(X, t))
//   - [SimulationError]: failure with the time, step and state it happened at
//
// # Errors
//
// Callers branch on the sentinel errors with errors.Is:
//
//	traj, err := s.Run()
//	switch {
//	case errors.Is(err, dynamo.ErrDivergence):
//	    // unstable loop configuration
//	case errors.Is(err, dynamo.ErrIntegrationFailure):
//	    // tolerance could not be met within the step budget
//	}
package dynamo
