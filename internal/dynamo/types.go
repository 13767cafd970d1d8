package dynamo

import "math"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// System is an ODE right-hand side dX/dt = f(X, t).
//
// Implementations must be pure: adaptive steppers evaluate Derive several
// times per step and not always in increasing time order.
type System interface {
	Derive(x State, t float64) State
	StateDim() int
}
