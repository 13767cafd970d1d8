package closedloop

import (
	"fmt"

	"github.com/san-kum/loopsim/internal/control"
	"github.com/san-kum/loopsim/internal/dynamo"
	"github.com/san-kum/loopsim/internal/plant"
)

// Dim is the length of the augmented state vector:
//
//	[x0 x1 x2 x3 | i1 d1 | i2 d2]
const Dim = plant.StateDim + 2*2

// State is the augmented state with named parts.
type State struct {
	Plant [plant.StateDim]float64
	Loops [2]control.LoopState
}

// Encode flattens s into the layout used by the solvers.
func (s State) Encode() dynamo.State {
	x := make(dynamo.State, Dim)
	copy(x, s.Plant[:])
	for k, l := range s.Loops {
		x[plant.StateDim+2*k] = l.Integral
		x[plant.StateDim+2*k+1] = l.Filter
	}
	return x
}

// Decode is the inverse of Encode.
func Decode(x dynamo.State) (State, error) {
	if len(x) != Dim {
		return State{}, fmt.Errorf("%w: augmented state has %d entries, want %d", dynamo.ErrDimensionMismatch, len(x), Dim)
	}
	return decode(x), nil
}

func decode(x dynamo.State) State {
	var s State
	copy(s.Plant[:], x[:plant.StateDim])
	for k := range s.Loops {
		s.Loops[k] = control.LoopState{
			Integral: x[plant.StateDim+2*k],
			Filter:   x[plant.StateDim+2*k+1],
		}
	}
	return s
}
