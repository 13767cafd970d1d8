package sim_test

import (
	"github.com/san-kum/loopsim/internal/control"
	"github.com/san-kum/loopsim/internal/integrators"
	"github.com/san-kum/loopsim/internal/reference"
	"github.com/san-kum/loopsim/internal/sim"
)

// tankParams is the two-tank level/temperature process with both loops
// active, switching the level setpoint at t=100 and the temperature
// setpoint at t=500.
func tankParams() sim.Params {
	return sim.Params{
		A: [][]float64{
			{-0.0499, 0.0499, 0, 0},
			{0.0499, -0.0667, 0, 0},
			{0, 0, -0.0251, 0},
			{0, 0, 0.0335, -0.0335},
		},
		B: []float64{0.00510, 0, 0.0377, 0},
		C: [2][]float64{{0, 2, 0, 0}, {0, 0, 0, 0.1}},
		Loops: control.Bank{
			{Kp: 2.5982, Ki: 0.0332, Kd: 29.0047, Tau: 1e-3},
			{Kp: 13.7632, Ki: 0.2754, Kd: 153.4397, Tau: 1e-3},
		},
		References: reference.Pair{
			{SwitchTime: 100, Before: 1.519, After: 1.6},
			{SwitchTime: 500, Before: 45, After: 48},
		},
		TStart:       0,
		TEnd:         600,
		Samples:      6001,
		InitialPlant: []float64{0, 0.7595, 0, 450},
		Solver:       integrators.DefaultOptions(),
	}
}

func last(v []float64) float64 { return v[len(v)-1] }
