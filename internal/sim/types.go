package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/loopsim/internal/control"
	"github.com/san-kum/loopsim/internal/dynamo"
	"github.com/san-kum/loopsim/internal/integrators"
	"github.com/san-kum/loopsim/internal/plant"
	"github.com/san-kum/loopsim/internal/reference"
	"go.uber.org/multierr"
)

// Params is the complete, immutable description of one run.
type Params struct {
	A [][]float64
	B []float64
	C [plant.NumOutputs][]float64

	Loops      control.Bank
	References reference.Pair

	TStart  float64
	TEnd    float64
	Samples int

	InitialPlant []float64
	// InitialLoops defaults to zero integrator and filter states.
	InitialLoops [2]control.LoopState

	Solver integrators.Options
}

// Validate reports every problem with p at once. Each one wraps
// dynamo.ErrConfig.
func (p Params) Validate() error {
	var err error

	if _, perr := plant.New(p.A, p.B, p.C); perr != nil {
		err = multierr.Append(err, fmt.Errorf("%w: plant: %w", dynamo.ErrConfig, perr))
	}
	if berr := p.Loops.Validate(); berr != nil {
		err = multierr.Append(err, berr)
	}
	for k, r := range p.References {
		if !finite(r.SwitchTime, r.Before, r.After) {
			err = multierr.Append(err, fmt.Errorf("%w: reference %d must be finite", dynamo.ErrConfig, k+1))
		}
	}
	if !finite(p.TStart, p.TEnd) || !(p.TEnd > p.TStart) {
		err = multierr.Append(err, fmt.Errorf("%w: end time %v must be after start time %v", dynamo.ErrConfig, p.TEnd, p.TStart))
	}
	if p.Samples < 2 {
		err = multierr.Append(err, fmt.Errorf("%w: sample count must be at least 2, got %d", dynamo.ErrConfig, p.Samples))
	}
	if len(p.InitialPlant) != plant.StateDim {
		err = multierr.Append(err, fmt.Errorf("%w: initial plant state has %d entries, want %d: %w",
			dynamo.ErrConfig, len(p.InitialPlant), plant.StateDim, dynamo.ErrDimensionMismatch))
	} else if !finite(p.InitialPlant...) {
		err = multierr.Append(err, fmt.Errorf("%w: initial plant state must be finite", dynamo.ErrConfig))
	}
	if serr := p.Solver.Validate(); serr != nil {
		err = multierr.Append(err, serr)
	}

	return err
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Trajectory is the sampled result of a run. Times are strictly increasing;
// a complete trajectory starts at TStart, ends at TEnd and has exactly
// Samples entries.
type Trajectory struct {
	Times    []float64
	States   []dynamo.State
	Outputs  [][2]float64
	Stats    integrators.Stats
	Segments int
	Complete bool
}

func (tr *Trajectory) Len() int { return len(tr.Times) }

// Output returns the series of measured channel k.
func (tr *Trajectory) Output(k int) []float64 {
	out := make([]float64, len(tr.Outputs))
	for i, y := range tr.Outputs {
		out[i] = y[k]
	}
	return out
}

// Component returns the series of augmented state component i.
func (tr *Trajectory) Component(i int) []float64 {
	out := make([]float64, len(tr.States))
	for j, s := range tr.States {
		out[j] = s[i]
	}
	return out
}
