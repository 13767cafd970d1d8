package metrics

import (
	"github.com/san-kum/loopsim/internal/closedloop"
	"github.com/san-kum/loopsim/internal/dynamo"
	"github.com/san-kum/loopsim/internal/sim"
)

// Sample is one point of a trajectory as the metrics see it.
type Sample struct {
	T float64
	X dynamo.State
	Y [2]float64
	R [2]float64
	U float64
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Default is the set reported after every run.
func Default() []Metric {
	return []Metric{
		NewAbsError(0), NewAbsError(1),
		NewSquaredError(0), NewSquaredError(1),
		NewControlEffort(),
		NewPeakEffort(),
		NewStability(1e6),
	}
}

// Evaluate resets ms, feeds them every sample of tr and returns their
// values by name. sys supplies the references and the actuation.
func Evaluate(sys *closedloop.System, tr *sim.Trajectory, ms ...Metric) map[string]float64 {
	for _, m := range ms {
		m.Reset()
	}
	for i, x := range tr.States {
		t := tr.Times[i]
		u, _ := sys.Actuation(x, t)
		s := Sample{
			T: t,
			X: x,
			Y: sys.Measure(x),
			R: sys.References(t),
			U: u,
		}
		for _, m := range ms {
			m.Observe(s)
		}
	}

	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
