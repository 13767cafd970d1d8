package sim

import (
	"github.com/san-kum/loopsim/internal/closedloop"
	"github.com/san-kum/loopsim/internal/dynamo"
)

// Extract maps each sampled state to the two measured outputs.
func Extract(sys *closedloop.System, states []dynamo.State) [][2]float64 {
	out := make([][2]float64, len(states))
	for i, s := range states {
		out[i] = sys.Measure(s)
	}
	return out
}

// SampleTimes returns n evenly spaced times from t0 to t1. The last one is
// exactly t1.
func SampleTimes(t0, t1 float64, n int) []float64 {
	out := make([]float64, n)
	step := (t1 - t0) / float64(n-1)
	for i := range out {
		out[i] = t0 + float64(i)*step
	}
	out[n-1] = t1
	return out
}
