// Package reference generates piecewise-constant loop setpoints.
package reference

import "sort"

// Step is a setpoint with a single jump at SwitchTime.
type Step struct {
	SwitchTime float64
	Before     float64
	After      float64
}

// Value returns Before for t < SwitchTime and After otherwise.
func (s Step) Value(t float64) float64 {
	if t < s.SwitchTime {
		return s.Before
	}
	return s.After
}

// Pair holds the schedules of both loops, indexed by loop.
type Pair [2]Step

func (p Pair) At(t float64) [2]float64 {
	return [2]float64{p[0].Value(t), p[1].Value(t)}
}

// Breakpoints returns the switch times strictly inside (t0, t1), sorted and
// without duplicates.
func (p Pair) Breakpoints(t0, t1 float64) []float64 {
	out := make([]float64, 0, len(p))
	for _, s := range p {
		if s.SwitchTime > t0 && s.SwitchTime < t1 {
			out = append(out, s.SwitchTime)
		}
	}
	sort.Float64s(out)

	uniq := out[:0]
	for i, v := range out {
		if i == 0 || v != out[i-1] {
			uniq = append(uniq, v)
		}
	}
	return uniq
}
