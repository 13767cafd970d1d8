// Package closedloop couples the plant with both PID loops into one
// augmented ODE and maps its trajectory back to measured outputs.
package closedloop

import (
	"github.com/san-kum/loopsim/internal/control"
	"github.com/san-kum/loopsim/internal/dynamo"
	"github.com/san-kum/loopsim/internal/plant"
	"github.com/san-kum/loopsim/internal/reference"
)

// System is the right-hand side of the augmented closed-loop ODE. It holds
// no mutable state: Derive may be called any number of times, in any time
// order, and returns identical results for identical arguments.
type System struct {
	plant *plant.Model
	bank  control.Bank
	refs  reference.Pair

	held   bool
	setpts [2]float64
}

func New(p *plant.Model, bank control.Bank, refs reference.Pair) *System {
	return &System{plant: p, bank: bank, refs: refs}
}

// Hold returns a copy of the system whose setpoints are frozen at their
// value at time t. Integrating one reference segment with a held system
// keeps the solver's final stage on the segment's own setpoint.
func (s *System) Hold(t float64) *System {
	h := *s
	h.held = true
	h.setpts = s.refs.At(t)
	return &h
}

func (s *System) StateDim() int { return Dim }

func (s *System) Plant() *plant.Model { return s.plant }

func (s *System) References(t float64) [2]float64 {
	if s.held {
		return s.setpts
	}
	return s.refs.At(t)
}

func (s *System) Derive(x dynamo.State, t float64) dynamo.State {
	st := decode(x)
	r := s.References(t)

	var e [2]float64
	for k := range e {
		e[k] = r[k] - s.plant.Output(k, st.Plant)
	}
	u, _ := s.bank.Output(e, st.Loops)

	var d State
	d.Plant = s.plant.Derivative(st.Plant, u)
	for k := range e {
		dydt := s.plant.OutputRate(k, d.Plant)
		d.Loops[k] = s.bank[k].Rates(e[k], dydt, st.Loops[k])
	}
	return d.Encode()
}

// Actuation returns the summed control effort at (x, t) and the
// contribution of each loop.
func (s *System) Actuation(x dynamo.State, t float64) (float64, [2]float64) {
	st := decode(x)
	r := s.References(t)

	var e [2]float64
	for k := range e {
		e[k] = r[k] - s.plant.Output(k, st.Plant)
	}
	return s.bank.Output(e, st.Loops)
}

// Measure maps an augmented state to both measured outputs.
func (s *System) Measure(x dynamo.State) [2]float64 {
	st := decode(x)
	return [2]float64{
		s.plant.Output(0, st.Plant),
		s.plant.Output(1, st.Plant),
	}
}
