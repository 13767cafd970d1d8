package control

import (
	"fmt"
	"math"

	"github.com/san-kum/loopsim/internal/dynamo"
)

type PID struct {
	Kp  float64
	Ki  float64
	Kd  float64
	Tau float64
}

// LoopState is the internal state of one PID loop.
type LoopState struct {
	Integral float64
	Filter   float64
}

func (p PID) Validate() error {
	names := [...]string{"kp", "ki", "kd", "tau"}
	for i, v := range [...]float64{p.Kp, p.Ki, p.Kd, p.Tau} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", dynamo.ErrConfig, names[i], v)
		}
	}
	if p.Tau <= 0 {
		return fmt.Errorf("%w: tau must be positive, got %v", dynamo.ErrConfig, p.Tau)
	}
	return nil
}

// Output is the control effort for tracking error e.
func (p PID) Output(e float64, s LoopState) float64 {
	return p.Kp*e + p.Ki*s.Integral + p.Kd*s.Filter
}

// Rates returns the time derivative of the loop state given the tracking
// error and the analytic derivative of the measured output.
func (p PID) Rates(e, dydt float64, s LoopState) LoopState {
	return LoopState{
		Integral: e,
		Filter:   (-s.Filter - dydt) / p.Tau,
	}
}

// GetParams returns the gains by name
func (p PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp":  p.Kp,
		"Ki":  p.Ki,
		"Kd":  p.Kd,
		"Tau": p.Tau,
	}
}

// Bank is two PID loops driving one actuator. Their outputs are summed
// with no arbitration between loops.
type Bank [2]PID

// Output returns the summed effort and each loop's contribution.
func (b Bank) Output(e [2]float64, s [2]LoopState) (float64, [2]float64) {
	var parts [2]float64
	for k := range b {
		parts[k] = b[k].Output(e[k], s[k])
	}
	return parts[0] + parts[1], parts
}

func (b Bank) Validate() error {
	for k, p := range b {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("loop %d: %w", k+1, err)
		}
	}
	return nil
}
