package analysis

import (
	"errors"
	"math"
)

// SettlingBand is the tolerance around the final value, as a fraction of the
// step size.
const SettlingBand = 0.02

var (
	ErrNoStep    = errors.New("analysis: setpoint does not change")
	ErrNoSamples = errors.New("analysis: no samples after the switch")
)

type Response struct {
	// RiseTime is the 10 % to 90 % time, NaN if 90 % is never reached.
	RiseTime float64
	// Overshoot past the new setpoint, in percent of the step.
	Overshoot float64
	// SettlingTime is measured from the switch; NaN when the output is
	// still outside the band at the last sample.
	SettlingTime float64
	Settled      bool
	FinalError   float64
}

// StepInfo measures how y responds to a setpoint step from before to after
// at switchTime. Only samples at or after switchTime are used.
func StepInfo(times, y []float64, switchTime, before, after float64) (Response, error) {
	delta := after - before
	if delta == 0 {
		return Response{}, ErrNoStep
	}

	start := len(times)
	for i, t := range times {
		if t >= switchTime {
			start = i
			break
		}
	}
	if start == len(times) {
		return Response{}, ErrNoSamples
	}

	var r Response
	t10, t90 := math.NaN(), math.NaN()
	peak := math.Inf(-1)
	lastOut := -1
	for i := start; i < len(times); i++ {
		p := (y[i] - before) / delta
		if math.IsNaN(t10) && p >= 0.1 {
			t10 = times[i]
		}
		if math.IsNaN(t90) && p >= 0.9 {
			t90 = times[i]
		}
		peak = math.Max(peak, p)
		if !(math.Abs(y[i]-after) <= SettlingBand*math.Abs(delta)) {
			lastOut = i
		}
	}

	r.RiseTime = t90 - t10
	r.Overshoot = math.Max(0, peak-1) * 100
	r.FinalError = after - y[len(y)-1]

	switch {
	case lastOut == -1:
		r.SettlingTime, r.Settled = 0, true
	case lastOut == len(times)-1:
		r.SettlingTime = math.NaN()
	default:
		r.SettlingTime, r.Settled = times[lastOut+1]-switchTime, true
	}
	return r, nil
}
