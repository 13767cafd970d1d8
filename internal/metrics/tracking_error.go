package metrics

import (
	"fmt"
	"math"
)

// errorIntegral integrates f(r_k - y_k) over time with the trapezoid rule.
type errorIntegral struct {
	name  string
	loop  int
	f     func(float64) float64
	sum   float64
	prevT float64
	prevV float64
	seen  bool
}

func (e *errorIntegral) Name() string { return e.name }

func (e *errorIntegral) Observe(s Sample) {
	v := e.f(s.R[e.loop] - s.Y[e.loop])
	if e.seen {
		e.sum += 0.5 * (v + e.prevV) * (s.T - e.prevT)
	}
	e.prevT, e.prevV, e.seen = s.T, v, true
}

func (e *errorIntegral) Value() float64 { return e.sum }

func (e *errorIntegral) Reset() {
	e.sum, e.prevT, e.prevV, e.seen = 0, 0, 0, false
}

// NewAbsError is the integral of absolute tracking error of one loop.
func NewAbsError(loop int) Metric {
	return &errorIntegral{
		name: fmt.Sprintf("iae_%d", loop+1),
		loop: loop,
		f:    math.Abs,
	}
}

// NewSquaredError is the integral of squared tracking error of one loop.
func NewSquaredError(loop int) Metric {
	return &errorIntegral{
		name: fmt.Sprintf("ise_%d", loop+1),
		loop: loop,
		f:    func(e float64) float64 { return e * e },
	}
}
