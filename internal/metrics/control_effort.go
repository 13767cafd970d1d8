package metrics

import "math"

type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(s Sample) {
	c.sum += math.Abs(s.U)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// PeakEffort is the largest |u| seen.
type PeakEffort struct {
	peak float64
}

func NewPeakEffort() *PeakEffort { return &PeakEffort{} }

func (p *PeakEffort) Name() string { return "peak_effort" }

func (p *PeakEffort) Observe(s Sample) {
	p.peak = math.Max(p.peak, math.Abs(s.U))
}

func (p *PeakEffort) Value() float64 { return p.peak }

func (p *PeakEffort) Reset() { p.peak = 0 }
