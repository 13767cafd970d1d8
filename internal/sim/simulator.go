package sim

import (
	"errors"
	"fmt"

	"github.com/san-kum/loopsim/internal/closedloop"
	"github.com/san-kum/loopsim/internal/dynamo"
	"github.com/san-kum/loopsim/internal/integrators"
	"github.com/san-kum/loopsim/internal/plant"
	"go.uber.org/zap"
)

type Simulator struct {
	params Params
	system *closedloop.System
	solver *integrators.RK45
	logger *zap.Logger
}

type Option func(*Simulator)

func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

// New validates p and prepares a simulator. Invalid parameters fail here,
// before any integration, with an error wrapping dynamo.ErrConfig.
func New(p Params, opts ...Option) (*Simulator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	model, err := plant.New(p.A, p.B, p.C)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dynamo.ErrConfig, err)
	}
	p.InitialPlant = append([]float64(nil), p.InitialPlant...)

	s := &Simulator{
		params: p,
		system: closedloop.New(model, p.Loops, p.References),
		solver: integrators.NewRK45(p.Solver),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Simulator) System() *closedloop.System { return s.system }

func (s *Simulator) Params() Params { return s.params }

// InitialState is the augmented state at TStart.
func (s *Simulator) InitialState() dynamo.State {
	var st closedloop.State
	copy(st.Plant[:], s.params.InitialPlant)
	st.Loops = s.params.InitialLoops
	return st.Encode()
}

// Run integrates the closed loop over the configured horizon.
//
// The horizon is split at every reference switch inside it and each piece
// is integrated on its own with the setpoints of that piece, so no step
// straddles a setpoint jump. On failure Run returns the samples produced so
// far in a trajectory with Complete == false, together with the error.
func (s *Simulator) Run() (*Trajectory, error) {
	p := s.params
	times := SampleTimes(p.TStart, p.TEnd, p.Samples)

	bounds := []float64{p.TStart}
	bounds = append(bounds, p.References.Breakpoints(p.TStart, p.TEnd)...)
	bounds = append(bounds, p.TEnd)

	tr := &Trajectory{
		Times:  make([]float64, 0, len(times)),
		States: make([]dynamo.State, 0, len(times)),
	}

	x := s.InitialState()
	qi := 0
	for seg := 0; seg+1 < len(bounds); seg++ {
		a, b := bounds[seg], bounds[seg+1]
		lastSeg := seg+2 == len(bounds)

		start := qi
		for qi < len(times) && (times[qi] < b || (lastSeg && times[qi] == b)) {
			qi++
		}
		query := times[start:qi]

		s.logger.Debug("integrating segment",
			zap.Int("segment", seg),
			zap.Float64("from", a),
			zap.Float64("to", b),
			zap.Int("samples", len(query)),
		)

		sol, err := s.solver.Solve(s.system.Hold(a), x, a, b, query)
		if sol != nil {
			tr.Times = append(tr.Times, sol.Times...)
			tr.States = append(tr.States, sol.States...)
			tr.Stats.Add(sol.Stats)
		}
		tr.Segments++
		if err != nil {
			tr.Outputs = Extract(s.system, tr.States)
			s.logger.Warn("integration stopped",
				zap.Int("segment", seg),
				zap.Int("samples", len(tr.Times)),
				zap.Error(err),
			)
			return tr, err
		}
		x = sol.Final
	}

	tr.Outputs = Extract(s.system, tr.States)

	for i, st := range tr.States {
		if !st.IsValid() {
			tr.Times, tr.States, tr.Outputs = tr.Times[:i], tr.States[:i], tr.Outputs[:i]
			return tr, &dynamo.SimulationError{
				Step:    tr.Stats.Accepted,
				Time:    times[i],
				State:   st.Clone(),
				Wrapped: dynamo.ErrDivergence,
			}
		}
	}

	if len(tr.Times) != p.Samples {
		return tr, fmt.Errorf("%w: produced %d of %d samples", dynamo.ErrIntegrationFailure, len(tr.Times), p.Samples)
	}

	tr.Complete = true
	s.logger.Debug("run complete",
		zap.Int("segments", tr.Segments),
		zap.Int("accepted", tr.Stats.Accepted),
		zap.Int("rejected", tr.Stats.Rejected),
		zap.Int("evaluations", tr.Stats.Evaluations),
	)
	return tr, nil
}

// IsFailure reports whether err is one of the run failure kinds.
func IsFailure(err error) bool {
	return errors.Is(err, dynamo.ErrIntegrationFailure) || errors.Is(err, dynamo.ErrDivergence)
}
