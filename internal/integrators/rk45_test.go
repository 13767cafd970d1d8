package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/loopsim/internal/dynamo"
)

type harmonicOscillator struct{}

func (h *harmonicOscillator) StateDim() int { return 2 }

func (h *harmonicOscillator) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

type decay struct{ rate float64 }

func (d decay) StateDim() int { return 1 }

func (d decay) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{-d.rate * x[0]}
}

type still struct{}

func (still) StateDim() int { return 3 }

func (still) Derive(x dynamo.State, t float64) dynamo.State { return make(dynamo.State, 3) }

func linspace(t0, t1 float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = t0 + float64(i)*(t1-t0)/float64(n-1)
	}
	out[n-1] = t1
	return out
}

func tight() Options {
	opts := DefaultOptions()
	opts.RelTol = 1e-8
	opts.AbsTol = 1e-10
	return opts
}

func TestRK45_HarmonicDenseOutput(t *testing.T) {
	integrator := NewRK45(tight())
	query := linspace(0, 10, 41)

	sol, err := integrator.Solve(&harmonicOscillator{}, dynamo.State{1, 0}, 0, 10, query)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !sol.Complete {
		t.Fatal("solution not complete")
	}
	if len(sol.States) != len(query) {
		t.Fatalf("got %d samples, want %d", len(sol.States), len(query))
	}

	for i, q := range query {
		if sol.Times[i] != q {
			t.Errorf("time[%d] = %v, want %v", i, sol.Times[i], q)
		}
		if d := math.Abs(sol.States[i][0] - math.Cos(q)); d > 1e-5 {
			t.Errorf("x(%v) error %e", q, d)
		}
		if d := math.Abs(sol.States[i][1] + math.Sin(q)); d > 1e-5 {
			t.Errorf("v(%v) error %e", q, d)
		}
	}
}

func TestRK45_DecayDefaultTolerance(t *testing.T) {
	integrator := NewRK45(DefaultOptions())
	query := linspace(0, 5, 51)

	sol, err := integrator.Solve(decay{rate: 1}, dynamo.State{1}, 0, 5, query)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for i, q := range query {
		if d := math.Abs(sol.States[i][0] - math.Exp(-q)); d > 2e-3 {
			t.Errorf("y(%v) = %v, want %v", q, sol.States[i][0], math.Exp(-q))
		}
	}
}

func TestRK45_Endpoints(t *testing.T) {
	integrator := NewRK45(DefaultOptions())
	x0 := dynamo.State{2}

	sol, err := integrator.Solve(decay{rate: 0.3}, x0, 1.5, 4.25, []float64{1.5, 4.25})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if sol.Times[0] != 1.5 || sol.Times[1] != 4.25 {
		t.Errorf("times = %v", sol.Times)
	}
	if sol.States[0][0] != 2 {
		t.Errorf("first sample = %v, want initial state", sol.States[0])
	}
	if sol.States[1][0] != sol.Final[0] {
		t.Errorf("last sample %v differs from final state %v", sol.States[1], sol.Final)
	}

	sol.States[0][0] = 99
	if x0[0] != 2 {
		t.Error("Solve aliased the initial state")
	}
}

func TestRK45_QueriesDoNotAffectSteps(t *testing.T) {
	integrator := NewRK45(DefaultOptions())
	dyn := &harmonicOscillator{}
	x0 := dynamo.State{1, 0}

	sparse, err := integrator.Solve(dyn, x0, 0, 20, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	dense, err := integrator.Solve(dyn, x0, 0, 20, linspace(0, 20, 2001))
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if sparse.Stats != dense.Stats {
		t.Errorf("step statistics differ: %+v vs %+v", sparse.Stats, dense.Stats)
	}
	for i := range sparse.Final {
		if sparse.Final[i] != dense.Final[i] {
			t.Errorf("final[%d] differs: %v vs %v", i, sparse.Final[i], dense.Final[i])
		}
	}
	if sparse.Stats.Accepted >= 2000 {
		t.Errorf("solver took %d steps, expected far fewer than the query count", sparse.Stats.Accepted)
	}
}

func TestRK45_Deterministic(t *testing.T) {
	integrator := NewRK45(DefaultOptions())
	query := linspace(0, 30, 301)

	a, err := integrator.Solve(&harmonicOscillator{}, dynamo.State{1, 0.5}, 0, 30, query)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	b, err := integrator.Solve(&harmonicOscillator{}, dynamo.State{1, 0.5}, 0, 30, query)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for i := range a.States {
		for j := range a.States[i] {
			if math.Float64bits(a.States[i][j]) != math.Float64bits(b.States[i][j]) {
				t.Fatalf("sample %d component %d differs", i, j)
			}
		}
	}
}

func TestRK45_StillSystem(t *testing.T) {
	integrator := NewRK45(DefaultOptions())

	sol, err := integrator.Solve(still{}, make(dynamo.State, 3), 0, 600, linspace(0, 600, 61))
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for i, s := range sol.States {
		for j, v := range s {
			if v != 0 {
				t.Errorf("sample %d component %d = %v, want 0", i, j, v)
			}
		}
	}
}

func TestRK45_MaxStep(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxStep = 0.5
	integrator := NewRK45(opts)

	sol, err := integrator.Solve(decay{rate: 0.01}, dynamo.State{1}, 0, 100, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if sol.Stats.Accepted < 200 {
		t.Errorf("accepted %d steps, expected at least 200 with max step 0.5", sol.Stats.Accepted)
	}
}

func TestRK45_StepBudget(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxSteps = 5
	integrator := NewRK45(opts)

	sol, err := integrator.Solve(&harmonicOscillator{}, dynamo.State{1, 0}, 0, 1000, linspace(0, 1000, 11))
	if !errors.Is(err, dynamo.ErrIntegrationFailure) {
		t.Fatalf("expected ErrIntegrationFailure, got %v", err)
	}
	if !errors.Is(err, dynamo.ErrStepBudget) {
		t.Errorf("expected ErrStepBudget cause, got %v", err)
	}
	if errors.Is(err, dynamo.ErrDivergence) {
		t.Error("budget failure reported as divergence")
	}

	var simErr *dynamo.SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected *SimulationError, got %T", err)
	}
	if simErr.Time >= 1000 {
		t.Errorf("failure time %v should be before the end", simErr.Time)
	}

	if sol == nil || sol.Complete {
		t.Fatal("expected an incomplete partial solution")
	}
	if len(sol.States) >= 11 {
		t.Errorf("partial solution has %d samples, want fewer than 11", len(sol.States))
	}
}

func TestRK45_IntervalShorterThanMinimumStep(t *testing.T) {
	integrator := NewRK45(DefaultOptions())

	for _, t0 := range []float64{600 - 1e-12, 100, math.Nextafter(600, 0)} {
		t1 := 600.0
		if t0 == 100 {
			t1 = 100 + 1e-13
		}
		sol, err := integrator.Solve(decay{rate: 0.1}, dynamo.State{2}, t0, t1, []float64{t0, t1})
		if err != nil {
			t.Fatalf("[%v, %v]: %v", t0, t1, err)
		}
		if !sol.Complete || len(sol.States) != 2 {
			t.Fatalf("[%v, %v]: complete=%v samples=%d", t0, t1, sol.Complete, len(sol.States))
		}
		if sol.Stats.Accepted != 1 {
			t.Errorf("[%v, %v]: accepted %d steps, want 1", t0, t1, sol.Stats.Accepted)
		}
		if math.Abs(sol.Final[0]-2) > 1e-9 {
			t.Errorf("[%v, %v]: final = %v, want ~2", t0, t1, sol.Final[0])
		}
	}
}

type growth struct{}

func (growth) StateDim() int { return 1 }

func (growth) Derive(x dynamo.State, t float64) dynamo.State { return dynamo.State{x[0]} }

func TestRK45_Divergence(t *testing.T) {
	integrator := NewRK45(DefaultOptions())

	sol, err := integrator.Solve(growth{}, dynamo.State{1}, 0, 1000, nil)
	if !errors.Is(err, dynamo.ErrDivergence) {
		t.Fatalf("expected ErrDivergence, got %v", err)
	}
	if errors.Is(err, dynamo.ErrIntegrationFailure) {
		t.Error("divergence reported as integration failure")
	}
	if sol.Complete {
		t.Error("diverged solution marked complete")
	}
	if !sol.Final.IsValid() || sol.Final[0] < 1e300 {
		t.Errorf("last finite state = %v, expected a huge finite value", sol.Final)
	}
}

func TestRK45_InvalidArguments(t *testing.T) {
	dyn := &harmonicOscillator{}

	tests := []struct {
		name  string
		opts  Options
		x0    dynamo.State
		t0    float64
		t1    float64
		query []float64
		want  error
	}{
		{"empty interval", DefaultOptions(), dynamo.State{1, 0}, 1, 1, nil, dynamo.ErrConfig},
		{"reversed interval", DefaultOptions(), dynamo.State{1, 0}, 2, 1, nil, dynamo.ErrConfig},
		{"query before start", DefaultOptions(), dynamo.State{1, 0}, 0, 1, []float64{-0.1}, dynamo.ErrConfig},
		{"query after end", DefaultOptions(), dynamo.State{1, 0}, 0, 1, []float64{1.1}, dynamo.ErrConfig},
		{"descending queries", DefaultOptions(), dynamo.State{1, 0}, 0, 1, []float64{0.5, 0.2}, dynamo.ErrConfig},
		{"zero rtol", Options{AbsTol: 1, MaxSteps: 1}, dynamo.State{1, 0}, 0, 1, nil, dynamo.ErrConfig},
		{"zero budget", Options{RelTol: 1, AbsTol: 1}, dynamo.State{1, 0}, 0, 1, nil, dynamo.ErrConfig},
		{"wrong dimension", DefaultOptions(), dynamo.State{1}, 0, 1, nil, dynamo.ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRK45(tt.opts).Solve(dyn, tt.x0, tt.t0, tt.t1, tt.query)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestStatsAdd(t *testing.T) {
	s := Stats{Accepted: 1, Rejected: 2, Evaluations: 3}
	s.Add(Stats{Accepted: 10, Rejected: 20, Evaluations: 30})
	if s != (Stats{Accepted: 11, Rejected: 22, Evaluations: 33}) {
		t.Errorf("Add = %+v", s)
	}
}
