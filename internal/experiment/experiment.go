package experiment

import (
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/loopsim/internal/analysis"
	"github.com/san-kum/loopsim/internal/config"
	"github.com/san-kum/loopsim/internal/metrics"
	"github.com/san-kum/loopsim/internal/sim"
	"go.uber.org/zap"
)

// Result is everything a finished (or failed) run produced. Trajectory is
// never nil after Run returns; it is partial when Err is set.
type Result struct {
	Trajectory *sim.Trajectory
	Metrics    map[string]float64
	// Responses holds the step response of each output to its own setpoint
	// switch, or nil where the switch lies outside the horizon.
	Responses [2]*analysis.Response
	Elapsed   time.Duration
	Err       error
}

type Experiment struct {
	cfg       *config.Config
	simulator *sim.Simulator
	metrics   []metrics.Metric
	logger    *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) *Experiment {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Experiment{
		cfg:    cfg,
		logger: logger,
	}
}

// Setup validates the configuration and builds the simulator.
func (e *Experiment) Setup() error {
	p, err := e.cfg.Params()
	if err != nil {
		return err
	}
	s, err := sim.New(p, sim.WithLogger(e.logger.Named("sim")))
	if err != nil {
		return err
	}
	e.simulator = s
	e.metrics = metrics.Default()
	return nil
}

// Run executes the simulation. Integration failures are reported in
// Result.Err with the partial trajectory; the returned error is only set
// when there was nothing to run.
func (e *Experiment) Run() (*Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	start := time.Now()
	tr, err := e.simulator.Run()
	res := &Result{
		Trajectory: tr,
		Elapsed:    time.Since(start),
		Err:        err,
	}
	if err != nil && !sim.IsFailure(err) {
		return nil, err
	}

	res.Metrics = metrics.Evaluate(e.simulator.System(), tr, e.metrics...)

	refs := e.simulator.Params().References
	for k, ref := range refs {
		r, rerr := analysis.StepInfo(tr.Times, tr.Output(k), ref.SwitchTime, ref.Before, ref.After)
		switch {
		case rerr == nil:
			res.Responses[k] = &r
		case errors.Is(rerr, analysis.ErrNoStep), errors.Is(rerr, analysis.ErrNoSamples):
		default:
			return nil, rerr
		}
	}

	e.logger.Info("run finished",
		zap.String("name", e.cfg.Name),
		zap.Int("samples", tr.Len()),
		zap.Bool("complete", tr.Complete),
		zap.Duration("elapsed", res.Elapsed),
		zap.Error(err),
	)
	return res, nil
}
