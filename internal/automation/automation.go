package automation

import (
	"fmt"
	"os"
	"sort"

	"github.com/san-kum/loopsim/internal/config"
	"github.com/san-kum/loopsim/internal/experiment"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a preset (default "default"), optionally reads a
// config file over it, then applies Set.
type ScenarioStep struct {
	Name   string             `yaml:"name"`
	Preset string             `yaml:"preset"`
	Config string             `yaml:"config"`
	Set    map[string]float64 `yaml:"set"`
}

type StepResult struct {
	Name   string
	Config *config.Config
	*experiment.Result
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	return &scenario, nil
}

// Setters are the parameters a scenario step or a sweep may change.
var Setters = map[string]func(c *config.Config, v float64){
	"switch1": func(c *config.Config, v float64) { c.Loops[0].Reference.SwitchTime = v },
	"switch2": func(c *config.Config, v float64) { c.Loops[1].Reference.SwitchTime = v },
	"before1": func(c *config.Config, v float64) { c.Loops[0].Reference.Before = v },
	"before2": func(c *config.Config, v float64) { c.Loops[1].Reference.Before = v },
	"after1":  func(c *config.Config, v float64) { c.Loops[0].Reference.After = v },
	"after2":  func(c *config.Config, v float64) { c.Loops[1].Reference.After = v },
	"tau1":    func(c *config.Config, v float64) { c.Loops[0].Tau = v },
	"tau2":    func(c *config.Config, v float64) { c.Loops[1].Tau = v },
	"t_end":   func(c *config.Config, v float64) { c.Horizon.End = v },
	"samples": func(c *config.Config, v float64) { c.Horizon.Samples = int(v) },
	"rtol":    func(c *config.Config, v float64) { c.Solver.RelTol = v },
	"atol":    func(c *config.Config, v float64) { c.Solver.AbsTol = v },
}

func ParamNames() []string {
	names := make([]string, 0, len(Setters))
	for name := range Setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func apply(cfg *config.Config, set map[string]float64) error {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		setter, ok := Setters[name]
		if !ok {
			return fmt.Errorf("unknown parameter %q (available: %v)", name, ParamNames())
		}
		setter(cfg, set[name])
	}
	return nil
}

func (s ScenarioStep) build() (*config.Config, error) {
	preset := s.Preset
	if preset == "" {
		preset = "default"
	}
	cfg := config.GetPreset(preset)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s", preset)
	}
	if s.Config != "" {
		var err error
		if cfg, err = config.LoadOver(s.Config, cfg); err != nil {
			return nil, err
		}
	}
	if err := apply(cfg, s.Set); err != nil {
		return nil, err
	}
	if s.Name != "" {
		cfg.Name = s.Name
	}
	return cfg, nil
}

func runOne(cfg *config.Config, logger *zap.Logger) (*experiment.Result, error) {
	exp := experiment.New(cfg, logger)
	if err := exp.Setup(); err != nil {
		return nil, err
	}
	return exp.Run()
}

// RunScenario executes all steps in order. A step whose configuration is
// invalid stops the scenario; a step whose integration fails is recorded
// with its Err set and the scenario continues.
func RunScenario(scenario *Scenario, logger *zap.Logger) ([]StepResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg, err := step.build()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		logger.Info("scenario step", zap.Int("step", i+1), zap.Int("of", len(scenario.Steps)), zap.String("name", cfg.Name))

		res, err := runOne(cfg, logger)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		results = append(results, StepResult{Name: cfg.Name, Config: cfg, Result: res})
	}

	return results, nil
}

// ParameterSweep runs the same base configuration across evenly spaced
// values of one parameter.
type ParameterSweep struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
}

type SweepResult struct {
	ParamValue float64
	Final      [2]float64
	Metrics    map[string]float64
	Err        error
}

func RunSweep(sweep *ParameterSweep, logger *zap.Logger) ([]SweepResult, error) {
	setter, ok := Setters[sweep.ParamName]
	if !ok {
		return nil, fmt.Errorf("unknown parameter %q (available: %v)", sweep.ParamName, ParamNames())
	}
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("sweep needs at least one step, got %d", sweep.NumSteps)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	paramStep := 0.0
	if sweep.NumSteps > 1 {
		paramStep = (sweep.ParamMax - sweep.ParamMin) / float64(sweep.NumSteps-1)
	}

	results := make([]SweepResult, 0, sweep.NumSteps)
	for i := 0; i < sweep.NumSteps; i++ {
		paramVal := sweep.ParamMin + float64(i)*paramStep
		cfg := sweep.Base.Clone()
		setter(cfg, paramVal)

		res, err := runOne(cfg, logger)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.ParamName, paramVal, err)
		}

		r := SweepResult{ParamValue: paramVal, Metrics: res.Metrics, Err: res.Err}
		if n := res.Trajectory.Len(); n > 0 {
			r.Final = res.Trajectory.Outputs[n-1]
		}
		results = append(results, r)

		logger.Debug("sweep point", zap.Int("point", i+1), zap.String("param", sweep.ParamName), zap.Float64("value", paramVal))
	}

	return results, nil
}
