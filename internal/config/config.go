package config

import (
	"fmt"
	"os"

	"github.com/san-kum/loopsim/internal/control"
	"github.com/san-kum/loopsim/internal/dynamo"
	"github.com/san-kum/loopsim/internal/integrators"
	"github.com/san-kum/loopsim/internal/plant"
	"github.com/san-kum/loopsim/internal/reference"
	"github.com/san-kum/loopsim/internal/sim"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTStart  = 0.0
	DefaultTEnd    = 600.0
	DefaultSamples = 6001
	DefaultTau     = 1e-3
)

type Config struct {
	Name    string        `yaml:"name,omitempty"`
	Plant   PlantConfig   `yaml:"plant"`
	Loops   []LoopConfig  `yaml:"loops"`
	Horizon HorizonConfig `yaml:"horizon"`
	Initial InitialConfig `yaml:"initial"`
	Solver  SolverConfig  `yaml:"solver"`
}

// PlantConfig holds the full input matrix B; only column InputColumn drives
// the plant.
type PlantConfig struct {
	A           [][]float64 `yaml:"a"`
	B           [][]float64 `yaml:"b"`
	InputColumn int         `yaml:"input_column"`
	C           [][]float64 `yaml:"c"`
}

type LoopConfig struct {
	Kp        float64         `yaml:"kp"`
	Ki        float64         `yaml:"ki"`
	Kd        float64         `yaml:"kd"`
	Tau       float64         `yaml:"tau"`
	Reference ReferenceConfig `yaml:"reference"`
}

// PID is the controller described by the loop's gains.
func (l LoopConfig) PID() control.PID {
	return control.PID{Kp: l.Kp, Ki: l.Ki, Kd: l.Kd, Tau: l.Tau}
}

type ReferenceConfig struct {
	SwitchTime float64 `yaml:"switch_time"`
	Before     float64 `yaml:"before"`
	After      float64 `yaml:"after"`
}

type HorizonConfig struct {
	Start   float64 `yaml:"start"`
	End     float64 `yaml:"end"`
	Samples int     `yaml:"samples"`
}

type InitialConfig struct {
	Plant []float64         `yaml:"plant"`
	Loops []LoopStateConfig `yaml:"loops,omitempty"`
}

type LoopStateConfig struct {
	Integral float64 `yaml:"integral"`
	Filter   float64 `yaml:"filter"`
}

type SolverConfig struct {
	RelTol      float64 `yaml:"rtol"`
	AbsTol      float64 `yaml:"atol"`
	MaxSteps    int     `yaml:"max_steps"`
	InitialStep float64 `yaml:"initial_step,omitempty"`
	MaxStep     float64 `yaml:"max_step,omitempty"`
}

// DefaultConfig is the two-tank water level and temperature process.
func DefaultConfig() *Config {
	return &Config{
		Name: "default",
		Plant: PlantConfig{
			A: [][]float64{
				{-0.0499, 0.0499, 0, 0},
				{0.0499, -0.0667, 0, 0},
				{0, 0, -0.0251, 0},
				{0, 0, 0.0335, -0.0335},
			},
			B: [][]float64{
				{0.00510, 0},
				{0, 0},
				{0.0377, 0},
				{0, 0},
			},
			C: [][]float64{
				{0, 2, 0, 0},
				{0, 0, 0, 0.1},
			},
		},
		Loops: []LoopConfig{
			{
				Kp: 2.5982, Ki: 0.0332, Kd: 29.0047, Tau: DefaultTau,
				Reference: ReferenceConfig{SwitchTime: 100, Before: 1.519, After: 1.6},
			},
			{
				Kp: 13.7632, Ki: 0.2754, Kd: 153.4397, Tau: DefaultTau,
				Reference: ReferenceConfig{SwitchTime: 500, Before: 45, After: 48},
			},
		},
		Horizon: HorizonConfig{
			Start:   DefaultTStart,
			End:     DefaultTEnd,
			Samples: DefaultSamples,
		},
		Initial: InitialConfig{
			Plant: []float64{0, 0.7595, 0, 450},
		},
		Solver: SolverConfig{
			RelTol:   integrators.DefaultRelTol,
			AbsTol:   integrators.DefaultAbsTol,
			MaxSteps: integrators.DefaultMaxSteps,
		},
	}
}

// Load reads a YAML file over the defaults. Sequences in the file replace
// the default ones whole.
func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads a YAML file over base, which is modified in place.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, base); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", dynamo.ErrConfig, path, err)
	}
	return base, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Clone() *Config {
	out := *c
	out.Plant.A = cloneMatrix(c.Plant.A)
	out.Plant.B = cloneMatrix(c.Plant.B)
	out.Plant.C = cloneMatrix(c.Plant.C)
	out.Loops = append([]LoopConfig(nil), c.Loops...)
	out.Initial.Plant = append([]float64(nil), c.Initial.Plant...)
	out.Initial.Loops = append([]LoopStateConfig(nil), c.Initial.Loops...)
	return &out
}

func cloneMatrix(m [][]float64) [][]float64 {
	if m == nil {
		return nil
	}
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	_, err := c.Params()
	return err
}

// Params converts the configuration into simulation parameters.
func (c *Config) Params() (sim.Params, error) {
	var err error

	if len(c.Loops) != 2 {
		err = multierr.Append(err, fmt.Errorf("%w: need 2 loops, got %d", dynamo.ErrConfig, len(c.Loops)))
	}
	if len(c.Plant.C) != plant.NumOutputs {
		err = multierr.Append(err, fmt.Errorf("%w: need %d output rows, got %d", dynamo.ErrConfig, plant.NumOutputs, len(c.Plant.C)))
	}
	if n := len(c.Initial.Loops); n != 0 && n != 2 {
		err = multierr.Append(err, fmt.Errorf("%w: initial loop states: need 0 or 2, got %d", dynamo.ErrConfig, n))
	}
	b, berr := plant.ReduceInput(c.Plant.B, c.Plant.InputColumn)
	if berr != nil {
		err = multierr.Append(err, fmt.Errorf("%w: %w", dynamo.ErrConfig, berr))
	}
	if err != nil {
		return sim.Params{}, err
	}

	p := sim.Params{
		A:            c.Plant.A,
		B:            b,
		C:            [plant.NumOutputs][]float64{c.Plant.C[0], c.Plant.C[1]},
		TStart:       c.Horizon.Start,
		TEnd:         c.Horizon.End,
		Samples:      c.Horizon.Samples,
		InitialPlant: c.Initial.Plant,
		Solver: integrators.Options{
			RelTol:      c.Solver.RelTol,
			AbsTol:      c.Solver.AbsTol,
			MaxSteps:    c.Solver.MaxSteps,
			InitialStep: c.Solver.InitialStep,
			MaxStep:     c.Solver.MaxStep,
		},
	}
	for k, l := range c.Loops {
		p.Loops[k] = l.PID()
		p.References[k] = reference.Step{
			SwitchTime: l.Reference.SwitchTime,
			Before:     l.Reference.Before,
			After:      l.Reference.After,
		}
	}
	for k, s := range c.Initial.Loops {
		p.InitialLoops[k] = control.LoopState{Integral: s.Integral, Filter: s.Filter}
	}

	if err := p.Validate(); err != nil {
		return sim.Params{}, err
	}
	return p, nil
}
