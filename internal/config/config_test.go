package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/loopsim/internal/dynamo"
	"go.uber.org/multierr"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	p, err := cfg.Params()
	if err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if p.B[0] != 0.00510 || p.B[2] != 0.0377 || p.B[1] != 0 || p.B[3] != 0 {
		t.Errorf("effective input = %v", p.B)
	}
	if p.Loops[0].Kp != 2.5982 || p.Loops[1].Kd != 153.4397 {
		t.Errorf("loops = %+v", p.Loops)
	}
	if p.References[0].SwitchTime != 100 || p.References[1].After != 48 {
		t.Errorf("references = %+v", p.References)
	}
	if p.Samples != 6001 || p.TEnd != 600 {
		t.Errorf("horizon = %v..%v, %d samples", p.TStart, p.TEnd, p.Samples)
	}
	if p.InitialLoops[0].Integral != 0 || p.InitialLoops[1].Filter != 0 {
		t.Errorf("initial loops = %+v", p.InitialLoops)
	}
}

func TestInputColumnSelection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Plant.B = [][]float64{{1, 5}, {2, 6}, {3, 7}, {4, 8}}
	cfg.Plant.InputColumn = 1

	p, err := cfg.Params()
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{5, 6, 7, 8}
	for i := range want {
		if p.B[i] != want[i] {
			t.Errorf("B[%d] = %v, want %v", i, p.B[i], want[i])
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errs   int
	}{
		{"one loop", func(c *Config) { c.Loops = c.Loops[:1] }, 1},
		{"one output row", func(c *Config) { c.Plant.C = c.Plant.C[:1] }, 1},
		{"column out of range", func(c *Config) { c.Plant.InputColumn = 2 }, 1},
		{"three initial loop states", func(c *Config) { c.Initial.Loops = make([]LoopStateConfig, 3) }, 1},
		{"zero tau", func(c *Config) { c.Loops[0].Tau = 0 }, 1},
		{"single sample", func(c *Config) { c.Horizon.Samples = 1 }, 1},
		{"tau and horizon", func(c *Config) {
			c.Loops[1].Tau = -1
			c.Horizon.End = c.Horizon.Start
		}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, dynamo.ErrConfig) {
				t.Fatalf("error %v does not wrap ErrConfig", err)
			}
			if got := len(multierr.Errors(err)); got != tt.errs {
				t.Errorf("got %d errors, want %d: %v", got, tt.errs, err)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.yaml")
	cfg := DefaultConfig()
	cfg.Loops[0].Reference.After = 1.7
	cfg.Initial.Loops = []LoopStateConfig{{Integral: 1}, {Filter: 2}}

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if got.Loops[0].Reference.After != 1.7 {
		t.Errorf("level after = %v", got.Loops[0].Reference.After)
	}
	if got.Initial.Loops[1].Filter != 2 {
		t.Errorf("initial loops = %+v", got.Initial.Loops)
	}
	if got.Plant.A[3][3] != -0.0335 {
		t.Errorf("A = %v", got.Plant.A)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.yaml")
	data := "horizon:\n  end: 300\n  samples: 301\nsolver:\n  rtol: 1.0e-6\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Horizon.End != 300 || cfg.Horizon.Samples != 301 || cfg.Horizon.Start != 0 {
		t.Errorf("horizon = %+v", cfg.Horizon)
	}
	if cfg.Solver.RelTol != 1e-6 || cfg.Solver.AbsTol != 1e-6 {
		t.Errorf("solver = %+v", cfg.Solver)
	}
	if len(cfg.Loops) != 2 || cfg.Loops[1].Ki != 0.2754 {
		t.Errorf("loops = %+v", cfg.Loops)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("horizon: [1, 2"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, dynamo.ErrConfig) {
		t.Errorf("got %v, want ErrConfig", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("got %v, want not-exist", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("level-only")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Loops[1].Kp != 0 || cfg.Loops[1].Ki != 0 || cfg.Loops[1].Kd != 0 {
		t.Errorf("temperature loop still active: %+v", cfg.Loops[1])
	}
	if cfg.Loops[1].Tau != DefaultTau {
		t.Errorf("tau = %v", cfg.Loops[1].Tau)
	}
	if cfg.Loops[0].Kp != 2.5982 {
		t.Errorf("level loop changed: %+v", cfg.Loops[0])
	}

	if GetPreset("nope") != nil {
		t.Error("unknown preset returned a config")
	}
}

func TestPresetsAreIndependent(t *testing.T) {
	a := GetPreset("early-switch")
	a.Loops[0].Reference.SwitchTime = 10

	b := GetPreset("early-switch")
	if b.Loops[0].Reference.SwitchTime != 50 {
		t.Errorf("switch = %v, want 50", b.Loops[0].Reference.SwitchTime)
	}
}

func TestAllPresetsValid(t *testing.T) {
	names := ListPresets()
	if len(names) != len(Presets) {
		t.Fatalf("listed %d of %d presets", len(names), len(Presets))
	}
	for i, name := range names {
		if i > 0 && names[i-1] >= name {
			t.Errorf("presets not sorted: %v", names)
		}
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestClone(t *testing.T) {
	a := DefaultConfig()
	b := a.Clone()
	b.Plant.A[0][0] = 1
	b.Loops[0].Kp = 0
	b.Initial.Plant[1] = 0

	if a.Plant.A[0][0] != -0.0499 || a.Loops[0].Kp != 2.5982 || a.Initial.Plant[1] != 0.7595 {
		t.Error("clone shares storage with the original")
	}
}
