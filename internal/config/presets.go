package config

import "sort"

type Preset struct {
	Description string
	apply       func(c *Config)
}

var Presets = map[string]Preset{
	"default": {
		Description: "both loops summed onto the inflow, level step at 100 s, temperature step at 500 s",
		apply:       func(c *Config) {},
	},
	"level-only": {
		Description: "temperature loop disabled, level tracks 1.519 -> 1.6",
		apply: func(c *Config) {
			c.Loops[1] = disabled(c.Loops[1])
		},
	},
	"temperature-only": {
		Description: "level loop disabled, temperature tracks 45 -> 48",
		apply: func(c *Config) {
			c.Loops[0] = disabled(c.Loops[0])
			c.Solver.RelTol = 1e-6
			c.Solver.AbsTol = 1e-9
		},
	},
	"early-switch": {
		Description: "level setpoint steps at 50 s instead of 100 s",
		apply: func(c *Config) {
			c.Loops[0].Reference.SwitchTime = 50
		},
	},
	"open-loop": {
		Description: "no control action, plant drifts from its initial state",
		apply: func(c *Config) {
			c.Loops[0] = disabled(c.Loops[0])
			c.Loops[1] = disabled(c.Loops[1])
		},
	},
}

func disabled(l LoopConfig) LoopConfig {
	l.Kp, l.Ki, l.Kd = 0, 0, 0
	return l
}

// GetPreset returns a fresh configuration for the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Name = name
	p.apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
