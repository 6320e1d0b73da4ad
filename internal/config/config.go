// Package config holds ambient compiler-session tunables: the values the
// spec leaves as constants (integer/float defaulting targets, canonical
// integer/float type names, the solver's pass safety cap) but that an
// embedding host may reasonably want to override.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Session carries the tunables for one compilation session. The zero value
// is not valid; use Default() or Load().
type Session struct {
	// IntDefault is the canonical integer path literals default to when no
	// other obligation pins them down (spec §4.1, §9 Open Question 2).
	IntDefault string `yaml:"int_default"`
	// FloatDefault is the canonical float path float literals default to.
	FloatDefault string `yaml:"float_default"`
	// IntegerPaths are the canonical integer type names tried during
	// integer-literal trait specialization (spec §4.5 step 2).
	IntegerPaths []string `yaml:"integer_paths"`
	// FloatPaths are the canonical float type names tried symmetrically.
	FloatPaths []string `yaml:"float_paths"`
	// MaxSolverPasses bounds the obligation solver's fixed-point loop
	// (spec §4.8/§9 termination argument) as a hard safety backstop; the
	// loop's own no-progress check should always terminate first.
	MaxSolverPasses int `yaml:"max_solver_passes"`
}

// Default returns the spec's fixed defaults: u32/f32, with the eight
// canonical integer paths and two float paths from spec §4.5.
func Default() Session {
	return Session{
		IntDefault:   "u32",
		FloatDefault: "f32",
		IntegerPaths: []string{"u8", "u16", "u32", "u64", "s8", "s16", "s32", "s64"},
		FloatPaths:   []string{"f32", "f64"},
		MaxSolverPasses: 4096,
	}
}

// Load reads a YAML session configuration from path, filling unset fields
// from Default(). A missing file is not an error; it just yields the
// defaults.
func Load(path string) (Session, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.MaxSolverPasses <= 0 {
		cfg.MaxSolverPasses = Default().MaxSolverPasses
	}
	return cfg, nil
}

// IsIntegerPath reports whether name is one of the session's canonical
// integer type names.
func (s Session) IsIntegerPath(name string) bool {
	for _, p := range s.IntegerPaths {
		if p == name {
			return true
		}
	}
	return false
}

// IsFloatPath reports whether name is one of the session's canonical float
// type names.
func (s Session) IsFloatPath(name string) bool {
	for _, p := range s.FloatPaths {
		if p == name {
			return true
		}
	}
	return false
}
