// Package config loads run configurations from YAML and carries the
// preset registry the CLI exposes.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/sphlab/internal/scenario"
	"github.com/san-kum/sphlab/internal/solver"
)

const (
	DefaultDt         = 5e-4
	DefaultDuration   = 0.2
	DefaultResolution = 64
	DefaultAmplitude  = 0.05
	DefaultTreeSize   = 5
)

var (
	// ErrUnknownScenario reports a scenario name the registry does
	// not know.
	ErrUnknownScenario = errors.New("config: unknown scenario")
)

type Config struct {
	Scenario   string  `yaml:"scenario"`
	Dt         float64 `yaml:"dt"`
	Duration   float64 `yaml:"duration"`
	Seed       int64   `yaml:"seed"`
	Resolution int     `yaml:"resolution"`
	Amplitude  float64 `yaml:"amplitude"`
	WarnEvery  int     `yaml:"warn_every"`

	Fluid FluidConfig `yaml:"fluid"`
	Tree  TreeConfig  `yaml:"tree"`
}

type FluidConfig struct {
	Gamma          float64 `yaml:"gamma"`
	AlphaAV        float64 `yaml:"alpha_av"`
	BetaAV         float64 `yaml:"beta_av"`
	NeighborNumber int     `yaml:"neighbor_number"`
	AdaptSml       bool    `yaml:"adapt_sml"`
	Goroutines     int     `yaml:"goroutines"`
}

type TreeConfig struct {
	Theta           float64 `yaml:"theta"`
	MaxLevel        int     `yaml:"max_level"`
	LeafParticleNum int     `yaml:"leaf_particle_num"`
	TreeSize        int     `yaml:"tree_size"`
}

func DefaultConfig() *Config {
	return &Config{
		Scenario:   "shock_tube",
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Resolution: DefaultResolution,
		Amplitude:  DefaultAmplitude,
		Tree:       TreeConfig{TreeSize: DefaultTreeSize},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Build constructs the initial condition for the configured scenario
// and applies any tree/fluid overrides on top of the scenario
// defaults.
func (c *Config) Build() (scenario.Setup, error) {
	var (
		set scenario.Setup
		err error
	)
	switch c.Scenario {
	case "shock_tube":
		set, err = scenario.ShockTube(c.Resolution, false)
	case "shock_tube_walls":
		set, err = scenario.ShockTube(c.Resolution, true)
	case "periodic_box_2d":
		set, err = scenario.PeriodicBox2D(c.Resolution, c.Amplitude, c.Seed)
	case "gravity_cube":
		set, err = scenario.GravityCube(c.Resolution)
	default:
		return scenario.Setup{}, fmt.Errorf("%w: %q", ErrUnknownScenario, c.Scenario)
	}
	if err != nil {
		return scenario.Setup{}, err
	}

	if c.Tree.Theta > 0 {
		set.Tree.Theta = c.Tree.Theta
	}
	if c.Tree.MaxLevel > 0 {
		set.Tree.MaxLevel = c.Tree.MaxLevel
	}
	if c.Tree.LeafParticleNum > 0 {
		set.Tree.LeafParticleNum = c.Tree.LeafParticleNum
	}
	if c.Fluid.Gamma > 0 {
		set.Fluid.Gamma = c.Fluid.Gamma
	}
	if c.Fluid.AlphaAV > 0 {
		set.Fluid.AlphaAV = c.Fluid.AlphaAV
	}
	if c.Fluid.BetaAV > 0 {
		set.Fluid.BetaAV = c.Fluid.BetaAV
	}
	if c.Fluid.NeighborNumber > 0 {
		set.Fluid.NeighborNumber = c.Fluid.NeighborNumber
	}
	if c.Fluid.AdaptSml {
		set.Fluid.AdaptSml = true
	}
	if c.Fluid.Goroutines > 0 {
		set.Fluid.Goroutines = c.Fluid.Goroutines
	}
	return set, nil
}

// TreeSize returns the node-pool growth factor.
func (c *Config) TreeSize() int {
	if c.Tree.TreeSize > 0 {
		return c.Tree.TreeSize
	}
	return DefaultTreeSize
}

// SolverConfig maps onto the solver's run parameters.
func (c *Config) SolverConfig() solver.Config {
	return solver.Config{
		Dt:        c.Dt,
		Duration:  c.Duration,
		WarnEvery: c.WarnEvery,
	}
}
