package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/sirbox/internal/dynamo"
	"github.com/san-kum/sirbox/internal/epidemic"
	"github.com/san-kum/sirbox/internal/metrics"
	"github.com/san-kum/sirbox/internal/physics"
	"github.com/san-kum/sirbox/internal/sim"
)

const (
	DefaultParticles       = sim.DefaultParticles
	DefaultInitialInfected = 1
)

type Config struct {
	Box             BoxConfig       `yaml:"box" json:"box"`
	Particles       int             `yaml:"particles" json:"particles"`
	Seed            int64           `yaml:"seed" json:"seed"`
	Tau             float64         `yaml:"tau" json:"tau"`
	SubSteps        int             `yaml:"sub_steps" json:"sub_steps"`
	MaxSpeed        float64         `yaml:"max_speed" json:"max_speed"`
	MeasureEvery    int             `yaml:"measure_every" json:"measure_every"`
	HistogramBins   int             `yaml:"histogram_bins" json:"histogram_bins"`
	LiftFraction    float64         `yaml:"lift_fraction" json:"lift_fraction"`
	PickTolerance   float64         `yaml:"pick_tolerance" json:"pick_tolerance"`
	InitialInfected int             `yaml:"initial_infected" json:"initial_infected"`
	Epidemic        epidemic.Params `yaml:"epidemic" json:"epidemic"`
}

type BoxConfig struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

func DefaultConfig() *Config {
	return &Config{
		Box:             BoxConfig{Width: physics.DefaultWidth, Height: physics.DefaultHeight},
		Particles:       DefaultParticles,
		Tau:             sim.DefaultTau,
		SubSteps:        sim.DefaultSubSteps,
		MaxSpeed:        sim.DefaultMaxSpeed,
		MeasureEvery:    metrics.DefaultCadence,
		HistogramBins:   metrics.DefaultBins,
		LiftFraction:    sim.DefaultLiftFraction,
		PickTolerance:   sim.DefaultPickTolerance,
		InitialInfected: DefaultInitialInfected,
		Epidemic:        epidemic.DefaultParams(),
	}
}

// Load reads a YAML file on top of the defaults, so a file only needs the
// keys it changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
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

func (c *Config) Validate() error {
	if c.Particles <= 0 {
		return fmt.Errorf("%w: particles must be positive, got %d", dynamo.ErrInvalidConfig, c.Particles)
	}
	if c.InitialInfected < 0 || c.InitialInfected > c.Particles {
		return fmt.Errorf("%w: initial infected must be in [0, %d], got %d",
			dynamo.ErrInvalidConfig, c.Particles, c.InitialInfected)
	}
	return c.Engine().Validate()
}

// Engine projects the file settings onto the engine configuration.
func (c *Config) Engine() sim.Config {
	return sim.Config{
		Width:         c.Box.Width,
		Height:        c.Box.Height,
		Tau:           c.Tau,
		SubSteps:      c.SubSteps,
		MaxSpeed:      c.MaxSpeed,
		MeasureEvery:  c.MeasureEvery,
		HistogramBins: c.HistogramBins,
		LiftFraction:  c.LiftFraction,
		PickTolerance: c.PickTolerance,
		Epidemic:      c.Epidemic,
	}
}

// ResolveSeed returns Seed, or a time based seed when Seed is zero.
func (c *Config) ResolveSeed() int64 {
	if c.Seed != 0 {
		return c.Seed
	}
	return time.Now().UnixNano()
}
