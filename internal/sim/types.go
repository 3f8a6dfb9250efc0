package sim

import (
	"fmt"

	"github.com/san-kum/sirbox/internal/dynamo"
	"github.com/san-kum/sirbox/internal/epidemic"
	"github.com/san-kum/sirbox/internal/metrics"
	"github.com/san-kum/sirbox/internal/physics"
)

const (
	DefaultParticles     = 200
	DefaultTau           = 0.001
	DefaultSubSteps      = 10
	DefaultMaxSpeed      = 5.0
	DefaultLiftFraction  = 1.0 / 3.0
	DefaultSettleLine    = 0.8
	DefaultSettlePower   = 0.6
	DefaultDampenPower   = 0.3
	DefaultPickTolerance = 1e-6
)

type Config struct {
	Width  float64
	Height float64
	// Tau is the micro-step length in simulated time.
	Tau float64
	// SubSteps is the number of micro-steps per macro-step.
	SubSteps int
	// MaxSpeed bounds each velocity component at initialization.
	MaxSpeed      float64
	MeasureEvery  int
	HistogramBins int
	LiftFraction  float64
	PickTolerance float64
	Epidemic      epidemic.Params
}

func DefaultConfig() Config {
	return Config{
		Width:         physics.DefaultWidth,
		Height:        physics.DefaultHeight,
		Tau:           DefaultTau,
		SubSteps:      DefaultSubSteps,
		MaxSpeed:      DefaultMaxSpeed,
		MeasureEvery:  metrics.DefaultCadence,
		HistogramBins: metrics.DefaultBins,
		LiftFraction:  DefaultLiftFraction,
		PickTolerance: DefaultPickTolerance,
		Epidemic:      epidemic.DefaultParams(),
	}
}

func (c Config) Validate() error {
	if err := physics.NewBox(c.Width, c.Height).Validate(); err != nil {
		return err
	}
	if c.Tau <= 0 {
		return fmt.Errorf("%w: tau must be positive, got %g", dynamo.ErrInvalidConfig, c.Tau)
	}
	if c.SubSteps <= 0 {
		return fmt.Errorf("%w: sub-steps must be positive, got %d", dynamo.ErrInvalidConfig, c.SubSteps)
	}
	if c.MaxSpeed < 0 {
		return fmt.Errorf("%w: max speed must be non-negative, got %g", dynamo.ErrInvalidConfig, c.MaxSpeed)
	}
	if c.MeasureEvery <= 0 {
		return fmt.Errorf("%w: measurement cadence must be positive, got %d", dynamo.ErrInvalidConfig, c.MeasureEvery)
	}
	if c.HistogramBins <= 0 {
		return fmt.Errorf("%w: histogram bins must be positive, got %d", dynamo.ErrInvalidConfig, c.HistogramBins)
	}
	if c.PickTolerance <= 0 {
		return fmt.Errorf("%w: pick tolerance must be positive, got %g", dynamo.ErrInvalidConfig, c.PickTolerance)
	}
	return c.Epidemic.Validate()
}

// MacroDuration is the simulated time covered by one default macro-step.
func (c Config) MacroDuration() float64 {
	return c.Tau * float64(c.SubSteps)
}

// Observer is notified after every macro-step.
type Observer interface {
	OnStep(step int, ps []dynamo.Particle)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(step int, ps []dynamo.Particle)

func (f ObserverFunc) OnStep(step int, ps []dynamo.Particle) { f(step, ps) }

// StepStats reports what happened during the last macro-step.
type StepStats struct {
	Step       int
	Recovered  int
	Infections int
	Sampled    bool
}
