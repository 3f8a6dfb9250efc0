// Package epidemic implements distance based infection spread between
// particles sharing a box.
package epidemic

import (
	"fmt"
	"math"

	"github.com/san-kum/sirbox/internal/dynamo"
)

const (
	DefaultTransmission        = 0.8
	DefaultDecayRate           = 6.0
	DefaultDistanceFloor       = 1e-5
	DefaultTimerMax            = 1.0
	DefaultInfectiousThreshold = 0.3
	DefaultTimerDecay          = 0.01
)

type Params struct {
	// Transmission is the per-pair infection probability at zero distance.
	Transmission float64 `yaml:"transmission" json:"transmission"`
	// DecayRate is the exponential fall-off of the probability with distance.
	DecayRate float64 `yaml:"decay_rate" json:"decay_rate"`
	// DistanceFloor excludes self-pairs and coincident particles.
	DistanceFloor float64 `yaml:"distance_floor" json:"distance_floor"`
	TimerMax      float64 `yaml:"timer_max" json:"timer_max"`
	// InfectiousThreshold ends the contagious part of an infection. A particle
	// with Timer in (0, InfectiousThreshold] is sick but cannot transmit.
	InfectiousThreshold float64 `yaml:"infectious_threshold" json:"infectious_threshold"`
	// TimerDecay is subtracted from every infected timer once per macro-step.
	TimerDecay float64 `yaml:"timer_decay" json:"timer_decay"`
}

func DefaultParams() Params {
	return Params{
		Transmission:        DefaultTransmission,
		DecayRate:           DefaultDecayRate,
		DistanceFloor:       DefaultDistanceFloor,
		TimerMax:            DefaultTimerMax,
		InfectiousThreshold: DefaultInfectiousThreshold,
		TimerDecay:          DefaultTimerDecay,
	}
}

func (p Params) Validate() error {
	if p.Transmission < 0 || p.Transmission > 1 {
		return fmt.Errorf("%w: transmission must be in [0,1], got %g", dynamo.ErrInvalidConfig, p.Transmission)
	}
	if p.DecayRate < 0 {
		return fmt.Errorf("%w: decay rate must be non-negative, got %g", dynamo.ErrInvalidConfig, p.DecayRate)
	}
	if p.DistanceFloor <= 0 {
		return fmt.Errorf("%w: distance floor must be positive, got %g", dynamo.ErrInvalidConfig, p.DistanceFloor)
	}
	if p.TimerMax <= 0 {
		return fmt.Errorf("%w: timer max must be positive, got %g", dynamo.ErrInvalidConfig, p.TimerMax)
	}
	if p.TimerDecay <= 0 {
		return fmt.Errorf("%w: timer decay must be positive, got %g", dynamo.ErrInvalidConfig, p.TimerDecay)
	}
	if p.InfectiousThreshold < 0 || p.InfectiousThreshold >= p.TimerMax {
		return fmt.Errorf("%w: infectious threshold must be in [0, %g), got %g",
			dynamo.ErrInvalidConfig, p.TimerMax, p.InfectiousThreshold)
	}
	return nil
}

// Get and Set expose the parameters by name for sweeps and scenario files.
func (p Params) Get(name string) (float64, error) {
	switch name {
	case "transmission":
		return p.Transmission, nil
	case "decay_rate":
		return p.DecayRate, nil
	case "distance_floor":
		return p.DistanceFloor, nil
	case "timer_max":
		return p.TimerMax, nil
	case "infectious_threshold":
		return p.InfectiousThreshold, nil
	case "timer_decay":
		return p.TimerDecay, nil
	}
	return 0, fmt.Errorf("epidemic: unknown parameter %q", name)
}

func (p *Params) Set(name string, value float64) error {
	switch name {
	case "transmission":
		p.Transmission = value
	case "decay_rate":
		p.DecayRate = value
	case "distance_floor":
		p.DistanceFloor = value
	case "timer_max":
		p.TimerMax = value
	case "infectious_threshold":
		p.InfectiousThreshold = value
	case "timer_decay":
		p.TimerDecay = value
	default:
		return fmt.Errorf("epidemic: unknown parameter %q", name)
	}
	return nil
}

func ParamNames() []string {
	return []string{"transmission", "decay_rate", "distance_floor", "timer_max", "infectious_threshold", "timer_decay"}
}

type Propagator struct {
	Params

	sources []dynamo.Vec2
}

func NewPropagator(p Params) *Propagator {
	return &Propagator{Params: p}
}

// Probability is the chance that an infectious particle at distance d
// infects a neighbour in one trial.
func (pr *Propagator) Probability(d float64) float64 {
	return pr.Transmission * math.Exp(-pr.DecayRate*d)
}

func (pr *Propagator) Infectious(p *dynamo.Particle) bool {
	return p.Health == dynamo.Infected && p.Timer > pr.InfectiousThreshold
}

// Infect marks p infected with a fresh timer.
func (pr *Propagator) Infect(p *dynamo.Particle) {
	p.Health = dynamo.Infected
	p.Timer = pr.TimerMax
}

// Decay runs the timer countdown for one macro-step and returns how many
// particles recovered.
func (pr *Propagator) Decay(ps []dynamo.Particle) int {
	recovered := 0
	for i := range ps {
		p := &ps[i]
		if p.Health != dynamo.Infected {
			continue
		}
		p.Timer -= pr.TimerDecay
		if p.Timer <= 0 {
			p.Health = dynamo.Healthy
			p.Timer = 0
			recovered++
		}
	}
	return recovered
}

// Transmit evaluates every ordered (victim, source) pair once. Sources are
// fixed when the pass starts; particles infected during the pass begin
// spreading on the next macro-step. Victims that are already infected can be
// reinfected, which resets their timer.
func (pr *Propagator) Transmit(ps []dynamo.Particle, rng dynamo.Source) int {
	pr.sources = pr.sources[:0]
	for j := range ps {
		if pr.Infectious(&ps[j]) {
			pr.sources = append(pr.sources, ps[j].Position)
		}
	}
	if len(pr.sources) == 0 {
		return 0
	}

	infections := 0
	for i := range ps {
		victim := &ps[i]
		for _, q := range pr.sources {
			d := math.Hypot(victim.Position.X-q.X, victim.Position.Y-q.Y)
			if d < pr.DistanceFloor {
				continue
			}
			if rng.Float64() < pr.Probability(d) {
				pr.Infect(victim)
				infections++
			}
		}
	}
	return infections
}

// Result summarizes one macro-step of the epidemic.
type Result struct {
	Recovered  int
	Infections int
}

// Update decays timers first, then runs transmission against the
// post-recovery state.
func (pr *Propagator) Update(ps []dynamo.Particle, rng dynamo.Source) Result {
	rec := pr.Decay(ps)
	inf := pr.Transmit(ps, rng)
	return Result{Recovered: rec, Infections: inf}
}
