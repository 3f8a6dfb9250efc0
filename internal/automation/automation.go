package automation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/sirbox/internal/analysis"
	"github.com/san-kum/sirbox/internal/config"
	"github.com/san-kum/sirbox/internal/dynamo"
	"github.com/san-kum/sirbox/internal/sim"
)

// Action names understood by Play.
const (
	ActionStep    = "step"
	ActionLift    = "lift"
	ActionDampen  = "dampen"
	ActionSettle  = "settle"
	ActionReinit  = "reinit"
	ActionInfect  = "infect"
	ActionMeasure = "measure"
)

// Scenario is a scripted sequence of perturbations replayed against one
// seeded engine.
type Scenario struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Preset      string   `yaml:"preset"`
	Seed        int64    `yaml:"seed"`
	Actions     []Action `yaml:"actions"`
}

// Action is one scenario line. Count is the number of macro-steps for step
// and the population size for reinit. X, Y and Tolerance locate an infect.
// On starts (true) or stops (false) a measure.
type Action struct {
	Do        string  `yaml:"do"`
	Count     int     `yaml:"count"`
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	Tolerance float64 `yaml:"tolerance"`
	On        bool    `yaml:"on"`
}

// ActionResult records the engine state after an action.
type ActionResult struct {
	Index  int
	Do     string
	Step   int
	Counts dynamo.Counts
	// Hit reports whether an infect found a particle.
	Hit bool
	// MeanSquaredVelocity is set after a measure stop.
	MeanSquaredVelocity float64
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
	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &scenario, nil
}

func (s *Scenario) Validate() error {
	for i, a := range s.Actions {
		switch a.Do {
		case ActionStep, ActionReinit:
			if a.Count <= 0 {
				return fmt.Errorf("%w: action %d (%s) needs a positive count", dynamo.ErrInvalidConfig, i+1, a.Do)
			}
		case ActionLift, ActionDampen, ActionSettle, ActionInfect, ActionMeasure:
		default:
			return fmt.Errorf("%w: action %d: unknown action %q", dynamo.ErrInvalidConfig, i+1, a.Do)
		}
	}
	return nil
}

// Play applies actions to eng in order. Errors are wrapped in a
// dynamo.StepError carrying the macro-step they happened on.
func Play(ctx context.Context, eng *sim.Engine, actions []Action) ([]ActionResult, error) {
	results := make([]ActionResult, 0, len(actions))

	for i, a := range actions {
		res := ActionResult{Index: i + 1, Do: a.Do}

		switch a.Do {
		case ActionStep:
			if err := eng.Run(ctx, a.Count); err != nil {
				return results, &dynamo.StepError{Step: eng.Steps(), Wrapped: err}
			}
		case ActionLift:
			eng.Lift()
		case ActionDampen:
			eng.Dampen()
		case ActionSettle:
			eng.Settle()
		case ActionReinit:
			if err := eng.Reinitialize(a.Count); err != nil {
				return results, &dynamo.StepError{Step: eng.Steps(), Wrapped: err}
			}
		case ActionInfect:
			res.Hit = eng.Infect(dynamo.Vec2{X: a.X, Y: a.Y}, a.Tolerance)
		case ActionMeasure:
			eng.SetRunningMeasurement(a.On)
			if !a.On {
				v, err := eng.MeanSquaredVelocity()
				if err != nil {
					return results, &dynamo.StepError{Step: eng.Steps(), Wrapped: err}
				}
				res.MeanSquaredVelocity = v
			}
		default:
			return results, &dynamo.StepError{
				Step:    eng.Steps(),
				Wrapped: fmt.Errorf("%w: unknown action %q", dynamo.ErrInvalidConfig, a.Do),
			}
		}

		res.Step = eng.Steps()
		res.Counts = eng.Counts()
		results = append(results, res)
	}

	return results, nil
}

// NewEngine builds a seeded engine populated from cfg.
func NewEngine(cfg *config.Config, seed int64, logger *slog.Logger) (*sim.Engine, error) {
	eng, err := sim.New(cfg.Engine(), rand.New(rand.NewSource(seed)), sim.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := eng.Reinitialize(cfg.Particles); err != nil {
		return nil, err
	}
	eng.SeedInfection(cfg.InitialInfected)
	return eng, nil
}

// RunScenario builds an engine from base, or from the scenario's preset when
// it names one, and plays the scenario against it.
func RunScenario(ctx context.Context, sc *Scenario, base *config.Config, logger *slog.Logger) (*sim.Engine, []ActionResult, error) {
	cfg := base
	if sc.Preset != "" {
		cfg = config.GetPreset(sc.Preset)
		if cfg == nil {
			return nil, nil, fmt.Errorf("%w: unknown preset %q", dynamo.ErrInvalidConfig, sc.Preset)
		}
	}
	seed := sc.Seed
	if seed == 0 {
		seed = cfg.ResolveSeed()
	}

	eng, err := NewEngine(cfg, seed, logger)
	if err != nil {
		return nil, nil, err
	}

	results, err := Play(ctx, eng, sc.Actions)
	return eng, results, err
}

// ParameterSweep runs one headless simulation per value of an epidemic
// parameter, evenly spaced over [Min, Max].
type ParameterSweep struct {
	Param  string
	Min    float64
	Max    float64
	Points int
	Steps  int
	Seed   int64
	Base   *config.Config
}

type SweepResult struct {
	Value   float64
	Summary analysis.Summary
}

func RunSweep(ctx context.Context, sweep *ParameterSweep, logger *slog.Logger) ([]SweepResult, error) {
	if sweep.Points <= 0 || sweep.Steps <= 0 {
		return nil, fmt.Errorf("%w: sweep needs positive points and steps", dynamo.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if _, err := sweep.Base.Epidemic.Get(sweep.Param); err != nil {
		return nil, err
	}

	paramStep := 0.0
	if sweep.Points > 1 {
		paramStep = (sweep.Max - sweep.Min) / float64(sweep.Points-1)
	}

	results := make([]SweepResult, 0, sweep.Points)
	for i := 0; i < sweep.Points; i++ {
		value := sweep.Min + float64(i)*paramStep

		cfg := *sweep.Base
		if err := cfg.Epidemic.Set(sweep.Param, value); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%s=%g: %w", sweep.Param, value, err)
		}

		eng, err := NewEngine(&cfg, sweep.Seed, nil)
		if err != nil {
			return nil, err
		}
		if err := eng.Run(ctx, sweep.Steps); err != nil {
			return nil, err
		}

		summary, err := analysis.Summarize(eng.PopulationSeries())
		if err != nil {
			return nil, fmt.Errorf("%s=%g: %w", sweep.Param, value, err)
		}
		results = append(results, SweepResult{Value: value, Summary: summary})

		logger.Info("sweep point", "index", i+1, "of", sweep.Points, "param", sweep.Param, "value", value, "peak", summary.Peak)
	}

	return results, nil
}

// RunEnsemble runs seeded copies of cfg in parallel and aggregates their
// summaries.
func RunEnsemble(ctx context.Context, cfg *config.Config, runs, steps int, seedStart int64) ([]analysis.Summary, analysis.EnsembleStats, error) {
	ens := sim.NewEnsemble(cfg.Engine(), cfg.Particles, cfg.InitialInfected, runs, seedStart)
	results, err := ens.Run(ctx, steps)
	if err != nil {
		return nil, analysis.EnsembleStats{}, err
	}

	summaries := make([]analysis.Summary, 0, len(results))
	for _, r := range results {
		s, err := analysis.Summarize(r.Healthy, r.Infected)
		if err != nil {
			return nil, analysis.EnsembleStats{}, fmt.Errorf("seed %d: %w", r.Seed, err)
		}
		summaries = append(summaries, s)
	}

	return summaries, analysis.Aggregate(summaries), nil
}
