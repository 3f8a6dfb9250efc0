package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/san-kum/sirbox/internal/dynamo"
	"github.com/san-kum/sirbox/internal/epidemic"
	"github.com/san-kum/sirbox/internal/metrics"
	"github.com/san-kum/sirbox/internal/physics"
)

// Engine owns the particle population and every statistic derived from it.
// It is not safe for concurrent use; see Guarded.
type Engine struct {
	cfg       Config
	box       *physics.Box
	epi       *epidemic.Propagator
	hist      *metrics.SpeedHistogram
	pop       *metrics.Population
	msv       *metrics.MeanSquaredVelocity
	rng       dynamo.Source
	particles []dynamo.Particle
	step      int
	time      float64
	last      StepStats
	metrics   []metrics.Metric
	observers []Observer
	logger    *slog.Logger
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New builds an engine with an empty population. Call Reinitialize or
// SetParticles before stepping.
func New(cfg Config, rng dynamo.Source, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", dynamo.ErrInvalidConfig)
	}

	hist, err := metrics.NewSpeedHistogram(cfg.HistogramBins)
	if err != nil {
		return nil, err
	}
	pop, err := metrics.NewPopulation(cfg.MeasureEvery)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		box:       physics.NewBox(cfg.Width, cfg.Height),
		epi:       epidemic.NewPropagator(cfg.Epidemic),
		hist:      hist,
		pop:       pop,
		msv:       metrics.NewMeanSquaredVelocity(),
		rng:       rng,
		particles: make([]dynamo.Particle, 0),
		metrics:   make([]metrics.Metric, 0),
		observers: make([]Observer, 0),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) AddMetric(m metrics.Metric)   { e.metrics = append(e.metrics, m) }
func (e *Engine) AddObserver(o Observer)       { e.observers = append(e.observers, o) }
func (e *Engine) Config() Config               { return e.cfg }
func (e *Engine) Steps() int                   { return e.step }
func (e *Engine) Time() float64                { return e.time }
func (e *Engine) Len() int                     { return len(e.particles) }
func (e *Engine) LastStep() StepStats          { return e.last }
func (e *Engine) Counts() dynamo.Counts        { return dynamo.Count(e.particles) }
func (e *Engine) Particles() []dynamo.Particle { return dynamo.Clone(e.particles) }
func (e *Engine) Measuring() bool              { return e.msv.Active() }

// Step runs one macro-step: microSteps kinematic sub-steps, one infection
// pass, then the statistics. microSteps <= 0 uses Config.SubSteps.
func (e *Engine) Step(microSteps int) StepStats {
	if microSteps <= 0 {
		microSteps = e.cfg.SubSteps
	}

	for k := 0; k < microSteps; k++ {
		e.box.Advance(e.particles, e.cfg.Tau)
	}
	e.time += float64(microSteps) * e.cfg.Tau
	e.step++

	res := e.epi.Update(e.particles, e.rng)

	e.msv.Observe(e.particles)
	for _, m := range e.metrics {
		m.Observe(e.particles)
	}
	sampled := e.pop.Sample(e.step, e.particles)

	e.last = StepStats{
		Step:       e.step,
		Recovered:  res.Recovered,
		Infections: res.Infections,
		Sampled:    sampled,
	}
	for _, o := range e.observers {
		o.OnStep(e.step, e.particles)
	}
	return e.last
}

// Run advances steps macro-steps, checking ctx between them.
func (e *Engine) Run(ctx context.Context, steps int) error {
	if steps < 0 {
		return fmt.Errorf("%w: steps must be non-negative, got %d", dynamo.ErrInvalidConfig, steps)
	}
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		e.Step(0)
	}
	return nil
}

// Reinitialize replaces the population with count healthy particles at
// uniform positions with velocity components uniform in [-MaxSpeed, MaxSpeed].
// Step counter, time series and any running measurement carry on.
func (e *Engine) Reinitialize(count int) error {
	if count <= 0 {
		return fmt.Errorf("%w: particle count must be positive, got %d", dynamo.ErrInvalidConfig, count)
	}

	ps := make([]dynamo.Particle, count)
	vmax := e.cfg.MaxSpeed
	for i := range ps {
		ps[i] = dynamo.Particle{
			Position: dynamo.Vec2{X: e.rng.Float64() * e.cfg.Width, Y: e.rng.Float64() * e.cfg.Height},
			Velocity: dynamo.Vec2{X: (2*e.rng.Float64() - 1) * vmax, Y: (2*e.rng.Float64() - 1) * vmax},
			Health:   dynamo.Healthy,
		}
	}
	e.particles = ps

	e.logger.Info("population reinitialized", "count", count, "step", e.step)
	return nil
}

// SetParticles replaces the population with a copy of ps.
func (e *Engine) SetParticles(ps []dynamo.Particle) error {
	if len(ps) == 0 {
		return fmt.Errorf("%w: particle count must be positive, got 0", dynamo.ErrInvalidConfig)
	}
	e.particles = dynamo.Clone(ps)
	return nil
}

// SeedInfection infects the first n particles and returns how many were set.
func (e *Engine) SeedInfection(n int) int {
	if n > len(e.particles) {
		n = len(e.particles)
	}
	for i := 0; i < n; i++ {
		e.epi.Infect(&e.particles[i])
	}
	return max(n, 0)
}

// Lift raises every particle by LiftFraction of the box height. Particles
// pushed past the ceiling are reflected by the next kinematic step.
func (e *Engine) Lift() {
	dy := e.cfg.Height * e.cfg.LiftFraction
	for i := range e.particles {
		e.particles[i].Position.Y += dy
	}
}

// Dampen compresses every velocity component v to sign(v)·|v|^0.3.
func (e *Engine) Dampen() {
	for i := range e.particles {
		v := &e.particles[i].Velocity
		v.X = physics.SignedPow(v.X, DefaultDampenPower)
		v.Y = physics.SignedPow(v.Y, DefaultDampenPower)
	}
}

// Settle pulls particles above 80% of the box height down to |y|^0.6.
func (e *Engine) Settle() {
	line := e.cfg.Height * DefaultSettleLine
	for i := range e.particles {
		p := &e.particles[i].Position
		if p.Y > line {
			p.Y = math.Pow(math.Abs(p.Y), DefaultSettlePower)
		}
	}
}

// Infect forces the first particle within tol of point (per axis) to a fresh
// infection. tol <= 0 uses Config.PickTolerance. A miss is a normal outcome
// and reports false.
func (e *Engine) Infect(point dynamo.Vec2, tol float64) bool {
	if tol <= 0 {
		tol = e.cfg.PickTolerance
	}
	for i := range e.particles {
		p := &e.particles[i]
		if math.Abs(p.Position.X-point.X) < tol && math.Abs(p.Position.Y-point.Y) < tol {
			e.epi.Infect(p)
			e.logger.Debug("manual infection", "index", i, "position", p.Position.String())
			return true
		}
	}
	e.logger.Debug("manual infection missed", "point", point.String(), "tolerance", tol)
	return false
}

// InfectAt is Infect with an error result for callers that prefer one.
func (e *Engine) InfectAt(point dynamo.Vec2, tol float64) error {
	if !e.Infect(point, tol) {
		return fmt.Errorf("%w: %s", dynamo.ErrNoMatch, point)
	}
	return nil
}

// SetRunningMeasurement starts a fresh mean squared velocity measurement, or
// stops the running one.
func (e *Engine) SetRunningMeasurement(active bool) {
	if active {
		e.msv.Start(e.step)
		e.logger.Info("resetting mean squared velocity measurement", "step", e.step)
		return
	}
	e.msv.Stop(e.step)
	if v, err := e.MeanSquaredVelocity(); err == nil {
		e.logger.Info("mean squared velocity", "value", v, "kT_over_m", v/2)
	} else {
		e.logger.Warn("mean squared velocity unavailable", "err", err)
	}
}

// MeanSquaredVelocity returns Σ|v|² / (elapsed macro-steps · tau) for the
// current or last measurement.
func (e *Engine) MeanSquaredVelocity() (float64, error) {
	return e.msv.Estimate(e.step, e.cfg.Tau)
}

func (e *Engine) Snapshot() []dynamo.ParticleView {
	views := make([]dynamo.ParticleView, len(e.particles))
	for i := range e.particles {
		views[i] = e.particles[i].View()
	}
	return views
}

func (e *Engine) SpeedHistogram() metrics.Histogram {
	return e.hist.Compute(e.particles)
}

func (e *Engine) PopulationSeries() (healthy, infected []metrics.Sample) {
	return e.pop.Series()
}

// Metrics returns the current value of every attached metric by name.
func (e *Engine) Metrics() map[string]float64 {
	out := make(map[string]float64, len(e.metrics))
	for _, m := range e.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}
