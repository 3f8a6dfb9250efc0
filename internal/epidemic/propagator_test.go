package epidemic

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/sirbox/internal/dynamo"
)

func infected(x, y, timer float64) dynamo.Particle {
	return dynamo.Particle{Position: dynamo.Vec2{X: x, Y: y}, Health: dynamo.Infected, Timer: timer}
}

func healthy(x, y float64) dynamo.Particle {
	return dynamo.Particle{Position: dynamo.Vec2{X: x, Y: y}}
}

func TestDefaultParamsValid(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"transmission above one", func(p *Params) { p.Transmission = 1.5 }},
		{"negative decay rate", func(p *Params) { p.DecayRate = -1 }},
		{"zero floor", func(p *Params) { p.DistanceFloor = 0 }},
		{"zero timer max", func(p *Params) { p.TimerMax = 0 }},
		{"zero timer decay", func(p *Params) { p.TimerDecay = 0 }},
		{"threshold at max", func(p *Params) { p.InfectiousThreshold = p.TimerMax }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if !errors.Is(err, dynamo.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestParamsGetSet(t *testing.T) {
	p := DefaultParams()
	for _, name := range ParamNames() {
		if err := p.Set(name, 0.25); err != nil {
			t.Fatalf("Set(%s): %v", name, err)
		}
		v, err := p.Get(name)
		if err != nil || v != 0.25 {
			t.Errorf("Get(%s) = %v, %v", name, v, err)
		}
	}
	if err := p.Set("bogus", 1); err == nil {
		t.Error("expected error for unknown parameter")
	}
}

func TestProbability(t *testing.T) {
	pr := NewPropagator(DefaultParams())

	if got := pr.Probability(0); got != DefaultTransmission {
		t.Errorf("Probability(0) = %v, want %v", got, DefaultTransmission)
	}

	want := 0.8 * math.Exp(-6*0.0001)
	if got := pr.Probability(0.0001); math.Abs(got-want) > 1e-15 {
		t.Errorf("Probability(1e-4) = %v, want %v", got, want)
	}
	if math.Abs(want-0.7995) > 1e-4 {
		t.Errorf("expected ~0.7995, got %v", want)
	}

	if pr.Probability(10) > 1e-20 {
		t.Errorf("expected near-zero probability at long range, got %v", pr.Probability(10))
	}
}

func TestTwoParticleTransmission(t *testing.T) {
	pr := NewPropagator(DefaultParams())
	ps := []dynamo.Particle{
		infected(5, 5, DefaultTimerMax),
		healthy(5.0001, 5),
	}
	rng := &dynamo.ScriptedSource{Values: []float64{0.79}}

	res := pr.Update(ps, rng)

	if rng.Draws != 1 {
		t.Fatalf("expected exactly one draw, got %d", rng.Draws)
	}
	if res.Infections != 1 {
		t.Errorf("expected 1 infection, got %d", res.Infections)
	}
	if ps[1].Health != dynamo.Infected || ps[1].Timer != DefaultTimerMax {
		t.Errorf("expected B infected with fresh timer, got %+v", ps[1])
	}
	if want := DefaultTimerMax - DefaultTimerDecay; math.Abs(ps[0].Timer-want) > 1e-12 {
		t.Errorf("expected A timer %v, got %v", want, ps[0].Timer)
	}
}

func TestDrawAboveProbabilityDoesNotInfect(t *testing.T) {
	pr := NewPropagator(DefaultParams())
	ps := []dynamo.Particle{
		infected(5, 5, DefaultTimerMax),
		healthy(5.0001, 5),
	}
	rng := &dynamo.ScriptedSource{Values: []float64{0.7996}}

	pr.Update(ps, rng)

	if ps[1].Health != dynamo.Healthy {
		t.Error("draw above probability must not infect")
	}
}

func TestZeroDistanceNeverDraws(t *testing.T) {
	pr := NewPropagator(DefaultParams())
	ps := []dynamo.Particle{
		infected(3, 3, DefaultTimerMax),
		healthy(3, 3),
		healthy(3+DefaultDistanceFloor/2, 3),
	}
	rng := &dynamo.ScriptedSource{Fallback: 0}

	pr.Transmit(ps, rng)

	if rng.Draws != 0 {
		t.Errorf("expected no draws for coincident particles, got %d", rng.Draws)
	}
	if ps[1].Health != dynamo.Healthy || ps[2].Health != dynamo.Healthy {
		t.Error("coincident particles must not be infected")
	}
}

func TestInfectiousWindow(t *testing.T) {
	pr := NewPropagator(DefaultParams())

	tests := []struct {
		name  string
		p     dynamo.Particle
		wants bool
	}{
		{"fresh infection", infected(0, 0, DefaultTimerMax), true},
		{"just above threshold", infected(0, 0, DefaultInfectiousThreshold+1e-9), true},
		{"at threshold", infected(0, 0, DefaultInfectiousThreshold), false},
		{"trailing window", infected(0, 0, 0.1), false},
		{"healthy", healthy(0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pr.Infectious(&tt.p); got != tt.wants {
				t.Errorf("Infectious() = %v, want %v", got, tt.wants)
			}
		})
	}
}

func TestDecayedSourceNeverTransmits(t *testing.T) {
	pr := NewPropagator(DefaultParams())
	ps := []dynamo.Particle{
		infected(5, 5, 0.2),
		healthy(5.0001, 5),
	}
	rng := &dynamo.ScriptedSource{Fallback: 0}

	for i := 0; i < 10; i++ {
		pr.Update(ps, rng)
	}

	if rng.Draws != 0 {
		t.Errorf("non-infectious source consumed %d draws", rng.Draws)
	}
	if ps[1].Health != dynamo.Healthy {
		t.Error("particle past the infectious window transmitted")
	}
}

func TestTimerDecayAndRecovery(t *testing.T) {
	p := DefaultParams()
	p.TimerDecay = 0.1
	pr := NewPropagator(p)
	ps := []dynamo.Particle{infected(1, 1, 1.0)}
	rng := &dynamo.ScriptedSource{}

	prev := ps[0].Timer
	steps := 0
	for ps[0].Health == dynamo.Infected {
		pr.Update(ps, rng)
		steps++
		if ps[0].Health == dynamo.Infected {
			if ps[0].Timer >= prev {
				t.Fatalf("timer did not decrease: %v -> %v", prev, ps[0].Timer)
			}
			if ps[0].Timer <= 0 {
				t.Fatalf("infected particle with non-positive timer %v", ps[0].Timer)
			}
			prev = ps[0].Timer
		}
		if steps > 100 {
			t.Fatal("particle never recovered")
		}
	}

	if steps < 10 || steps > 11 {
		t.Errorf("expected recovery after ~10 steps, got %d", steps)
	}

	for i := 0; i < 5; i++ {
		pr.Update(ps, rng)
	}
	if ps[0].Health != dynamo.Healthy {
		t.Error("recovered particle relapsed without transmission")
	}
}

func TestRecoveringSourceDoesNotTransmitSameStep(t *testing.T) {
	p := DefaultParams()
	p.InfectiousThreshold = 0
	pr := NewPropagator(p)
	ps := []dynamo.Particle{
		infected(5, 5, p.TimerDecay/2),
		healthy(5.0001, 5),
	}
	rng := &dynamo.ScriptedSource{Fallback: 0}

	res := pr.Update(ps, rng)

	if res.Recovered != 1 || ps[0].Health != dynamo.Healthy {
		t.Fatalf("expected source to recover, got %+v", ps[0])
	}
	if rng.Draws != 0 || ps[1].Health != dynamo.Healthy {
		t.Error("particle recovering this step must not transmit")
	}
}

func TestReinfectionResetsTimer(t *testing.T) {
	pr := NewPropagator(DefaultParams())
	ps := []dynamo.Particle{
		infected(5, 5, DefaultTimerMax),
		infected(5.0001, 5, 0.5),
	}
	rng := &dynamo.ScriptedSource{Values: []float64{1, 0}}

	pr.Update(ps, rng)

	if ps[1].Timer != DefaultTimerMax {
		t.Errorf("expected reinfection to reset timer, got %v", ps[1].Timer)
	}
}

func TestSourcesFixedForPass(t *testing.T) {
	pr := NewPropagator(DefaultParams())
	ps := []dynamo.Particle{
		healthy(5.0001, 5),
		infected(5, 5, DefaultTimerMax),
		healthy(5.0002, 5),
	}
	rng := &dynamo.ScriptedSource{Fallback: 0}

	res := pr.Transmit(ps, rng)

	// one source, three victims, one of them the source itself
	if rng.Draws != 2 {
		t.Errorf("expected 2 draws, got %d", rng.Draws)
	}
	if res != 2 {
		t.Errorf("expected 2 infections, got %d", res)
	}
}
