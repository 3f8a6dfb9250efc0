package dynamo

import (
	"errors"
	"math"
	"testing"
)

func TestVec2(t *testing.T) {
	a := Vec2{3, 4}
	b := Vec2{1, -2}

	if got := a.Add(b); got != (Vec2{4, 2}) {
		t.Errorf("Add = %v", got)
	}
	if got := a.Sub(b); got != (Vec2{2, 6}) {
		t.Errorf("Sub = %v", got)
	}
	if got := a.Scale(0.5); got != (Vec2{1.5, 2}) {
		t.Errorf("Scale = %v", got)
	}
	if math.Abs(a.Norm()-5) > 1e-12 {
		t.Errorf("Norm = %v, want 5", a.Norm())
	}
	if a.Norm2() != 25 {
		t.Errorf("Norm2 = %v, want 25", a.Norm2())
	}
	if !a.IsValid() {
		t.Error("finite vector reported invalid")
	}
	if (Vec2{math.NaN(), 0}).IsValid() || (Vec2{0, math.Inf(-1)}).IsValid() {
		t.Error("non-finite vector reported valid")
	}
}

func TestHealthRoundTrip(t *testing.T) {
	for _, h := range []Health{Healthy, Infected} {
		got, err := ParseHealth(h.String())
		if err != nil {
			t.Fatalf("ParseHealth(%q): %v", h.String(), err)
		}
		if got != h {
			t.Errorf("ParseHealth(%q) = %v", h.String(), got)
		}
	}
	if _, err := ParseHealth("recovered"); err == nil {
		t.Error("expected error for unknown state")
	}
	if s := Health(7).String(); s != "health(7)" {
		t.Errorf("String() = %q", s)
	}
}

func TestCountAndClone(t *testing.T) {
	ps := []Particle{
		{Position: Vec2{1, 1}, Health: Infected, Timer: 0.5},
		{Position: Vec2{2, 2}},
		{Position: Vec2{3, 3}, Velocity: Vec2{3, 4}},
	}

	c := Count(ps)
	if c.Healthy != 2 || c.Infected != 1 || c.Total() != 3 {
		t.Errorf("Count = %+v", c)
	}

	cp := Clone(ps)
	cp[0].Health = Healthy
	cp[1].Position.X = 9
	if ps[0].Health != Infected || ps[1].Position.X != 2 {
		t.Error("Clone shares memory with its source")
	}

	if ps[2].Speed() != 5 {
		t.Errorf("Speed = %v, want 5", ps[2].Speed())
	}
	if !ps[0].IsInfected() || ps[1].IsInfected() {
		t.Error("IsInfected mismatch")
	}

	v := ps[0].View()
	if v.Position != ps[0].Position || v.Health != Infected {
		t.Errorf("View = %+v", v)
	}
}

func TestScriptedSource(t *testing.T) {
	s := &ScriptedSource{Values: []float64{0.1, 0.2}, Fallback: 0.9}
	want := []float64{0.1, 0.2, 0.9, 0.9}
	for i, w := range want {
		if got := s.Float64(); got != w {
			t.Errorf("draw %d = %v, want %v", i, got, w)
		}
	}
	if s.Draws != len(want) {
		t.Errorf("Draws = %d, want %d", s.Draws, len(want))
	}
}

func TestStepError(t *testing.T) {
	err := &StepError{Step: 12, Wrapped: ErrNoMatch}
	if !errors.Is(err, ErrNoMatch) {
		t.Error("StepError does not unwrap")
	}
	if err.Error() != "step 12: dynamo: no particle at point" {
		t.Errorf("Error() = %q", err.Error())
	}
}
