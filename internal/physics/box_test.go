package physics

import (
	"math"
	"math/rand"
	"testing"

	"github.com/san-kum/sirbox/internal/dynamo"
)

func TestReflect(t *testing.T) {
	tests := []struct {
		name  string
		x, v  float64
		wantX float64
		wantV float64
	}{
		{"inside", 4, 1, 4, 1},
		{"on lower wall", 0, -1, 0, -1},
		{"on upper wall", 10, 1, 10, 1},
		{"below", -1, -2, 1, 2},
		{"above", 10.5, 3, 9.5, -3},
		{"two bounces", 25, 1, 5, 1},
		{"far below", -12, -1, 8, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, v := Reflect(tt.x, tt.v, 10)
			if math.Abs(x-tt.wantX) > 1e-12 || v != tt.wantV {
				t.Errorf("Reflect(%v, %v) = (%v, %v), want (%v, %v)", tt.x, tt.v, x, v, tt.wantX, tt.wantV)
			}
		})
	}
}

func TestReflectNonFinite(t *testing.T) {
	x, _ := Reflect(math.Inf(1), 1, 10)
	if x != 10 {
		t.Errorf("expected +Inf pinned to 10, got %v", x)
	}
	x, _ = Reflect(math.Inf(-1), 1, 10)
	if x != 0 {
		t.Errorf("expected -Inf pinned to 0, got %v", x)
	}
}

func TestBoxValidate(t *testing.T) {
	tests := []struct {
		name string
		box  Box
		ok   bool
	}{
		{"default", Box{DefaultWidth, DefaultHeight}, true},
		{"zero width", Box{0, 10}, false},
		{"negative height", Box{10, -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.box.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func randomParticles(rng *rand.Rand, n int, w, h, vmax float64) []dynamo.Particle {
	ps := make([]dynamo.Particle, n)
	for i := range ps {
		ps[i].Position = dynamo.Vec2{X: rng.Float64() * w, Y: rng.Float64() * h}
		ps[i].Velocity = dynamo.Vec2{X: (rng.Float64()*2 - 1) * vmax, Y: (rng.Float64()*2 - 1) * vmax}
	}
	return ps
}

func TestAdvanceBoundsInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	box := NewBox(10, 6)
	ps := randomParticles(rng, 200, box.Width, box.Height, 50)

	for step := 0; step < 5000; step++ {
		box.Advance(ps, 0.01)
		for i, p := range ps {
			if !box.Contains(p.Position) {
				t.Fatalf("step %d: particle %d escaped to %v", step, i, p.Position)
			}
		}
	}
}

func TestAdvanceConservesSpeed(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	box := NewBox(10, 10)
	ps := randomParticles(rng, 50, box.Width, box.Height, 20)

	speeds := make([]float64, len(ps))
	for i, p := range ps {
		speeds[i] = p.Speed()
	}
	e0 := KineticEnergy(ps)

	for step := 0; step < 10000; step++ {
		box.Advance(ps, 0.005)
	}

	for i, p := range ps {
		if p.Speed() != speeds[i] {
			t.Errorf("particle %d speed changed: %v -> %v", i, speeds[i], p.Speed())
		}
	}
	if e := KineticEnergy(ps); math.Abs(e-e0) > 1e-9*e0 {
		t.Errorf("kinetic energy drifted: %v -> %v", e0, e)
	}
}

func TestAdvanceMatchesUnfoldedTrajectory(t *testing.T) {
	box := NewBox(10, 10)
	p := dynamo.Particle{Position: dynamo.Vec2{X: 2, Y: 3}, Velocity: dynamo.Vec2{X: 7, Y: -4}}
	ps := []dynamo.Particle{p}

	tau := 0.01
	steps := 1000
	for i := 0; i < steps; i++ {
		box.Advance(ps, tau)
	}

	elapsed := tau * float64(steps)
	wantX, _ := Reflect(p.Position.X+p.Velocity.X*elapsed, p.Velocity.X, box.Width)
	wantY, _ := Reflect(p.Position.Y+p.Velocity.Y*elapsed, p.Velocity.Y, box.Height)

	if math.Abs(ps[0].Position.X-wantX) > 1e-6 || math.Abs(ps[0].Position.Y-wantY) > 1e-6 {
		t.Errorf("expected (%v, %v), got %v", wantX, wantY, ps[0].Position)
	}
}

func TestSignedPow(t *testing.T) {
	tests := []struct {
		v, e, want float64
	}{
		{-8, 0.3, -math.Pow(8, 0.3)},
		{27, 0.3, math.Pow(27, 0.3)},
		{0, 0.3, 0},
		{16, 0.5, 4},
	}

	for _, tt := range tests {
		if got := SignedPow(tt.v, tt.e); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("SignedPow(%v, %v) = %v, want %v", tt.v, tt.e, got, tt.want)
		}
	}
}
