package dynamo

import (
	"fmt"
	"math"
)

type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

func (v Vec2) Scale(f float64) Vec2 { return Vec2{v.X * f, v.Y * f} }

func (v Vec2) Norm() float64 { return math.Hypot(v.X, v.Y) }

// Norm2 is the squared length; cheaper than Norm when only |v|² is needed.
func (v Vec2) Norm2() float64 { return v.X*v.X + v.Y*v.Y }

func (v Vec2) IsValid() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

func (v Vec2) String() string { return fmt.Sprintf("(%.4f, %.4f)", v.X, v.Y) }

type Health int

const (
	Healthy Health = iota
	Infected
)

func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Infected:
		return "infected"
	default:
		return fmt.Sprintf("health(%d)", int(h))
	}
}

// ParseHealth is the inverse of Health.String.
func ParseHealth(s string) (Health, error) {
	switch s {
	case "healthy":
		return Healthy, nil
	case "infected":
		return Infected, nil
	}
	return Healthy, fmt.Errorf("dynamo: unknown health state %q", s)
}

// Particle is a point mass in the box. Timer is only meaningful while Health
// is Infected.
type Particle struct {
	Position Vec2
	Velocity Vec2
	Health   Health
	Timer    float64
}

func (p Particle) Speed() float64 { return p.Velocity.Norm() }

func (p Particle) IsInfected() bool { return p.Health == Infected }

// ParticleView is the read-only projection handed to renderers.
type ParticleView struct {
	Position Vec2
	Health   Health
}

func (p Particle) View() ParticleView {
	return ParticleView{Position: p.Position, Health: p.Health}
}

// Counts tallies a population by health state.
type Counts struct {
	Healthy  int `json:"healthy"`
	Infected int `json:"infected"`
}

func (c Counts) Total() int { return c.Healthy + c.Infected }

func Count(ps []Particle) Counts {
	var c Counts
	for i := range ps {
		if ps[i].Health == Infected {
			c.Infected++
		} else {
			c.Healthy++
		}
	}
	return c
}

func Clone(ps []Particle) []Particle {
	c := make([]Particle, len(ps))
	copy(c, ps)
	return c
}
