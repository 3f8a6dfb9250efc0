package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/sirbox/internal/dynamo"
)

const (
	DefaultWidth  = 10.0
	DefaultHeight = 10.0
)

type Box struct {
	Width  float64
	Height float64
}

func NewBox(width, height float64) *Box {
	return &Box{Width: width, Height: height}
}

func (b *Box) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: box must be positive, got %gx%g", dynamo.ErrInvalidConfig, b.Width, b.Height)
	}
	return nil
}

// Advance moves every particle by one micro-step of length tau and reflects
// it back into the box.
func (b *Box) Advance(ps []dynamo.Particle, tau float64) {
	for i := range ps {
		p := &ps[i]
		p.Position.X += p.Velocity.X * tau
		p.Position.Y += p.Velocity.Y * tau
		b.Confine(p)
	}
}

// Confine reflects a particle that lies outside the box back inside.
func (b *Box) Confine(p *dynamo.Particle) {
	p.Position.X, p.Velocity.X = Reflect(p.Position.X, p.Velocity.X, b.Width)
	p.Position.Y, p.Velocity.Y = Reflect(p.Position.Y, p.Velocity.Y, b.Height)
}

func (b *Box) Contains(pos dynamo.Vec2) bool {
	return pos.X >= 0 && pos.X <= b.Width && pos.Y >= 0 && pos.Y <= b.Height
}

func (b *Box) Area() float64 { return b.Width * b.Height }

// Reflect mirrors x into [0, extent] and returns the matching velocity.
// Coordinates several box lengths outside are unfolded; the velocity flips
// once per wall crossed, so |v| is unchanged.
func Reflect(x, v, extent float64) (float64, float64) {
	if x >= 0 && x <= extent {
		return x, v
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		if x > 0 {
			return extent, v
		}
		return 0, v
	}

	k := math.Floor(x / extent)
	m := x - k*extent
	if m < 0 {
		m = 0
	} else if m > extent {
		m = extent
	}

	if math.Mod(math.Abs(k), 2) == 1 {
		return extent - m, -v
	}
	return m, v
}

func KineticEnergy(ps []dynamo.Particle) float64 {
	e := 0.0
	for i := range ps {
		e += 0.5 * ps[i].Velocity.Norm2()
	}
	return e
}

// SignedPow returns sign(v)·|v|^e.
func SignedPow(v, e float64) float64 {
	if v == 0 {
		return 0
	}
	return math.Copysign(math.Pow(math.Abs(v), e), v)
}
