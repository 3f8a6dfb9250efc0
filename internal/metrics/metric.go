package metrics

import "github.com/san-kum/sirbox/internal/dynamo"

type Metric interface {
	Name() string
	Observe(ps []dynamo.Particle)
	Value() float64
	Reset()
}

// KineticEnergy tracks the mean of Σ½|v|² over observed steps.
type KineticEnergy struct {
	samples int
	total   float64
	last    float64
}

func NewKineticEnergy() *KineticEnergy { return &KineticEnergy{} }

func (k *KineticEnergy) Name() string { return "kinetic_energy" }

func (k *KineticEnergy) Observe(ps []dynamo.Particle) {
	e := 0.0
	for i := range ps {
		e += 0.5 * ps[i].Velocity.Norm2()
	}
	k.last = e
	k.total += e
	k.samples++
}

func (k *KineticEnergy) Value() float64 {
	if k.samples == 0 {
		return 0
	}
	return k.total / float64(k.samples)
}

func (k *KineticEnergy) Last() float64 { return k.last }

func (k *KineticEnergy) Reset() {
	k.samples = 0
	k.total = 0
	k.last = 0
}

// PeakInfected records the largest infected count seen.
type PeakInfected struct {
	peak int
}

func NewPeakInfected() *PeakInfected { return &PeakInfected{} }

func (p *PeakInfected) Name() string { return "peak_infected" }

func (p *PeakInfected) Observe(ps []dynamo.Particle) {
	if c := dynamo.Count(ps).Infected; c > p.peak {
		p.peak = c
	}
}

func (p *PeakInfected) Value() float64 { return float64(p.peak) }
func (p *PeakInfected) Reset()         { p.peak = 0 }
