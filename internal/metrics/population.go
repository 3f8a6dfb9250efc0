package metrics

import (
	"fmt"

	"github.com/san-kum/sirbox/internal/dynamo"
)

const DefaultCadence = 5

// Sample is one point of a population time series.
type Sample struct {
	Index float64 `json:"index"`
	Count int     `json:"count"`
}

// Population samples healthy and infected counts every Cadence macro-steps.
// Both series grow for the life of the run.
type Population struct {
	Cadence  int
	healthy  []Sample
	infected []Sample
}

func NewPopulation(cadence int) (*Population, error) {
	if cadence <= 0 {
		return nil, fmt.Errorf("%w: measurement cadence must be positive, got %d", dynamo.ErrInvalidConfig, cadence)
	}
	return &Population{Cadence: cadence}, nil
}

// Sample records a point when step falls on the cadence and reports whether
// it did.
func (p *Population) Sample(step int, ps []dynamo.Particle) bool {
	if step%p.Cadence != 0 {
		return false
	}
	c := dynamo.Count(ps)
	idx := float64(step / p.Cadence)
	p.healthy = append(p.healthy, Sample{Index: idx, Count: c.Healthy})
	p.infected = append(p.infected, Sample{Index: idx, Count: c.Infected})
	return true
}

func (p *Population) Series() (healthy, infected []Sample) {
	healthy = make([]Sample, len(p.healthy))
	copy(healthy, p.healthy)
	infected = make([]Sample, len(p.infected))
	copy(infected, p.infected)
	return healthy, infected
}

func (p *Population) Len() int { return len(p.healthy) }

func (p *Population) Reset() {
	p.healthy = p.healthy[:0]
	p.infected = p.infected[:0]
}

// Counts extracts the count column of a series, for plotting.
func Counts(series []Sample) []float64 {
	out := make([]float64, len(series))
	for i, s := range series {
		out[i] = float64(s.Count)
	}
	return out
}
