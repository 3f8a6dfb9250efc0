package metrics

import (
	"fmt"

	"github.com/san-kum/sirbox/internal/dynamo"
)

const DefaultBins = 20

// Histogram is one binning of instantaneous speeds. Edges are recomputed from
// the population on every call, so two histograms are generally not aligned.
type Histogram struct {
	Min       float64
	Max       float64
	Counts    []int
	MaxHeight int
}

func (h Histogram) BinWidth() float64 {
	if len(h.Counts) == 0 {
		return 0
	}
	return (h.Max - h.Min) / float64(len(h.Counts))
}

// Edges returns the len(Counts)+1 bin boundaries.
func (h Histogram) Edges() []float64 {
	w := h.BinWidth()
	edges := make([]float64, len(h.Counts)+1)
	for i := range edges {
		edges[i] = h.Min + float64(i)*w
	}
	if len(edges) > 0 {
		edges[len(edges)-1] = h.Max
	}
	return edges
}

func (h Histogram) Total() int {
	n := 0
	for _, c := range h.Counts {
		n += c
	}
	return n
}

type SpeedHistogram struct {
	Bins int
}

func NewSpeedHistogram(bins int) (*SpeedHistogram, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("%w: histogram bins must be positive, got %d", dynamo.ErrInvalidConfig, bins)
	}
	return &SpeedHistogram{Bins: bins}, nil
}

func (s *SpeedHistogram) Compute(ps []dynamo.Particle) Histogram {
	h := Histogram{Counts: make([]int, s.Bins)}
	if len(ps) == 0 {
		return h
	}

	speeds := make([]float64, len(ps))
	h.Min, h.Max = ps[0].Speed(), ps[0].Speed()
	for i := range ps {
		v := ps[i].Speed()
		speeds[i] = v
		if v < h.Min {
			h.Min = v
		}
		if v > h.Max {
			h.Max = v
		}
	}

	width := (h.Max - h.Min) / float64(s.Bins)
	for _, v := range speeds {
		bin := 0
		if width > 0 {
			bin = int((v - h.Min) / width)
		}
		if bin >= s.Bins {
			bin = s.Bins - 1
		}
		if bin < 0 {
			bin = 0
		}
		h.Counts[bin]++
	}

	for _, c := range h.Counts {
		if c > h.MaxHeight {
			h.MaxHeight = c
		}
	}
	return h
}
