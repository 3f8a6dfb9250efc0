package analysis

import (
	"fmt"
	"math"

	"github.com/san-kum/sirbox/internal/dynamo"
	"github.com/san-kum/sirbox/internal/metrics"
)

// Summary describes one population series.
type Summary struct {
	Samples    int           `json:"samples"`
	Population int           `json:"population"`
	Peak       int           `json:"peak_infected"`
	PeakIndex  float64       `json:"peak_index"`
	PeakShare  float64       `json:"peak_share"`
	Mean       float64       `json:"mean_infected"`
	Final      dynamo.Counts `json:"final"`
	// ExtinctAt is the index of the first sample with no infected particle
	// after at least one infected sample, or -1.
	ExtinctAt float64 `json:"extinct_at"`
}

func (s Summary) Extinct() bool { return s.ExtinctAt >= 0 }

// Summarize reduces paired healthy and infected series to a Summary. The
// series must be non-empty and of equal length.
func Summarize(healthy, infected []metrics.Sample) (Summary, error) {
	if len(healthy) != len(infected) {
		return Summary{}, fmt.Errorf("analysis: series length mismatch: %d healthy, %d infected",
			len(healthy), len(infected))
	}
	if len(infected) == 0 {
		return Summary{}, fmt.Errorf("%w: empty population series", dynamo.ErrPrecondition)
	}

	last := len(infected) - 1
	s := Summary{
		Samples:    len(infected),
		Population: healthy[0].Count + infected[0].Count,
		PeakIndex:  infected[0].Index,
		Final:      dynamo.Counts{Healthy: healthy[last].Count, Infected: infected[last].Count},
		ExtinctAt:  -1,
	}

	seen := false
	total := 0
	for _, smp := range infected {
		total += smp.Count
		if smp.Count > s.Peak {
			s.Peak = smp.Count
			s.PeakIndex = smp.Index
		}
		if smp.Count > 0 {
			seen = true
		} else if seen && s.ExtinctAt < 0 {
			s.ExtinctAt = smp.Index
		}
	}
	s.Mean = float64(total) / float64(len(infected))
	if s.Population > 0 {
		s.PeakShare = float64(s.Peak) / float64(s.Population)
	}
	return s, nil
}

// EnsembleStats aggregates summaries of runs that differ only by seed.
type EnsembleStats struct {
	Runs          int     `json:"runs"`
	MeanPeak      float64 `json:"mean_peak"`
	StdPeak       float64 `json:"std_peak"`
	MeanFinal     float64 `json:"mean_final_infected"`
	ExtinctRuns   int     `json:"extinct_runs"`
	MeanExtinctAt float64 `json:"mean_extinct_at"`
}

func Aggregate(summaries []Summary) EnsembleStats {
	st := EnsembleStats{Runs: len(summaries)}
	if len(summaries) == 0 {
		return st
	}

	n := float64(len(summaries))
	var extinctSum float64
	for _, s := range summaries {
		st.MeanPeak += float64(s.Peak)
		st.MeanFinal += float64(s.Final.Infected)
		if s.Extinct() {
			st.ExtinctRuns++
			extinctSum += s.ExtinctAt
		}
	}
	st.MeanPeak /= n
	st.MeanFinal /= n
	if st.ExtinctRuns > 0 {
		st.MeanExtinctAt = extinctSum / float64(st.ExtinctRuns)
	}

	var variance float64
	for _, s := range summaries {
		d := float64(s.Peak) - st.MeanPeak
		variance += d * d
	}
	st.StdPeak = math.Sqrt(variance / n)
	return st
}
