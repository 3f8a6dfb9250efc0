package sim

import (
	"context"
	"math/rand"
	"sync"

	"github.com/san-kum/sirbox/internal/dynamo"
	"github.com/san-kum/sirbox/internal/metrics"
)

// RunResult is the outcome of one seeded headless run.
type RunResult struct {
	Seed     int64
	Steps    int
	Final    dynamo.Counts
	Healthy  []metrics.Sample
	Infected []metrics.Sample
}

// Ensemble runs independent engines that differ only by seed. Each run owns
// its engine, so the runs proceed in parallel without sharing state.
type Ensemble struct {
	cfg       Config
	particles int
	seeded    int
	numRuns   int
	seedStart int64
}

func NewEnsemble(cfg Config, particles, initialInfected, numRuns int, seedStart int64) *Ensemble {
	return &Ensemble{cfg: cfg, particles: particles, seeded: initialInfected, numRuns: numRuns, seedStart: seedStart}
}

func (e *Ensemble) Run(ctx context.Context, steps int) ([]*RunResult, error) {
	results := make([]*RunResult, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			seed := e.seedStart + int64(idx)
			results[idx], errs[idx] = e.runOne(ctx, seed, steps)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

func (e *Ensemble) runOne(ctx context.Context, seed int64, steps int) (*RunResult, error) {
	eng, err := New(e.cfg, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}
	if err := eng.Reinitialize(e.particles); err != nil {
		return nil, err
	}
	eng.SeedInfection(e.seeded)

	if err := eng.Run(ctx, steps); err != nil {
		return nil, err
	}

	healthy, infected := eng.PopulationSeries()
	return &RunResult{
		Seed:     seed,
		Steps:    eng.Steps(),
		Final:    eng.Counts(),
		Healthy:  healthy,
		Infected: infected,
	}, nil
}
