package sim

import (
	"io"
	"sync"

	"github.com/san-kum/sirbox/internal/dynamo"
	"github.com/san-kum/sirbox/internal/metrics"
)

// Guarded serializes every entry point of an Engine behind one mutex, for
// hosts that step and perturb from different goroutines.
type Guarded struct {
	mu  sync.Mutex
	eng *Engine
}

func NewGuarded(e *Engine) *Guarded {
	return &Guarded{eng: e}
}

// Do runs fn with exclusive access to the engine.
func (g *Guarded) Do(fn func(e *Engine)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g.eng)
}

func (g *Guarded) Step(microSteps int) StepStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.eng.Step(microSteps)
}

func (g *Guarded) Reinitialize(count int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.eng.Reinitialize(count)
}

func (g *Guarded) Lift() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.eng.Lift()
}

func (g *Guarded) Dampen() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.eng.Dampen()
}

func (g *Guarded) Settle() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.eng.Settle()
}

func (g *Guarded) Infect(point dynamo.Vec2, tol float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.eng.Infect(point, tol)
}

func (g *Guarded) SetRunningMeasurement(active bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.eng.SetRunningMeasurement(active)
}

func (g *Guarded) MeanSquaredVelocity() (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.eng.MeanSquaredVelocity()
}

func (g *Guarded) Snapshot() []dynamo.ParticleView {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.eng.Snapshot()
}

func (g *Guarded) SpeedHistogram() metrics.Histogram {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.eng.SpeedHistogram()
}

func (g *Guarded) PopulationSeries() (healthy, infected []metrics.Sample) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.eng.PopulationSeries()
}

func (g *Guarded) ExportSnapshot(w io.Writer) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.eng.ExportSnapshot(w)
}
