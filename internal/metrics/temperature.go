package metrics

import (
	"fmt"

	"github.com/san-kum/sirbox/internal/dynamo"
)

// MeanSquaredVelocity accumulates Σ|v|² over every macro-step while active.
// Divided by the elapsed simulated time it estimates ⟨v²⟩, a stand-in for
// k_B·T/m.
type MeanSquaredVelocity struct {
	active    bool
	started   bool
	startStep int
	stopStep  int
	sum       float64
}

func NewMeanSquaredVelocity() *MeanSquaredVelocity { return &MeanSquaredVelocity{} }

func (m *MeanSquaredVelocity) Name() string { return "mean_squared_velocity" }

// Start begins a fresh measurement at macro-step step.
func (m *MeanSquaredVelocity) Start(step int) {
	m.active = true
	m.started = true
	m.startStep = step
	m.stopStep = step
	m.sum = 0
}

// Stop freezes the measurement at macro-step step.
func (m *MeanSquaredVelocity) Stop(step int) {
	if !m.active {
		return
	}
	m.active = false
	m.stopStep = step
}

func (m *MeanSquaredVelocity) Active() bool { return m.active }

func (m *MeanSquaredVelocity) Observe(ps []dynamo.Particle) {
	if !m.active {
		return
	}
	for i := range ps {
		m.sum += ps[i].Velocity.Norm2()
	}
}

func (m *MeanSquaredVelocity) Sum() float64 { return m.sum }

// Estimate returns sum / (elapsed macro-steps · tau). currentStep is only
// used while the measurement is still running.
func (m *MeanSquaredVelocity) Estimate(currentStep int, tau float64) (float64, error) {
	if !m.started {
		return 0, fmt.Errorf("%w: mean squared velocity measurement never started", dynamo.ErrPrecondition)
	}
	end := m.stopStep
	if m.active {
		end = currentStep
	}
	elapsed := end - m.startStep
	if elapsed <= 0 {
		return 0, fmt.Errorf("%w: no macro-steps elapsed since measurement start", dynamo.ErrPrecondition)
	}
	return m.sum / (float64(elapsed) * tau), nil
}

// Value satisfies Metric; it reports the raw accumulated sum.
func (m *MeanSquaredVelocity) Value() float64 { return m.sum }

func (m *MeanSquaredVelocity) Reset() {
	*m = MeanSquaredVelocity{}
}
