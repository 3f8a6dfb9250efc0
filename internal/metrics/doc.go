// Package metrics aggregates statistics over the particle population.
//
//   - [SpeedHistogram]: equal-width speed bins over the observed range
//   - [Population]: healthy/infected counts sampled on a fixed cadence
//   - [MeanSquaredVelocity]: Σ|v|² accumulated while a measurement runs,
//     reported per unit of simulated time as a temperature proxy
//
// Types implementing [Metric] can be attached to a sim.Engine and are
// observed once per macro-step.
package metrics
