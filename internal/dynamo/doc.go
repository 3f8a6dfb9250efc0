// Package dynamo provides the core primitives shared by the particle box
// simulation.
//
// The package defines the data model and the small contracts every other
// package builds on:
//
//   - [Vec2]: 2D vector used for positions and velocities
//   - [Particle]: a point particle with a health state and infection timer
//   - [Health]: Healthy or Infected
//   - [Source]: uniform [0,1) random draws, injected for reproducibility
//
// # Example
//
//	rng := rand.New(rand.NewSource(42))
//	eng, _ := sim.New(sim.DefaultConfig(), rng)
//	eng.Step(0)
//
// # Thread Safety
//
// Particles are plain values mutated in place by the engine. Nothing in this
// package synchronizes access; hosts that drive the engine from several
// goroutines must serialize calls (see sim.Guarded).
package dynamo
