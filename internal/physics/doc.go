// Package physics provides the kinematics of point particles in a closed box.
//
// Particles move ballistically and reflect off the four walls:
//
//   - [Box]: the container and its micro-step integrator
//   - [Reflect]: exact mirror reflection of one coordinate
//   - [KineticEnergy]: total ½|v|² for unit masses
//
// # Energy Conservation
//
// Reflection only negates velocity components, so kinetic energy is
// preserved by every wall bounce:
//
//	box := physics.NewBox(10, 10)
//	e0 := physics.KineticEnergy(ps)
//	box.Advance(ps, 0.001)
//	// physics.KineticEnergy(ps) == e0
package physics
