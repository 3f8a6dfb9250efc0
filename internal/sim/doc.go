// Package sim drives the particle box: kinematics, infection and statistics
// advance together one macro-step at a time.
//
// An [Engine] owns all simulation state. Each call to [Engine.Step] runs a
// fixed number of kinematic micro-steps, one infection pass and the
// statistics update, then returns. Perturbations ([Engine.Lift],
// [Engine.Dampen], [Engine.Settle], [Engine.Infect], [Engine.Reinitialize])
// are synchronous bulk edits of the same population.
//
// # Example
//
//	eng, err := sim.New(sim.DefaultConfig(), rand.New(rand.NewSource(1)))
//	if err != nil {
//	    return err
//	}
//	eng.Reinitialize(200)
//	eng.SeedInfection(1)
//	for i := 0; i < 1000; i++ {
//	    eng.Step(0)
//	}
//	healthy, infected := eng.PopulationSeries()
//
// # Thread Safety
//
// Engine is NOT thread-safe. Hosts that step and perturb from several
// goroutines wrap it in a [Guarded], which serializes every entry point.
package sim
