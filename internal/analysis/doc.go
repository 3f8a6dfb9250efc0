// Package analysis summarizes epidemic time series.
//
//   - [Summarize]: peak, extinction and final counts of one run
//   - [Aggregate]: mean and spread of summaries across an ensemble
//
// # Example
//
//	healthy, infected := eng.PopulationSeries()
//	s, err := analysis.Summarize(healthy, infected)
//	if err == nil && s.Extinct() {
//	    // the infection died out at s.ExtinctAt
//	}
package analysis
