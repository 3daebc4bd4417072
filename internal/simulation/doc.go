// Package simulation provides a scripted test harness for the convergence
// controller.
//
// A Scenario fixes the inputs, the controller limits, a scripted output per
// (sweep, input) and a scripted oracle verdict per sweep. The Runner drives a
// real convergence.Controller one sweep at a time and snapshots the
// controller after every sweep, so assertions can check properties that must
// hold throughout the run, not just at the end.
//
// Usage:
//
//	func TestLateStability(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:         "late-stability",
//	        Inputs:       simulation.Inputs(0, 1),
//	        WindowLength: 3,
//	        MaxSweeps:    10,
//	        Outputs:      simulation.Drifting(8),
//	        Verdicts:     simulation.StableFrom(2),
//	    })
//	    simulation.AssertConverged(t, result, 2, 4)
//	}
package simulation
