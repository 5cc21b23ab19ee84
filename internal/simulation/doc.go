// Package simulation drives a Brunel network through the scenarios of
// Brunel (2000), figure 8, and collects what each scenario reports.
//
// A Simulation owns one network and advances it step by step. A Runner
// wraps the whole scenario workflow: build the network from the scenario's
// ratios, run it to the end of the export window, measure the mean rate,
// then write the spike file, render figures and persist the run. Failures
// of the output side are logged and recorded on the Result; the run itself
// still completes.
//
// Usage:
//
//	r := simulation.NewRunner(params.Default(), simulation.RunnerOptions{
//	    Output: simulation.Output{Dir: ".", File: "simulationData.txt"},
//	})
//	res, err := r.Run(ctx, simulation.ScenarioD)
//	fmt.Printf("%.1f Hz (Brunel: %.1f Hz)\n", *res.Rate, res.Scenario.SimulatedRate)
package simulation
