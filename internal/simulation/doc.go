// Package simulation provides a multi-trial test harness for validating
// the emergent behavior of training and synchronization.
//
// The simulation exercises the real Driver, Bridge, oscillator Field and
// SQLiteRunStore through the session layer with no mocks. Scenarios describe
// a training configuration and how many seeded trials to run; the runner
// records every trial in an isolated run store and reads the history back
// so assertions can check both the in-memory results and what was persisted.
//
// Each test gets an isolated SQLite database via t.TempDir() and a sandboxed
// HOME to prevent touching user data.
//
// Usage:
//
//	func TestQEConvergence(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:    "two-clusters",
//	        Config:  cfg,
//	        Samples: 50,
//	        Trials:  10,
//	    })
//	    simulation.AssertQEDecreases(t, result)
//	    simulation.AssertMeanQEMonotone(t, result, 0.01)
//	}
package simulation
