package simulation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nvandessel/kuramap/internal/session"
	"github.com/nvandessel/kuramap/internal/store"
)

// Runner orchestrates multi-trial experiments against a real run store.
type Runner struct {
	t     *testing.T
	store *store.SQLiteRunStore
}

// NewRunner creates a simulation runner with an isolated SQLite store
// and sandboxed HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	s, err := store.NewSQLiteRunStore(filepath.Join(tmpDir, "runs.db"))
	if err != nil {
		t.Fatalf("NewRunner: failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &Runner{t: t, store: s}
}

// Store returns the runner's run store.
func (r *Runner) Store() *store.SQLiteRunStore { return r.store }

// Run executes every trial of the scenario and returns the collected results.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()
	ctx := context.Background()

	trials := max(scenario.Trials, 1)
	result := SimulationResult{
		Name:   scenario.Name,
		Trials: make([]TrialResult, trials),
		Store:  r.store,
	}

	for i := range trials {
		cfg := scenario.Config
		cfg.Seed = scenario.Config.Seed + uint64(i)
		if scenario.BeforeTrial != nil {
			scenario.BeforeTrial(i, &cfg)
		}

		samples := scenario.Data
		if samples == nil {
			samples = session.SyntheticSamples(cfg.Seed, scenario.Samples, cfg.Dim)
		}

		res, err := session.Train(ctx, session.TrainRequest{
			Config:          cfg,
			Samples:         samples,
			Source:          scenario.Name,
			CoherenceRadius: scenario.CoherenceRadius,
		}, session.Options{Store: r.store})
		if err != nil {
			r.t.Fatalf("%s: trial %d: %v", scenario.Name, i, err)
		}

		run, err := r.store.GetRun(ctx, res.RunID)
		if err != nil {
			r.t.Fatalf("%s: trial %d: GetRun: %v", scenario.Name, i, err)
		}
		epochs, err := r.store.Epochs(ctx, res.RunID)
		if err != nil {
			r.t.Fatalf("%s: trial %d: Epochs: %v", scenario.Name, i, err)
		}

		result.Trials[i] = TrialResult{
			Index:  i,
			Seed:   cfg.Seed,
			Result: res,
			Run:    run,
			Epochs: epochs,
		}
	}

	return result
}

// RunSync executes an oscillator-only scenario.
func (r *Runner) RunSync(scenario SyncScenario) *session.SyncResult {
	r.t.Helper()
	res, err := session.Sync(context.Background(), scenario.Request, session.Options{})
	if err != nil {
		r.t.Fatalf("%s: %v", scenario.Name, err)
	}
	return res
}
