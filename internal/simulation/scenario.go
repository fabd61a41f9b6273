package simulation

import (
	"github.com/nvandessel/kuramap/internal/session"
	"github.com/nvandessel/kuramap/internal/store"
	"github.com/nvandessel/kuramap/internal/training"
)

// Scenario defines a training experiment repeated over seeded trials.
type Scenario struct {
	Name   string
	Config training.Config

	// Data, when non-nil, is used for every trial. Otherwise each trial
	// draws Samples synthetic two-cluster samples from its own seed.
	Data    [][]float64
	Samples int

	// Trials is the number of runs. Trial i uses seed Config.Seed+i.
	// Zero means one trial.
	Trials int

	// CoherenceRadius is passed to the session for the sync map.
	CoherenceRadius float64

	// BeforeTrial, when non-nil, may adjust the config of trial i before it
	// runs.
	BeforeTrial func(trial int, cfg *training.Config)
}

// TrialResult captures one trial and what the run store holds for it.
type TrialResult struct {
	Index  int
	Seed   uint64
	Result *session.TrainResult
	Run    *store.Run
	Epochs []store.EpochRecord
}

// SimulationResult captures all trials and the store they were recorded in.
type SimulationResult struct {
	Name   string
	Trials []TrialResult
	Store  *store.SQLiteRunStore
}

// SyncScenario defines an oscillator-only experiment.
type SyncScenario struct {
	Name    string
	Request session.SyncRequest
}
