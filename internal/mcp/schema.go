package mcp

import (
	"time"

	"github.com/nvandessel/kuramap/internal/session"
	"github.com/nvandessel/kuramap/internal/store"
	"github.com/nvandessel/kuramap/internal/training"
)

// TrainInput defines the input for the kuramap_train tool. Zero values
// fall back to the server's configured engine settings.
type TrainInput struct {
	Rows         int         `json:"rows,omitempty" jsonschema:"Lattice rows"`
	Cols         int         `json:"cols,omitempty" jsonschema:"Lattice columns"`
	Dim          int         `json:"dim,omitempty" jsonschema:"Feature dimension (inferred from data when omitted)"`
	Epochs       int         `json:"epochs,omitempty" jsonschema:"Number of passes over the samples"`
	Samples      int         `json:"samples,omitempty" jsonschema:"Number of synthetic two-cluster samples used when data is empty"`
	Data         [][]float64 `json:"data,omitempty" jsonschema:"Inline training samples, one feature vector per row"`
	DataPath     string      `json:"data_path,omitempty" jsonschema:"CSV file of samples inside the server's working directory or ~/.kuramap/data"`
	CouplingMode string      `json:"coupling_mode,omitempty" jsonschema:"Coupling mode: none, feature_driven or oscillator_driven"`
	Neighborhood string      `json:"neighborhood,omitempty" jsonschema:"Neighborhood kind: gaussian or hard_cutoff"`
	Seed         *uint64     `json:"seed,omitempty" jsonschema:"Random seed (default from config)"`
	NoRecord     bool        `json:"no_record,omitempty" jsonschema:"Skip recording the run in history"`
	Maps         bool        `json:"maps,omitempty" jsonschema:"Include ASCII phase, hit and coherence maps"`
}

// TrainOutput defines the output for the kuramap_train tool.
type TrainOutput struct {
	RunID     string                 `json:"run_id,omitempty" jsonschema:"ID of the recorded run"`
	Stats     training.TrainingStats `json:"stats" jsonschema:"Run summary"`
	Order     float64                `json:"order" jsonschema:"Final global order parameter R in [0, 1]"`
	MeanPhase float64                `json:"mean_phase" jsonschema:"Final mean phase psi in [0, 2pi)"`
	History   []training.EpochStats  `json:"history" jsonschema:"Per-epoch statistics"`
	Maps      *session.Maps          `json:"maps,omitempty" jsonschema:"ASCII renderings of the final lattice"`
	Message   string                 `json:"message" jsonschema:"Human-readable result message"`
}

// SyncInput defines the input for the kuramap_sync tool.
type SyncInput struct {
	Rows             int      `json:"rows,omitempty" jsonschema:"Grid rows"`
	Cols             int      `json:"cols,omitempty" jsonschema:"Grid columns"`
	Steps            int      `json:"steps,omitempty" jsonschema:"Integration steps (default 500)"`
	CouplingStrength *float64 `json:"coupling_strength,omitempty" jsonschema:"Kuramoto coupling constant K"`
	CouplingRadius   *float64 `json:"coupling_radius,omitempty" jsonschema:"Grid coupling radius; 0 couples every pair"`
	Dt               float64  `json:"dt,omitempty" jsonschema:"Euler step size"`
	NoiseStd         *float64 `json:"noise_std,omitempty" jsonschema:"Standard deviation of per-step phase noise"`
	PerturbStep      int      `json:"perturb_step,omitempty" jsonschema:"Step at which the phases are scattered"`
	PerturbIntensity float64  `json:"perturb_intensity,omitempty" jsonschema:"Perturbation strength as a fraction of pi"`
	Seed             *uint64  `json:"seed,omitempty" jsonschema:"Random seed (default from config)"`
	Format           string   `json:"format,omitempty" jsonschema:"Rendering: ascii (default), dot or json"`
}

// SyncOutput defines the output for the kuramap_sync tool.
type SyncOutput struct {
	Steps      int                       `json:"steps" jsonschema:"Steps completed"`
	Order      float64                   `json:"order" jsonschema:"Final global order parameter R"`
	MeanPhase  float64                   `json:"mean_phase" jsonschema:"Final mean phase psi"`
	Trajectory []session.TrajectoryPoint `json:"trajectory" jsonschema:"Order parameter over time"`
	Rendering  string                    `json:"rendering,omitempty" jsonschema:"ASCII map or DOT graph of the final phases"`
	Phases     []float64                 `json:"phases,omitempty" jsonschema:"Final phases, row-major (json format only)"`
	Message    string                    `json:"message" jsonschema:"Human-readable result message"`
}

// RunsInput defines the input for the kuramap_runs tool.
type RunsInput struct {
	ID    string `json:"id,omitempty" jsonschema:"Run ID to show with its epochs; omit to list runs"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum runs to list (default 20)"`
}

// RunItem is one recorded run as reported by kuramap_runs.
type RunItem struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	FinishedAt   string    `json:"finished_at,omitempty"`
	Rows         int       `json:"rows"`
	Cols         int       `json:"cols"`
	Dim          int       `json:"dim"`
	Mode         string    `json:"mode"`
	Neighborhood string    `json:"neighborhood"`
	Seed         uint64    `json:"seed"`
	Samples      int       `json:"samples"`
	State        string    `json:"state"`
	Epochs       int       `json:"epochs"`
	Updates      int       `json:"updates"`
	InitialError float64   `json:"initial_error"`
	FinalError   float64   `json:"final_error"`
	FinalOrder   float64   `json:"final_order"`
}

func runItem(r store.Run) RunItem {
	item := RunItem{
		ID:           r.ID,
		CreatedAt:    r.CreatedAt,
		Rows:         r.Rows,
		Cols:         r.Cols,
		Dim:          r.Dim,
		Mode:         r.Mode,
		Neighborhood: r.Neighborhood,
		Seed:         r.Seed,
		Samples:      r.Samples,
		State:        r.State,
		Epochs:       r.Epochs,
		Updates:      r.Updates,
		InitialError: r.InitialError,
		FinalError:   r.FinalError,
		FinalOrder:   r.FinalOrder,
	}
	if !r.FinishedAt.IsZero() {
		item.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	return item
}

// RunsOutput defines the output for the kuramap_runs tool.
type RunsOutput struct {
	Runs   []RunItem           `json:"runs,omitempty" jsonschema:"Recorded runs, newest first"`
	Run    *RunItem            `json:"run,omitempty" jsonschema:"The requested run"`
	Epochs []store.EpochRecord `json:"epochs,omitempty" jsonschema:"Epoch metrics of the requested run"`
	Count  int                 `json:"count" jsonschema:"Number of runs returned"`
}
