// Package store records training run history: run parameters, per-epoch
// metrics and final summaries. It never stores weights or phases.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// Run is one recorded training run.
type Run struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
	Rows         int       `json:"rows"`
	Cols         int       `json:"cols"`
	Dim          int       `json:"dim"`
	Mode         string    `json:"mode"`
	Neighborhood string    `json:"neighborhood"`
	Seed         uint64    `json:"seed"`
	Samples      int       `json:"samples"`

	// Config is the full engine configuration as JSON, for reproduction.
	Config string `json:"config,omitempty"`

	Summary
}

// Summary is the outcome of a run, written once by FinishRun.
type Summary struct {
	State        string  `json:"state"`
	Epochs       int     `json:"epochs"`
	Updates      int     `json:"updates"`
	InitialError float64 `json:"initial_error"`
	FinalError   float64 `json:"final_error"`
	FinalOrder   float64 `json:"final_order"`
}

// EpochRecord is the metric row for one epoch of a run.
type EpochRecord struct {
	Epoch             int     `json:"epoch"`
	Step              int     `json:"step"`
	LearningRate      float64 `json:"learning_rate"`
	Radius            float64 `json:"radius"`
	QuantizationError float64 `json:"quantization_error"`
	OrderParameter    float64 `json:"order_parameter"`
	MeanPhase         float64 `json:"mean_phase"`
}

// Run states written by the session layer. Finished runs otherwise carry
// the driver's final state ("converged", "stopped").
const (
	// StateRunning marks a run that has been created but not finished.
	StateRunning = "running"

	// StateFailed marks a run aborted by an engine error.
	StateFailed = "failed"
)

// RunStore persists run history.
type RunStore interface {
	// CreateRun records a new run. When run.ID is empty a UUID is assigned.
	// CreatedAt defaults to now. A set FinishedAt and Summary are stored as
	// given, which is how archived runs are restored. Returns the run ID.
	CreateRun(ctx context.Context, run Run) (string, error)

	// RecordEpoch appends one epoch's metrics. Recording the same epoch
	// twice replaces the earlier row.
	RecordEpoch(ctx context.Context, runID string, rec EpochRecord) error

	// FinishRun writes the summary and the finish time.
	FinishRun(ctx context.Context, runID string, summary Summary) error

	// GetRun returns a run by ID, or ErrNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs newest first. limit ≤ 0 means no limit.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Epochs returns a run's epoch records in epoch order.
	Epochs(ctx context.Context, runID string) ([]EpochRecord, error)

	// Close releases resources.
	Close() error
}
