// Package session runs one training or synchronization session end to end:
// it builds the engine, records the run, traces every epoch and collects the
// maps a caller renders. The CLI, the MCP server and the simulation harness
// all go through it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/kuramap/internal/logging"
	"github.com/nvandessel/kuramap/internal/store"
	"github.com/nvandessel/kuramap/internal/training"
)

// Options carries the optional sinks of a session. Every field may be nil.
type Options struct {
	// Store records the run and its epochs.
	Store store.RunStore

	// Trace receives one JSONL event per epoch.
	Trace *logging.TraceLogger

	// Logger receives driver and session logs.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// TrainRequest describes one training run.
type TrainRequest struct {
	Config  training.Config
	Samples [][]float64

	// Source names where the samples came from, for logs and traces.
	Source string

	// CoherenceRadius is the lattice radius used for the final sync map.
	CoherenceRadius float64
}

// TrainResult is what a finished (or stopped) run leaves behind.
type TrainResult struct {
	RunID     string                 `json:"run_id,omitempty"`
	Rows      int                    `json:"rows"`
	Cols      int                    `json:"cols"`
	Stats     training.TrainingStats `json:"stats"`
	History   []training.EpochStats  `json:"history"`
	Order     float64                `json:"order"`
	MeanPhase float64                `json:"mean_phase"`
	Phases    []float64              `json:"phases"`
	Hits      []int                  `json:"hits"`
	Coherence []float64              `json:"coherence"`
	Duration  time.Duration          `json:"duration_ns"`
}

// recorder forwards epoch stats to the store and the trace log. The first
// store error is kept and reported once the run returns.
type recorder struct {
	ctx    context.Context
	store  store.RunStore
	trace  *logging.TraceLogger
	logger *slog.Logger
	runID  string
	err    error
}

func (r *recorder) epoch(s training.EpochStats) {
	r.trace.Log(map[string]any{
		"event":         "epoch",
		"run_id":        r.runID,
		"epoch":         s.Epoch,
		"step":          s.Step,
		"learning_rate": s.LearningRate,
		"radius":        s.Radius,
		"qe":            s.QuantizationError,
		"order":         s.OrderParameter,
		"mean_phase":    s.MeanPhase,
	})

	if r.store == nil || r.runID == "" || r.err != nil {
		return
	}
	err := r.store.RecordEpoch(r.ctx, r.runID, store.EpochRecord{
		Epoch:             s.Epoch,
		Step:              s.Step,
		LearningRate:      s.LearningRate,
		Radius:            s.Radius,
		QuantizationError: s.QuantizationError,
		OrderParameter:    s.OrderParameter,
		MeanPhase:         s.MeanPhase,
	})
	if err != nil {
		r.logger.Warn("failed to record epoch", "run_id", r.runID, "epoch", s.Epoch, "error", err)
		r.err = fmt.Errorf("recording epoch %d: %w", s.Epoch, err)
	}
}

// Train runs req to completion. When ctx is cancelled mid-run the partial
// result is returned together with an error matching training.ErrStopped,
// and the stored run is finished as "stopped".
func Train(ctx context.Context, req TrainRequest, opts Options) (*TrainResult, error) {
	logger := opts.logger()
	// Store writes must survive the cancellation that stops the run.
	storeCtx := context.WithoutCancel(ctx)

	rec := &recorder{ctx: storeCtx, store: opts.Store, trace: opts.Trace, logger: logger}
	d, err := training.New(req.Config, training.WithLogger(logger), training.WithEpochHook(rec.epoch))
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	cfg := d.Config()

	if opts.Store != nil {
		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("train: encoding config: %w", err)
		}
		id, err := opts.Store.CreateRun(storeCtx, store.Run{
			Rows:         cfg.Rows,
			Cols:         cfg.Cols,
			Dim:          cfg.Dim,
			Mode:         cfg.Mode.String(),
			Neighborhood: cfg.Neighborhood.String(),
			Seed:         cfg.Seed,
			Samples:      len(req.Samples),
			Config:       string(cfgJSON),
		})
		if err != nil {
			return nil, fmt.Errorf("train: creating run: %w", err)
		}
		rec.runID = id
	}

	logger.Info("training started",
		"run_id", rec.runID, "source", req.Source, "samples", len(req.Samples),
		"grid", fmt.Sprintf("%dx%d", cfg.Rows, cfg.Cols), "mode", cfg.Mode, "seed", cfg.Seed)

	start := time.Now()
	stats, runErr := d.Run(ctx, req.Samples)
	elapsed := time.Since(start)

	stopped := errors.Is(runErr, training.ErrStopped)
	if runErr != nil && !stopped {
		_ = finish(storeCtx, opts.Store, rec.runID, stats, store.StateFailed, logger)
		return nil, fmt.Errorf("train: %w", runErr)
	}
	if err := finish(storeCtx, opts.Store, rec.runID, stats, stats.State, logger); err != nil && runErr == nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	if rec.err != nil && runErr == nil {
		return nil, fmt.Errorf("train: %w", rec.err)
	}

	res, err := collect(d, req)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	res.RunID = rec.runID
	res.Duration = elapsed

	opts.Trace.Log(map[string]any{
		"event":       "run_end",
		"run_id":      rec.runID,
		"state":       stats.State,
		"epochs":      stats.Epochs,
		"updates":     stats.Updates,
		"initial_qe":  stats.InitialError,
		"final_qe":    stats.FinalError,
		"final_order": stats.FinalOrder,
		"duration_ms": elapsed.Milliseconds(),
	})

	if stopped {
		logger.Warn("training stopped", "run_id", rec.runID, "epochs", stats.Epochs)
		return res, runErr
	}
	return res, nil
}

// finish writes the run summary. It is a no-op without a store or run.
func finish(ctx context.Context, s store.RunStore, runID string, stats training.TrainingStats, state string, logger *slog.Logger) error {
	if s == nil || runID == "" {
		return nil
	}
	err := s.FinishRun(ctx, runID, store.Summary{
		State:        state,
		Epochs:       stats.Epochs,
		Updates:      stats.Updates,
		InitialError: stats.InitialError,
		FinalError:   stats.FinalError,
		FinalOrder:   stats.FinalOrder,
	})
	if err != nil {
		logger.Warn("failed to finish run", "run_id", runID, "error", err)
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	return nil
}

// collect reads the maps out of a driver after its run.
func collect(d *training.Driver, req TrainRequest) (*TrainResult, error) {
	cfg := d.Config()
	hits, err := d.Hits(req.Samples)
	if err != nil {
		return nil, fmt.Errorf("hit counts: %w", err)
	}
	coherence, err := d.SyncMap(req.CoherenceRadius)
	if err != nil {
		return nil, fmt.Errorf("sync map: %w", err)
	}
	r, psi := d.OrderParameter()
	return &TrainResult{
		Rows:      cfg.Rows,
		Cols:      cfg.Cols,
		Stats:     d.Stats(),
		History:   d.History(),
		Order:     r,
		MeanPhase: psi,
		Phases:    d.Phases(),
		Hits:      hits,
		Coherence: coherence,
	}, nil
}
