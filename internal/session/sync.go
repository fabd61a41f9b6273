package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/nvandessel/kuramap/internal/constants"
	"github.com/nvandessel/kuramap/internal/coupling"
	"github.com/nvandessel/kuramap/internal/lattice"
	"github.com/nvandessel/kuramap/internal/models"
	"github.com/nvandessel/kuramap/internal/oscillator"
)

// SyncRequest describes an oscillator-only run on a rows×cols grid.
type SyncRequest struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`

	CouplingStrength float64 `json:"coupling_strength"`
	Dt               float64 `json:"dt"`
	NoiseStd         float64 `json:"noise_std"`
	FrequencyMean    float64 `json:"frequency_mean"`
	FrequencyStd     float64 `json:"frequency_std"`

	// CouplingRadius is the grid radius below which units couple. Zero
	// couples every pair with weight 1.
	CouplingRadius float64 `json:"coupling_radius"`

	Steps int `json:"steps"`

	// SampleEvery records the order parameter every n steps. Zero records
	// only the start and the end.
	SampleEvery int `json:"sample_every"`

	// PerturbIntensity, when positive, scatters the phases by up to
	// intensity·π right before step PerturbStep.
	PerturbStep      int     `json:"perturb_step"`
	PerturbIntensity float64 `json:"perturb_intensity"`

	CoherenceRadius float64 `json:"coherence_radius"`
	Seed            uint64  `json:"seed"`
	Workers         int     `json:"workers"`
}

// DefaultSyncRequest returns a request using the engine defaults.
func DefaultSyncRequest() SyncRequest {
	return SyncRequest{
		Rows:             constants.DefaultRows,
		Cols:             constants.DefaultCols,
		CouplingStrength: constants.DefaultCouplingStrength,
		Dt:               constants.DefaultDt,
		NoiseStd:         constants.DefaultNoiseStd,
		FrequencyMean:    constants.DefaultFrequencyMean,
		FrequencyStd:     constants.DefaultFrequencyStd,
		CouplingRadius:   constants.DefaultCouplingRadius,
		Steps:            500,
		SampleEvery:      10,
		CoherenceRadius:  constants.DefaultCoherenceRadius,
		Seed:             constants.DefaultSeed,
		Workers:          1,
	}
}

// Validate checks the request for values no run could use.
func (r SyncRequest) Validate() error {
	if err := models.CheckGridShape(r.Rows, r.Cols, 1); err != nil {
		return err
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"coupling_strength", r.CouplingStrength},
		{"dt", r.Dt},
		{"noise_std", r.NoiseStd},
		{"frequency_mean", r.FrequencyMean},
		{"frequency_std", r.FrequencyStd},
		{"coupling_radius", r.CouplingRadius},
		{"perturb_intensity", r.PerturbIntensity},
		{"coherence_radius", r.CoherenceRadius},
	} {
		if err := models.CheckScalar(p.name, p.v); err != nil {
			return err
		}
	}
	if r.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %v", r.Dt)
	}
	if r.NoiseStd < 0 || r.FrequencyStd < 0 {
		return fmt.Errorf("noise_std and frequency_std must be non-negative, got %v and %v", r.NoiseStd, r.FrequencyStd)
	}
	if r.CouplingRadius < 0 {
		return fmt.Errorf("coupling_radius must be non-negative, got %v", r.CouplingRadius)
	}
	if r.Steps < 0 || r.SampleEvery < 0 || r.PerturbStep < 0 {
		return fmt.Errorf("steps, sample_every and perturb_step must be non-negative")
	}
	if r.PerturbIntensity < 0 {
		return fmt.Errorf("perturb_intensity must be non-negative, got %v", r.PerturbIntensity)
	}
	if r.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", r.Workers)
	}
	return nil
}

// TrajectoryPoint is the order parameter after Step steps.
type TrajectoryPoint struct {
	Step      int     `json:"step"`
	Order     float64 `json:"order"`
	MeanPhase float64 `json:"mean_phase"`
}

// SyncResult is the outcome of Sync.
type SyncResult struct {
	Rows       int               `json:"rows"`
	Cols       int               `json:"cols"`
	Steps      int               `json:"steps"`
	Order      float64           `json:"order"`
	MeanPhase  float64           `json:"mean_phase"`
	Trajectory []TrajectoryPoint `json:"trajectory"`
	Phases     []float64         `json:"phases"`
	Coherence  []float64         `json:"coherence"`

	// Adjacency is the coupling in effect, for graph rendering.
	Adjacency oscillator.Adjacency `json:"-"`
	Duration  time.Duration        `json:"duration_ns"`
}

// Sync integrates a free oscillator field over the grid geometry. Random
// draws happen in a fixed order: frequencies, phases, then per-step noise
// and the perturbation. On cancellation the partial result is returned with
// ctx's error.
func Sync(ctx context.Context, req SyncRequest, opts Options) (*SyncResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	logger := opts.logger()
	rng := rand.New(rand.NewPCG(req.Seed, req.Seed))
	n := req.Rows * req.Cols

	// A one-dimensional lattice carries the geometry; its weights stay zero
	// because the bridge runs without feedback.
	lat, err := lattice.New(req.Rows, req.Cols, 1)
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}
	freqs := oscillator.RandomFrequencies(n, req.FrequencyMean, req.FrequencyStd, rng)
	field, err := oscillator.New(freqs, oscillator.RandomPhases(n, rng), oscillator.WithWorkers(req.Workers))
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}

	bcfg := coupling.Config{Mode: coupling.ModeNone, Radius: req.CouplingRadius}
	if req.CouplingRadius == 0 {
		full, err := coupling.FullyConnected(n, 1)
		if err != nil {
			return nil, fmt.Errorf("sync: %w", err)
		}
		bcfg.Explicit = full
	}
	bridge, err := coupling.NewBridge(lat, field, bcfg)
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}

	res := &SyncResult{Rows: req.Rows, Cols: req.Cols, Adjacency: bridge.Adjacency()}
	sample := func(step int) {
		r, psi := field.OrderParameter()
		res.Trajectory = append(res.Trajectory, TrajectoryPoint{Step: step, Order: r, MeanPhase: psi})
	}
	sample(0)

	start := time.Now()
	var runErr error
	for step := 1; step <= req.Steps; step++ {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("sync: stopped at step %d: %w", res.Steps, err)
			break
		}
		if req.PerturbIntensity > 0 && step == req.PerturbStep {
			if err := field.Perturb(req.PerturbIntensity, rng); err != nil {
				return nil, fmt.Errorf("sync: %w", err)
			}
			logger.Debug("phases perturbed", "step", step, "intensity", req.PerturbIntensity)
		}
		if err := bridge.Tick(req.Dt, req.CouplingStrength, req.NoiseStd, rng); err != nil {
			return nil, fmt.Errorf("sync: step %d: %w", step, err)
		}
		res.Steps = step
		if req.SampleEvery > 0 && step%req.SampleEvery == 0 {
			sample(step)
		}
	}
	if last := res.Trajectory[len(res.Trajectory)-1]; last.Step != res.Steps {
		sample(res.Steps)
	}
	res.Duration = time.Since(start)

	res.Order, res.MeanPhase = field.OrderParameter()
	res.Phases = field.Phases()
	res.Coherence, err = bridge.SyncMap(req.CoherenceRadius)
	if err != nil {
		return nil, fmt.Errorf("sync: %w", err)
	}

	opts.Trace.Log(map[string]any{
		"event":       "sync_end",
		"grid":        fmt.Sprintf("%dx%d", req.Rows, req.Cols),
		"steps":       res.Steps,
		"order":       res.Order,
		"mean_phase":  res.MeanPhase,
		"duration_ms": res.Duration.Milliseconds(),
	})
	logger.Info("sync complete", "steps", res.Steps, "order", res.Order)
	return res, runErr
}
