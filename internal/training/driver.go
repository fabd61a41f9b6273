// Package training drives a Kuramoto-coupled self-organizing map: it owns
// the lattice, the oscillator field, the bridge between them, the decay
// schedules and the single random source every randomized call draws from.
//
// A Driver is deterministic for a fixed Config and input sequence, for any
// worker count. It is not safe for concurrent use.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/nvandessel/kuramap/internal/coupling"
	"github.com/nvandessel/kuramap/internal/lattice"
	"github.com/nvandessel/kuramap/internal/models"
	"github.com/nvandessel/kuramap/internal/oscillator"
)

// EpochStats summarizes one completed epoch.
type EpochStats struct {
	Epoch             int     `json:"epoch"`
	Step              int     `json:"step"`
	LearningRate      float64 `json:"learning_rate"`
	Radius            float64 `json:"radius"`
	QuantizationError float64 `json:"quantization_error"`
	OrderParameter    float64 `json:"order_parameter"`
	MeanPhase         float64 `json:"mean_phase"`
}

// TrainingStats summarizes a run so far.
type TrainingStats struct {
	Epochs       int     `json:"epochs"`
	Updates      int     `json:"updates"`
	InitialError float64 `json:"initial_error"`
	FinalError   float64 `json:"final_error"`
	FinalOrder   float64 `json:"final_order"`
	State        string  `json:"state"`
}

// EpochHook is called after every completed epoch.
type EpochHook func(EpochStats)

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithEpochHook registers a callback run after every epoch, in order.
func WithEpochHook(h EpochHook) Option {
	return func(d *Driver) {
		if h != nil {
			d.hooks = append(d.hooks, h)
		}
	}
}

// Driver runs training epochs over a lattice and its oscillator field.
type Driver struct {
	cfg    Config
	rng    *rand.Rand
	lat    *lattice.Lattice
	field  *oscillator.Field
	bridge *coupling.Bridge
	logger *slog.Logger
	hooks  []EpochHook

	state     State
	schedule  Schedule
	planned   bool
	baselined bool
	step      int
	epoch     int
	updates   int
	initialQE float64
	lastQE    float64
	history   []EpochStats
}

// New builds a driver. Random draws happen in a fixed order: lattice
// weights, then natural frequencies (unless feature driven), then phases.
func New(cfg Config, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training config: %w", err)
	}

	d := &Driver{
		cfg:    cfg,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)),
		logger: slog.New(slog.DiscardHandler),
		schedule: Schedule{
			LearningRate0: cfg.LearningRate,
			Radius0:       cfg.Radius,
			MinRadius:     cfg.MinRadius,
			RadiusDecay:   cfg.RadiusDecay,
			TotalSteps:    cfg.PlannedSteps,
		},
		planned: cfg.PlannedSteps > 0,
	}
	for _, opt := range opts {
		opt(d)
	}

	lat, err := lattice.NewRandom(cfg.Rows, cfg.Cols, cfg.Dim, d.rng, lattice.WithWorkers(cfg.Workers))
	if err != nil {
		return nil, fmt.Errorf("creating lattice: %w", err)
	}

	n := lat.Size()
	var freqs []float64
	if cfg.Mode == coupling.ModeFeatureDriven {
		freqs = coupling.FeatureFrequencies(lat, cfg.FrequencyMin, cfg.FrequencyMax)
	} else {
		freqs = oscillator.RandomFrequencies(n, cfg.FrequencyMean, cfg.FrequencyStd, d.rng)
	}
	field, err := oscillator.New(freqs, oscillator.RandomPhases(n, d.rng), oscillator.WithWorkers(cfg.Workers))
	if err != nil {
		return nil, fmt.Errorf("creating oscillator field: %w", err)
	}

	bridge, err := coupling.NewBridge(lat, field, cfg.bridgeConfig())
	if err != nil {
		return nil, fmt.Errorf("creating coupling bridge: %w", err)
	}

	d.lat, d.field, d.bridge = lat, field, bridge
	return d, nil
}

// Config returns the driver's configuration.
func (d *Driver) Config() Config { return d.cfg }

// State returns the lifecycle state.
func (d *Driver) State() State { return d.state }

// Step returns the number of training steps taken.
func (d *Driver) Step() int { return d.step }

// Schedule returns the decay schedule in effect.
func (d *Driver) Schedule() Schedule { return d.schedule }

// plan fixes T on the first epoch. Steps already taken by hand count
// toward T so the schedules still reach their final values at the end of
// the planned epochs.
func (d *Driver) plan(samplesPerEpoch int) {
	if d.planned {
		return
	}
	d.schedule.TotalSteps = d.step + d.cfg.Epochs*samplesPerEpoch
	d.planned = true
}

// baseline records the QE the convergence check starts from.
func (d *Driver) baseline(samples [][]float64) error {
	if d.baselined {
		return nil
	}
	qe, err := d.lat.QuantizationError(samples)
	if err != nil {
		return err
	}
	d.initialQE, d.lastQE = qe, qe
	d.baselined = true
	d.logger.Debug("training started",
		"rows", d.cfg.Rows, "cols", d.cfg.Cols, "dim", d.cfg.Dim,
		"samples", len(samples), "planned_steps", d.schedule.TotalSteps,
		"prior_steps", d.step, "mode", d.cfg.Mode.String(), "seed", d.cfg.Seed, "initial_qe", qe)
	return nil
}

func (d *Driver) checkSamples(samples [][]float64) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples")
	}
	for k, x := range samples {
		if len(x) != d.cfg.Dim {
			return fmt.Errorf("sample %d: %w", k, &models.DimensionError{Want: d.cfg.Dim, Got: len(x)})
		}
		if err := models.CheckFinite("sample", x); err != nil {
			return fmt.Errorf("sample %d: %w", k, err)
		}
	}
	return nil
}

// stopped records cancellation and returns the error for the caller.
func (d *Driver) stopped(ctx context.Context) error {
	d.state = Stopped
	d.logger.Info("training stopped", "epoch", d.epoch, "step", d.step, "reason", context.Cause(ctx))
	return fmt.Errorf("%w: %w", ErrStopped, ctx.Err())
}

// trainStep runs one BMU search, one lattice update and the configured
// number of oscillator ticks.
func (d *Driver) trainStep(x []float64) error {
	bmu, _, err := d.lat.BMU(x)
	if err != nil {
		return err
	}
	lr, radius := d.schedule.LearningRate(d.step), d.schedule.Radius(d.step)
	if err := d.lat.Update(bmu, x, lr, radius, d.cfg.Neighborhood); err != nil {
		return err
	}
	for range d.cfg.TicksPerStep {
		if err := d.bridge.Tick(d.cfg.Dt, d.cfg.CouplingStrength, d.cfg.NoiseStd, d.rng); err != nil {
			return err
		}
	}
	d.step++
	d.updates++
	return nil
}

// StepOnce trains on a single sample. Cancellation is checked before the
// step. Until the first RunEpoch fixes T, hand steps decay over Epochs
// steps; rejected input leaves the state and the schedule untouched.
func (d *Driver) StepOnce(ctx context.Context, x []float64) error {
	if d.state == Stopped {
		return ErrStopped
	}
	if ctx.Err() != nil {
		return d.stopped(ctx)
	}
	if len(x) != d.cfg.Dim {
		return fmt.Errorf("step once: %w", &models.DimensionError{Want: d.cfg.Dim, Got: len(x)})
	}
	if err := models.CheckFinite("sample", x); err != nil {
		return fmt.Errorf("step once: %w", err)
	}
	if !d.planned {
		d.schedule.TotalSteps = d.cfg.Epochs
	}
	if d.state == Uninitialized {
		d.state = Running
	}
	if err := d.trainStep(x); err != nil {
		return fmt.Errorf("step once: %w", err)
	}
	return nil
}

// RunEpoch visits every sample once, in an order drawn from the driver's
// random source, then evaluates the epoch and refreshes dynamic coupling.
// It moves a Running driver to Converged when the tolerance or the planned
// epoch count is reached. A Converged driver can still be stepped by hand.
func (d *Driver) RunEpoch(ctx context.Context, samples [][]float64) (EpochStats, error) {
	if d.state == Stopped {
		return EpochStats{}, ErrStopped
	}
	if err := d.checkSamples(samples); err != nil {
		return EpochStats{}, fmt.Errorf("run epoch: %w", err)
	}

	d.plan(len(samples))
	if err := d.baseline(samples); err != nil {
		return EpochStats{}, fmt.Errorf("run epoch: %w", err)
	}
	if d.state == Uninitialized {
		d.state = Running
	}

	for _, k := range d.rng.Perm(len(samples)) {
		if ctx.Err() != nil {
			return EpochStats{}, d.stopped(ctx)
		}
		if err := d.trainStep(samples[k]); err != nil {
			return EpochStats{}, fmt.Errorf("run epoch %d: step %d: %w", d.epoch, d.step, err)
		}
	}

	if err := d.bridge.Refresh(); err != nil {
		return EpochStats{}, fmt.Errorf("run epoch %d: %w", d.epoch, err)
	}

	qe, err := d.lat.QuantizationError(samples)
	if err != nil {
		return EpochStats{}, fmt.Errorf("run epoch %d: %w", d.epoch, err)
	}
	r, psi := d.field.OrderParameter()
	stats := EpochStats{
		Epoch:             d.epoch,
		Step:              d.step,
		LearningRate:      d.schedule.LearningRate(d.step),
		Radius:            d.schedule.Radius(d.step),
		QuantizationError: qe,
		OrderParameter:    r,
		MeanPhase:         psi,
	}
	d.history = append(d.history, stats)
	d.epoch++

	improvement := d.lastQE - qe
	d.lastQE = qe
	d.logger.Debug("epoch complete",
		"epoch", stats.Epoch, "step", stats.Step, "qe", qe,
		"improvement", improvement, "order", r, "radius", stats.Radius)

	if d.state == Running {
		switch {
		case d.cfg.Tolerance > 0 && improvement < d.cfg.Tolerance:
			d.state = Converged
			d.logger.Info("training converged", "epoch", stats.Epoch, "qe", qe, "improvement", improvement)
		case d.epoch >= d.cfg.Epochs:
			d.state = Converged
			d.logger.Info("training complete", "epochs", d.epoch, "qe", qe, "order", r)
		}
	}

	for _, h := range d.hooks {
		h(stats)
	}
	return stats, nil
}

// Run trains until the driver converges, the planned epochs are exhausted
// or ctx is cancelled. Cancellation is observed only between steps and
// leaves the partial state readable.
func (d *Driver) Run(ctx context.Context, samples [][]float64) (TrainingStats, error) {
	if d.state == Stopped {
		return d.Stats(), ErrStopped
	}
	if d.cfg.Epochs == 0 {
		if err := d.checkSamples(samples); err != nil {
			return d.Stats(), fmt.Errorf("run: %w", err)
		}
		d.state = Converged
		return d.Stats(), nil
	}
	for d.state == Uninitialized || d.state == Running {
		if _, err := d.RunEpoch(ctx, samples); err != nil {
			return d.Stats(), err
		}
	}
	return d.Stats(), nil
}

// Stats returns the run summary so far.
func (d *Driver) Stats() TrainingStats {
	r, _ := d.field.OrderParameter()
	return TrainingStats{
		Epochs:       d.epoch,
		Updates:      d.updates,
		InitialError: d.initialQE,
		FinalError:   d.lastQE,
		FinalOrder:   r,
		State:        d.state.String(),
	}
}

// History returns a copy of the per-epoch statistics.
func (d *Driver) History() []EpochStats {
	out := make([]EpochStats, len(d.history))
	copy(out, d.history)
	return out
}

// Weights returns a snapshot of every unit's weight vector, row-major.
func (d *Driver) Weights() [][]float64 { return d.lat.Weights() }

// Phases returns a snapshot of every oscillator's phase.
func (d *Driver) Phases() []float64 { return d.field.Phases() }

// Frequencies returns a snapshot of the natural frequencies.
func (d *Driver) Frequencies() []float64 { return d.field.Frequencies() }

// OrderParameter returns the field's (R, ψ).
func (d *Driver) OrderParameter() (r, psi float64) { return d.field.OrderParameter() }

// QuantizationError evaluates the lattice against samples.
func (d *Driver) QuantizationError(samples [][]float64) (float64, error) {
	return d.lat.QuantizationError(samples)
}

// BMU returns the best matching unit for x.
func (d *Driver) BMU(x []float64) (models.Coord, float64, error) { return d.lat.BMU(x) }

// Hits returns per-unit BMU counts for samples, row-major.
func (d *Driver) Hits(samples [][]float64) ([]int, error) { return d.lat.Hits(samples) }

// ClusterCoherence finds the BMU of x and returns the phase locking value
// of the units within radius of it.
func (d *Driver) ClusterCoherence(x []float64, radius float64) (models.Coord, float64, error) {
	bmu, _, err := d.lat.BMU(x)
	if err != nil {
		return models.Coord{}, 0, fmt.Errorf("cluster coherence: %w", err)
	}
	plv, err := d.bridge.ClusterCoherence(bmu, radius)
	if err != nil {
		return bmu, 0, err
	}
	return bmu, plv, nil
}

// SyncMap returns the cluster coherence around every unit, row-major.
func (d *Driver) SyncMap(radius float64) ([]float64, error) { return d.bridge.SyncMap(radius) }

// Tick advances only the oscillators, n times, without touching the step
// counter.
func (d *Driver) Tick(n int) error {
	if d.state == Stopped {
		return ErrStopped
	}
	for range n {
		if err := d.bridge.Tick(d.cfg.Dt, d.cfg.CouplingStrength, d.cfg.NoiseStd, d.rng); err != nil {
			return fmt.Errorf("tick: %w", err)
		}
	}
	return nil
}

// Perturb scatters the phases with a uniform kick of up to intensity·π.
func (d *Driver) Perturb(intensity float64) error {
	if d.state == Stopped {
		return ErrStopped
	}
	return d.field.Perturb(intensity, d.rng)
}
