// Package oscillator simulates a population of Kuramoto phase oscillators
// and reports their synchronization.
//
// The update for oscillator i is
//
//	dθᵢ = ωᵢ + (K / mean_degree) · Σⱼ Aᵢⱼ · sin(θⱼ − θᵢ) + noise
//	θᵢ  = (θᵢ + dt · dθᵢ) mod 2π
//
// where mean_degree is the mean row sum of the adjacency A. Normalizing by
// mean degree keeps the coupling term bounded as the network grows; an
// all-zero adjacency leaves every oscillator free-running.
package oscillator

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/kuramap/internal/models"
	"github.com/nvandessel/kuramap/internal/parallel"
	"github.com/nvandessel/kuramap/internal/vecmath"
)

// Adjacency is the coupling structure between oscillators. Implementations
// must be symmetric and non-negative with a zero diagonal.
type Adjacency interface {
	// Len returns the number of oscillators the adjacency covers.
	Len() int

	// At returns the coupling weight between oscillators i and j.
	At(i, j int) float64

	// MeanDegree returns the mean row sum.
	MeanDegree() float64
}

// Field holds one phase and one natural frequency per oscillator.
// It is not safe for concurrent use.
type Field struct {
	phases  []float64
	freqs   []float64
	next    []float64
	noise   []float64
	workers int
}

// Option configures a Field at construction.
type Option func(*Field)

// WithWorkers sets how many goroutines share the per-oscillator compute pass
// of Step. Results do not depend on the worker count.
func WithWorkers(n int) Option {
	return func(f *Field) {
		f.workers = n
	}
}

// New creates a field from explicit natural frequencies and initial phases.
// Phases are normalized to [0, 2π).
func New(freqs, phases []float64, opts ...Option) (*Field, error) {
	if len(freqs) == 0 {
		return nil, fmt.Errorf("new field: %w", models.ErrEmptySubset)
	}
	if len(phases) != len(freqs) {
		return nil, fmt.Errorf("new field: phases: %w", &models.DimensionError{Want: len(freqs), Got: len(phases)})
	}
	if err := models.CheckFinite("frequency", freqs); err != nil {
		return nil, fmt.Errorf("new field: %w", err)
	}
	if err := models.CheckFinite("phase", phases); err != nil {
		return nil, fmt.Errorf("new field: %w", err)
	}

	n := len(freqs)
	f := &Field{
		phases: make([]float64, n),
		freqs:  make([]float64, n),
		next:   make([]float64, n),
		noise:  make([]float64, n),
	}
	copy(f.freqs, freqs)
	for i, p := range phases {
		f.phases[i] = vecmath.WrapPhase(p)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// RandomPhases draws n phases uniformly from [0, 2π).
func RandomPhases(n int, rng *rand.Rand) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64() * vecmath.TwoPi
	}
	return out
}

// RandomFrequencies draws n natural frequencies from N(mean, std²).
func RandomFrequencies(n int, mean, std float64, rng *rand.Rand) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = mean + std*rng.NormFloat64()
	}
	return out
}

// Len returns the number of oscillators.
func (f *Field) Len() int { return len(f.phases) }

// Phase returns the phase of oscillator i.
func (f *Field) Phase(i int) float64 { return f.phases[i] }

// Phases returns a snapshot of all phases.
func (f *Field) Phases() []float64 {
	out := make([]float64, len(f.phases))
	copy(out, f.phases)
	return out
}

// Frequencies returns a snapshot of all natural frequencies.
func (f *Field) Frequencies() []float64 {
	out := make([]float64, len(f.freqs))
	copy(out, f.freqs)
	return out
}

// Step advances every oscillator by dt. When noiseStd > 0, one N(0, noiseStd²)
// sample per oscillator is drawn from rng in index order before any phase is
// computed; rng may be nil when noiseStd is 0.
//
// All deltas are computed from the phases as they were on entry. On error
// the phases are unchanged.
func (f *Field) Step(dt float64, adj Adjacency, k, noiseStd float64, rng *rand.Rand) error {
	if adj == nil {
		return fmt.Errorf("step: adjacency is nil")
	}
	if adj.Len() != f.Len() {
		return fmt.Errorf("step: adjacency: %w", &models.DimensionError{Want: f.Len(), Got: adj.Len()})
	}
	for _, p := range []struct {
		name string
		v    float64
	}{{"dt", dt}, {"coupling_strength", k}, {"noise_std", noiseStd}} {
		if err := models.CheckScalar(p.name, p.v); err != nil {
			return fmt.Errorf("step: %w", err)
		}
	}
	if noiseStd < 0 {
		return fmt.Errorf("step: noise_std must be non-negative, got %v", noiseStd)
	}

	if noiseStd > 0 {
		if rng == nil {
			return fmt.Errorf("step: noise requested without a random source")
		}
		for i := range f.noise {
			f.noise[i] = noiseStd * rng.NormFloat64()
		}
	} else {
		clear(f.noise)
	}

	gain := 0.0
	if md := adj.MeanDegree(); md > 0 {
		gain = k / md
	}

	n := f.Len()
	err := parallel.ForEach(n, f.workers, func(i int) error {
		theta := f.phases[i]
		var sum float64
		if gain != 0 {
			for j := 0; j < n; j++ {
				if a := adj.At(i, j); a != 0 {
					sum += a * math.Sin(f.phases[j]-theta)
				}
			}
		}
		dtheta := f.freqs[i] + gain*sum + f.noise[i]
		next := theta + dt*dtheta
		if math.IsNaN(next) || math.IsInf(next, 0) {
			return &models.NumericError{Field: "phase", Index: i, Value: next}
		}
		f.next[i] = vecmath.WrapPhase(next)
		return nil
	})
	if err != nil {
		return fmt.Errorf("step: %w", err)
	}

	f.phases, f.next = f.next, f.phases
	return nil
}

// OrderParameter returns the Kuramoto order parameter of the whole field:
// R = |mean(exp(iθ))| in [0, 1] and the mean phase ψ in [0, 2π).
func (f *Field) OrderParameter() (r, psi float64) {
	return vecmath.MeanPhase(f.phases)
}

// PhaseLockingValue returns the order parameter magnitude restricted to the
// oscillators in subset. Duplicate indices count once per occurrence.
func (f *Field) PhaseLockingValue(subset []int) (float64, error) {
	if len(subset) == 0 {
		return 0, fmt.Errorf("phase locking value: %w", models.ErrEmptySubset)
	}
	phases := make([]float64, len(subset))
	for k, i := range subset {
		if i < 0 || i >= f.Len() {
			return 0, fmt.Errorf("phase locking value: oscillator %d: %w", i, models.ErrIndexOutOfRange)
		}
		phases[k] = f.phases[i]
	}
	r, _ := vecmath.MeanPhase(phases)
	return r, nil
}

// Perturb kicks every phase by an offset drawn uniformly from
// [−intensity·π, intensity·π). It scatters an existing synchronization so the
// field can settle into a new configuration. Frequencies are not touched.
func (f *Field) Perturb(intensity float64, rng *rand.Rand) error {
	if err := models.CheckScalar("intensity", intensity); err != nil {
		return fmt.Errorf("perturb: %w", err)
	}
	if intensity < 0 {
		return fmt.Errorf("perturb: intensity must be non-negative, got %v", intensity)
	}
	for i, p := range f.phases {
		kick := (2*rng.Float64() - 1) * intensity * math.Pi
		f.phases[i] = vecmath.WrapPhase(p + kick)
	}
	return nil
}
