package coupling

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/kuramap/internal/lattice"
	"github.com/nvandessel/kuramap/internal/models"
	"github.com/nvandessel/kuramap/internal/oscillator"
)

// SingletonCoherence is the coherence reported for a cluster that contains
// only its center unit (or nothing at all, for a non-positive radius).
const SingletonCoherence = 0.0

// Config selects and parameterizes a Bridge.
type Config struct {
	// Mode is the direction of influence between lattice and field.
	Mode Mode

	// Radius is the lattice distance below which two units are coupled.
	Radius float64

	// Explicit, when non-nil, replaces the radius rule as the adjacency.
	// It cannot be combined with Dynamic.
	Explicit *Matrix

	// Dynamic recomputes a feature-affinity adjacency on every Refresh.
	// Only meaningful with ModeFeatureDriven.
	Dynamic bool

	// AffinitySigma is the feature-space bandwidth for Dynamic coupling.
	AffinitySigma float64

	// FeedbackRate is the learning rate for ModeOscillatorDriven feedback.
	FeedbackRate float64

	// FeedbackRadius is the neighborhood radius for feedback updates.
	FeedbackRadius float64

	// Neighborhood is the kind used for feedback updates.
	Neighborhood lattice.NeighborhoodKind
}

// Bridge borrows a lattice and a field of the same size and couples them
// according to its Config. It owns neither.
type Bridge struct {
	cfg      Config
	lat      *lattice.Lattice
	field    *oscillator.Field
	geometry *RadiusRule
	adj      oscillator.Adjacency
	feature  []float64
}

// NewBridge validates that lat and field agree in size and builds the
// initial adjacency.
func NewBridge(lat *lattice.Lattice, field *oscillator.Field, cfg Config) (*Bridge, error) {
	if lat == nil || field == nil {
		return nil, fmt.Errorf("new bridge: lattice and field are required")
	}
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("new bridge: unknown coupling mode %d", int(cfg.Mode))
	}
	if field.Len() != lat.Size() {
		return nil, fmt.Errorf("new bridge: field: %w", &models.DimensionError{Want: lat.Size(), Got: field.Len()})
	}
	if cfg.Explicit != nil && cfg.Dynamic {
		return nil, fmt.Errorf("new bridge: explicit and dynamic adjacency cannot be mixed")
	}
	if cfg.Dynamic && cfg.Mode != ModeFeatureDriven {
		return nil, fmt.Errorf("new bridge: dynamic adjacency requires %s mode, got %s", ModeFeatureDriven, cfg.Mode)
	}
	if cfg.Dynamic && (cfg.AffinitySigma <= 0 || math.IsNaN(cfg.AffinitySigma) || math.IsInf(cfg.AffinitySigma, 0)) {
		return nil, fmt.Errorf("new bridge: affinity sigma must be positive, got %v", cfg.AffinitySigma)
	}

	geometry, err := NewRadiusRule(lat.Rows(), lat.Cols(), cfg.Radius)
	if err != nil {
		return nil, fmt.Errorf("new bridge: %w", err)
	}

	b := &Bridge{
		cfg:      cfg,
		lat:      lat,
		field:    field,
		geometry: geometry,
		adj:      geometry,
		feature:  make([]float64, lat.Dim()),
	}

	switch {
	case cfg.Explicit != nil:
		if cfg.Explicit.Len() != lat.Size() {
			return nil, fmt.Errorf("new bridge: explicit adjacency: %w", &models.DimensionError{Want: lat.Size(), Got: cfg.Explicit.Len()})
		}
		b.adj = cfg.Explicit
	case cfg.Dynamic:
		if err := b.Refresh(); err != nil {
			return nil, fmt.Errorf("new bridge: %w", err)
		}
	}
	return b, nil
}

// Mode returns the configured mode.
func (b *Bridge) Mode() Mode { return b.cfg.Mode }

// Adjacency returns the adjacency currently in effect.
func (b *Bridge) Adjacency() oscillator.Adjacency { return b.adj }

// Refresh recomputes the feature-affinity adjacency from the current
// weights. It is a no-op unless the bridge is dynamic.
func (b *Bridge) Refresh() error {
	if !b.cfg.Dynamic {
		return nil
	}
	m, err := AffinityMatrix(b.lat, b.geometry, b.cfg.AffinitySigma)
	if err != nil {
		return fmt.Errorf("refresh adjacency: %w", err)
	}
	b.adj = m
	return nil
}

// Tick advances the field one step over the bridge's adjacency and, in
// ModeOscillatorDriven, feeds every unit's new phase back into the lattice
// at its own coordinate, in row-major order.
//
// A failed field step leaves both sides untouched. A failed feedback update
// stops the pass; units before it keep their update.
func (b *Bridge) Tick(dt, k, noiseStd float64, rng *rand.Rand) error {
	if err := b.field.Step(dt, b.adj, k, noiseStd, rng); err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	if b.cfg.Mode != ModeOscillatorDriven {
		return nil
	}

	phases := b.field.Phases()
	for i, theta := range phases {
		PhaseFeature(b.feature, theta)
		c := b.lat.CoordOf(i)
		if err := b.lat.Update(c, b.feature, b.cfg.FeedbackRate, b.cfg.FeedbackRadius, b.cfg.Neighborhood); err != nil {
			return fmt.Errorf("tick: feedback at %s: %w", c, err)
		}
	}
	return nil
}

// ClusterCoherence returns the phase-locking value over every unit within
// radius of bmu, bmu included. When the cluster holds fewer than two units
// the result is SingletonCoherence.
func (b *Bridge) ClusterCoherence(bmu models.Coord, radius float64) (float64, error) {
	if !b.lat.Contains(bmu) {
		return 0, fmt.Errorf("cluster coherence: bmu %s: %w", bmu, models.ErrIndexOutOfRange)
	}
	if err := models.CheckScalar("radius", radius); err != nil {
		return 0, fmt.Errorf("cluster coherence: %w", err)
	}

	cluster := b.lat.Within(bmu, radius)
	if len(cluster) < 2 {
		return SingletonCoherence, nil
	}
	indices := make([]int, len(cluster))
	for k, c := range cluster {
		indices[k] = b.lat.Index(c)
	}
	plv, err := b.field.PhaseLockingValue(indices)
	if err != nil {
		return 0, fmt.Errorf("cluster coherence: %w", err)
	}
	return plv, nil
}

// SyncMap returns ClusterCoherence evaluated at every unit, in row-major
// order.
func (b *Bridge) SyncMap(radius float64) ([]float64, error) {
	out := make([]float64, b.lat.Size())
	for i := range out {
		v, err := b.ClusterCoherence(b.lat.CoordOf(i), radius)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
