// Package lattice implements the competitive-learning half of the engine: a
// fixed 2D grid of prototype vectors with nearest-unit search and
// neighborhood-weighted updates.
//
// Weights are stored row-major in one flat slice. Every mutating method
// computes into scratch space first and commits only when the whole new grid
// is finite, so a failed call leaves the lattice exactly as it was.
package lattice

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/kuramap/internal/models"
	"github.com/nvandessel/kuramap/internal/parallel"
	"github.com/nvandessel/kuramap/internal/vecmath"
)

// Lattice is a rows×cols grid of weight vectors of dimension dim.
// It is not safe for concurrent use.
type Lattice struct {
	rows    int
	cols    int
	dim     int
	workers int

	weights []float64 // unit i occupies weights[i*dim : (i+1)*dim]
	next    []float64 // update scratch, same layout as weights
	diff    []float64 // per-unit difference scratch
	dists   []float64 // per-unit squared distances for BMU search
}

// Option configures a Lattice at construction.
type Option func(*Lattice)

// WithWorkers sets how many goroutines share the per-unit compute pass of
// BMU and Update. Values <= 1 keep everything on the calling goroutine.
// Results do not depend on the worker count.
func WithWorkers(n int) Option {
	return func(l *Lattice) {
		l.workers = n
	}
}

// New creates a zero-initialized lattice.
// Returns ErrInvalidGridShape if rows, cols or dim is not positive or the
// weight count overflows.
func New(rows, cols, dim int, opts ...Option) (*Lattice, error) {
	if err := models.CheckGridShape(rows, cols, dim); err != nil {
		return nil, err
	}

	n := rows * cols
	l := &Lattice{
		rows:    rows,
		cols:    cols,
		dim:     dim,
		weights: make([]float64, n*dim),
		next:    make([]float64, n*dim),
		diff:    make([]float64, n*dim),
		dists:   make([]float64, n),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// NewRandom creates a lattice whose weight components are drawn uniformly
// from [0, 1) using rng, in row-major unit order.
func NewRandom(rows, cols, dim int, rng *rand.Rand, opts ...Option) (*Lattice, error) {
	l, err := New(rows, cols, dim, opts...)
	if err != nil {
		return nil, err
	}
	for i := range l.weights {
		l.weights[i] = rng.Float64()
	}
	return l, nil
}

// Rows returns the number of grid rows.
func (l *Lattice) Rows() int { return l.rows }

// Cols returns the number of grid columns.
func (l *Lattice) Cols() int { return l.cols }

// Dim returns the feature dimension D.
func (l *Lattice) Dim() int { return l.dim }

// Size returns rows*cols.
func (l *Lattice) Size() int { return l.rows * l.cols }

// Index returns the row-major unit index of c. It does not bounds-check.
func (l *Lattice) Index(c models.Coord) int { return c.Row*l.cols + c.Col }

// CoordOf returns the coordinate of row-major unit index i.
func (l *Lattice) CoordOf(i int) models.Coord {
	return models.Coord{Row: i / l.cols, Col: i % l.cols}
}

// Contains reports whether c lies on the grid.
func (l *Lattice) Contains(c models.Coord) bool {
	return c.Row >= 0 && c.Row < l.rows && c.Col >= 0 && c.Col < l.cols
}

// GridDistance returns the Euclidean distance between a and b in index space.
func (l *Lattice) GridDistance(a, b models.Coord) float64 {
	return vecmath.GridDistance(a.Row, a.Col, b.Row, b.Col)
}

func (l *Lattice) unit(i int) []float64 {
	return l.weights[i*l.dim : (i+1)*l.dim]
}

// Weight returns a copy of the weight vector at c.
func (l *Lattice) Weight(c models.Coord) ([]float64, error) {
	if !l.Contains(c) {
		return nil, fmt.Errorf("weight %s: %w", c, models.ErrIndexOutOfRange)
	}
	out := make([]float64, l.dim)
	copy(out, l.unit(l.Index(c)))
	return out, nil
}

// Weights returns a snapshot of all weight vectors in row-major unit order.
func (l *Lattice) Weights() [][]float64 {
	out := make([][]float64, l.Size())
	for i := range out {
		w := make([]float64, l.dim)
		copy(w, l.unit(i))
		out[i] = w
	}
	return out
}

// SetWeight overwrites the weight vector at c.
func (l *Lattice) SetWeight(c models.Coord, w []float64) error {
	if !l.Contains(c) {
		return fmt.Errorf("set weight %s: %w", c, models.ErrIndexOutOfRange)
	}
	if err := l.checkVector(w); err != nil {
		return fmt.Errorf("set weight %s: %w", c, err)
	}
	copy(l.unit(l.Index(c)), w)
	return nil
}

// checkVector validates the dimension and finiteness of an input vector.
func (l *Lattice) checkVector(x []float64) error {
	if len(x) != l.dim {
		return &models.DimensionError{Want: l.dim, Got: len(x)}
	}
	return models.CheckFinite("feature", x)
}

// BMU returns the coordinate of the best-matching unit for x and the
// Euclidean distance between x and that unit's weight vector. Exact ties
// resolve to the first unit in row-major order.
func (l *Lattice) BMU(x []float64) (models.Coord, float64, error) {
	if err := l.checkVector(x); err != nil {
		return models.Coord{}, 0, fmt.Errorf("bmu: %w", err)
	}
	i, d2, err := l.bmuIndex(x)
	if err != nil {
		return models.Coord{}, 0, fmt.Errorf("bmu: %w", err)
	}
	return l.CoordOf(i), math.Sqrt(d2), nil
}

// bmuIndex assumes x has been validated.
func (l *Lattice) bmuIndex(x []float64) (int, float64, error) {
	err := parallel.ForEach(l.Size(), l.workers, func(i int) error {
		l.dists[i] = vecmath.SquaredDistance(l.unit(i), x)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	best := 0
	for i := 1; i < len(l.dists); i++ {
		if l.dists[i] < l.dists[best] {
			best = i
		}
	}
	return best, l.dists[best], nil
}

// Update pulls every unit toward x by learningRate scaled by the
// neighborhood influence of its grid distance from bmu:
//
//	w[i,j] += learningRate * influence * (x - w[i,j])
//
// On error the weights are unchanged.
func (l *Lattice) Update(bmu models.Coord, x []float64, learningRate, radius float64, kind NeighborhoodKind) error {
	if !l.Contains(bmu) {
		return fmt.Errorf("update: bmu %s: %w", bmu, models.ErrIndexOutOfRange)
	}
	if err := l.checkVector(x); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if err := models.CheckScalar("learning_rate", learningRate); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if err := models.CheckScalar("radius", radius); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if radius < 0 {
		return fmt.Errorf("update: radius must be non-negative, got %v", radius)
	}
	if !kind.Valid() {
		return fmt.Errorf("update: unknown neighborhood kind %d", int(kind))
	}

	err := parallel.ForEach(l.Size(), l.workers, func(i int) error {
		lo, hi := i*l.dim, (i+1)*l.dim
		cur, out := l.weights[lo:hi], l.next[lo:hi]

		influence := kind.Influence(l.GridDistance(bmu, l.CoordOf(i)), radius)
		if influence == 0 {
			copy(out, cur)
			return nil
		}
		vecmath.MoveToward(out, cur, x, learningRate*influence, l.diff[lo:hi])
		if err := models.CheckFinite("weight", out); err != nil {
			return fmt.Errorf("unit %s: %w", l.CoordOf(i), err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	l.weights, l.next = l.next, l.weights
	return nil
}

// QuantizationError returns the mean Euclidean distance between each sample
// and its BMU weight vector. Returns 0 for an empty sample set.
func (l *Lattice) QuantizationError(samples [][]float64) (float64, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	errs := make([]float64, len(samples))
	for k, x := range samples {
		if err := l.checkVector(x); err != nil {
			return 0, fmt.Errorf("quantization error: sample %d: %w", k, err)
		}
		_, d2, err := l.bmuIndex(x)
		if err != nil {
			return 0, fmt.Errorf("quantization error: sample %d: %w", k, err)
		}
		errs[k] = math.Sqrt(d2)
	}
	return vecmath.Mean(errs), nil
}

// Hits returns, per unit in row-major order, how many samples have that
// unit as their BMU.
func (l *Lattice) Hits(samples [][]float64) ([]int, error) {
	hits := make([]int, l.Size())
	for k, x := range samples {
		if err := l.checkVector(x); err != nil {
			return nil, fmt.Errorf("hits: sample %d: %w", k, err)
		}
		i, _, err := l.bmuIndex(x)
		if err != nil {
			return nil, fmt.Errorf("hits: sample %d: %w", k, err)
		}
		hits[i]++
	}
	return hits, nil
}

// Within returns, in row-major order, every unit whose grid distance from
// center is strictly less than radius. center itself is included whenever
// radius > 0.
func (l *Lattice) Within(center models.Coord, radius float64) []models.Coord {
	var out []models.Coord
	for r := 0; r < l.rows; r++ {
		for c := 0; c < l.cols; c++ {
			if vecmath.GridDistance(center.Row, center.Col, r, c) < radius {
				out = append(out, models.Coord{Row: r, Col: c})
			}
		}
	}
	return out
}

// UnitMeans returns the mean component value of every unit's weight vector,
// in row-major order.
func (l *Lattice) UnitMeans() []float64 {
	out := make([]float64, l.Size())
	for i := range out {
		out[i] = vecmath.Mean(l.unit(i))
	}
	return out
}

// UnitSquaredDistance returns the squared feature-space distance between the
// weight vectors of units i and j.
func (l *Lattice) UnitSquaredDistance(i, j int) float64 {
	return vecmath.SquaredDistance(l.unit(i), l.unit(j))
}
