// Package coupling connects the lattice's competitive-learning geometry to
// the oscillator field's coupling structure.
//
// Two adjacency representations exist, and an engine uses exactly one:
// an explicit Matrix, or the implicit RadiusRule over lattice coordinates.
// The Bridge owns the choice and the direction of influence (see Mode).
package coupling

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/nvandessel/kuramap/internal/models"
)

// Matrix is an explicit symmetric, non-negative adjacency with a zero
// diagonal. It is immutable once built.
type Matrix struct {
	sym        *mat.SymDense
	meanDegree float64
}

// NewMatrix builds an n×n adjacency from row-major data. data is copied.
// It rejects asymmetric, negative, non-finite and non-zero-diagonal entries.
func NewMatrix(n int, data []float64) (*Matrix, error) {
	if n <= 0 {
		return nil, fmt.Errorf("new matrix: %w: size %d", models.ErrInvalidGridShape, n)
	}
	if len(data) != n*n {
		return nil, fmt.Errorf("new matrix: %w", &models.DimensionError{Want: n * n, Got: len(data)})
	}
	if err := models.CheckFinite("adjacency", data); err != nil {
		return nil, fmt.Errorf("new matrix: %w", err)
	}
	for i := 0; i < n; i++ {
		if data[i*n+i] != 0 {
			return nil, fmt.Errorf("new matrix: diagonal entry (%d,%d) must be zero, got %v", i, i, data[i*n+i])
		}
		for j := i + 1; j < n; j++ {
			a, b := data[i*n+j], data[j*n+i]
			if a != b {
				return nil, fmt.Errorf("new matrix: entries (%d,%d)=%v and (%d,%d)=%v are not symmetric", i, j, a, j, i, b)
			}
			if a < 0 {
				return nil, fmt.Errorf("new matrix: entry (%d,%d) must be non-negative, got %v", i, j, a)
			}
		}
	}

	buf := make([]float64, len(data))
	copy(buf, data)
	return fromSym(mat.NewSymDense(n, buf)), nil
}

// FullyConnected builds an n×n adjacency with weight w on every
// off-diagonal entry.
func FullyConnected(n int, w float64) (*Matrix, error) {
	if n <= 0 {
		return nil, fmt.Errorf("fully connected: %w: size %d", models.ErrInvalidGridShape, n)
	}
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return nil, fmt.Errorf("fully connected: weight must be finite and non-negative, got %v", w)
	}
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				data[i*n+j] = w
			}
		}
	}
	return fromSym(mat.NewSymDense(n, data)), nil
}

// fromSym caches the mean degree, computed as mean(A·1).
func fromSym(sym *mat.SymDense) *Matrix {
	n := sym.SymmetricDim()
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	var degrees mat.VecDense
	degrees.MulVec(sym, mat.NewVecDense(n, ones))
	return &Matrix{
		sym:        sym,
		meanDegree: mat.Sum(&degrees) / float64(n),
	}
}

// Len implements oscillator.Adjacency.
func (m *Matrix) Len() int { return m.sym.SymmetricDim() }

// At implements oscillator.Adjacency.
func (m *Matrix) At(i, j int) float64 { return m.sym.At(i, j) }

// MeanDegree implements oscillator.Adjacency.
func (m *Matrix) MeanDegree() float64 { return m.meanDegree }

// Degree returns the row sum for oscillator i.
func (m *Matrix) Degree(i int) float64 {
	var sum float64
	for j := 0; j < m.Len(); j++ {
		sum += m.sym.At(i, j)
	}
	return sum
}
