package coupling

import (
	"fmt"
	"math"

	"github.com/nvandessel/kuramap/internal/models"
	"github.com/nvandessel/kuramap/internal/vecmath"
)

// RadiusRule is the implicit lattice adjacency: units i and j are coupled
// with weight 1 when 0 < gridDistance(i, j) < radius. Oscillator indices are
// row-major lattice indices.
type RadiusRule struct {
	rows       int
	cols       int
	radius     float64
	meanDegree float64
}

// NewRadiusRule builds the rule for a rows×cols lattice. A radius of 1.1
// gives the 4-neighborhood; 1.5 gives the 8-neighborhood.
func NewRadiusRule(rows, cols int, radius float64) (*RadiusRule, error) {
	if err := models.CheckGridShape(rows, cols, 1); err != nil {
		return nil, fmt.Errorf("radius rule: %w", err)
	}
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius < 0 {
		return nil, fmt.Errorf("radius rule: radius must be finite and non-negative, got %v", radius)
	}

	r := &RadiusRule{rows: rows, cols: cols, radius: radius}
	n := rows * cols
	var total float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			total += r.At(i, j)
		}
	}
	r.meanDegree = total / float64(n)
	return r, nil
}

// Len implements oscillator.Adjacency.
func (r *RadiusRule) Len() int { return r.rows * r.cols }

// At implements oscillator.Adjacency.
func (r *RadiusRule) At(i, j int) float64 {
	if i == j {
		return 0
	}
	d := vecmath.GridDistance(i/r.cols, i%r.cols, j/r.cols, j%r.cols)
	if d < r.radius {
		return 1
	}
	return 0
}

// MeanDegree implements oscillator.Adjacency.
func (r *RadiusRule) MeanDegree() float64 { return r.meanDegree }

// Radius returns the coupling radius.
func (r *RadiusRule) Radius() float64 { return r.radius }
