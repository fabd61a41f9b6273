package models

import (
	"fmt"
	"math"
)

// FeatureVector is a fixed-length ordered sequence of finite values fed to
// the lattice. Producers are responsible for supplying the dimension the
// lattice was built with; nothing in this module pads or truncates.
type FeatureVector = []float64

// Coord addresses a unit on the 2D lattice.
type Coord struct {
	Row int `json:"row" yaml:"row"`
	Col int `json:"col" yaml:"col"`
}

// String renders the coordinate as "(r,c)".
func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// CheckFinite returns a *NumericError for the first NaN or Inf component.
func CheckFinite(field string, v []float64) error {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return &NumericError{Field: field, Index: i, Value: x}
		}
	}
	return nil
}

// CheckScalar returns a *NumericError if x is NaN or Inf.
func CheckScalar(field string, x float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return &NumericError{Field: field, Index: -1, Value: x}
	}
	return nil
}

// CheckGridShape rejects a rows×cols lattice of dim-dimensional units whose
// sizes are not positive or whose weight count rows·cols·dim overflows int.
func CheckGridShape(rows, cols, dim int) error {
	if rows <= 0 || cols <= 0 || dim <= 0 {
		return fmt.Errorf("%w: rows=%d cols=%d dim=%d", ErrInvalidGridShape, rows, cols, dim)
	}
	if rows > math.MaxInt/cols || rows*cols > math.MaxInt/dim {
		return fmt.Errorf("%w: %dx%d lattice of dimension %d is too large", ErrInvalidGridShape, rows, cols, dim)
	}
	return nil
}
