package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when a vector or matrix does not have
	// the size the receiver was built with.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidGridShape is returned when a lattice is constructed with a
	// non-positive number of rows, columns or feature dimensions.
	ErrInvalidGridShape = errors.New("invalid grid shape")

	// ErrEmptySubset is returned when a phase-locking value is requested
	// over zero oscillators.
	ErrEmptySubset = errors.New("empty oscillator subset")

	// ErrDegenerateNumeric is returned when an input or a computed value is
	// NaN or infinite.
	ErrDegenerateNumeric = errors.New("degenerate numeric value")

	// ErrIndexOutOfRange is returned for coordinates or oscillator indices
	// outside the grid.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// DimensionError describes a size mismatch. It matches ErrDimensionMismatch
// under errors.Is.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: want %d, got %d", e.Want, e.Got)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// NumericError describes a NaN or Inf found in Field at Index.
// Index is -1 for scalar parameters.
type NumericError struct {
	Field string
	Index int
	Value float64
}

func (e *NumericError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("degenerate numeric value in %s: %v", e.Field, e.Value)
	}
	return fmt.Sprintf("degenerate numeric value in %s[%d]: %v", e.Field, e.Index, e.Value)
}

func (e *NumericError) Unwrap() error { return ErrDegenerateNumeric }
