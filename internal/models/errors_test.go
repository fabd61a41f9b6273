package models

import (
	"errors"
	"math"
	"testing"
)

func TestDimensionError_Is(t *testing.T) {
	var err error = &DimensionError{Want: 3, Got: 2}
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Error("expected DimensionError to match ErrDimensionMismatch")
	}
	if errors.Is(err, ErrDegenerateNumeric) {
		t.Error("DimensionError should not match ErrDegenerateNumeric")
	}
	if got := err.Error(); got != "dimension mismatch: want 3, got 2" {
		t.Errorf("Error() = %q", got)
	}
}

func TestCheckFinite(t *testing.T) {
	tests := []struct {
		name      string
		v         []float64
		wantErr   bool
		wantIndex int
	}{
		{"all finite", []float64{0, 1.5, -2}, false, 0},
		{"empty", nil, false, 0},
		{"nan", []float64{1, math.NaN()}, true, 1},
		{"pos inf", []float64{math.Inf(1), 0}, true, 0},
		{"neg inf", []float64{0, 0, math.Inf(-1)}, true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFinite("x", tt.v)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckFinite() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, ErrDegenerateNumeric) {
				t.Errorf("expected ErrDegenerateNumeric, got %v", err)
			}
			var ne *NumericError
			if !errors.As(err, &ne) {
				t.Fatalf("expected *NumericError, got %T", err)
			}
			if ne.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", ne.Index, tt.wantIndex)
			}
		})
	}
}

func TestCheckScalar(t *testing.T) {
	if err := CheckScalar("dt", 0.01); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := CheckScalar("dt", math.NaN())
	if !errors.Is(err, ErrDegenerateNumeric) {
		t.Errorf("expected ErrDegenerateNumeric, got %v", err)
	}
}

func TestCheckGridShape(t *testing.T) {
	tests := []struct {
		name            string
		rows, cols, dim int
		wantErr         bool
	}{
		{"valid", 4, 4, 2, false},
		{"single unit", 1, 1, 1, false},
		{"zero rows", 0, 4, 2, true},
		{"negative cols", 4, -1, 2, true},
		{"zero dim", 4, 4, 0, true},
		{"rows times cols overflows", math.MaxInt/2 + 1, 2, 1, true},
		{"times dim overflows", math.MaxInt / 8, 2, 8, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckGridShape(tt.rows, tt.cols, tt.dim)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckGridShape() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidGridShape) {
				t.Errorf("error = %v, want ErrInvalidGridShape", err)
			}
		})
	}
}

func TestCoordString(t *testing.T) {
	if got := (Coord{Row: 1, Col: 2}).String(); got != "(1,2)" {
		t.Errorf("String() = %q, want (1,2)", got)
	}
}
