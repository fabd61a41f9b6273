// Package visualization renders lattice state in text formats: ASCII glyph
// maps for terminals, and Graphviz DOT or JSON for the coupling graph.
package visualization

import (
	"fmt"
	"math"
	"strings"

	"github.com/nvandessel/kuramap/internal/constants"
	"github.com/nvandessel/kuramap/internal/models"
	"github.com/nvandessel/kuramap/internal/vecmath"
)

// Format specifies the output format for map rendering.
type Format string

const (
	FormatASCII Format = "ascii"
	FormatDOT   Format = "dot"
	FormatJSON  Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatASCII, FormatDOT, FormatJSON:
		return f, nil
	case "":
		return FormatASCII, nil
	default:
		return "", fmt.Errorf("unknown format: %q (valid: ascii, dot, json)", s)
	}
}

func checkGrid(n, rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("%w: rows=%d cols=%d", models.ErrInvalidGridShape, rows, cols)
	}
	if n != rows*cols {
		return &models.DimensionError{Want: rows * cols, Got: n}
	}
	return nil
}

// glyph maps frac in [0, 1] onto the glyph ramp.
func glyph(frac float64) byte {
	ramp := constants.PhaseGlyphs
	if math.IsNaN(frac) {
		return '?'
	}
	i := int(frac * float64(len(ramp)))
	return ramp[max(0, min(i, len(ramp)-1))]
}

func render(values []float64, rows, cols int, frac func(float64) float64) string {
	var b strings.Builder
	b.Grow(rows * (cols + 1))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			b.WriteByte(glyph(frac(values[r*cols+c])))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// PhaseMap renders row-major phases as one glyph per unit, mapping
// [0, 2π) linearly onto the ramp.
func PhaseMap(phases []float64, rows, cols int) (string, error) {
	if err := checkGrid(len(phases), rows, cols); err != nil {
		return "", fmt.Errorf("phase map: %w", err)
	}
	return render(phases, rows, cols, func(theta float64) float64 {
		return vecmath.WrapPhase(theta) / vecmath.TwoPi
	}), nil
}

// ScalarMap renders row-major values scaled between their minimum and
// maximum. A constant map renders as the lowest glyph.
func ScalarMap(values []float64, rows, cols int) (string, error) {
	if err := checkGrid(len(values), rows, cols); err != nil {
		return "", fmt.Errorf("scalar map: %w", err)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	span := hi - lo
	return render(values, rows, cols, func(v float64) float64 {
		if span == 0 {
			return 0
		}
		return (v - lo) / span
	}), nil
}

// UnitMap renders values already in [0, 1], such as coherence, without
// rescaling.
func UnitMap(values []float64, rows, cols int) (string, error) {
	if err := checkGrid(len(values), rows, cols); err != nil {
		return "", fmt.Errorf("unit map: %w", err)
	}
	return render(values, rows, cols, func(v float64) float64 { return v }), nil
}

// HitMap renders per-unit BMU hit counts.
func HitMap(hits []int, rows, cols int) (string, error) {
	values := make([]float64, len(hits))
	for i, h := range hits {
		values[i] = float64(h)
	}
	return ScalarMap(values, rows, cols)
}
