// Package vecmath provides the small set of float64 vector and angle helpers
// shared by the lattice, oscillator and coupling packages.
package vecmath

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TwoPi is 2π.
const TwoPi = 2 * math.Pi

// SquaredDistance returns the squared Euclidean distance between a and b.
// Both slices must have the same length.
func SquaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Distance returns the Euclidean distance between a and b.
// Returns 0 for empty vectors.
func Distance(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	return floats.Distance(a, b, 2)
}

// Mean returns the arithmetic mean of v, or 0 for an empty slice.
func Mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return stat.Mean(v, nil)
}

// MoveToward computes dst + alpha*(x - dst) into out. scratch must have the
// same length as dst; out may alias dst.
func MoveToward(out, dst, x []float64, alpha float64, scratch []float64) {
	if len(dst) == 0 {
		return
	}
	floats.SubTo(scratch, x, dst)
	if &out[0] != &dst[0] {
		copy(out, dst)
	}
	floats.AddScaled(out, alpha, scratch)
}

// GridDistance returns the Euclidean distance between two lattice
// coordinates in index space.
func GridDistance(r1, c1, r2, c2 int) float64 {
	dr := float64(r1 - r2)
	dc := float64(c1 - c2)
	return math.Sqrt(dr*dr + dc*dc)
}

// WrapPhase normalizes an angle in radians to [0, 2π).
func WrapPhase(theta float64) float64 {
	theta = math.Mod(theta, TwoPi)
	if theta < 0 {
		theta += TwoPi
	}
	// Mod of a tiny negative value can round back up to exactly 2π.
	if theta >= TwoPi {
		theta = 0
	}
	return theta
}

// MeanPhase returns the magnitude and angle of the mean unit phasor of the
// given phases. The angle is normalized to [0, 2π) and the magnitude clamped
// to [0, 1]. Both are 0 for an empty input.
func MeanPhase(phases []float64) (r, psi float64) {
	if len(phases) == 0 {
		return 0, 0
	}
	var sumCos, sumSin float64
	for _, p := range phases {
		sumCos += math.Cos(p)
		sumSin += math.Sin(p)
	}
	n := float64(len(phases))
	re, im := sumCos/n, sumSin/n
	r = math.Hypot(re, im)
	if r > 1 {
		r = 1
	}
	return r, WrapPhase(math.Atan2(im, re))
}
