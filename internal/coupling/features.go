package coupling

import (
	"math"

	"github.com/nvandessel/kuramap/internal/lattice"
)

// FeatureFrequencies projects every unit's weight vector to its mean
// component and min-max scales the projections into [minFreq, maxFreq].
// When all projections are equal every unit gets the midpoint.
func FeatureFrequencies(l *lattice.Lattice, minFreq, maxFreq float64) []float64 {
	means := l.UnitMeans()

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, m := range means {
		lo = math.Min(lo, m)
		hi = math.Max(hi, m)
	}

	out := make([]float64, len(means))
	span := hi - lo
	for i, m := range means {
		if span == 0 {
			out[i] = (minFreq + maxFreq) / 2
			continue
		}
		out[i] = minFreq + (maxFreq-minFreq)*(m-lo)/span
	}
	return out
}

// PhaseFeature writes the feature vector synthesized from phase theta into
// dst: even components carry (1+cos θ)/2 and odd components (1+sin θ)/2, so
// every component lies in [0, 1] like a freshly initialized weight.
func PhaseFeature(dst []float64, theta float64) {
	c := (1 + math.Cos(theta)) / 2
	s := (1 + math.Sin(theta)) / 2
	for k := range dst {
		if k%2 == 0 {
			dst[k] = c
		} else {
			dst[k] = s
		}
	}
}

// AffinityMatrix combines the lattice geometry with feature-space proximity:
// A[i][j] = geometry(i, j) · exp(−‖wᵢ − wⱼ‖² / (2σ²)). The result is
// symmetric, non-negative and zero on the diagonal whenever geometry is.
func AffinityMatrix(l *lattice.Lattice, geometry *RadiusRule, sigma float64) (*Matrix, error) {
	n := l.Size()
	data := make([]float64, n*n)
	denom := 2 * sigma * sigma
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			g := geometry.At(i, j)
			if g == 0 {
				continue
			}
			a := g * math.Exp(-l.UnitSquaredDistance(i, j)/denom)
			data[i*n+j] = a
			data[j*n+i] = a
		}
	}
	return NewMatrix(n, data)
}
