package lattice

import (
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/nvandessel/kuramap/internal/models"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// knownGrid builds the 2×2 grid
//
//	(0,0)=[0,0] (0,1)=[0,1]
//	(1,0)=[1,0] (1,1)=[1,1]
func knownGrid(t *testing.T) *Lattice {
	t.Helper()
	l, err := New(2, 2, 2)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			if err := l.SetWeight(models.Coord{Row: r, Col: c}, []float64{float64(r), float64(c)}); err != nil {
				t.Fatalf("SetWeight() error = %v", err)
			}
		}
	}
	return l
}

func TestNew_InvalidShape(t *testing.T) {
	tests := []struct {
		name            string
		rows, cols, dim int
	}{
		{"zero rows", 0, 3, 2},
		{"zero cols", 3, 0, 2},
		{"negative rows", -1, 3, 2},
		{"zero dim", 3, 3, 0},
		{"unit count overflows", math.MaxInt/2 + 1, 2, 1},
		{"weight count overflows", math.MaxInt / 4, 2, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.rows, tt.cols, tt.dim)
			if !errors.Is(err, models.ErrInvalidGridShape) {
				t.Errorf("expected ErrInvalidGridShape, got %v", err)
			}
		})
	}
}

func TestNewRandom_Range(t *testing.T) {
	l, err := NewRandom(3, 4, 5, newRNG(1))
	if err != nil {
		t.Fatalf("NewRandom() error = %v", err)
	}
	if l.Size() != 12 || l.Dim() != 5 {
		t.Fatalf("unexpected shape: size=%d dim=%d", l.Size(), l.Dim())
	}
	for i, w := range l.Weights() {
		for _, v := range w {
			if v < 0 || v >= 1 {
				t.Errorf("unit %d component %v outside [0, 1)", i, v)
			}
		}
	}
}

func TestBMU_ExactMatch(t *testing.T) {
	l := knownGrid(t)

	coord, dist, err := l.BMU([]float64{1, 1})
	if err != nil {
		t.Fatalf("BMU() error = %v", err)
	}
	if coord != (models.Coord{Row: 1, Col: 1}) {
		t.Errorf("BMU() = %v, want (1,1)", coord)
	}
	if dist != 0 {
		t.Errorf("distance = %v, want 0", dist)
	}
}

func TestBMU_TieBreakRowMajor(t *testing.T) {
	l := knownGrid(t)

	// Equidistant from all four units.
	coord, _, err := l.BMU([]float64{0.5, 0.5})
	if err != nil {
		t.Fatalf("BMU() error = %v", err)
	}
	if coord != (models.Coord{Row: 0, Col: 0}) {
		t.Errorf("tie resolved to %v, want (0,0)", coord)
	}

	// Equidistant from (0,1) and (1,1) only.
	coord, _, err = l.BMU([]float64{0.5, 1})
	if err != nil {
		t.Fatalf("BMU() error = %v", err)
	}
	if coord != (models.Coord{Row: 0, Col: 1}) {
		t.Errorf("tie resolved to %v, want (0,1)", coord)
	}
}

func TestBMU_MatchesBruteForce(t *testing.T) {
	rng := newRNG(42)
	l, err := NewRandom(5, 6, 3, rng)
	if err != nil {
		t.Fatalf("NewRandom() error = %v", err)
	}
	weights := l.Weights()

	for trial := 0; trial < 200; trial++ {
		x := []float64{rng.Float64(), rng.Float64(), rng.Float64()}

		best, bestDist := 0, math.Inf(1)
		for i, w := range weights {
			d := math.Sqrt((w[0]-x[0])*(w[0]-x[0]) + (w[1]-x[1])*(w[1]-x[1]) + (w[2]-x[2])*(w[2]-x[2]))
			if d < bestDist {
				best, bestDist = i, d
			}
		}

		coord, dist, err := l.BMU(x)
		if err != nil {
			t.Fatalf("BMU() error = %v", err)
		}
		if l.Index(coord) != best {
			t.Fatalf("trial %d: BMU() = %v, brute force = %v", trial, coord, l.CoordOf(best))
		}
		if math.Abs(dist-bestDist) > 1e-12 {
			t.Fatalf("trial %d: distance %v, brute force %v", trial, dist, bestDist)
		}
	}
}

func TestBMU_RejectsBadInput(t *testing.T) {
	l := knownGrid(t)

	if _, _, err := l.BMU([]float64{1, 2, 3}); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, _, err := l.BMU([]float64{math.NaN(), 0}); !errors.Is(err, models.ErrDegenerateNumeric) {
		t.Errorf("expected ErrDegenerateNumeric, got %v", err)
	}
}

func TestUpdate_GaussianMovesTowardInput(t *testing.T) {
	l, err := New(1, 3, 1)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	x := []float64{1}
	if err := l.Update(models.Coord{Row: 0, Col: 0}, x, 0.5, 1, Gaussian); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got := l.Weights()
	want := []float64{
		0.5,
		0.5 * math.Exp(-0.5),
		0.5 * math.Exp(-2),
	}
	for i := range want {
		if math.Abs(got[i][0]-want[i]) > 1e-12 {
			t.Errorf("unit %d = %v, want %v", i, got[i][0], want[i])
		}
	}
}

func TestUpdate_HardCutoff(t *testing.T) {
	l, err := New(3, 3, 1)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	center := models.Coord{Row: 1, Col: 1}
	if err := l.Update(center, []float64{1}, 1, 1.1, HardCutoff); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	for i, w := range l.Weights() {
		c := l.CoordOf(i)
		inside := l.GridDistance(center, c) < 1.1
		if inside && w[0] != 1 {
			t.Errorf("unit %v inside radius = %v, want 1", c, w[0])
		}
		if !inside && w[0] != 0 {
			t.Errorf("unit %v outside radius = %v, want 0", c, w[0])
		}
	}
}

func TestUpdate_WrongDimensionLeavesWeightsUnchanged(t *testing.T) {
	l, err := NewRandom(4, 4, 2, newRNG(7))
	if err != nil {
		t.Fatalf("NewRandom() error = %v", err)
	}
	before := l.Weights()

	err = l.Update(models.Coord{Row: 0, Col: 0}, []float64{1, 2, 3}, 0.5, 2, Gaussian)
	if !errors.Is(err, models.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	var de *models.DimensionError
	if !errors.As(err, &de) || de.Want != 2 || de.Got != 3 {
		t.Errorf("expected DimensionError{2, 3}, got %v", err)
	}

	if !reflect.DeepEqual(before, l.Weights()) {
		t.Error("weights changed after failed update")
	}
}

func TestUpdate_RejectsDegenerateParameters(t *testing.T) {
	l, err := NewRandom(2, 2, 2, newRNG(3))
	if err != nil {
		t.Fatalf("NewRandom() error = %v", err)
	}
	before := l.Weights()
	origin := models.Coord{}

	tests := []struct {
		name   string
		bmu    models.Coord
		x      []float64
		lr     float64
		radius float64
		kind   NeighborhoodKind
		target error
	}{
		{"nan input", origin, []float64{math.NaN(), 0}, 0.1, 1, Gaussian, models.ErrDegenerateNumeric},
		{"inf learning rate", origin, []float64{0, 0}, math.Inf(1), 1, Gaussian, models.ErrDegenerateNumeric},
		{"nan radius", origin, []float64{0, 0}, 0.1, math.NaN(), Gaussian, models.ErrDegenerateNumeric},
		{"overflowing update", origin, []float64{1e308, 0}, 1e10, 1, Gaussian, models.ErrDegenerateNumeric},
		{"bmu off grid", models.Coord{Row: 5}, []float64{0, 0}, 0.1, 1, Gaussian, models.ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Update(tt.bmu, tt.x, tt.lr, tt.radius, tt.kind)
			if !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
			if !reflect.DeepEqual(before, l.Weights()) {
				t.Error("weights changed after failed update")
			}
		})
	}

	if err := l.Update(origin, []float64{0, 0}, 0.1, -1, Gaussian); err == nil {
		t.Error("expected error for negative radius")
	}
	if err := l.Update(origin, []float64{0, 0}, 0.1, 1, NeighborhoodKind(7)); err == nil {
		t.Error("expected error for unknown neighborhood kind")
	}
}

func TestUpdate_WorkersDoNotChangeResult(t *testing.T) {
	run := func(workers int) [][]float64 {
		rng := newRNG(99)
		l, err := NewRandom(6, 7, 3, rng, WithWorkers(workers))
		if err != nil {
			t.Fatalf("NewRandom() error = %v", err)
		}
		for step := 0; step < 50; step++ {
			x := []float64{rng.Float64(), rng.Float64(), rng.Float64()}
			bmu, _, err := l.BMU(x)
			if err != nil {
				t.Fatalf("BMU() error = %v", err)
			}
			if err := l.Update(bmu, x, 0.3, 2, Gaussian); err != nil {
				t.Fatalf("Update() error = %v", err)
			}
		}
		return l.Weights()
	}

	serial := run(1)
	for _, workers := range []int{2, 4, 16} {
		if !reflect.DeepEqual(serial, run(workers)) {
			t.Errorf("workers=%d produced different weights than serial run", workers)
		}
	}
}

func TestQuantizationError(t *testing.T) {
	l := knownGrid(t)

	qe, err := l.QuantizationError(nil)
	if err != nil || qe != 0 {
		t.Errorf("empty samples: got (%v, %v), want (0, nil)", qe, err)
	}

	samples := [][]float64{{0, 0}, {1, 1}, {0, 0.5}, {1.25, 0}}
	qe, err = l.QuantizationError(samples)
	if err != nil {
		t.Fatalf("QuantizationError() error = %v", err)
	}
	want := (0 + 0 + 0.5 + 0.25) / 4
	if math.Abs(qe-want) > 1e-12 {
		t.Errorf("QuantizationError() = %v, want %v", qe, want)
	}

	if _, err := l.QuantizationError([][]float64{{1}}); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestHits(t *testing.T) {
	l := knownGrid(t)
	hits, err := l.Hits([][]float64{{0, 0}, {0.1, 0}, {1, 1}})
	if err != nil {
		t.Fatalf("Hits() error = %v", err)
	}
	want := []int{2, 0, 0, 1}
	if !reflect.DeepEqual(hits, want) {
		t.Errorf("Hits() = %v, want %v", hits, want)
	}
}

func TestWithin(t *testing.T) {
	l, err := New(3, 3, 1)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name   string
		center models.Coord
		radius float64
		want   int
	}{
		{"zero radius", models.Coord{Row: 1, Col: 1}, 0, 0},
		{"self only", models.Coord{Row: 1, Col: 1}, 1, 1},
		{"four neighbors", models.Coord{Row: 1, Col: 1}, 1.1, 5},
		{"eight neighbors", models.Coord{Row: 1, Col: 1}, 1.5, 9},
		{"corner", models.Coord{Row: 0, Col: 0}, 1.5, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.Within(tt.center, tt.radius)
			if len(got) != tt.want {
				t.Errorf("Within(%v, %v) returned %d units, want %d", tt.center, tt.radius, len(got), tt.want)
			}
		})
	}
}

func TestWeightAccessors(t *testing.T) {
	l := knownGrid(t)

	w, err := l.Weight(models.Coord{Row: 1, Col: 0})
	if err != nil {
		t.Fatalf("Weight() error = %v", err)
	}
	w[0] = 99
	again, _ := l.Weight(models.Coord{Row: 1, Col: 0})
	if again[0] != 1 {
		t.Error("Weight() returned an alias into lattice storage")
	}

	if _, err := l.Weight(models.Coord{Row: 2, Col: 0}); !errors.Is(err, models.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	if err := l.SetWeight(models.Coord{}, []float64{1}); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}

	means := l.UnitMeans()
	if !reflect.DeepEqual(means, []float64{0, 0.5, 0.5, 1}) {
		t.Errorf("UnitMeans() = %v", means)
	}
	if d := l.UnitSquaredDistance(0, 3); d != 2 {
		t.Errorf("UnitSquaredDistance(0, 3) = %v, want 2", d)
	}
}
