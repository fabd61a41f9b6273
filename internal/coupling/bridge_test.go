package coupling

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/nvandessel/kuramap/internal/lattice"
	"github.com/nvandessel/kuramap/internal/models"
	"github.com/nvandessel/kuramap/internal/oscillator"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func newPair(t *testing.T, rows, cols, dim int, phases []float64) (*lattice.Lattice, *oscillator.Field) {
	t.Helper()
	l, err := lattice.NewRandom(rows, cols, dim, newRNG(1))
	if err != nil {
		t.Fatalf("NewRandom() error = %v", err)
	}
	n := rows * cols
	if phases == nil {
		phases = make([]float64, n)
	}
	freqs := make([]float64, n)
	for i := range freqs {
		freqs[i] = 1
	}
	f, err := oscillator.New(freqs, phases)
	if err != nil {
		t.Fatalf("oscillator.New() error = %v", err)
	}
	return l, f
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"none", ModeNone, false},
		{"", ModeNone, false},
		{"feature_driven", ModeFeatureDriven, false},
		{"Feature-Driven", ModeFeatureDriven, false},
		{"oscillator_driven", ModeOscillatorDriven, false},
		{"oscillator", ModeOscillatorDriven, false},
		{"both", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if !tt.wantErr {
				back, err := ParseMode(got.String())
				if err != nil || back != got {
					t.Errorf("ParseMode(%q.String()) = %v, %v", got, back, err)
				}
			}
		})
	}
}

func TestNewBridge_Validation(t *testing.T) {
	l, f := newPair(t, 3, 3, 2, nil)
	_, small := newPair(t, 2, 2, 2, nil)
	wrongSize, err := FullyConnected(4, 1)
	if err != nil {
		t.Fatal(err)
	}
	explicit, err := FullyConnected(9, 1)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		field   *oscillator.Field
		cfg     Config
		wantErr error
	}{
		{"field size mismatch", small, Config{Radius: 1.5}, models.ErrDimensionMismatch},
		{"explicit size mismatch", f, Config{Radius: 1.5, Explicit: wrongSize}, models.ErrDimensionMismatch},
		{"explicit with dynamic", f, Config{Mode: ModeFeatureDriven, Radius: 1.5, Explicit: explicit, Dynamic: true, AffinitySigma: 1}, nil},
		{"dynamic outside feature mode", f, Config{Mode: ModeNone, Radius: 1.5, Dynamic: true, AffinitySigma: 1}, nil},
		{"dynamic without sigma", f, Config{Mode: ModeFeatureDriven, Radius: 1.5, Dynamic: true}, nil},
		{"negative radius", f, Config{Radius: -1}, nil},
		{"unknown mode", f, Config{Mode: Mode(9), Radius: 1.5}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBridge(l, tt.field, tt.cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewBridge_AdjacencySelection(t *testing.T) {
	l, f := newPair(t, 3, 3, 2, nil)
	explicit, err := FullyConnected(9, 1)
	if err != nil {
		t.Fatal(err)
	}

	b, err := NewBridge(l, f, Config{Radius: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.Adjacency().(*RadiusRule); !ok {
		t.Errorf("default adjacency = %T, want *RadiusRule", b.Adjacency())
	}

	b, err = NewBridge(l, f, Config{Radius: 1.5, Explicit: explicit})
	if err != nil {
		t.Fatal(err)
	}
	if b.Adjacency() != explicit {
		t.Error("explicit adjacency not used")
	}

	b, err = NewBridge(l, f, Config{Mode: ModeFeatureDriven, Radius: 1.5, Dynamic: true, AffinitySigma: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.Adjacency().(*Matrix); !ok {
		t.Errorf("dynamic adjacency = %T, want *Matrix", b.Adjacency())
	}
}

func TestAffinityMatrix_Invariants(t *testing.T) {
	l, _ := newPair(t, 4, 4, 3, nil)
	geometry, err := NewRadiusRule(4, 4, 1.5)
	if err != nil {
		t.Fatal(err)
	}
	m, err := AffinityMatrix(l, geometry, 1)
	if err != nil {
		t.Fatalf("AffinityMatrix() error = %v", err)
	}

	for i := 0; i < m.Len(); i++ {
		if m.At(i, i) != 0 {
			t.Errorf("diagonal (%d,%d) = %v", i, i, m.At(i, i))
		}
		for j := 0; j < m.Len(); j++ {
			a := m.At(i, j)
			if a < 0 || a > 1 {
				t.Errorf("A(%d,%d) = %v outside [0,1]", i, j, a)
			}
			if a != m.At(j, i) {
				t.Errorf("A(%d,%d) != A(%d,%d)", i, j, j, i)
			}
			if geometry.At(i, j) == 0 && a != 0 {
				t.Errorf("A(%d,%d) = %v outside the geometry mask", i, j, a)
			}
		}
	}
}

func TestAffinityMatrix_IdenticalWeightsMatchGeometry(t *testing.T) {
	l, err := lattice.New(2, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	geometry, err := NewRadiusRule(2, 2, 1.5)
	if err != nil {
		t.Fatal(err)
	}
	m, err := AffinityMatrix(l, geometry, 1)
	if err != nil {
		t.Fatal(err)
	}
	if m.MeanDegree() != geometry.MeanDegree() {
		t.Errorf("MeanDegree() = %v, want %v", m.MeanDegree(), geometry.MeanDegree())
	}
}

func TestBridge_RefreshTracksWeights(t *testing.T) {
	l, err := lattice.New(1, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	f, err := oscillator.New([]float64{1, 1}, []float64{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewBridge(l, f, Config{Mode: ModeFeatureDriven, Radius: 1.5, Dynamic: true, AffinitySigma: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got := b.Adjacency().At(0, 1); got != 1 {
		t.Fatalf("initial A(0,1) = %v, want 1", got)
	}

	if err := l.SetWeight(models.Coord{Row: 0, Col: 1}, []float64{2}); err != nil {
		t.Fatal(err)
	}
	if err := b.Refresh(); err != nil {
		t.Fatal(err)
	}
	want := math.Exp(-4.0 / 2)
	if got := b.Adjacency().At(0, 1); math.Abs(got-want) > 1e-12 {
		t.Errorf("refreshed A(0,1) = %v, want %v", got, want)
	}
}

func TestBridge_TickFeatureDrivenLeavesWeights(t *testing.T) {
	l, f := newPair(t, 2, 2, 2, nil)
	before := l.Weights()
	b, err := NewBridge(l, f, Config{Mode: ModeFeatureDriven, Radius: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Tick(0.1, 1, 0, nil); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	after := l.Weights()
	for i := range before {
		for k := range before[i] {
			if before[i][k] != after[i][k] {
				t.Fatalf("weight[%d][%d] changed in feature-driven mode", i, k)
			}
		}
	}
	if f.Phase(0) == 0 {
		t.Error("phases did not advance")
	}
}

func TestBridge_TickOscillatorDrivenFeedsBack(t *testing.T) {
	l, err := lattice.New(1, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	f, err := oscillator.New([]float64{0, 0}, []float64{0, math.Pi / 2})
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewBridge(l, f, Config{
		Mode:           ModeOscillatorDriven,
		Radius:         0,
		FeedbackRate:   1,
		FeedbackRadius: 0.5,
		Neighborhood:   lattice.HardCutoff,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Tick(0.1, 0, 0, nil); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	// With zero frequency and no coupling the phases stay put, and a rate of
	// 1 copies the phase feature into each unit.
	tests := []struct {
		c    models.Coord
		want []float64
	}{
		{models.Coord{Row: 0, Col: 0}, []float64{1, 0.5}},
		{models.Coord{Row: 0, Col: 1}, []float64{0.5, 1}},
	}
	for _, tt := range tests {
		w, err := l.Weight(tt.c)
		if err != nil {
			t.Fatal(err)
		}
		for k := range w {
			if math.Abs(w[k]-tt.want[k]) > 1e-12 {
				t.Errorf("weight %s = %v, want %v", tt.c, w, tt.want)
				break
			}
		}
	}
}

func TestBridge_TickFailureLeavesState(t *testing.T) {
	l, f := newPair(t, 2, 2, 2, []float64{0.1, 0.2, 0.3, 0.4})
	b, err := NewBridge(l, f, Config{Mode: ModeOscillatorDriven, Radius: 1.5, FeedbackRate: 0.5, FeedbackRadius: 1})
	if err != nil {
		t.Fatal(err)
	}
	before := f.Phases()
	weights := l.Weights()

	if err := b.Tick(math.NaN(), 1, 0, nil); !errors.Is(err, models.ErrDegenerateNumeric) {
		t.Fatalf("Tick(NaN) error = %v, want ErrDegenerateNumeric", err)
	}
	for i, p := range f.Phases() {
		if p != before[i] {
			t.Fatalf("phase %d changed after failed tick", i)
		}
	}
	after := l.Weights()
	for i := range weights {
		for k := range weights[i] {
			if weights[i][k] != after[i][k] {
				t.Fatalf("weights changed after failed tick")
			}
		}
	}
}

func TestClusterCoherence(t *testing.T) {
	// 1×3 row: phases 0, 0, π.
	l, f := newPair(t, 1, 3, 2, []float64{0, 0, math.Pi})
	b, err := NewBridge(l, f, Config{Radius: 1.5})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		bmu    models.Coord
		radius float64
		want   float64
	}{
		{"singleton", models.Coord{Row: 0, Col: 0}, 0.5, SingletonCoherence},
		{"empty radius", models.Coord{Row: 0, Col: 0}, 0, SingletonCoherence},
		{"locked pair", models.Coord{Row: 0, Col: 0}, 1.5, 1},
		{"antiphase pair", models.Coord{Row: 0, Col: 2}, 1.1, 0},
		{"whole row", models.Coord{Row: 0, Col: 1}, 1.5, 1.0 / 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.ClusterCoherence(tt.bmu, tt.radius)
			if err != nil {
				t.Fatalf("ClusterCoherence() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("ClusterCoherence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClusterCoherence_SingletonIsExactlyZero(t *testing.T) {
	l, f := newPair(t, 3, 3, 2, []float64{1, 2, 3, 4, 5, 6, 0.5, 1.5, 2.5})
	b, err := NewBridge(l, f, Config{Radius: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	got, err := b.ClusterCoherence(models.Coord{Row: 1, Col: 1}, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0.0 {
		t.Errorf("ClusterCoherence() = %v, want exactly 0.0", got)
	}
}

func TestClusterCoherence_Errors(t *testing.T) {
	l, f := newPair(t, 2, 2, 2, nil)
	b, err := NewBridge(l, f, Config{Radius: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.ClusterCoherence(models.Coord{Row: 5, Col: 0}, 1); !errors.Is(err, models.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := b.ClusterCoherence(models.Coord{}, math.NaN()); !errors.Is(err, models.ErrDegenerateNumeric) {
		t.Errorf("expected ErrDegenerateNumeric, got %v", err)
	}
}

func TestSyncMap(t *testing.T) {
	l, f := newPair(t, 2, 2, 2, nil)
	b, err := NewBridge(l, f, Config{Radius: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	m, err := b.SyncMap(1.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(m) != 4 {
		t.Fatalf("len(SyncMap) = %d, want 4", len(m))
	}
	for i, v := range m {
		if math.Abs(v-1) > 1e-12 {
			t.Errorf("SyncMap[%d] = %v, want 1 for identical phases", i, v)
		}
	}
}
