package lattice

import (
	"math"
	"testing"
)

func TestNeighborhoodKind_Influence(t *testing.T) {
	tests := []struct {
		name   string
		kind   NeighborhoodKind
		d      float64
		radius float64
		want   float64
	}{
		{"gaussian at bmu", Gaussian, 0, 2, 1},
		{"gaussian one sigma", Gaussian, 2, 2, math.Exp(-0.5)},
		{"gaussian far", Gaussian, 3, 1, math.Exp(-4.5)},
		{"gaussian zero radius at bmu", Gaussian, 0, 0, 1},
		{"gaussian zero radius elsewhere", Gaussian, 1, 0, 0},
		{"cutoff inside", HardCutoff, 0.5, 1, 1},
		{"cutoff on boundary", HardCutoff, 1, 1, 0},
		{"cutoff outside", HardCutoff, 2, 1, 0},
		{"cutoff zero radius", HardCutoff, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.kind.Influence(tt.d, tt.radius)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Influence(%v, %v) = %v, want %v", tt.d, tt.radius, got, tt.want)
			}
		})
	}
}

func TestParseNeighborhoodKind(t *testing.T) {
	tests := []struct {
		input   string
		want    NeighborhoodKind
		wantErr bool
	}{
		{"gaussian", Gaussian, false},
		{"Gaussian", Gaussian, false},
		{"", Gaussian, false},
		{"hard_cutoff", HardCutoff, false},
		{"hard-cutoff", HardCutoff, false},
		{"cutoff", HardCutoff, false},
		{"mexican_hat", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseNeighborhoodKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseNeighborhoodKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseNeighborhoodKind(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNeighborhoodKind_StringRoundTrip(t *testing.T) {
	for _, k := range []NeighborhoodKind{Gaussian, HardCutoff} {
		got, err := ParseNeighborhoodKind(k.String())
		if err != nil || got != k {
			t.Errorf("round trip of %v: got %v, err %v", k, got, err)
		}
	}
	if NeighborhoodKind(9).Valid() {
		t.Error("NeighborhoodKind(9) should not be valid")
	}
}
