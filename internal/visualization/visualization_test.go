package visualization

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/nvandessel/kuramap/internal/models"
	"github.com/nvandessel/kuramap/internal/oscillator"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"ascii", FormatASCII, false},
		{"", FormatASCII, false},
		{"DOT", FormatDOT, false},
		{"json", FormatJSON, false},
		{"html", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestPhaseMap(t *testing.T) {
	phases := []float64{0, math.Pi, 2*math.Pi - 1e-9, math.Pi / 2}
	got, err := PhaseMap(phases, 2, 2)
	if err != nil {
		t.Fatalf("PhaseMap() error = %v", err)
	}
	// ramp " .:-=+*#@": 0 -> ' ', π -> index 4 '=', just under 2π -> '@',
	// π/2 -> index 2 ':'.
	want := " =\n@:\n"
	if got != want {
		t.Errorf("PhaseMap() = %q, want %q", got, want)
	}
}

func TestScalarMap(t *testing.T) {
	got, err := ScalarMap([]float64{0, 5, 10}, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got != " =@\n" {
		t.Errorf("ScalarMap() = %q, want %q", got, " =@\n")
	}

	got, err = ScalarMap([]float64{3, 3}, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != " \n \n" {
		t.Errorf("constant ScalarMap() = %q", got)
	}
}

func TestUnitAndHitMap(t *testing.T) {
	got, err := UnitMap([]float64{0, 1}, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got != " @\n" {
		t.Errorf("UnitMap() = %q", got)
	}

	got, err = HitMap([]int{0, 0, 4, 8}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got != "  \n=@\n" {
		t.Errorf("HitMap() = %q", got)
	}
}

func TestMaps_ShapeErrors(t *testing.T) {
	if _, err := PhaseMap([]float64{1, 2, 3}, 2, 2); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("PhaseMap() error = %v, want ErrDimensionMismatch", err)
	}
	if _, err := ScalarMap(nil, 0, 2); !errors.Is(err, models.ErrInvalidGridShape) {
		t.Errorf("ScalarMap() error = %v, want ErrInvalidGridShape", err)
	}
}

func TestBuildGraph(t *testing.T) {
	g, err := BuildGraph(1, 3, oscillator.Uniform{N: 3, Weight: 0.5}, []float64{0, 1, 2})
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	if len(g.Nodes) != 3 {
		t.Fatalf("len(Nodes) = %d, want 3", len(g.Nodes))
	}
	if len(g.Edges) != 3 {
		t.Fatalf("len(Edges) = %d, want 3 (each pair once)", len(g.Edges))
	}
	if g.Nodes[2].ID != "u0_2" || g.Nodes[2].Phase != 2 {
		t.Errorf("node 2 = %+v", g.Nodes[2])
	}
	if g.Edges[0].Source != "u0_0" || g.Edges[0].Target != "u0_1" || g.Edges[0].Weight != 0.5 {
		t.Errorf("edge 0 = %+v", g.Edges[0])
	}

	if _, err := BuildGraph(2, 2, oscillator.Uniform{N: 3, Weight: 1}, nil); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("BuildGraph() size mismatch error = %v", err)
	}
	if _, err := BuildGraph(1, 3, oscillator.Uniform{N: 3, Weight: 1}, []float64{0}); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("BuildGraph() phases mismatch error = %v", err)
	}
}

func TestRenderDOT(t *testing.T) {
	g, err := BuildGraph(2, 1, oscillator.Uniform{N: 2, Weight: 1}, []float64{0, math.Pi})
	if err != nil {
		t.Fatal(err)
	}
	dot := RenderDOT(g)

	for _, want := range []string{
		"graph kuramap {",
		`"u0_0" [label="0,0", pos="0,0!", fillcolor="0.000 0.600 0.950"`,
		`"u1_0" [label="1,0", pos="0,-1!", fillcolor="0.500 0.600 0.950"`,
		`"u0_0" -- "u1_0" [penwidth="1.50"];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}
	if !strings.HasSuffix(dot, "}\n") {
		t.Error("DOT output not closed")
	}
}
