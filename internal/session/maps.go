package session

import (
	"fmt"
	"math/rand/v2"

	"github.com/nvandessel/kuramap/internal/dataset"
	"github.com/nvandessel/kuramap/internal/visualization"
)

// Maps holds ASCII renderings of a rows×cols grid.
type Maps struct {
	Phase     string `json:"phase" jsonschema:"Oscillator phase per unit"`
	Hits      string `json:"hits,omitempty" jsonschema:"BMU hit counts per unit"`
	Coherence string `json:"coherence" jsonschema:"Cluster coherence around each unit"`
}

// Maps renders the final phases, hit counts and sync map.
func (r *TrainResult) Maps() (*Maps, error) {
	phase, err := visualization.PhaseMap(r.Phases, r.Rows, r.Cols)
	if err != nil {
		return nil, err
	}
	hits, err := visualization.HitMap(r.Hits, r.Rows, r.Cols)
	if err != nil {
		return nil, err
	}
	coherence, err := visualization.UnitMap(r.Coherence, r.Rows, r.Cols)
	if err != nil {
		return nil, err
	}
	return &Maps{Phase: phase, Hits: hits, Coherence: coherence}, nil
}

// Maps renders the final phases and sync map.
func (r *SyncResult) Maps() (*Maps, error) {
	phase, err := visualization.PhaseMap(r.Phases, r.Rows, r.Cols)
	if err != nil {
		return nil, err
	}
	coherence, err := visualization.UnitMap(r.Coherence, r.Rows, r.Cols)
	if err != nil {
		return nil, err
	}
	return &Maps{Phase: phase, Coherence: coherence}, nil
}

// DOT renders the coupling graph colored by the final phases.
func (r *SyncResult) DOT() (string, error) {
	if r.Adjacency == nil {
		return "", fmt.Errorf("dot: result carries no adjacency")
	}
	g, err := visualization.BuildGraph(r.Rows, r.Cols, r.Adjacency, r.Phases)
	if err != nil {
		return "", err
	}
	return visualization.RenderDOT(g), nil
}

// SyntheticSamples draws n two-cluster samples in dim dimensions. The
// stream is seeded independently of the engine's so that data and initial
// weights do not share draws.
func SyntheticSamples(seed uint64, n, dim int) [][]float64 {
	rng := rand.New(rand.NewPCG(seed, ^seed))
	return dataset.TwoClustersDim(rng, n, dim)
}
