package simulation

import (
	"math"
	"testing"

	"github.com/nvandessel/kuramap/internal/session"
)

// AssertQEDecreases asserts that every trial ended with a lower
// quantization error than it started with.
func AssertQEDecreases(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, tr := range result.Trials {
		st := tr.Result.Stats
		if !(st.FinalError < st.InitialError) {
			t.Errorf("AssertQEDecreases: trial %d (seed %d): final QE %.6f not below initial %.6f",
				tr.Index, tr.Seed, st.FinalError, st.InitialError)
		}
	}
}

// AssertMeanQEMonotone asserts that the epoch-mean quantization error,
// averaged across trials, never rises by more than slack (relative) from
// one epoch to the next.
func AssertMeanQEMonotone(t *testing.T, result SimulationResult, slack float64) {
	t.Helper()
	means := MeanQEByEpoch(result)
	if len(means) < 2 {
		t.Errorf("AssertMeanQEMonotone: only %d common epochs", len(means))
		return
	}
	for i := 1; i < len(means); i++ {
		if means[i] > means[i-1]*(1+slack) {
			t.Errorf("AssertMeanQEMonotone: epoch %d mean QE %.6f rose above epoch %d mean %.6f (slack %.3f)",
				i+1, means[i], i, means[i-1], slack)
		}
	}
}

// AssertOrderInRange asserts 0 ≤ R ≤ 1 for every recorded epoch and every
// final state.
func AssertOrderInRange(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, tr := range result.Trials {
		if r := tr.Result.Order; r < 0 || r > 1 || math.IsNaN(r) {
			t.Errorf("AssertOrderInRange: trial %d: final R = %v", tr.Index, r)
		}
		for _, e := range tr.Result.History {
			if r := e.OrderParameter; r < 0 || r > 1 || math.IsNaN(r) {
				t.Errorf("AssertOrderInRange: trial %d epoch %d: R = %v", tr.Index, e.Epoch, r)
			}
		}
	}
}

// AssertRecorded asserts that the run store holds exactly what each trial
// returned: one epoch row per history entry and a matching summary.
func AssertRecorded(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, tr := range result.Trials {
		res := tr.Result
		if tr.Run.State != res.Stats.State {
			t.Errorf("AssertRecorded: trial %d: stored state %q, want %q", tr.Index, tr.Run.State, res.Stats.State)
		}
		if tr.Run.Epochs != res.Stats.Epochs || tr.Run.FinalError != res.Stats.FinalError {
			t.Errorf("AssertRecorded: trial %d: stored summary %+v, want %+v", tr.Index, tr.Run.Summary, res.Stats)
		}
		if tr.Run.Seed != tr.Seed {
			t.Errorf("AssertRecorded: trial %d: stored seed %d, want %d", tr.Index, tr.Run.Seed, tr.Seed)
		}
		if len(tr.Epochs) != len(res.History) {
			t.Errorf("AssertRecorded: trial %d: %d stored epochs, history has %d", tr.Index, len(tr.Epochs), len(res.History))
			continue
		}
		for i, rec := range tr.Epochs {
			h := res.History[i]
			if rec.Epoch != h.Epoch || rec.QuantizationError != h.QuantizationError || rec.OrderParameter != h.OrderParameter {
				t.Errorf("AssertRecorded: trial %d: stored epoch %+v, history %+v", tr.Index, rec, h)
			}
		}
	}
}

// AssertHitsCover asserts that every trial's hit counts sum to n.
func AssertHitsCover(t *testing.T, result SimulationResult, n int) {
	t.Helper()
	for _, tr := range result.Trials {
		total := 0
		for _, h := range tr.Result.Hits {
			total += h
		}
		if total != n {
			t.Errorf("AssertHitsCover: trial %d: hits sum to %d, want %d", tr.Index, total, n)
		}
	}
}

// AssertSynchronized asserts that a sync run ended with R ≥ minOrder.
func AssertSynchronized(t *testing.T, res *session.SyncResult, minOrder float64) {
	t.Helper()
	if res.Order < minOrder {
		t.Errorf("AssertSynchronized: final R = %.4f, want ≥ %.4f", res.Order, minOrder)
	}
}

// AssertResynchronizes asserts that the order parameter dropped below
// dropBelow right after the perturbation at perturbStep and recovered to
// at least minOrder by the end.
func AssertResynchronizes(t *testing.T, res *session.SyncResult, perturbStep int, dropBelow, minOrder float64) {
	t.Helper()
	dropped := false
	for _, p := range res.Trajectory {
		if p.Step >= perturbStep && p.Step <= perturbStep+1 && p.Order < dropBelow {
			dropped = true
		}
	}
	if !dropped {
		t.Errorf("AssertResynchronizes: R never fell below %.4f after step %d: %+v", dropBelow, perturbStep, res.Trajectory)
	}
	AssertSynchronized(t, res, minOrder)
}

// MeanQEByEpoch averages each epoch's quantization error across trials,
// over the epochs every trial completed.
func MeanQEByEpoch(result SimulationResult) []float64 {
	if len(result.Trials) == 0 {
		return nil
	}
	n := math.MaxInt
	for _, tr := range result.Trials {
		n = min(n, len(tr.Result.History))
	}
	means := make([]float64, n)
	for _, tr := range result.Trials {
		for i := range n {
			means[i] += tr.Result.History[i].QuantizationError
		}
	}
	for i := range means {
		means[i] /= float64(len(result.Trials))
	}
	return means
}
