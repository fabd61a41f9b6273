package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/kuramap/internal/session"
	"github.com/nvandessel/kuramap/internal/visualization"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run the oscillator field alone and watch it synchronize",
		Long: `Integrate the phase oscillators on the lattice geometry without any
training and report the order parameter R over time.

Examples:
  kuramap sync                              # config defaults, ASCII phase map
  kuramap sync --k 2 --radius 0             # all-to-all coupling
  kuramap sync --perturb-step 250 --perturb 1
  kuramap sync --format dot | neato -n -Tpng -o phases.png`,
		RunE: runSync,
	}

	cmd.Flags().Int("rows", 0, "Grid rows")
	cmd.Flags().Int("cols", 0, "Grid columns")
	cmd.Flags().Int("steps", 500, "Integration steps")
	cmd.Flags().Int("every", 10, "Record R every n steps (0: start and end only)")
	cmd.Flags().Float64("k", 0, "Kuramoto coupling strength")
	cmd.Flags().Float64("radius", 0, "Coupling radius in grid units (0: all-to-all)")
	cmd.Flags().Float64("dt", 0, "Euler step size")
	cmd.Flags().Float64("noise", 0, "Per-step phase noise standard deviation")
	cmd.Flags().Int("perturb-step", 0, "Scatter the phases right before this step")
	cmd.Flags().Float64("perturb", 0, "Perturbation intensity as a fraction of pi")
	cmd.Flags().Uint64("seed", 0, "Random seed")
	cmd.Flags().String("format", "ascii", "Output format: ascii, dot, json")

	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	formatName, _ := cmd.Flags().GetString("format")
	format, err := visualization.ParseFormat(formatName)
	if err != nil {
		return err
	}
	if jsonOut {
		format = visualization.FormatJSON
	}

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	eng := settings.Engine
	req := session.DefaultSyncRequest()
	req.Rows, req.Cols = eng.Rows, eng.Cols
	req.CouplingStrength = eng.CouplingStrength
	req.CouplingRadius = eng.CouplingRadius
	req.Dt = eng.Dt
	req.NoiseStd = eng.NoiseStd
	req.FrequencyMean, req.FrequencyStd = eng.FrequencyMean, eng.FrequencyStd
	req.CoherenceRadius = settings.Run.CoherenceRadius
	req.Seed = eng.Seed
	req.Workers = eng.WorkerCount()

	f := cmd.Flags()
	if f.Changed("rows") {
		req.Rows, _ = f.GetInt("rows")
	}
	if f.Changed("cols") {
		req.Cols, _ = f.GetInt("cols")
	}
	req.Steps, _ = f.GetInt("steps")
	req.SampleEvery, _ = f.GetInt("every")
	req.PerturbStep, _ = f.GetInt("perturb-step")
	req.PerturbIntensity, _ = f.GetFloat64("perturb")
	if f.Changed("k") {
		req.CouplingStrength, _ = f.GetFloat64("k")
	}
	if f.Changed("radius") {
		req.CouplingRadius, _ = f.GetFloat64("radius")
	}
	if f.Changed("dt") {
		req.Dt, _ = f.GetFloat64("dt")
	}
	if f.Changed("noise") {
		req.NoiseStd, _ = f.GetFloat64("noise")
	}
	if f.Changed("seed") {
		req.Seed, _ = f.GetUint64("seed")
	}

	trace := newTraceLogger(settings)
	defer trace.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	res, err := session.Sync(ctx, req, session.Options{Trace: trace, Logger: newCmdLogger(cmd, settings)})
	if res == nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch format {
	case visualization.FormatJSON:
		if encErr := json.NewEncoder(w).Encode(res); encErr != nil {
			return encErr
		}
	case visualization.FormatDOT:
		dot, derr := res.DOT()
		if derr != nil {
			return derr
		}
		fmt.Fprint(w, dot)
	default:
		maps, merr := res.Maps()
		if merr != nil {
			return merr
		}
		fmt.Fprintf(w, "Integrated %dx%d oscillators for %d steps\n", res.Rows, res.Cols, res.Steps)
		fmt.Fprintf(w, "  R: %.3f -> %.3f  (psi=%.3f)\n\n", res.Trajectory[0].Order, res.Order, res.MeanPhase)
		fmt.Fprintln(w, "Order parameter:")
		for _, p := range res.Trajectory {
			fmt.Fprintf(w, "  %6d  %.3f  %s\n", p.Step, p.Order, bar(p.Order, 40))
		}
		fmt.Fprintf(w, "\nPhases:\n%s", maps.Phase)
		fmt.Fprintf(w, "\nCoherence:\n%s", maps.Coherence)
	}
	return err
}

// bar renders v in [0, 1] as a bar of at most width cells.
func bar(v float64, width int) string {
	n := int(v*float64(width) + 0.5)
	n = max(0, min(n, width))
	b := make([]byte, n)
	for i := range b {
		b[i] = '#'
	}
	return string(b)
}
