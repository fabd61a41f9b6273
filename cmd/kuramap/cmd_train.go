package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/kuramap/internal/config"
	"github.com/nvandessel/kuramap/internal/dataset"
	"github.com/nvandessel/kuramap/internal/session"
	"github.com/nvandessel/kuramap/internal/store"
	"github.com/nvandessel/kuramap/internal/training"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a Kuramoto-coupled self-organizing map",
		Long: `Train a lattice on CSV samples or on synthetic two-cluster data.

Every epoch is recorded in the run history unless --no-record is given.
Ctrl+C stops training between steps; the partial run is recorded as
stopped and its maps are still printed.

Examples:
  kuramap train                                  # synthetic data, config defaults
  kuramap train --data points.csv --show         # train on a CSV file, print maps
  kuramap train --mode feature_driven --dynamic  # feature-driven, affinity coupling
  kuramap train --out result.json                # save the result for 'kuramap show'`,
		RunE: runTrain,
	}

	cmd.Flags().Int("rows", 0, "Lattice rows")
	cmd.Flags().Int("cols", 0, "Lattice columns")
	cmd.Flags().Int("dim", 0, "Feature dimension (inferred from --data when omitted)")
	cmd.Flags().Int("epochs", 0, "Passes over the samples")
	cmd.Flags().Int("samples", 0, "Synthetic samples when no --data is given")
	cmd.Flags().String("data", "", "CSV file of samples, one per line")
	cmd.Flags().String("mode", "", "Coupling mode: none, feature_driven, oscillator_driven")
	cmd.Flags().String("neighborhood", "", "Neighborhood kind: gaussian, hard_cutoff")
	cmd.Flags().Bool("dynamic", false, "Recompute feature-affinity coupling every epoch")
	cmd.Flags().Float64("k", 0, "Kuramoto coupling strength")
	cmd.Flags().Float64("tolerance", 0, "Stop when the epoch QE improvement drops below this")
	cmd.Flags().Uint64("seed", 0, "Random seed")
	cmd.Flags().Int("workers", 0, "Parallel workers for per-unit computation (-1 = one per physical core)")
	cmd.Flags().Bool("show", false, "Print phase, hit and coherence maps")
	cmd.Flags().Bool("no-record", false, "Do not record the run in history")
	cmd.Flags().String("out", "", "Write the full result as JSON to this file")

	return cmd
}

func runTrain(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	show, _ := cmd.Flags().GetBool("show")
	noRecord, _ := cmd.Flags().GetBool("no-record")
	outPath, _ := cmd.Flags().GetString("out")

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if err := applyTrainFlags(cmd, settings); err != nil {
		return err
	}

	samples, source, err := loadSamples(cmd, settings)
	if err != nil {
		return err
	}
	if len(samples) > 0 {
		settings.Engine.Dim = len(samples[0])
	}

	cfg, err := settings.Engine.TrainingConfig()
	if err != nil {
		return err
	}
	if samples == nil {
		samples = session.SyntheticSamples(cfg.Seed, settings.Run.Samples, cfg.Dim)
	}

	logger := newCmdLogger(cmd, settings)
	trace := newTraceLogger(settings)
	defer trace.Close()

	opts := session.Options{Trace: trace, Logger: logger}
	if settings.Run.Record && !noRecord {
		runStore, err := settings.OpenStore()
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
		defer runStore.Close()
		opts.Store = runStore
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	res, err := session.Train(ctx, session.TrainRequest{
		Config:          cfg,
		Samples:         samples,
		Source:          source,
		CoherenceRadius: settings.Run.CoherenceRadius,
	}, opts)
	stopped := errors.Is(err, training.ErrStopped)
	if err != nil && !stopped {
		return err
	}

	if outPath != "" {
		if err := session.SaveResult(outPath, res); err != nil {
			return err
		}
	}

	if jsonOut {
		if encErr := json.NewEncoder(cmd.OutOrStdout()).Encode(res); encErr != nil {
			return encErr
		}
		return err
	}

	w := cmd.OutOrStdout()
	printTrainSummary(w, res, len(samples), source)
	if outPath != "" {
		fmt.Fprintf(w, "Result written to %s\n", outPath)
	}
	if show {
		if perr := printTrainMaps(w, res); perr != nil {
			return perr
		}
	}
	return err
}

// applyTrainFlags copies explicitly set flags over the loaded settings.
func applyTrainFlags(cmd *cobra.Command, s *config.KuramapConfig) error {
	f := cmd.Flags()
	for name, dst := range map[string]*int{
		"rows": &s.Engine.Rows, "cols": &s.Engine.Cols, "dim": &s.Engine.Dim,
		"epochs": &s.Engine.Epochs, "samples": &s.Run.Samples, "workers": &s.Engine.Workers,
	} {
		if f.Changed(name) {
			v, err := f.GetInt(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}
	for name, dst := range map[string]*float64{
		"k": &s.Engine.CouplingStrength, "tolerance": &s.Engine.Tolerance,
	} {
		if f.Changed(name) {
			v, err := f.GetFloat64(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}
	if f.Changed("mode") {
		s.Engine.CouplingMode, _ = f.GetString("mode")
	}
	if f.Changed("neighborhood") {
		s.Engine.Neighborhood, _ = f.GetString("neighborhood")
	}
	if f.Changed("dynamic") {
		s.Engine.Dynamic, _ = f.GetBool("dynamic")
	}
	if f.Changed("seed") {
		s.Engine.Seed, _ = f.GetUint64("seed")
	}
	if f.Changed("data") {
		s.Run.DataPath, _ = f.GetString("data")
	}
	return nil
}

// loadSamples reads the configured CSV file. It returns nil samples when
// none is configured; the caller then draws synthetic data.
func loadSamples(cmd *cobra.Command, s *config.KuramapConfig) ([][]float64, string, error) {
	if s.Run.DataPath == "" {
		if s.Run.Samples <= 0 {
			return nil, "", fmt.Errorf("samples must be positive without --data, got %d", s.Run.Samples)
		}
		return nil, "synthetic", nil
	}

	f, err := os.Open(s.Run.DataPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	dim := 0
	if cmd.Flags().Changed("dim") {
		dim = s.Engine.Dim
	}
	samples, err := dataset.LoadCSV(f, dim)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load %s: %w", s.Run.DataPath, err)
	}
	if len(samples) == 0 {
		return nil, "", fmt.Errorf("no samples in %s", s.Run.DataPath)
	}
	return samples, s.Run.DataPath, nil
}

func printTrainSummary(w io.Writer, res *session.TrainResult, n int, source string) {
	st := res.Stats
	fmt.Fprintf(w, "Trained %dx%d lattice on %d samples (%s)\n", res.Rows, res.Cols, n, source)
	if res.RunID != "" {
		fmt.Fprintf(w, "  Run:      %s\n", res.RunID)
	}
	fmt.Fprintf(w, "  State:    %s after %d epochs (%d updates)\n", st.State, st.Epochs, st.Updates)
	fmt.Fprintf(w, "  QE:       %.4f -> %.4f\n", st.InitialError, st.FinalError)
	fmt.Fprintf(w, "  Order:    R=%.3f  psi=%.3f\n", res.Order, res.MeanPhase)
	fmt.Fprintf(w, "  Duration: %s\n", res.Duration.Round(time.Millisecond))
}

func printTrainMaps(w io.Writer, res *session.TrainResult) error {
	maps, err := res.Maps()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nPhases:\n%s", maps.Phase)
	fmt.Fprintf(w, "\nHits:\n%s", maps.Hits)
	fmt.Fprintf(w, "\nCoherence:\n%s", maps.Coherence)
	return nil
}

// openStore opens the configured run store for read commands.
func openStore(cmd *cobra.Command) (store.RunStore, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	s, err := settings.OpenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return s, nil
}
