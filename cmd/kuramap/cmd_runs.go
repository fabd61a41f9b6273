package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/kuramap/internal/backup"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded training runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(w).Encode(map[string]any{"runs": runs, "count": len(runs)})
			}
			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs recorded yet. Run 'kuramap train' to create one.")
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tGRID\tMODE\tSTATE\tEPOCHS\tQE\tR")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%dx%d\t%s\t%s\t%d\t%.4f\t%.3f\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Rows, r.Cols,
					r.Mode, r.State, r.Epochs, r.FinalError, r.FinalOrder)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum runs to list (0: all)")

	cmd.AddCommand(
		newRunsShowCmd(),
		newRunsExportCmd(),
		newRunsImportCmd(),
		newRunsVerifyCmd(),
	)
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its per-epoch metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}
			epochs, err := s.Epochs(cmd.Context(), run.ID)
			if err != nil {
				return fmt.Errorf("failed to get epochs: %w", err)
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(w).Encode(map[string]any{"run": run, "epochs": epochs})
			}

			fmt.Fprintf(w, "Run %s\n", run.ID)
			fmt.Fprintf(w, "  Created:  %s\n", run.CreatedAt.Local().Format(time.DateTime))
			if !run.FinishedAt.IsZero() {
				fmt.Fprintf(w, "  Finished: %s\n", run.FinishedAt.Local().Format(time.DateTime))
			}
			fmt.Fprintf(w, "  Grid:     %dx%d, dim %d, %d samples\n", run.Rows, run.Cols, run.Dim, run.Samples)
			fmt.Fprintf(w, "  Coupling: %s, %s neighborhood, seed %d\n", run.Mode, run.Neighborhood, run.Seed)
			fmt.Fprintf(w, "  State:    %s after %d epochs (%d updates)\n", run.State, run.Epochs, run.Updates)
			fmt.Fprintf(w, "  QE:       %.4f -> %.4f\n", run.InitialError, run.FinalError)
			fmt.Fprintf(w, "  Order:    R=%.3f\n\n", run.FinalOrder)

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EPOCH\tSTEP\tLR\tRADIUS\tQE\tR")
			for _, e := range epochs {
				fmt.Fprintf(tw, "%d\t%d\t%.4f\t%.3f\t%.4f\t%.3f\n",
					e.Epoch, e.Step, e.LearningRate, e.Radius, e.QuantizationError, e.OrderParameter)
			}
			return tw.Flush()
		},
	}
}

func newRunsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Archive the run history to a checksummed file",
		Long: `Write every recorded run and its epochs to a compressed archive.

Without a path the archive goes to ~/.kuramap/backups/ and --keep limits how
many archives are kept there.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			keep, _ := cmd.Flags().GetInt("keep")

			var dir, path string
			if len(args) == 1 {
				path = args[0]
			} else {
				d, err := backup.DefaultDir()
				if err != nil {
					return err
				}
				dir, path = d, backup.GeneratePath(d)
			}

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			a, err := backup.Export(cmd.Context(), s, path)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			var deleted []string
			if dir != "" && keep > 0 {
				deleted, err = backup.ApplyRetention(dir, backup.CountPolicy{MaxCount: keep})
				if err != nil {
					return fmt.Errorf("retention failed: %w", err)
				}
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(w).Encode(map[string]any{
					"path":    path,
					"runs":    len(a.Runs),
					"epochs":  a.EpochCount(),
					"deleted": deleted,
				})
			}
			fmt.Fprintf(w, "Exported %d runs (%d epochs) to %s\n", len(a.Runs), a.EpochCount(), path)
			for _, p := range deleted {
				fmt.Fprintf(w, "  removed old archive %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().Int("keep", 10, "Archives to keep in the default directory (0: all)")
	return cmd
}

func newRunsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <path>",
		Short: "Restore runs from an archive, skipping ones already recorded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := backup.Import(cmd.Context(), s, args[0])
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(w).Encode(result)
			}
			fmt.Fprintf(w, "Imported %d runs (%d epochs), skipped %d already recorded\n",
				result.RunsImported, result.EpochsImported, result.RunsSkipped)
			return nil
		},
	}
}

func newRunsVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <path>",
		Short: "Check an archive's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			h, err := backup.Verify(args[0])
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(w).Encode(h)
			}
			fmt.Fprintf(w, "OK: %d runs, %d epochs, created %s\n",
				h.RunCount, h.EpochCount, h.CreatedAt.Local().Format(time.DateTime))
			return nil
		},
	}
}
