package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/nvandessel/kuramap/internal/config"
	"github.com/nvandessel/kuramap/internal/logging"
)

// Set via -ldflags at release time.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kuramap",
		Short: "Kuramoto-coupled self-organizing maps",
		Long: `kuramap trains self-organizing maps whose units carry coupled phase
oscillators, so that units mapping similar inputs synchronize.

It trains on CSV data or synthetic clusters, runs the oscillator field on
its own, keeps a history of runs, and serves all of it over MCP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.kuramap/config.yaml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newTrainCmd(),
		newSyncCmd(),
		newRunsCmd(),
		newShowCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

// loadSettings reads --config when given, else the default locations,
// and validates the result.
func loadSettings(cmd *cobra.Command) (*config.KuramapConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.KuramapConfig
	var err error
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newCmdLogger returns an operational logger writing to the command's
// stderr at the configured level.
func newCmdLogger(cmd *cobra.Command, cfg *config.KuramapConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// newTraceLogger opens the trace log when the level asks for it.
func newTraceLogger(cfg *config.KuramapConfig) *logging.TraceLogger {
	dir, err := cfg.TraceDir()
	if err != nil {
		return nil
	}
	return logging.NewTraceLogger(dir, cfg.Logging.Level)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
