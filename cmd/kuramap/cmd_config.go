package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/kuramap/internal/config"
	"github.com/nvandessel/kuramap/internal/store"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage kuramap configuration",
		Long: `View and initialize kuramap configuration.

Configuration is read from ~/.kuramap/config.yaml and KURAMAP_* environment
variables, in that order over built-in defaults.

Examples:
  kuramap config show          # Effective settings as JSON
  kuramap config show --yaml   # Effective settings as YAML
  kuramap config init          # Write defaults to ~/.kuramap/config.yaml`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigInitCmd(),
	)
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			asYAML, _ := cmd.Flags().GetBool("yaml")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asYAML {
				enc := yaml.NewEncoder(w)
				enc.SetIndent(2)
				if err := enc.Encode(cfg); err != nil {
					return err
				}
				return enc.Close()
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
	cmd.Flags().Bool("yaml", false, "Print YAML instead of JSON")
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			dir, err := store.GlobalKuramapPath()
			if err != nil {
				return err
			}
			path := filepath.Join(dir, "config.yaml")

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to check %s: %w", path, err)
			}

			data, err := yaml.Marshal(config.Default())
			if err != nil {
				return fmt.Errorf("failed to encode defaults: %w", err)
			}
			if err := os.MkdirAll(dir, 0700); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
			if err := os.WriteFile(path, data, 0600); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing config file")
	return cmd
}
