package main

import (
	"github.com/spf13/cobra"

	"github.com/nvandessel/kuramap/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve training, sync and run history over MCP on stdio",
		Long: `Run an MCP server on stdin/stdout exposing the kuramap_train,
kuramap_sync and kuramap_runs tools and the kuramap://runs/recent resource.

Tool calls are audited to ~/.kuramap/audit.jsonl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "kuramap",
				Version:  version,
				Settings: settings,
				Logger:   newCmdLogger(cmd, settings),
			})
			if err != nil {
				return err
			}
			defer server.Close()

			return server.Run(cmd.Context())
		},
	}
}
