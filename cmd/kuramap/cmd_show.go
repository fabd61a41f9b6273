package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/kuramap/internal/session"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <result.json>",
		Short: "Render the maps of a result saved with 'train --out'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := session.LoadTrainResult(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printTrainSummary(w, res, sum(res.Hits), args[0])
			if err := printTrainMaps(w, res); err != nil {
				return fmt.Errorf("rendering %s: %w", args[0], err)
			}
			return nil
		},
	}
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
