package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rtsync/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		filter logs.Filter
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filter.Level = strings.TrimSpace(filter.Level)
			path := filepath.Join(cfg.Paths.LogDir, "rtsync.log")
			out := cmd.OutOrStdout()

			result, err := logs.Tail(path, lines, filter)
			if err != nil {
				return err
			}
			for _, line := range result.Lines {
				fmt.Fprintln(out, line)
			}
			if !follow {
				if len(result.Lines) == 0 && result.Offset == 0 {
					fmt.Fprintf(out, "No log at %s (has the daemon run yet?)\n", path)
				}
				return nil
			}
			return logs.Follow(cmd.Context(), path, result.Offset, filter, 250*time.Millisecond, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringVar(&filter.RecordID, "record", "", "Only lines for this warranty record")
	cmd.Flags().StringVar(&filter.ItemID, "item", "", "Only lines for this queue item")
	cmd.Flags().StringVar(&filter.Level, "level", "", "Only lines at this level (debug, info, warn, error)")
	return cmd
}
