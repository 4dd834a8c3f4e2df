package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"rtsync/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the upload queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(session queueaccess.Session) error {
				stats, err := session.Access.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, stats)
				}
				if queueIsEmpty(stats) {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(queueStatusColumns, buildQueueStatusRows(stats))
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued uploads in sync order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(session queueaccess.Session) error {
				items, err := session.Access.List(cmd.Context(), listStatuses)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(queueListColumns, buildQueueListRows(items)))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status: pending, failed (repeatable)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queued upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withQueue(func(session queueaccess.Session) error {
				item, err := session.Access.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("queue item %s not found (it may already have been delivered)", id)
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, item)
				}
				out := cmd.OutOrStdout()
				for _, line := range describeItemLines(*item) {
					fmt.Fprintf(out, "%-14s %s\n", line[0]+":", line[1])
				}
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database and payload spool health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(session queueaccess.Session) error {
				resp, err := session.Access.Health(cmd.Context())
				if err != nil && resp.Error == "" {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", resp.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(resp.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(resp.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %d\n", resp.SchemaVersion)
				fmt.Fprintf(out, "Integrity check: %s\n", resp.IntegrityCheck)
				fmt.Fprintf(out, "Total items: %d\n", resp.TotalItems)
				fmt.Fprintf(out, "Spool directory: %s\n", resp.SpoolDir)
				fmt.Fprintf(out, "Spooled payloads: %d (%s)\n", resp.SpoolFiles, humanize.IBytes(uint64(max(resp.SpoolBytes, 0))))
				if len(resp.MissingPayloads) > 0 {
					fmt.Fprintf(out, "Missing payloads: %s\n", strings.Join(resp.MissingPayloads, ", "))
				} else {
					fmt.Fprintln(out, "Missing payloads: none")
				}
				if resp.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", resp.Error)
				}
				return nil
			})
		},
	}
}
