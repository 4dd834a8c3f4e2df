package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rtsync/internal/ipc"
	"rtsync/internal/syncer"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a sync pass now and wait for it to finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SyncNow()
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp.Pass)
				}
				out := cmd.OutOrStdout()
				pass := resp.Pass
				switch pass.Refused {
				case "":
				case syncer.RefusedOffline:
					fmt.Fprintln(out, "Not synced: network is offline")
					return nil
				case syncer.RefusedBusy:
					fmt.Fprintln(out, "Not synced: a pass is already running")
					return nil
				case syncer.RefusedEmpty:
					fmt.Fprintln(out, "Nothing to sync")
					return nil
				default:
					fmt.Fprintf(out, "Not synced: %s\n", pass.Refused)
					return nil
				}
				fmt.Fprintf(out, "Delivered %d, failed %d, skipped %d (%d attempted in %dms)\n",
					pass.Delivered, pass.Failed, pass.Skipped, pass.Attempted, pass.DurationMS)
				if pass.Exhausted > 0 {
					fmt.Fprintf(out, "%d item(s) reached the retry limit and will not be retried\n", pass.Exhausted)
				}
				if pass.Interrupted {
					fmt.Fprintln(out, "Pass interrupted; remaining items stay queued")
				}
				if pass.LastError != "" {
					fmt.Fprintf(out, "Last error: %s\n", pass.LastError)
				}
				return nil
			})
		},
	}
}
