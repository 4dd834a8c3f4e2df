package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rtsync/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Ask the daemon to send a test ntfy notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return fmt.Errorf("test notification: %w", err)
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				msg := resp.Message
				if msg == "" && resp.Sent {
					msg = "Test notification sent"
				} else if msg == "" {
					msg = "Notification not sent"
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
}
