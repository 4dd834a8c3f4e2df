package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"rtsync/internal/queueaccess"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var recordID string
	var mediaType string

	cmd := &cobra.Command{
		Use:   "enqueue <file>...",
		Short: "Queue evidence files for upload to a warranty record",
		Long: "Queue evidence files for upload to a warranty record.\n\n" +
			"Files are copied into the spool immediately, so the originals may be removed\n" +
			"afterwards. When the media type is omitted it is inferred from the file\n" +
			"extension. Works without a running daemon; the next daemon start uploads them.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(recordID) == "" {
				return fmt.Errorf("--record is required")
			}
			return ctx.withQueue(func(session queueaccess.Session) error {
				out := cmd.OutOrStdout()
				if session.Direct && !ctx.JSONMode() {
					fmt.Fprintln(out, "Daemon not running; writing to the queue directly")
				}
				queued := make([]any, 0, len(args))
				for _, path := range args {
					item, err := session.Access.Enqueue(cmd.Context(), recordID, mediaType, path)
					if err != nil {
						return fmt.Errorf("enqueue %s: %w", path, err)
					}
					if ctx.JSONMode() {
						queued = append(queued, item)
						continue
					}
					fmt.Fprintf(out, "Queued %s as %s (%s, %s)\n",
						item.FileName, item.ID, item.MediaType, humanize.IBytes(uint64(max(item.PayloadSize, 0))))
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, queued)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&recordID, "record", "r", "", "Warranty record id the files belong to")
	cmd.Flags().StringVarP(&mediaType, "media-type", "m", "", "Media type: photo, video or pdf (inferred when omitted)")
	return cmd
}
