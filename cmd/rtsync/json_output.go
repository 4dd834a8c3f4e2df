package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"rtsync/internal/api"
)

// writeJSON encodes v as indented JSON to the command's stdout. An empty
// queue listing is written as [] so scripts can always iterate it.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	switch typed := v.(type) {
	case nil:
		return enc.Encode(struct{}{})
	case []api.QueueItem:
		if typed == nil {
			return enc.Encode([]api.QueueItem{})
		}
	}
	return enc.Encode(v)
}
