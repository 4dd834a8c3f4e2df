package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"rtsync/internal/api"
)

var queueListColumns = []tableColumn{
	{Header: "ID"},
	{Header: "Record"},
	{Header: "Type"},
	{Header: "File", MaxWidth: 32},
	{Header: "Size", Align: alignRight},
	{Header: "Status"},
	{Header: "Retries", Align: alignRight},
	{Header: "Created"},
	{Header: "Last Error"},
}

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func queueIsEmpty(stats map[string]int) bool {
	for _, count := range stats {
		if count > 0 {
			return false
		}
	}
	return true
}

// buildQueueListRows renders items in queue (insertion) order, which is the
// order a sync pass attempts them.
func buildQueueListRows(items []api.QueueItem) [][]string {
	if len(items) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		status := formatStatusLabel(item.Status)
		switch {
		case item.Exhausted:
			status += " (exhausted)"
		case item.NextAttemptAt != "":
			status += " (retry " + formatDisplayTime(item.NextAttemptAt) + ")"
		}
		rows = append(rows, []string{
			item.ID,
			item.RecordID,
			item.MediaType,
			item.FileName,
			humanize.IBytes(uint64(max(item.PayloadSize, 0))),
			status,
			fmt.Sprintf("%d", item.RetryCount),
			formatDisplayTime(item.CreatedAt),
			truncate(item.LastError, 48),
		})
	}
	return rows
}

func describeItemLines(item api.QueueItem) [][2]string {
	lines := [][2]string{
		{"ID", item.ID},
		{"Record", item.RecordID},
		{"Media type", item.MediaType},
		{"File", item.FileName},
		{"Content type", item.ContentType},
		{"Size", fmt.Sprintf("%s (%d bytes)", humanize.IBytes(uint64(max(item.PayloadSize, 0))), item.PayloadSize)},
		{"SHA-256", item.PayloadSHA256},
		{"Status", formatStatusLabel(item.Status)},
		{"Retries", fmt.Sprintf("%d", item.RetryCount)},
		{"Created", formatDisplayTime(item.CreatedAt)},
		{"Updated", formatDisplayTime(item.UpdatedAt)},
		{"Last attempt", formatDisplayTime(item.LastAttemptAt)},
		{"Next attempt", formatDisplayTime(item.NextAttemptAt)},
		{"Exhausted", yesNo(item.Exhausted)},
		{"Last error", item.LastError},
	}
	out := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line[1]) != "" {
			out = append(out, line)
		}
	}
	return out
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.Local().Format("2006-01-02 15:04")
	}
	return value
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
