// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal queue and sync models into
// transport-friendly DTOs that the CLI and the capture surface can render
// without coupling to internal types.
//
// # Key Types
//
// QueueItem: transport representation of a queued upload, including retry
// bookkeeping and whether the retry policy still allows attempts.
//
// SyncStatus / PassSummary: orchestrator state and the result of a pass.
//
// DaemonStatus: aggregated runtime information for status surfaces.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers. Internal enums
// (queue.Status, queue.MediaType) are exposed as lowercase strings.
// Timestamps use RFC3339 with milliseconds. Payload bytes are never exposed;
// only size and digest travel over the API.
package api
