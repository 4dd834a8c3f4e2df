// Package services defines shared error markers and context tags consumed by
// the queue, upload, and sync packages.
//
// Key responsibilities:
//   - Context helpers that stamp queue item IDs, record IDs, pass IDs, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so surfaces (HTTP API, IPC,
//     CLI) can classify storage, transport, and validation failures with
//     errors.Is instead of string matching.
package services
