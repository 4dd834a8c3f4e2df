// Package syncer drains the upload queue against the warranty server.
//
// The Orchestrator runs at most one pass at a time. A pass walks a snapshot of
// the queue in insertion order, uploads items one by one, removes the ones the
// server confirmed, and records failures on the rest so later passes retry
// them. Run schedules passes from connectivity transitions, queue changes, and
// a debounce timer; SyncNow runs one immediately for manual triggers.
package syncer
