// Package notifications delivers sync events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Enumerated event types cover the sync milestones an operator cares
// about (queue drained, failed uploads, items past the retry cap) so the sync
// engine can emit consistent messages without duplicating HTTP glue.
package notifications
