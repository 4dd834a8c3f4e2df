// Package daemon coordinates the long-running rtsync process.
//
// It wires configuration, the durable queue, the connectivity monitor, the
// upload adapter and the sync orchestrator into a single lifecycle with
// flock-based locking so only one process owns a data directory. Background
// goroutines (scheduler, HTTP API) run under one errgroup and are drained on
// Stop before the lock is released.
//
// The daemon is also the producer gate: Enqueue validates record ids, media
// types and size limits before anything reaches the queue. The local HTTP API
// and the IPC server are thin adapters over the methods defined here.
//
// Keep orchestration logic here: sync decisions live in the syncer package
// while the daemon focuses on startup, shutdown, and high level coordination.
package daemon
