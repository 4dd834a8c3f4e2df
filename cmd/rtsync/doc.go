// Package main hosts the rtsync CLI entrypoint and command graph.
//
// Commands talk to the daemon over its IPC socket. Queue inspection and
// enqueue fall back to opening the queue database directly when no daemon
// is running, so evidence captured offline can still be spooled.
package main
