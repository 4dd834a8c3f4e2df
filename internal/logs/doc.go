// Package logs reads the daemon's JSON log file for `rtsync logs`.
//
// Tail returns the last lines of the current log with bounded memory and an
// offset to resume from; Follow polls from that offset until the context
// ends. Filter narrows lines to one warranty record or queue item using the
// structured fields the daemon writes.
package logs
