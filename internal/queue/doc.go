// Package queue persists pending evidence uploads in SQLite and exposes the
// manager that producers and the sync engine use to mutate them.
//
// The Store owns the database connection, schema initialization, the payload
// spool directory, and health queries. Each item is one row keyed by a ULID;
// its bytes live in payloads/<id> and are written atomically before the row is
// committed, so the row insert is the commit point for an enqueue.
//
// The Manager serializes every mutation and keeps an in-memory snapshot that
// is replaced only after a successful read from the store. Observers subscribe
// to snapshots; they never see a state the store has not confirmed.
//
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package queue
