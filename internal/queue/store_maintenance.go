package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, storageErr("stats", "queue stats", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, storageErr("stats", "scan stats", err)
		}
		stats[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("stats", "queue stats", err)
	}
	return stats, nil
}

// CheckHealth returns diagnostic information about the queue database and
// payload spool.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.Path(), SpoolDir: s.PayloadDir()}
	if err := s.ensureOpen(); err != nil {
		return health, err
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat queue database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	version, err := readUserVersion(connCtx, s.db)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.SchemaVersion = version
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&health.IntegrityCheck); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}

	items, err := s.List(connCtx)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.TotalItems = len(items)
	for _, item := range items {
		if _, statErr := os.Stat(s.payloadPath(item.ID)); statErr != nil {
			health.MissingPayloads = append(health.MissingPayloads, item.ID)
		}
	}

	entries, err := os.ReadDir(s.payloadDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return health, fmt.Errorf("read payload dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if fi, err := entry.Info(); err == nil {
			health.SpoolFiles++
			health.SpoolBytes += fi.Size()
		}
	}
	return health, nil
}
