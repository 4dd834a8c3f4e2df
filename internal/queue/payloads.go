package queue

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrPayloadMissing reports a queued item whose spool file is gone.
var ErrPayloadMissing = errors.New("payload missing")

func (s *Store) payloadPath(id string) string {
	return filepath.Join(s.payloadDir, id)
}

// PayloadDir returns the spool directory.
func (s *Store) PayloadDir() string {
	if s == nil {
		return ""
	}
	return s.payloadDir
}

// OpenPayload opens the spooled bytes for id.
func (s *Store) OpenPayload(id string) (io.ReadCloser, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if err := validateItem(&Item{ID: id}); err != nil {
		return nil, storageErr("payload", "open payload", err)
	}
	f, err := os.Open(s.payloadPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storageErr("payload", "open payload "+id, ErrPayloadMissing)
	}
	if err != nil {
		return nil, storageErr("payload", "open payload "+id, err)
	}
	return f, nil
}

// OrphanGrace is the minimum age of a spool file before SweepOrphans treats
// it as abandoned.
const OrphanGrace = 10 * time.Minute

// SweepOrphans removes spool files that have no row and temp files left by an
// interrupted write. Files modified within grace are kept because an enqueue
// may still be writing them. Callers must hold the daemon lock. It returns the
// number of files removed.
func (s *Store) SweepOrphans(ctx context.Context, grace time.Duration) (int, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(s.payloadDir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("sweep", "read payload dir", err)
	}
	known, err := s.knownIDs(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-grace)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, tracked := known[name]; tracked && !strings.HasPrefix(name, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.payloadDir, name)); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (s *Store) knownIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM queue_items`)
	if err != nil {
		return nil, storageErr("sweep", "list item ids", err)
	}
	defer rows.Close()
	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("open", "scan item id", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("sweep", "list item ids", err)
	}
	return ids, nil
}
