package queue

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rtsync/internal/config"
	"rtsync/internal/services"
)

// ItemStore is the durable key-value contract the Manager depends on.
type ItemStore interface {
	PutWithPayload(ctx context.Context, item *Item, payload io.Reader) error
	Get(ctx context.Context, id string) (*Item, error)
	Mutate(ctx context.Context, id string, fn func(*Item)) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]*Item, error)
	OpenPayload(id string) (io.ReadCloser, error)
}

// Store manages queue persistence backed by SQLite.
type Store struct {
	db         *sql.DB
	path       string
	payloadDir string
}

var _ ItemStore = (*Store)(nil)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// inTx runs fn inside a transaction, retrying the whole transaction when
// SQLite reports the database as busy.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func storageErr(operation, message string, err error) error {
	return services.Wrap(services.ErrStorage, "queue", operation, message, err)
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(FULL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Open initializes or connects to the queue database. Opening an existing
// database is idempotent; the schema is only created once.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, storageErr("open", "config is nil", nil)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, storageErr("open", "ensure directories", err)
	}

	dbPath := cfg.QueueDBPath()
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, storageErr("open", "open sqlite db", err)
	}

	store := &Store{db: db, path: dbPath, payloadDir: cfg.PayloadDir()}
	ctx := context.Background()
	if err := retryOnBusy(ctx, func() error { return store.initSchema(ctx) }); err != nil {
		_ = db.Close()
		if errors.Is(err, ErrSchemaMismatch) {
			return nil, err
		}
		return nil, storageErr("open", "init schema", err)
	}

	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureOpen() error {
	if s == nil || s.db == nil {
		return storageErr("", "store is not open", nil)
	}
	return nil
}
