package queue

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"rtsync/internal/fileutil"
)

const upsertItemSQL = `INSERT INTO queue_items (
        id, record_id, media_type, file_name, content_type, payload_size, payload_sha256,
        status, created_at, updated_at, retry_count, last_error, last_attempt_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(id) DO UPDATE SET
        record_id = excluded.record_id,
        media_type = excluded.media_type,
        file_name = excluded.file_name,
        content_type = excluded.content_type,
        payload_size = excluded.payload_size,
        payload_sha256 = excluded.payload_sha256,
        status = excluded.status,
        updated_at = excluded.updated_at,
        retry_count = excluded.retry_count,
        last_error = excluded.last_error,
        last_attempt_at = excluded.last_attempt_at`

func validateItem(item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	if strings.TrimSpace(item.ID) == "" {
		return errors.New("item id is empty")
	}
	if strings.ContainsAny(item.ID, `/\`) || item.ID == "." || item.ID == ".." {
		return errors.New("item id contains path separators")
	}
	return nil
}

func upsertItem(ctx context.Context, tx *sql.Tx, item *Item) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}
	if item.Status == "" {
		item.Status = StatusPending
	}
	_, err := tx.ExecContext(ctx, upsertItemSQL,
		item.ID,
		item.RecordID,
		string(item.MediaType),
		nullableString(item.FileName),
		nullableString(item.ContentType),
		item.PayloadSize,
		nullableString(item.PayloadSHA256),
		string(item.Status),
		formatTime(item.CreatedAt),
		formatTime(item.UpdatedAt),
		item.RetryCount,
		nullableString(item.LastError),
		nullableTime(item.LastAttemptAt),
	)
	return err
}

// Put writes item as one row, replacing any row with the same id. The
// creation timestamp of an existing row is preserved.
func (s *Store) Put(ctx context.Context, item *Item) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := validateItem(item); err != nil {
		return storageErr("put", "invalid item", err)
	}
	if err := s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertItem(ctx, tx, item)
	}); err != nil {
		return storageErr("put", "write item "+item.ID, err)
	}
	return nil
}

// PutWithPayload spools payload to disk and then commits the row. The row
// commit is the point at which the item exists; a failed commit removes the
// spool file again.
func (s *Store) PutWithPayload(ctx context.Context, item *Item, payload io.Reader) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := validateItem(item); err != nil {
		return storageErr("put", "invalid item", err)
	}
	if payload == nil {
		payload = strings.NewReader("")
	}
	spoolPath := s.payloadPath(item.ID)
	written, err := fileutil.WriteAtomic(spoolPath, payload, 0o600)
	if err != nil {
		return storageErr("put", "spool payload for "+item.ID, err)
	}
	item.PayloadSize = written.Size
	item.PayloadSHA256 = written.SHA256

	if err := s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertItem(ctx, tx, item)
	}); err != nil {
		_ = os.Remove(spoolPath)
		return storageErr("put", "write item "+item.ID, err)
	}
	return nil
}

// Get fetches a queue item by identifier. It returns nil, nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	ctx = ensureContext(ctx)
	var item *Item
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
		var scanErr error
		item, scanErr = scanItem(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get", "read item "+id, err)
	}
	return item, nil
}

// Mutate loads the row for id, lets fn modify it, and writes it back inside
// one transaction. It reports false without calling fn when the row is absent.
func (s *Store) Mutate(ctx context.Context, id string, fn func(*Item)) (bool, error) {
	if err := s.ensureOpen(); err != nil {
		return false, err
	}
	ctx = ensureContext(ctx)
	found := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		found = false
		row := tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
		item, err := scanItem(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		createdAt := item.CreatedAt
		fn(item)
		item.ID = id
		item.CreatedAt = createdAt
		return upsertItem(ctx, tx, item)
	})
	if err != nil {
		return false, storageErr("update", "mutate item "+id, err)
	}
	return found, nil
}

// Delete removes the row for id and then its spool file. It reports whether a
// row existed. A spool file that cannot be removed is swept on the next Open.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.ensureOpen(); err != nil {
		return false, err
	}
	ctx = ensureContext(ctx)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, storageErr("delete", "delete item "+id, err)
	}
	if validateItem(&Item{ID: id}) == nil {
		_ = os.Remove(s.payloadPath(id))
	}
	return affected > 0, nil
}

// List returns a point-in-time snapshot of every item in insertion order.
func (s *Store) List(ctx context.Context) ([]*Item, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	ctx = ensureContext(ctx)
	var items []*Item
	err := retryOnBusy(ctx, func() error {
		items = nil
		rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM queue_items ORDER BY created_at, id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			item, err := scanItem(rows)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storageErr("list", "list items", err)
	}
	return items, nil
}

// ListByStatus returns items with one of the given statuses in insertion order.
func (s *Store) ListByStatus(ctx context.Context, statuses ...Status) ([]*Item, error) {
	items, err := s.List(ctx)
	if err != nil || len(statuses) == 0 {
		return items, err
	}
	want := make(map[Status]struct{}, len(statuses))
	for _, st := range statuses {
		want[st] = struct{}{}
	}
	filtered := make([]*Item, 0, len(items))
	for _, item := range items {
		if _, ok := want[item.Status]; ok {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}
