package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, record_id, media_type, file_name, content_type, payload_size, payload_sha256, status, created_at, updated_at, retry_count, last_error, last_attempt_at"

// timeLayout is fixed width so lexical order in SQLite matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id             string
		recordID       string
		mediaType      string
		fileName       sql.NullString
		contentType    sql.NullString
		payloadSize    int64
		payloadSHA     sql.NullString
		statusStr      string
		createdRaw     string
		updatedRaw     string
		retryCount     int
		lastError      sql.NullString
		lastAttemptRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&recordID,
		&mediaType,
		&fileName,
		&contentType,
		&payloadSize,
		&payloadSHA,
		&statusStr,
		&createdRaw,
		&updatedRaw,
		&retryCount,
		&lastError,
		&lastAttemptRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:            id,
		RecordID:      recordID,
		MediaType:     MediaType(mediaType),
		FileName:      fileName.String,
		ContentType:   contentType.String,
		PayloadSize:   payloadSize,
		PayloadSHA256: payloadSHA.String,
		Status:        Status(statusStr),
		RetryCount:    retryCount,
		LastError:     lastError.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	if lastAttemptRaw.Valid {
		if attempted, err := parseTimeString(lastAttemptRaw.String); err == nil {
			item.LastAttemptAt = &attempted
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
