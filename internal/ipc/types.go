package ipc

import "rtsync/internal/api"

// QueueItem mirrors the HTTP API queue DTO for internal IPC callers.
type QueueItem = api.QueueItem

// PassSummary mirrors the HTTP API pass DTO.
type PassSummary = api.PassSummary

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and sync status information.
type StatusResponse = api.DaemonStatus

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueDescribeRequest fetches a single queue item by id.
type QueueDescribeRequest struct {
	ID string `json:"id"`
}

// QueueDescribeResponse contains a single queue entry.
type QueueDescribeResponse struct {
	Found bool      `json:"found"`
	Item  QueueItem `json:"item"`
}

// EnqueueRequest hands a local file to the daemon. Path must be absolute;
// the daemon opens it directly.
type EnqueueRequest struct {
	RecordID  string `json:"record_id"`
	MediaType string `json:"media_type"`
	Path      string `json:"path"`
}

// EnqueueResponse returns the persisted item.
type EnqueueResponse struct {
	Item QueueItem `json:"item"`
}

// SyncNowRequest triggers a manual pass.
type SyncNowRequest struct{}

// SyncNowResponse reports the pass outcome.
type SyncNowResponse struct {
	Pass PassSummary `json:"pass"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    int      `json:"schema_version"`
	IntegrityCheck   string   `json:"integrity_check"`
	TotalItems       int      `json:"total_items"`
	SpoolDir         string   `json:"spool_dir"`
	SpoolFiles       int      `json:"spool_files"`
	SpoolBytes       int64    `json:"spool_bytes"`
	MissingPayloads  []string `json:"missing_payloads,omitempty"`
	Error            string   `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports whether the notification was sent.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
