package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queued upload in a transport-friendly format.
type QueueItem struct {
	ID            string `json:"id"`
	RecordID      string `json:"recordId"`
	MediaType     string `json:"mediaType"`
	FileName      string `json:"fileName"`
	ContentType   string `json:"contentType,omitempty"`
	PayloadSize   int64  `json:"payloadSize"`
	PayloadSHA256 string `json:"payloadSha256,omitempty"`
	Status        string `json:"status"`
	RetryCount    int    `json:"retryCount"`
	LastError     string `json:"lastError,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
	LastAttemptAt string `json:"lastAttemptAt,omitempty"`
	// Exhausted is set when the retry cap stops further attempts.
	Exhausted bool `json:"exhausted,omitempty"`
	// NextAttemptAt is set while a backoff delay holds the item back.
	NextAttemptAt string `json:"nextAttemptAt,omitempty"`
}

// PassSummary reports the outcome of one sync pass.
type PassSummary struct {
	ID          string `json:"id,omitempty"`
	Reason      string `json:"reason"`
	Refused     string `json:"refused,omitempty"`
	StartedAt   string `json:"startedAt,omitempty"`
	FinishedAt  string `json:"finishedAt,omitempty"`
	DurationMS  int64  `json:"durationMs"`
	Attempted   int    `json:"attempted"`
	Delivered   int    `json:"delivered"`
	Failed      int    `json:"failed"`
	Skipped     int    `json:"skipped"`
	Exhausted   int    `json:"exhausted"`
	Interrupted bool   `json:"interrupted,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

// SyncStatus summarizes the sync engine.
type SyncStatus struct {
	Syncing   bool         `json:"syncing"`
	Online    bool         `json:"online"`
	Pending   int          `json:"pending"`
	Failed    int          `json:"failed"`
	Exhausted int          `json:"exhausted"`
	LastPass  *PassSummary `json:"lastPass,omitempty"`
	LastError string       `json:"lastError,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running          bool           `json:"running"`
	PID              int            `json:"pid"`
	QueueDBPath      string         `json:"queueDbPath"`
	LockFilePath     string         `json:"lockFilePath"`
	SocketPath       string         `json:"socketPath,omitempty"`
	ServerURL        string         `json:"serverUrl"`
	ConnectivityMode string         `json:"connectivityMode"`
	ConnectivityNote string         `json:"connectivityNote,omitempty"`
	QueueStats       map[string]int `json:"queueStats"`
	Sync             SyncStatus     `json:"sync"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// EnqueueResponse is returned after an upload intent was persisted.
type EnqueueResponse struct {
	Item QueueItem `json:"item"`
}

// SyncResponse reports a manually triggered pass.
type SyncResponse struct {
	Pass PassSummary `json:"pass"`
}

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
