package queue

import (
	"io"
	"strings"
	"time"
)

// Status represents the sync state of a queued upload.
type Status string

const (
	// StatusPending marks an item that has never been attempted.
	StatusPending Status = "pending"
	// StatusFailed marks an item whose last attempt failed. It stays queued
	// and is retried on later passes.
	StatusFailed Status = "failed"
	// StatusSynced marks an item whose upload was confirmed. Such items are
	// deleted immediately, so the value only appears on in-flight copies.
	StatusSynced Status = "synced"
)

var statusSet = map[Status]struct{}{
	StatusPending: {},
	StatusFailed:  {},
	StatusSynced:  {},
}

// ParseStatus converts a string into a Status if recognized.
func ParseStatus(value string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[s]
	return s, ok
}

// MediaType is the closed set of evidence kinds the server accepts.
type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
	MediaPDF   MediaType = "pdf"
)

// MediaTypes lists the accepted media types in display order.
func MediaTypes() []MediaType {
	return []MediaType{MediaPhoto, MediaVideo, MediaPDF}
}

// ParseMediaType converts a string into a MediaType if recognized.
func ParseMediaType(value string) (MediaType, bool) {
	m := MediaType(strings.ToLower(strings.TrimSpace(value)))
	switch m {
	case MediaPhoto, MediaVideo, MediaPDF:
		return m, true
	default:
		return "", false
	}
}

// Item is one pending upload.
type Item struct {
	ID            string
	RecordID      string
	MediaType     MediaType
	FileName      string
	ContentType   string
	PayloadSize   int64
	PayloadSHA256 string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
	RetryCount    int
	LastError     string
	LastAttemptAt *time.Time
}

// Clone returns a deep copy so snapshot readers cannot mutate shared state.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	cp := *i
	if i.LastAttemptAt != nil {
		t := *i.LastAttemptAt
		cp.LastAttemptAt = &t
	}
	return &cp
}

// UploadData is what a producer hands to Enqueue.
type UploadData struct {
	RecordID  string
	MediaType MediaType
	FileName  string
	// ContentType is optional; it is sniffed from the payload when empty.
	ContentType string
	Content     io.Reader
}

// Patch lists the fields Update may change. Nil fields are left untouched.
type Patch struct {
	Status        *Status
	RetryCount    *int
	LastError     *string
	LastAttemptAt *time.Time
}

func (p Patch) apply(item *Item) {
	if p.Status != nil {
		item.Status = *p.Status
	}
	if p.RetryCount != nil {
		item.RetryCount = *p.RetryCount
	}
	if p.LastError != nil {
		item.LastError = *p.LastError
	}
	if p.LastAttemptAt != nil {
		t := p.LastAttemptAt.UTC()
		item.LastAttemptAt = &t
	}
}

// FailurePatch builds the patch recorded after a failed attempt.
func FailurePatch(item *Item, message string, at time.Time) Patch {
	status := StatusFailed
	retries := item.RetryCount + 1
	return Patch{
		Status:        &status,
		RetryCount:    &retries,
		LastError:     &message,
		LastAttemptAt: &at,
	}
}

// Snapshot is the read-only mirror of the queue.
type Snapshot struct {
	Items       []*Item
	Pending     int
	Failed      int
	RefreshedAt time.Time
}

// Len returns the number of queued items.
func (s Snapshot) Len() int {
	return len(s.Items)
}

func newSnapshot(items []*Item, at time.Time) Snapshot {
	snap := Snapshot{Items: make([]*Item, 0, len(items)), RefreshedAt: at}
	for _, item := range items {
		snap.Items = append(snap.Items, item.Clone())
		switch item.Status {
		case StatusPending:
			snap.Pending++
		case StatusFailed:
			snap.Failed++
		}
	}
	return snap
}

// DatabaseHealth reports diagnostics for the queue database and spool.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	IntegrityCheck   string
	TotalItems       int
	SpoolDir         string
	SpoolFiles       int
	SpoolBytes       int64
	MissingPayloads  []string
	Error            string
}
