package daemon

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"rtsync/internal/api"
	"rtsync/internal/logging"
	"rtsync/internal/queue"
	"rtsync/internal/services"
)

// EnqueueRequest is an upload intent handed over by a producer.
type EnqueueRequest struct {
	RecordID string
	// MediaType may be empty; it is then inferred from the file name.
	MediaType   string
	FileName    string
	ContentType string
	// Size is the payload length in bytes as reported by the producer.
	Size    int64
	Content io.Reader
}

// Enqueue validates req and persists it. Validation failures carry
// services.ErrValidation and never reach the queue.
func (d *Daemon) Enqueue(ctx context.Context, req EnqueueRequest) (api.QueueItem, error) {
	mediaType, limit, err := d.validate(req)
	if err != nil {
		d.logger.Info("upload rejected",
			logging.String(logging.FieldRecordID, req.RecordID),
			logging.String("file_name", req.FileName),
			logging.Error(err),
			logging.String(logging.FieldEventType, "enqueue_rejected"),
		)
		return api.QueueItem{}, err
	}
	item, err := d.queue.Enqueue(ctx, queue.UploadData{
		RecordID:    req.RecordID,
		MediaType:   mediaType,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Content:     &capReader{r: req.Content, remaining: limit},
	})
	if err != nil {
		return api.QueueItem{}, err
	}
	d.metrics.RecordEnqueue(string(item.MediaType))
	return api.FromQueueItem(item, d.policy), nil
}

// EnqueueFile enqueues a file from the local filesystem.
func (d *Daemon) EnqueueFile(ctx context.Context, recordID, mediaType, path string) (api.QueueItem, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return api.QueueItem{}, services.Wrap(services.ErrValidation, "daemon", "enqueue", "file path is required", nil)
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return api.QueueItem{}, services.Wrap(services.ErrValidation, "daemon", "enqueue", "resolve file path", err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return api.QueueItem{}, services.Wrap(services.ErrValidation, "daemon", "enqueue", "open file", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return api.QueueItem{}, services.Wrap(services.ErrValidation, "daemon", "enqueue", "stat file", err)
	}
	if info.IsDir() {
		return api.QueueItem{}, services.Wrap(services.ErrValidation, "daemon", "enqueue",
			fmt.Sprintf("%s is a directory", absPath), nil)
	}
	return d.Enqueue(ctx, EnqueueRequest{
		RecordID:  recordID,
		MediaType: mediaType,
		FileName:  info.Name(),
		Size:      info.Size(),
		Content:   file,
	})
}

func (d *Daemon) validate(req EnqueueRequest) (queue.MediaType, int64, error) {
	invalid := func(format string, args ...any) error {
		return services.Wrap(services.ErrValidation, "daemon", "enqueue", fmt.Sprintf(format, args...), nil)
	}
	if strings.TrimSpace(req.RecordID) == "" {
		return "", 0, invalid("record id is required")
	}
	if req.Content == nil {
		return "", 0, invalid("file is required")
	}

	raw := strings.TrimSpace(req.MediaType)
	var mediaType queue.MediaType
	if raw == "" {
		inferred, ok := InferMediaType(req.FileName, req.ContentType)
		if !ok {
			return "", 0, invalid("cannot infer media type for %q; pass one of photo, video, pdf", req.FileName)
		}
		mediaType = inferred
	} else {
		parsed, ok := queue.ParseMediaType(raw)
		if !ok {
			return "", 0, invalid("unsupported media type %q (want photo, video or pdf)", raw)
		}
		mediaType = parsed
	}

	limit, ok := d.cfg.MaxBytes(string(mediaType))
	if !ok || limit <= 0 {
		return "", 0, invalid("no size limit configured for %s", mediaType)
	}
	if req.Size <= 0 {
		return "", 0, invalid("file is empty")
	}
	if req.Size > limit {
		return "", 0, invalid("%s exceeds the %s limit of %d MB", humanize.IBytes(uint64(req.Size)), mediaType, limit>>20)
	}
	return mediaType, limit, nil
}

// InferMediaType maps a file name or MIME type onto the closed media set.
func InferMediaType(fileName, contentType string) (queue.MediaType, bool) {
	candidates := []string{strings.TrimSpace(contentType)}
	if ext := filepath.Ext(fileName); ext != "" {
		candidates = append(candidates, mime.TypeByExtension(strings.ToLower(ext)))
	}
	for _, candidate := range candidates {
		base, _, _ := strings.Cut(strings.ToLower(candidate), ";")
		switch {
		case strings.HasPrefix(base, "image/"):
			return queue.MediaPhoto, true
		case strings.HasPrefix(base, "video/"):
			return queue.MediaVideo, true
		case base == "application/pdf":
			return queue.MediaPDF, true
		}
	}
	return "", false
}

// capReader fails once more than remaining bytes are read, catching files
// that grow between the size check and the spool.
type capReader struct {
	r         io.Reader
	remaining int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.remaining <= 0 {
		var probe [1]byte
		n, err := c.r.Read(probe[:])
		if n > 0 {
			return 0, services.Wrap(services.ErrValidation, "daemon", "enqueue", "payload exceeds media size limit", nil)
		}
		return 0, err
	}
	if int64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	return n, err
}
