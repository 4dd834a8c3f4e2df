package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"rtsync/internal/config"
	"rtsync/internal/queue"
	"rtsync/internal/services"
)

const (
	recordPlaceholder = "{record_id}"
	maxResponseBody   = 64 << 10
	maxDetailLength   = 200
)

// Options configures an Adapter.
type Options struct {
	BaseURL    string
	UploadPath string
	UserAgent  string
	Timeout    time.Duration
	Tokens     TokenSource
	// Client overrides the default HTTP client.
	Client *http.Client
}

// Adapter uploads one item per Attempt call.
type Adapter struct {
	baseURL    string
	uploadPath string
	userAgent  string
	tokens     TokenSource
	client     *http.Client
}

// Outcome describes one attempt.
type Outcome struct {
	Delivered  bool
	StatusCode int
	Kind       FailureKind
	Reason     string
	// Message is what gets recorded as the item's last error.
	Message   string
	Duration  time.Duration
	RequestID string
}

// Err converts a failed outcome into an error tagged with a services marker.
func (o Outcome) Err() error {
	if o.Delivered {
		return nil
	}
	marker := services.ErrTransport
	switch o.Kind {
	case FailureRemote:
		marker = services.ErrRemoteRejected
	case FailureCredentials:
		if o.StatusCode != 0 {
			marker = services.ErrRemoteRejected
		} else {
			marker = services.ErrConfiguration
		}
	case FailurePayload:
		marker = services.ErrStorage
	}
	return services.Wrap(marker, "upload", "attempt", o.Message, nil)
}

// New builds an adapter from options.
func New(opts Options) *Adapter {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		client = &http.Client{Timeout: timeout}
	}
	uploadPath := opts.UploadPath
	if uploadPath == "" {
		uploadPath = "/api/records/" + recordPlaceholder + "/upload"
	}
	return &Adapter{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		uploadPath: uploadPath,
		userAgent:  opts.UserAgent,
		tokens:     opts.Tokens,
		client:     client,
	}
}

// NewFromConfig builds an adapter for the configured server.
func NewFromConfig(cfg *config.Config) *Adapter {
	return New(Options{
		BaseURL:    cfg.Server.BaseURL,
		UploadPath: cfg.Server.UploadPath,
		UserAgent:  cfg.Server.UserAgent,
		Timeout:    cfg.RequestTimeout(),
		Tokens:     TokenFromConfig(cfg),
	})
}

// Attempt streams payload to the server for item. It performs exactly one
// request and never returns an error; failures are described by the Outcome.
func (a *Adapter) Attempt(ctx context.Context, item *queue.Item, payload io.Reader) Outcome {
	started := time.Now()
	outcome := Outcome{RequestID: uuid.NewString()}
	finish := func(statusCode int, err error, message string) Outcome {
		outcome.Duration = time.Since(started)
		outcome.StatusCode = statusCode
		if err == nil && statusCode >= 200 && statusCode < 300 {
			outcome.Delivered = true
			return outcome
		}
		outcome.Kind, outcome.Reason = Classify(statusCode, err)
		outcome.Message = message
		return outcome
	}

	if item == nil {
		err := &payloadError{err: errors.New("nil item")}
		return finish(0, err, err.Error())
	}

	target, err := a.uploadURL(item.RecordID)
	if err != nil {
		err = &payloadError{err: err}
		return finish(0, err, err.Error())
	}

	var token string
	if a.tokens != nil {
		token, err = a.tokens.Token(ctx)
		if err != nil {
			err = &credentialsError{err: err}
			return finish(0, err, err.Error())
		}
	}

	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	writeDone := make(chan error, 1)
	go func() {
		err := writeForm(form, item, payload)
		_ = writer.CloseWithError(err)
		writeDone <- err
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		_ = body.CloseWithError(err)
		<-writeDone
		return finish(0, err, err.Error())
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", outcome.RequestID)
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		// Unblock the writer if the transport gave up before draining the body.
		_ = body.CloseWithError(err)
		if werr := <-writeDone; werr != nil {
			var pe *payloadError
			if errors.As(werr, &pe) {
				return finish(0, werr, werr.Error())
			}
		}
		return finish(0, err, transportMessage(err))
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	_ = body.Close()
	var pe *payloadError
	if werr := <-writeDone; errors.As(werr, &pe) {
		return finish(0, werr, werr.Error())
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return finish(resp.StatusCode, nil, "")
	}
	return finish(resp.StatusCode, nil, statusMessage(resp.StatusCode, raw))
}

func (a *Adapter) uploadURL(recordID string) (string, error) {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return "", errors.New("record id is empty")
	}
	if a.baseURL == "" {
		return "", errors.New("server base url is empty")
	}
	path := strings.ReplaceAll(a.uploadPath, recordPlaceholder, url.PathEscape(recordID))
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return a.baseURL + path, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeForm(form *multipart.Writer, item *queue.Item, payload io.Reader) error {
	if err := form.WriteField("media_type", string(item.MediaType)); err != nil {
		return err
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(item.FileName)))
	contentType := item.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}
	if payload == nil {
		return &payloadError{err: errors.New("payload missing")}
	}
	if _, err := io.Copy(part, readerFunc(func(p []byte) (int, error) {
		n, err := payload.Read(p)
		if err != nil && err != io.EOF {
			return n, &payloadError{err: err}
		}
		return n, err
	})); err != nil {
		return err
	}
	return form.Close()
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

// statusMessage renders "HTTP <status>" plus the server's detail when the
// body is a JSON error document.
func statusMessage(status int, body []byte) string {
	message := fmt.Sprintf("HTTP %d", status)
	if detail := errorDetail(body); detail != "" {
		message += ": " + detail
	}
	return message
}

func errorDetail(body []byte) string {
	var doc struct {
		Detail json.RawMessage `json:"detail"`
	}
	if len(body) == 0 || json.Unmarshal(body, &doc) != nil || len(doc.Detail) == 0 {
		return ""
	}
	var text string
	if json.Unmarshal(doc.Detail, &text) != nil {
		text = string(doc.Detail)
	}
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxDetailLength {
		text = text[:maxDetailLength] + "..."
	}
	return text
}

func transportMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return err.Error()
}
