package connectivity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Prober checks that a URL answers. Any HTTP response counts as reachable;
// only transport failures mean offline.
type Prober struct {
	url    string
	client *http.Client
}

// NewProber builds a prober for url with the given timeout.
func NewProber(url string, timeout time.Duration) *Prober {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{url: url, client: &http.Client{Timeout: timeout}}
}

// Check issues a HEAD request.
func (p *Prober) Check(ctx context.Context) error {
	if p == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
	return nil
}
