package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"rtsync/internal/config"
)

// ErrNoToken is returned by token sources that have nothing to offer.
var ErrNoToken = errors.New("no upload token configured")

// TokenSource supplies the bearer token for each attempt.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token.
type StaticToken string

// Token returns the token or ErrNoToken when empty.
func (s StaticToken) Token(context.Context) (string, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// FileToken reads the token from a file on every attempt so rotated
// credentials are picked up without a restart.
type FileToken struct {
	Path string
}

// Token reads and trims the file contents.
func (f FileToken) Token(context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s: %w", f.Path, ErrNoToken)
	}
	return token, nil
}

// TokenFromConfig selects the configured token source. It returns nil when no
// credential is configured; attempts are then sent without authorization.
func TokenFromConfig(cfg *config.Config) TokenSource {
	if cfg == nil {
		return nil
	}
	if path := strings.TrimSpace(cfg.Server.TokenFile); path != "" {
		return FileToken{Path: path}
	}
	if token := strings.TrimSpace(cfg.Server.Token); token != "" {
		return StaticToken(token)
	}
	return nil
}
