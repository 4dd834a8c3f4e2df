package preflight

import (
	"context"
	"errors"

	"rtsync/internal/config"
	"rtsync/internal/upload"
)

// CheckCredentialsFromConfig evaluates whether an upload token can be read.
func CheckCredentialsFromConfig(cfg *config.Config) Result {
	const name = "Upload credentials"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	source := upload.TokenFromConfig(cfg)
	if source == nil {
		return Result{Name: name, Detail: "No token configured; uploads are sent without authorization"}
	}
	if _, err := source.Token(context.Background()); err != nil {
		if errors.Is(err, upload.ErrNoToken) {
			return Result{Name: name, Detail: "Token file is empty"}
		}
		return Result{Name: name, Detail: err.Error()}
	}
	if cfg.Server.TokenFile != "" {
		return Result{Name: name, Passed: true, Detail: "Token file readable"}
	}
	return Result{Name: name, Passed: true, Detail: "Static token configured"}
}

// CheckServerFromConfig evaluates upload server reachability from config.
func CheckServerFromConfig(cfg *config.Config) Result {
	if cfg == nil {
		return Result{Name: "Upload server", Detail: "Unknown"}
	}
	return CheckServer(context.Background(), cfg.Server.BaseURL)
}
