package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/rtsync/config.toml"
		}
		return fmt.Errorf("server.base_url is required. Set RTSYNC_SERVER_URL env var or edit %s (create with 'rtsync config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("server.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("server.base_url must use http or https, got %q", c.Server.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("server.base_url must include a host, got %q", c.Server.BaseURL)
	}
	if !strings.Contains(c.Server.UploadPath, "{record_id}") {
		return errors.New("server.upload_path must contain the {record_id} placeholder")
	}
	if c.Server.Token != "" && c.Server.TokenFile != "" {
		return errors.New("server.token and server.token_file are mutually exclusive")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.MaxRetries < 0 {
		return errors.New("sync.max_retries must be >= 0 (0 means unlimited)")
	}
	for i, entry := range c.Sync.Backoff {
		d, err := time.ParseDuration(entry)
		if err != nil {
			return fmt.Errorf("sync.backoff[%d]: %q is not a duration (examples: 30s, 5m)", i, entry)
		}
		if d < 0 {
			return fmt.Errorf("sync.backoff[%d] must not be negative", i)
		}
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	switch c.Connectivity.Mode {
	case ConnectivityAuto, ConnectivityPoll, ConnectivityManual:
	default:
		return fmt.Errorf("connectivity.mode must be one of auto, poll, manual; got %q", c.Connectivity.Mode)
	}
	if c.Connectivity.ProbeURL != "" {
		parsed, err := url.Parse(c.Connectivity.ProbeURL)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("connectivity.probe_url must be an absolute http(s) URL, got %q", c.Connectivity.ProbeURL)
		}
	}
	return nil
}

func (c *Config) validateMedia() error {
	if c.Media.PhotoMaxMB <= 0 {
		return errors.New("media.photo_max_mb must be positive")
	}
	if c.Media.VideoMaxMB <= 0 {
		return errors.New("media.video_max_mb must be positive")
	}
	if c.Media.PDFMaxMB <= 0 {
		return errors.New("media.pdf_max_mb must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json; got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
