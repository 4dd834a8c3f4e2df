package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Server describes the remote warranty server that receives uploads.
type Server struct {
	BaseURL               string `toml:"base_url"`
	UploadPath            string `toml:"upload_path"`
	Token                 string `toml:"token"`
	TokenFile             string `toml:"token_file"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	UserAgent             string `toml:"user_agent"`
}

// Sync controls when and how the queue is drained.
type Sync struct {
	// DebounceMS is the quiet period after a queue change before an automatic
	// pass starts while online.
	DebounceMS int `toml:"debounce_ms"`
	// MaxRetries caps failed attempts per item. Zero means unlimited.
	MaxRetries int `toml:"max_retries"`
	// Backoff lists waits between attempts, indexed by retry count. The last
	// entry repeats. Empty means items are retried on every pass.
	Backoff []string `toml:"backoff"`
}

// Connectivity selects how online/offline transitions are detected.
type Connectivity struct {
	Mode                string   `toml:"mode"`
	PollIntervalSeconds int      `toml:"poll_interval_seconds"`
	Interfaces          []string `toml:"interfaces"`
	SysfsRoot           string   `toml:"sysfs_root"`
	ProbeURL            string   `toml:"probe_url"`
	ProbeTimeoutSeconds int      `toml:"probe_timeout_seconds"`
}

// Media holds producer-side size limits per media type.
type Media struct {
	PhotoMaxMB int `toml:"photo_max_mb"`
	VideoMaxMB int `toml:"video_max_mb"`
	PDFMaxMB   int `toml:"pdf_max_mb"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	QueueDrained   bool   `toml:"queue_drained"`
	SyncFailures   bool   `toml:"sync_failures"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for rtsync.
//
// Configuration sections by subsystem:
//   - Paths: queue data directory, logs, and the local API bind address
//   - Server: upload endpoint and credential source
//   - Sync: debounce and retry policy for the sync engine
//   - Connectivity: link detection mode and optional reachability probe
//   - Media: per-type size limits enforced before enqueue
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Sync          Sync          `toml:"sync"`
	Connectivity  Connectivity  `toml:"connectivity"`
	Media         Media         `toml:"media"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/rtsync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("rtsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.PayloadDir(), c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the SQLite database path.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// PayloadDir returns the directory holding spooled upload payloads.
func (c *Config) PayloadDir() string {
	return filepath.Join(c.Paths.DataDir, "payloads")
}

// LockPath returns the single-owner lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "rtsync.lock")
}

// SocketPath returns the daemon IPC socket path.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "rtsync.sock")
}

// PIDPath returns the daemon pid file path.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "rtsync.pid")
}

// DebounceInterval returns the sync debounce as a duration.
func (c *Config) DebounceInterval() time.Duration {
	return time.Duration(c.Sync.DebounceMS) * time.Millisecond
}

// BackoffSchedule parses the configured backoff list. Entries were validated
// at load time, so parse failures only occur for hand-built configs.
func (c *Config) BackoffSchedule() ([]time.Duration, error) {
	schedule := make([]time.Duration, 0, len(c.Sync.Backoff))
	for i, raw := range c.Sync.Backoff {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("sync.backoff[%d]: %w", i, err)
		}
		schedule = append(schedule, d)
	}
	return schedule, nil
}

// RequestTimeout returns the per-attempt upload timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// PollInterval returns the coarse connectivity polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Connectivity.PollIntervalSeconds) * time.Second
}

// ProbeTimeout returns the reachability probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Connectivity.ProbeTimeoutSeconds) * time.Second
}

// MaxBytes returns the size limit for the given media type and whether the
// media type is known.
func (c *Config) MaxBytes(mediaType string) (int64, bool) {
	const mb = int64(1024 * 1024)
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "photo":
		return int64(c.Media.PhotoMaxMB) * mb, true
	case "video":
		return int64(c.Media.VideoMaxMB) * mb, true
	case "pdf":
		return int64(c.Media.PDFMaxMB) * mb, true
	default:
		return 0, false
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
