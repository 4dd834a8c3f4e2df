package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeServer(); err != nil {
		return err
	}
	c.normalizeSync()
	if err := c.normalizeConnectivity(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = strings.TrimSpace(os.Getenv("RTSYNC_API_TOKEN"))
	}
	return nil
}

func (c *Config) normalizeServer() error {
	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("RTSYNC_SERVER_URL")), "/")
	}
	c.Server.UploadPath = strings.TrimSpace(c.Server.UploadPath)
	if c.Server.UploadPath == "" {
		c.Server.UploadPath = defaultUploadPath
	}
	if !strings.HasPrefix(c.Server.UploadPath, "/") {
		c.Server.UploadPath = "/" + c.Server.UploadPath
	}
	c.Server.Token = strings.TrimSpace(c.Server.Token)
	if c.Server.Token == "" {
		c.Server.Token = strings.TrimSpace(os.Getenv("RTSYNC_SERVER_TOKEN"))
	}
	if strings.TrimSpace(c.Server.TokenFile) != "" {
		expanded, err := expandPath(strings.TrimSpace(c.Server.TokenFile))
		if err != nil {
			return fmt.Errorf("server.token_file: %w", err)
		}
		c.Server.TokenFile = expanded
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		c.Server.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	c.Server.UserAgent = strings.TrimSpace(c.Server.UserAgent)
	if c.Server.UserAgent == "" {
		c.Server.UserAgent = defaultUserAgent
	}
	return nil
}

func (c *Config) normalizeSync() {
	if c.Sync.DebounceMS <= 0 {
		c.Sync.DebounceMS = defaultDebounceMS
	}
	cleaned := make([]string, 0, len(c.Sync.Backoff))
	for _, entry := range c.Sync.Backoff {
		if entry = strings.TrimSpace(entry); entry != "" {
			cleaned = append(cleaned, entry)
		}
	}
	c.Sync.Backoff = cleaned
}

func (c *Config) normalizeConnectivity() error {
	c.Connectivity.Mode = strings.ToLower(strings.TrimSpace(c.Connectivity.Mode))
	if c.Connectivity.Mode == "" {
		c.Connectivity.Mode = defaultConnectivityMode
	}
	if c.Connectivity.PollIntervalSeconds <= 0 {
		c.Connectivity.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Connectivity.ProbeTimeoutSeconds <= 0 {
		c.Connectivity.ProbeTimeoutSeconds = defaultProbeTimeoutSeconds
	}
	if strings.TrimSpace(c.Connectivity.SysfsRoot) == "" {
		c.Connectivity.SysfsRoot = defaultSysfsRoot
	}
	var err error
	if c.Connectivity.SysfsRoot, err = expandPath(c.Connectivity.SysfsRoot); err != nil {
		return fmt.Errorf("connectivity.sysfs_root: %w", err)
	}
	ifaces := make([]string, 0, len(c.Connectivity.Interfaces))
	seen := make(map[string]struct{}, len(c.Connectivity.Interfaces))
	for _, name := range c.Connectivity.Interfaces {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		ifaces = append(ifaces, name)
	}
	c.Connectivity.Interfaces = ifaces
	c.Connectivity.ProbeURL = strings.TrimSpace(c.Connectivity.ProbeURL)
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeoutSecs
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
