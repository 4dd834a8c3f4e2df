package testsupport

import (
	"path/filepath"
	"testing"

	"rtsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Server.BaseURL = "http://127.0.0.1:1"
	cfgVal.Server.Token = "test-token"
	cfgVal.Server.RequestTimeoutSeconds = 5
	cfgVal.Connectivity.Mode = config.ConnectivityManual
	cfgVal.Connectivity.SysfsRoot = filepath.Join(base, "sysfs")
	cfgVal.Sync.DebounceMS = 20

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithServer points uploads at baseURL, typically an httptest server.
func WithServer(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.BaseURL = baseURL
	}
}

// WithDebounceMS overrides the sync debounce.
func WithDebounceMS(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.DebounceMS = ms
	}
}

// WithAPIToken enables bearer auth on the local API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
