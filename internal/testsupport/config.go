package testsupport

import (
	"path/filepath"
	"testing"

	"vaultingest/internal/config"
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
	cfgVal.Endpoint.BaseURL = "http://127.0.0.1:0"
	cfgVal.Endpoint.APIToken = "test-token"
	cfgVal.Embedding.BaseURL = "http://127.0.0.1:0"
	cfgVal.Embedding.APIKey = "test-key"

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

// WithEndpoint points the config at a live test endpoint URL.
func WithEndpoint(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Endpoint.BaseURL = baseURL
	}
}

// WithChunkSizeMiB overrides the configured chunk size.
func WithChunkSizeMiB(mib int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.ChunkSizeMiB = mib
	}
}

// WithLargeFileThresholdMiB overrides the chunked-path threshold.
func WithLargeFileThresholdMiB(mib int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.LargeFileThresholdMiB = mib
	}
}

// WithSkipStorage marks submissions as process-only.
func WithSkipStorage() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.SkipStorage = true
	}
}

// WithAllowedExtensions replaces the submission extension allowlist.
func WithAllowedExtensions(exts ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.AllowedExtensions = exts
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
