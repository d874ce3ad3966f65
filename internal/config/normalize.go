package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEndpoint()
	c.normalizeUpload()
	c.normalizeEmbedding()
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
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEndpoint() {
	c.Endpoint.BaseURL = strings.TrimRight(strings.TrimSpace(c.Endpoint.BaseURL), "/")
	if c.Endpoint.APIToken == "" {
		if value, ok := os.LookupEnv("VAULTINGEST_API_TOKEN"); ok {
			c.Endpoint.APIToken = strings.TrimSpace(value)
		}
	}
	if c.Endpoint.RequestTimeout <= 0 {
		c.Endpoint.RequestTimeout = defaultEndpointTimeout
	}
}

func (c *Config) normalizeUpload() {
	if c.Upload.ChunkSizeMiB <= 0 {
		c.Upload.ChunkSizeMiB = defaultChunkSizeMiB
	}
	if c.Upload.LargeFileThresholdMiB <= 0 {
		c.Upload.LargeFileThresholdMiB = defaultLargeFileThresholdMiB
	}
	if c.Upload.MaxFiles <= 0 {
		c.Upload.MaxFiles = defaultMaxFiles
	}
	if c.Upload.StaleAfterDays <= 0 {
		c.Upload.StaleAfterDays = defaultStaleAfterDays
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = append([]string(nil), defaultAllowedExtensions...)
	}
	normalized := make([]string, 0, len(c.Upload.AllowedExtensions))
	for _, ext := range c.Upload.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	c.Upload.AllowedExtensions = normalized
}

func (c *Config) normalizeEmbedding() {
	c.Embedding.BaseURL = strings.TrimSpace(c.Embedding.BaseURL)
	if c.Embedding.APIKey == "" {
		if value, ok := os.LookupEnv("VAULTINGEST_EMBEDDING_API_KEY"); ok {
			c.Embedding.APIKey = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Embedding.Model) == "" {
		c.Embedding.Model = defaultEmbeddingModel
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		c.Embedding.TimeoutSeconds = defaultEmbeddingTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
