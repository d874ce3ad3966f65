package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEndpoint(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEndpoint() error {
	if c.Endpoint.BaseURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Endpoint.BaseURL)
	if err != nil {
		return fmt.Errorf("endpoint.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("endpoint.base_url: unsupported scheme %q", parsed.Scheme)
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.ChunkSizeMiB > c.Upload.LargeFileThresholdMiB {
		return fmt.Errorf(
			"upload.chunk_size_mib (%d) must not exceed upload.large_file_threshold_mib (%d)",
			c.Upload.ChunkSizeMiB, c.Upload.LargeFileThresholdMiB,
		)
	}
	for _, ext := range c.Upload.AllowedExtensions {
		if strings.ContainsAny(ext, "/\\") {
			return fmt.Errorf("upload.allowed_extensions: invalid extension %q", ext)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
