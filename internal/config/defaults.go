package config

const (
	defaultDataDir               = "~/.local/share/vaultingest"
	defaultLogDir                = "~/.local/share/vaultingest/logs"
	defaultEndpointTimeout       = 30
	defaultChunkSizeMiB          = 5
	defaultLargeFileThresholdMiB = 50
	defaultMaxFiles              = 10
	defaultStaleAfterDays        = 30
	defaultEmbeddingModel        = "text-embedding-3-small"
	defaultEmbeddingTimeout      = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

var defaultAllowedExtensions = []string{".pdf", ".txt", ".md", ".csv", ".json"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Endpoint: Endpoint{
			RequestTimeout: defaultEndpointTimeout,
		},
		Upload: Upload{
			ChunkSizeMiB:          defaultChunkSizeMiB,
			LargeFileThresholdMiB: defaultLargeFileThresholdMiB,
			MaxFiles:              defaultMaxFiles,
			AllowedExtensions:     append([]string(nil), defaultAllowedExtensions...),
			StaleAfterDays:        defaultStaleAfterDays,
		},
		Embedding: Embedding{
			Model:          defaultEmbeddingModel,
			TimeoutSeconds: defaultEmbeddingTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
