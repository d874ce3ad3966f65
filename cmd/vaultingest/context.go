package main

import (
	"path/filepath"
	"strings"
	"sync"

	"vaultingest/internal/config"
	"vaultingest/internal/embedding"
	"vaultingest/internal/extract"
	"vaultingest/internal/logging"
	"vaultingest/internal/pipeline"
	"vaultingest/internal/session"
	"vaultingest/internal/transfer"
	"vaultingest/internal/upload"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// engine bundles the wired upload machinery for one command invocation.
// The store holds an exclusive lock, so it lives only for the duration
// of withEngine.
type engine struct {
	cfg   *config.Config
	store *session.Store
	ctrl  *upload.Controller
}

func (c *commandContext) withEngine(fn func(*engine) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	// Logs go to the log file only; stdout belongs to command output
	// and the progress renderer.
	logPath := filepath.Join(cfg.Paths.LogDir, "vaultingest.log")
	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		return err
	}

	store, err := session.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	client := transfer.NewClient(transfer.Config{
		BaseURL:        cfg.Endpoint.BaseURL,
		APIToken:       cfg.Endpoint.APIToken,
		TimeoutSeconds: cfg.Endpoint.RequestTimeout,
	})
	embedder := embedding.NewClient(embedding.Config{
		BaseURL:        cfg.Embedding.BaseURL,
		APIKey:         cfg.Embedding.APIKey,
		Model:          cfg.Embedding.Model,
		TimeoutSeconds: cfg.Embedding.TimeoutSeconds,
	})
	runner := pipeline.NewRunner(extract.NewDispatcher(), embedder, logger)
	ctrl := upload.NewController(cfg, store, client, runner, logger)

	return fn(&engine{cfg: cfg, store: store, ctrl: ctrl})
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
