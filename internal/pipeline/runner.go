package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"vaultingest/internal/logging"
	"vaultingest/internal/services"
)

// Extractor produces the text content of a file.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Embedder indexes extracted text with the embedding collaborator.
type Embedder interface {
	Embed(ctx context.Context, filename, text string) error
}

// Input describes one processing run.
type Input struct {
	Path     string
	Filename string

	// Upload, when set, is invoked first and drives the uploading band.
	// It is set only on the small-file path; chunked transfers arrive
	// here with their bytes already stored, and skip-storage runs have
	// no upload at all.
	Upload func(ctx context.Context) error

	Observer Observer
}

// Runner drives a file through extraction and embedding, reporting
// coarse stage progress. A stage failure halts the run and discards any
// partial results from earlier stages.
type Runner struct {
	extractor Extractor
	embedder  Embedder
	logger    *slog.Logger
}

// NewRunner constructs a pipeline runner.
func NewRunner(extractor Extractor, embedder Embedder, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		extractor: extractor,
		embedder:  embedder,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Run executes the staged pipeline for one file. The returned error is
// tagged for classification; the observer has already seen the error
// stage by the time Run returns.
func (r *Runner) Run(ctx context.Context, in Input) error {
	progress := newProgressTracker(in.Observer)
	log := logging.WithContext(ctx, r.logger).With(logging.String("filename", in.Filename))

	if in.Upload != nil {
		progress.enter(StageUploading, "storing file")
		if err := in.Upload(ctx); err != nil {
			progress.fail(err)
			return err
		}
		progress.finish(StageUploading, "file stored")
	}

	progress.enter(StageExtracting, "extracting content")
	log.Info("extraction started")
	text, err := r.extractor.Extract(ctx, in.Path)
	if err != nil {
		wrapped := services.Wrap(services.ErrProcessing, "extracting", "extract", in.Filename, err)
		progress.fail(wrapped)
		log.Error("extraction failed", logging.Error(err))
		return wrapped
	}
	if strings.TrimSpace(text) == "" {
		wrapped := services.Wrap(services.ErrProcessing, "extracting", "extract",
			in.Filename+": no textual content", nil)
		progress.fail(wrapped)
		return wrapped
	}
	progress.finish(StageExtracting, "content extracted")
	log.Info("extraction finished", logging.Int("chars", len(text)))

	progress.enter(StageEmbedding, "indexing content")
	if err := r.embedder.Embed(ctx, in.Filename, text); err != nil {
		wrapped := services.Wrap(services.ErrProcessing, "embedding", "embed", in.Filename, err)
		progress.fail(wrapped)
		log.Error("embedding failed", logging.Error(err))
		return wrapped
	}
	progress.finish(StageEmbedding, "content indexed")

	progress.complete("done")
	log.Info("pipeline complete")
	return nil
}

// progressTracker enforces the monotonic-percent invariant and keeps
// the last stage for error reporting.
type progressTracker struct {
	observer  Observer
	lastStage Stage
	percent   int
}

func newProgressTracker(observer Observer) *progressTracker {
	return &progressTracker{observer: observer}
}

func (p *progressTracker) emit(stage Stage, percent int, message string) {
	if percent < p.percent {
		percent = p.percent
	}
	p.percent = percent
	if stage != StageError {
		p.lastStage = stage
	}
	if p.observer != nil {
		p.observer(Update{Stage: stage, Percent: percent, Message: message})
	}
}

func (p *progressTracker) enter(stage Stage, message string) {
	start, _ := stage.Band()
	p.emit(stage, start, message)
}

func (p *progressTracker) finish(stage Stage, message string) {
	_, end := stage.Band()
	p.emit(stage, end, message)
}

func (p *progressTracker) complete(message string) {
	p.emit(StageComplete, 100, message)
}

func (p *progressTracker) fail(err error) {
	message := ""
	if err != nil {
		message = services.Details(err).Message
	}
	p.emit(StageError, p.percent, message)
}
