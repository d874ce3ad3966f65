package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vaultingest/internal/config"
	"vaultingest/internal/logging"
	"vaultingest/internal/pipeline"
	"vaultingest/internal/services"
	"vaultingest/internal/session"
	"vaultingest/internal/tier"
	"vaultingest/internal/transfer"
)

// Controller owns the per-file upload state machine. Each submission
// runs as its own state machine keyed by fingerprint; concurrent
// submissions of distinct files do not interact.
type Controller struct {
	cfg    *config.Config
	store  *session.Store
	client *transfer.Client
	runner *pipeline.Runner
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]*task
}

// NewController wires the engine together.
func NewController(cfg *config.Config, store *session.Store, client *transfer.Client, runner *pipeline.Runner, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Controller{
		cfg:    cfg,
		store:  store,
		client: client,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "upload"),
		active: make(map[string]*task),
	}
}

// SubmitOutcome reports the fate of one file in a batch submission.
type SubmitOutcome struct {
	Path   string
	Result *Result
	Err    error
}

// SubmitAll submits a batch of files sequentially, enforcing the
// configured file-count ceiling up front.
func (c *Controller) SubmitAll(ctx context.Context, paths []string, opts Options) ([]SubmitOutcome, error) {
	if maxFiles := c.cfg.Upload.MaxFiles; maxFiles > 0 && len(paths) > maxFiles {
		return nil, services.Wrap(services.ErrValidation, "submit", "batch",
			fmt.Sprintf("%d files exceeds the limit of %d per submission", len(paths), maxFiles), nil)
	}

	outcomes := make([]SubmitOutcome, 0, len(paths))
	for _, path := range paths {
		result, err := c.Submit(ctx, path, opts)
		outcomes = append(outcomes, SubmitOutcome{Path: path, Result: result, Err: err})
	}
	return outcomes, nil
}

// Submit validates a file, transfers it (chunked or single-shot), and
// drives it through the processing pipeline. The call blocks until the
// run reaches complete, error, or cancellation; a paused transfer
// blocks inside Submit until Resume or Cancel.
func (c *Controller) Submit(ctx context.Context, path string, opts Options) (*Result, error) {
	ctx = services.WithTaskID(ctx, uuid.NewString())

	filename := filepath.Base(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "submit", "stat", filename, err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "submit", "stat", filename+" is a directory", nil)
	}
	size := info.Size()

	if err := c.validateExtension(filename); err != nil {
		return nil, err
	}

	policy := tier.NewPolicy(opts.Tier, c.cfg.LargeFileThresholdBytes())
	if err := policy.Validate(filename, size); err != nil {
		return nil, err
	}

	log := logging.WithContext(ctx, c.logger).With(
		logging.String("filename", filename),
		logging.Int64("size", size),
		logging.String("tier", policy.Tier().String()),
	)

	if opts.SkipStorage || c.cfg.Upload.SkipStorage {
		log.Info("submission accepted", logging.String("path", "skip_storage"))
		return c.runProcessOnly(ctx, path, filename, opts)
	}

	if !policy.RequiresChunked(size) {
		log.Info("submission accepted", logging.String("path", "small"))
		return c.runSmall(ctx, path, filename, opts)
	}

	log.Info("submission accepted", logging.String("path", "chunked"))
	return c.runChunked(ctx, path, filename, size, opts, log)
}

// Pause suspends the active transfer for a fingerprint. The in-flight
// chunk request is aborted; acknowledged bytes stay credited.
func (c *Controller) Pause(fingerprint string) error {
	t := c.lookup(fingerprint)
	if t == nil {
		return services.Wrap(services.ErrNotFound, "pause", "lookup", fingerprint, nil)
	}
	if !t.requestPause() {
		return services.Wrap(services.ErrValidation, "pause", "state", "task is not uploading", nil)
	}
	return nil
}

// Resume wakes a paused transfer. The authoritative offset is fetched
// from the endpoint before any further bytes move.
func (c *Controller) Resume(fingerprint string) error {
	t := c.lookup(fingerprint)
	if t == nil {
		return services.Wrap(services.ErrNotFound, "resume", "lookup", fingerprint, nil)
	}
	if !t.requestResume() {
		return services.Wrap(services.ErrValidation, "resume", "state", "task is not paused", nil)
	}
	return nil
}

// Cancel aborts a task and deletes its session locally and, best
// effort, on the endpoint. Works on both in-process tasks and persisted
// records left over from an earlier run.
func (c *Controller) Cancel(ctx context.Context, fingerprint string) error {
	if t := c.lookup(fingerprint); t != nil {
		t.requestCancel()
		return nil
	}

	record, err := c.store.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return err
	}
	if record == nil {
		return services.Wrap(services.ErrNotFound, "cancel", "lookup", fingerprint, nil)
	}
	c.terminateRemote(record)
	_, err = c.store.RemoveByFingerprint(ctx, fingerprint)
	return err
}

// ListIncomplete returns persisted sessions that have not completed.
func (c *Controller) ListIncomplete(ctx context.Context) ([]*session.Record, error) {
	return c.store.ListIncomplete(ctx)
}

// ClearIncomplete deletes one persisted session by id, terminating the
// remote session best effort.
func (c *Controller) ClearIncomplete(ctx context.Context, id int64) (bool, error) {
	record, err := c.store.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}
	c.terminateRemote(record)
	return c.store.Remove(ctx, id)
}

// ClearAllIncomplete removes every persisted session.
func (c *Controller) ClearAllIncomplete(ctx context.Context) (int64, error) {
	records, err := c.store.ListIncomplete(ctx)
	if err != nil {
		return 0, err
	}
	for _, record := range records {
		c.terminateRemote(record)
	}
	return c.store.Clear(ctx)
}

// PruneStale ages out sessions untouched for the configured window.
func (c *Controller) PruneStale(ctx context.Context) (int64, error) {
	days := c.cfg.Upload.StaleAfterDays
	if days <= 0 {
		return 0, nil
	}
	return c.store.PruneStale(ctx, time.Duration(days)*24*time.Hour)
}

func (c *Controller) validateExtension(filename string) error {
	allowed := c.cfg.Upload.AllowedExtensions
	if len(allowed) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, candidate := range allowed {
		if ext == strings.ToLower(candidate) {
			return nil
		}
	}
	return services.Wrap(services.ErrValidation, "submit", "extension_check",
		fmt.Sprintf("%s: extension %q is not allowed", filename, ext), nil)
}

func (c *Controller) runProcessOnly(ctx context.Context, path, filename string, opts Options) (*Result, error) {
	err := c.runner.Run(ctx, pipeline.Input{
		Path:     path,
		Filename: filename,
		Observer: opts.Observer,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Fingerprint: fingerprintFor(path, filename)}, nil
}

func (c *Controller) runSmall(ctx context.Context, path, filename string, opts Options) (*Result, error) {
	var fileID string
	err := c.runner.Run(ctx, pipeline.Input{
		Path:     path,
		Filename: filename,
		Upload: func(uploadCtx context.Context) error {
			file, err := os.Open(path)
			if err != nil {
				return services.Wrap(services.ErrValidation, "uploading", "open", filename, err)
			}
			defer file.Close()
			id, err := c.client.UploadSmall(uploadCtx, filename, opts.ContentType, file)
			if err != nil {
				return err
			}
			fileID = id
			return nil
		},
		Observer: opts.Observer,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Fingerprint: fingerprintFor(path, filename), FileID: fileID}, nil
}

func (c *Controller) runChunked(ctx context.Context, path, filename string, size int64, opts Options, log *slog.Logger) (*Result, error) {
	fingerprint := session.Fingerprint(filename, size)

	t := newTask()
	if !c.register(fingerprint, t) {
		return nil, services.Wrap(services.ErrValidation, "submit", "register", filename+": "+ErrAlreadyActive.Error(), ErrAlreadyActive)
	}
	defer c.unregister(fingerprint)

	record, resumed, err := c.prepareRecord(ctx, path, filename, size, opts)
	if err != nil {
		return nil, err
	}

	t.setStatus(record.Status)

	if err := c.runTransferLoop(ctx, t, record, path, opts, log); err != nil {
		return nil, err
	}

	fileID, err := c.client.Finalize(ctx, record.SessionHandle)
	if err != nil {
		return nil, c.failRecord(ctx, record, t, err)
	}
	log.Info("transfer finalized", logging.String("file_id", fileID))

	if err := c.transition(ctx, record, t, session.StatusProcessing); err != nil {
		return nil, err
	}

	runErr := c.runner.Run(ctx, pipeline.Input{
		Path:     path,
		Filename: filename,
		Observer: opts.Observer,
	})
	if runErr != nil {
		return nil, c.failRecord(ctx, record, t, runErr)
	}

	if err := c.transition(ctx, record, t, session.StatusComplete); err != nil {
		return nil, err
	}
	if _, err := c.store.RemoveByFingerprint(ctx, fingerprint); err != nil {
		log.Warn("completed session cleanup failed", logging.Error(err))
	}

	return &Result{Fingerprint: fingerprint, FileID: fileID, Resumed: resumed, Chunked: true}, nil
}

// prepareRecord finds or creates the persisted session for a chunked
// submission. A resumable record for the same fingerprint turns the
// submission into a resume instead of a fresh task.
func (c *Controller) prepareRecord(ctx context.Context, path, filename string, size int64, opts Options) (*session.Record, bool, error) {
	fingerprint := session.Fingerprint(filename, size)

	record, err := c.store.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, false, err
	}
	if record != nil {
		record.SourcePath = path
		if record.Status == session.StatusError {
			// Errored runs keep their session exactly so a fresh
			// submission can pick the bytes back up.
			record.Status = session.StatusPaused
			record.ErrorMessage = ""
		}
		if record.Status == session.StatusUploading || record.Status == session.StatusResuming {
			// Leftover in-flight status from a crashed process.
			record.Status = session.StatusPaused
		}
		if err := c.store.Update(ctx, record); err != nil {
			return nil, false, err
		}
		return record, true, nil
	}

	record, err = c.store.Create(ctx, path, filename, size, opts.ContentType, false)
	if err != nil {
		return nil, false, err
	}
	record.ChunkSize = c.cfg.ChunkSizeBytes()
	if err := c.store.Update(ctx, record); err != nil {
		return nil, false, err
	}
	return record, false, nil
}

// runTransferLoop moves bytes until the file is fully acknowledged,
// honoring pause, resume, and cancel along the way.
func (c *Controller) runTransferLoop(ctx context.Context, t *task, record *session.Record, path string, opts Options, log *slog.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "uploading", "open", record.Filename, err)
	}
	defer file.Close()

	if record.Status == session.StatusPaused {
		// Persisted resume: fetch the authoritative offset first.
		if err := c.transition(ctx, record, t, session.StatusResuming); err != nil {
			return err
		}
		if err := c.syncOffset(ctx, record); err != nil {
			return c.failRecord(ctx, record, t, err)
		}
	}
	if record.SessionHandle == "" {
		handle, err := c.client.CreateSession(ctx, record.Filename, record.Size, record.ContentType)
		if err != nil {
			return c.failRecord(ctx, record, t, err)
		}
		record.SessionHandle = handle
		record.Offset = 0
	}
	if err := c.transition(ctx, record, t, session.StatusUploading); err != nil {
		return err
	}

	chunkSize := record.ChunkSize
	if chunkSize <= 0 {
		chunkSize = c.cfg.ChunkSizeBytes()
		record.ChunkSize = chunkSize
	}
	meter := transfer.NewMeter()
	buf := make([]byte, chunkSize)

	for record.Offset < record.Size {
		if t.isCancelled() {
			return c.cancelCleanup(record)
		}
		if t.pauseRequested() {
			if err := c.pauseAndWait(ctx, t, record, meter, log); err != nil {
				return err
			}
			continue
		}

		n := chunkSize
		if remaining := record.Size - record.Offset; remaining < n {
			n = remaining
		}
		if _, err := file.ReadAt(buf[:n], record.Offset); err != nil {
			return c.failRecord(ctx, record, t,
				services.Wrap(services.ErrValidation, "uploading", "read", record.Filename, err))
		}

		chunkCtx, cancel := t.chunkContext(ctx)
		newOffset, err := c.client.SendChunk(chunkCtx, record.SessionHandle, record.Offset, buf[:n])
		cancel()

		if err != nil {
			if t.isCancelled() {
				return c.cancelCleanup(record)
			}
			if t.pauseRequested() {
				continue
			}
			var mismatch *transfer.OffsetMismatchError
			if errors.As(err, &mismatch) && mismatch.ServerOffset >= 0 {
				log.Warn("offset mismatch, adopting endpoint offset",
					logging.Int64("local", record.Offset),
					logging.Int64("endpoint", mismatch.ServerOffset))
				record.Offset = mismatch.ServerOffset
				if updateErr := c.store.Update(ctx, record); updateErr != nil {
					return updateErr
				}
				continue
			}
			return c.failRecord(ctx, record, t, err)
		}

		meter.Record(newOffset - record.Offset)
		record.Offset = newOffset
		c.reportTransfer(ctx, record, meter, opts)
	}

	return nil
}

// pauseAndWait parks the loop in the paused state until the caller
// resumes or cancels. On resume the endpoint offset is re-fetched.
func (c *Controller) pauseAndWait(ctx context.Context, t *task, record *session.Record, meter *transfer.Meter, log *slog.Logger) error {
	if err := c.transition(ctx, record, t, session.StatusPaused); err != nil {
		return err
	}
	meter.Reset()
	log.Info("transfer paused", logging.Int64("offset", record.Offset))

	select {
	case <-t.resumeCh:
	case <-ctx.Done():
		return services.Wrap(services.ErrTransport, "paused", "wait", "submission context ended", ctx.Err())
	}
	if t.isCancelled() {
		return c.cancelCleanup(record)
	}

	if err := c.transition(ctx, record, t, session.StatusResuming); err != nil {
		return err
	}
	if err := c.syncOffset(ctx, record); err != nil {
		return c.failRecord(ctx, record, t, err)
	}
	if err := c.transition(ctx, record, t, session.StatusUploading); err != nil {
		return err
	}
	log.Info("transfer resumed", logging.Int64("offset", record.Offset))
	return nil
}

// syncOffset adopts the endpoint's authoritative offset. A session the
// endpoint no longer knows starts over with a fresh handle.
func (c *Controller) syncOffset(ctx context.Context, record *session.Record) error {
	if record.SessionHandle == "" {
		return nil
	}
	offset, err := c.client.Offset(ctx, record.SessionHandle)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			record.SessionHandle = ""
			record.Offset = 0
			return c.store.Update(ctx, record)
		}
		return err
	}
	record.Offset = offset
	return c.store.Update(ctx, record)
}

func (c *Controller) reportTransfer(ctx context.Context, record *session.Record, meter *transfer.Meter, opts Options) {
	_, uploadingEnd := pipeline.StageUploading.Band()
	percent := 0
	if record.Size > 0 {
		percent = int(float64(record.Offset) / float64(record.Size) * float64(uploadingEnd))
	}
	message := meter.Describe(record.Remaining())
	record.SetProgress(string(pipeline.StageUploading), message, float64(percent))

	// Persist after every acknowledgment: a crash here re-sends at most
	// the boundary chunk, which the endpoint accepts idempotently.
	if err := c.store.Update(ctx, record); err != nil {
		logging.WithContext(ctx, c.logger).Warn("progress persistence failed", logging.Error(err))
	}

	if opts.OnTransfer != nil {
		opts.OnTransfer(TransferUpdate{
			BytesUploaded: record.Offset,
			BytesTotal:    record.Size,
			Percent:       percent,
			Message:       message,
		})
	}
}

// transition moves the record through the status machine, rejecting
// moves the lifecycle does not permit.
func (c *Controller) transition(ctx context.Context, record *session.Record, t *task, to session.Status) error {
	if !session.CanTransition(record.Status, to) {
		return services.Wrap(services.ErrValidation, "transition", "state",
			fmt.Sprintf("illegal transition %s -> %s", record.Status, to), nil)
	}
	record.Status = to
	t.setStatus(to)
	if err := c.store.Update(ctx, record); err != nil {
		return err
	}
	return nil
}

// failRecord marks the session errored, keeping it for a later resume,
// and returns the original error.
func (c *Controller) failRecord(ctx context.Context, record *session.Record, t *task, cause error) error {
	record.SetFailed(services.Details(cause).Message)
	t.setStatus(session.StatusError)
	if err := c.store.Update(ctx, record); err != nil {
		logging.WithContext(ctx, c.logger).Warn("failure persistence failed", logging.Error(err))
	}
	return cause
}

// cancelCleanup deletes the session locally and best-effort remotely.
func (c *Controller) cancelCleanup(record *session.Record) error {
	c.terminateRemote(record)
	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()
	if _, err := c.store.RemoveByFingerprint(ctx, record.Fingerprint); err != nil {
		c.logger.Warn("session cleanup failed", logging.Error(err))
	}
	return ErrCanceled
}

func (c *Controller) terminateRemote(record *session.Record) {
	if record.SessionHandle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.Terminate(ctx, record.SessionHandle); err != nil {
		c.logger.Warn("remote terminate failed",
			logging.String("session_handle", record.SessionHandle), logging.Error(err))
	}
}

func (c *Controller) register(fingerprint string, t *task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.active[fingerprint]; exists {
		return false
	}
	c.active[fingerprint] = t
	return true
}

func (c *Controller) unregister(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, fingerprint)
}

func (c *Controller) lookup(fingerprint string) *task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[fingerprint]
}

func fingerprintFor(path, filename string) string {
	info, err := os.Stat(path)
	if err != nil {
		return session.Fingerprint(filename, 0)
	}
	return session.Fingerprint(filename, info.Size())
}
