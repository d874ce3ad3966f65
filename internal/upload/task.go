package upload

import (
	"context"
	"errors"
	"sync"

	"vaultingest/internal/pipeline"
	"vaultingest/internal/session"
)

// ErrCanceled reports that the submission was canceled by the caller.
// The local session record and the remote session are both gone.
var ErrCanceled = errors.New("upload canceled")

// ErrAlreadyActive reports that a task for the same fingerprint is
// currently being driven by this process.
var ErrAlreadyActive = errors.New("upload already in progress for this file")

// Options tune a single submission.
type Options struct {
	// Tier names the account plan whose size ceiling applies.
	Tier string

	// SkipStorage bypasses the transfer entirely and runs the
	// processing pipeline against the local file.
	SkipStorage bool

	ContentType string

	// Observer receives pipeline stage updates.
	Observer pipeline.Observer

	// OnTransfer receives chunk-level progress during the chunked path.
	OnTransfer func(TransferUpdate)
}

// TransferUpdate is one chunk-level progress notification.
type TransferUpdate struct {
	BytesUploaded int64
	BytesTotal    int64
	Percent       int
	Message       string
}

// Result reports a finished submission.
type Result struct {
	Fingerprint string
	FileID      string
	Resumed     bool
	Chunked     bool
}

// task tracks the in-process control surface of one active transfer.
// Pause and cancel reach into the transfer loop through it.
type task struct {
	mu          sync.Mutex
	chunkCancel context.CancelFunc
	pauseWanted bool
	cancelled   bool
	resumeCh    chan struct{}
	status      session.Status
}

func newTask() *task {
	return &task{resumeCh: make(chan struct{}, 1)}
}

// requestPause marks the task paused and aborts the in-flight chunk.
func (t *task) requestPause() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled || t.status != session.StatusUploading {
		return false
	}
	t.pauseWanted = true
	if t.chunkCancel != nil {
		t.chunkCancel()
	}
	return true
}

// requestResume wakes a paused transfer loop.
func (t *task) requestResume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled || t.status != session.StatusPaused {
		return false
	}
	t.pauseWanted = false
	select {
	case t.resumeCh <- struct{}{}:
	default:
	}
	return true
}

// requestCancel aborts the in-flight chunk and unblocks a paused loop.
func (t *task) requestCancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
	if t.chunkCancel != nil {
		t.chunkCancel()
	}
	select {
	case t.resumeCh <- struct{}{}:
	default:
	}
}

func (t *task) setStatus(status session.Status) {
	t.mu.Lock()
	t.status = status
	t.mu.Unlock()
}

func (t *task) pauseRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pauseWanted
}

func (t *task) isCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// chunkContext derives a cancellable context for one chunk request and
// registers its cancel func so pause/cancel can abort it.
func (t *task) chunkContext(ctx context.Context) (context.Context, context.CancelFunc) {
	chunkCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.chunkCancel = cancel
	t.mu.Unlock()
	return chunkCtx, cancel
}
