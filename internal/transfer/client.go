package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vaultingest/internal/services"
)

const (
	defaultHTTPTimeout   = 30 * time.Second
	chunkRetryBaseDelay  = 500 * time.Millisecond
	offsetContentType    = "application/offset+octet-stream"
	headerUploadOffset   = "Upload-Offset"
	headerUploadFilename = "X-Upload-Filename"
)

// Config captures the runtime settings required to talk to the upload endpoint.
type Config struct {
	BaseURL        string
	APIToken       string
	TimeoutSeconds int
}

// Client speaks the resumable-upload wire protocol: session create, offset
// probe, chunk append, finalize, and terminate, plus the single-request
// path for small files. A failed chunk is retried exactly once at the same
// offset before the error surfaces to the caller.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sleeper    func(time.Duration)
	retryDelay time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryDelay overrides the pause before the single chunk retry.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = delay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a transfer client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIToken:       strings.TrimSpace(cfg.APIToken),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		retryDelay: chunkRetryBaseDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// OffsetMismatchError reports that the endpoint's view of the session
// offset disagrees with the client's. ServerOffset is authoritative.
type OffsetMismatchError struct {
	ClaimedOffset int64
	ServerOffset  int64
}

func (e *OffsetMismatchError) Error() string {
	return fmt.Sprintf("offset mismatch: sent %d, endpoint at %d", e.ClaimedOffset, e.ServerOffset)
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// CreateSession registers a new upload session for a file and returns
// the endpoint's session handle.
func (c *Client) CreateSession(ctx context.Context, filename string, size int64, contentType string) (string, error) {
	payload := map[string]any{
		"filename":     filename,
		"size":         size,
		"content_type": contentType,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrTransport, "uploading", "create_session", "encode request", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("v1", "uploads"), bytes.NewReader(encoded))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	body, _, err := c.do(req, http.StatusCreated)
	if err != nil {
		return "", services.Wrap(services.ErrTransport, "uploading", "create_session", filename, err)
	}

	var created struct {
		SessionHandle string `json:"session_handle"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", services.Wrap(services.ErrTransport, "uploading", "create_session", "decode response", err)
	}
	if created.SessionHandle == "" {
		return "", services.Wrap(services.ErrTransport, "uploading", "create_session", "endpoint returned no session handle", nil)
	}
	return created.SessionHandle, nil
}

// Offset asks the endpoint how many bytes of the session it has
// acknowledged. The returned value is authoritative over any local state.
func (c *Client) Offset(ctx context.Context, handle string) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodHead, c.endpoint("v1", "uploads", handle), nil)
	if err != nil {
		return 0, err
	}

	_, header, err := c.do(req, http.StatusOK)
	if err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return 0, services.Wrap(services.ErrNotFound, "resuming", "offset_probe", handle, nil)
		}
		return 0, services.Wrap(services.ErrTransport, "resuming", "offset_probe", handle, err)
	}

	offset, err := strconv.ParseInt(header.Get(headerUploadOffset), 10, 64)
	if err != nil {
		return 0, services.Wrap(services.ErrTransport, "resuming", "offset_probe", "missing Upload-Offset header", err)
	}
	return offset, nil
}

// SendChunk appends a chunk at the given offset and returns the new
// acknowledged offset. A transient failure is retried once at the same
// offset; an HTTP 409 surfaces as an OffsetMismatchError carrying the
// endpoint's authoritative offset.
func (c *Client) SendChunk(ctx context.Context, handle string, offset int64, chunk []byte) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.retryDelay); err != nil {
				return 0, services.Wrap(services.ErrTransport, "uploading", "send_chunk", "retry interrupted", err)
			}
		}

		newOffset, err := c.sendChunkOnce(ctx, handle, offset, chunk)
		if err == nil {
			return newOffset, nil
		}

		var mismatch *OffsetMismatchError
		if errors.As(err, &mismatch) {
			return 0, services.Wrap(services.ErrTransport, "uploading", "send_chunk", "", err)
		}
		if ctx.Err() != nil {
			return 0, services.Wrap(services.ErrTransport, "uploading", "send_chunk", "canceled", ctx.Err())
		}
		lastErr = err
	}
	return 0, services.Wrap(services.ErrTransport, "uploading", "send_chunk",
		fmt.Sprintf("chunk at offset %d failed after retry", offset), lastErr)
}

func (c *Client) sendChunkOnce(ctx context.Context, handle string, offset int64, chunk []byte) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodPatch, c.endpoint("v1", "uploads", handle), bytes.NewReader(chunk))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", offsetContentType)
	req.Header.Set(headerUploadOffset, strconv.FormatInt(offset, 10))

	_, header, err := c.do(req, http.StatusNoContent)
	if err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			serverOffset, parseErr := strconv.ParseInt(header.Get(headerUploadOffset), 10, 64)
			if parseErr != nil {
				serverOffset = -1
			}
			return 0, &OffsetMismatchError{ClaimedOffset: offset, ServerOffset: serverOffset}
		}
		return 0, err
	}

	newOffset, err := strconv.ParseInt(header.Get(headerUploadOffset), 10, 64)
	if err != nil {
		// Endpoint acknowledged without reporting the offset; infer it.
		return offset + int64(len(chunk)), nil
	}
	return newOffset, nil
}

// Finalize completes the session once all bytes are acknowledged and
// returns the stored file identifier.
func (c *Client) Finalize(ctx context.Context, handle string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("v1", "uploads", handle, "complete"), nil)
	if err != nil {
		return "", err
	}

	body, _, err := c.do(req, http.StatusOK)
	if err != nil {
		return "", services.Wrap(services.ErrTransport, "uploading", "finalize", handle, err)
	}

	var completed struct {
		FileID string `json:"file_id"`
	}
	if err := json.Unmarshal(body, &completed); err != nil {
		return "", services.Wrap(services.ErrTransport, "uploading", "finalize", "decode response", err)
	}
	return completed.FileID, nil
}

// Terminate abandons a session on the endpoint. A handle the endpoint no
// longer knows counts as success.
func (c *Client) Terminate(ctx context.Context, handle string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.endpoint("v1", "uploads", handle), nil)
	if err != nil {
		return err
	}

	_, _, err = c.do(req, http.StatusNoContent)
	if err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return services.Wrap(services.ErrTransport, "canceling", "terminate", handle, err)
	}
	return nil
}

// UploadSmall pushes a file in a single request, bypassing session
// bookkeeping entirely. Used for files under the chunked-path threshold.
func (c *Client) UploadSmall(ctx context.Context, filename, contentType string, payload io.Reader) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("v1", "files"), payload)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(headerUploadFilename, filename)

	body, _, err := c.do(req, http.StatusCreated)
	if err != nil {
		return "", services.Wrap(services.ErrTransport, "uploading", "upload_small", filename, err)
	}

	var created struct {
		FileID string `json:"file_id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", services.Wrap(services.ErrTransport, "uploading", "upload_small", "decode response", err)
	}
	return created.FileID, nil
}

func (c *Client) endpoint(parts ...string) string {
	joined, err := url.JoinPath(c.cfg.BaseURL, parts...)
	if err != nil {
		return c.cfg.BaseURL + "/" + strings.Join(parts, "/")
	}
	return joined
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "uploading", "new_request", endpoint, err)
	}
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, wantStatus int) ([]byte, http.Header, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("http error (timeout=%s): %w", c.timeoutDuration(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.Header, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return body, resp.Header, &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, resp.Header, nil
}

func (c *Client) timeoutDuration() time.Duration {
	if c == nil || c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
