package testsupport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Endpoint is an in-process stand-in for the remote resumable-upload
// service. It speaks the same wire protocol as production: session
// create, HEAD offset probe, PATCH chunk append, complete, terminate,
// and the single-request small-file path. Tests can inject transient
// PATCH failures and inspect per-operation request counters.
type Endpoint struct {
	Server *httptest.Server

	mu        sync.Mutex
	sessions  map[string]*endpointSession
	nextID    int
	failPatch int
	counters  map[string]int
	token     string
}

type endpointSession struct {
	filename string
	size     int64
	data     []byte
	complete bool
}

// NewEndpoint starts a fake upload endpoint and registers cleanup.
func NewEndpoint(t testing.TB) *Endpoint {
	t.Helper()

	ep := &Endpoint{
		sessions: make(map[string]*endpointSession),
		counters: make(map[string]int),
		token:    "test-token",
	}
	ep.Server = httptest.NewServer(http.HandlerFunc(ep.handle))
	t.Cleanup(ep.Server.Close)
	return ep
}

// URL returns the endpoint base URL.
func (e *Endpoint) URL() string {
	return e.Server.URL
}

// FailNextPatches makes the next n PATCH requests return HTTP 500
// without consuming the chunk.
func (e *Endpoint) FailNextPatches(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failPatch = n
}

// Calls reports how many requests of the named operation the endpoint
// has served. Operations: create, head, patch, complete, terminate, small.
func (e *Endpoint) Calls(operation string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters[operation]
}

// Offset returns the number of bytes stored for a session handle.
func (e *Endpoint) Offset(handle string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sess, ok := e.sessions[handle]; ok {
		return int64(len(sess.data))
	}
	return -1
}

// SessionData returns a copy of the bytes stored for a session handle.
func (e *Endpoint) SessionData(handle string) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sess, ok := e.sessions[handle]; ok {
		return append([]byte(nil), sess.data...)
	}
	return nil
}

// SessionExists reports whether a session handle is still known.
func (e *Endpoint) SessionExists(handle string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessions[handle]
	return ok
}

// Handles returns the known session handles.
func (e *Endpoint) Handles() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	handles := make([]string, 0, len(e.sessions))
	for handle := range e.sessions {
		handles = append(handles, handle)
	}
	return handles
}

func (e *Endpoint) handle(w http.ResponseWriter, r *http.Request) {
	if auth := r.Header.Get("Authorization"); auth != "Bearer "+e.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case path == "v1/uploads" && r.Method == http.MethodPost:
		e.handleCreate(w, r)
	case path == "v1/files" && r.Method == http.MethodPost:
		e.handleSmall(w, r)
	case strings.HasPrefix(path, "v1/uploads/"):
		e.handleSession(w, r, strings.TrimPrefix(path, "v1/uploads/"))
	default:
		http.NotFound(w, r)
	}
}

func (e *Endpoint) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename    string `json:"filename"`
		Size        int64  `json:"size"`
		ContentType string `json:"content_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.counters["create"]++
	e.nextID++
	handle := fmt.Sprintf("sess-%04d", e.nextID)
	e.sessions[handle] = &endpointSession{filename: req.Filename, size: req.Size}
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"session_handle": handle})
}

func (e *Endpoint) handleSmall(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.counters["small"]++
	e.nextID++
	fileID := fmt.Sprintf("file-%04d", e.nextID)
	e.sessions[fileID] = &endpointSession{
		filename: r.Header.Get("X-Upload-Filename"),
		size:     int64(len(body)),
		data:     body,
		complete: true,
	}
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"file_id": fileID})
}

func (e *Endpoint) handleSession(w http.ResponseWriter, r *http.Request, rest string) {
	handle, _, isComplete := strings.Cut(rest, "/")

	e.mu.Lock()
	sess, ok := e.sessions[handle]
	e.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch {
	case isComplete && r.Method == http.MethodPost:
		e.mu.Lock()
		e.counters["complete"]++
		if int64(len(sess.data)) != sess.size {
			e.mu.Unlock()
			http.Error(w, "upload incomplete", http.StatusConflict)
			return
		}
		sess.complete = true
		e.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"file_id": "file-" + handle})
	case r.Method == http.MethodHead:
		e.mu.Lock()
		e.counters["head"]++
		offset := int64(len(sess.data))
		e.mu.Unlock()
		w.Header().Set("Upload-Offset", strconv.FormatInt(offset, 10))
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPatch:
		e.handlePatch(w, r, sess)
	case r.Method == http.MethodDelete:
		e.mu.Lock()
		e.counters["terminate"]++
		delete(e.sessions, handle)
		e.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (e *Endpoint) handlePatch(w http.ResponseWriter, r *http.Request, sess *endpointSession) {
	e.mu.Lock()
	e.counters["patch"]++
	if e.failPatch > 0 {
		e.failPatch--
		e.mu.Unlock()
		http.Error(w, "transient failure", http.StatusInternalServerError)
		return
	}
	current := int64(len(sess.data))
	e.mu.Unlock()

	claimed, err := strconv.ParseInt(r.Header.Get("Upload-Offset"), 10, 64)
	if err != nil {
		http.Error(w, "bad offset", http.StatusBadRequest)
		return
	}
	if claimed != current {
		w.Header().Set("Upload-Offset", strconv.FormatInt(current, 10))
		http.Error(w, "offset mismatch", http.StatusConflict)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	sess.data = append(sess.data, body...)
	offset := int64(len(sess.data))
	e.mu.Unlock()

	w.Header().Set("Upload-Offset", strconv.FormatInt(offset, 10))
	w.WriteHeader(http.StatusNoContent)
}
