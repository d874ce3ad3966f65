package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of an upload task.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusUploading  Status = "uploading"
	StatusPaused     Status = "paused"
	StatusResuming   Status = "resuming"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

var allStatuses = []Status{
	StatusIdle,
	StatusUploading,
	StatusPaused,
	StatusResuming,
	StatusProcessing,
	StatusComplete,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// transitions lists the permitted status moves. Error is reachable from
// any non-terminal status and is handled separately in CanTransition.
var transitions = map[Status][]Status{
	StatusIdle:       {StatusUploading, StatusProcessing},
	StatusUploading:  {StatusPaused, StatusProcessing},
	StatusPaused:     {StatusResuming},
	StatusResuming:   {StatusUploading},
	StatusProcessing: {StatusComplete},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// CanTransition reports whether moving from one status to another is a
// legal step in the task lifecycle.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if to == StatusError {
		return from != StatusComplete && from != StatusError
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// IsActive reports whether the status describes work currently in
// flight inside this process.
func (s Status) IsActive() bool {
	switch s {
	case StatusUploading, StatusResuming, StatusProcessing:
		return true
	default:
		return false
	}
}

// IsResumable reports whether a persisted record in this status can be
// picked up again by a later submission of the same file.
func (s Status) IsResumable() bool {
	switch s {
	case StatusUploading, StatusPaused, StatusResuming:
		return true
	default:
		return false
	}
}

// Fingerprint derives the identity used to match a local file against a
// persisted session. Filename and size only; content is not hashed, so
// a renamed or same-size edited file is treated as a different or the
// same upload accordingly.
func Fingerprint(filename string, size int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d", filename, size)))
	return hex.EncodeToString(sum[:16])
}

// Record is an upload session persisted in SQLite.
type Record struct {
	ID              int64
	Fingerprint     string
	SourcePath      string
	Filename        string
	Size            int64
	ContentType     string
	SessionHandle   string
	Offset          int64
	ChunkSize       int64
	Status          Status
	SkipStorage     bool
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
}

// SetProgress updates all three progress fields together. Percent never
// moves backwards; late or duplicate reports keep the highest value seen.
func (r *Record) SetProgress(stage, message string, percent float64) {
	r.ProgressStage = stage
	r.ProgressMessage = message
	if percent > r.ProgressPercent {
		r.ProgressPercent = percent
	}
}

// SetFailed marks the record as errored with the given message. The
// record itself is kept so the failure stays visible in listings.
func (r *Record) SetFailed(message string) {
	r.Status = StatusError
	r.ErrorMessage = message
	r.ProgressMessage = message
}

// Remaining returns the bytes not yet acknowledged by the endpoint.
func (r *Record) Remaining() int64 {
	if r.Offset >= r.Size {
		return 0
	}
	return r.Size - r.Offset
}

// DatabaseHealth captures diagnostic information about the session database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	MissingColumns   []string
	IntegrityCheck   bool
	TotalSessions    int
	Error            string
}

// HealthSummary describes aggregated session counts per key lifecycle states.
type HealthSummary struct {
	Total    int
	InFlight int
	Paused   int
	Complete int
	Failed   int
}
