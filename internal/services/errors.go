package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers used to classify engine failures. Wrap tags errors with one
// of these so callers can branch on the failure class without parsing text.
var (
	// ErrValidation marks failures detected before any network activity
	// (file too large for tier, disallowed extension, missing file).
	ErrValidation = errors.New("validation error")
	// ErrTransport marks chunk-send or session failures against the remote
	// endpoint. Transport failures leave the persisted session intact so the
	// upload can be resumed later.
	ErrTransport = errors.New("transport error")
	// ErrProcessing marks extraction or embedding collaborator failures.
	// These are terminal for the run; the caller must resubmit.
	ErrProcessing = errors.New("processing error")
	// ErrConfiguration marks unusable engine configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks lookups that matched nothing.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrProcessing
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind names the failure class of a wrapped error.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindTransport     Kind = "transport"
	KindProcessing    Kind = "processing"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindUnknown       Kind = "unknown"
)

// Classify maps an error to its failure kind.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrProcessing):
		return KindProcessing
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindUnknown
	}
}

// Resumable reports whether the failure preserves enough state for a later
// resume. Only transport failures qualify; validation and processing failures
// require a fresh submission.
func Resumable(err error) bool {
	return errors.Is(err, ErrTransport)
}

// ErrorDetails carries the user-facing portion of a classified error.
type ErrorDetails struct {
	Kind    Kind
	Message string
}

// Details extracts the classification and the human-readable message from a
// wrapped error, stripping the sentinel prefix.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindUnknown}
	}
	kind := Classify(err)
	message := err.Error()
	for _, marker := range []error{ErrValidation, ErrTransport, ErrProcessing, ErrConfiguration, ErrNotFound} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(message, prefix) {
			message = strings.TrimPrefix(message, prefix)
			break
		}
	}
	return ErrorDetails{Kind: kind, Message: strings.TrimSpace(message)}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
