package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"vaultingest/internal/services"
)

// Extractor produces the text content of a file.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Dispatcher routes each file to the extractor for its format.
type Dispatcher struct{}

// NewDispatcher returns a format-dispatching extractor.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Extract picks the extractor for the file's extension and runs it.
func (d *Dispatcher) Extract(ctx context.Context, path string) (string, error) {
	extractor, err := ForFile(path)
	if err != nil {
		return "", err
	}
	return extractor.Extract(ctx, path)
}

// ForFile picks the extractor for a file based on its extension.
func ForFile(path string) (Extractor, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return NewPDF(), nil
	case ".txt", ".md", ".csv", ".json":
		return NewText(), nil
	default:
		return nil, services.Wrap(services.ErrValidation, "extracting", "select_extractor",
			fmt.Sprintf("no extractor for %q", filepath.Base(path)), nil)
	}
}
