package extract

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"
)

// Text reads plain-text formats (txt, md, csv, json) verbatim.
type Text struct{}

// NewText returns the plain-text extractor.
func NewText() *Text {
	return &Text{}
}

// Extract reads the whole file and returns its contents.
func (t *Text) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: not valid utf-8 text", path)
	}
	return string(data), nil
}
