package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDF extracts page content from PDF files via pdfcpu. Corrupt or
// unparseable documents fail validation before any extraction begins.
type PDF struct {
	conf *model.Configuration
}

// NewPDF returns a PDF extractor with relaxed validation, matching how
// real-world documents tend to bend the spec without being unusable.
func NewPDF() *PDF {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDF{conf: conf}
}

// Extract validates the document and returns the concatenated text
// content of its pages.
func (p *PDF) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := api.ValidateFile(path, p.conf); err != nil {
		return "", fmt.Errorf("validate %s: %w", filepath.Base(path), err)
	}

	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return "", fmt.Errorf("page count %s: %w", filepath.Base(path), err)
	}
	if pageCount == 0 {
		return "", fmt.Errorf("%s: document has no pages", filepath.Base(path))
	}

	outDir, err := os.MkdirTemp("", "vaultingest-extract-*")
	if err != nil {
		return "", fmt.Errorf("create extraction dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(path, outDir, nil, p.conf); err != nil {
		return "", fmt.Errorf("extract content %s: %w", filepath.Base(path), err)
	}

	return collectExtractedText(outDir)
}

// collectExtractedText stitches the per-page output files back into a
// single document in page order.
func collectExtractedText(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read extraction dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	// Output files carry the page number before the extension; a plain
	// lexical sort would put page 10 before page 2.
	sort.Slice(names, func(i, j int) bool {
		a, b := pageNumber(names[i]), pageNumber(names[j])
		if a != b {
			return a < b
		}
		return names[i] < names[j]
	})

	var builder strings.Builder
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("read extracted page %s: %w", name, err)
		}
		builder.Write(data)
		builder.WriteByte('\n')
	}
	return builder.String(), nil
}

func pageNumber(name string) int {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	end := len(base)
	start := end
	for start > 0 && base[start-1] >= '0' && base[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0
	}
	n := 0
	for _, c := range base[start:end] {
		n = n*10 + int(c-'0')
	}
	return n
}
