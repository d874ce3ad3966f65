package extract_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vaultingest/internal/extract"
	"vaultingest/internal/services"
)

func TestForFileDispatch(t *testing.T) {
	if _, err := extract.ForFile("report.PDF"); err != nil {
		t.Fatalf("pdf should have an extractor: %v", err)
	}
	for _, name := range []string{"a.txt", "b.md", "c.csv", "d.json"} {
		if _, err := extract.ForFile(name); err != nil {
			t.Fatalf("%s should have an extractor: %v", name, err)
		}
	}

	_, err := extract.ForFile("archive.zip")
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTextExtract(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(path, []byte("# heading\n\nbody text\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	text, err := extract.NewText().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if text != "# heading\n\nbody text\n" {
		t.Fatalf("unexpected content: %q", text)
	}
}

func TestTextExtractRejectsBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.txt")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x80}, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := extract.NewText().Extract(context.Background(), path); err == nil {
		t.Fatal("expected error for non-utf8 content")
	}
}

func TestTextExtractMissingFile(t *testing.T) {
	if _, err := extract.NewText().Extract(context.Background(), filepath.Join(t.TempDir(), "ghost.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPDFExtractRejectsCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.7\nthis is not a real pdf body"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := extract.NewPDF().Extract(context.Background(), path); err == nil {
		t.Fatal("expected validation failure for corrupt pdf")
	}
}

func TestExtractHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := extract.NewText().Extract(ctx, "whatever.txt"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
