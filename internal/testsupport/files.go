package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// PatternByte returns the deterministic byte expected at a given file
// position. Using a position-dependent pattern lets transfer tests
// verify that resumed uploads stitch together without gaps or overlaps.
func PatternByte(offset int64) byte {
	return byte(offset % 251)
}

// Pattern builds the expected contents of a pattern file of the given size.
func Pattern(size int64) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = PatternByte(int64(i))
	}
	return buf
}

// WriteFile fills the target path with the requested number of pattern
// bytes. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, Pattern(size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
