package testsupport

import (
	"context"
	"testing"

	"vaultingest/internal/config"
	"vaultingest/internal/session"
)

// MustOpenStore opens a session.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *session.Store {
	t.Helper()

	store, err := session.Open(cfg)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSession creates a session record for tests using the provided store.
func NewSession(t testing.TB, store *session.Store, sourcePath, filename string, size int64) *session.Record {
	t.Helper()

	record, err := store.Create(context.Background(), sourcePath, filename, size, "application/octet-stream", false)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return record
}
