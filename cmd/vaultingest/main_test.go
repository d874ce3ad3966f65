package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"vaultingest/internal/session"
	"vaultingest/internal/testsupport"
)

func TestCLIUploadSmallFile(t *testing.T) {
	env := setupCLITestEnv(t)

	path := filepath.Join(env.baseDir, "notes.txt")
	if err := os.WriteFile(path, []byte("some extractable text"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	out, _, err := runCLI(t, []string{"upload", path, "--tier", "pro"}, env.configPath)
	if err != nil {
		t.Fatalf("upload: %v\n%s", err, out)
	}
	requireContains(t, out, "complete (file ")
	if env.endpoint.Calls("small") != 1 {
		t.Fatalf("expected one single-shot upload, got %d", env.endpoint.Calls("small"))
	}
	if env.endpoint.Calls("create") != 0 {
		t.Fatal("small file must not open a chunked session")
	}
}

func TestCLIUploadChunkedFile(t *testing.T) {
	env := setupCLITestEnv(t)

	path := filepath.Join(env.baseDir, "big.txt")
	payload := strings.Repeat("chunked upload content\n", 100000)
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	out, _, err := runCLI(t, []string{"upload", path, "--tier", "pro"}, env.configPath)
	if err != nil {
		t.Fatalf("upload: %v\n%s", err, out)
	}
	requireContains(t, out, "complete (file ")
	if env.endpoint.Calls("create") != 1 {
		t.Fatalf("expected one chunked session, got %d", env.endpoint.Calls("create"))
	}
	if env.endpoint.Calls("patch") < 2 {
		t.Fatalf("expected multiple chunk requests, got %d", env.endpoint.Calls("patch"))
	}
}

func TestCLIUploadRejectsOversizeForTier(t *testing.T) {
	env := setupCLITestEnv(t)

	path := filepath.Join(env.baseDir, "huge.bin")
	if err := os.WriteFile(path, make([]byte, 6*1000*1000), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	out, _, err := runCLI(t, []string{"upload", path}, env.configPath)
	if err == nil {
		t.Fatalf("expected failure for oversize file, got:\n%s", out)
	}
	requireContains(t, out, "free")
	if env.endpoint.Calls("create") != 0 || env.endpoint.Calls("patch") != 0 {
		t.Fatal("validation failure must not reach the endpoint")
	}
}

func TestCLIIncompleteListClearAndCancel(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	var pausedID, cancelID int64
	env.withStore(t, func(store *session.Store) {
		record := testsupport.NewSession(t, store, "/tmp/alpha.bin", "alpha.bin", 2048)
		record.Status = session.StatusPaused
		record.Offset = 1024
		if err := store.Update(ctx, record); err != nil {
			t.Fatalf("update: %v", err)
		}
		pausedID = record.ID

		second := testsupport.NewSession(t, store, "/tmp/beta.bin", "beta.bin", 4096)
		second.Status = session.StatusError
		if err := store.Update(ctx, second); err != nil {
			t.Fatalf("update: %v", err)
		}
		cancelID = second.ID
	})

	out, _, err := runCLI(t, []string{"incomplete", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("incomplete list: %v", err)
	}
	requireContains(t, out, "alpha.bin")
	requireContains(t, out, "beta.bin")
	requireContains(t, out, "paused")

	out, _, err = runCLI(t, []string{"cancel", "9999"}, env.configPath)
	if err == nil {
		t.Fatalf("expected cancel of unknown id to fail, got:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"cancel", formatID(cancelID)}, env.configPath)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "Canceled session")

	out, _, err = runCLI(t, []string{"incomplete", "clear", formatID(pausedID)}, env.configPath)
	if err != nil {
		t.Fatalf("incomplete clear: %v", err)
	}
	requireContains(t, out, "removed")

	out, _, err = runCLI(t, []string{"incomplete", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("incomplete list: %v", err)
	}
	requireContains(t, out, "No incomplete sessions")
}

func TestCLIIncompleteClearRequiresIDOrAll(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"incomplete", "clear"}, env.configPath); err == nil {
		t.Fatal("expected error when neither id nor --all is given")
	}

	out, _, err := runCLI(t, []string{"incomplete", "clear", "--all"}, env.configPath)
	if err != nil {
		t.Fatalf("incomplete clear --all: %v", err)
	}
	requireContains(t, out, "Cleared 0 incomplete sessions")
}

func TestCLIHealthCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"health"}, env.configPath)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "upload_sessions table present: yes")
	requireContains(t, out, "Integrity check: yes")
	requireContains(t, out, "Missing columns: none")
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
