package session_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"vaultingest/internal/session"
	"vaultingest/internal/testsupport"
)

func TestOpenCreatesSchemaAndRoundTrips(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	record, err := store.Create(ctx, "/tmp/report.pdf", "report.pdf", 2048, "application/pdf", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if record.ID == 0 {
		t.Fatal("expected record ID to be assigned")
	}
	if record.Status != session.StatusIdle {
		t.Fatalf("new record should be idle, got %s", record.Status)
	}

	fetched, err := store.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.Filename != "report.pdf" || fetched.Size != 2048 {
		t.Fatalf("unexpected fetched record: %#v", fetched)
	}

	found, err := store.FindByFingerprint(ctx, session.Fingerprint("report.pdf", 2048))
	if err != nil {
		t.Fatalf("FindByFingerprint failed: %v", err)
	}
	if found == nil || found.ID != record.ID {
		t.Fatalf("expected to find inserted record, got %#v", found)
	}
}

func TestCreateRejectsDuplicateFingerprint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.Create(ctx, "/tmp/a/notes.txt", "notes.txt", 64, "text/plain", false); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	if _, err := store.Create(ctx, "/tmp/b/notes.txt", "notes.txt", 64, "text/plain", false); err == nil {
		t.Fatal("expected unique fingerprint violation for same filename and size")
	}
}

func TestUpdatePersistsOffsetAndStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	record := testsupport.NewSession(t, store, "/tmp/big.bin", "big.bin", 10240)

	record.Status = session.StatusUploading
	record.SessionHandle = "sess-0001"
	record.Offset = 4096
	record.ChunkSize = 1024
	record.SetProgress("uploading", "4.1 kB of 10 kB", 12)
	if err := store.Update(ctx, record); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Offset != 4096 || fetched.SessionHandle != "sess-0001" {
		t.Fatalf("offset/handle not persisted: %#v", fetched)
	}
	if fetched.Status != session.StatusUploading {
		t.Fatalf("status not persisted: %s", fetched.Status)
	}
	if fetched.ProgressPercent != 12 {
		t.Fatalf("progress not persisted: %v", fetched.ProgressPercent)
	}
	if fetched.Remaining() != 10240-4096 {
		t.Fatalf("unexpected remaining: %d", fetched.Remaining())
	}
}

func TestListFiltersAndListIncomplete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	statuses := []session.Status{
		session.StatusPaused,
		session.StatusComplete,
		session.StatusError,
		session.StatusUploading,
	}
	for i, status := range statuses {
		record := testsupport.NewSession(t, store, "", fmt.Sprintf("file-%d.txt", i), int64(100+i))
		record.Status = status
		if err := store.Update(ctx, record); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	paused, err := store.List(ctx, session.StatusPaused)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(paused) != 1 || paused[0].Status != session.StatusPaused {
		t.Fatalf("expected one paused record, got %#v", paused)
	}

	incomplete, err := store.ListIncomplete(ctx)
	if err != nil {
		t.Fatalf("ListIncomplete failed: %v", err)
	}
	if len(incomplete) != 3 {
		t.Fatalf("expected 3 incomplete records, got %d", len(incomplete))
	}
	for _, record := range incomplete {
		if record.Status == session.StatusComplete {
			t.Fatalf("completed record leaked into incomplete listing: %#v", record)
		}
	}
}

func TestRemoveByFingerprint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	record := testsupport.NewSession(t, store, "", "video.bin", 555)

	removed, err := store.RemoveByFingerprint(ctx, record.Fingerprint)
	if err != nil {
		t.Fatalf("RemoveByFingerprint failed: %v", err)
	}
	if !removed {
		t.Fatal("expected a record to be removed")
	}

	found, err := store.FindByFingerprint(ctx, record.Fingerprint)
	if err != nil {
		t.Fatalf("FindByFingerprint failed: %v", err)
	}
	if found != nil {
		t.Fatalf("record should be gone, got %#v", found)
	}
}

func TestClearAndClearFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	good := testsupport.NewSession(t, store, "", "good.txt", 10)
	bad := testsupport.NewSession(t, store, "", "bad.txt", 20)
	bad.SetFailed("network unreachable")
	if err := store.Update(ctx, bad); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	cleared, err := store.ClearFailed(ctx)
	if err != nil {
		t.Fatalf("ClearFailed failed: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 failed record cleared, got %d", cleared)
	}
	if found, _ := store.GetByID(ctx, good.ID); found == nil {
		t.Fatal("non-failed record should survive ClearFailed")
	}

	total, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 remaining record cleared, got %d", total)
	}
}

func TestPruneStale(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stale := testsupport.NewSession(t, store, "", "old.txt", 30)

	time.Sleep(400 * time.Millisecond)
	fresh := testsupport.NewSession(t, store, "", "fresh.txt", 40)

	pruned, err := store.PruneStale(ctx, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("PruneStale failed: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned record, got %d", pruned)
	}
	if found, _ := store.GetByID(ctx, stale.ID); found != nil {
		t.Fatal("stale record should be pruned")
	}
	if found, _ := store.GetByID(ctx, fresh.ID); found == nil {
		t.Fatal("fresh record should survive pruning")
	}

	if n, err := store.PruneStale(ctx, 0); err != nil || n != 0 {
		t.Fatalf("zero window should prune nothing, got %d, %v", n, err)
	}
}

func TestHealthSummaryCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i, status := range []session.Status{session.StatusUploading, session.StatusPaused, session.StatusError} {
		record := testsupport.NewSession(t, store, "", fmt.Sprintf("h-%d.txt", i), int64(10+i))
		record.Status = status
		if err := store.Update(ctx, record); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 3 || health.InFlight != 1 || health.Paused != 1 || health.Failed != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}

func TestCheckHealthReportsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.NewSession(t, store, "", "doc.pdf", 99)

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists {
		t.Fatalf("expected healthy database, got %#v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("unexpected missing columns: %v", health.MissingColumns)
	}
	if !health.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
	if health.TotalSessions != 1 {
		t.Fatalf("expected 1 session, got %d", health.TotalSessions)
	}
}
