package transfer_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"vaultingest/internal/services"
	"vaultingest/internal/testsupport"
	"vaultingest/internal/transfer"
)

func newTestClient(t *testing.T, ep *testsupport.Endpoint) *transfer.Client {
	t.Helper()
	return transfer.NewClient(transfer.Config{
		BaseURL:  ep.URL(),
		APIToken: "test-token",
	}, transfer.WithSleeper(func(d time.Duration) {}))
}

func TestCreateSessionAndChunkRoundTrip(t *testing.T) {
	ep := testsupport.NewEndpoint(t)
	client := newTestClient(t, ep)
	ctx := context.Background()

	handle, err := client.CreateSession(ctx, "big.bin", 6, "application/octet-stream")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if handle == "" {
		t.Fatal("expected non-empty handle")
	}

	offset, err := client.SendChunk(ctx, handle, 0, []byte("abc"))
	if err != nil {
		t.Fatalf("SendChunk: %v", err)
	}
	if offset != 3 {
		t.Fatalf("expected offset 3, got %d", offset)
	}

	offset, err = client.SendChunk(ctx, handle, 3, []byte("def"))
	if err != nil {
		t.Fatalf("SendChunk: %v", err)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}

	fileID, err := client.Finalize(ctx, handle)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if fileID == "" {
		t.Fatal("expected file id")
	}
	if got := ep.SessionData(handle); !bytes.Equal(got, []byte("abcdef")) {
		t.Fatalf("endpoint stored %q", got)
	}
}

func TestSendChunkRetriesOnceOnTransientFailure(t *testing.T) {
	ep := testsupport.NewEndpoint(t)
	client := newTestClient(t, ep)
	ctx := context.Background()

	handle, err := client.CreateSession(ctx, "flaky.bin", 3, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	ep.FailNextPatches(1)
	offset, err := client.SendChunk(ctx, handle, 0, []byte("xyz"))
	if err != nil {
		t.Fatalf("SendChunk should succeed on retry: %v", err)
	}
	if offset != 3 {
		t.Fatalf("expected offset 3, got %d", offset)
	}
	if calls := ep.Calls("patch"); calls != 2 {
		t.Fatalf("expected 2 PATCH requests, got %d", calls)
	}
}

func TestSendChunkGivesUpAfterSecondFailure(t *testing.T) {
	ep := testsupport.NewEndpoint(t)
	client := newTestClient(t, ep)
	ctx := context.Background()

	handle, err := client.CreateSession(ctx, "down.bin", 3, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	ep.FailNextPatches(2)
	_, err = client.SendChunk(ctx, handle, 0, []byte("xyz"))
	if err == nil {
		t.Fatal("expected failure after exhausted retry")
	}
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !services.Resumable(err) {
		t.Fatal("transport failures must be resumable")
	}
	if calls := ep.Calls("patch"); calls != 2 {
		t.Fatalf("expected exactly 2 PATCH attempts, got %d", calls)
	}
}

func TestSendChunkReportsOffsetMismatch(t *testing.T) {
	ep := testsupport.NewEndpoint(t)
	client := newTestClient(t, ep)
	ctx := context.Background()

	handle, err := client.CreateSession(ctx, "skew.bin", 6, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := client.SendChunk(ctx, handle, 0, []byte("abc")); err != nil {
		t.Fatalf("SendChunk: %v", err)
	}

	_, err = client.SendChunk(ctx, handle, 0, []byte("abc"))
	if err == nil {
		t.Fatal("expected offset mismatch")
	}
	var mismatch *transfer.OffsetMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected OffsetMismatchError, got %v", err)
	}
	if mismatch.ServerOffset != 3 {
		t.Fatalf("expected server offset 3, got %d", mismatch.ServerOffset)
	}
	// Mismatches must not burn the retry; one request only.
	if calls := ep.Calls("patch"); calls != 2 {
		t.Fatalf("expected 2 PATCH requests total, got %d", calls)
	}
}

func TestOffsetProbe(t *testing.T) {
	ep := testsupport.NewEndpoint(t)
	client := newTestClient(t, ep)
	ctx := context.Background()

	handle, err := client.CreateSession(ctx, "probe.bin", 6, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := client.SendChunk(ctx, handle, 0, []byte("abcd")); err != nil {
		t.Fatalf("SendChunk: %v", err)
	}

	offset, err := client.Offset(ctx, handle)
	if err != nil {
		t.Fatalf("Offset: %v", err)
	}
	if offset != 4 {
		t.Fatalf("expected offset 4, got %d", offset)
	}

	if _, err := client.Offset(ctx, "sess-nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found for unknown handle, got %v", err)
	}
}

func TestTerminateToleratesUnknownHandle(t *testing.T) {
	ep := testsupport.NewEndpoint(t)
	client := newTestClient(t, ep)
	ctx := context.Background()

	handle, err := client.CreateSession(ctx, "gone.bin", 3, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := client.Terminate(ctx, handle); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if ep.SessionExists(handle) {
		t.Fatal("session should be gone after terminate")
	}
	if err := client.Terminate(ctx, handle); err != nil {
		t.Fatalf("terminating an unknown handle should succeed: %v", err)
	}
}

func TestUploadSmall(t *testing.T) {
	ep := testsupport.NewEndpoint(t)
	client := newTestClient(t, ep)

	fileID, err := client.UploadSmall(context.Background(), "notes.txt", "text/plain", bytes.NewReader([]byte("hello")))
	if err != nil {
		t.Fatalf("UploadSmall: %v", err)
	}
	if fileID == "" {
		t.Fatal("expected file id")
	}
	if got := ep.SessionData(fileID); !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("endpoint stored %q", got)
	}
}
