package services_test

import (
	"errors"
	"testing"

	"vaultingest/internal/services"
)

func TestWrapTagsAndFormats(t *testing.T) {
	base := errors.New("connection reset")
	err := services.Wrap(services.ErrTransport, "uploading", "send chunk", "offset 1048576", base)
	if !errors.Is(err, services.ErrTransport) {
		t.Fatal("expected transport marker")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped cause to survive")
	}
	if services.Classify(err) != services.KindTransport {
		t.Fatalf("unexpected kind: %s", services.Classify(err))
	}
}

func TestWrapNilMarkerDefaultsToProcessing(t *testing.T) {
	err := services.Wrap(nil, "extracting", "", "", errors.New("boom"))
	if services.Classify(err) != services.KindProcessing {
		t.Fatalf("unexpected kind: %s", services.Classify(err))
	}
}

func TestResumable(t *testing.T) {
	if !services.Resumable(services.Wrap(services.ErrTransport, "", "", "chunk failed", nil)) {
		t.Fatal("transport errors should be resumable")
	}
	if services.Resumable(services.Wrap(services.ErrValidation, "", "", "too large", nil)) {
		t.Fatal("validation errors should not be resumable")
	}
	if services.Resumable(services.Wrap(services.ErrProcessing, "", "", "bad pdf", nil)) {
		t.Fatal("processing errors should not be resumable")
	}
}

func TestDetailsStripsMarkerPrefix(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "", "", "file exceeds free tier limit", nil)
	details := services.Details(err)
	if details.Kind != services.KindValidation {
		t.Fatalf("unexpected kind: %s", details.Kind)
	}
	if details.Message != "file exceeds free tier limit" {
		t.Fatalf("unexpected message: %q", details.Message)
	}
}
