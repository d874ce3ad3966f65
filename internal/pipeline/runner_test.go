package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"vaultingest/internal/pipeline"
	"vaultingest/internal/services"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract(ctx context.Context, path string) (string, error) {
	return f.text, f.err
}

type fakeEmbedder struct {
	err   error
	calls int
	texts []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, filename, text string) error {
	f.calls++
	f.texts = append(f.texts, text)
	return f.err
}

func collectUpdates(updates *[]pipeline.Update) pipeline.Observer {
	return func(u pipeline.Update) {
		*updates = append(*updates, u)
	}
}

func stagesOf(updates []pipeline.Update) []pipeline.Stage {
	var stages []pipeline.Stage
	for _, u := range updates {
		if len(stages) == 0 || stages[len(stages)-1] != u.Stage {
			stages = append(stages, u.Stage)
		}
	}
	return stages
}

func TestRunSkipStoragePathSkipsUploadingStage(t *testing.T) {
	embedder := &fakeEmbedder{}
	runner := pipeline.NewRunner(fakeExtractor{text: "hello world"}, embedder, nil)

	var updates []pipeline.Update
	err := runner.Run(context.Background(), pipeline.Input{
		Path:     "/tmp/notes.txt",
		Filename: "notes.txt",
		Observer: collectUpdates(&updates),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stages := stagesOf(updates)
	want := []pipeline.Stage{pipeline.StageExtracting, pipeline.StageEmbedding, pipeline.StageComplete}
	if len(stages) != len(want) {
		t.Fatalf("unexpected stages: %v", stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("expected stages %v, got %v", want, stages)
		}
	}
	if embedder.calls != 1 || embedder.texts[0] != "hello world" {
		t.Fatalf("embedder saw %v", embedder.texts)
	}
}

func TestRunSmallFilePathEmitsUploadingBand(t *testing.T) {
	runner := pipeline.NewRunner(fakeExtractor{text: "body"}, &fakeEmbedder{}, nil)

	uploaded := false
	var updates []pipeline.Update
	err := runner.Run(context.Background(), pipeline.Input{
		Path:     "/tmp/small.txt",
		Filename: "small.txt",
		Upload: func(ctx context.Context) error {
			uploaded = true
			return nil
		},
		Observer: collectUpdates(&updates),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !uploaded {
		t.Fatal("upload func was not invoked")
	}

	stages := stagesOf(updates)
	if stages[0] != pipeline.StageUploading {
		t.Fatalf("expected uploading first, got %v", stages)
	}
	if stages[len(stages)-1] != pipeline.StageComplete {
		t.Fatalf("expected complete last, got %v", stages)
	}
}

func TestRunPercentIsMonotonicAndBanded(t *testing.T) {
	runner := pipeline.NewRunner(fakeExtractor{text: "body"}, &fakeEmbedder{}, nil)

	var updates []pipeline.Update
	err := runner.Run(context.Background(), pipeline.Input{
		Path:     "/tmp/f.txt",
		Filename: "f.txt",
		Upload:   func(ctx context.Context) error { return nil },
		Observer: collectUpdates(&updates),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	last := -1
	for _, u := range updates {
		if u.Percent < last {
			t.Fatalf("percent regressed from %d to %d at stage %s", last, u.Percent, u.Stage)
		}
		last = u.Percent
		if u.Stage == pipeline.StageComplete && u.Percent != 100 {
			t.Fatalf("complete should be 100, got %d", u.Percent)
		}
		start, end := u.Stage.Band()
		if u.Stage != pipeline.StageError && (u.Percent < start || u.Percent > end) {
			t.Fatalf("stage %s percent %d outside band [%d,%d]", u.Stage, u.Percent, start, end)
		}
	}
	if last != 100 {
		t.Fatalf("run should end at 100, got %d", last)
	}
}

func TestRunExtractionFailureHaltsBeforeEmbedding(t *testing.T) {
	embedder := &fakeEmbedder{}
	runner := pipeline.NewRunner(fakeExtractor{err: errors.New("corrupt xref table")}, embedder, nil)

	var updates []pipeline.Update
	err := runner.Run(context.Background(), pipeline.Input{
		Path:     "/tmp/corrupt.pdf",
		Filename: "corrupt.pdf",
		Observer: collectUpdates(&updates),
	})
	if err == nil {
		t.Fatal("expected extraction failure")
	}
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("expected processing error, got %v", err)
	}
	if services.Resumable(err) {
		t.Fatal("processing failures are not resumable")
	}
	if embedder.calls != 0 {
		t.Fatal("embedding stage must never run after extraction failure")
	}

	final := updates[len(updates)-1]
	if final.Stage != pipeline.StageError {
		t.Fatalf("expected final error update, got %v", final)
	}
	for _, u := range updates {
		if u.Stage == pipeline.StageEmbedding {
			t.Fatal("embedding stage was emitted despite extraction failure")
		}
	}
}

func TestRunEmbeddingFailure(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("endpoint 503")}
	runner := pipeline.NewRunner(fakeExtractor{text: "body"}, embedder, nil)

	var updates []pipeline.Update
	err := runner.Run(context.Background(), pipeline.Input{
		Path:     "/tmp/f.txt",
		Filename: "f.txt",
		Observer: collectUpdates(&updates),
	})
	if err == nil {
		t.Fatal("expected embedding failure")
	}
	final := updates[len(updates)-1]
	if final.Stage != pipeline.StageError {
		t.Fatalf("expected error stage, got %v", final)
	}
	if final.Message == "" {
		t.Fatal("error update should carry a message")
	}
}

func TestRunEmptyExtractionIsAnError(t *testing.T) {
	runner := pipeline.NewRunner(fakeExtractor{text: "   "}, &fakeEmbedder{}, nil)

	err := runner.Run(context.Background(), pipeline.Input{Path: "/tmp/blank.txt", Filename: "blank.txt"})
	if !errors.Is(err, services.ErrProcessing) {
		t.Fatalf("expected processing error for empty extraction, got %v", err)
	}
}

func TestRunUploadFailurePreservesTransportClass(t *testing.T) {
	runner := pipeline.NewRunner(fakeExtractor{text: "body"}, &fakeEmbedder{}, nil)

	transportErr := services.Wrap(services.ErrTransport, "uploading", "upload_small", "small.txt", errors.New("connection reset"))
	var updates []pipeline.Update
	err := runner.Run(context.Background(), pipeline.Input{
		Path:     "/tmp/small.txt",
		Filename: "small.txt",
		Upload:   func(ctx context.Context) error { return transportErr },
		Observer: collectUpdates(&updates),
	})
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("upload errors should keep their transport class, got %v", err)
	}
	if updates[len(updates)-1].Stage != pipeline.StageError {
		t.Fatal("expected error stage after upload failure")
	}
}
