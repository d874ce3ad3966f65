package pipeline

// Stage names a step of the post-upload processing run.
type Stage string

const (
	StageUploading  Stage = "uploading"
	StageExtracting Stage = "extracting"
	StageEmbedding  Stage = "embedding"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

// Band returns the nominal progress range a stage occupies. Stage
// percentages reported to observers always fall inside the band, so a
// caller can render comparable progress for chunked and small-file
// submissions alike.
func (s Stage) Band() (start, end int) {
	switch s {
	case StageUploading:
		return 0, 30
	case StageExtracting:
		return 30, 70
	case StageEmbedding:
		return 70, 95
	case StageComplete:
		return 100, 100
	default:
		return 0, 0
	}
}

func (s Stage) String() string {
	return string(s)
}

// Update is one observer notification.
type Update struct {
	Stage   Stage
	Percent int
	Message string
}

// Observer receives stage and progress changes during a run. Percent is
// non-decreasing across the whole run until completion or error.
type Observer func(Update)
