// Package pipeline drives uploaded files through content extraction and
// embedding. Progress is reported as a stage tag plus a 0-100 percent
// that never decreases within a run; each stage owns a fixed band of
// that range. A stage failure halts the run, discards partial results,
// and preserves the last stage for diagnostics.
package pipeline
