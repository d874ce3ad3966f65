// Package embedding submits extracted text to an OpenAI-style
// embeddings endpoint. Transient endpoint failures are retried with
// bounded exponential backoff; client errors surface immediately.
package embedding
