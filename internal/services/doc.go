// Package services holds cross-cutting helpers shared by engine components:
// the error classification taxonomy (validation, transport, processing) and
// context annotations for task, stage, and correlation identifiers.
package services
