// Package tier enforces per-plan upload limits. Files are checked
// against the account tier before any session is created, and the
// same policy decides when a file is large enough to need the
// chunked resumable path.
package tier
