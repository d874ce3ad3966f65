// Package session persists upload sessions in SQLite so interrupted
// transfers survive process restarts. Each record carries the file
// fingerprint, the remote session handle, the last acknowledged byte
// offset, and the task status, which together are enough to resume an
// upload exactly where it stopped.
package session
