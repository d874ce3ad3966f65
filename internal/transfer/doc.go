// Package transfer implements the client side of the resumable-upload
// wire protocol. The endpoint's acknowledged offset is the single
// source of truth: chunks are appended strictly at that offset, a
// disagreement surfaces as an OffsetMismatchError, and callers re-probe
// with Offset before resuming.
package transfer
