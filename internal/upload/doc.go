// Package upload orchestrates file submissions end to end: tier and
// extension validation, the small-file versus chunked-path decision,
// the per-file status machine with pause/resume/cancel, durable
// progress persistence after every chunk acknowledgment, and the
// hand-off to the processing pipeline once bytes are stored.
package upload
