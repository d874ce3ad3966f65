package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Create inserts a new session record for a file. The fingerprint is
// derived from the filename and size; a second insert for the same pair
// fails on the unique index rather than spawning a duplicate session.
func (s *Store) Create(ctx context.Context, sourcePath, filename string, size int64, contentType string, skipStorage bool) (*Record, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO upload_sessions (
            fingerprint, source_path, filename, size, content_type, session_handle,
            upload_offset, chunk_size, status, skip_storage, error_message,
            created_at, updated_at, progress_stage, progress_percent, progress_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		Fingerprint(filename, size),
		nullableString(sourcePath),
		filename,
		size,
		nullableString(contentType),
		nil,
		0,
		0,
		StatusIdle,
		boolToInt(skipStorage),
		nil,
		timestamp,
		timestamp,
		nil,
		0.0,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a session record by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM upload_sessions WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return record, nil
}

// FindByFingerprint returns the session matching a fingerprint, or nil.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*Record, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+recordColumns+` FROM upload_sessions WHERE fingerprint = ? LIMIT 1`,
		fingerprint,
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return record, nil
}

// Update persists changes to an existing session record.
func (s *Store) Update(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	record.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE upload_sessions
         SET source_path = ?, filename = ?, size = ?, content_type = ?,
             session_handle = ?, upload_offset = ?, chunk_size = ?, status = ?,
             skip_storage = ?, error_message = ?, updated_at = ?,
             progress_stage = ?, progress_percent = ?, progress_message = ?
         WHERE id = ?`,
		nullableString(record.SourcePath),
		record.Filename,
		record.Size,
		nullableString(record.ContentType),
		nullableString(record.SessionHandle),
		record.Offset,
		record.ChunkSize,
		record.Status,
		boolToInt(record.SkipStorage),
		nullableString(record.ErrorMessage),
		record.UpdatedAt.Format(time.RFC3339Nano),
		nullableString(record.ProgressStage),
		record.ProgressPercent,
		nullableString(record.ProgressMessage),
		record.ID,
	); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// List returns session records filtered by status set (or all records
// when no status is provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Record, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + recordColumns + ` FROM upload_sessions`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ListIncomplete returns the records a user would want to resume or
// inspect: everything except completed uploads.
func (s *Store) ListIncomplete(ctx context.Context) ([]*Record, error) {
	return s.List(ctx, StatusIdle, StatusUploading, StatusPaused, StatusResuming, StatusProcessing, StatusError)
}

// Remove deletes a session by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM upload_sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RemoveByFingerprint deletes the session matching a fingerprint.
func (s *Store) RemoveByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM upload_sessions WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return false, fmt.Errorf("delete session by fingerprint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all sessions from the store.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM upload_sessions`)
	if err != nil {
		return 0, fmt.Errorf("clear sessions: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only errored sessions from the store.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM upload_sessions WHERE status = ?`, StatusError)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}
