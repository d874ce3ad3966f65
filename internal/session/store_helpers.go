package session

import (
	"database/sql"
	"errors"
	"time"
)

const recordColumns = "id, fingerprint, source_path, filename, size, content_type, session_handle, upload_offset, chunk_size, status, skip_storage, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id              int64
		fingerprint     string
		sourcePath      sql.NullString
		filename        string
		size            int64
		contentType     sql.NullString
		sessionHandle   sql.NullString
		offset          int64
		chunkSize       int64
		statusStr       string
		skipStorage     sql.NullInt64
		errorMessage    sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&fingerprint,
		&sourcePath,
		&filename,
		&size,
		&contentType,
		&sessionHandle,
		&offset,
		&chunkSize,
		&statusStr,
		&skipStorage,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
	); err != nil {
		return nil, err
	}

	record := &Record{
		ID:              id,
		Fingerprint:     fingerprint,
		SourcePath:      sourcePath.String,
		Filename:        filename,
		Size:            size,
		ContentType:     contentType.String,
		SessionHandle:   sessionHandle.String,
		Offset:          offset,
		ChunkSize:       chunkSize,
		Status:          Status(statusStr),
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}
	if skipStorage.Valid {
		record.SkipStorage = skipStorage.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
