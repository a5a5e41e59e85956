package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, user_id, filename, original_filename, file_type, file_size, storage_path, status, upload_progress, parsed_text, title, summary, key_points, metadata, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var status string
	var parsedText, title, summary sql.NullString
	var keyPoints, metadata []byte
	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Filename,
		&doc.OriginalFilename,
		&doc.FileType,
		&doc.FileSize,
		&doc.StoragePath,
		&status,
		&doc.UploadProgress,
		&parsedText,
		&title,
		&summary,
		&keyPoints,
		&metadata,
		&doc.Version,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	doc.Status = Status(status)
	if parsedText.Valid {
		doc.ParsedText = &parsedText.String
	}
	if title.Valid {
		doc.Title = &title.String
	}
	if summary.Valid {
		doc.Summary = &summary.String
	}
	if len(keyPoints) > 0 && string(keyPoints) != "null" {
		if err := json.Unmarshal(keyPoints, &doc.KeyPoints); err != nil {
			return Document{}, fmt.Errorf("decode key_points: %w", err)
		}
	}
	doc.Metadata = map[string]any{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return Document{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return doc, nil
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    user_id,
    filename,
    original_filename,
    file_type,
    file_size,
    storage_path,
    status,
    upload_progress,
    metadata,
    version,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $11)`

	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.UserID,
		doc.Filename,
		doc.OriginalFilename,
		doc.FileType,
		doc.FileSize,
		doc.StoragePath,
		string(doc.Status),
		doc.UploadProgress,
		metaJSON,
		doc.CreatedAt,
	)
	return err
}

// GetByID fetches a document by ID.
func (r *PGRepo) GetByID(ctx context.Context, documentID string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(r.DB.QueryRowContext(ctx, query, documentID))
}

// ListByUser lists documents ordered newest-first. A non-positive limit
// returns every row after offset.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if offset < 0 {
		offset = 0
	}
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	return r.list(ctx, query, userID, lim, offset)
}

// ListByUserAndStatus returns a user's documents in one status.
func (r *PGRepo) ListByUserAndStatus(ctx context.Context, userID string, status Status) ([]Document, error) {
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE user_id = $1 AND status = $2
ORDER BY created_at DESC`
	return r.list(ctx, query, userID, string(status))
}

func (r *PGRepo) list(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// UpdateProgress sets upload progress and, when status is non-nil, status.
func (r *PGRepo) UpdateProgress(ctx context.Context, documentID string, progress int, status *Status) (Document, error) {
	var statusArg sql.NullString
	if status != nil {
		statusArg = sql.NullString{String: string(*status), Valid: true}
	}
	query := `
UPDATE documents
SET upload_progress = $2,
    status = COALESCE($3, status),
    version = version + 1,
    updated_at = now()
WHERE id = $1
RETURNING ` + documentColumns
	return scanDocument(r.DB.QueryRowContext(ctx, query, documentID, progress, statusArg))
}

// UpdateStatus sets the document status.
func (r *PGRepo) UpdateStatus(ctx context.Context, documentID string, status Status) error {
	const query = `
UPDATE documents
SET status = $2, version = version + 1, updated_at = now()
WHERE id = $1`
	return r.execOne(ctx, query, documentID, string(status))
}

// ResetForReprocess clears derived fields with a compare-and-swap on version.
func (r *PGRepo) ResetForReprocess(ctx context.Context, documentID string, expectedVersion int64) (Document, error) {
	query := `
UPDATE documents
SET parsed_text = NULL,
    title = NULL,
    summary = NULL,
    key_points = NULL,
    status = 'processing',
    version = version + 1,
    updated_at = now()
WHERE id = $1 AND version = $2
RETURNING ` + documentColumns
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, documentID, expectedVersion))
	if errors.Is(err, ErrNotFound) {
		return Document{}, ErrConflict
	}
	return doc, err
}

// SetParsedText replaces the parsed text.
func (r *PGRepo) SetParsedText(ctx context.Context, documentID, text string) error {
	const query = `
UPDATE documents
SET parsed_text = $2, version = version + 1, updated_at = now()
WHERE id = $1`
	return r.execOne(ctx, query, documentID, text)
}

// SetSummary writes the three AI fields in one statement.
func (r *PGRepo) SetSummary(ctx context.Context, documentID string, fields SummaryFields) error {
	keyPoints := fields.KeyPoints
	if keyPoints == nil {
		keyPoints = []string{}
	}
	kpJSON, err := json.Marshal(keyPoints)
	if err != nil {
		return fmt.Errorf("encode key_points: %w", err)
	}
	const query = `
UPDATE documents
SET title = $2, summary = $3, key_points = $4, version = version + 1, updated_at = now()
WHERE id = $1`
	return r.execOne(ctx, query, documentID, fields.Title, fields.Summary, kpJSON)
}

// ClearSummary nulls the three AI fields.
func (r *PGRepo) ClearSummary(ctx context.Context, documentID string) error {
	const query = `
UPDATE documents
SET title = NULL, summary = NULL, key_points = NULL, version = version + 1, updated_at = now()
WHERE id = $1`
	return r.execOne(ctx, query, documentID)
}

// ApplyJobResult merges the result into metadata[jobType] atomically.
func (r *PGRepo) ApplyJobResult(ctx context.Context, documentID string, jobType JobType, result map[string]any, text *string) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode job result: %w", err)
	}
	var textArg sql.NullString
	if text != nil {
		textArg = sql.NullString{String: *text, Valid: true}
	}
	const query = `
UPDATE documents
SET metadata = jsonb_set(COALESCE(metadata, '{}'::jsonb), ARRAY[$2::text], $3::jsonb, true),
    parsed_text = CASE
        WHEN $4::text IS NOT NULL AND COALESCE(parsed_text, '') = '' THEN $4::text
        ELSE parsed_text
    END,
    status = 'ready',
    version = version + 1,
    updated_at = now()
WHERE id = $1`
	return r.execOne(ctx, query, documentID, string(jobType), resultJSON, textArg)
}

// Delete removes a document row. Jobs, notes and tag links cascade.
func (r *PGRepo) Delete(ctx context.Context, documentID string) error {
	return r.execOne(ctx, `DELETE FROM documents WHERE id = $1`, documentID)
}

func (r *PGRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
