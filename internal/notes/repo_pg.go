package notes

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type PGRepo struct {
	DB *sql.DB
}

const noteColumns = `id, user_id, document_id, content, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (Note, error) {
	var n Note
	if err := row.Scan(&n.ID, &n.UserID, &n.DocumentID, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Note{}, ErrNotFound
		}
		return Note{}, err
	}
	return n, nil
}

func (r *PGRepo) Create(ctx context.Context, note Note) error {
	const query = `
INSERT INTO notes (id, user_id, document_id, content, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.DB.ExecContext(ctx, query, note.ID, note.UserID, note.DocumentID, note.Content, note.CreatedAt, note.UpdatedAt)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = $1`
	return scanNote(r.DB.QueryRowContext(ctx, query, id))
}

func (r *PGRepo) List(ctx context.Context, userID, documentID string) ([]Note, error) {
	query := `SELECT ` + noteColumns + `
FROM notes
WHERE user_id = $1 AND ($2 = '' OR document_id::text = $2)
ORDER BY updated_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PGRepo) UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) (Note, error) {
	query := `UPDATE notes SET content = $2, updated_at = $3 WHERE id = $1 RETURNING ` + noteColumns
	return scanNote(r.DB.QueryRowContext(ctx, query, id, content, updatedAt))
}

func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
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

func (r *PGRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM notes WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

var _ Repo = (*PGRepo)(nil)
