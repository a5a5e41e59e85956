package tags

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PGRepo struct {
	DB *sql.DB
}

func scanTag(row interface{ Scan(dest ...any) error }) (Tag, error) {
	var t Tag
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tag{}, ErrNotFound
		}
		return Tag{}, err
	}
	return t, nil
}

func (r *PGRepo) Create(ctx context.Context, tag Tag) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO tags (id, user_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		tag.ID, tag.UserID, tag.Name, tag.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Tag, error) {
	return scanTag(r.DB.QueryRowContext(ctx, `SELECT id, user_id, name, created_at FROM tags WHERE id = $1`, id))
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Tag, error) {
	return r.list(ctx, `SELECT id, user_id, name, created_at FROM tags WHERE user_id = $1 ORDER BY lower(name)`, userID)
}

func (r *PGRepo) ListForDocument(ctx context.Context, documentID string) ([]Tag, error) {
	const query = `
SELECT t.id, t.user_id, t.name, t.created_at
FROM tags t
JOIN document_tags dt ON dt.tag_id = t.id
WHERE dt.document_id = $1
ORDER BY lower(t.name)`
	return r.list(ctx, query, documentID)
}

func (r *PGRepo) list(ctx context.Context, query string, args ...any) ([]Tag, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) Attach(ctx context.Context, documentID, tagID string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO document_tags (document_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		documentID, tagID)
	return err
}

func (r *PGRepo) Detach(ctx context.Context, documentID, tagID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM document_tags WHERE document_id = $1 AND tag_id = $2`, documentID, tagID)
	return err
}

// DeleteByUser removes the user's tags; their document links cascade.
func (r *PGRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tags WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

var _ Repo = (*PGRepo)(nil)
