package usage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// pgStore keeps one usage_windows row per user.
type pgStore struct {
	DB *sql.DB
}

func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db}
}

func (s *pgStore) EnsurePeriod(ctx context.Context, userID string, plan Plan) (Usage, error) {
	var u Usage
	err := s.inTx(ctx, func(tx *sql.Tx) (err error) {
		u, err = s.lockAndEnsure(ctx, tx, userID, plan)
		return err
	})
	return u, err
}

// Consume locks the user's window row so concurrent requests cannot both
// take the last unit.
func (s *pgStore) Consume(ctx context.Context, userID string, plan Plan, n int) (Usage, error) {
	if n <= 0 {
		return s.EnsurePeriod(ctx, userID, plan)
	}
	var u Usage
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		cur, err := s.lockAndEnsure(ctx, tx, userID, plan)
		if err != nil {
			return err
		}
		if exceeds(cur, n) {
			return ErrLimitReached
		}
		cur.Used += n
		if _, err := tx.ExecContext(ctx,
			`UPDATE usage_windows SET used = $1, updated_at = now() WHERE user_id = $2`, cur.Used, userID); err != nil {
			return err
		}
		u = cur
		return nil
	})
	if err != nil {
		return Usage{}, err
	}
	return u, nil
}

func (s *pgStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *pgStore) Reset(ctx context.Context, userID string, plan Plan) (Usage, error) {
	u := newUsage(plan, time.Now().UTC())
	if _, err := s.DB.ExecContext(ctx, `
INSERT INTO usage_windows (user_id, plan, usage_limit, used, resets_at)
VALUES ($1, $2, $3, 0, $4)
ON CONFLICT (user_id) DO UPDATE
SET plan = EXCLUDED.plan, usage_limit = EXCLUDED.usage_limit, used = 0, resets_at = EXCLUDED.resets_at, updated_at = now()`,
		userID, u.Plan, u.Limit, u.ResetsAt); err != nil {
		return Usage{}, err
	}
	return u, nil
}

func (s *pgStore) Delete(ctx context.Context, userID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM usage_windows WHERE user_id = $1`, userID)
	return err
}

func (s *pgStore) lockAndEnsure(ctx context.Context, tx *sql.Tx, userID string, plan Plan) (Usage, error) {
	var u Usage
	row := tx.QueryRowContext(ctx, `
SELECT plan, usage_limit, used, resets_at FROM usage_windows WHERE user_id = $1 FOR UPDATE`, userID)
	err := row.Scan(&u.Plan, &u.Limit, &u.Used, &u.ResetsAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			u = newUsage(plan, time.Now().UTC())
			if _, err = tx.ExecContext(ctx, `
INSERT INTO usage_windows (user_id, plan, usage_limit, used, resets_at) VALUES ($1, $2, $3, $4, $5)`,
				userID, u.Plan, u.Limit, u.Used, u.ResetsAt); err != nil {
				return Usage{}, err
			}
			return u, nil
		}
		return Usage{}, err
	}

	if roll(&u, plan, time.Now().UTC()) {
		if _, err = tx.ExecContext(ctx, `
UPDATE usage_windows SET plan = $1, usage_limit = $2, used = $3, resets_at = $4, updated_at = now() WHERE user_id = $5`,
			u.Plan, u.Limit, u.Used, u.ResetsAt, userID); err != nil {
			return Usage{}, err
		}
	}
	return u, nil
}
