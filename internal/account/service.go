package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"studyhub-backend/internal/documents"
	"studyhub-backend/internal/shared/telemetry"
)

var (
	ErrInvalidInput = errors.New("userId is required")
	ErrForbidden    = errors.New("not allowed to delete this user")
)

const deleteConcurrency = 4

type documentStore interface {
	List(ctx context.Context, userID string, limit, offset int) ([]documents.Document, error)
	Delete(ctx context.Context, userID, documentID string) error
}

type userDeleter interface {
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

type userStore interface {
	RoleOf(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, userID string) error
}

type usageStore interface {
	Delete(ctx context.Context, userID string) error
}

// Service removes a user and everything they own.
type Service struct {
	Docs  documentStore
	Notes userDeleter
	Tags  userDeleter
	Usage usageStore
	Users userStore
	// DB, when set, deletes the non-document rows in one transaction.
	DB *sql.DB
}

type DeleteResult struct {
	DeletedDocuments int `json:"deletedDocuments"`
	DeletedNotes     int `json:"deletedNotes"`
	DeletedTags      int `json:"deletedTags"`
}

// DeleteUser deletes targetID's data. Callers may delete themselves; admins
// may delete anyone.
func (s *Service) DeleteUser(ctx context.Context, callerID, targetID string) (DeleteResult, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return DeleteResult{}, ErrInvalidInput
	}
	if callerID != targetID {
		role, err := s.Users.RoleOf(ctx, callerID)
		if err != nil {
			return DeleteResult{}, fmt.Errorf("caller role: %w", err)
		}
		if role != "admin" {
			return DeleteResult{}, ErrForbidden
		}
	}

	var res DeleteResult
	deleted, err := s.deleteDocuments(ctx, targetID)
	res.DeletedDocuments = deleted
	if err != nil {
		return res, err
	}

	if s.DB != nil {
		notes, tags, err := deleteRowsTx(ctx, s.DB, targetID)
		if err != nil {
			return res, err
		}
		res.DeletedNotes, res.DeletedTags = notes, tags
	} else {
		if res.DeletedNotes, err = s.Notes.DeleteByUser(ctx, targetID); err != nil {
			return res, fmt.Errorf("delete notes: %w", err)
		}
		if res.DeletedTags, err = s.Tags.DeleteByUser(ctx, targetID); err != nil {
			return res, fmt.Errorf("delete tags: %w", err)
		}
		if err := s.Usage.Delete(ctx, targetID); err != nil {
			return res, fmt.Errorf("delete usage: %w", err)
		}
		if err := s.Users.Delete(ctx, targetID); err != nil {
			return res, fmt.Errorf("delete user: %w", err)
		}
	}

	telemetry.Info("user.deleted", map[string]any{
		"user_id":   targetID,
		"caller_id": callerID,
		"documents": res.DeletedDocuments,
		"notes":     res.DeletedNotes,
		"tags":      res.DeletedTags,
	})
	return res, nil
}

// deleteDocuments goes through the document service so stored files go too.
func (s *Service) deleteDocuments(ctx context.Context, userID string) (int, error) {
	docs, err := s.Docs.List(ctx, userID, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}
	var mu sync.Mutex
	count := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteConcurrency)
	for _, doc := range docs {
		g.Go(func() error {
			if err := s.Docs.Delete(gctx, userID, doc.ID); err != nil && !errors.Is(err, documents.ErrNotFound) {
				return fmt.Errorf("delete document %s: %w", doc.ID, err)
			}
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	return count, err
}

func deleteRowsTx(ctx context.Context, db *sql.DB, userID string) (int, int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	notesRes, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE user_id = $1`, userID)
	if err != nil {
		return 0, 0, err
	}
	notes, _ := notesRes.RowsAffected()

	tagsRes, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE user_id = $1`, userID)
	if err != nil {
		return 0, 0, err
	}
	tags, _ := tagsRes.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM usage_windows WHERE user_id = $1`, userID); err != nil {
		return 0, 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return int(notes), int(tags), nil
}
