package notes

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyhub-backend/internal/documents"
	"studyhub-backend/internal/shared/telemetry"
)

type Service struct {
	Repo Repo
	Docs documents.Repo
	Now  func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) List(ctx context.Context, userID, documentID string) ([]Note, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.List(ctx, userID, strings.TrimSpace(documentID))
}

// Create adds a note to a document the user owns. Several notes per
// document are allowed.
func (s *Service) Create(ctx context.Context, userID, documentID, content string) (Note, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(documentID) == "" {
		return Note{}, ErrInvalidInput
	}
	if s.Docs != nil {
		doc, err := s.Docs.GetByID(ctx, documentID)
		if err != nil {
			return Note{}, err
		}
		if doc.UserID != userID {
			return Note{}, documents.ErrNotFound
		}
	}
	now := s.now()
	note := Note{
		ID:         uuid.NewString(),
		UserID:     userID,
		DocumentID: documentID,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.Create(ctx, note); err != nil {
		return Note{}, err
	}
	telemetry.Info("note.created", map[string]any{"note_id": note.ID, "document_id": documentID, "user_id": userID})
	return note, nil
}

func (s *Service) Update(ctx context.Context, userID, noteID, content string) (Note, error) {
	if _, err := s.owned(ctx, userID, noteID); err != nil {
		return Note{}, err
	}
	return s.Repo.UpdateContent(ctx, noteID, content, s.now())
}

func (s *Service) Delete(ctx context.Context, userID, noteID string) error {
	if _, err := s.owned(ctx, userID, noteID); err != nil {
		return err
	}
	return s.Repo.Delete(ctx, noteID)
}

func (s *Service) owned(ctx context.Context, userID, noteID string) (Note, error) {
	if strings.TrimSpace(noteID) == "" {
		return Note{}, ErrInvalidInput
	}
	n, err := s.Repo.GetByID(ctx, noteID)
	if err != nil {
		return Note{}, err
	}
	if n.UserID != userID {
		return Note{}, ErrNotFound
	}
	return n, nil
}
