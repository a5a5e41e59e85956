package tags

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

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

func (s *Service) List(ctx context.Context, userID string) ([]Tag, error) {
	return s.Repo.ListByUser(ctx, userID)
}

func (s *Service) Create(ctx context.Context, userID, name string) (Tag, error) {
	name = strings.TrimSpace(name)
	if strings.TrimSpace(userID) == "" || name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return Tag{}, ErrInvalidInput
	}
	tag := Tag{ID: uuid.NewString(), UserID: userID, Name: name, CreatedAt: s.now()}
	if err := s.Repo.Create(ctx, tag); err != nil {
		return Tag{}, err
	}
	telemetry.Info("tag.created", map[string]any{"tag_id": tag.ID, "user_id": userID})
	return tag, nil
}

func (s *Service) Delete(ctx context.Context, userID, tagID string) error {
	if _, err := s.ownedTag(ctx, userID, tagID); err != nil {
		return err
	}
	return s.Repo.Delete(ctx, tagID)
}

func (s *Service) ListForDocument(ctx context.Context, userID, documentID string) ([]Tag, error) {
	if err := s.ownedDocument(ctx, userID, documentID); err != nil {
		return nil, err
	}
	return s.Repo.ListForDocument(ctx, documentID)
}

// Attach links a tag to a document; both must belong to the user.
func (s *Service) Attach(ctx context.Context, userID, documentID, tagID string) error {
	if err := s.ownedDocument(ctx, userID, documentID); err != nil {
		return err
	}
	if _, err := s.ownedTag(ctx, userID, tagID); err != nil {
		return err
	}
	return s.Repo.Attach(ctx, documentID, tagID)
}

func (s *Service) Detach(ctx context.Context, userID, documentID, tagID string) error {
	if err := s.ownedDocument(ctx, userID, documentID); err != nil {
		return err
	}
	if _, err := s.ownedTag(ctx, userID, tagID); err != nil {
		return err
	}
	return s.Repo.Detach(ctx, documentID, tagID)
}

func (s *Service) ownedTag(ctx context.Context, userID, tagID string) (Tag, error) {
	t, err := s.Repo.GetByID(ctx, tagID)
	if err != nil {
		return Tag{}, err
	}
	if t.UserID != userID {
		return Tag{}, ErrNotFound
	}
	return t, nil
}

func (s *Service) ownedDocument(ctx context.Context, userID, documentID string) error {
	if s.Docs == nil {
		return nil
	}
	doc, err := s.Docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.UserID != userID {
		return documents.ErrNotFound
	}
	return nil
}
