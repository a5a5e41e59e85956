package notes

import (
	"context"
	"time"
)

type Repo interface {
	Create(ctx context.Context, note Note) error
	GetByID(ctx context.Context, id string) (Note, error)
	// List returns the user's notes, newest first. An empty documentID lists all.
	List(ctx context.Context, userID, documentID string) ([]Note, error)
	UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) (Note, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int, error)
}
