package tags

import "context"

type Repo interface {
	Create(ctx context.Context, tag Tag) error
	GetByID(ctx context.Context, id string) (Tag, error)
	ListByUser(ctx context.Context, userID string) ([]Tag, error)
	Delete(ctx context.Context, id string) error
	// Attach is idempotent.
	Attach(ctx context.Context, documentID, tagID string) error
	Detach(ctx context.Context, documentID, tagID string) error
	ListForDocument(ctx context.Context, documentID string) ([]Tag, error)
	DeleteByUser(ctx context.Context, userID string) (int, error)
}
