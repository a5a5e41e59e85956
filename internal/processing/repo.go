package processing

import (
	"context"
	"time"
)

// Repo defines persistence for processing jobs. Jobs are never deleted by
// application code.
type Repo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, jobID string) (Job, error)
	ListByDocument(ctx context.Context, documentID string) ([]Job, error)
	// Claim moves a pending job to processing with progress 50. A job in any
	// other state returns ErrAlreadyClaimed.
	Claim(ctx context.Context, jobID string, startedAt time.Time) (Job, error)
	Complete(ctx context.Context, jobID string, result map[string]any, completedAt time.Time) error
	Fail(ctx context.Context, jobID, message string, completedAt time.Time) error
}
