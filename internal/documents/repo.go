package documents

import "context"

// SummaryFields are the AI-derived fields, always written together.
type SummaryFields struct {
	Title     string
	Summary   string
	KeyPoints []string
}

// Repo defines persistence operations for documents. Every update bumps the
// document version.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, documentID string) (Document, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error)
	ListByUserAndStatus(ctx context.Context, userID string, status Status) ([]Document, error)
	UpdateProgress(ctx context.Context, documentID string, progress int, status *Status) (Document, error)
	UpdateStatus(ctx context.Context, documentID string, status Status) error
	// ResetForReprocess nulls parsed text and AI fields and sets status
	// processing, only if the stored version still equals expectedVersion.
	ResetForReprocess(ctx context.Context, documentID string, expectedVersion int64) (Document, error)
	SetParsedText(ctx context.Context, documentID, text string) error
	SetSummary(ctx context.Context, documentID string, fields SummaryFields) error
	ClearSummary(ctx context.Context, documentID string) error
	// ApplyJobResult merges result under metadata[jobType], fills parsed text
	// when it is empty and text is non-nil, and marks the document ready.
	ApplyJobResult(ctx context.Context, documentID string, jobType JobType, result map[string]any, text *string) error
	Delete(ctx context.Context, documentID string) error
}
