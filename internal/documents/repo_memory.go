package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Document // documentID -> document
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[doc.ID]; exists {
		return ErrConflict
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	r.data[doc.ID] = doc.clone()
	return nil
}

// GetByID returns a document by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[documentID]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc.clone(), nil
}

// ListByUser returns documents for a user, newest first, honoring limit/offset.
// A non-positive limit returns everything after offset.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}

	docs := r.filter(func(d Document) bool { return d.UserID == userID })
	if offset >= len(docs) {
		return []Document{}, nil
	}
	end := len(docs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return docs[offset:end], nil
}

// ListByUserAndStatus returns all of a user's documents in the given status.
func (r *MemoryRepo) ListByUserAndStatus(ctx context.Context, userID string, status Status) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.filter(func(d Document) bool { return d.UserID == userID && d.Status == status }), nil
}

func (r *MemoryRepo) filter(keep func(Document) bool) []Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Document, 0)
	for _, d := range r.data {
		if keep(d) {
			out = append(out, d.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// UpdateProgress sets upload progress and optionally status.
func (r *MemoryRepo) UpdateProgress(ctx context.Context, documentID string, progress int, status *Status) (Document, error) {
	return r.update(ctx, documentID, func(d *Document) error {
		d.UploadProgress = progress
		if status != nil {
			d.Status = *status
		}
		return nil
	})
}

// UpdateStatus sets the document status.
func (r *MemoryRepo) UpdateStatus(ctx context.Context, documentID string, status Status) error {
	_, err := r.update(ctx, documentID, func(d *Document) error {
		d.Status = status
		return nil
	})
	return err
}

// ResetForReprocess clears derived fields when the version matches.
func (r *MemoryRepo) ResetForReprocess(ctx context.Context, documentID string, expectedVersion int64) (Document, error) {
	return r.update(ctx, documentID, func(d *Document) error {
		if d.Version != expectedVersion {
			return ErrConflict
		}
		d.ParsedText = nil
		d.Title = nil
		d.Summary = nil
		d.KeyPoints = nil
		d.Status = StatusProcessing
		return nil
	})
}

// SetParsedText replaces the parsed text.
func (r *MemoryRepo) SetParsedText(ctx context.Context, documentID, text string) error {
	_, err := r.update(ctx, documentID, func(d *Document) error {
		d.ParsedText = &text
		return nil
	})
	return err
}

// SetSummary writes title, summary and key points together.
func (r *MemoryRepo) SetSummary(ctx context.Context, documentID string, fields SummaryFields) error {
	_, err := r.update(ctx, documentID, func(d *Document) error {
		title, summary := fields.Title, fields.Summary
		d.Title = &title
		d.Summary = &summary
		d.KeyPoints = append([]string{}, fields.KeyPoints...)
		return nil
	})
	return err
}

// ClearSummary nulls the AI fields.
func (r *MemoryRepo) ClearSummary(ctx context.Context, documentID string) error {
	_, err := r.update(ctx, documentID, func(d *Document) error {
		d.Title = nil
		d.Summary = nil
		d.KeyPoints = nil
		return nil
	})
	return err
}

// ApplyJobResult merges a job result into metadata and marks the document ready.
func (r *MemoryRepo) ApplyJobResult(ctx context.Context, documentID string, jobType JobType, result map[string]any, text *string) error {
	_, err := r.update(ctx, documentID, func(d *Document) error {
		if d.Metadata == nil {
			d.Metadata = map[string]any{}
		}
		d.Metadata[string(jobType)] = result
		if text != nil && d.Text() == "" {
			v := *text
			d.ParsedText = &v
		}
		d.Status = StatusReady
		return nil
	})
	return err
}

// Delete removes a document.
func (r *MemoryRepo) Delete(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[documentID]; !ok {
		return ErrNotFound
	}
	delete(r.data, documentID)
	return nil
}

func (r *MemoryRepo) update(ctx context.Context, documentID string, fn func(*Document) error) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[documentID]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc = doc.clone()
	if err := fn(&doc); err != nil {
		return Document{}, err
	}
	doc.Version++
	doc.UpdatedAt = r.now()
	r.data[documentID] = doc
	return doc.clone(), nil
}

var _ Repo = (*MemoryRepo)(nil)
