package processing

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Job
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Job)}
}

func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[job.ID] = job.clone()
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.data[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job.clone(), nil
}

// ListByDocument returns a document's jobs, oldest first.
func (r *MemoryRepo) ListByDocument(ctx context.Context, documentID string) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Job, 0)
	for _, j := range r.data {
		if j.DocumentID == documentID {
			out = append(out, j.clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) Claim(ctx context.Context, jobID string, startedAt time.Time) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.data[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	if job.Status != StatusPending {
		return Job{}, ErrAlreadyClaimed
	}
	job.Status = StatusProcessing
	job.Progress = 50
	job.StartedAt = &startedAt
	r.data[jobID] = job
	return job.clone(), nil
}

func (r *MemoryRepo) Complete(ctx context.Context, jobID string, result map[string]any, completedAt time.Time) error {
	return r.update(ctx, jobID, func(j *Job) {
		j.Status = StatusCompleted
		j.Progress = 100
		j.Result = result
		j.CompletedAt = &completedAt
	})
}

func (r *MemoryRepo) Fail(ctx context.Context, jobID, message string, completedAt time.Time) error {
	return r.update(ctx, jobID, func(j *Job) {
		j.Status = StatusFailed
		j.ErrorMessage = &message
		j.CompletedAt = &completedAt
	})
}

func (r *MemoryRepo) update(ctx context.Context, jobID string, fn func(*Job)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.data[jobID]
	if !ok {
		return ErrNotFound
	}
	fn(&job)
	r.data[jobID] = job.clone()
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
