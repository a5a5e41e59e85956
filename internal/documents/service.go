package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyhub-backend/internal/extract"
	"studyhub-backend/internal/shared/metrics"
	"studyhub-backend/internal/shared/storage/object"
	"studyhub-backend/internal/shared/telemetry"
)

const defaultSignedURLTTL = 15 * time.Minute

// JobEnqueuer creates a pending processing job for a document and starts it.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, documentID string, jobType JobType) (string, error)
}

// Service contains business logic for the document lifecycle.
type Service struct {
	Store        object.ObjectStore
	Repo         Repo
	Jobs         JobEnqueuer
	SignedURLTTL time.Duration
	Now          func() time.Time
}

// CreateInput carries the fields of a newly uploaded file.
type CreateInput struct {
	UserID           string
	Filename         string
	OriginalFilename string
	FileType         string
	FileSize         int64
	StoragePath      string
}

// ReprocessResult describes the job started by Reprocess.
type ReprocessResult struct {
	DocumentID string
	JobID      string
	JobType    JobType
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Create inserts a document in status uploading with zero progress.
func (s *Service) Create(ctx context.Context, in CreateInput) (Document, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.Filename = strings.TrimSpace(in.Filename)
	in.StoragePath = strings.TrimSpace(in.StoragePath)
	if in.UserID == "" || in.Filename == "" || in.StoragePath == "" || in.FileSize < 0 {
		return Document{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.OriginalFilename) == "" {
		in.OriginalFilename = in.Filename
	}
	if strings.TrimSpace(in.FileType) == "" {
		in.FileType = "application/octet-stream"
	}

	now := s.now()
	doc := Document{
		ID:               uuid.NewString(),
		UserID:           in.UserID,
		Filename:         in.Filename,
		OriginalFilename: in.OriginalFilename,
		FileType:         in.FileType,
		FileSize:         in.FileSize,
		StoragePath:      in.StoragePath,
		Status:           StatusUploading,
		UploadProgress:   0,
		Metadata:         map[string]any{},
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("create document: %w", err)
	}
	metrics.IncDocumentCreated()
	telemetry.Info("document.created", map[string]any{
		"document_id": doc.ID,
		"user_id":     doc.UserID,
		"file_type":   doc.FileType,
		"file_size":   doc.FileSize,
	})
	return doc, nil
}

// Upload streams the file into the object store, records the document and
// completes the upload.
func (s *Service) Upload(ctx context.Context, userID, fileName, contentType string, r io.Reader) (Document, error) {
	if strings.TrimSpace(fileName) == "" || strings.TrimSpace(userID) == "" {
		return Document{}, ErrInvalidInput
	}

	storageKey, size, sniffed, err := s.Store.Save(ctx, userID, fileName, r)
	if err != nil {
		return Document{}, fmt.Errorf("store upload: %w", err)
	}
	fileType := strings.TrimSpace(contentType)
	if fileType == "" || fileType == "application/octet-stream" {
		fileType = sniffed
	}

	doc, err := s.Create(ctx, CreateInput{
		UserID:           userID,
		Filename:         path.Base(storageKey),
		OriginalFilename: fileName,
		FileType:         fileType,
		FileSize:         size,
		StoragePath:      storageKey,
	})
	if err != nil {
		if delErr := s.Store.Delete(ctx, storageKey); delErr != nil {
			telemetry.Warn("document.orphan_blob", map[string]any{"storage_path": storageKey, "error": delErr.Error()})
		}
		return Document{}, err
	}
	return s.CompleteUpload(ctx, userID, doc.ID)
}

// Get returns a document owned by userID.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, error) {
	doc, err := s.Repo.GetByID(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	if doc.UserID != userID {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// List returns a page of the user's documents, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// UpdateProgress is a partial update of progress and optionally status.
// Progress is not required to be monotonic.
func (s *Service) UpdateProgress(ctx context.Context, userID, documentID string, progress int, status *Status) (Document, error) {
	if progress < 0 || progress > 100 {
		return Document{}, ErrInvalidInput
	}
	if _, err := s.Get(ctx, userID, documentID); err != nil {
		return Document{}, err
	}
	doc, err := s.Repo.UpdateProgress(ctx, documentID, progress, status)
	if err != nil {
		return Document{}, err
	}
	if status != nil {
		metrics.IncDocumentStatus(string(*status))
	}
	return doc, nil
}

// CompleteUpload marks the upload finished and enqueues one job per
// applicable job type. The document moves to processing when at least one
// job is enqueued, stays uploaded when none apply, and fails when enqueueing
// fails.
func (s *Service) CompleteUpload(ctx context.Context, userID, documentID string) (Document, error) {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return Document{}, err
	}
	if doc.Status != StatusUploading && doc.Status != StatusUploaded {
		return Document{}, ErrInvalidState
	}

	uploaded := StatusUploaded
	doc, err = s.Repo.UpdateProgress(ctx, documentID, 100, &uploaded)
	if err != nil {
		return Document{}, err
	}
	metrics.IncDocumentStatus(string(StatusUploaded))

	jobTypes := JobTypesFor(doc.FileType)
	if len(jobTypes) == 0 || s.Jobs == nil {
		telemetry.Info("document.no_jobs", map[string]any{"document_id": documentID, "file_type": doc.FileType})
		return doc, nil
	}

	if err := s.Repo.UpdateStatus(ctx, documentID, StatusProcessing); err != nil {
		return Document{}, err
	}
	for _, jt := range jobTypes {
		if _, err := s.Jobs.Enqueue(ctx, documentID, jt); err != nil {
			s.markFailed(ctx, documentID, err)
			return Document{}, fmt.Errorf("%w: %s: %v", ErrEnqueueFailed, jt, err)
		}
	}
	metrics.IncDocumentStatus(string(StatusProcessing))
	telemetry.Info("document.processing", map[string]any{
		"document_id": documentID,
		"job_types":   jobTypes,
	})
	return s.Repo.GetByID(ctx, documentID)
}

// Reprocess clears parsed text and AI fields, sets status processing and
// enqueues exactly one job of the primary type for the document's MIME type.
func (s *Service) Reprocess(ctx context.Context, userID, documentID string) (ReprocessResult, error) {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return ReprocessResult{}, err
	}
	if doc.Status == StatusUploading {
		return ReprocessResult{}, ErrInvalidState
	}
	if s.Jobs == nil {
		return ReprocessResult{}, ErrEnqueueFailed
	}

	if _, err := s.Repo.ResetForReprocess(ctx, documentID, doc.Version); err != nil {
		return ReprocessResult{}, err
	}
	metrics.IncDocumentStatus(string(StatusProcessing))

	jobType := PrimaryJobType(doc.FileType)
	jobID, err := s.Jobs.Enqueue(ctx, documentID, jobType)
	if err != nil {
		s.markFailed(ctx, documentID, err)
		return ReprocessResult{}, fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}
	telemetry.Info("document.reprocess", map[string]any{
		"document_id": documentID,
		"job_id":      jobID,
		"job_type":    jobType,
	})
	return ReprocessResult{DocumentID: documentID, JobID: jobID, JobType: jobType}, nil
}

// Delete removes the stored file, then the record. A storage failure is
// logged and does not stop the record delete.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if s.Store != nil && doc.StoragePath != "" {
		for _, key := range []string{doc.StoragePath, doc.StoragePath + extract.DerivedSuffix} {
			if err := s.Store.Delete(ctx, key); err != nil && !errors.Is(err, object.ErrNotFound) {
				telemetry.Warn("document.storage_delete_failed", map[string]any{
					"document_id":  documentID,
					"storage_path": key,
					"error":        err.Error(),
				})
			}
		}
	}
	if err := s.Repo.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	telemetry.Info("document.deleted", map[string]any{"document_id": documentID, "user_id": userID})
	return nil
}

// SignedURL returns a short-lived download link for the stored file.
func (s *Service) SignedURL(ctx context.Context, userID, documentID string) (string, time.Time, error) {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return "", time.Time{}, err
	}
	ttl := s.SignedURLTTL
	if ttl <= 0 {
		ttl = defaultSignedURLTTL
	}
	url, err := s.Store.SignURL(ctx, doc.StoragePath, ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	return url, s.now().Add(ttl), nil
}

func (s *Service) markFailed(ctx context.Context, documentID string, cause error) {
	telemetry.Error("document.enqueue_failed", map[string]any{
		"document_id": documentID,
		"error":       cause.Error(),
	})
	if err := s.Repo.UpdateStatus(ctx, documentID, StatusFailed); err != nil {
		telemetry.Error("document.mark_failed", map[string]any{"document_id": documentID, "error": err.Error()})
		return
	}
	metrics.IncDocumentStatus(string(StatusFailed))
}
