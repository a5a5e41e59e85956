package processing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"studyhub-backend/internal/documents"
	"studyhub-backend/internal/shared/metrics"
	"studyhub-backend/internal/shared/telemetry"
)

const debugPreviewLength = 500

// Service creates and queries processing jobs.
type Service struct {
	Jobs       Repo
	Docs       documents.Repo
	Dispatcher Dispatcher
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Enqueue creates a pending job and dispatches it. A dispatch error marks
// the job failed and is returned to the caller.
func (s *Service) Enqueue(ctx context.Context, documentID string, jobType documents.JobType) (string, error) {
	if _, ok := documents.ParseJobType(string(jobType)); !ok {
		return "", ErrInvalidJobType
	}
	job := Job{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		JobType:    jobType,
		Status:     StatusPending,
		CreatedAt:  s.now(),
	}
	if err := s.Jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	metrics.IncJob(string(jobType), string(StatusPending))

	if s.Dispatcher != nil {
		if err := s.Dispatcher.Dispatch(ctx, job); err != nil {
			if failErr := s.Jobs.Fail(ctx, job.ID, err.Error(), s.now()); failErr != nil {
				telemetry.Error("job.mark_failed", map[string]any{"job_id": job.ID, "error": failErr})
			}
			metrics.IncJob(string(jobType), string(StatusFailed))
			return "", fmt.Errorf("dispatch job: %w", err)
		}
	}
	telemetry.Info("job.enqueued", map[string]any{
		"job_id":      job.ID,
		"document_id": documentID,
		"job_type":    jobType,
		"request_id":  telemetry.RequestIDFromContext(ctx),
	})
	return job.ID, nil
}

// Process starts a job of rawType on a document owned by userID and moves
// the document to processing.
func (s *Service) Process(ctx context.Context, userID, documentID, rawType string) (Job, error) {
	jobType, ok := documents.ParseJobType(rawType)
	if !ok {
		return Job{}, ErrInvalidJobType
	}
	doc, err := s.ownedDocument(ctx, userID, documentID)
	if err != nil {
		return Job{}, err
	}
	if err := s.Docs.UpdateStatus(ctx, doc.ID, documents.StatusProcessing); err != nil {
		return Job{}, err
	}
	metrics.IncDocumentStatus(string(documents.StatusProcessing))

	jobID, err := s.Enqueue(ctx, doc.ID, jobType)
	if err != nil {
		if upErr := s.Docs.UpdateStatus(ctx, doc.ID, documents.StatusFailed); upErr != nil {
			telemetry.Error("document.mark_failed", map[string]any{"document_id": doc.ID, "error": upErr})
		}
		return Job{}, err
	}
	return s.Jobs.GetByID(ctx, jobID)
}

// ListForDocument returns a document's jobs for polling.
func (s *Service) ListForDocument(ctx context.Context, userID, documentID string) ([]Job, error) {
	if _, err := s.ownedDocument(ctx, userID, documentID); err != nil {
		return nil, err
	}
	return s.Jobs.ListByDocument(ctx, documentID)
}

// DebugInfo is the full document row plus flags derived from its text.
type DebugInfo struct {
	Document          documents.DocumentResponse `json:"document"`
	ParsedText        *string                    `json:"parsedText"`
	DocumentID        string                     `json:"documentId"`
	Status            string                     `json:"status"`
	FileType          string                     `json:"fileType"`
	HasParsedText     bool                       `json:"hasParsedText"`
	ParsedTextLength  int                        `json:"parsedTextLength"`
	ParsedTextPreview string                     `json:"parsedTextPreview"`
	IsPlaceholder     bool                       `json:"isPlaceholder"`
	HasSummary        bool                       `json:"hasSummary"`
	Metadata          map[string]any             `json:"metadata"`
	Jobs              []JobResponse              `json:"jobs"`
}

// Debug loads the document and its jobs concurrently.
func (s *Service) Debug(ctx context.Context, userID, documentID string) (DebugInfo, error) {
	var doc documents.Document
	var jobs []Job

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.ownedDocument(gctx, userID, documentID)
		doc = d
		return err
	})
	g.Go(func() error {
		j, err := s.Jobs.ListByDocument(gctx, documentID)
		jobs = j
		return err
	})
	if err := g.Wait(); err != nil {
		return DebugInfo{}, err
	}

	text := doc.Text()
	preview := []rune(text)
	if len(preview) > debugPreviewLength {
		preview = preview[:debugPreviewLength]
	}
	info := DebugInfo{
		Document:          documents.ToResponse(doc),
		ParsedText:        doc.ParsedText,
		DocumentID:        doc.ID,
		Status:            string(doc.Status),
		FileType:          doc.FileType,
		HasParsedText:     strings.TrimSpace(text) != "",
		ParsedTextLength:  len([]rune(text)),
		ParsedTextPreview: string(preview),
		IsPlaceholder:     documents.IsPlaceholderText(text),
		HasSummary:        doc.HasSummary(),
		Metadata:          doc.Metadata,
		Jobs:              make([]JobResponse, 0, len(jobs)),
	}
	for _, j := range jobs {
		info.Jobs = append(info.Jobs, ToResponse(j))
	}
	return info, nil
}

func (s *Service) ownedDocument(ctx context.Context, userID, documentID string) (documents.Document, error) {
	doc, err := s.Docs.GetByID(ctx, documentID)
	if err != nil {
		return documents.Document{}, err
	}
	if doc.UserID != userID {
		return documents.Document{}, documents.ErrNotFound
	}
	return doc, nil
}

var _ documents.JobEnqueuer = (*Service)(nil)
