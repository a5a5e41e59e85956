package processing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"studyhub-backend/internal/documents"
	"studyhub-backend/internal/shared/metrics"
	"studyhub-backend/internal/shared/telemetry"
	"studyhub-backend/internal/shared/tracing"
)

const DefaultDelay = 2500 * time.Millisecond

// Simulator runs a job by waiting a fixed delay and writing mock results.
type Simulator struct {
	Jobs  Repo
	Docs  documents.Repo
	Delay time.Duration
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

func (s *Simulator) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Simulator) sleep(ctx context.Context) error {
	d := s.Delay
	if d < 0 {
		d = 0
	}
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	if d == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run executes one job to completion. A job that is no longer pending is
// skipped so duplicate deliveries are harmless.
func (s *Simulator) Run(ctx context.Context, jobID string) (err error) {
	ctx, end := tracing.Start(ctx, "processing.run")
	defer end()

	var job Job
	var startedAt time.Time
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.fail(ctx, job, err, startedAt)
		}
	}()

	if err := s.sleep(ctx); err != nil {
		return err
	}

	startedAt = s.now()
	job, err = s.Jobs.Claim(ctx, jobID, startedAt)
	if err != nil {
		if errors.Is(err, ErrAlreadyClaimed) {
			telemetry.Info("job.skip_claimed", map[string]any{
				"job_id":     jobID,
				"request_id": telemetry.RequestIDFromContext(ctx),
			})
			return nil
		}
		return err
	}
	metrics.IncJob(string(job.JobType), string(StatusProcessing))
	telemetry.Info("job.processing", map[string]any{
		"job_id":      job.ID,
		"document_id": job.DocumentID,
		"job_type":    job.JobType,
		"request_id":  telemetry.RequestIDFromContext(ctx),
	})

	if err := s.sleep(ctx); err != nil {
		s.fail(ctx, job, err, startedAt)
		return err
	}

	doc, err := s.Docs.GetByID(ctx, job.DocumentID)
	if err != nil {
		s.fail(ctx, job, fmt.Errorf("load document: %w", err), startedAt)
		return err
	}

	result, text := MockResult(job.JobType, doc)
	completedAt := s.now()
	if err := s.Jobs.Complete(ctx, job.ID, result, completedAt); err != nil {
		s.fail(ctx, job, fmt.Errorf("complete job: %w", err), startedAt)
		return err
	}
	if err := s.Docs.ApplyJobResult(ctx, job.DocumentID, job.JobType, result, text); err != nil {
		s.fail(ctx, job, fmt.Errorf("apply result: %w", err), startedAt)
		return err
	}

	metrics.IncJob(string(job.JobType), string(StatusCompleted))
	metrics.ObserveJobDuration(string(job.JobType), string(StatusCompleted), completedAt.Sub(startedAt))
	metrics.IncDocumentStatus(string(documents.StatusReady))
	telemetry.Info("job.completed", map[string]any{
		"job_id":            job.ID,
		"document_id":       job.DocumentID,
		"job_type":          job.JobType,
		"status_transition": "processing->ready",
		"request_id":        telemetry.RequestIDFromContext(ctx),
	})
	return nil
}

func (s *Simulator) fail(ctx context.Context, job Job, cause error, startedAt time.Time) {
	if job.ID == "" {
		telemetry.Error("job.failed_before_claim", map[string]any{"error": cause})
		return
	}
	// the request context may already be cancelled
	bg := context.WithoutCancel(ctx)
	now := s.now()
	fields := map[string]any{
		"job_id":      job.ID,
		"document_id": job.DocumentID,
		"job_type":    job.JobType,
		"error":       cause,
		"request_id":  telemetry.RequestIDFromContext(ctx),
	}
	telemetry.Error("job.failed", fields)
	if err := s.Jobs.Fail(bg, job.ID, cause.Error(), now); err != nil {
		telemetry.Error("job.mark_failed", map[string]any{"job_id": job.ID, "error": err})
	}
	if err := s.Docs.UpdateStatus(bg, job.DocumentID, documents.StatusFailed); err != nil {
		telemetry.Error("document.mark_failed", map[string]any{"document_id": job.DocumentID, "error": err})
	} else {
		metrics.IncDocumentStatus(string(documents.StatusFailed))
	}
	metrics.IncJob(string(job.JobType), string(StatusFailed))
	if !startedAt.IsZero() {
		metrics.ObserveJobDuration(string(job.JobType), string(StatusFailed), now.Sub(startedAt))
	}
}

// MockResult builds the job-type specific result map and, for text
// producing job types, the extracted text.
func MockResult(jobType documents.JobType, doc documents.Document) (map[string]any, *string) {
	name := doc.OriginalFilename
	if strings.TrimSpace(name) == "" {
		name = doc.Filename
	}
	switch jobType {
	case documents.JobOCR:
		text := fmt.Sprintf("%s OCR text recognized from %s. Heading, body paragraphs and figure captions were detected on each page.", documents.SimulatedMarker, name)
		return map[string]any{
			"text":       text,
			"confidence": 0.95,
			"pages":      3,
			"language":   "en",
		}, &text
	case documents.JobTextExtraction:
		text := fmt.Sprintf("%s Text extracted from %s. The document contains several sections with headings and paragraphs.", documents.SimulatedMarker, name)
		return map[string]any{
			"text":           text,
			"wordCount":      len(strings.Fields(text)),
			"characterCount": len([]rune(text)),
		}, &text
	case documents.JobTranscription:
		text := fmt.Sprintf("%s Transcript of %s. Speaker 1 introduces the topic and speaker 2 follows up with questions.", documents.SimulatedMarker, name)
		return map[string]any{
			"text":            text,
			"durationSeconds": 180,
			"speakers":        2,
		}, &text
	case documents.JobThumbnail:
		return map[string]any{
			"thumbnailUrl": "/thumbnails/" + doc.ID + ".png",
			"width":        320,
			"height":       240,
		}, nil
	default:
		return map[string]any{}, nil
	}
}
