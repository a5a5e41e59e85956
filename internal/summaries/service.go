package summaries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"studyhub-backend/internal/documents"
	"studyhub-backend/internal/extract"
	"studyhub-backend/internal/llm"
	"studyhub-backend/internal/shared/metrics"
	"studyhub-backend/internal/shared/storage/object"
	"studyhub-backend/internal/shared/telemetry"
	"studyhub-backend/internal/shared/tracing"
	"studyhub-backend/internal/usage"
)

const defaultFixConcurrency = 4

// Quota gates AI calls per user.
type Quota interface {
	CanConsume(ctx context.Context, userID string, n int) (bool, usage.Usage, error)
	Consume(ctx context.Context, userID string, n int) (usage.Usage, error)
}

// Service produces document summaries and chat answers.
type Service struct {
	Docs           documents.Repo
	Store          object.ObjectStore
	LLM            llm.Client
	Quota          Quota
	FixConcurrency int
}

// Result is a summary as returned to clients.
type Result struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"keyPoints"`
	Cached    bool     `json:"cached"`
}

// ChatInfo tells the UI whether a document can be chatted with.
type ChatInfo struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	CanChat    bool             `json:"canChat"`
	Status     documents.Status `json:"status"`
	HasContent bool             `json:"hasContent"`
}

// ChatReply is one stateless chat answer.
type ChatReply struct {
	Response      string
	DocumentTitle string
}

type FixError struct {
	DocumentID string `json:"documentId"`
	Error      string `json:"error"`
}

// FixResult reports a parsed-text repair run.
type FixResult struct {
	UpdatedCount int        `json:"updatedCount"`
	TotalFound   int        `json:"totalFound"`
	Errors       []FixError `json:"errors,omitempty"`
}

// GenerateSummary returns the stored summary when all three fields are
// present, otherwise asks the LLM and persists the answer.
func (s *Service) GenerateSummary(ctx context.Context, userID, documentID string) (Result, error) {
	doc, err := s.owned(ctx, userID, documentID)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(doc.Text()) == "" {
		return Result{}, ErrNoContent
	}
	if doc.HasSummary() {
		metrics.IncSummaryCache(true)
		return Result{
			Title:     *doc.Title,
			Summary:   *doc.Summary,
			KeyPoints: append([]string{}, doc.KeyPoints...),
			Cached:    true,
		}, nil
	}
	metrics.IncSummaryCache(false)
	return s.summarize(ctx, userID, doc)
}

// RegenerateSummary ignores the cache. Placeholder text is re-extracted from
// the stored file first.
func (s *Service) RegenerateSummary(ctx context.Context, userID, documentID string) (Result, error) {
	doc, err := s.owned(ctx, userID, documentID)
	if err != nil {
		return Result{}, err
	}
	if documents.IsPlaceholderText(doc.Text()) {
		text, err := s.reextract(ctx, doc)
		switch {
		case err == nil:
			doc.ParsedText = &text
		case strings.TrimSpace(doc.Text()) == "":
			return Result{}, fmt.Errorf("%w: %v", ErrNoContent, err)
		default:
			telemetry.Warn("summary.reextract_failed", map[string]any{
				"document_id": doc.ID,
				"error":       err.Error(),
			})
		}
	}
	if strings.TrimSpace(doc.Text()) == "" {
		return Result{}, ErrNoContent
	}
	return s.summarize(ctx, userID, doc)
}

// ClearCache drops the stored summary fields.
func (s *Service) ClearCache(ctx context.Context, userID, documentID string) error {
	if _, err := s.owned(ctx, userID, documentID); err != nil {
		return err
	}
	if err := s.Docs.ClearSummary(ctx, documentID); err != nil {
		return fmt.Errorf("clear summary: %w", err)
	}
	telemetry.Info("summary.cleared", map[string]any{"document_id": documentID, "user_id": userID})
	return nil
}

// ChatInfo describes chat availability for a document.
func (s *Service) ChatInfo(ctx context.Context, userID, documentID string) (ChatInfo, error) {
	doc, err := s.owned(ctx, userID, documentID)
	if err != nil {
		return ChatInfo{}, err
	}
	hasContent := strings.TrimSpace(doc.Text()) != ""
	return ChatInfo{
		ID:         doc.ID,
		Title:      displayTitle(doc),
		CanChat:    hasContent && doc.Status == documents.StatusReady,
		Status:     doc.Status,
		HasContent: hasContent,
	}, nil
}

// Chat answers one question grounded in the document text. There is no
// conversation memory.
func (s *Service) Chat(ctx context.Context, userID, documentID, message string) (ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ChatReply{}, ErrMessageRequired
	}
	if utf8.RuneCountInString(message) > MaxChatMessageLength {
		return ChatReply{}, ErrMessageTooLong
	}
	doc, err := s.owned(ctx, userID, documentID)
	if err != nil {
		return ChatReply{}, err
	}
	if strings.TrimSpace(doc.Text()) == "" {
		return ChatReply{}, ErrNoContent
	}
	if err := s.checkQuota(ctx, userID); err != nil {
		return ChatReply{}, err
	}

	ctx, end := tracing.Start(ctx, "summaries.chat")
	defer end()
	answer, err := s.LLM.GenerateChatbotResponse(ctx, doc.Text(), message)
	if err != nil {
		telemetry.Error("chat.failed", map[string]any{"document_id": doc.ID, "error": err.Error()})
		return ChatReply{}, fmt.Errorf("generate chat response: %w", err)
	}
	s.consume(ctx, userID)
	return ChatReply{Response: answer, DocumentTitle: displayTitle(doc)}, nil
}

// FixParsedText re-extracts text for the user's ready documents whose text
// is missing or a placeholder. documentID narrows the run to one document.
func (s *Service) FixParsedText(ctx context.Context, userID, documentID string) (FixResult, error) {
	var candidates []documents.Document
	if strings.TrimSpace(documentID) != "" {
		doc, err := s.owned(ctx, userID, documentID)
		if err != nil {
			return FixResult{}, err
		}
		candidates = []documents.Document{doc}
	} else {
		ready, err := s.Docs.ListByUserAndStatus(ctx, userID, documents.StatusReady)
		if err != nil {
			return FixResult{}, fmt.Errorf("list documents: %w", err)
		}
		candidates = ready
	}

	var broken []documents.Document
	for _, doc := range candidates {
		if documents.IsPlaceholderText(doc.Text()) {
			broken = append(broken, doc)
		}
	}

	res := FixResult{TotalFound: len(broken)}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	limit := s.FixConcurrency
	if limit <= 0 {
		limit = defaultFixConcurrency
	}
	g.SetLimit(limit)
	for _, doc := range broken {
		g.Go(func() error {
			err := s.fixOne(gctx, doc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Errors = append(res.Errors, FixError{DocumentID: doc.ID, Error: err.Error()})
				return nil
			}
			res.UpdatedCount++
			return nil
		})
	}
	_ = g.Wait()

	telemetry.Info("documents.fix_parsed_text", map[string]any{
		"user_id":       userID,
		"total_found":   res.TotalFound,
		"updated_count": res.UpdatedCount,
		"errors":        len(res.Errors),
	})
	return res, nil
}

func (s *Service) fixOne(ctx context.Context, doc documents.Document) error {
	if _, err := s.reextract(ctx, doc); err != nil {
		return err
	}
	// A summary built from placeholder text is stale.
	if doc.Title != nil || doc.Summary != nil {
		if err := s.Docs.ClearSummary(ctx, doc.ID); err != nil {
			telemetry.Warn("summary.clear_failed", map[string]any{"document_id": doc.ID, "error": err.Error()})
		}
	}
	return nil
}

// reextract pulls the real text out of the stored file and persists it.
func (s *Service) reextract(ctx context.Context, doc documents.Document) (string, error) {
	if s.Store == nil {
		return "", errors.New("object store not configured")
	}
	if !extract.Supported(doc.FileType, doc.OriginalFilename) {
		return "", fmt.Errorf("%w: %s", extract.ErrUnsupported, doc.FileType)
	}
	text, err := extract.ExtractText(ctx, s.Store, doc.StoragePath, doc.FileType, doc.OriginalFilename)
	if err != nil {
		return "", err
	}
	if err := s.Docs.SetParsedText(ctx, doc.ID, text); err != nil {
		return "", fmt.Errorf("save parsed text: %w", err)
	}
	telemetry.Info("document.text_reextracted", map[string]any{
		"document_id": doc.ID,
		"length":      utf8.RuneCountInString(text),
	})
	return text, nil
}

func (s *Service) summarize(ctx context.Context, userID string, doc documents.Document) (Result, error) {
	if err := s.checkQuota(ctx, userID); err != nil {
		return Result{}, err
	}

	ctx, end := tracing.Start(ctx, "summaries.generate")
	defer end()
	sum, err := s.LLM.GenerateDocumentSummary(ctx, doc.Text())
	if err != nil {
		telemetry.Error("summary.failed", map[string]any{"document_id": doc.ID, "error": err.Error()})
		return Result{}, fmt.Errorf("generate summary: %w", err)
	}
	s.consume(ctx, userID)

	keyPoints := sum.KeyPoints
	if keyPoints == nil {
		keyPoints = []string{}
	}
	fields := documents.SummaryFields{Title: sum.Title, Summary: sum.Summary, KeyPoints: keyPoints}
	if err := s.Docs.SetSummary(ctx, doc.ID, fields); err != nil {
		telemetry.Warn("summary.persist_failed", map[string]any{"document_id": doc.ID, "error": err.Error()})
	}
	telemetry.Info("summary.generated", map[string]any{
		"document_id": doc.ID,
		"key_points":  len(keyPoints),
	})
	return Result{Title: sum.Title, Summary: sum.Summary, KeyPoints: keyPoints}, nil
}

func (s *Service) checkQuota(ctx context.Context, userID string) error {
	if s.Quota == nil {
		return nil
	}
	ok, _, err := s.Quota.CanConsume(ctx, userID, 1)
	if err != nil {
		return fmt.Errorf("check usage: %w", err)
	}
	if !ok {
		return usage.ErrLimitReached
	}
	return nil
}

func (s *Service) consume(ctx context.Context, userID string) {
	if s.Quota == nil {
		return
	}
	if _, err := s.Quota.Consume(ctx, userID, 1); err != nil {
		telemetry.Warn("usage.consume_failed", map[string]any{"user_id": userID, "error": err.Error()})
	}
}

func (s *Service) owned(ctx context.Context, userID, documentID string) (documents.Document, error) {
	doc, err := s.Docs.GetByID(ctx, documentID)
	if err != nil {
		return documents.Document{}, err
	}
	if doc.UserID != userID {
		return documents.Document{}, documents.ErrNotFound
	}
	return doc, nil
}

func displayTitle(doc documents.Document) string {
	if doc.Title != nil && strings.TrimSpace(*doc.Title) != "" {
		return *doc.Title
	}
	if doc.OriginalFilename != "" {
		return doc.OriginalFilename
	}
	return doc.Filename
}
