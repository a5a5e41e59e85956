package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Client abstracts LLM providers for document summaries and chat.
type Client interface {
	GenerateDocumentSummary(ctx context.Context, text string) (Summary, error)
	GenerateChatbotResponse(ctx context.Context, documentText, message string) (string, error)
}

// Summary is the structured result of summarizing a document.
type Summary struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"keyPoints"`
}

var (
	ErrAuthentication    = errors.New("llm authentication failed")
	ErrRateLimited       = errors.New("llm rate limited")
	ErrInvalidRequest    = errors.New("llm rejected request")
	ErrMalformedResponse = errors.New("llm response malformed")
	ErrNotConfigured     = errors.New("llm not configured")
)

// StatusError carries the HTTP status returned by a provider.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("llm http status %d", e.Status)
	}
	return fmt.Sprintf("llm http status %d: %v", e.Status, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Is maps provider statuses onto the package sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrInvalidRequest:
		return e.Status == http.StatusBadRequest
	}
	return false
}

// ParseSummary decodes a provider's JSON summary. Markdown code fences are
// tolerated; anything else that fails to decode is ErrMalformedResponse.
func ParseSummary(raw string) (Summary, error) {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var out Summary
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	out.Title = strings.TrimSpace(out.Title)
	out.Summary = strings.TrimSpace(out.Summary)
	if out.Title == "" || out.Summary == "" {
		return Summary{}, fmt.Errorf("%w: missing title or summary", ErrMalformedResponse)
	}
	points := make([]string, 0, len(out.KeyPoints))
	for _, p := range out.KeyPoints {
		if p = strings.TrimSpace(p); p != "" {
			points = append(points, p)
		}
	}
	out.KeyPoints = points
	return out, nil
}

// PlaceholderClient is used when no provider key is configured.
type PlaceholderClient struct{}

func (PlaceholderClient) GenerateDocumentSummary(ctx context.Context, text string) (Summary, error) {
	return Summary{}, ErrNotConfigured
}

func (PlaceholderClient) GenerateChatbotResponse(ctx context.Context, documentText, message string) (string, error) {
	return "", ErrNotConfigured
}
