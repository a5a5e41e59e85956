package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studyhub-backend/internal/shared/metrics"
	"studyhub-backend/internal/shared/telemetry"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1000 * time.Millisecond
	DefaultMaxDelay    = 8000 * time.Millisecond
)

// RetryError is returned once the attempt budget is spent.
type RetryError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// RetryingClient wraps a provider with exponential backoff.
type RetryingClient struct {
	Base        Client
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
}

// NewRetryingClient wraps base with the default policy.
func NewRetryingClient(base Client) *RetryingClient {
	return &RetryingClient{
		Base:        base,
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

func (r *RetryingClient) GenerateDocumentSummary(ctx context.Context, text string) (Summary, error) {
	var out Summary
	err := r.do(ctx, "summary", func(ctx context.Context) error {
		s, err := r.Base.GenerateDocumentSummary(ctx, text)
		out = s
		return err
	})
	return out, err
}

func (r *RetryingClient) GenerateChatbotResponse(ctx context.Context, documentText, message string) (string, error) {
	var out string
	err := r.do(ctx, "chat", func(ctx context.Context) error {
		s, err := r.Base.GenerateChatbotResponse(ctx, documentText, message)
		out = s
		return err
	})
	return out, err
}

// Delay returns the wait before the attempt after attempt n (1-based).
// A rate-limited attempt waits twice as long.
func (r *RetryingClient) Delay(attempt int, rateLimited bool) time.Duration {
	base, max := r.BaseDelay, r.MaxDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if max <= 0 {
		max = DefaultMaxDelay
	}
	d := base
	for i := 1; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	if rateLimited {
		d *= 2
	}
	return d
}

func (r *RetryingClient) do(ctx context.Context, op string, call func(context.Context) error) error {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := call(ctx)
		if err == nil {
			metrics.IncLLMAttempt(op, "ok")
			return nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			metrics.IncLLMAttempt(op, "error")
			return err
		}
		if attempt == attempts {
			metrics.IncLLMAttempt(op, "error")
			break
		}

		delay := r.Delay(attempt, errors.Is(err, ErrRateLimited))
		metrics.IncLLMAttempt(op, "retry")
		telemetry.Warn("llm.retry", map[string]any{
			"operation":  op,
			"attempt":    attempt,
			"delay_ms":   delay.Milliseconds(),
			"error":      err,
			"request_id": telemetry.RequestIDFromContext(ctx),
		})
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return &RetryError{Op: op, Attempts: attempts, Err: lastErr}
}

func (r *RetryingClient) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
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

func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrAuthentication),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrMalformedResponse),
		errors.Is(err, ErrNotConfigured),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

var _ Client = (*RetryingClient)(nil)
