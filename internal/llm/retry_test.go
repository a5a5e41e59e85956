package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	errs  []error
	calls int
}

func (s *scriptedClient) next() error {
	s.calls++
	if s.calls <= len(s.errs) {
		return s.errs[s.calls-1]
	}
	return nil
}

func (s *scriptedClient) GenerateDocumentSummary(ctx context.Context, text string) (Summary, error) {
	if err := s.next(); err != nil {
		return Summary{}, err
	}
	return Summary{Title: "T", Summary: "S", KeyPoints: []string{"k"}}, nil
}

func (s *scriptedClient) GenerateChatbotResponse(ctx context.Context, documentText, message string) (string, error) {
	if err := s.next(); err != nil {
		return "", err
	}
	return "answer", nil
}

func newTestRetry(base Client) (*RetryingClient, *[]time.Duration) {
	var delays []time.Duration
	r := NewRetryingClient(base)
	r.Sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return r, &delays
}

func TestRetryStopsAtThreeAttempts(t *testing.T) {
	boom := &StatusError{Status: http.StatusInternalServerError, Err: errors.New("upstream")}
	base := &scriptedClient{errs: []error{boom, boom, boom, boom}}
	r, delays := newTestRetry(base)

	_, err := r.GenerateDocumentSummary(context.Background(), "text")

	require.Error(t, err)
	assert.Equal(t, 3, base.calls)
	assert.Len(t, *delays, 2)

	var retryErr *RetryError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, 3, retryErr.Attempts)
	assert.Contains(t, err.Error(), "summary failed after 3 attempts")
}

func TestRetryBackoffIsExponential(t *testing.T) {
	boom := errors.New("connection reset")
	base := &scriptedClient{errs: []error{boom, boom}}
	r, delays := newTestRetry(base)

	out, err := r.GenerateChatbotResponse(context.Background(), "doc", "hi")

	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
}

func TestRateLimitBackoffIncreasesThenSucceeds(t *testing.T) {
	limited := &StatusError{Status: http.StatusTooManyRequests}
	base := &scriptedClient{errs: []error{limited, limited}}
	r, delays := newTestRetry(base)

	out, err := r.GenerateDocumentSummary(context.Background(), "text")

	require.NoError(t, err)
	assert.Equal(t, "T", out.Title)
	assert.Equal(t, 3, base.calls)
	require.Len(t, *delays, 2)
	assert.Greater(t, (*delays)[1], (*delays)[0])
	assert.Equal(t, 2*time.Second, (*delays)[0])
}

func TestRateLimitCountsAgainstBudget(t *testing.T) {
	limited := &StatusError{Status: http.StatusTooManyRequests}
	base := &scriptedClient{errs: []error{limited, limited, limited}}
	r, _ := newTestRetry(base)

	_, err := r.GenerateDocumentSummary(context.Background(), "text")

	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 3, base.calls)
}

func TestNonRetryableErrorsReturnImmediately(t *testing.T) {
	cases := map[string]error{
		"unauthorized": &StatusError{Status: http.StatusUnauthorized},
		"forbidden":    &StatusError{Status: http.StatusForbidden},
		"bad request":  &StatusError{Status: http.StatusBadRequest},
		"malformed":    ErrMalformedResponse,
	}
	for name, e := range cases {
		t.Run(name, func(t *testing.T) {
			base := &scriptedClient{errs: []error{e}}
			r, delays := newTestRetry(base)

			_, err := r.GenerateDocumentSummary(context.Background(), "text")

			require.Error(t, err)
			assert.Equal(t, 1, base.calls)
			assert.Empty(t, *delays)
		})
	}
}

func TestDelayIsCapped(t *testing.T) {
	r := NewRetryingClient(nil)
	assert.Equal(t, 8*time.Second, r.Delay(5, false))
	assert.Equal(t, 4*time.Second, r.Delay(3, false))
}

func TestStatusErrorSentinels(t *testing.T) {
	assert.ErrorIs(t, &StatusError{Status: 401}, ErrAuthentication)
	assert.ErrorIs(t, &StatusError{Status: 403}, ErrAuthentication)
	assert.ErrorIs(t, &StatusError{Status: 429}, ErrRateLimited)
	assert.ErrorIs(t, &StatusError{Status: 400}, ErrInvalidRequest)
	assert.NotErrorIs(t, &StatusError{Status: 500}, ErrRateLimited)
}

func TestParseSummary(t *testing.T) {
	s, err := ParseSummary("```json\n{\"title\":\" Cells \",\"summary\":\"About cells.\",\"keyPoints\":[\"a\",\" \",\"b\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Cells", s.Title)
	assert.Equal(t, []string{"a", "b"}, s.KeyPoints)

	_, err = ParseSummary("not json")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = ParseSummary(`{"title":"","summary":"x"}`)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
