package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"studyhub-backend/internal/llm"
	"studyhub-backend/internal/shared/telemetry"
)

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	api   *goopenai.Client
	model string
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	cfg := goopenai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); base != "" {
		cfg.BaseURL = base
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{api: goopenai.NewClientWithConfig(cfg), model: model}, nil
}

func (c *Client) GenerateDocumentSummary(ctx context.Context, text string) (llm.Summary, error) {
	req := c.request(
		goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: llm.SummarySystemPrompt()},
		goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: llm.SummaryUserPrompt(text)},
	)
	req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}

	content, err := c.complete(ctx, req, "summary")
	if err != nil {
		return llm.Summary{}, err
	}
	return llm.ParseSummary(content)
}

func (c *Client) GenerateChatbotResponse(ctx context.Context, documentText, message string) (string, error) {
	req := c.request(
		goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: llm.ChatSystemPrompt(documentText)},
		goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: message},
	)
	return c.complete(ctx, req, "chat")
}

func (c *Client) request(messages ...goopenai.ChatCompletionMessage) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	// gpt-5 models only accept the default temperature
	if !isGPT5(c.model) {
		req.Temperature = 0.2
	}
	return req
}

func (c *Client) complete(ctx context.Context, req goopenai.ChatCompletionRequest, op string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	logUsage(c.model, op, resp.Usage)
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", llm.ErrMalformedResponse)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty content", llm.ErrMalformedResponse)
	}
	return content, nil
}

// classify attaches the HTTP status so the retry policy can act on it.
func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &llm.StatusError{Status: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &llm.StatusError{Status: reqErr.HTTPStatusCode, Err: err}
	}
	return err
}

func logUsage(model, op string, usage goopenai.Usage) {
	telemetry.Info("llm.response", map[string]any{
		"model":             model,
		"operation":         op,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
	})
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var _ llm.Client = (*Client)(nil)
