package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub-backend/internal/llm"
	"studyhub-backend/internal/shared/config"
)

type cannedLLM struct{}

func (cannedLLM) GenerateDocumentSummary(ctx context.Context, text string) (llm.Summary, error) {
	return llm.Summary{Title: "Cell Biology", Summary: "Cells are small.", KeyPoints: []string{"membranes", "organelles"}}, nil
}

func (cannedLLM) GenerateChatbotResponse(ctx context.Context, documentText, message string) (string, error) {
	return "Cells are the unit of life.", nil
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := Build(config.Config{
		Env:               "dev",
		ObjectStoreType:   "local",
		LocalStoreDir:     t.TempDir(),
		LLMProvider:       "none",
		AppBaseURL:        "http://localhost:5173",
		JobSimulatedDelay: time.Millisecond,
		UsageFreeLimit:    5,
	})
	require.NoError(t, err)
	app.SummaryService.LLM = cannedLLM{}
	return app
}

func do(t *testing.T, app *App, method, path, userID string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func upload(t *testing.T, app *App, userID, name, contentType, content string) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-Id", userID)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	return doc
}

func TestHealthIsPublic(t *testing.T) {
	app := newTestApp(t)
	rec, body := do(t, app, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
}

func TestProtectedRouteRequiresIdentity(t *testing.T) {
	app := newTestApp(t)
	rec, _ := do(t, app, http.MethodGet, "/api/v1/documents", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadProcessSummarizeAndDelete(t *testing.T) {
	app := newTestApp(t)
	const user = "user-1"

	doc := upload(t, app, user, "cells.txt", "text/plain", "Cells are the basic unit of life.")
	id := doc["id"].(string)
	assert.Contains(t, []any{"processing", "ready"}, doc["status"])

	require.Eventually(t, func() bool {
		_, got := do(t, app, http.MethodGet, "/api/v1/documents/"+id, user, nil)
		return got["status"] == "ready"
	}, 2*time.Second, 20*time.Millisecond)

	rec, jobs := do(t, app, http.MethodGet, "/api/v1/documents/"+id+"/jobs", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, jobs["jobs"], 1)

	rec, body := do(t, app, http.MethodGet, "/api/v1/documents/"+id+"/summary", user, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := body["summary"].(map[string]any)
	assert.Equal(t, "Cell Biology", summary["title"])
	assert.Equal(t, false, summary["cached"])

	_, body = do(t, app, http.MethodGet, "/api/v1/documents/"+id+"/summary", user, nil)
	assert.Equal(t, true, body["summary"].(map[string]any)["cached"])

	rec, body = do(t, app, http.MethodPost, "/api/v1/documents/"+id+"/chat", user, map[string]any{"message": "What are cells?"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Cells are the unit of life.", body["response"])

	rec, _ = do(t, app, http.MethodPost, "/api/v1/notes", user, map[string]any{"document_id": id, "content": "review chapter 2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = do(t, app, http.MethodGet, "/api/v1/documents/"+id, "someone-else", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, app, http.MethodPost, "/api/v1/user/delete", user, map[string]any{"userId": user})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "success", body["status"])

	rec, _ = do(t, app, http.MethodGet, "/api/v1/documents/"+id, user, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	app := newTestApp(t)
	app.BillingService.WebhookSecret = "whsec_test"
	rec, _ := do(t, app, http.MethodPost, "/api/v1/stripe/webhook", "", map[string]any{"id": "evt_1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
