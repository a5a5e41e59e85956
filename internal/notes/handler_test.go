package notes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub-backend/internal/documents"
)

const testDocID = "4a1d3c2b-1f0e-4d9c-8b7a-6e5f4d3c2b1a"

func newTestRouter(t *testing.T, userID string) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	docs := documents.NewMemoryRepo()
	now := time.Now().UTC()
	require.NoError(t, docs.Create(context.Background(), documents.Document{
		ID: testDocID, UserID: "u1", Filename: "a.pdf", StoragePath: "u1/a.pdf",
		Status: documents.StatusReady, Metadata: map[string]any{}, Version: 1,
		CreatedAt: now, UpdatedAt: now,
	}))
	svc := &Service{Repo: NewMemoryRepo(), Docs: docs}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", userID)
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r, svc
}

func send(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestNotesCRUD(t *testing.T) {
	r, _ := newTestRouter(t, "u1")

	rec := send(r, http.MethodPost, "/api/v1/notes", map[string]string{"document_id": testDocID, "content": "chapter 1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		Note Note `json:"note"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "chapter 1", created.Note.Content)

	rec = send(r, http.MethodPatch, "/api/v1/notes", map[string]string{"id": created.Note.ID, "content": "chapter 2"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(r, http.MethodGet, "/api/v1/notes?document_id="+testDocID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Notes []Note `json:"notes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Notes, 1)
	assert.Equal(t, "chapter 2", listed.Notes[0].Content)

	rec = send(r, http.MethodDelete, "/api/v1/notes?id="+created.Note.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestNotesValidation(t *testing.T) {
	r, _ := newTestRouter(t, "u1")

	rec := send(r, http.MethodPost, "/api/v1/notes", map[string]string{"content": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(r, http.MethodPatch, "/api/v1/notes", map[string]string{"content": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(r, http.MethodDelete, "/api/v1/notes", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(r, http.MethodGet, "/api/v1/notes?user_id=someone-else", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNotesRejectMalformedID(t *testing.T) {
	r, _ := newTestRouter(t, "u1")

	rec := send(r, http.MethodPatch, "/api/v1/notes", map[string]string{"id": "not-a-uuid", "content": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid id", body["error"])
	assert.Equal(t, "validation_error", body["code"])

	rec = send(r, http.MethodDelete, "/api/v1/notes?id=not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(r, http.MethodDelete, "/api/v1/notes", map[string]string{"id": "1; DROP"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(r, http.MethodDelete, "/api/v1/notes?id=9b2e7c1a-3d4f-4a5b-8c6d-7e8f9a0b1c2d", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotesOnForeignDocument(t *testing.T) {
	r, _ := newTestRouter(t, "u2")

	rec := send(r, http.MethodPost, "/api/v1/notes", map[string]string{"document_id": testDocID, "content": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
