package account

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"studyhub-backend/internal/documents"
	"studyhub-backend/internal/notes"
	"studyhub-backend/internal/tags"
	"studyhub-backend/internal/usage"
	"studyhub-backend/internal/users"
)

type fixture struct {
	docRepo  *documents.MemoryRepo
	notes    *notes.MemoryRepo
	tags     *tags.MemoryRepo
	users    *users.Service
	svc      *Service
	router   *gin.Engine
	callerID string
}

func newFixture(t *testing.T, callerID string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{
		docRepo:  documents.NewMemoryRepo(),
		notes:    notes.NewMemoryRepo(),
		tags:     tags.NewMemoryRepo(),
		users:    users.NewService(users.NewMemoryRepo()),
		callerID: callerID,
	}
	f.svc = &Service{
		Docs:  &documents.Service{Repo: f.docRepo},
		Notes: f.notes,
		Tags:  f.tags,
		Usage: usage.NewService(),
		Users: f.users,
	}
	f.router = gin.New()
	f.router.Use(func(c *gin.Context) {
		c.Set("userId", f.callerID)
		c.Next()
	})
	NewHandler(f.svc).RegisterRoutes(f.router.Group("/api/v1"))
	return f
}

func (f *fixture) seed(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	doc := documents.Document{
		ID: "doc-" + userID, UserID: userID, Filename: "a.pdf", StoragePath: userID + "/a.pdf",
		Status: documents.StatusReady, Metadata: map[string]any{}, Version: 1, CreatedAt: now, UpdatedAt: now,
	}
	if err := f.docRepo.Create(ctx, doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := f.notes.Create(ctx, notes.Note{ID: "note-" + userID, UserID: userID, DocumentID: doc.ID, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create note: %v", err)
	}
	if err := f.tags.Create(ctx, tags.Tag{ID: "tag-" + userID, UserID: userID, Name: "exam", CreatedAt: now}); err != nil {
		t.Fatalf("create tag: %v", err)
	}
	if err := f.users.UpsertFromAuth(ctx, users.User{ID: userID, Email: userID + "@example.com"}); err != nil {
		t.Fatalf("upsert user: %v", err)
	}
}

func (f *fixture) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/delete", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestDeleteSelfCascades(t *testing.T) {
	f := newFixture(t, "user-1")
	f.seed(t, "user-1")
	f.seed(t, "user-2")

	rec := f.post(`{"userId":"user-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	ctx := context.Background()
	if _, err := f.docRepo.GetByID(ctx, "doc-user-1"); err != documents.ErrNotFound {
		t.Fatalf("document not deleted: %v", err)
	}
	if n, _ := f.notes.List(ctx, "user-1", ""); len(n) != 0 {
		t.Fatalf("notes not deleted: %v", n)
	}
	if _, err := f.users.GetByID(ctx, "user-1"); err != users.ErrNotFound {
		t.Fatalf("user not deleted: %v", err)
	}
	if _, err := f.docRepo.GetByID(ctx, "doc-user-2"); err != nil {
		t.Fatalf("other user's document deleted: %v", err)
	}
}

func TestDeleteOtherUserRequiresAdmin(t *testing.T) {
	f := newFixture(t, "user-1")
	f.seed(t, "user-2")

	if rec := f.post(`{"userId":"user-2"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if _, err := f.docRepo.GetByID(context.Background(), "doc-user-2"); err != nil {
		t.Fatalf("document deleted without permission: %v", err)
	}

	if err := f.users.SetRole(context.Background(), "user-1", users.RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if rec := f.post(`{"userId":"user-2"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestDeleteRequiresUserID(t *testing.T) {
	f := newFixture(t, "user-1")
	if rec := f.post(`{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDeleteRowsInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM notes").WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM tags").WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM usage_windows").WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM users").WithArgs("user-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	notesN, tagsN, err := deleteRowsTx(context.Background(), db, "user-1")
	if err != nil {
		t.Fatalf("deleteRowsTx: %v", err)
	}
	if notesN != 2 || tagsN != 1 {
		t.Fatalf("unexpected counts: %d %d", notesN, tagsN)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
