package notes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studyhub-backend/internal/documents"
	"studyhub-backend/internal/shared/server/middleware"
	"studyhub-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/notes", h.list)
	rg.POST("/notes", h.create)
	rg.PATCH("/notes", h.update)
	rg.DELETE("/notes", h.delete)
}

// noteRequest accepts user_id for compatibility; it must match the caller.
type noteRequest struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
}

func (h *Handler) list(c *gin.Context) {
	userID, ok := caller(c, c.Query("user_id"))
	if !ok {
		return
	}
	docID := strings.TrimSpace(c.Query("document_id"))
	if docID != "" {
		if _, err := uuid.Parse(docID); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid document_id", nil)
			return
		}
	}
	notes, err := h.Svc.List(c.Request.Context(), userID, docID)
	if err != nil {
		writeError(c, err, "failed to list notes")
		return
	}
	respond.OK(c, gin.H{"notes": notes})
}

func (h *Handler) create(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	userID, ok := caller(c, req.UserID)
	if !ok {
		return
	}
	if _, err := uuid.Parse(strings.TrimSpace(req.DocumentID)); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document_id is required", nil)
		return
	}
	note, err := h.Svc.Create(c.Request.Context(), userID, strings.TrimSpace(req.DocumentID), req.Content)
	if err != nil {
		writeError(c, err, "failed to create note")
		return
	}
	respond.OK(c, gin.H{"note": note})
}

func (h *Handler) update(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	userID, ok := caller(c, req.UserID)
	if !ok {
		return
	}
	id, ok := noteID(c, req.ID)
	if !ok {
		return
	}
	note, err := h.Svc.Update(c.Request.Context(), userID, id, req.Content)
	if err != nil {
		writeError(c, err, "failed to update note")
		return
	}
	respond.OK(c, gin.H{"note": note})
}

func (h *Handler) delete(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	requested := c.Query("user_id")
	if id == "" && c.Request.ContentLength > 0 {
		var req noteRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			id = strings.TrimSpace(req.ID)
			if requested == "" {
				requested = req.UserID
			}
		}
	}
	userID, ok := caller(c, requested)
	if !ok {
		return
	}
	id, ok = noteID(c, id)
	if !ok {
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), userID, id); err != nil {
		writeError(c, err, "failed to delete note")
		return
	}
	respond.OK(c, gin.H{"success": true})
}

// noteID validates a note id the way document ids are validated, so a bad
// id is a 400 instead of a failed UUID cast in Postgres.
func noteID(c *gin.Context, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "id is required", nil)
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid id", nil)
		return "", false
	}
	return id.String(), true
}

// caller resolves the acting user. A user_id naming someone else is refused.
func caller(c *gin.Context, requested string) (string, bool) {
	userID := middleware.UserIDFromContext(c)
	requested = strings.TrimSpace(requested)
	if requested != "" && requested != userID {
		respond.Error(c, http.StatusForbidden, "forbidden", "user_id does not match the authenticated user", nil)
		return "", false
	}
	return userID, true
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", "missing required fields", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "note not found", nil)
	case errors.Is(err, documents.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
