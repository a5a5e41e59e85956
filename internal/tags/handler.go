package tags

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

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
	rg.GET("/tags", h.list)
	rg.POST("/tags", h.create)
	rg.DELETE("/tags/:id", h.delete)
	rg.GET("/documents/:id/tags", h.listForDocument)
	rg.POST("/documents/:id/tags/:tagId", h.attach)
	rg.DELETE("/documents/:id/tags/:tagId", h.detach)
}

func (h *Handler) list(c *gin.Context) {
	tags, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err, "failed to list tags")
		return
	}
	respond.OK(c, gin.H{"tags": tags})
}

type createRequest struct {
	Name string `json:"name"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	tag, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c), req.Name)
	if err != nil {
		writeError(c, err, "failed to create tag")
		return
	}
	respond.Created(c, gin.H{"tag": tag})
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := respond.UUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), middleware.UserIDFromContext(c), id); err != nil {
		writeError(c, err, "failed to delete tag")
		return
	}
	respond.OK(c, gin.H{"success": true})
}

func (h *Handler) listForDocument(c *gin.Context) {
	docID, ok := respond.DocumentID(c)
	if !ok {
		return
	}
	tags, err := h.Svc.ListForDocument(c.Request.Context(), middleware.UserIDFromContext(c), docID)
	if err != nil {
		writeError(c, err, "failed to list tags")
		return
	}
	respond.OK(c, gin.H{"tags": tags})
}

func (h *Handler) attach(c *gin.Context) {
	docID, tagID, ok := linkParams(c)
	if !ok {
		return
	}
	if err := h.Svc.Attach(c.Request.Context(), middleware.UserIDFromContext(c), docID, tagID); err != nil {
		writeError(c, err, "failed to attach tag")
		return
	}
	respond.OK(c, gin.H{"success": true})
}

func (h *Handler) detach(c *gin.Context) {
	docID, tagID, ok := linkParams(c)
	if !ok {
		return
	}
	if err := h.Svc.Detach(c.Request.Context(), middleware.UserIDFromContext(c), docID, tagID); err != nil {
		writeError(c, err, "failed to detach tag")
		return
	}
	respond.OK(c, gin.H{"success": true})
}

func linkParams(c *gin.Context) (string, string, bool) {
	docID, ok := respond.DocumentID(c)
	if !ok {
		return "", "", false
	}
	tagID, ok := respond.UUIDParam(c, "tagId")
	if !ok {
		return "", "", false
	}
	return docID, tagID, true
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", "name is required and at most 64 characters", nil)
	case errors.Is(err, ErrDuplicate):
		respond.Error(c, http.StatusConflict, "duplicate_tag", "a tag with this name already exists", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "tag not found", nil)
	case errors.Is(err, documents.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
