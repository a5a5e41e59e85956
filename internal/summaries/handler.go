package summaries

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studyhub-backend/internal/documents"
	"studyhub-backend/internal/shared/server/middleware"
	"studyhub-backend/internal/shared/server/respond"
	"studyhub-backend/internal/usage"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches summary and chat routes. All of them may call the LLM.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents/:id/summary", h.getSummary)
	rg.POST("/documents/:id/summary", h.regenerate)
	rg.POST("/documents/:id/clear-cache", h.clearCache)
	rg.GET("/documents/:id/chat", h.chatInfo)
	rg.POST("/documents/:id/chat", h.chat)
	rg.POST("/documents/fix-parsed-text", h.fixParsedText)
}

func (h *Handler) getSummary(c *gin.Context) {
	id, ok := respond.DocumentID(c)
	if !ok {
		return
	}
	res, err := h.Svc.GenerateSummary(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		writeError(c, err, "failed to generate summary")
		return
	}
	respond.OK(c, gin.H{"success": true, "summary": res})
}

func (h *Handler) regenerate(c *gin.Context) {
	id, ok := respond.DocumentID(c)
	if !ok {
		return
	}
	res, err := h.Svc.RegenerateSummary(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		writeError(c, err, "failed to regenerate summary")
		return
	}
	respond.OK(c, gin.H{"success": true, "summary": res})
}

func (h *Handler) clearCache(c *gin.Context) {
	id, ok := respond.DocumentID(c)
	if !ok {
		return
	}
	if err := h.Svc.ClearCache(c.Request.Context(), middleware.UserIDFromContext(c), id); err != nil {
		writeError(c, err, "failed to clear cache")
		return
	}
	respond.OK(c, gin.H{"success": true, "message": "Summary cache cleared"})
}

func (h *Handler) chatInfo(c *gin.Context) {
	id, ok := respond.DocumentID(c)
	if !ok {
		return
	}
	info, err := h.Svc.ChatInfo(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		writeError(c, err, "failed to load document")
		return
	}
	respond.OK(c, gin.H{"success": true, "document": info})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) chat(c *gin.Context) {
	id, ok := respond.DocumentID(c)
	if !ok {
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	reply, err := h.Svc.Chat(c.Request.Context(), middleware.UserIDFromContext(c), id, req.Message)
	if err != nil {
		writeError(c, err, "failed to generate chat response")
		return
	}
	respond.OK(c, gin.H{
		"success":       true,
		"response":      reply.Response,
		"documentTitle": reply.DocumentTitle,
	})
}

type fixRequest struct {
	DocumentID string `json:"documentId"`
}

func (h *Handler) fixParsedText(c *gin.Context) {
	var req fixRequest
	// An empty body means "all of my documents".
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}
	res, err := h.Svc.FixParsedText(c.Request.Context(), middleware.UserIDFromContext(c), strings.TrimSpace(req.DocumentID))
	if err != nil {
		writeError(c, err, "failed to fix parsed text")
		return
	}
	body := gin.H{
		"success":      true,
		"message":      fixMessage(res),
		"updatedCount": res.UpdatedCount,
		"totalFound":   res.TotalFound,
	}
	if len(res.Errors) > 0 {
		body["errors"] = res.Errors
	}
	respond.OK(c, body)
}

func fixMessage(res FixResult) string {
	if res.TotalFound == 0 {
		return "No documents need fixing"
	}
	if res.UpdatedCount == res.TotalFound {
		return "All documents fixed"
	}
	return "Some documents could not be fixed"
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrMessageRequired), errors.Is(err, ErrMessageTooLong):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), map[string]int{"maxLength": MaxChatMessageLength})
	case errors.Is(err, ErrNoContent):
		respond.Error(c, http.StatusBadRequest, "no_content", "document has no extracted text", nil)
	case errors.Is(err, documents.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, usage.ErrLimitReached):
		respond.Error(c, http.StatusTooManyRequests, "limit_reached", "AI usage limit reached for this period", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback+": "+err.Error(), nil)
	}
}
