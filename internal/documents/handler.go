package documents

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"studyhub-backend/internal/shared/server/middleware"
	"studyhub-backend/internal/shared/server/respond"
	"studyhub-backend/internal/shared/storage/object"
)

const maxUploadSize = 25 << 20 // 25MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.create)
	rg.POST("/documents/upload", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.PATCH("/documents/:id/progress", h.updateProgress)
	rg.POST("/documents/:id/complete", h.complete)
	rg.GET("/documents/:id/signed-url", h.signedURL)
	rg.POST("/documents/:id/reprocess", h.reprocess)
	rg.DELETE("/documents/:id", h.delete)
}

type createRequest struct {
	Filename         string `json:"filename"`
	OriginalFilename string `json:"originalFilename"`
	FileType         string `json:"fileType"`
	FileSize         int64  `json:"fileSize"`
	StoragePath      string `json:"storagePath"`
}

func (h *Handler) create(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "filename is required", nil)
		return
	}
	if strings.TrimSpace(req.StoragePath) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "storagePath is required", nil)
		return
	}
	if req.FileSize < 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileSize must not be negative", nil)
		return
	}

	doc, err := h.Svc.Create(c.Request.Context(), CreateInput{
		UserID:           userID,
		Filename:         req.Filename,
		OriginalFilename: req.OriginalFilename,
		FileType:         req.FileType,
		FileSize:         req.FileSize,
		StoragePath:      req.StoragePath,
	})
	if err != nil {
		writeError(c, err, "failed to create document")
		return
	}
	c.Set(middleware.LogDocumentID, doc.ID)
	respond.Created(c, ToResponse(doc))
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	doc, err := h.Svc.Upload(c.Request.Context(), userID, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(c, err, "failed to upload document")
		return
	}
	c.Set(middleware.LogDocumentID, doc.ID)
	c.Set(middleware.LogStatusTransition, "uploading->"+string(doc.Status))
	respond.Created(c, ToResponse(doc))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		writeError(c, err, "failed to list documents")
		return
	}

	resp := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, ToResponse(doc))
	}
	respond.OK(c, gin.H{"documents": resp, "limit": limit, "offset": offset})
}

func (h *Handler) get(c *gin.Context) {
	id, ok := respond.DocumentID(c)
	if !ok {
		return
	}
	doc, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		writeError(c, err, "failed to fetch document")
		return
	}
	respond.OK(c, ToResponse(doc))
}

type progressRequest struct {
	Progress *int   `json:"progress"`
	Status   string `json:"status"`
}

func (h *Handler) updateProgress(c *gin.Context) {
	id, ok := respond.DocumentID(c)
	if !ok {
		return
	}
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Progress == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "progress is required", nil)
		return
	}
	var status *Status
	if strings.TrimSpace(req.Status) != "" {
		parsed, ok := ParseStatus(req.Status)
		if !ok {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid status", nil)
			return
		}
		status = &parsed
	}

	doc, err := h.Svc.UpdateProgress(c.Request.Context(), middleware.UserIDFromContext(c), id, *req.Progress, status)
	if err != nil {
		writeError(c, err, "failed to update progress")
		return
	}
	respond.OK(c, ToResponse(doc))
}

func (h *Handler) complete(c *gin.Context) {
	id, ok := respond.DocumentID(c)
	if !ok {
		return
	}
	doc, err := h.Svc.CompleteUpload(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		writeError(c, err, "failed to complete upload")
		return
	}
	c.Set(middleware.LogStatusTransition, "uploaded->"+string(doc.Status))
	respond.OK(c, ToResponse(doc))
}

func (h *Handler) signedURL(c *gin.Context) {
	id, ok := respond.DocumentID(c)
	if !ok {
		return
	}
	url, expiresAt, err := h.Svc.SignedURL(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		writeError(c, err, "failed to sign url")
		return
	}
	respond.OK(c, gin.H{"url": url, "expiresAt": expiresAt})
}

func (h *Handler) reprocess(c *gin.Context) {
	id, ok := respond.DocumentID(c)
	if !ok {
		return
	}
	res, err := h.Svc.Reprocess(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		writeError(c, err, "failed to reprocess document")
		return
	}
	c.Set(middleware.LogJobID, res.JobID)
	c.Set(middleware.LogStatusTransition, "->processing")
	respond.OK(c, gin.H{
		"success":    true,
		"message":    "Document reprocessing started",
		"documentId": res.DocumentID,
		"jobId":      res.JobID,
		"jobType":    res.JobType,
	})
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := respond.DocumentID(c)
	if !ok {
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), middleware.UserIDFromContext(c), id); err != nil {
		writeError(c, err, "failed to delete document")
		return
	}
	respond.OK(c, gin.H{"success": true})
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound), errors.Is(err, object.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrConflict):
		respond.Error(c, http.StatusConflict, "conflict", "document was modified concurrently, retry", nil)
	case errors.Is(err, ErrInvalidState):
		respond.Error(c, http.StatusConflict, "invalid_state", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
