package processing

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

// Handler exposes job creation and polling.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches job routes except polling.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/process", h.process)
	rg.GET("/documents/:id/debug", h.debug)
}

// RegisterPollingRoutes attaches the endpoint clients poll while jobs run.
func (h *Handler) RegisterPollingRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents/:id/jobs", h.list)
}

type processRequest struct {
	DocumentID string `json:"documentId"`
	JobType    string `json:"jobType"`
}

func (h *Handler) process(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.DocumentID) == "" || strings.TrimSpace(req.JobType) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "documentId and jobType are required", nil)
		return
	}
	if _, ok := documents.ParseJobType(req.JobType); !ok {
		respond.Error(c, http.StatusBadRequest, "invalid_job_type", "invalid job type", gin.H{
			"allowed": documents.AllJobTypes(),
		})
		return
	}
	docID, err := uuid.Parse(strings.TrimSpace(req.DocumentID))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid documentId", nil)
		return
	}
	c.Set(middleware.LogDocumentID, docID.String())

	job, err := h.Svc.Process(c.Request.Context(), middleware.UserIDFromContext(c), docID.String(), req.JobType)
	if err != nil {
		writeError(c, err, "failed to start processing")
		return
	}
	c.Set(middleware.LogJobID, job.ID)
	c.Set(middleware.LogStatusTransition, "->processing")
	respond.OK(c, gin.H{"success": true, "job": ToResponse(job)})
}

func (h *Handler) list(c *gin.Context) {
	id, ok := respond.DocumentID(c)
	if !ok {
		return
	}
	jobs, err := h.Svc.ListForDocument(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		writeError(c, err, "failed to list jobs")
		return
	}
	resp := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, ToResponse(j))
	}
	respond.OK(c, gin.H{"success": true, "jobs": resp})
}

func (h *Handler) debug(c *gin.Context) {
	id, ok := respond.DocumentID(c)
	if !ok {
		return
	}
	info, err := h.Svc.Debug(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		writeError(c, err, "failed to load debug info")
		return
	}
	respond.OK(c, info)
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidJobType):
		respond.Error(c, http.StatusBadRequest, "invalid_job_type", "invalid job type", nil)
	case errors.Is(err, documents.ErrNotFound), errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
