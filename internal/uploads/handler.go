package uploads

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"

	"studyhub-backend/internal/documents"
	"studyhub-backend/internal/extract"
	"studyhub-backend/internal/shared/server/middleware"
	"studyhub-backend/internal/shared/server/respond"
	"studyhub-backend/internal/shared/telemetry"
	"studyhub-backend/internal/shared/util"
)

const (
	maxUploadBytes = 25 << 20
	presignExpires = 15 * time.Minute
)

// Presigner signs direct-to-bucket PUT requests.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Handler issues presigned upload URLs. The client PUTs the file, then
// creates the document with the returned storagePath and completes it.
type Handler struct {
	Presign Presigner
	Bucket  string
	Prefix  string
	Expires time.Duration
}

// NewS3Handler builds a handler presigning into the document bucket. Keys
// use the same layout as the S3 object store so stored documents can be
// read back through it.
func NewS3Handler(ctx context.Context, region, bucket, prefix string) (*Handler, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required for presigned uploads")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if strings.TrimSpace(region) != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Handler{
		Presign: s3.NewPresignClient(s3.NewFromConfig(cfg)),
		Bucket:  bucket,
		Prefix:  strings.Trim(strings.TrimSpace(prefix), "/"),
		Expires: presignExpires,
	}, nil
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads/presign", h.presign)
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type presignResponse struct {
	UploadURL        string `json:"uploadUrl"`
	StoragePath      string `json:"storagePath"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

func (h *Handler) presign(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.TrimSpace(req.ContentType)

	if req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileName is required", nil)
		return
	}
	if !Allowed(req.ContentType, req.FileName) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "contentType is not allowed", nil)
		return
	}
	if req.SizeBytes <= 0 || req.SizeBytes > maxUploadBytes {
		respond.Error(c, http.StatusBadRequest, "validation_error", "sizeBytes exceeds limit", gin.H{"maxBytes": maxUploadBytes})
		return
	}
	storagePath, err := util.StorageKey(middleware.UserIDFromContext(c), req.FileName)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid fileName", nil)
		return
	}
	objectKey := storagePath
	if h.Prefix != "" {
		objectKey = h.Prefix + "/" + storagePath
	}

	expires := h.Expires
	if expires <= 0 {
		expires = presignExpires
	}
	out, err := h.Presign.PresignPutObject(c.Request.Context(), presignInput(h.Bucket, objectKey, req.ContentType), func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		telemetry.Error("uploads.presign_failed", map[string]any{
			"error":        err.Error(),
			"bucket":       h.Bucket,
			"key":          objectKey,
			"content_type": req.ContentType,
			"size_bytes":   req.SizeBytes,
			"request_id":   middleware.RequestIDFromContext(c),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		return
	}

	respond.OK(c, presignResponse{
		UploadURL:        out.URL,
		StoragePath:      storagePath,
		ExpiresInSeconds: int64(expires.Seconds()),
	})
}

// Allowed reports whether a file of this type can be processed after upload.
func Allowed(contentType, fileName string) bool {
	if contentType == "" {
		return false
	}
	return extract.Supported(contentType, fileName) || len(documents.JobTypesFor(contentType)) > 0
}

func presignInput(bucket, key, contentType string) *s3.PutObjectInput {
	return &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
}
