package billing

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"

	"studyhub-backend/internal/shared/server/middleware"
	"studyhub-backend/internal/shared/server/respond"
)

const maxWebhookBody = 1 << 16

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterWebhookRoutes attaches the unauthenticated webhook endpoint.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/stripe/webhook", h.webhook)
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/stripe/cancel", h.cancel)
	rg.POST("/stripe/reactivate", h.reactivate)
	rg.POST("/stripe/sync", h.sync)
	rg.GET("/stripe/test", h.test)
}

func (h *Handler) webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil || len(payload) > maxWebhookBody {
		respond.Error(c, http.StatusBadRequest, "invalid_payload", "unable to read webhook body", nil)
		return
	}
	res, err := h.Svc.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		respond.OK(c, gin.H{"received": true, "duplicate": res.Duplicate})
	case errors.Is(err, ErrInvalidSignature):
		respond.Error(c, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed", nil)
	case errors.Is(err, ErrMissingField):
		respond.Error(c, http.StatusBadRequest, "invalid_payload", err.Error(), nil)
	case errors.Is(err, ErrNotConfigured):
		respond.Error(c, http.StatusInternalServerError, "billing_not_configured", "webhook secret is not configured", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process webhook", nil)
	}
}

type subscriptionRequest struct {
	SubscriptionID string `json:"subscriptionId"`
}

func bindSubscription(c *gin.Context) (string, bool) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.SubscriptionID) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "subscriptionId is required", nil)
		return "", false
	}
	return strings.TrimSpace(req.SubscriptionID), true
}

func (h *Handler) cancel(c *gin.Context) {
	subID, ok := bindSubscription(c)
	if !ok {
		return
	}
	view, err := h.Svc.Cancel(c.Request.Context(), middleware.UserIDFromContext(c), subID)
	if err != nil {
		writeError(c, err, "failed to cancel subscription")
		return
	}
	respond.OK(c, gin.H{"status": "success", "subscription": view})
}

func (h *Handler) reactivate(c *gin.Context) {
	subID, ok := bindSubscription(c)
	if !ok {
		return
	}
	view, err := h.Svc.Reactivate(c.Request.Context(), middleware.UserIDFromContext(c), subID)
	if err != nil {
		writeError(c, err, "failed to reactivate subscription")
		return
	}
	respond.OK(c, gin.H{"status": "success", "subscription": view})
}

func (h *Handler) sync(c *gin.Context) {
	subID, ok := bindSubscription(c)
	if !ok {
		return
	}
	view, role, err := h.Svc.Sync(c.Request.Context(), middleware.UserIDFromContext(c), subID)
	if err != nil {
		writeError(c, err, "failed to sync subscription")
		return
	}
	respond.OK(c, gin.H{"status": "success", "subscription": view, "role": role})
}

func (h *Handler) test(c *gin.Context) {
	res, err := h.Svc.Test(c.Request.Context())
	if err != nil {
		respond.JSON(c, http.StatusInternalServerError, res)
		return
	}
	respond.OK(c, res)
}

func writeError(c *gin.Context, err error, fallback string) {
	var stripeErr *stripe.Error
	switch {
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, ErrNotConfigured):
		respond.Error(c, http.StatusInternalServerError, "billing_not_configured", "Stripe is not configured", nil)
	case errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound:
		respond.Error(c, http.StatusBadRequest, "invalid_subscription", "subscription not found", nil)
	case errors.As(err, &stripeErr):
		respond.Error(c, http.StatusInternalServerError, "stripe_error", stripeErr.Msg, nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
