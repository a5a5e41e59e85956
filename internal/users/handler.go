package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

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
	rg.GET("/me", h.me)
}

// me answers from the stored profile and falls back to token claims for
// users that have no row yet.
func (h *Handler) me(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}

	user, err := h.Svc.GetByID(c.Request.Context(), userID)
	switch {
	case errors.Is(err, ErrNotFound):
		role := middleware.UserRoleFromContext(c)
		if role == "" {
			role = string(RoleFree)
		}
		respond.OK(c, gin.H{
			"id":         userID,
			"email":      middleware.UserEmailFromContext(c),
			"fullName":   middleware.UserNameFromContext(c),
			"pictureUrl": middleware.UserPictureFromContext(c),
			"role":       role,
		})
	case err != nil:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
	default:
		respond.OK(c, gin.H{
			"id":         user.ID,
			"email":      user.Email,
			"fullName":   user.FullName,
			"pictureUrl": user.PictureURL,
			"role":       user.Role,
		})
	}
}
