package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"studyhub-backend/internal/account"
	"studyhub-backend/internal/auth"
	"studyhub-backend/internal/billing"
	"studyhub-backend/internal/documents"
	"studyhub-backend/internal/notes"
	"studyhub-backend/internal/processing"
	"studyhub-backend/internal/services/health"
	"studyhub-backend/internal/shared/config"
	"studyhub-backend/internal/shared/metrics"
	"studyhub-backend/internal/shared/server/middleware"
	"studyhub-backend/internal/shared/server/respond"
	"studyhub-backend/internal/shared/tracing"
	"studyhub-backend/internal/summaries"
	"studyhub-backend/internal/tags"
	"studyhub-backend/internal/uploads"
	"studyhub-backend/internal/usage"
	"studyhub-backend/internal/users"
)

// Rate limit groups.
const (
	GroupAI      = "AI"
	GroupPolling = "POLLING"
	GroupDefault = "DEFAULT"
)

// DefaultRateLimits are requests per second and burst per principal.
var DefaultRateLimits = map[string]middleware.RateLimitRule{
	GroupAI:      {Rate: 0.5, Burst: 10},
	GroupPolling: {Rate: 5, Burst: 40},
	GroupDefault: {Rate: 10, Burst: 60},
}

// RouterDeps carries the handlers mounted under /api/v1. Nil handlers are
// skipped.
type RouterDeps struct {
	Config          config.Config
	Health          *health.Service
	AuthService     *auth.OAuthService
	UserHandler     *users.Handler
	DocumentHandler *documents.Handler
	JobHandler      *processing.Handler
	SummaryHandler  *summaries.Handler
	NoteHandler     *notes.Handler
	TagHandler      *tags.Handler
	BillingHandler  *billing.Handler
	AccountHandler  *account.Handler
	UsageHandler    *usage.Handler
	UploadHandler   *uploads.Handler
	RateLimits      map[string]middleware.RateLimitRule
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	rules := deps.RateLimits
	if rules == nil {
		rules = DefaultRateLimits
	}

	r.Use(
		middleware.RequestID(),
		otelgin.Middleware(tracing.ServiceName),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        rules,
			DefaultGroup: GroupDefault,
			GroupFor:     RateLimitGroup,
		}),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		report := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	api.GET("/metrics", metrics.Handler())

	if deps.AuthService != nil {
		deps.AuthService.RegisterRoutes(api)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api)
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.RegisterRoutes(api)
	}
	if deps.JobHandler != nil {
		deps.JobHandler.RegisterRoutes(api)
		deps.JobHandler.RegisterPollingRoutes(api)
	}
	if deps.SummaryHandler != nil {
		deps.SummaryHandler.RegisterRoutes(api)
	}
	if deps.NoteHandler != nil {
		deps.NoteHandler.RegisterRoutes(api)
	}
	if deps.TagHandler != nil {
		deps.TagHandler.RegisterRoutes(api)
	}
	if deps.BillingHandler != nil {
		deps.BillingHandler.RegisterWebhookRoutes(api)
		deps.BillingHandler.RegisterRoutes(api)
	}
	if deps.AccountHandler != nil {
		deps.AccountHandler.RegisterRoutes(api)
	}
	if deps.UsageHandler != nil {
		deps.UsageHandler.RegisterRoutes(api)
		if deps.Config.IsDev() {
			deps.UsageHandler.RegisterDevRoutes(api.Group("/dev"))
		}
	}

	return r
}

// RateLimitGroup picks the rate limit group for the matched route.
func RateLimitGroup(c *gin.Context) string {
	route := c.FullPath()
	switch {
	case route == "/api/v1/documents/:id/jobs":
		return GroupPolling
	case strings.HasSuffix(route, "/summary"),
		strings.HasSuffix(route, "/chat"),
		route == "/api/v1/documents/fix-parsed-text":
		return GroupAI
	default:
		return GroupDefault
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
