package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"studyhub-backend/internal/account"
	"studyhub-backend/internal/auth"
	"studyhub-backend/internal/billing"
	"studyhub-backend/internal/documents"
	"studyhub-backend/internal/llm"
	openai "studyhub-backend/internal/llm/openai"
	"studyhub-backend/internal/notes"
	"studyhub-backend/internal/processing"
	"studyhub-backend/internal/queue"
	"studyhub-backend/internal/services/health"
	"studyhub-backend/internal/shared/config"
	"studyhub-backend/internal/shared/server"
	"studyhub-backend/internal/shared/storage/db"
	"studyhub-backend/internal/shared/storage/object"
	localstore "studyhub-backend/internal/shared/storage/object/local"
	s3store "studyhub-backend/internal/shared/storage/object/s3"
	"studyhub-backend/internal/shared/telemetry"
	"studyhub-backend/internal/summaries"
	"studyhub-backend/internal/tags"
	"studyhub-backend/internal/uploads"
	"studyhub-backend/internal/usage"
	"studyhub-backend/internal/users"
)

// App holds shared dependencies and the HTTP router.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client
	LLM    llm.Client
	Dedupe billing.Deduper

	DocumentsRepo documents.Repo
	JobsRepo      processing.Repo
	UsersRepo     users.Repo
	NotesRepo     notes.Repo
	TagsRepo      tags.Repo

	DocumentsService  *documents.Service
	ProcessingService *processing.Service
	Simulator         *processing.Simulator
	UsersService      *users.Service
	UsageService      *usage.Service
	SummaryService    *summaries.Service
	NotesService      *notes.Service
	TagsService       *tags.Service
	BillingService    *billing.Service
	AccountService    *account.Service
	AuthService       *auth.OAuthService
	Uploads           *uploads.Handler
	Health            *health.Service
}

// Build connects infrastructure and wires every service and handler.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	llmClient, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
		LLM:    llmClient,
		Health: health.NewService(),
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}
	if cfg.ObjectStoreType == "s3" {
		app.Uploads, err = uploads.NewS3Handler(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, err
		}
	}
	buildHealth(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Health:          app.Health,
		AuthService:     app.AuthService,
		UserHandler:     users.NewHandler(app.UsersService),
		DocumentHandler: documents.NewHandler(app.DocumentsService),
		JobHandler:      processing.NewHandler(app.ProcessingService),
		SummaryHandler:  summaries.NewHandler(app.SummaryService),
		NoteHandler:     notes.NewHandler(app.NotesService),
		TagHandler:      tags.NewHandler(app.TagsService),
		BillingHandler:  billing.NewHandler(app.BillingService),
		AccountHandler:  account.NewHandler(app.AccountService),
		UsageHandler:    usage.NewHandler(app.UsageService),
		UploadHandler:   app.Uploads,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDev() {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL, db.DetectProfile())
	if err != nil {
		if cfg.IsDev() {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.JobQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.JobQueueURL)
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	if cfg.LLMProvider != "openai" || strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		telemetry.Warn("bootstrap.llm_placeholder", map[string]any{"provider": cfg.LLMProvider})
		return llm.PlaceholderClient{}, nil
	}
	client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel)
	if err != nil {
		return nil, err
	}
	return llm.NewRetryingClient(client), nil
}

func buildServices(app *App) error {
	cfg := app.Config

	if app.DB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
		app.JobsRepo = &processing.PGRepo{DB: app.DB}
		app.UsersRepo = &users.PGRepo{DB: app.DB}
		app.NotesRepo = &notes.PGRepo{DB: app.DB}
		app.TagsRepo = &tags.PGRepo{DB: app.DB}
		app.UsageService = usage.NewPostgresService(usage.NewPGStore(app.DB))
	} else {
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.JobsRepo = processing.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
		app.NotesRepo = notes.NewMemoryRepo()
		app.TagsRepo = tags.NewMemoryRepo()
		app.UsageService = usage.NewService()
	}

	app.UsersService = users.NewService(app.UsersRepo)
	app.UsageService.Roles = app.UsersService
	if cfg.UsageFreeLimit > 0 {
		app.UsageService.FreeLimit = cfg.UsageFreeLimit
	}
	if cfg.UsagePaidLimit > 0 {
		app.UsageService.PaidLimit = cfg.UsagePaidLimit
	}

	app.Simulator = &processing.Simulator{
		Jobs:  app.JobsRepo,
		Docs:  app.DocumentsRepo,
		Delay: cfg.JobSimulatedDelay,
	}
	var dispatcher processing.Dispatcher = processing.InProcessDispatcher{Sim: app.Simulator}
	if app.Queue != nil {
		dispatcher = processing.QueueDispatcher{Client: app.Queue}
	}
	app.ProcessingService = &processing.Service{
		Jobs:       app.JobsRepo,
		Docs:       app.DocumentsRepo,
		Dispatcher: dispatcher,
	}

	app.DocumentsService = &documents.Service{
		Store:        app.Store,
		Repo:         app.DocumentsRepo,
		Jobs:         app.ProcessingService,
		SignedURLTTL: cfg.SignedURLTTL,
	}

	app.SummaryService = &summaries.Service{
		Docs:  app.DocumentsRepo,
		Store: app.Store,
		LLM:   app.LLM,
		Quota: app.UsageService,
	}
	app.NotesService = &notes.Service{Repo: app.NotesRepo, Docs: app.DocumentsRepo}
	app.TagsService = &tags.Service{Repo: app.TagsRepo, Docs: app.DocumentsRepo}

	dedupe, err := buildDeduper(cfg)
	if err != nil {
		return err
	}
	app.Dedupe = dedupe
	app.BillingService = &billing.Service{
		Accounts:      app.UsersService,
		Dedupe:        dedupe,
		WebhookSecret: cfg.StripeWebhookSecret,
		SecretKey:     cfg.StripeSecretKey,
	}
	if provider := billing.NewStripeProvider(cfg.StripeSecretKey); provider != nil {
		app.BillingService.Provider = provider
	}

	app.AccountService = &account.Service{
		Docs:  app.DocumentsService,
		Notes: app.NotesRepo,
		Tags:  app.TagsRepo,
		Usage: app.UsageService,
		Users: app.UsersService,
		DB:    app.DB,
	}

	var replay auth.ReplayGuard
	if rd, ok := app.Dedupe.(*billing.RedisDeduper); ok {
		replay = &auth.RedisReplayGuard{Client: rd.Client}
	}
	app.AuthService = auth.NewOAuthService(auth.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		AuthURL:      cfg.OAuthAuthURL,
		TokenURL:     cfg.OAuthTokenURL,
		UserInfoURL:  cfg.OAuthUserInfoURL,
		RedirectURL:  cfg.OAuthRedirectURL,
		AppBaseURL:   cfg.AppBaseURL,
		Replay:       replay,
	}, app.UsersService)

	if app.DocumentsService == nil || app.SummaryService == nil || app.BillingService == nil {
		return errors.New("failed to initialize services")
	}
	return nil
}

func buildDeduper(cfg config.Config) (billing.Deduper, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return billing.NewMemoryDeduper(), nil
	}
	d, err := billing.NewRedisDeduper(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return d, nil
}

func buildHealth(app *App) {
	if app.DB != nil {
		app.Health.Register("database", app.DB.PingContext)
	}
	if rd, ok := app.Dedupe.(*billing.RedisDeduper); ok {
		app.Health.Register("redis", func(ctx context.Context) error {
			return rd.Client.Ping(ctx).Err()
		})
	}
}
