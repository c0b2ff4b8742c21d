// Package app wires together every AAQ dependency (database, cache,
// telemetry, domain services, HTTP routes) and runs the process in either
// "api" or "worker" mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/askaq/aaq/internal/auth"
	"github.com/askaq/aaq/internal/config"
	"github.com/askaq/aaq/internal/httpserver"
	"github.com/askaq/aaq/internal/platform"
	"github.com/askaq/aaq/internal/telemetry"
	"github.com/askaq/aaq/pkg/analytics"
	"github.com/askaq/aaq/pkg/answer"
	"github.com/askaq/aaq/pkg/apikey"
	"github.com/askaq/aaq/pkg/chatsession"
	"github.com/askaq/aaq/pkg/content"
	"github.com/askaq/aaq/pkg/embedding"
	"github.com/askaq/aaq/pkg/feedback"
	"github.com/askaq/aaq/pkg/guardrail"
	"github.com/askaq/aaq/pkg/quota"
	"github.com/askaq/aaq/pkg/retrieval"
	"github.com/askaq/aaq/pkg/search"
	"github.com/askaq/aaq/pkg/tag"
	"github.com/askaq/aaq/pkg/urgency"
	"github.com/askaq/aaq/pkg/user"
	"github.com/askaq/aaq/pkg/workspace"
)

// Run is the main application entry point. It reads config, connects to
// infrastructure, and starts the appropriate mode (api or worker).
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting aaq",
		"mode", cfg.Mode,
		"listen", cfg.ListenAddr(),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.OTLPEndpoint, "aaq")
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutting down tracer", "error", err)
		}
	}()

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.DBPoolSize)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(telemetry.All()...)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, pool, rdb, metricsReg)
	case "worker":
		return runWorker(ctx, cfg, logger, pool, rdb)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// deps holds every domain service, constructed once and shared by runAPI's
// route mounting and runWorker's periodic sweep.
type deps struct {
	sessionMgr  *auth.SessionManager
	apiKeyAuth  *auth.APIKeyAuthenticator
	userSvc     *user.Service
	workspaceSt *workspace.Store
	workspaceSv *workspace.Service
	apikeySvc   *apikey.Service
	tagSvc      *tag.Service
	contentSvc  *content.Service
	retrievalSv *retrieval.Service
	pipeline    *guardrail.Pipeline
	urgencySvc  *urgency.Service
	chatMgr     *chatsession.Manager
	feedbackSvc *feedback.Service
	analyticsSv *analytics.Service
	searchSvc   *search.Service
	embedding   *embedding.Client
}

func buildDeps(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client) (*deps, error) {
	sessionMgr, err := auth.NewSessionManager(cfg.JWTSecret, cfg.JWTGraceSecret, cfg.JWTTTL())
	if err != nil {
		return nil, fmt.Errorf("creating session manager: %w", err)
	}
	apiKeyAuth := &auth.APIKeyAuthenticator{DB: pool}

	embeddingClient, err := embedding.NewClient(embedding.Config{
		BaseURL:     cfg.EmbeddingEndpoint,
		APIKey:      cfg.EmbeddingAPIKey,
		Model:       cfg.EmbeddingModel,
		Dimensions:  cfg.EmbeddingDim,
		CacheSize:   cfg.EmbeddingCacheSize,
		MaxRetries:  cfg.EmbeddingMaxRetries,
		Concurrency: int64(cfg.EmbeddingConcurrency),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}

	answerClient := answer.NewClient(answer.Config{
		BaseURL:     cfg.LLMEndpoint,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	})

	urgencyLLM := urgency.NewLLMClient(urgency.LLMConfig{
		BaseURL: cfg.LLMEndpoint,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
	})

	analyticsLabeler := analytics.NewLLMLabeler(analytics.LabelerConfig{
		BaseURL: cfg.LLMEndpoint,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
	})

	classifier := guardrail.NewLLMClassifier(guardrail.ClassifierConfig{
		BaseURL: cfg.LLMEndpoint,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
	})

	quotaLimiter := quota.NewLimiter(rdb)

	userSvc := user.NewService(pool)
	workspaceStore := workspace.NewStore(pool)
	workspaceSvc := workspace.NewService(workspaceStore, pool, sessionMgr, userSvc)
	apikeySvc := apikey.NewService(apikey.NewStore(pool), pool)
	tagSvc := tag.NewService(pool)
	contentSvc := content.NewService(pool, pool, embeddingClient)
	contentCounter := content.NewStore(pool)

	retrievalSvc := retrieval.NewService(pool, contentCounter, embeddingClient, cfg.ExactSearchThreshold)

	pipeline := guardrail.NewPipeline(guardrail.Config{
		AllowedLanguages:    cfg.AllowedLanguages,
		AlignScoreThreshold: cfg.AlignScoreThreshold,
		ParaphraseThreshold: cfg.ParaphraseThreshold,
		StepTimeout:         cfg.GuardrailTimeout,
	}, classifier, classifier, classifier, answerClient, classifier)

	urgencySvc := urgency.NewService(pool, embeddingClient, urgencyLLM, cfg.UrgencyRuleThreshold)
	chatMgr := chatsession.NewManager(rdb, cfg.ChatMaxTurns, cfg.ChatMaxTurnChars, time.Duration(cfg.SessionTTLSeconds)*time.Second)
	feedbackSvc := feedback.NewService(pool)
	analyticsSvc := analytics.NewService(pool, embeddingClient, analyticsLabeler, cfg.TopicClusterSimilarity, cfg.TopicClusterMinSize, cfg.TopicClusterWindow)

	searchSvc := search.NewService(quotaLimiter, workspaceStore, retrievalSvc, pipeline, feedbackSvc, chatMgr, 0, cfg.SimilarityFloor)

	return &deps{
		sessionMgr:  sessionMgr,
		apiKeyAuth:  apiKeyAuth,
		userSvc:     userSvc,
		workspaceSt: workspaceStore,
		workspaceSv: workspaceSvc,
		apikeySvc:   apikeySvc,
		tagSvc:      tagSvc,
		contentSvc:  contentSvc,
		retrievalSv: retrievalSvc,
		pipeline:    pipeline,
		urgencySvc:  urgencySvc,
		chatMgr:     chatMgr,
		feedbackSvc: feedbackSvc,
		analyticsSv: analyticsSvc,
		searchSvc:   searchSvc,
		embedding:   embeddingClient,
	}, nil
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	d, err := buildDeps(cfg, pool, rdb)
	if err != nil {
		return err
	}

	optionalAuth := auth.OptionalMiddleware(d.sessionMgr, d.apiKeyAuth, logger)

	srv := httpserver.NewServer(httpserver.ServerConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger, pool, rdb, metricsReg, d.embedding, optionalAuth)

	userHandler := user.NewHandler(logger, d.userSvc)
	workspaceHandler := workspace.NewHandler(logger, d.workspaceSv)
	apikeyHandler := apikey.NewHandler(logger, d.apikeySvc)
	tagHandler := tag.NewHandler(logger, d.tagSvc)
	contentHandler := content.NewHandler(logger, d.contentSvc)
	searchHandler := search.NewHandler(logger, d.searchSvc)
	urgencyHandler := urgency.NewHandler(logger, d.urgencySvc)
	feedbackHandler := feedback.NewHandler(logger, d.feedbackSvc)
	analyticsHandler := analytics.NewHandler(logger, d.analyticsSv)

	r := srv.Router

	// Session bootstrap and feedback submission each register their own
	// full top-level paths rather than a resource-collection prefix; since
	// two such routers can't both be Mounted at "/" on the same mux (chi
	// would register the root wildcard twice), each literal path is wired
	// straight through to its router's ServeHTTP instead.
	authRoutes := workspaceHandler.AuthRoutes()
	r.Post("/login", authRoutes.ServeHTTP)
	r.Post("/login-workspace", authRoutes.ServeHTTP)

	feedbackRoutes := feedbackHandler.Routes()
	r.Post("/response-feedback", feedbackRoutes.ServeHTTP)
	r.Post("/content-feedback", feedbackRoutes.ServeHTTP)

	// Users: registration is anonymous; /current and /{id} enforce their
	// own auth requirement internally.
	r.Mount("/user", userHandler.Routes())

	// Workspaces: creation serves both anonymous bootstrap and authenticated
	// callers, so it is mounted with no blanket auth requirement beyond the
	// server-wide optional middleware already applied; individual routes
	// apply RequireAuth/RequireAdmin themselves.
	r.Mount("/workspace", workspaceHandler.Routes(http.HandlerFunc(apikeyHandler.HandleRotate)))

	r.With(auth.RequireAuth).Mount("/content", contentHandler.Routes())
	r.With(auth.RequireAuth).Mount("/tag", tagHandler.Routes())
	r.With(auth.RequireAuth).Mount("/dashboard", analyticsHandler.Routes())
	r.With(auth.RequireAuth).Mount("/urgency-rules", urgencyHandler.RuleRoutes())

	r.With(auth.RequireAuth).Post("/search", searchHandler.HandleSearch)
	r.With(auth.RequireAuth).Post("/urgency-detect", urgencyHandler.HandleDetect)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

// runWorker periodically refreshes topic-cluster insights for every
// workspace, per spec §4.11's "periodically (or on demand)" clustering.
func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client) error {
	d, err := buildDeps(cfg, pool, rdb)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.TopicClusterWindow)
	defer ticker.Stop()

	refreshAll := func() {
		ids, err := d.workspaceSt.ListIDs(ctx)
		if err != nil {
			logger.Error("listing workspaces for topic clustering", "error", err)
			return
		}
		for _, id := range ids {
			if _, err := d.analyticsSv.RefreshInsights(ctx, id); err != nil {
				logger.Error("refreshing topic insights", "error", err, "workspace_id", id)
			}
		}
	}

	refreshAll()
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutting down")
			return nil
		case <-ticker.C:
			refreshAll()
		}
	}
}
