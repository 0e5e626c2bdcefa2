package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/diagramforge/sentry/pkg/config"
	"github.com/diagramforge/sentry/pkg/detector"
	handlers "github.com/diagramforge/sentry/pkg/handlers/http"
	"github.com/diagramforge/sentry/pkg/infra/cache"
	"github.com/diagramforge/sentry/pkg/infra/database"
	"github.com/diagramforge/sentry/pkg/infra/httpx"
	infraLogger "github.com/diagramforge/sentry/pkg/infra/logger"
	"github.com/diagramforge/sentry/pkg/infra/metrics"
	"github.com/diagramforge/sentry/pkg/infra/providers/factory"
	"github.com/diagramforge/sentry/pkg/infra/repository"
	"github.com/diagramforge/sentry/pkg/moderator"
	"github.com/diagramforge/sentry/pkg/pipeline"
	"github.com/diagramforge/sentry/pkg/ratelimiter"
	"github.com/diagramforge/sentry/pkg/sanitizer"
	"github.com/diagramforge/sentry/pkg/server"
)

const breakerMaxFailures = 5

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := infraLogger.NewLogger()

	cfg, err := config.Load("./config")
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewDB(logger, &database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Fatalf("failed to run migrations: %v", err)
	}

	cacheClient, err := cache.NewClient(cache.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatalf("failed to initialize redis: %v", err)
	}
	defer cacheClient.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipelineMetrics := metrics.New(registry)

	rateLimitCfg, err := ratelimiter.ParseConfig(cfg.RateLimits)
	if err != nil {
		logger.Fatalf("invalid rate limit config: %v", err)
	}
	limiter, err := ratelimiter.New(
		ratelimiter.NewRedisStore(cacheClient.Redis(), nil),
		logger,
		rateLimitCfg,
	)
	if err != nil {
		logger.Fatalf("failed to initialize rate limiter: %v", err)
	}

	san := sanitizer.New(logger, sanitizer.Config{
		Enabled:   cfg.Sanitizer.Enabled,
		StripURLs: cfg.Sanitizer.StripURLs,
	})
	det := detector.New(logger, pipelineMetrics, detector.Config{
		Enabled: cfg.Detector.Enabled,
		Policy:  detector.Policy(cfg.Detector.Policy),
	})

	callTimeout := time.Duration(cfg.Moderation.CallTimeoutSeconds) * time.Second
	breaker := httpx.NewCircuitBreaker("moderation_provider", callTimeout, breakerMaxFailures)
	mod := moderator.New(logger, factory.NewProviderLocator(), breaker, moderator.Config{
		Enabled:              cfg.Moderation.Enabled,
		Provider:             cfg.Moderation.Provider,
		Model:                cfg.Moderation.Model,
		ApiKey:               cfg.Moderation.ApiKey,
		MaxTokens:            cfg.Moderation.MaxTokens,
		AutoApproveThreshold: cfg.Moderation.AutoApproveThreshold,
	})

	recorder := repository.NewDecisionRecorder(db.DB, logger)
	logRepo := repository.NewModerationLogRepository(db.DB)

	pipe := pipeline.New(san, det, limiter, mod, recorder, pipelineMetrics, logger, pipeline.Config{
		CallTimeout: callTimeout,
	})

	srv := server.NewModerationServer(server.ModerationServerDI{
		Config: cfg,
		Logger: logger,
		HandlerTransport: handlers.HandlerTransport{
			ModerationHandler: handlers.NewModerationHandler(logger, pipe, mod),
			QuotaHandler: handlers.NewQuotaHandler(logger, limiter,
				cacheClient.CreateTTLMap("quota_responses", handlers.QuotaCacheTTL)),
			ModerationLogHandler: handlers.NewModerationLogHandler(logger, logRepo),
			AdminReviewHandler:   handlers.NewAdminReviewHandler(logger, pipe),
		},
		MetricsRegistry: registry,
	})

	go func() {
		if err := srv.Run(); err != nil {
			logger.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		logger.WithError(err).Error("failed to shut down server")
	}
}
