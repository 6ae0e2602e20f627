package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feedbackflow/ai-analysis/internal/admin"
	"github.com/feedbackflow/ai-analysis/internal/analysis"
	"github.com/feedbackflow/ai-analysis/internal/api"
	"github.com/feedbackflow/ai-analysis/internal/auth"
	"github.com/feedbackflow/ai-analysis/internal/cache"
	"github.com/feedbackflow/ai-analysis/internal/config"
	"github.com/feedbackflow/ai-analysis/internal/db"
	"github.com/feedbackflow/ai-analysis/internal/llm"
	"github.com/feedbackflow/ai-analysis/internal/metrics"
	"github.com/feedbackflow/ai-analysis/internal/ratelimit"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	routes := api.Routes{ConfigErr: cfg.Validate()}
	if routes.ConfigErr != nil {
		// Keep serving health and metrics; the analysis endpoint fails closed.
		logger.Error("configuration incomplete, analysis endpoint disabled", zap.Error(routes.ConfigErr))
	} else {
		database, err := db.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer database.Close()

		if cfg.AutoMigrate {
			if err := database.Migrate(ctx); err != nil {
				logger.Fatal("failed to apply schema", zap.Error(err))
			}
			logger.Info("schema applied")
		}

		redisClient, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, cache mirror disabled", zap.Error(err))
			redisClient = nil
		}
		if redisClient != nil {
			defer redisClient.Close()
		}

		var verifier auth.Verifier = auth.NewRemoteVerifier(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		if cfg.SupabaseJWTSecret != "" {
			verifier = auth.NewJWTVerifier(cfg.SupabaseJWTSecret)
		}

		quota := ratelimit.NewDailyQuota(database, cfg.DailyLimit, logger.Named("quota"))
		completer := llm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, logger.Named("llm"))
		service := analysis.NewService(
			database,
			database,
			cache.NewStore(database, redisClient, logger.Named("cache")),
			quota,
			completer,
			logger.Named("analysis"),
			analysis.Options{Language: cfg.ResponseLanguage, CacheTTL: cfg.CacheTTL},
		)

		routes.Analysis = api.NewHandler(service, logger.Named("api"))
		routes.Auth = auth.NewMiddleware(verifier, logger.Named("auth"))
		routes.Admin = admin.NewAdminHandler(database, quota, cfg.SupabaseServiceRoleKey, logger.Named("admin"))

		go admin.RunPurgeLoop(ctx, database, cfg.CachePurgeInterval, logger.Named("purge"))

		logger.Info("analysis service ready",
			zap.String("model", completer.Model()),
			zap.Int("daily_limit", cfg.DailyLimit),
			zap.Bool("redis_mirror", redisClient != nil),
		)
	}

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           api.NewRouter(routes, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.ServerPort), zap.String("endpoint", api.AnalysisPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		zcfg.Level = lvl
	}

	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
