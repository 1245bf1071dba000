package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lexsieve/lexsieve/internal/config"
	dbRedis "github.com/lexsieve/lexsieve/internal/db/redis"
	logpkg "github.com/lexsieve/lexsieve/internal/logger"
	"github.com/lexsieve/lexsieve/internal/metrics"
	analysisrepo "github.com/lexsieve/lexsieve/internal/repository/analysis"
	channelrepo "github.com/lexsieve/lexsieve/internal/repository/channel"
	"github.com/lexsieve/lexsieve/internal/repository/gencache"
	messagerepo "github.com/lexsieve/lexsieve/internal/repository/message"
	runrepo "github.com/lexsieve/lexsieve/internal/repository/run"
	usagerepo "github.com/lexsieve/lexsieve/internal/repository/usage"
	chiTransport "github.com/lexsieve/lexsieve/internal/transport/chi"
	openaiGen "github.com/lexsieve/lexsieve/internal/transport/openai"
	"github.com/lexsieve/lexsieve/internal/transport/scraper"
	assessuc "github.com/lexsieve/lexsieve/internal/usecase/assess"
	channeluc "github.com/lexsieve/lexsieve/internal/usecase/channel"
	clarifyuc "github.com/lexsieve/lexsieve/internal/usecase/clarify"
	generationuc "github.com/lexsieve/lexsieve/internal/usecase/generation"
	healthuc "github.com/lexsieve/lexsieve/internal/usecase/health"
	scoreuc "github.com/lexsieve/lexsieve/internal/usecase/score"
	searchuc "github.com/lexsieve/lexsieve/internal/usecase/search"
	translateuc "github.com/lexsieve/lexsieve/internal/usecase/translate"
	usageuc "github.com/lexsieve/lexsieve/internal/usecase/usage"
	"github.com/lexsieve/lexsieve/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting lexsieve API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("redis_addrs", cfg.Redis.Addrs),
		zap.String("generation_model", cfg.Generation.Model),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Redis.Addrs,
		Password: cfg.Redis.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create storage client", zap.Error(err))
	}
	defer store.Close()

	// Wait for storage to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Storage not ready", zap.Error(err))
	}
	logger.Info("Connected to storage")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()
	metrics.RegisterGenerationMetrics()

	// Create repositories (domain-native, no adapters)
	runRepo := runrepo.New(store)
	msgRepo := messagerepo.New(store)
	analysisRepo := analysisrepo.New(store)
	usageRepo := usagerepo.New(store)
	chanRepo := channelrepo.New(store)

	// Build the generation chain — composition root.
	// Base provider records token usage; the reply cache short-circuits
	// repeated prompts; the budget guard caps the day; each pipeline stage
	// gets its own instrumented wrapper.
	recorder := generationuc.NewRecorder(usageRepo, logger)
	base := openaiGen.NewGenerator(&openaiGen.Config{
		APIKey:   cfg.Generation.APIKey,
		BaseURL:  cfg.Generation.BaseURL,
		Model:    cfg.Generation.Model,
		Timeout:  time.Duration(cfg.Generation.TimeoutSec) * time.Second,
		Recorder: recorder,
		Logger:   logger,
	})
	cached := gencache.New(base, store, cfg.Generation.Model, metrics.GenerationCacheTotal, logger)
	guard := generationuc.NewBudgetGuard(
		cached, usageRepo,
		cfg.Generation.Budget.DailyCallLimit, cfg.Generation.Budget.DailyTokenLimit,
		logger,
	)
	logger.Info("Generation chain created",
		zap.String("model", cfg.Generation.Model),
		zap.Int("daily_call_limit", cfg.Generation.Budget.DailyCallLimit),
		zap.Int("daily_token_limit", cfg.Generation.Budget.DailyTokenLimit),
	)

	// Channel registry — seeded from config so the translator and the API
	// agree on the set of searchable listservs.
	channelSvc := channeluc.New(chanRepo)
	if len(cfg.Channels) > 0 {
		seed := make(map[string]string, len(cfg.Channels))
		for _, ch := range cfg.Channels {
			seed[ch.ID] = ch.Name
		}
		if err := channelSvc.Seed(ctx, seed); err != nil {
			logger.Fatal("Failed to seed channels", zap.Error(err))
		}
		logger.Info("Channels seeded", zap.Int("count", len(seed)))
	}

	// Pipeline stages, each on its own stage-labelled generator.
	gate := clarifyuc.New(stageGenerator(guard, cfg.Generation.Model, "clarify", logger), logger)
	trans := translateuc.New(stageGenerator(guard, cfg.Generation.Model, "translate", logger), channelSvc, logger).
		WithRecentWindow(cfg.Pipeline.RecentWindowMonths)
	scorer := scoreuc.New(stageGenerator(guard, cfg.Generation.Model, "score", logger), logger).
		WithBodyLimit(cfg.Pipeline.ScoreBodyLimit)
	assessor := assessuc.New(stageGenerator(guard, cfg.Generation.Model, "assess", logger)).
		WithBodyLimit(cfg.Pipeline.ScoreBodyLimit)

	// Archive retrieval collaborator
	archive := scraper.NewClient(&scraper.Config{
		BaseURL: cfg.Scraper.BaseURL,
		Timeout: time.Duration(cfg.Scraper.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	// Search orchestrator
	searchSvc := searchuc.New(
		runRepo, msgRepo, analysisRepo,
		gate, trans, scorer, assessor,
		archive, logger,
	).
		WithMaxConcurrentScoring(cfg.Pipeline.MaxConcurrentScoring).
		WithListLimit(cfg.Pipeline.ListLimit)

	// Stats service — counters from repositories, budget from the guard
	statsSvc := usageuc.New(runRepo, msgRepo, analysisRepo, usageRepo, guard)

	// Health service
	healthSvc := healthuc.New(store, base, archive)

	// Create chi server
	server := chiTransport.NewServer(searchSvc, channelSvc, statsSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// Let in-flight pipeline runs reach a terminal status before exiting.
	searchSvc.Wait()

	logger.Info("Server stopped gracefully")
}

// stageGenerator wraps the shared budget-guarded generator with per-stage
// labelling so metrics and logs attribute every call to its pipeline stage.
func stageGenerator(guard *generationuc.BudgetGuard, model, stage string, logger *zap.Logger) generationuc.Generator {
	return generationuc.NewInstrumented(guard, model, stage, logger)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
