package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aiwriterpros/aiwriter/internal"
	"github.com/aiwriterpros/aiwriter/internal/ai"
	"github.com/aiwriterpros/aiwriter/internal/ai/anthropic"
	"github.com/aiwriterpros/aiwriter/internal/ai/mock"
	"github.com/aiwriterpros/aiwriter/internal/billing"
	"github.com/aiwriterpros/aiwriter/internal/handler"
	"github.com/aiwriterpros/aiwriter/internal/metrics"
	"github.com/aiwriterpros/aiwriter/internal/middleware"
	"github.com/aiwriterpros/aiwriter/internal/repository"
	"github.com/aiwriterpros/aiwriter/internal/service"
	"github.com/aiwriterpros/aiwriter/internal/usagestore"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Usage record store
	store, closeStore, err := usagestore.Open(ctx, cfg.UsageStore, cfg.RedisURL, repo, cfg.StoreTimeout)
	if err != nil {
		return fmt.Errorf("usage store initialization failed: %w", err)
	}
	defer closeStore()
	logger.Info("Usage store ready", "backend", cfg.UsageStore)

	generator, err := newGenerator(cfg, logger)
	if err != nil {
		return fmt.Errorf("ai provider initialization failed: %w", err)
	}

	// Initialize services
	userService := service.NewUserService(repo, logger)
	quotaService := service.NewQuotaService(store, nil, logger)
	generationService := service.NewGenerationService(quotaService, generator, logger)

	var billingService billing.Service
	if cfg.BillingEnabled() {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
			ProMonthlyPriceID:      cfg.StripeProMonthlyPriceID,
			ProYearlyPriceID:       cfg.StripeProYearlyPriceID,
			BusinessMonthlyPriceID: cfg.StripeBusinessMonthlyPriceID,
			BusinessYearlyPriceID:  cfg.StripeBusinessYearlyPriceID,
		})
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("Stripe billing disabled, checkout endpoints will answer 501")
	}

	// Initialize middleware
	isSecure := cfg.IsProduction()
	authMw := middleware.NewAuthMiddleware(userService, logger, isSecure)
	csrfMw := middleware.NewCSRFMiddleware(logger, isSecure)
	generateLimiter := middleware.NewRateLimiter(cfg.GenerateRateLimit, cfg.GenerateRateWindow, nil)
	rateLimitMw := middleware.NewRateLimitMiddleware(generateLimiter, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)
	if !metricsAuth.Enabled() {
		logger.Warn("Metrics endpoint is unprotected, set METRICS_USERNAME and METRICS_PASSWORD")
	}

	// Initialize handlers
	usageHandler := handler.NewUsageHandler(quotaService, logger)
	generateHandler := handler.NewGenerateHandler(generationService, logger)
	billingHandler := handler.NewBillingHandler(billingService, userService, cfg.BaseURL, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	requireUser := middleware.Stack(csrfMw.Protect, authMw.WithUser, authMw.RequireUser)

	usageHandler.RegisterRoutes(mux, requireUser)
	generateHandler.RegisterRoutes(mux, requireUser, rateLimitMw.Limit)
	billingHandler.RegisterRoutes(mux, requireUser)
	if billingService != nil {
		webhookHandler := handler.NewWebhookHandler(billingService, quotaService, userService, logger)
		webhookHandler.RegisterRoutes(mux)
	}

	root := middleware.Stack(securityMw.Handler, loggingMw.Handler, metrics.Middleware)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		generateLimiter.Run(gctx)
		return nil
	})

	g.Go(func() error {
		cleanupSessions(gctx, userService, cfg.SessionCleanupInterval, logger)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, initiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func newGenerator(cfg *internal.Config, logger *slog.Logger) (ai.TextGenerator, error) {
	if cfg.AIProvider != "anthropic" {
		logger.Warn("Using mock AI provider")
		return mock.New(logger), nil
	}
	provider, err := anthropic.New(anthropic.Config{
		APIKey: cfg.AnthropicAPIKey,
		Model:  cfg.AnthropicModel,
		ProviderConfig: ai.ProviderConfig{
			MaxRetries:     cfg.AIMaxRetries,
			RetryBaseDelay: cfg.AIRetryBaseDelay,
			RequestTimeout: cfg.AIRequestTimeout,
		},
	}, logger)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

// cleanupSessions deletes expired sessions every interval until ctx ends.
func cleanupSessions(ctx context.Context, users service.UserService, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := users.DeleteExpiredSessions(ctx); err != nil {
				logger.Error("Failed to delete expired sessions", "error", err)
			}
		}
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
