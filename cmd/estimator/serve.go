package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/estimator-bff-go/internal/config"
	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/handler"
	"github.com/boddenberg/estimator-bff-go/internal/infra/cache"
	"github.com/boddenberg/estimator-bff-go/internal/infra/observability"
	"github.com/boddenberg/estimator-bff-go/internal/infra/pdf"
	"github.com/boddenberg/estimator-bff-go/internal/infra/stripe"
	"github.com/boddenberg/estimator-bff-go/internal/port"
	"github.com/boddenberg/estimator-bff-go/internal/ratelimit"
	"github.com/boddenberg/estimator-bff-go/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// --- Config & logger ---
	cfg, logger, err := setup(true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("data_backend", cfg.DataBackend),
		zap.String("rate_limit_backend", cfg.RateLimitBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("render_timeout", cfg.RenderTimeout),
		zap.Bool("billing_enabled", cfg.StripeSecretKey != ""),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, observability.ServiceName)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Persistence ---
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// --- Rate limiting ---
	limiter, closeLimitStore, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimitStore()
	limiter.Start()
	defer limiter.Close()

	tiers, err := loadTiers(cfg.RateLimitFile)
	if err != nil {
		return err
	}

	// --- Cache ---
	profileCache := cache.New[*domain.Profile](cfg.CacheTTL)
	defer profileCache.Close()

	// --- Billing gateway ---
	var gateway port.BillingGateway
	if cfg.StripeSecretKey != "" {
		gateway = stripe.NewGateway(cfg.StripeSecretKey, nil, logger)
	} else {
		logger.Warn("billing: STRIPE_SECRET_KEY not set, checkout and portal are unavailable")
	}

	// --- Services ---
	authSvc := service.NewAuthService(cfg.SupabaseJWTSecret, logger)
	profileSvc := service.NewProfileService(store, profileCache, metrics, logger)
	clientSvc := service.NewClientService(store, logger)
	materialSvc := service.NewMaterialService(store, logger)
	estimateSvc := service.NewEstimateService(store, store, profileSvc, metrics, logger)
	documentSvc := service.NewDocumentService(store, profileSvc, pdf.NewRenderer(), cfg.RenderConcurrency, cfg.RenderTimeout, metrics, logger)
	billingSvc := service.NewBillingService(gateway, profileSvc, service.BillingConfig{
		AppURL: cfg.AppURL,
		Prices: map[domain.PlanID]string{
			domain.PlanStarter: cfg.StripePriceStarter,
			domain.PlanPro:     cfg.StripePricePro,
		},
		Timeout: cfg.BillingTimeout,
	}, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Auth:      authSvc,
		Clients:   clientSvc,
		Estimates: estimateSvc,
		Materials: materialSvc,
		Profiles:  profileSvc,
		Documents: documentSvc,
		Billing:   billingSvc,
		Store:     store,
		Limiter:   limiter,
		Tiers:     tiers,
		Metrics:   metrics,
		Logger:    logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// newLimiter builds the limiter over the configured store. The returned
// func releases the store's connection.
func newLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ratelimit.Limiter, func() error, error) {
	var store ratelimit.Store
	closeStore := func() error { return nil }
	switch cfg.RateLimitBackend {
	case "redis":
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rdb, err := ratelimit.DialRedis(dialCtx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("rate limiting backed by Redis")
		store = ratelimit.NewRedisStore(rdb)
		closeStore = rdb.Close
	default:
		store = ratelimit.NewMemoryStore()
	}

	limiter := ratelimit.New(store,
		ratelimit.WithSweepInterval(cfg.RateLimitSweepInterval),
		ratelimit.WithLogger(logger),
	)
	return limiter, closeStore, nil
}

// loadTiers applies RATE_LIMIT_FILE overrides to the default presets, then
// the per-tier environment variables on top.
func loadTiers(path string) (ratelimit.Tiers, error) {
	tiers := ratelimit.DefaultTiers()

	file, err := config.LoadRateLimitFile(path)
	if err != nil {
		return tiers, err
	}
	env, err := config.RateLimitEnv(ratelimit.TierNames()...)
	if err != nil {
		return tiers, err
	}
	for _, layer := range []map[string]config.RateLimitTier{file.Tiers, env} {
		for name, t := range layer {
			if err := tiers.Override(name, ratelimit.Config{Window: t.Window, MaxRequests: t.MaxRequests}); err != nil {
				return tiers, err
			}
		}
	}
	return tiers, nil
}
