package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/boddenberg/estimator-bff-go/internal/config"
	"github.com/boddenberg/estimator-bff-go/internal/infra/memstore"
	"github.com/boddenberg/estimator-bff-go/internal/infra/observability"
	"github.com/boddenberg/estimator-bff-go/internal/infra/postgres"
	"github.com/boddenberg/estimator-bff-go/internal/infra/resilience"
	"github.com/boddenberg/estimator-bff-go/internal/infra/supabase"
	"github.com/boddenberg/estimator-bff-go/internal/port"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	envFiles []string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "estimator",
	Short:         "Trade estimator API",
	Long:          "Estimator serves the estimating API for HVAC, plumbing, electrical and roofing contractors.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	rootCmd.AddCommand(serveCmd, catalogCmd)
}

// setup loads configuration and builds the logger shared by every command.
func setup(requireAuth bool) (*config.Config, *zap.Logger, error) {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		// Catalog commands never validate tokens.
		if !requireAuth && onlyMissingJWTSecret(err) {
			err = nil
		}
		if err != nil {
			return nil, nil, err
		}
	}

	return cfg, observability.NewLogger(cfg.LogLevel), nil
}

func onlyMissingJWTSecret(err error) bool {
	var cerr *config.Error
	if !errors.As(err, &cerr) || len(cerr.Problems) != 1 {
		return false
	}
	return cerr.Problems[0] == config.ProblemMissingJWTSecret
}

// openStore connects the configured persistence backend.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (port.Store, error) {
	switch cfg.DataBackend {
	case config.BackendSupabase:
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		cb := resilience.NewCircuitBreaker("supabase")
		return supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cb,
			resilience.Config{
				MaxRetries:     cfg.MaxRetries,
				InitialBackoff: cfg.InitialBackoff,
				MaxConcurrency: cfg.MaxConcurrency,
			},
			logger,
		), nil

	case config.BackendPostgres:
		logger.Info("using Postgres as data backend", zap.Bool("auto_migrate", cfg.AutoMigrate))
		store, err := postgres.Open(cfg.DatabaseURL, cfg.AutoMigrate, logger)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		return store, nil

	default:
		logger.Warn("using in-memory data backend, data is lost on restart")
		return memstore.New(), nil
	}
}
