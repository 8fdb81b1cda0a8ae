package config

import (
	"os"
	"strconv"
	"time"
)

// Data backends selectable with DATA_BACKEND.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// ProblemMissingJWTSecret is the Validate problem reported when no token
// secret is configured.
const ProblemMissingJWTSecret = "SUPABASE_JWT_SECRET is required to validate access tokens"

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string
	AppURL   string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Persistence
	DataBackend string
	DatabaseURL string
	AutoMigrate bool

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseJWTSecret  string

	// Rate limiting
	RateLimitBackend       string // memory | redis
	RedisURL               string
	RateLimitFile          string
	RateLimitSweepInterval time.Duration

	// Document rendering
	RenderTimeout     time.Duration
	RenderConcurrency int

	// Billing
	StripeSecretKey    string
	StripePriceStarter string
	StripePricePro     string
	BillingTimeout     time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		AppURL:   getEnv("APP_URL", "http://localhost:3000"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		DataBackend: getEnv("DATA_BACKEND", BackendSupabase),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", false),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),

		RateLimitBackend:       getEnv("RATE_LIMIT_BACKEND", "memory"),
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RateLimitFile:          getEnv("RATE_LIMIT_FILE", ""),
		RateLimitSweepInterval: getEnvDuration("RATE_LIMIT_SWEEP_INTERVAL", time.Minute),

		RenderTimeout:     getEnvDuration("RENDER_TIMEOUT", 15*time.Second),
		RenderConcurrency: getEnvInt("RENDER_CONCURRENCY", 4),

		StripeSecretKey:    getEnv("STRIPE_SECRET_KEY", ""),
		StripePriceStarter: getEnv("STRIPE_PRICE_STARTER", ""),
		StripePricePro:     getEnv("STRIPE_PRICE_PRO", ""),
		BillingTimeout:     getEnvDuration("BILLING_TIMEOUT", 10*time.Second),
	}
}

// Validate reports settings that make the chosen backends unusable.
func (c *Config) Validate() error {
	var problems []string
	switch c.DataBackend {
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			problems = append(problems, "SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required for the postgres backend")
		}
	case BackendMemory:
	default:
		problems = append(problems, "DATA_BACKEND must be supabase, postgres or memory")
	}
	if c.SupabaseJWTSecret == "" {
		problems = append(problems, ProblemMissingJWTSecret)
	}
	switch c.RateLimitBackend {
	case "memory", "redis":
	default:
		problems = append(problems, "RATE_LIMIT_BACKEND must be memory or redis")
	}
	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

// Error lists every invalid setting found by Validate.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	msg := "invalid configuration"
	for _, p := range e.Problems {
		msg += "; " + p
	}
	return msg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
