package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/infra/observability"
	"github.com/boddenberg/estimator-bff-go/internal/ratelimit"
	"github.com/boddenberg/estimator-bff-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the router wires into handlers.
type Deps struct {
	Auth      *service.AuthService
	Clients   *service.ClientService
	Estimates *service.EstimateService
	Materials *service.MaterialService
	Profiles  *service.ProfileService
	Documents *service.DocumentService
	Billing   *service.BillingService

	// Store backs /healthz and /readyz. Nil skips the dependency check.
	Store Pinger
	// Limiter may be nil to disable rate limiting.
	Limiter *ratelimit.Limiter
	Tiers   ratelimit.Tiers

	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// limit returns the rate-limit middleware for endpoint under the named tier.
func (d *Deps) limit(endpoint, tier string) func(http.Handler) http.Handler {
	if d.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	cfg, err := d.Tiers.Get(tier)
	if err != nil {
		panic(err)
	}
	return ratelimit.Middleware(d.Limiter, endpoint, cfg, d.Metrics, d.Logger)
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, d.Metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Store))
	r.Get("/readyz", readyzHandler(d.Store, logger))
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(d.Auth, d.Limiter, d.Tiers.Auth, d.Metrics, logger))

		// Clients
		r.With(d.limit("clients", ratelimit.TierAPI)).Get("/clients", listClientsHandler(d.Clients, logger))
		r.With(d.limit("clients", ratelimit.TierAPI)).Post("/clients", createClientHandler(d.Clients, logger))
		r.With(d.limit("clients", ratelimit.TierAPI)).Get("/clients/{id}", getClientHandler(d.Clients, logger))
		r.With(d.limit("clients", ratelimit.TierAPI)).Patch("/clients/{id}", updateClientHandler(d.Clients, logger))
		r.With(d.limit("clients", ratelimit.TierAPI)).Delete("/clients/{id}", deleteClientHandler(d.Clients, logger))

		// Estimates
		r.With(d.limit("estimates", ratelimit.TierAPI)).Get("/estimates", listEstimatesHandler(d.Estimates, logger))
		r.With(d.limit("estimates", ratelimit.TierAPI)).Post("/estimates", createEstimateHandler(d.Estimates, logger))
		r.With(d.limit("estimates", ratelimit.TierAPI)).Get("/estimates/{id}", getEstimateHandler(d.Estimates, logger))
		r.With(d.limit("estimates", ratelimit.TierAPI)).Patch("/estimates/{id}", updateEstimateHandler(d.Estimates, logger))
		r.With(d.limit("estimates", ratelimit.TierAPI)).Delete("/estimates/{id}", deleteEstimateHandler(d.Estimates, logger))
		r.With(d.limit("estimates-pdf", ratelimit.TierExpensive)).Get("/estimates/{id}/pdf", estimatePDFHandler(d.Documents, logger))
		r.With(d.limit("dashboard", ratelimit.TierAPI)).Get("/dashboard", dashboardHandler(d.Estimates, logger))

		// Materials
		r.With(d.limit("materials", ratelimit.TierAPI)).Get("/materials", listMaterialsHandler(d.Materials, logger))
		r.With(d.limit("materials", ratelimit.TierAPI)).Post("/materials", createMaterialHandler(d.Materials, logger))
		r.With(d.limit("materials", ratelimit.TierAPI)).Patch("/materials/{id}", updateMaterialHandler(d.Materials, logger))
		r.With(d.limit("materials", ratelimit.TierAPI)).Delete("/materials/{id}", deleteMaterialHandler(d.Materials, logger))
		r.With(d.limit("catalog", ratelimit.TierAPI)).Get("/catalog", catalogHandler(d.Materials, logger))

		// Profile
		r.With(d.limit("profile", ratelimit.TierAPI)).Get("/profile", getProfileHandler(d.Profiles, logger))
		r.With(d.limit("profile", ratelimit.TierAPI)).Patch("/profile", updateProfileHandler(d.Profiles, logger))

		// Billing
		r.With(d.limit("billing", ratelimit.TierAPI)).Get("/billing/plans", plansHandler(d.Billing))
		r.With(d.limit("billing-checkout", ratelimit.TierSensitive)).Post("/billing/checkout", checkoutHandler(d.Billing, logger))
		r.With(d.limit("billing-portal", ratelimit.TierExpensive)).Post("/billing/portal", portalHandler(d.Billing, logger))
	})

	return r
}

// ============================================================
// Operational endpoints
// ============================================================

func checkStore(ctx context.Context, store Pinger) domain.ServiceHealth {
	start := time.Now()
	err := store.Ping(ctx)
	status := "healthy"
	if err != nil {
		status = "unhealthy"
	}
	return domain.ServiceHealth{
		Name:        "database",
		Status:      status,
		LatencyMs:   time.Since(start).Milliseconds(),
		LastChecked: time.Now().UTC().Format(time.RFC3339),
	}
}

func healthzHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := []domain.ServiceHealth{
			{Name: "estimator-api", Status: "healthy", LastChecked: time.Now().UTC().Format(time.RFC3339)},
		}
		overall := "healthy"
		if store != nil {
			s := checkStore(r.Context(), store)
			if s.Status != "healthy" {
				// The process is alive; only its backend is not.
				s.Status = "degraded"
				overall = "degraded"
			}
			services = append(services, s)
		}
		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler(store Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				logger.Warn("readiness check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
