package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/handler"
	"github.com/boddenberg/estimator-bff-go/internal/infra/cache"
	"github.com/boddenberg/estimator-bff-go/internal/infra/memstore"
	"github.com/boddenberg/estimator-bff-go/internal/infra/observability"
	"github.com/boddenberg/estimator-bff-go/internal/ratelimit"
	"github.com/boddenberg/estimator-bff-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const jwtSecret = "router-test-secret-router-test-secret"

type fakeRenderer struct{ err error }

func (f fakeRenderer) Render(context.Context, *domain.DocumentData) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.3 test"), nil
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

type env struct {
	router  http.Handler
	store   *memstore.Store
	metrics *observability.Metrics
}

type envOption func(*handler.Deps)

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	logger := zap.NewNop()
	store := memstore.New()
	metrics := observability.NewMetrics()

	profileCache := cache.New[*domain.Profile](time.Minute)
	t.Cleanup(profileCache.Close)

	profiles := service.NewProfileService(store, profileCache, metrics, logger)
	deps := handler.Deps{
		Auth:      service.NewAuthService(jwtSecret, logger),
		Clients:   service.NewClientService(store, logger),
		Estimates: service.NewEstimateService(store, store, profiles, metrics, logger),
		Materials: service.NewMaterialService(store, logger),
		Profiles:  profiles,
		Documents: service.NewDocumentService(store, profiles, fakeRenderer{}, 2, time.Second, metrics, logger),
		Billing:   service.NewBillingService(nil, profiles, service.BillingConfig{AppURL: "http://app"}, logger),
		Store:     store,
		Limiter:   ratelimit.New(ratelimit.NewMemoryStore()),
		Tiers:     ratelimit.DefaultTiers(),
		Metrics:   metrics,
		Logger:    logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return &env{router: handler.NewRouter(deps), store: store, metrics: metrics}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	claims := service.JWTClaims{
		Email: userID + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{service.SupabaseAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func (e *env) do(t *testing.T, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// --- Operational endpoints ---

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", "", "")
	expectStatus(t, rec, http.StatusOK)

	h := decode[domain.HealthStatus](t, rec)
	if h.Status != "healthy" || len(h.Services) != 2 {
		t.Errorf("unexpected health: %+v", h)
	}
}

func TestHealthz_DegradedBackend(t *testing.T) {
	e := newEnv(t, func(d *handler.Deps) { d.Store = downStore{} })
	rec := e.do(t, http.MethodGet, "/healthz", "", "")
	expectStatus(t, rec, http.StatusOK)

	if h := decode[domain.HealthStatus](t, rec); h.Status != "degraded" {
		t.Errorf("expected degraded, got %q", h.Status)
	}
}

func TestReadyz(t *testing.T) {
	expectStatus(t, newEnv(t).do(t, http.MethodGet, "/readyz", "", ""), http.StatusOK)

	down := newEnv(t, func(d *handler.Deps) { d.Store = downStore{} })
	expectStatus(t, down.do(t, http.MethodGet, "/readyz", "", ""), http.StatusServiceUnavailable)
}

func TestPingAndMetrics(t *testing.T) {
	e := newEnv(t)
	expectStatus(t, e.do(t, http.MethodGet, "/ping", "", ""), http.StatusOK)

	rec := e.do(t, http.MethodGet, "/metrics", "", "")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "estimator_http_request_duration_seconds") {
		t.Error("expected application metrics in /metrics output")
	}
}

// --- Auth ---

func TestUnauthenticated(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/v1/clients", "", "")
	expectStatus(t, rec, http.StatusUnauthorized)
	if body := decode[map[string]string](t, rec); body["error"] != "Unauthorized" {
		t.Errorf("unexpected body: %v", body)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/clients", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestAuthFailuresAreRateLimited(t *testing.T) {
	e := newEnv(t)
	auth := ratelimit.DefaultTiers().Auth

	for i := 0; i < auth.MaxRequests; i++ {
		expectStatus(t, e.do(t, http.MethodGet, "/v1/profile", "", ""), http.StatusUnauthorized)
	}
	rec := e.do(t, http.MethodGet, "/v1/profile", "", "")
	expectStatus(t, rec, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// A valid token still gets through; only failures are counted.
	expectStatus(t, e.do(t, http.MethodGet, "/v1/profile", "user-1", ""), http.StatusOK)
}

// --- Rate limiting ---

func TestRateLimit_ExpensiveTier(t *testing.T) {
	e := newEnv(t, func(d *handler.Deps) {
		d.Tiers.Override(ratelimit.TierExpensive, ratelimit.Config{MaxRequests: 2})
	})

	for i := 0; i < 2; i++ {
		rec := e.do(t, http.MethodPost, "/v1/billing/portal", "user-1", "")
		expectStatus(t, rec, http.StatusBadRequest)
		if rec.Header().Get("X-RateLimit-Remaining") == "" {
			t.Error("expected X-RateLimit-Remaining on allowed requests")
		}
	}

	rec := e.do(t, http.MethodPost, "/v1/billing/portal", "user-1", "")
	expectStatus(t, rec, http.StatusTooManyRequests)
	body := decode[map[string]any](t, rec)
	if body["error"] != "Too many requests" {
		t.Errorf("unexpected body: %v", body)
	}
	if v := e.metrics.CounterValue("rate_limited", "billing-portal"); v != 1 {
		t.Errorf("expected one rejection counted, got %v", v)
	}

	// Other endpoints have their own buckets.
	expectStatus(t, e.do(t, http.MethodGet, "/v1/profile", "user-1", ""), http.StatusOK)
}

// --- Resources ---

func TestClientsFlow(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/v1/clients", "user-1", `{"name":""}`)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = e.do(t, http.MethodPost, "/v1/clients", "user-1", `{"name":"Jane","user_id":"user-2"}`)
	expectStatus(t, rec, http.StatusBadRequest) // unknown field

	rec = e.do(t, http.MethodPost, "/v1/clients", "user-1", `{"name":"Jane","address":"1 Oak Ave"}`)
	expectStatus(t, rec, http.StatusCreated)
	c := decode[domain.Client](t, rec)
	if c.UserID != "user-1" || c.Email != nil {
		t.Errorf("unexpected client: %+v", c)
	}

	list := decode[[]domain.Client](t, e.do(t, http.MethodGet, "/v1/clients?search=jan", "user-1", ""))
	if len(list) != 1 {
		t.Errorf("expected 1 client, got %d", len(list))
	}

	expectStatus(t, e.do(t, http.MethodGet, "/v1/clients/"+c.ID, "user-2", ""), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodPatch, "/v1/clients/"+c.ID, "user-2", `{"name":"x"}`), http.StatusNotFound)

	rec = e.do(t, http.MethodPatch, "/v1/clients/"+c.ID, "user-1", `{"phone":"555-0101"}`)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[domain.Client](t, rec); domain.Deref(got.Phone) != "555-0101" {
		t.Errorf("phone not updated: %+v", got)
	}

	expectStatus(t, e.do(t, http.MethodDelete, "/v1/clients/"+c.ID, "user-1", ""), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodGet, "/v1/clients/"+c.ID, "user-1", ""), http.StatusNotFound)
}

func TestEstimatesFlow(t *testing.T) {
	e := newEnv(t)

	body := `{
		"job_address": "12 Pine Rd",
		"items": [
			{"type":"material","description":"Shingles","quantity":20,"unit":"bundle","unit_price":35.5},
			{"type":"labor","description":"Tear-off","quantity":8,"unit":"hr","unit_price":65}
		]
	}`
	rec := e.do(t, http.MethodPost, "/v1/estimates", "user-1", body)
	expectStatus(t, rec, http.StatusCreated)
	est := decode[domain.Estimate](t, rec)

	// base 1230, +20% = 1476.00, tax 8.25% = 121.77
	if est.Subtotal != 1476 || est.Tax != 121.77 || est.Total != 1597.77 {
		t.Errorf("unexpected totals %v/%v/%v", est.Subtotal, est.Tax, est.Total)
	}
	if len(est.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(est.Items))
	}

	rec = e.do(t, http.MethodPost, "/v1/estimates", "user-1", `{"items":[{"type":"material","description":"x","quantity":1,"unit_price":1,"total":999}]}`)
	expectStatus(t, rec, http.StatusBadRequest) // totals are never accepted

	got := decode[domain.Estimate](t, e.do(t, http.MethodGet, "/v1/estimates/"+est.ID, "user-1", ""))
	if len(got.Items) != 2 || got.Items[0].SortOrder != 0 || got.Items[0].Description != "Shingles" {
		t.Errorf("unexpected items: %+v", got.Items)
	}
	expectStatus(t, e.do(t, http.MethodGet, "/v1/estimates/"+est.ID, "user-2", ""), http.StatusNotFound)

	expectStatus(t, e.do(t, http.MethodPatch, "/v1/estimates/"+est.ID, "user-1", `{"total":1}`), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPatch, "/v1/estimates/"+est.ID, "user-1", `{"status":"bogus"}`), http.StatusBadRequest)

	rec = e.do(t, http.MethodPatch, "/v1/estimates/"+est.ID, "user-1", `{"status":"sent"}`)
	expectStatus(t, rec, http.StatusOK)
	if sent := decode[domain.Estimate](t, rec); sent.SentAt == nil || sent.Total != est.Total {
		t.Errorf("unexpected sent estimate: %+v", sent)
	}
	expectStatus(t, e.do(t, http.MethodPatch, "/v1/estimates/"+est.ID, "user-1", `{"status":"draft"}`), http.StatusBadRequest)

	list := decode[[]domain.Estimate](t, e.do(t, http.MethodGet, "/v1/estimates?status=sent&limit=10", "user-1", ""))
	if len(list) != 1 {
		t.Errorf("expected 1 sent estimate, got %d", len(list))
	}
	expectStatus(t, e.do(t, http.MethodGet, "/v1/estimates?limit=abc", "user-1", ""), http.StatusBadRequest)

	stats := decode[domain.DashboardStats](t, e.do(t, http.MethodGet, "/v1/dashboard", "user-1", ""))
	if stats.TotalEstimates != 1 || stats.Pending != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	expectStatus(t, e.do(t, http.MethodDelete, "/v1/estimates/"+est.ID, "user-2", ""), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodDelete, "/v1/estimates/"+est.ID, "user-1", ""), http.StatusOK)
	if n := e.store.LineItemCount(est.ID); n != 0 {
		t.Errorf("expected items removed, %d left", n)
	}
}

func TestEstimatePDF(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/v1/clients", "user-1", `{"name":"Mary Smith"}`)
	expectStatus(t, rec, http.StatusCreated)
	c := decode[domain.Client](t, rec)

	rec = e.do(t, http.MethodPost, "/v1/estimates", "user-1", `{"client_id":"`+c.ID+`","items":[]}`)
	expectStatus(t, rec, http.StatusCreated)
	est := decode[domain.Estimate](t, rec)

	rec = e.do(t, http.MethodGet, "/v1/estimates/"+est.ID+"/pdf", "user-1", "")
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("unexpected content type %q", ct)
	}
	want := `attachment; filename="Estimate_Mary_Smith_` + est.CreatedAt.UTC().Format(domain.DateLayout) + `.pdf"`
	if cd := rec.Header().Get("Content-Disposition"); cd != want {
		t.Errorf("expected %q, got %q", want, cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Error("expected PDF body")
	}

	expectStatus(t, e.do(t, http.MethodGet, "/v1/estimates/"+est.ID+"/pdf", "user-2", ""), http.StatusNotFound)
}

func TestEstimatePDF_RenderFailure(t *testing.T) {
	e := newEnv(t, func(d *handler.Deps) {
		store := d.Store.(*memstore.Store)
		d.Documents = service.NewDocumentService(store, d.Profiles, fakeRenderer{err: errors.New("boom")}, 1, time.Second, d.Metrics, d.Logger)
	})

	rec := e.do(t, http.MethodPost, "/v1/estimates", "user-1", `{}`)
	expectStatus(t, rec, http.StatusCreated)
	est := decode[domain.Estimate](t, rec)

	rec = e.do(t, http.MethodGet, "/v1/estimates/"+est.ID+"/pdf", "user-1", "")
	expectStatus(t, rec, http.StatusInternalServerError)
	if body := decode[map[string]string](t, rec); body["error"] != "Failed to generate PDF" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestMaterialsAndCatalog(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/v1/materials", "user-1", `{"name":"PVC cement","trade":"plumbing","default_price":8.5}`)
	expectStatus(t, rec, http.StatusCreated)
	m := decode[domain.Material](t, rec)
	if !m.IsCustom || m.Unit != "each" {
		t.Errorf("unexpected material: %+v", m)
	}

	expectStatus(t, e.do(t, http.MethodPost, "/v1/materials", "user-1", `{"name":"x","trade":"masonry"}`), http.StatusBadRequest)

	list := decode[[]domain.Material](t, e.do(t, http.MethodGet, "/v1/materials?trade=plumbing", "user-1", ""))
	if len(list) != 1 {
		t.Errorf("expected 1 material, got %d", len(list))
	}

	expectStatus(t, e.do(t, http.MethodPatch, "/v1/materials/"+m.ID, "user-2", `{"name":"y"}`), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodPatch, "/v1/materials/"+m.ID, "user-1", `{"default_price":9}`), http.StatusOK)
	expectStatus(t, e.do(t, http.MethodDelete, "/v1/materials/"+m.ID, "user-1", ""), http.StatusOK)

	catalog := decode[[]domain.Material](t, e.do(t, http.MethodGet, "/v1/catalog?trade=electrical", "user-1", ""))
	if len(catalog) == 0 {
		t.Fatal("expected electrical catalog")
	}
	for _, c := range catalog {
		if c.Trade != domain.TradeElectrical {
			t.Fatalf("unexpected trade %q in catalog", c.Trade)
		}
	}
}

func TestProfileAndBilling(t *testing.T) {
	e := newEnv(t)

	p := decode[domain.Profile](t, e.do(t, http.MethodGet, "/v1/profile", "user-1", ""))
	if p.DefaultMarkup != domain.DefaultMarkupPercent {
		t.Errorf("expected default markup, got %v", p.DefaultMarkup)
	}

	expectStatus(t, e.do(t, http.MethodPatch, "/v1/profile", "user-1", `{"tax_rate":150}`), http.StatusBadRequest)
	rec := e.do(t, http.MethodPatch, "/v1/profile", "user-1", `{"company_name":"Bright Electric","trade":"electrical"}`)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[domain.Profile](t, rec); got.CompanyName != "Bright Electric" || got.Trade != domain.TradeElectrical {
		t.Errorf("unexpected profile: %+v", got)
	}

	plans := decode[[]domain.Plan](t, e.do(t, http.MethodGet, "/v1/billing/plans", "user-1", ""))
	if len(plans) != 2 {
		t.Errorf("expected 2 plans, got %d", len(plans))
	}

	expectStatus(t, e.do(t, http.MethodPost, "/v1/billing/checkout", "user-1", `{"plan":"gold"}`), http.StatusBadRequest)
	rec = e.do(t, http.MethodPost, "/v1/billing/checkout", "user-1", `{"plan":"pro"}`)
	expectStatus(t, rec, http.StatusInternalServerError)
	if body := decode[map[string]string](t, rec); body["error"] != "internal server error" {
		t.Errorf("upstream detail must not leak: %v", body)
	}

	rec = e.do(t, http.MethodPost, "/v1/billing/portal", "user-1", "")
	expectStatus(t, rec, http.StatusBadRequest)
	if body := decode[map[string]string](t, rec); body["error"] != "No subscription found" {
		t.Errorf("unexpected body: %v", body)
	}
}
