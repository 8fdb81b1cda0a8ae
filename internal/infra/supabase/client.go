// Package supabase implements the persistence ports over Supabase PostgREST.
// Every query is filtered by the owner column, so rows of another user are
// indistinguishable from missing rows.
package supabase

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boddenberg/estimator-bff-go/internal/infra/resilience"
	"github.com/boddenberg/estimator-bff-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

var _ port.Store = (*Client)(nil)

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// Ping checks that PostgREST answers. Used by /readyz.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	return c.read(ctx, "supabase", func() error {
		_, err := c.doRequest(ctx, http.MethodGet, "profiles?select=id&limit=1")
		return err
	})
}

// Close is a no-op; the HTTP client is owned by the caller.
func (c *Client) Close() error { return nil }

// read runs an idempotent request through the breaker with retries.
func (c *Client) read(ctx context.Context, service string, fn func() error) error {
	return c.wrap(service, resilience.Call(ctx, c.cb, c.cfg, true, fn))
}

// write runs a mutating request through the breaker exactly once.
func (c *Client) write(ctx context.Context, service string, fn func() error) error {
	return c.wrap(service, resilience.Call(ctx, c.cb, c.cfg, false, fn))
}

// wrap converts transport failures to domain errors. Domain errors raised
// inside fn (ErrNotFound mostly) pass through unchanged.
func (c *Client) wrap(service string, err error) error {
	if err == nil {
		return nil
	}
	if domainErr := asDomainError(err); domainErr != nil {
		return domainErr
	}
	if err == resilience.ErrOpen {
		return circuitOpen()
	}
	return externalErr(service, err)
}

func (c *Client) restURL(path string) string {
	return fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
}
