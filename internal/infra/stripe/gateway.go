// Package stripe implements port.BillingGateway on the Stripe API.
package stripe

import (
	"context"
	"errors"
	"net/http"

	"github.com/boddenberg/estimator-bff-go/internal/domain"

	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("stripe")

// Gateway talks to Stripe through a dedicated API client, so tests can
// point it at a local backend without touching package globals.
type Gateway struct {
	api    *client.API
	logger *zap.Logger
}

// NewGateway creates a gateway for secretKey. A nil backends talks to the
// live Stripe endpoints. Calls are never retried by the SDK; a repeated
// checkout must come from the user.
func NewGateway(secretKey string, backends *stripeapi.Backends, logger *zap.Logger) *Gateway {
	if backends == nil {
		backends = &stripeapi.Backends{
			API:     singleShot(stripeapi.APIBackend, nil),
			Connect: singleShot(stripeapi.ConnectBackend, nil),
			Uploads: singleShot(stripeapi.UploadsBackend, nil),
		}
	}
	return &Gateway{api: client.New(secretKey, backends), logger: logger}
}

// singleShot builds a backend with network retries disabled. A nil
// httpClient keeps the SDK default.
func singleShot(kind stripeapi.SupportedBackend, httpClient *http.Client) stripeapi.Backend {
	return stripeapi.GetBackendWithConfig(kind, &stripeapi.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripeapi.Int64(0),
	})
}

// NewBackends builds backends that send every call to baseURL.
func NewBackends(baseURL string, httpClient *http.Client) *stripeapi.Backends {
	cfg := &stripeapi.BackendConfig{
		URL:               stripeapi.String(baseURL),
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripeapi.Int64(0),
		LeveledLogger:     &stripeapi.LeveledLogger{Level: stripeapi.LevelNull},
	}
	b := stripeapi.GetBackendWithConfig(stripeapi.APIBackend, cfg)
	return &stripeapi.Backends{API: b, Connect: b, Uploads: b}
}

// CreateCustomer creates a customer tagged with the auth user id.
func (g *Gateway) CreateCustomer(ctx context.Context, p domain.CustomerParams) (string, error) {
	ctx, span := tracer.Start(ctx, "Stripe.CreateCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", p.UserID))

	params := &stripeapi.CustomerParams{
		Email: stripeapi.String(p.Email),
	}
	if p.CompanyName != "" {
		params.Name = stripeapi.String(p.CompanyName)
	}
	params.Context = ctx
	params.AddMetadata("user_id", p.UserID)
	params.SetIdempotencyKey("customer-" + p.UserID)

	c, err := g.api.Customers.New(params)
	if err != nil {
		return "", g.mapErr("CreateCustomer", err)
	}
	return c.ID, nil
}

// CreateCheckoutSession opens a subscription checkout for one plan.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, p domain.CheckoutParams) (string, error) {
	ctx, span := tracer.Start(ctx, "Stripe.CreateCheckoutSession")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", p.UserID), attribute.String("plan", string(p.Plan)))

	meta := map[string]string{
		"user_id": p.UserID,
		"plan":    string(p.Plan),
	}
	params := &stripeapi.CheckoutSessionParams{
		Customer:           stripeapi.String(p.CustomerID),
		Mode:               stripeapi.String(string(stripeapi.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripeapi.StringSlice([]string{"card"}),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{Price: stripeapi.String(p.PriceID), Quantity: stripeapi.Int64(1)},
		},
		SuccessURL: stripeapi.String(p.SuccessURL),
		CancelURL:  stripeapi.String(p.CancelURL),
		SubscriptionData: &stripeapi.CheckoutSessionSubscriptionDataParams{
			Metadata: meta,
		},
	}
	params.Context = ctx
	params.Metadata = meta

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", g.mapErr("CreateCheckoutSession", err)
	}
	return s.URL, nil
}

// CreatePortalSession opens the self-service billing portal.
func (g *Gateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	ctx, span := tracer.Start(ctx, "Stripe.CreatePortalSession")
	defer span.End()

	params := &stripeapi.BillingPortalSessionParams{
		Customer:  stripeapi.String(customerID),
		ReturnURL: stripeapi.String(returnURL),
	}
	params.Context = ctx

	s, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", g.mapErr("CreatePortalSession", err)
	}
	return s.URL, nil
}

func (g *Gateway) mapErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: "stripe." + op}
	}
	var serr *stripeapi.Error
	if errors.As(err, &serr) {
		g.logger.Warn("stripe: request failed",
			zap.String("op", op),
			zap.Int("status", serr.HTTPStatusCode),
			zap.String("type", string(serr.Type)),
			zap.String("request_id", serr.RequestID),
		)
	} else {
		g.logger.Error("stripe: request failed", zap.String("op", op), zap.Error(err))
	}
	return &domain.ErrExternalService{Service: "stripe", Err: err}
}
