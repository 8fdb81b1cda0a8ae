package stripe_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/infra/stripe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newGateway(t *testing.T, h http.HandlerFunc) *stripe.Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return stripe.NewGateway("sk_test_123", stripe.NewBackends(srv.URL, srv.Client()), zap.NewNop())
}

func TestCreateCustomer(t *testing.T) {
	var path, idem, email, uid string
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		idem = r.Header.Get("Idempotency-Key")
		assert.NoError(t, r.ParseForm())
		email = r.PostForm.Get("email")
		uid = r.PostForm.Get("metadata[user_id]")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cus_123","object":"customer"}`))
	})

	id, err := g.CreateCustomer(context.Background(), domain.CustomerParams{UserID: "u1", Email: "a@b.co", CompanyName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "cus_123", id)
	assert.Equal(t, "/v1/customers", path)
	assert.Equal(t, "customer-u1", idem)
	assert.Equal(t, "a@b.co", email)
	assert.Equal(t, "u1", uid)
}

func TestCreateCheckoutSession(t *testing.T) {
	var form map[string]string
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		form = map[string]string{
			"mode":     r.PostForm.Get("mode"),
			"customer": r.PostForm.Get("customer"),
			"price":    r.PostForm.Get("line_items[0][price]"),
			"success":  r.PostForm.Get("success_url"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_1","object":"checkout.session","url":"https://checkout.example/cs_1"}`))
	})

	url, err := g.CreateCheckoutSession(context.Background(), domain.CheckoutParams{
		CustomerID: "cus_123",
		PriceID:    "price_pro",
		UserID:     "u1",
		Plan:       domain.PlanPro,
		SuccessURL: "http://app/dashboard?checkout=success",
		CancelURL:  "http://app/settings?checkout=canceled",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/cs_1", url)
	assert.Equal(t, "subscription", form["mode"])
	assert.Equal(t, "cus_123", form["customer"])
	assert.Equal(t, "price_pro", form["price"])
	assert.Equal(t, "http://app/dashboard?checkout=success", form["success"])
}

func TestCreatePortalSession(t *testing.T) {
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/billing_portal/sessions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"bps_1","object":"billing_portal.session","url":"https://portal.example/bps_1"}`))
	})

	url, err := g.CreatePortalSession(context.Background(), "cus_123", "http://app/settings")
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example/bps_1", url)
}

func TestStripeErrorMapsToExternalService(t *testing.T) {
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such price"}}`))
	})

	_, err := g.CreateCheckoutSession(context.Background(), domain.CheckoutParams{CustomerID: "cus_1", PriceID: "bad"})
	var ext *domain.ErrExternalService
	require.True(t, errors.As(err, &ext), "got %v", err)
	assert.Equal(t, "stripe", ext.Service)
}
