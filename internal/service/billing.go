package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var billingTracer = otel.Tracer("service/billing")

var errBillingDisabled = errors.New("billing is not configured")

// BillingConfig carries the payment settings the service needs.
type BillingConfig struct {
	AppURL  string
	Prices  map[domain.PlanID]string
	Timeout time.Duration
}

// BillingService opens hosted checkout and portal sessions. Every gateway
// call is single-shot and bounded by Timeout.
type BillingService struct {
	gateway  port.BillingGateway
	profiles *ProfileService
	cfg      BillingConfig
	logger   *zap.Logger
}

// NewBillingService creates the service. gateway may be nil when billing
// is not configured; session calls then fail with an upstream error.
func NewBillingService(gateway port.BillingGateway, profiles *ProfileService, cfg BillingConfig, logger *zap.Logger) *BillingService {
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &BillingService{gateway: gateway, profiles: profiles, cfg: cfg, logger: logger}
}

// Plans returns the subscription catalogue.
func (s *BillingService) Plans() []domain.Plan {
	return domain.Plans
}

// Checkout returns the URL of a subscription checkout for plan, creating
// the billing customer on first use.
func (s *BillingService) Checkout(ctx context.Context, user *domain.User, plan string) (*domain.SessionResponse, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.Checkout")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", user.ID), attribute.String("plan", plan))

	planID, err := domain.ParsePlan(plan)
	if err != nil {
		return nil, err
	}
	if s.gateway == nil {
		return nil, &domain.ErrExternalService{Service: "stripe", Err: errBillingDisabled}
	}
	price := s.cfg.Prices[planID]
	if price == "" {
		return nil, &domain.ErrExternalService{Service: "stripe", Err: errors.New("no price configured for plan " + string(planID))}
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	url, err := s.gateway.CreateCheckoutSession(cctx, domain.CheckoutParams{
		CustomerID: customerID,
		PriceID:    price,
		UserID:     user.ID,
		Plan:       planID,
		SuccessURL: s.cfg.AppURL + "/dashboard?checkout=success",
		CancelURL:  s.cfg.AppURL + "/settings?checkout=canceled",
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("checkout session created", zap.String("user_id", user.ID), zap.String("plan", string(planID)))
	return &domain.SessionResponse{URL: url}, nil
}

func (s *BillingService) ensureCustomer(ctx context.Context, user *domain.User) (string, error) {
	profile, err := s.profiles.Get(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if profile.StripeCustomerID != "" {
		return profile.StripeCustomerID, nil
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	id, err := s.gateway.CreateCustomer(cctx, domain.CustomerParams{
		UserID:      user.ID,
		Email:       user.Email,
		CompanyName: profile.CompanyName,
	})
	if err != nil {
		return "", err
	}
	if err := s.profiles.SetStripeCustomerID(ctx, user.ID, id); err != nil {
		return "", err
	}

	s.logger.Info("billing customer created", zap.String("user_id", user.ID))
	return id, nil
}

// Portal returns the billing portal URL of a subscribed user.
func (s *BillingService) Portal(ctx context.Context, userID string) (*domain.SessionResponse, error) {
	ctx, span := billingTracer.Start(ctx, "BillingService.Portal")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.StripeCustomerID == "" {
		return nil, &domain.ErrValidation{Message: "No subscription found"}
	}
	if s.gateway == nil {
		return nil, &domain.ErrExternalService{Service: "stripe", Err: errBillingDisabled}
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	url, err := s.gateway.CreatePortalSession(cctx, profile.StripeCustomerID, s.cfg.AppURL+"/settings")
	if err != nil {
		return nil, err
	}
	return &domain.SessionResponse{URL: url}, nil
}
