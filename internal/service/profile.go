package service

import (
	"context"
	"errors"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/infra/cache"
	"github.com/boddenberg/estimator-bff-go/internal/infra/observability"
	"github.com/boddenberg/estimator-bff-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var profileTracer = otel.Tracer("service/profile")

// ProfileService reads and edits the per-user profile. Reads are cached
// because every estimate write needs the pricing defaults.
type ProfileService struct {
	store   port.ProfileStore
	cache   *cache.InMemory[*domain.Profile]
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewProfileService(store port.ProfileStore, c *cache.InMemory[*domain.Profile], metrics *observability.Metrics, logger *zap.Logger) *ProfileService {
	return &ProfileService{store: store, cache: c, metrics: metrics, logger: logger}
}

// Get returns the user's profile. A user without a stored row gets the
// signup defaults.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if cached, ok := s.cache.Get(userID); ok {
		s.metrics.IncrCacheHit("profile")
		p := *cached
		return &p, nil
	}
	s.metrics.IncrCacheMiss("profile")

	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	cp := *p
	s.cache.Set(userID, &cp)
	return p, nil
}

func (s *ProfileService) load(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		return domain.NewProfile(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Update applies a validated patch and stores the result.
func (s *ProfileService) Update(ctx context.Context, userID string, upd *domain.ProfileUpdate) (*domain.Profile, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	current, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := upd.Apply(current); err != nil {
		return nil, err
	}

	saved, err := s.store.UpsertProfile(ctx, current)
	if err != nil {
		return nil, err
	}
	s.cache.Delete(userID)

	s.logger.Info("profile updated", zap.String("user_id", userID))
	return saved, nil
}

// Defaults returns the pricing defaults frozen into new estimates.
func (s *ProfileService) Defaults(ctx context.Context, userID string) (domain.PricingDefaults, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return domain.PricingDefaults{}, err
	}
	return p.Defaults(), nil
}

// SetStripeCustomerID records the billing customer for userID.
func (s *ProfileService) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	if err := s.store.SetStripeCustomerID(ctx, userID, customerID); err != nil {
		return err
	}
	s.cache.Delete(userID)
	return nil
}
