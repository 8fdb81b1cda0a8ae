package service

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/infra/observability"
	"github.com/boddenberg/estimator-bff-go/internal/port"
	"github.com/boddenberg/estimator-bff-go/internal/pricing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var estimateTracer = otel.Tracer("service/estimates")

// DefaultValidity is how long a new estimate stays valid when the request
// does not say.
const DefaultValidity = 30 * 24 * time.Hour

const recentEstimates = 5

// DefaultsProvider returns the pricing defaults of a user.
type DefaultsProvider interface {
	Defaults(ctx context.Context, userID string) (domain.PricingDefaults, error)
}

// EstimateService owns the estimate lifecycle: pricing at creation, status
// transitions and the two-step estimate + items writes.
type EstimateService struct {
	store    port.EstimateStore
	clients  port.ClientStore
	defaults DefaultsProvider
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewEstimateService(store port.EstimateStore, clients port.ClientStore, defaults DefaultsProvider, metrics *observability.Metrics, logger *zap.Logger) *EstimateService {
	return &EstimateService{
		store:    store,
		clients:  clients,
		defaults: defaults,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (s *EstimateService) SetClock(now func() time.Time) { s.now = now }

// ============================================================
// Create
// ============================================================

// Create prices and stores a new estimate with its line items. Totals are
// computed here from the owner's current defaults and never recomputed.
func (s *EstimateService) Create(ctx context.Context, userID string, req *domain.CreateEstimateRequest) (*domain.Estimate, error) {
	ctx, span := estimateTracer.Start(ctx, "EstimateService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("items", len(req.Items)))

	status, err := req.Validate()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	e := &domain.Estimate{
		UserID:     userID,
		Status:     status,
		JobAddress: domain.NullableString(domain.Deref(req.JobAddress)),
		Notes:      domain.NullableString(domain.Deref(req.Notes)),
		ValidUntil: domain.NullableString(domain.Deref(req.ValidUntil)),
	}

	client, err := s.ownedClient(ctx, userID, req.ClientID)
	if err != nil {
		return nil, err
	}
	if client != nil {
		e.ClientID = &client.ID
		if e.JobAddress == nil {
			e.JobAddress = client.Address
		}
	}

	defaults, err := s.defaults.Defaults(ctx, userID)
	if err != nil {
		return nil, err
	}
	if e.ValidUntil == nil {
		v := now.Add(DefaultValidity).Format(domain.DateLayout)
		e.ValidUntil = &v
	}
	if e.Notes == nil {
		terms := defaults.PaymentTerms
		e.Notes = &terms
	}
	if status == domain.EstimateSent {
		e.SentAt = &now
	}

	items := pricing.BuildItems("", req.Items)
	totals := pricing.ComputeTotals(items, defaults.MarkupPercent, defaults.TaxPercent)
	e.Subtotal, e.Tax, e.Total = totals.Subtotal, totals.Tax, totals.Total

	created, err := s.store.CreateEstimate(ctx, e)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("estimate.id", created.ID))

	created.Items = []domain.LineItem{}
	if len(items) > 0 {
		for i := range items {
			items[i].EstimateID = created.ID
		}
		saved, err := s.store.CreateLineItems(ctx, items)
		if err != nil {
			s.compensate(ctx, userID, created.ID, err)
			return nil, &domain.ErrExternalService{Service: "persistence", Err: err}
		}
		created.Items = saved
	}
	created.Client = client

	s.metrics.IncrEstimateCreated(string(status))
	s.logger.Info("estimate created",
		zap.String("user_id", userID),
		zap.String("estimate_id", created.ID),
		zap.String("status", string(status)),
		zap.Float64("total", created.Total),
	)
	return created, nil
}

// compensate removes an estimate whose items could not be written. Its own
// failure is logged and counted but never returned.
func (s *EstimateService) compensate(ctx context.Context, userID, estimateID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.DeleteEstimate(ctx, userID, estimateID); err != nil {
		s.metrics.IncrCompensation("failed")
		s.logger.Error("compensating delete failed, estimate left without items",
			zap.String("user_id", userID),
			zap.String("estimate_id", estimateID),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return
	}
	s.metrics.IncrCompensation("ok")
	s.logger.Warn("line item write failed, estimate removed",
		zap.String("user_id", userID),
		zap.String("estimate_id", estimateID),
		zap.Error(cause),
	)
}

// ownedClient resolves an optional client reference. A client the user does
// not own is a bad request here, not a missing resource.
func (s *EstimateService) ownedClient(ctx context.Context, userID string, clientID *string) (*domain.Client, error) {
	id := domain.Deref(clientID)
	if id == "" {
		return nil, nil
	}
	c, err := s.clients.GetClient(ctx, userID, id)
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		return nil, &domain.ErrValidation{Field: "client_id", Message: "client not found"}
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ============================================================
// Read
// ============================================================

// Get returns the estimate with its client and items in sort order.
func (s *EstimateService) Get(ctx context.Context, userID, id string) (*domain.Estimate, error) {
	ctx, span := estimateTracer.Start(ctx, "EstimateService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("estimate.id", id))

	e, err := s.store.GetEstimate(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if e.Items == nil {
		e.Items = []domain.LineItem{}
	}
	return e, nil
}

// List returns one page of the user's estimates, newest first.
func (s *EstimateService) List(ctx context.Context, userID string, q domain.EstimateQuery) ([]domain.Estimate, error) {
	ctx, span := estimateTracer.Start(ctx, "EstimateService.List")
	defer span.End()

	q.Normalize()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("status", string(q.Status)),
		attribute.Int("limit", q.Limit),
		attribute.Int("offset", q.Offset),
	)

	list, err := s.store.ListEstimates(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Estimate{}
	}
	return list, nil
}

// Stats summarises the user's estimates for the dashboard.
func (s *EstimateService) Stats(ctx context.Context, userID string) (*domain.DashboardStats, error) {
	ctx, span := estimateTracer.Start(ctx, "EstimateService.Stats")
	defer span.End()

	var (
		totals []domain.StatusTotal
		recent []domain.Estimate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.store.StatusTotals(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.store.ListEstimates(gctx, userID, domain.EstimateQuery{Limit: recentEstimates})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &domain.DashboardStats{TotalEstimates: len(totals), Recent: recent}
	if stats.Recent == nil {
		stats.Recent = []domain.Estimate{}
	}
	won := 0
	amounts := make([]float64, 0, len(totals))
	for _, t := range totals {
		switch t.Status {
		case domain.EstimateWon:
			won++
		case domain.EstimateSent:
			stats.Pending++
		}
		amounts = append(amounts, t.Total)
	}
	stats.WinRate = pricing.Percent(won, len(totals))
	stats.AverageTotal = pricing.Average(amounts)
	return stats, nil
}

// ============================================================
// Update / Delete
// ============================================================

// Update applies a patch to the mutable fields. Status changes go through
// the transition rules.
func (s *EstimateService) Update(ctx context.Context, userID, id string, upd *domain.EstimateUpdate) (*domain.Estimate, error) {
	ctx, span := estimateTracer.Start(ctx, "EstimateService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("estimate.id", id))

	e, err := s.store.GetEstimate(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if upd.ClientID != nil {
		if _, err := s.ownedClient(ctx, userID, upd.ClientID); err != nil {
			return nil, err
		}
	}

	from := e.Status
	if err := upd.Apply(e, s.now()); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateEstimate(ctx, e, from)
	if err != nil {
		return nil, err
	}
	if from != updated.Status {
		s.metrics.IncrStatusTransition(string(from), string(updated.Status))
		s.logger.Info("estimate status changed",
			zap.String("user_id", userID),
			zap.String("estimate_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(updated.Status)),
		)
	}
	return updated, nil
}

// Delete removes the estimate and its line items.
func (s *EstimateService) Delete(ctx context.Context, userID, id string) error {
	ctx, span := estimateTracer.Start(ctx, "EstimateService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("estimate.id", id))

	if _, err := s.store.GetEstimate(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteLineItems(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteEstimate(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("estimate deleted", zap.String("user_id", userID), zap.String("estimate_id", id))
	return nil
}
