package service

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/infra/observability"
	"github.com/boddenberg/estimator-bff-go/internal/infra/resilience"
	"github.com/boddenberg/estimator-bff-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var documentTracer = otel.Tracer("service/documents")

// DocumentService exports estimates as PDF documents.
type DocumentService struct {
	estimates port.EstimateStore
	profiles  *ProfileService
	renderer  port.DocumentRenderer
	bulkhead  *resilience.Bulkhead
	timeout   time.Duration
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewDocumentService creates the service. At most maxConcurrent renders run
// at once and each is bounded by timeout.
func NewDocumentService(
	estimates port.EstimateStore,
	profiles *ProfileService,
	renderer port.DocumentRenderer,
	maxConcurrent int,
	timeout time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *DocumentService {
	return &DocumentService{
		estimates: estimates,
		profiles:  profiles,
		renderer:  renderer,
		bulkhead:  resilience.NewBulkhead(maxConcurrent),
		timeout:   timeout,
		metrics:   metrics,
		logger:    logger,
	}
}

// Export renders the estimate owned by userID.
func (s *DocumentService) Export(ctx context.Context, userID, estimateID string) (*domain.RenderedDocument, error) {
	ctx, span := documentTracer.Start(ctx, "DocumentService.Export")
	defer span.End()
	span.SetAttributes(attribute.String("estimate.id", estimateID))

	var (
		estimate *domain.Estimate
		profile  *domain.Profile
	)

	// Estimate and profile are independent reads.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		estimate, err = s.estimates.GetEstimate(gctx, userID, estimateID)
		return err
	})
	g.Go(func() error {
		p, err := s.profiles.Get(gctx, userID)
		if err != nil {
			// The document falls back to default company details.
			s.logger.Warn("document: profile unavailable", zap.String("user_id", userID), zap.Error(err))
			return nil
		}
		profile = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := domain.PrepareDocument(estimate, profile)

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrTimeout{Operation: "pdf render"}
	}
	defer s.bulkhead.Release()

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	body, err := s.renderer.Render(rctx, data)
	s.metrics.ObserveRender(time.Since(start))
	if err != nil {
		s.metrics.IncrExternalError("pdf")
		s.logger.Error("document: render failed",
			zap.String("user_id", userID),
			zap.String("estimate_id", estimateID),
			zap.Error(err),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &domain.ErrTimeout{Operation: "pdf render"}
		}
		return nil, &domain.ErrExternalService{Service: "pdf", Err: err}
	}

	clientName := ""
	if estimate.Client != nil {
		clientName = estimate.Client.Name
	}
	return &domain.RenderedDocument{
		Filename:    domain.DocumentFilename(clientName, estimate.CreatedAt),
		ContentType: "application/pdf",
		Body:        body,
	}, nil
}
