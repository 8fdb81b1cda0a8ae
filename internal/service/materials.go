package service

import (
	"context"
	"strings"

	"github.com/boddenberg/estimator-bff-go/internal/catalog"
	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var materialTracer = otel.Tracer("service/materials")

// MaterialService manages custom materials and serves the system catalog.
type MaterialService struct {
	store  port.MaterialStore
	logger *zap.Logger
}

func NewMaterialService(store port.MaterialStore, logger *zap.Logger) *MaterialService {
	return &MaterialService{store: store, logger: logger}
}

// List returns the user's custom materials, optionally for one trade.
func (s *MaterialService) List(ctx context.Context, userID, trade string) ([]domain.Material, error) {
	ctx, span := materialTracer.Start(ctx, "MaterialService.List")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("trade", trade))

	t, err := optionalTrade(trade)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListMaterials(ctx, userID, t)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Material{}
	}
	return items, nil
}

func (s *MaterialService) Create(ctx context.Context, userID string, in *domain.MaterialInput) (*domain.Material, error) {
	ctx, span := materialTracer.Start(ctx, "MaterialService.Create")
	defer span.End()

	m, err := in.ToMaterial(userID)
	if err != nil {
		return nil, err
	}
	created, err := s.store.CreateMaterial(ctx, m)
	if err != nil {
		return nil, err
	}
	s.logger.Info("material created", zap.String("user_id", userID), zap.String("material_id", created.ID))
	return created, nil
}

func (s *MaterialService) Update(ctx context.Context, userID, id string, upd *domain.MaterialUpdate) (*domain.Material, error) {
	ctx, span := materialTracer.Start(ctx, "MaterialService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("material.id", id))

	m, err := s.store.GetMaterial(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := upd.Apply(m); err != nil {
		return nil, err
	}
	return s.store.UpdateMaterial(ctx, m)
}

func (s *MaterialService) Delete(ctx context.Context, userID, id string) error {
	ctx, span := materialTracer.Start(ctx, "MaterialService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("material.id", id))

	return s.store.DeleteMaterial(ctx, userID, id)
}

// Catalog searches the static system catalog. An empty trade means every
// trade.
func (s *MaterialService) Catalog(trade, search string) ([]domain.Material, error) {
	t, err := optionalTrade(trade)
	if err != nil {
		return nil, err
	}
	items := catalog.Search(t, strings.TrimSpace(search))
	if items == nil {
		items = []domain.Material{}
	}
	return items, nil
}

// SeedCatalog upserts the system catalog into the store.
func (s *MaterialService) SeedCatalog(ctx context.Context) (int, error) {
	ctx, span := materialTracer.Start(ctx, "MaterialService.SeedCatalog")
	defer span.End()

	n, err := s.store.UpsertSystemMaterials(ctx, catalog.All())
	if err != nil {
		return 0, err
	}
	s.logger.Info("catalog seeded", zap.Int("materials", n))
	return n, nil
}

func optionalTrade(s string) (domain.Trade, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return domain.ParseTrade(s)
}
