package service

import (
	"context"
	"strings"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var clientTracer = otel.Tracer("service/clients")

// ClientService manages the contractor's clients.
type ClientService struct {
	store  port.ClientStore
	logger *zap.Logger
}

func NewClientService(store port.ClientStore, logger *zap.Logger) *ClientService {
	return &ClientService{store: store, logger: logger}
}

// List returns the user's clients by name, optionally filtered by a search
// term matched against name, email and phone.
func (s *ClientService) List(ctx context.Context, userID, search string) ([]domain.Client, error) {
	ctx, span := clientTracer.Start(ctx, "ClientService.List")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	clients, err := s.store.ListClients(ctx, userID, strings.TrimSpace(search))
	if err != nil {
		return nil, err
	}
	if clients == nil {
		clients = []domain.Client{}
	}
	return clients, nil
}

func (s *ClientService) Get(ctx context.Context, userID, id string) (*domain.Client, error) {
	ctx, span := clientTracer.Start(ctx, "ClientService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	return s.store.GetClient(ctx, userID, id)
}

// Create validates in and stores a new client. Nothing is written when
// validation fails.
func (s *ClientService) Create(ctx context.Context, userID string, in *domain.ClientInput) (*domain.Client, error) {
	ctx, span := clientTracer.Start(ctx, "ClientService.Create")
	defer span.End()

	c, err := in.ToClient(userID)
	if err != nil {
		return nil, err
	}
	created, err := s.store.CreateClient(ctx, c)
	if err != nil {
		return nil, err
	}

	s.logger.Info("client created", zap.String("user_id", userID), zap.String("client_id", created.ID))
	return created, nil
}

func (s *ClientService) Update(ctx context.Context, userID, id string, upd *domain.ClientUpdate) (*domain.Client, error) {
	ctx, span := clientTracer.Start(ctx, "ClientService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	c, err := s.store.GetClient(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := upd.Apply(c); err != nil {
		return nil, err
	}
	return s.store.UpdateClient(ctx, c)
}

// Delete removes the client. Estimates that referenced it keep their
// snapshot and lose the link.
func (s *ClientService) Delete(ctx context.Context, userID, id string) error {
	ctx, span := clientTracer.Start(ctx, "ClientService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	if err := s.store.DeleteClient(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("client deleted", zap.String("user_id", userID), zap.String("client_id", id))
	return nil
}
