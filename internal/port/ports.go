// Package port defines the interfaces between services and the outside
// world. Every store method is owner-scoped: rows belonging to another user
// behave exactly like missing rows.
package port

import (
	"context"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
)

// ClientStore persists clients.
type ClientStore interface {
	ListClients(ctx context.Context, userID, search string) ([]domain.Client, error)
	GetClient(ctx context.Context, userID, id string) (*domain.Client, error)
	CreateClient(ctx context.Context, c *domain.Client) (*domain.Client, error)
	UpdateClient(ctx context.Context, c *domain.Client) (*domain.Client, error)
	DeleteClient(ctx context.Context, userID, id string) error
}

// EstimateStore persists estimates and their line items.
//
// Estimates and items are written in separate calls; callers own the
// compensation policy when the second write fails.
type EstimateStore interface {
	ListEstimates(ctx context.Context, userID string, q domain.EstimateQuery) ([]domain.Estimate, error)
	// GetEstimate returns the estimate with its client and line items.
	GetEstimate(ctx context.Context, userID, id string) (*domain.Estimate, error)
	CreateEstimate(ctx context.Context, e *domain.Estimate) (*domain.Estimate, error)
	// UpdateEstimate writes e only while the stored status is still from,
	// so concurrent transitions cannot both succeed. A stale from yields
	// ErrConflict.
	UpdateEstimate(ctx context.Context, e *domain.Estimate, from domain.EstimateStatus) (*domain.Estimate, error)
	DeleteEstimate(ctx context.Context, userID, id string) error

	CreateLineItems(ctx context.Context, items []domain.LineItem) ([]domain.LineItem, error)
	DeleteLineItems(ctx context.Context, estimateID string) error

	StatusTotals(ctx context.Context, userID string) ([]domain.StatusTotal, error)
}

// MaterialStore persists user-owned custom materials and, for seeding,
// system catalog rows.
type MaterialStore interface {
	ListMaterials(ctx context.Context, userID string, trade domain.Trade) ([]domain.Material, error)
	GetMaterial(ctx context.Context, userID, id string) (*domain.Material, error)
	CreateMaterial(ctx context.Context, m *domain.Material) (*domain.Material, error)
	UpdateMaterial(ctx context.Context, m *domain.Material) (*domain.Material, error)
	DeleteMaterial(ctx context.Context, userID, id string) error
	UpsertSystemMaterials(ctx context.Context, items []domain.Material) (int, error)
}

// ProfileStore persists the per-user profile. GetProfile returns
// ErrNotFound when no row exists yet.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error)
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
}

// Store bundles every persistence port one backend provides.
type Store interface {
	ClientStore
	EstimateStore
	MaterialStore
	ProfileStore

	Ping(ctx context.Context) error
	Close() error
}

// DocumentRenderer turns prepared estimate data into a PDF.
type DocumentRenderer interface {
	Render(ctx context.Context, data *domain.DocumentData) ([]byte, error)
}

// BillingGateway talks to the payment provider.
type BillingGateway interface {
	CreateCustomer(ctx context.Context, p domain.CustomerParams) (string, error)
	CreateCheckoutSession(ctx context.Context, p domain.CheckoutParams) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}
