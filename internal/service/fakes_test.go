package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/infra/cache"
	"github.com/boddenberg/estimator-bff-go/internal/infra/memstore"
	"github.com/boddenberg/estimator-bff-go/internal/infra/observability"
	"github.com/boddenberg/estimator-bff-go/internal/service"

	"go.uber.org/zap"
)

var errUpstream = errors.New("upstream unavailable")

// --- Mocks ---

// flakyStore wraps the in-memory store and fails selected calls.
type flakyStore struct {
	*memstore.Store

	mu             sync.Mutex
	itemsErr       error
	deleteErr      error
	profileErr     error
	deletedIDs     []string
	itemDeleteCall int

	// When set, GetEstimate blocks until every holder has read.
	readBarrier *sync.WaitGroup
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: memstore.New()}
}

func (f *flakyStore) CreateLineItems(ctx context.Context, items []domain.LineItem) ([]domain.LineItem, error) {
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	return f.Store.CreateLineItems(ctx, items)
}

func (f *flakyStore) DeleteEstimate(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	f.deletedIDs = append(f.deletedIDs, id)
	f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Store.DeleteEstimate(ctx, userID, id)
}

func (f *flakyStore) DeleteLineItems(ctx context.Context, estimateID string) error {
	f.mu.Lock()
	f.itemDeleteCall++
	f.mu.Unlock()
	return f.Store.DeleteLineItems(ctx, estimateID)
}

// holdEstimateReads makes the next n GetEstimate calls wait for each other.
func (f *flakyStore) holdEstimateReads(n int) {
	wg := &sync.WaitGroup{}
	wg.Add(n)
	f.mu.Lock()
	f.readBarrier = wg
	f.mu.Unlock()
}

func (f *flakyStore) releaseEstimateReads() {
	f.mu.Lock()
	f.readBarrier = nil
	f.mu.Unlock()
}

func (f *flakyStore) GetEstimate(ctx context.Context, userID, id string) (*domain.Estimate, error) {
	e, err := f.Store.GetEstimate(ctx, userID, id)
	f.mu.Lock()
	wg := f.readBarrier
	f.mu.Unlock()
	if wg != nil {
		wg.Done()
		wg.Wait()
	}
	return e, err
}

func (f *flakyStore) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.Store.GetProfile(ctx, userID)
}

type countingProfiles struct {
	*flakyStore
	gets int
}

func (c *countingProfiles) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	c.gets++
	return c.flakyStore.GetProfile(ctx, userID)
}

type stubRenderer struct {
	body []byte
	err  error
	got  *domain.DocumentData
}

func (r *stubRenderer) Render(ctx context.Context, d *domain.DocumentData) ([]byte, error) {
	r.got = d
	if r.err != nil {
		return nil, r.err
	}
	return r.body, nil
}

type stubGateway struct {
	customers int
	checkout  domain.CheckoutParams
	portalFor string
	err       error
}

func (g *stubGateway) CreateCustomer(_ context.Context, p domain.CustomerParams) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.customers++
	return "cus_" + p.UserID, nil
}

func (g *stubGateway) CreateCheckoutSession(_ context.Context, p domain.CheckoutParams) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.checkout = p
	return "https://checkout.example/" + p.CustomerID, nil
}

func (g *stubGateway) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.portalFor = customerID
	return "https://portal.example/" + customerID, nil
}

// --- Fixtures ---

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *flakyStore
	metrics   *observability.Metrics
	profiles  *service.ProfileService
	clients   *service.ClientService
	estimates *service.EstimateService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFlakyStore()
	c := cache.New[*domain.Profile](time.Minute)
	t.Cleanup(c.Close)

	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	profiles := service.NewProfileService(store, c, metrics, logger)
	estimates := service.NewEstimateService(store, store, profiles, metrics, logger)
	estimates.SetClock(func() time.Time { return fixedNow })

	return &fixture{
		store:     store,
		metrics:   metrics,
		profiles:  profiles,
		clients:   service.NewClientService(store, logger),
		estimates: estimates,
	}
}

func ptr[T any](v T) *T { return &v }
