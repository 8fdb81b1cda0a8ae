// Package memstore is a process-local implementation of every persistence
// port. It backs DATA_BACKEND=memory and the service and handler tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/port"

	"github.com/google/uuid"
)

type Store struct {
	mu sync.RWMutex

	clients   map[string]domain.Client
	estimates map[string]storedEstimate
	items     map[string][]domain.LineItem // by estimate id
	materials map[string]domain.Material
	system    map[string]domain.Material
	profiles  map[string]domain.Profile

	seq int64
	now func() time.Time
}

var _ port.Store = (*Store)(nil)

type storedEstimate struct {
	domain.Estimate
	seq int64
}

func New() *Store {
	return &Store{
		clients:   make(map[string]domain.Client),
		estimates: make(map[string]storedEstimate),
		items:     make(map[string][]domain.LineItem),
		materials: make(map[string]domain.Material),
		system:    make(map[string]domain.Material),
		profiles:  make(map[string]domain.Profile),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock used for created_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// ============================================================
// Clients
// ============================================================

func (s *Store) ListClients(_ context.Context, userID, search string) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.Client, 0)
	for _, c := range s.clients {
		if c.UserID != userID {
			continue
		}
		if term != "" && !matchesClient(c, term) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func matchesClient(c domain.Client, term string) bool {
	for _, field := range []string{c.Name, domain.Deref(c.Email), domain.Deref(c.Phone)} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func (s *Store) GetClient(_ context.Context, userID, id string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[id]
	if !ok || c.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "client", ID: id}
	}
	return &c, nil
}

func (s *Store) CreateClient(_ context.Context, c *domain.Client) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := *c
	row.ID = uuid.NewString()
	row.CreatedAt = s.now()
	s.clients[row.ID] = row
	return &row, nil
}

func (s *Store) UpdateClient(_ context.Context, c *domain.Client) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.clients[c.ID]
	if !ok || existing.UserID != c.UserID {
		return nil, &domain.ErrNotFound{Resource: "client", ID: c.ID}
	}
	row := *c
	row.CreatedAt = existing.CreatedAt
	s.clients[row.ID] = row
	return &row, nil
}

func (s *Store) DeleteClient(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[id]
	if !ok || c.UserID != userID {
		return &domain.ErrNotFound{Resource: "client", ID: id}
	}
	delete(s.clients, id)

	// Estimates keep their history but lose the reference.
	for eid, e := range s.estimates {
		if e.ClientID != nil && *e.ClientID == id {
			e.ClientID = nil
			s.estimates[eid] = e
		}
	}
	return nil
}

// ============================================================
// Estimates
// ============================================================

func (s *Store) ListEstimates(_ context.Context, userID string, q domain.EstimateQuery) ([]domain.Estimate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q.Normalize()

	rows := make([]storedEstimate, 0)
	for _, e := range s.estimates {
		if e.UserID != userID {
			continue
		}
		if q.Status != "" && e.Status != q.Status {
			continue
		}
		rows = append(rows, e)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	if q.Offset >= len(rows) {
		return []domain.Estimate{}, nil
	}
	end := q.Offset + q.Limit
	if end > len(rows) {
		end = len(rows)
	}

	out := make([]domain.Estimate, 0, end-q.Offset)
	for _, row := range rows[q.Offset:end] {
		e := row.Estimate
		e.Client = s.clientFor(e)
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) clientFor(e domain.Estimate) *domain.Client {
	if e.ClientID == nil {
		return nil
	}
	c, ok := s.clients[*e.ClientID]
	if !ok || c.UserID != e.UserID {
		return nil
	}
	return &c
}

func (s *Store) GetEstimate(_ context.Context, userID, id string) (*domain.Estimate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.estimates[id]
	if !ok || row.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "estimate", ID: id}
	}
	e := row.Estimate
	e.Client = s.clientFor(e)

	items := append([]domain.LineItem(nil), s.items[id]...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].SortOrder < items[j].SortOrder })
	e.Items = items
	return &e, nil
}

func (s *Store) CreateEstimate(_ context.Context, e *domain.Estimate) (*domain.Estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := *e
	row.ID = uuid.NewString()
	row.CreatedAt = s.now()
	row.Client = nil
	row.Items = nil

	s.seq++
	s.estimates[row.ID] = storedEstimate{Estimate: row, seq: s.seq}
	return &row, nil
}

func (s *Store) UpdateEstimate(_ context.Context, e *domain.Estimate, from domain.EstimateStatus) (*domain.Estimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.estimates[e.ID]
	if !ok || existing.UserID != e.UserID {
		return nil, &domain.ErrNotFound{Resource: "estimate", ID: e.ID}
	}
	if existing.Status != from {
		return nil, domain.StaleEstimate(e.ID)
	}

	// Only the mutable columns change; totals and created_at are snapshots.
	row := existing.Estimate
	row.ClientID = e.ClientID
	row.JobAddress = e.JobAddress
	row.Status = e.Status
	row.Notes = e.Notes
	row.ValidUntil = e.ValidUntil
	row.SentAt = e.SentAt
	row.PDFURL = e.PDFURL
	s.estimates[e.ID] = storedEstimate{Estimate: row, seq: existing.seq}

	return &row, nil
}

func (s *Store) DeleteEstimate(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.estimates[id]
	if !ok || row.UserID != userID {
		return &domain.ErrNotFound{Resource: "estimate", ID: id}
	}
	delete(s.estimates, id)
	return nil
}

func (s *Store) CreateLineItems(_ context.Context, items []domain.LineItem) ([]domain.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.LineItem, 0, len(items))
	for _, it := range items {
		it.ID = uuid.NewString()
		s.items[it.EstimateID] = append(s.items[it.EstimateID], it)
		out = append(out, it)
	}
	return out, nil
}

func (s *Store) DeleteLineItems(_ context.Context, estimateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, estimateID)
	return nil
}

// LineItemCount reports how many items are stored for estimateID,
// including orphans whose estimate is gone.
func (s *Store) LineItemCount(estimateID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items[estimateID])
}

func (s *Store) StatusTotals(_ context.Context, userID string) ([]domain.StatusTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StatusTotal, 0)
	for _, e := range s.estimates {
		if e.UserID == userID {
			out = append(out, domain.StatusTotal{Status: e.Status, Total: e.Total})
		}
	}
	return out, nil
}

// ============================================================
// Materials
// ============================================================

func (s *Store) ListMaterials(_ context.Context, userID string, trade domain.Trade) ([]domain.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Material, 0)
	for _, m := range s.materials {
		if m.UserID == nil || *m.UserID != userID {
			continue
		}
		if trade != "" && m.Trade != trade {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetMaterial(_ context.Context, userID, id string) (*domain.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.materials[id]
	if !ok || m.UserID == nil || *m.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "material", ID: id}
	}
	return &m, nil
}

func (s *Store) CreateMaterial(_ context.Context, m *domain.Material) (*domain.Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := *m
	row.ID = uuid.NewString()
	row.CreatedAt = s.now()
	s.materials[row.ID] = row
	return &row, nil
}

func (s *Store) UpdateMaterial(_ context.Context, m *domain.Material) (*domain.Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.materials[m.ID]
	if !ok || existing.UserID == nil || m.UserID == nil || *existing.UserID != *m.UserID {
		return nil, &domain.ErrNotFound{Resource: "material", ID: m.ID}
	}
	row := *m
	row.CreatedAt = existing.CreatedAt
	row.IsCustom = true
	s.materials[row.ID] = row
	return &row, nil
}

func (s *Store) DeleteMaterial(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.materials[id]
	if !ok || m.UserID == nil || *m.UserID != userID {
		return &domain.ErrNotFound{Resource: "material", ID: id}
	}
	delete(s.materials, id)
	return nil
}

func (s *Store) UpsertSystemMaterials(_ context.Context, items []domain.Material) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range items {
		m.UserID = nil
		m.IsCustom = false
		if m.CreatedAt.IsZero() {
			m.CreatedAt = s.now()
		}
		s.system[m.ID] = m
	}
	return len(items), nil
}

// SystemMaterialCount reports how many catalog rows have been seeded.
func (s *Store) SystemMaterialCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.system)
}

// ============================================================
// Profiles
// ============================================================

func (s *Store) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
	}
	return &p, nil
}

func (s *Store) UpsertProfile(_ context.Context, p *domain.Profile) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := *p
	if existing, ok := s.profiles[p.ID]; ok {
		row.CreatedAt = existing.CreatedAt
		if row.StripeCustomerID == "" {
			row.StripeCustomerID = existing.StripeCustomerID
		}
	} else if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	s.profiles[row.ID] = row
	return &row, nil
}

func (s *Store) SetStripeCustomerID(_ context.Context, userID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		p = *domain.NewProfile(userID)
		p.CreatedAt = s.now()
	}
	p.StripeCustomerID = customerID
	s.profiles[userID] = p
	return nil
}
