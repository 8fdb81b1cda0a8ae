package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
)

func sampleRequest() *domain.CreateEstimateRequest {
	return &domain.CreateEstimateRequest{
		Items: []domain.LineItemInput{
			{Type: domain.ItemMaterial, Description: "Copper pipe", Quantity: 10, Unit: "ft", UnitPrice: 5},
			{Type: domain.ItemLabor, Description: "Install", Quantity: 3, Unit: "hr", UnitPrice: 75},
		},
	}
}

func TestCreateEstimate_PricesWithDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.estimates.Create(ctx, "user-1", sampleRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// base 275, markup 20% → 330.00, tax 8.25% → 27.225 → 27.23
	if e.Subtotal != 330 || e.Tax != 27.23 || e.Total != 357.23 {
		t.Errorf("unexpected totals: %v / %v / %v", e.Subtotal, e.Tax, e.Total)
	}
	if e.Status != domain.EstimateDraft {
		t.Errorf("expected draft, got %s", e.Status)
	}
	if e.SentAt != nil {
		t.Error("draft estimate must not carry sent_at")
	}
	if got := domain.Deref(e.ValidUntil); got != "2026-03-31" {
		t.Errorf("expected valid_until 2026-03-31, got %q", got)
	}
	if got := domain.Deref(e.Notes); got != domain.DefaultPaymentTerms {
		t.Errorf("expected notes to default to payment terms, got %q", got)
	}
	if len(e.Items) != 2 || e.Items[0].Total != 50 || e.Items[1].Total != 225 {
		t.Fatalf("unexpected items: %+v", e.Items)
	}
	if e.Items[1].SortOrder != 1 || e.Items[1].EstimateID != e.ID {
		t.Errorf("items not linked in order: %+v", e.Items[1])
	}
	if v := f.metrics.CounterValue("estimates_created", "draft"); v != 1 {
		t.Errorf("expected 1 created estimate, got %v", v)
	}
}

func TestCreateEstimate_UsesProfileDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.profiles.Update(ctx, "user-1", &domain.ProfileUpdate{
		DefaultMarkup: ptr(0.0),
		TaxRate:       ptr(10.0),
		PaymentTerms:  ptr("Due on receipt"),
	})
	if err != nil {
		t.Fatalf("profile update: %v", err)
	}

	e, err := f.estimates.Create(ctx, "user-1", sampleRequest())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if e.Subtotal != 275 || e.Tax != 27.5 || e.Total != 302.5 {
		t.Errorf("unexpected totals: %v / %v / %v", e.Subtotal, e.Tax, e.Total)
	}
	if got := domain.Deref(e.Notes); got != "Due on receipt" {
		t.Errorf("expected payment terms in notes, got %q", got)
	}

	// Totals are a snapshot of the defaults at creation time.
	if _, err := f.profiles.Update(ctx, "user-1", &domain.ProfileUpdate{TaxRate: ptr(50.0)}); err != nil {
		t.Fatalf("profile update: %v", err)
	}
	got, err := f.estimates.Get(ctx, "user-1", e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Total != 302.5 {
		t.Errorf("stored total changed to %v", got.Total)
	}
}

func TestCreateEstimate_SentStampsSentAt(t *testing.T) {
	f := newFixture(t)
	req := sampleRequest()
	req.Status = "sent"

	e, err := f.estimates.Create(context.Background(), "user-1", req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if e.SentAt == nil || !e.SentAt.Equal(fixedNow) {
		t.Errorf("expected sent_at %v, got %v", fixedNow, e.SentAt)
	}
}

func TestCreateEstimate_RejectsTerminalStatus(t *testing.T) {
	f := newFixture(t)
	req := sampleRequest()
	req.Status = "won"

	_, err := f.estimates.Create(context.Background(), "user-1", req)
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateEstimate_RejectsNegativeQuantity(t *testing.T) {
	f := newFixture(t)
	req := sampleRequest()
	req.Items[0].Quantity = -1

	_, err := f.estimates.Create(context.Background(), "user-1", req)
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) || ve.Field != "items[0].quantity" {
		t.Fatalf("expected validation error on items[0].quantity, got %v", err)
	}
	list, _ := f.estimates.List(context.Background(), "user-1", domain.EstimateQuery{})
	if len(list) != 0 {
		t.Errorf("nothing should be persisted, found %d estimates", len(list))
	}
}

func TestCreateEstimate_ClientAddressFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.clients.Create(ctx, "user-1", &domain.ClientInput{Name: "Jane", Address: "9 Elm St"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	req := sampleRequest()
	req.ClientID = &c.ID
	e, err := f.estimates.Create(ctx, "user-1", req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := domain.Deref(e.JobAddress); got != "9 Elm St" {
		t.Errorf("expected job address from client, got %q", got)
	}
	if e.Client == nil || e.Client.ID != c.ID {
		t.Errorf("expected embedded client, got %+v", e.Client)
	}
}

func TestCreateEstimate_ForeignClientIsValidationError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.clients.Create(ctx, "user-2", &domain.ClientInput{Name: "Other"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	req := sampleRequest()
	req.ClientID = &c.ID
	_, err = f.estimates.Create(ctx, "user-1", req)
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) || ve.Field != "client_id" {
		t.Fatalf("expected validation error on client_id, got %v", err)
	}
}

func TestCreateEstimate_CompensatesWhenItemsFail(t *testing.T) {
	f := newFixture(t)
	f.store.itemsErr = errUpstream
	ctx := context.Background()

	_, err := f.estimates.Create(ctx, "user-1", sampleRequest())
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if len(f.store.deletedIDs) != 1 {
		t.Fatalf("expected one compensating delete, got %d", len(f.store.deletedIDs))
	}

	list, err := f.estimates.List(ctx, "user-1", domain.EstimateQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("estimate without items must not survive, found %d", len(list))
	}
	if v := f.metrics.CounterValue("compensations", "ok"); v != 1 {
		t.Errorf("expected compensation counted, got %v", v)
	}
}

func TestCreateEstimate_FailedCompensationIsNotSurfaced(t *testing.T) {
	f := newFixture(t)
	f.store.itemsErr = errUpstream
	f.store.deleteErr = errors.New("delete failed")

	_, err := f.estimates.Create(context.Background(), "user-1", sampleRequest())
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) || !errors.Is(err, errUpstream) {
		t.Fatalf("expected the original item failure, got %v", err)
	}
	if v := f.metrics.CounterValue("compensations", "failed"); v != 1 {
		t.Errorf("expected failed compensation counted, got %v", v)
	}
}

func TestGetEstimate_ForeignIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.estimates.Create(ctx, "user-1", sampleRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = f.estimates.Get(ctx, "user-2", e.ID)
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateEstimate_StatusFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.estimates.Create(ctx, "user-1", sampleRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sent, err := f.estimates.Update(ctx, "user-1", e.ID, &domain.EstimateUpdate{Status: ptr("sent")})
	if err != nil {
		t.Fatalf("draft → sent: %v", err)
	}
	if sent.SentAt == nil {
		t.Fatal("expected sent_at after sending")
	}
	if sent.Total != e.Total {
		t.Errorf("update must not touch totals: %v != %v", sent.Total, e.Total)
	}

	won, err := f.estimates.Update(ctx, "user-1", e.ID, &domain.EstimateUpdate{Status: ptr("won")})
	if err != nil {
		t.Fatalf("sent → won: %v", err)
	}
	if won.SentAt == nil || !won.SentAt.Equal(*sent.SentAt) {
		t.Errorf("sent_at must survive later transitions")
	}

	_, err = f.estimates.Update(ctx, "user-1", e.ID, &domain.EstimateUpdate{Status: ptr("draft")})
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("won → draft must be rejected, got %v", err)
	}

	if v := f.metrics.CounterValue("status_transitions", "draft", "sent"); v != 1 {
		t.Errorf("expected one draft→sent transition, got %v", v)
	}
}

func TestUpdateEstimate_ConcurrentTerminalTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.estimates.Create(ctx, "user-1", sampleRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Both writers read "draft" before either writes.
	f.store.holdEstimateReads(2)
	results := make(map[string]error, 2)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, status := range []string{"won", "lost"} {
		wg.Add(1)
		go func(status string) {
			defer wg.Done()
			_, err := f.estimates.Update(ctx, "user-1", e.ID, &domain.EstimateUpdate{Status: ptr(status)})
			mu.Lock()
			results[status] = err
			mu.Unlock()
		}(status)
	}
	wg.Wait()
	f.store.releaseEstimateReads()

	var winner string
	conflicts := 0
	for status, err := range results {
		var ce *domain.ErrConflict
		switch {
		case err == nil:
			winner = status
		case errors.As(err, &ce):
			conflicts++
		default:
			t.Fatalf("%s: unexpected error %v", status, err)
		}
	}
	if winner == "" || conflicts != 1 {
		t.Fatalf("expected exactly one winner and one conflict, got %v", results)
	}

	got, err := f.estimates.Get(ctx, "user-1", e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Status) != winner {
		t.Errorf("expected stored status %q, got %q", winner, got.Status)
	}
}

func TestUpdateEstimate_ConcurrentSendKeepsFirstSentAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.estimates.Create(ctx, "user-1", sampleRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.store.holdEstimateReads(2)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.estimates.Update(ctx, "user-1", e.ID, &domain.EstimateUpdate{Status: ptr("sent")})
			errs <- err
		}()
	}
	first, second := <-errs, <-errs
	f.store.releaseEstimateReads()

	var ce *domain.ErrConflict
	if (first == nil) == (second == nil) {
		t.Fatalf("expected one send to win, got %v and %v", first, second)
	}
	if first != nil && !errors.As(first, &ce) || second != nil && !errors.As(second, &ce) {
		t.Fatalf("expected the losing send to conflict, got %v and %v", first, second)
	}
	if v := f.metrics.CounterValue("status_transitions", "draft", "sent"); v != 1 {
		t.Errorf("expected one draft→sent transition, got %v", v)
	}
}

func TestUpdateEstimate_ForeignClientRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.estimates.Create(ctx, "user-1", sampleRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other, err := f.clients.Create(ctx, "user-2", &domain.ClientInput{Name: "Other"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	_, err = f.estimates.Update(ctx, "user-1", e.ID, &domain.EstimateUpdate{ClientID: &other.ID})
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteEstimate_RemovesItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.estimates.Create(ctx, "user-1", sampleRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.estimates.Delete(ctx, "user-2", e.ID); err == nil {
		t.Fatal("foreign delete must fail")
	}
	if f.store.itemDeleteCall != 0 {
		t.Fatal("items must not be touched before ownership is verified")
	}

	if err := f.estimates.Delete(ctx, "user-1", e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := f.store.LineItemCount(e.ID); n != 0 {
		t.Errorf("expected no orphan items, found %d", n)
	}
}

func TestListEstimates_FiltersAndClamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.estimates.Create(ctx, "user-1", sampleRequest()); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	req := sampleRequest()
	req.Status = "sent"
	if _, err := f.estimates.Create(ctx, "user-1", req); err != nil {
		t.Fatalf("create: %v", err)
	}

	sent, err := f.estimates.List(ctx, "user-1", domain.EstimateQuery{Status: domain.EstimateSent})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sent) != 1 {
		t.Errorf("expected 1 sent estimate, got %d", len(sent))
	}

	page, err := f.estimates.List(ctx, "user-1", domain.EstimateQuery{Limit: 1000, Offset: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 1 {
		t.Errorf("expected 1 estimate after offset 3, got %d", len(page))
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		e, err := f.estimates.Create(ctx, "user-1", sampleRequest())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, e.ID)
	}
	for _, st := range []string{"sent", "won"} {
		if _, err := f.estimates.Update(ctx, "user-1", ids[0], &domain.EstimateUpdate{Status: ptr(st)}); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	if _, err := f.estimates.Update(ctx, "user-1", ids[1], &domain.EstimateUpdate{Status: ptr("sent")}); err != nil {
		t.Fatalf("update: %v", err)
	}

	stats, err := f.estimates.Stats(ctx, "user-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEstimates != 4 {
		t.Errorf("expected 4 estimates, got %d", stats.TotalEstimates)
	}
	if stats.WinRate != 25 {
		t.Errorf("expected 25%% win rate, got %d", stats.WinRate)
	}
	if stats.Pending != 1 {
		t.Errorf("expected 1 pending, got %d", stats.Pending)
	}
	if stats.AverageTotal != 357.23 {
		t.Errorf("expected average 357.23, got %v", stats.AverageTotal)
	}
	if len(stats.Recent) != 4 {
		t.Errorf("expected 4 recent estimates, got %d", len(stats.Recent))
	}
}

func TestStats_Empty(t *testing.T) {
	f := newFixture(t)

	stats, err := f.estimates.Stats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEstimates != 0 || stats.WinRate != 0 || stats.AverageTotal != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
	if stats.Recent == nil {
		t.Error("recent must be an empty list, not null")
	}
}
