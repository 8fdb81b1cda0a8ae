package domain_test

import (
	"testing"
	"time"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
)

func TestDocumentFilename(t *testing.T) {
	created := time.Date(2024, 2, 14, 23, 0, 0, 0, time.UTC)

	tests := []struct {
		client string
		want   string
	}{
		{"Acme Corp.", "Estimate_Acme_Corp__2024-02-14.pdf"},
		{"", "Estimate_Client_2024-02-14.pdf"},
		{"O'Brien & Sons", "Estimate_O_Brien___Sons_2024-02-14.pdf"},
		{"Café", "Estimate_Caf__2024-02-14.pdf"},
	}

	for _, tt := range tests {
		if got := domain.DocumentFilename(tt.client, created); got != tt.want {
			t.Errorf("DocumentFilename(%q) = %q, want %q", tt.client, got, tt.want)
		}
	}
}

func TestPrepareDocument(t *testing.T) {
	e := &domain.Estimate{
		ID:        "abcdef12-3456",
		CreatedAt: time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC),
		Subtotal:  120,
		Tax:       9.9,
		Total:     129.9,
		Client: &domain.Client{
			Name:    "Jane Doe",
			Address: ptr("1 Main St"),
		},
		Items: []domain.LineItem{
			{Type: domain.ItemMaterial, Description: "Pipe", Quantity: 2, Unit: "ft", UnitPrice: 25, Total: 50},
			{Type: domain.ItemLabor, Description: "Install", Quantity: 1, Unit: "hours", UnitPrice: 50, Total: 50},
		},
	}

	d := domain.PrepareDocument(e, nil)

	if d.Company.Name != "Your Company" {
		t.Errorf("expected default company name, got %q", d.Company.Name)
	}
	if d.Estimate.JobAddress != "1 Main St" {
		t.Errorf("expected job address to fall back to client address, got %q", d.Estimate.JobAddress)
	}
	if d.Estimate.Number != "ABCDEF12" {
		t.Errorf("expected short number, got %q", d.Estimate.Number)
	}
	if len(d.Materials) != 1 || len(d.Labor) != 1 {
		t.Fatalf("expected 1 material and 1 labor line, got %d/%d", len(d.Materials), len(d.Labor))
	}
	if d.Labor[0].Hours != 1 || d.Labor[0].Rate != 50 {
		t.Errorf("unexpected labor line: %+v", d.Labor[0])
	}
	if d.Totals.Total != 129.9 || d.Totals.Materials != 50 {
		t.Errorf("unexpected totals: %+v", d.Totals)
	}
	if d.Estimate.PaymentTerms != "Net 30" {
		t.Errorf("expected default payment terms, got %q", d.Estimate.PaymentTerms)
	}
}

func TestPrepareDocument_UsesProfile(t *testing.T) {
	e := &domain.Estimate{ID: "x", JobAddress: ptr("9 Oak Ave")}
	p := &domain.Profile{CompanyName: "Cool Air LLC", Phone: "555-0100", PaymentTerms: "Due on receipt"}

	d := domain.PrepareDocument(e, p)

	if d.Company.Name != "Cool Air LLC" || d.Company.Phone != "555-0100" {
		t.Errorf("unexpected company: %+v", d.Company)
	}
	if d.Estimate.JobAddress != "9 Oak Ave" {
		t.Errorf("expected explicit job address, got %q", d.Estimate.JobAddress)
	}
	if d.Estimate.PaymentTerms != "Due on receipt" {
		t.Errorf("expected profile payment terms, got %q", d.Estimate.PaymentTerms)
	}
}
