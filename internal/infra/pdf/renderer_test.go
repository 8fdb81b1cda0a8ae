package pdf_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/infra/pdf"
)

func sampleDocument() *domain.DocumentData {
	return &domain.DocumentData{
		Company: domain.DocumentCompany{Name: "Acme Plumbing", Address: "1 Main St", Phone: "555-0100"},
		Client:  domain.DocumentClient{Name: "Zoë Müller", Email: "zoe@example.com"},
		Estimate: domain.DocumentEstimate{
			Number:     "3F2A9C1B",
			Date:       "2026-03-01",
			ValidUntil: "2026-03-31",
			Notes:      "Net 30",
		},
		Materials: []domain.DocumentItem{
			{Description: "PEX pipe 1/2\"", Quantity: 100, Unit: "ft", UnitPrice: 0.65, Total: 65},
		},
		Labor: []domain.DocumentLabor{
			{Description: "Install", Hours: 3.5, Rate: 75, Total: 262.5},
		},
		Totals: domain.DocumentTotals{Subtotal: 327.5, Tax: 27.02, Total: 354.52},
	}
}

func TestRender_ProducesPDF(t *testing.T) {
	body, err := pdf.NewRenderer().Render(context.Background(), sampleDocument())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		t.Fatalf("expected PDF header, got %q", body[:min(len(body), 8)])
	}
}

func TestRender_EmptySections(t *testing.T) {
	d := sampleDocument()
	d.Materials = nil
	d.Labor = nil
	d.Estimate.Notes = ""

	body, err := pdf.NewRenderer().Render(context.Background(), d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(body) == 0 {
		t.Fatal("expected non-empty document")
	}
}

func TestRender_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pdf.NewRenderer().Render(ctx, sampleDocument())
	// Either the select observed cancellation or the render won the race.
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{5, "$5.00"},
		{324.75, "$324.75"},
		{1234.5, "$1,234.50"},
		{1234567.891, "$1,234,567.89"},
		{-42.1, "-$42.10"},
	}
	for _, tt := range tests {
		if got := pdf.FormatCurrency(tt.in); got != tt.want {
			t.Errorf("FormatCurrency(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
