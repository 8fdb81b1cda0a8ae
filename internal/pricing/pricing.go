// Package pricing turns line items into estimate totals.
//
// All arithmetic runs on exact decimals; only the final amounts are
// converted back to float64 for transport.
package pricing

import (
	"github.com/boddenberg/estimator-bff-go/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineTotal returns quantity × unitPrice rounded half-up to cents.
func LineTotal(quantity, unitPrice float64) float64 {
	return lineTotal(quantity, unitPrice).Round(2).InexactFloat64()
}

func lineTotal(quantity, unitPrice float64) decimal.Decimal {
	return decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(unitPrice))
}

// ComputeTotals prices items with a markup and a tax rate, both percents.
//
//	base     = Σ quantity × unit_price
//	subtotal = base × (1 + markup/100)
//	tax      = subtotal × taxRate/100
//	total    = subtotal + tax
//
// Subtotal and tax are each rounded half-up to cents and total is their sum,
// so tax == total - subtotal holds exactly. Tax is taken from the unrounded
// subtotal.
func ComputeTotals(items []domain.LineItem, markupPercent, taxPercent float64) domain.Totals {
	base := decimal.Zero
	for _, it := range items {
		base = base.Add(lineTotal(it.Quantity, it.UnitPrice))
	}

	markup := decimal.NewFromFloat(markupPercent).Div(hundred)
	rate := decimal.NewFromFloat(taxPercent).Div(hundred)

	subtotal := base.Mul(decimal.NewFromInt(1).Add(markup))
	tax := subtotal.Mul(rate)

	sub := subtotal.Round(2)
	tx := tax.Round(2)

	return domain.Totals{
		Subtotal: sub.InexactFloat64(),
		Tax:      tx.InexactFloat64(),
		Total:    sub.Add(tx).InexactFloat64(),
	}
}

// BuildItems converts validated inputs into line items with derived totals
// and sequential sort order.
func BuildItems(estimateID string, inputs []domain.LineItemInput) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(inputs))
	for i, in := range inputs {
		items = append(items, domain.LineItem{
			EstimateID:  estimateID,
			Type:        in.Type,
			Description: in.Description,
			Quantity:    in.Quantity,
			Unit:        in.Unit,
			UnitPrice:   in.UnitPrice,
			Total:       LineTotal(in.Quantity, in.UnitPrice),
			SortOrder:   i,
		})
	}
	return items
}

// Average returns the mean of amounts rounded half-up to cents, or 0 for
// an empty slice.
func Average(amounts []float64) float64 {
	if len(amounts) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(decimal.NewFromFloat(a))
	}
	return sum.Div(decimal.NewFromInt(int64(len(amounts)))).Round(2).InexactFloat64()
}

// Percent returns part/whole as a whole percent rounded half-up, or 0 when
// whole is zero.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(part)).Mul(hundred).Div(decimal.NewFromInt(int64(whole))).Round(0).IntPart())
}
