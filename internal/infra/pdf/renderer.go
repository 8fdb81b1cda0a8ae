// Package pdf renders estimate documents with fpdf.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/boddenberg/estimator-bff-go/internal/domain"

	"github.com/go-pdf/fpdf"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("pdf")

// FooterText is printed at the bottom of every page.
const FooterText = "Generated by QuickBid Pro - Professional Estimating Software"

type rgb struct{ r, g, b int }

var (
	colorText   = rgb{17, 24, 39}
	colorMuted  = rgb{107, 114, 128}
	colorBody   = rgb{55, 65, 81}
	colorAccent = rgb{37, 99, 235}
	colorRule   = rgb{229, 231, 235}
	colorHeadBg = rgb{249, 250, 251}
	colorFooter = rgb{156, 163, 175}
)

const (
	pageMargin = 40.0
	rowHeight  = 18.0
)

// Renderer implements port.DocumentRenderer.
type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

// Render lays out data on US Letter pages. It returns ctx.Err() if the
// context ends first; the layout goroutine finishes in the background.
func (r *Renderer) Render(ctx context.Context, data *domain.DocumentData) ([]byte, error) {
	_, span := tracer.Start(ctx, "PDF.Render")
	defer span.End()
	span.SetAttributes(
		attribute.Int("materials.count", len(data.Materials)),
		attribute.Int("labor.count", len(data.Labor)),
	)

	type result struct {
		body []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := render(data)
		done <- result{body, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.body, res.err
	}
}

type page struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
	w   float64 // usable width
}

func render(data *domain.DocumentData) ([]byte, error) {
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, 60)
	doc.SetTitle("Estimate "+data.Estimate.Number, true)
	doc.SetCreator("estimator", true)

	pw, _ := doc.GetPageSize()
	p := &page{pdf: doc, tr: doc.UnicodeTranslatorFromDescriptor(""), w: pw - 2*pageMargin}

	doc.SetFooterFunc(func() {
		doc.SetY(-45)
		p.rule(1)
		p.font("", 8, colorFooter)
		doc.CellFormat(p.w, 20, p.tr(FooterText), "", 0, "C", false, 0, "")
	})
	doc.AddPage()

	p.header(data)
	p.parties(data)
	if len(data.Materials) > 0 {
		p.materials(data.Materials)
	}
	if len(data.Labor) > 0 {
		p.labor(data.Labor)
	}
	p.totals(data.Totals)
	if strings.TrimSpace(data.Estimate.Notes) != "" {
		p.notes(data.Estimate.Notes)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *page) font(style string, size float64, c rgb) {
	p.pdf.SetFont("Helvetica", style, size)
	p.pdf.SetTextColor(c.r, c.g, c.b)
}

func (p *page) rule(width float64) {
	p.pdf.SetDrawColor(colorRule.r, colorRule.g, colorRule.b)
	p.pdf.SetLineWidth(width)
	y := p.pdf.GetY()
	p.pdf.Line(pageMargin, y, pageMargin+p.w, y)
}

func (p *page) header(data *domain.DocumentData) {
	doc := p.pdf
	half := p.w / 2
	top := doc.GetY()

	p.font("B", 18, colorText)
	doc.CellFormat(half, 22, p.tr(data.Company.Name), "", 2, "L", false, 0, "")
	p.font("", 9, colorMuted)
	for _, line := range []string{data.Company.Address, data.Company.Phone} {
		if line != "" {
			doc.CellFormat(half, 12, p.tr(line), "", 2, "L", false, 0, "")
		}
	}
	leftBottom := doc.GetY()

	doc.SetXY(pageMargin+half, top)
	p.font("B", 24, colorAccent)
	doc.CellFormat(half, 28, "ESTIMATE", "", 2, "R", false, 0, "")
	p.font("", 9, colorMuted)
	doc.CellFormat(half, 12, p.tr("#"+data.Estimate.Number), "", 2, "R", false, 0, "")
	doc.CellFormat(half, 12, p.tr("Date: "+data.Estimate.Date), "", 2, "R", false, 0, "")
	if data.Estimate.ValidUntil != "" {
		doc.CellFormat(half, 12, p.tr("Valid Until: "+data.Estimate.ValidUntil), "", 2, "R", false, 0, "")
	}

	doc.SetXY(pageMargin, math.Max(leftBottom, doc.GetY())+14)
	p.rule(1)
	doc.Ln(24)
}

func (p *page) parties(data *domain.DocumentData) {
	doc := p.pdf
	half := p.w / 2
	top := doc.GetY()

	p.font("B", 8, colorMuted)
	doc.CellFormat(half, 12, "BILL TO", "", 2, "L", false, 0, "")
	p.font("B", 12, colorText)
	doc.CellFormat(half, 16, p.tr(data.Client.Name), "", 2, "L", false, 0, "")
	p.font("", 9, colorMuted)
	for _, line := range []string{data.Client.Address, data.Client.Email, data.Client.Phone} {
		if line != "" {
			doc.CellFormat(half, 12, p.tr(line), "", 2, "L", false, 0, "")
		}
	}
	leftBottom := doc.GetY()

	doc.SetXY(pageMargin+half, top)
	p.font("B", 8, colorMuted)
	doc.CellFormat(half, 12, "JOB SITE", "", 2, "L", false, 0, "")
	p.font("", 9, colorMuted)
	job := data.Estimate.JobAddress
	if job == "" {
		job = "Same as billing address"
	}
	doc.SetX(pageMargin + half)
	doc.MultiCell(half, 12, p.tr(job), "", "L", false)

	doc.SetXY(pageMargin, math.Max(leftBottom, doc.GetY())+24)
}

func (p *page) sectionTitle(title string) {
	p.font("B", 11, colorText)
	p.pdf.CellFormat(p.w, 18, title, "", 1, "L", false, 0, "")
	p.rule(1)
	p.pdf.Ln(8)
}

func (p *page) tableHeader(cols []string, widths []float64, aligns []string) {
	doc := p.pdf
	doc.SetFillColor(colorHeadBg.r, colorHeadBg.g, colorHeadBg.b)
	doc.SetDrawColor(colorRule.r, colorRule.g, colorRule.b)
	p.font("B", 8, colorMuted)
	for i, c := range cols {
		doc.CellFormat(widths[i], rowHeight, c, "TB", 0, aligns[i], true, 0, "")
	}
	doc.Ln(-1)
}

func (p *page) row(cells []string, widths []float64, aligns []string) {
	doc := p.pdf
	for i, c := range cells {
		style := ""
		col := colorBody
		if i == len(cells)-1 {
			style, col = "B", colorText
		}
		p.font(style, 9, col)
		doc.CellFormat(widths[i], rowHeight, p.tr(c), "B", 0, aligns[i], false, 0, "")
	}
	doc.Ln(-1)
}

func (p *page) columns(weights ...float64) []float64 {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	out := make([]float64, len(weights))
	for i, w := range weights {
		out[i] = p.w * w / sum
	}
	return out
}

func (p *page) materials(items []domain.DocumentItem) {
	p.sectionTitle("Materials")
	widths := p.columns(4, 1, 1.5, 1.5)
	aligns := []string{"L", "R", "R", "R"}
	p.tableHeader([]string{"DESCRIPTION", "QTY", "UNIT PRICE", "TOTAL"}, widths, aligns)
	for _, it := range items {
		qty := strings.TrimSpace(formatQuantity(it.Quantity) + " " + it.Unit)
		p.row([]string{it.Description, qty, FormatCurrency(it.UnitPrice), FormatCurrency(it.Total)}, widths, aligns)
	}
	p.pdf.Ln(12)
}

func (p *page) labor(items []domain.DocumentLabor) {
	p.sectionTitle("Labor")
	widths := p.columns(4, 1, 1.5, 1.5)
	aligns := []string{"L", "R", "R", "R"}
	p.tableHeader([]string{"DESCRIPTION", "HOURS", "RATE", "TOTAL"}, widths, aligns)
	for _, it := range items {
		p.row([]string{it.Description, formatQuantity(it.Hours), FormatCurrency(it.Rate) + "/hr", FormatCurrency(it.Total)}, widths, aligns)
	}
	p.pdf.Ln(12)
}

func (p *page) totals(t domain.DocumentTotals) {
	doc := p.pdf
	const boxW = 200.0
	x := pageMargin + p.w - boxW

	doc.Ln(8)
	p.rule(2)
	doc.Ln(12)

	line := func(label, value string) {
		doc.SetX(x)
		p.font("", 9, colorMuted)
		doc.CellFormat(boxW/2, 14, label, "", 0, "L", false, 0, "")
		p.font("", 9, colorText)
		doc.CellFormat(boxW/2, 14, value, "", 1, "R", false, 0, "")
	}
	line("Subtotal", FormatCurrency(t.Subtotal))
	line("Tax", FormatCurrency(t.Tax))

	doc.Ln(4)
	doc.SetDrawColor(colorRule.r, colorRule.g, colorRule.b)
	doc.SetLineWidth(1)
	doc.Line(x, doc.GetY(), x+boxW, doc.GetY())
	doc.Ln(6)

	doc.SetX(x)
	p.font("B", 12, colorText)
	doc.CellFormat(boxW/2, 18, "Total", "", 0, "L", false, 0, "")
	p.font("B", 12, colorAccent)
	doc.CellFormat(boxW/2, 18, FormatCurrency(t.Total), "", 1, "R", false, 0, "")
}

func (p *page) notes(text string) {
	doc := p.pdf
	doc.Ln(24)
	p.rule(1)
	doc.Ln(16)
	p.font("B", 10, colorText)
	doc.CellFormat(p.w, 14, "Notes & Terms", "", 1, "L", false, 0, "")
	p.font("", 9, colorMuted)
	doc.MultiCell(p.w, 13, p.tr(text), "", "L", false)
}

// FormatCurrency renders v as US dollars, e.g. $1,234.50.
func FormatCurrency(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	whole, frac := s[:len(s)-3], s[len(s)-2:]

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
