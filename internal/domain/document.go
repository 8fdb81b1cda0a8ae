package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// DocumentData is the renderer-facing view of an estimate. It carries plain
// values only so a renderer never needs to know about persistence shapes.
type DocumentData struct {
	Company   DocumentCompany  `json:"company"`
	Client    DocumentClient   `json:"client"`
	Estimate  DocumentEstimate `json:"estimate"`
	Materials []DocumentItem   `json:"materials"`
	Labor     []DocumentLabor  `json:"labor"`
	Totals    DocumentTotals   `json:"totals"`
}

type DocumentCompany struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	LogoURL string `json:"logo_url"`
}

type DocumentClient struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type DocumentEstimate struct {
	Number       string `json:"number"`
	Date         string `json:"date"`
	ValidUntil   string `json:"valid_until"`
	JobAddress   string `json:"job_address"`
	Notes        string `json:"notes"`
	PaymentTerms string `json:"payment_terms"`
}

type DocumentItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

type DocumentLabor struct {
	Description string  `json:"description"`
	Hours       float64 `json:"hours"`
	Rate        float64 `json:"rate"`
	Total       float64 `json:"total"`
}

type DocumentTotals struct {
	Materials float64 `json:"materials"`
	Labor     float64 `json:"labor"`
	Subtotal  float64 `json:"subtotal"`
	Tax       float64 `json:"tax"`
	Total     float64 `json:"total"`
}

// RenderedDocument is a finished PDF ready to stream.
type RenderedDocument struct {
	Filename    string
	ContentType string
	Body        []byte
}

// DocumentFilename builds Estimate_{client}_{YYYY-MM-DD}.pdf, replacing
// every non-alphanumeric character of the client name with "_".
func DocumentFilename(clientName string, created time.Time) string {
	if strings.TrimSpace(clientName) == "" {
		clientName = "Client"
	}
	safe := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, clientName)
	return fmt.Sprintf("Estimate_%s_%s.pdf", safe, created.UTC().Format(DateLayout))
}

// PrepareDocument flattens an estimate, its client and the owner's profile
// into DocumentData. profile may be nil.
func PrepareDocument(e *Estimate, profile *Profile) *DocumentData {
	d := &DocumentData{
		Company: DocumentCompany{Name: DefaultCompanyName},
		Estimate: DocumentEstimate{
			Number:     shortID(e.ID),
			Date:       e.CreatedAt.UTC().Format(DateLayout),
			ValidUntil: Deref(e.ValidUntil),
			JobAddress: Deref(e.JobAddress),
			Notes:      Deref(e.Notes),
		},
		Materials: []DocumentItem{},
		Labor:     []DocumentLabor{},
		Totals: DocumentTotals{
			Subtotal: e.Subtotal,
			Tax:      e.Tax,
			Total:    e.Total,
		},
	}

	if profile != nil {
		if profile.CompanyName != "" {
			d.Company.Name = profile.CompanyName
		}
		d.Company.Address = profile.Address
		d.Company.Phone = profile.Phone
		d.Company.LogoURL = profile.CompanyLogoURL
		d.Estimate.PaymentTerms = profile.PaymentTerms
	}
	if d.Estimate.PaymentTerms == "" {
		d.Estimate.PaymentTerms = DefaultPaymentTerms
	}

	if c := e.Client; c != nil {
		d.Client = DocumentClient{
			Name:    c.Name,
			Email:   Deref(c.Email),
			Phone:   Deref(c.Phone),
			Address: Deref(c.Address),
		}
		if d.Estimate.JobAddress == "" {
			d.Estimate.JobAddress = d.Client.Address
		}
	}

	for _, it := range e.Items {
		switch it.Type {
		case ItemLabor:
			d.Labor = append(d.Labor, DocumentLabor{
				Description: it.Description,
				Hours:       it.Quantity,
				Rate:        it.UnitPrice,
				Total:       it.Total,
			})
			d.Totals.Labor += it.Total
		default:
			d.Materials = append(d.Materials, DocumentItem{
				Description: it.Description,
				Quantity:    it.Quantity,
				Unit:        it.Unit,
				UnitPrice:   it.UnitPrice,
				Total:       it.Total,
			})
			d.Totals.Materials += it.Total
		}
	}
	return d
}

func shortID(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}
