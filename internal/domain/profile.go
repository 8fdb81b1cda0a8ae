package domain

import (
	"strings"
	"time"
)

// Fallbacks applied when a user has no profile row yet.
const (
	DefaultMarkupPercent = 20.0
	DefaultTaxPercent    = 8.25
	DefaultLaborRate     = 75.0
	DefaultPaymentTerms  = "Net 30"
	DefaultCompanyName   = "Your Company"
)

// SubscriptionStatus mirrors the billing state stored on the profile.
type SubscriptionStatus string

const (
	SubscriptionTrial    SubscriptionStatus = "trial"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
)

// Profile holds the contractor's company details and pricing defaults.
// ID is the auth user id.
type Profile struct {
	ID                 string             `json:"id"`
	CompanyName        string             `json:"company_name"`
	CompanyLogoURL     string             `json:"company_logo_url"`
	Phone              string             `json:"phone"`
	Address            string             `json:"address"`
	DefaultMarkup      float64            `json:"default_markup"`
	DefaultLaborRate   float64            `json:"default_labor_rate"`
	TaxRate            float64            `json:"tax_rate"`
	PaymentTerms       string             `json:"payment_terms"`
	Trade              Trade              `json:"trade"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	StripeCustomerID   string             `json:"stripe_customer_id,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

// NewProfile returns the profile a freshly signed-up user starts with.
func NewProfile(userID string) *Profile {
	return &Profile{
		ID:                 userID,
		DefaultMarkup:      DefaultMarkupPercent,
		DefaultLaborRate:   DefaultLaborRate,
		TaxRate:            DefaultTaxPercent,
		PaymentTerms:       DefaultPaymentTerms,
		SubscriptionStatus: SubscriptionTrial,
	}
}

// PricingDefaults are the values frozen into a new estimate.
type PricingDefaults struct {
	MarkupPercent float64
	TaxPercent    float64
	LaborRate     float64
	PaymentTerms  string
}

// Defaults returns p's pricing defaults, falling back when p is nil.
func (p *Profile) Defaults() PricingDefaults {
	if p == nil {
		return PricingDefaults{
			MarkupPercent: DefaultMarkupPercent,
			TaxPercent:    DefaultTaxPercent,
			LaborRate:     DefaultLaborRate,
			PaymentTerms:  DefaultPaymentTerms,
		}
	}
	d := PricingDefaults{
		MarkupPercent: p.DefaultMarkup,
		TaxPercent:    p.TaxRate,
		LaborRate:     p.DefaultLaborRate,
		PaymentTerms:  p.PaymentTerms,
	}
	if d.PaymentTerms == "" {
		d.PaymentTerms = DefaultPaymentTerms
	}
	return d
}

// ProfileUpdate is the body of PATCH /v1/profile.
type ProfileUpdate struct {
	CompanyName      *string  `json:"company_name"`
	CompanyLogoURL   *string  `json:"company_logo_url"`
	Phone            *string  `json:"phone"`
	Address          *string  `json:"address"`
	DefaultMarkup    *float64 `json:"default_markup"`
	DefaultLaborRate *float64 `json:"default_labor_rate"`
	TaxRate          *float64 `json:"tax_rate"`
	PaymentTerms     *string  `json:"payment_terms"`
	Trade            *string  `json:"trade"`
}

// Apply validates the update and merges it into p.
func (u *ProfileUpdate) Apply(p *Profile) error {
	if u.DefaultMarkup != nil {
		if *u.DefaultMarkup < 0 || *u.DefaultMarkup > 1000 {
			return &ErrValidation{Field: "default_markup", Message: "must be between 0 and 1000"}
		}
		p.DefaultMarkup = *u.DefaultMarkup
	}
	if u.DefaultLaborRate != nil {
		if *u.DefaultLaborRate < 0 {
			return &ErrValidation{Field: "default_labor_rate", Message: "must not be negative"}
		}
		p.DefaultLaborRate = *u.DefaultLaborRate
	}
	if u.TaxRate != nil {
		if *u.TaxRate < 0 || *u.TaxRate > 100 {
			return &ErrValidation{Field: "tax_rate", Message: "must be between 0 and 100"}
		}
		p.TaxRate = *u.TaxRate
	}
	if u.Trade != nil {
		if strings.TrimSpace(*u.Trade) == "" {
			p.Trade = ""
		} else {
			t, err := ParseTrade(*u.Trade)
			if err != nil {
				return err
			}
			p.Trade = t
		}
	}
	if u.CompanyName != nil {
		p.CompanyName = strings.TrimSpace(*u.CompanyName)
	}
	if u.CompanyLogoURL != nil {
		p.CompanyLogoURL = strings.TrimSpace(*u.CompanyLogoURL)
	}
	if u.Phone != nil {
		p.Phone = strings.TrimSpace(*u.Phone)
	}
	if u.Address != nil {
		p.Address = strings.TrimSpace(*u.Address)
	}
	if u.PaymentTerms != nil {
		p.PaymentTerms = strings.TrimSpace(*u.PaymentTerms)
	}
	return nil
}
