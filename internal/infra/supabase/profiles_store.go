package supabase

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/estimator-bff-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

type profileRow struct {
	ID                 string                    `json:"id"`
	CompanyName        string                    `json:"company_name"`
	CompanyLogoURL     *string                   `json:"company_logo_url"`
	Phone              *string                   `json:"phone"`
	Address            *string                   `json:"address"`
	DefaultMarkup      float64                   `json:"default_markup"`
	DefaultLaborRate   float64                   `json:"default_labor_rate"`
	TaxRate            float64                   `json:"tax_rate"`
	PaymentTerms       string                    `json:"payment_terms"`
	Trade              *string                   `json:"trade"`
	SubscriptionStatus domain.SubscriptionStatus `json:"subscription_status"`
}

// profileJSON tolerates nulls in the optional text columns.
type profileJSON struct {
	ID                 string    `json:"id"`
	CompanyName        *string   `json:"company_name"`
	CompanyLogoURL     *string   `json:"company_logo_url"`
	Phone              *string   `json:"phone"`
	Address            *string   `json:"address"`
	DefaultMarkup      *float64  `json:"default_markup"`
	DefaultLaborRate   *float64  `json:"default_labor_rate"`
	TaxRate            *float64  `json:"tax_rate"`
	PaymentTerms       *string   `json:"payment_terms"`
	Trade              *string   `json:"trade"`
	SubscriptionStatus *string   `json:"subscription_status"`
	StripeCustomerID   *string   `json:"stripe_customer_id"`
	CreatedAt          time.Time `json:"created_at"`
}

// toDomain fills columns left null with the signup defaults.
func (r *profileJSON) toDomain() *domain.Profile {
	p := domain.NewProfile(r.ID)
	p.CompanyName = domain.Deref(r.CompanyName)
	p.CompanyLogoURL = domain.Deref(r.CompanyLogoURL)
	p.Phone = domain.Deref(r.Phone)
	p.Address = domain.Deref(r.Address)
	if r.DefaultMarkup != nil {
		p.DefaultMarkup = *r.DefaultMarkup
	}
	if r.DefaultLaborRate != nil {
		p.DefaultLaborRate = *r.DefaultLaborRate
	}
	if r.TaxRate != nil {
		p.TaxRate = *r.TaxRate
	}
	if r.PaymentTerms != nil {
		p.PaymentTerms = *r.PaymentTerms
	}
	p.Trade = domain.Trade(domain.Deref(r.Trade))
	if r.SubscriptionStatus != nil {
		p.SubscriptionStatus = domain.SubscriptionStatus(*r.SubscriptionStatus)
	}
	p.StripeCustomerID = domain.Deref(r.StripeCustomerID)
	p.CreatedAt = r.CreatedAt
	return p
}

func (c *Client) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := "profiles?id=" + eq(userID) + "&select=*&limit=1"

	var profile *domain.Profile
	err := c.read(ctx, "supabase/profiles", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		row, err := decodeOne[profileJSON](body, "profile", userID)
		if err != nil {
			return err
		}
		profile = row.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// UpsertProfile creates or replaces the editable profile columns. The
// stripe customer id is written only through SetStripeCustomerID.
func (c *Client) UpsertProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", p.ID))

	row := profileRow{
		ID:                 p.ID,
		CompanyName:        p.CompanyName,
		CompanyLogoURL:     domain.NullableString(p.CompanyLogoURL),
		Phone:              domain.NullableString(p.Phone),
		Address:            domain.NullableString(p.Address),
		DefaultMarkup:      p.DefaultMarkup,
		DefaultLaborRate:   p.DefaultLaborRate,
		TaxRate:            p.TaxRate,
		PaymentTerms:       p.PaymentTerms,
		Trade:              domain.NullableString(string(p.Trade)),
		SubscriptionStatus: p.SubscriptionStatus,
	}

	var saved *domain.Profile
	err := c.write(ctx, "supabase/profiles", func() error {
		body, err := c.doUpsert(ctx, "profiles?on_conflict=id", row)
		if err != nil {
			return err
		}
		out, err := decodeOne[profileJSON](body, "profile", p.ID)
		if err != nil {
			return err
		}
		saved = out.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (c *Client) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.SetStripeCustomerID")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	row := map[string]any{"id": userID, "stripe_customer_id": customerID}
	return c.write(ctx, "supabase/profiles", func() error {
		_, err := c.doUpsert(ctx, "profiles?on_conflict=id", row)
		return err
	})
}
