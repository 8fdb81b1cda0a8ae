package postgres

import (
	"time"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
)

type clientModel struct {
	ID        string  `gorm:"type:uuid;primaryKey"`
	UserID    string  `gorm:"type:uuid;not null;index"`
	Name      string  `gorm:"not null"`
	Email     *string `gorm:"type:text"`
	Phone     *string `gorm:"type:text"`
	Address   *string `gorm:"type:text"`
	Notes     *string `gorm:"type:text"`
	CreatedAt time.Time
}

func (clientModel) TableName() string { return "clients" }

func (m *clientModel) toDomain() domain.Client {
	return domain.Client{
		ID:        m.ID,
		UserID:    m.UserID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		Address:   m.Address,
		Notes:     m.Notes,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func fromClient(c *domain.Client) clientModel {
	return clientModel{
		ID:        c.ID,
		UserID:    c.UserID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
	}
}

type estimateModel struct {
	ID         string     `gorm:"type:uuid;primaryKey"`
	UserID     string     `gorm:"type:uuid;not null;index:idx_estimates_user_created,priority:1"`
	ClientID   *string    `gorm:"type:uuid;index"`
	JobAddress *string    `gorm:"type:text"`
	Status     string     `gorm:"not null;default:'draft'"`
	Subtotal   float64    `gorm:"type:numeric(12,2);not null;default:0"`
	Tax        float64    `gorm:"type:numeric(12,2);not null;default:0"`
	Total      float64    `gorm:"type:numeric(12,2);not null;default:0"`
	Notes      *string    `gorm:"type:text"`
	ValidUntil *time.Time `gorm:"type:date"`
	CreatedAt  time.Time  `gorm:"index:idx_estimates_user_created,priority:2,sort:desc"`
	SentAt     *time.Time
	PDFURL     *string `gorm:"column:pdf_url;type:text"`
}

func (estimateModel) TableName() string { return "estimates" }

func (m *estimateModel) toDomain() domain.Estimate {
	e := domain.Estimate{
		ID:         m.ID,
		UserID:     m.UserID,
		ClientID:   m.ClientID,
		JobAddress: m.JobAddress,
		Status:     domain.EstimateStatus(m.Status),
		Subtotal:   m.Subtotal,
		Tax:        m.Tax,
		Total:      m.Total,
		Notes:      m.Notes,
		CreatedAt:  m.CreatedAt.UTC(),
		PDFURL:     m.PDFURL,
	}
	if m.ValidUntil != nil {
		s := m.ValidUntil.Format(domain.DateLayout)
		e.ValidUntil = &s
	}
	if m.SentAt != nil {
		t := m.SentAt.UTC()
		e.SentAt = &t
	}
	return e
}

func fromEstimate(e *domain.Estimate) (estimateModel, error) {
	m := estimateModel{
		ID:         e.ID,
		UserID:     e.UserID,
		ClientID:   e.ClientID,
		JobAddress: e.JobAddress,
		Status:     string(e.Status),
		Subtotal:   e.Subtotal,
		Tax:        e.Tax,
		Total:      e.Total,
		Notes:      e.Notes,
		CreatedAt:  e.CreatedAt,
		SentAt:     e.SentAt,
		PDFURL:     e.PDFURL,
	}
	if e.ValidUntil != nil {
		t, err := time.Parse(domain.DateLayout, *e.ValidUntil)
		if err != nil {
			return m, &domain.ErrValidation{Field: "valid_until", Message: "must be a date (YYYY-MM-DD)"}
		}
		m.ValidUntil = &t
	}
	return m, nil
}

type lineItemModel struct {
	ID          string  `gorm:"type:uuid;primaryKey"`
	EstimateID  string  `gorm:"type:uuid;not null;index"`
	Type        string  `gorm:"not null"`
	Description string  `gorm:"not null"`
	Quantity    float64 `gorm:"type:numeric(12,2);not null"`
	Unit        string  `gorm:"not null;default:'each'"`
	UnitPrice   float64 `gorm:"type:numeric(12,2);not null"`
	Total       float64 `gorm:"type:numeric(12,2);not null"`
	SortOrder   int     `gorm:"not null;default:0"`
}

func (lineItemModel) TableName() string { return "estimate_items" }

func (m *lineItemModel) toDomain() domain.LineItem {
	return domain.LineItem{
		ID:          m.ID,
		EstimateID:  m.EstimateID,
		Type:        domain.ItemType(m.Type),
		Description: m.Description,
		Quantity:    m.Quantity,
		Unit:        m.Unit,
		UnitPrice:   m.UnitPrice,
		Total:       m.Total,
		SortOrder:   m.SortOrder,
	}
}

type materialModel struct {
	ID           string  `gorm:"type:uuid;primaryKey"`
	UserID       *string `gorm:"type:uuid;index"`
	Trade        *string `gorm:"type:text;index"`
	Name         string  `gorm:"not null"`
	Unit         string  `gorm:"not null;default:'each'"`
	DefaultPrice float64 `gorm:"type:numeric(12,2);not null;default:0"`
	IsCustom     bool    `gorm:"not null;default:false"`
	CreatedAt    time.Time
}

func (materialModel) TableName() string { return "materials" }

func (m *materialModel) toDomain() domain.Material {
	return domain.Material{
		ID:           m.ID,
		UserID:       m.UserID,
		Trade:        domain.Trade(domain.Deref(m.Trade)),
		Name:         m.Name,
		Unit:         m.Unit,
		DefaultPrice: m.DefaultPrice,
		IsCustom:     m.IsCustom,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

func fromMaterial(m *domain.Material) materialModel {
	return materialModel{
		ID:           m.ID,
		UserID:       m.UserID,
		Trade:        domain.NullableString(string(m.Trade)),
		Name:         m.Name,
		Unit:         m.Unit,
		DefaultPrice: m.DefaultPrice,
		IsCustom:     m.IsCustom,
		CreatedAt:    m.CreatedAt,
	}
}

type profileModel struct {
	ID                 string `gorm:"type:uuid;primaryKey"`
	CompanyName        string
	CompanyLogoURL     *string
	Phone              *string
	Address            *string
	DefaultMarkup      float64 `gorm:"type:numeric(6,2);not null;default:20"`
	DefaultLaborRate   float64 `gorm:"type:numeric(10,2);not null;default:75"`
	TaxRate            float64 `gorm:"type:numeric(5,2);not null;default:8.25"`
	PaymentTerms       string  `gorm:"not null;default:'Net 30'"`
	Trade              *string
	SubscriptionStatus string `gorm:"not null;default:'trial'"`
	StripeCustomerID   *string
	CreatedAt          time.Time
}

func (profileModel) TableName() string { return "profiles" }

func (m *profileModel) toDomain() *domain.Profile {
	return &domain.Profile{
		ID:                 m.ID,
		CompanyName:        m.CompanyName,
		CompanyLogoURL:     domain.Deref(m.CompanyLogoURL),
		Phone:              domain.Deref(m.Phone),
		Address:            domain.Deref(m.Address),
		DefaultMarkup:      m.DefaultMarkup,
		DefaultLaborRate:   m.DefaultLaborRate,
		TaxRate:            m.TaxRate,
		PaymentTerms:       m.PaymentTerms,
		Trade:              domain.Trade(domain.Deref(m.Trade)),
		SubscriptionStatus: domain.SubscriptionStatus(m.SubscriptionStatus),
		StripeCustomerID:   domain.Deref(m.StripeCustomerID),
		CreatedAt:          m.CreatedAt.UTC(),
	}
}

func fromProfile(p *domain.Profile) profileModel {
	return profileModel{
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
		SubscriptionStatus: string(p.SubscriptionStatus),
		StripeCustomerID:   domain.NullableString(p.StripeCustomerID),
		CreatedAt:          p.CreatedAt,
	}
}
