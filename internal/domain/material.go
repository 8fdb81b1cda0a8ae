package domain

import (
	"strings"
	"time"
)

// DefaultMaterialUnit is used when a custom material omits its unit.
const DefaultMaterialUnit = "each"

// Material is a priced item a contractor can add to an estimate. System
// catalog rows have a nil UserID and IsCustom false.
type Material struct {
	ID           string    `json:"id"`
	UserID       *string   `json:"user_id"`
	Trade        Trade     `json:"trade,omitempty"`
	Name         string    `json:"name"`
	Unit         string    `json:"unit"`
	DefaultPrice float64   `json:"default_price"`
	IsCustom     bool      `json:"is_custom"`
	CreatedAt    time.Time `json:"created_at"`
}

// MaterialInput is the body of POST /v1/materials.
type MaterialInput struct {
	Name         string   `json:"name"`
	Unit         string   `json:"unit"`
	DefaultPrice *float64 `json:"default_price"`
	Trade        string   `json:"trade"`
}

// ToMaterial validates the input and builds an unsaved custom material.
func (in *MaterialInput) ToMaterial(userID string) (*Material, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &ErrValidation{Field: "name", Message: "Material name is required"}
	}
	m := &Material{
		UserID:   &userID,
		Name:     name,
		Unit:     strings.TrimSpace(in.Unit),
		IsCustom: true,
	}
	if m.Unit == "" {
		m.Unit = DefaultMaterialUnit
	}
	if in.DefaultPrice != nil {
		if *in.DefaultPrice < 0 {
			return nil, &ErrValidation{Field: "default_price", Message: "must not be negative"}
		}
		m.DefaultPrice = *in.DefaultPrice
	}
	if strings.TrimSpace(in.Trade) != "" {
		t, err := ParseTrade(in.Trade)
		if err != nil {
			return nil, err
		}
		m.Trade = t
	}
	return m, nil
}

// MaterialUpdate is the body of PATCH /v1/materials/{id}.
type MaterialUpdate struct {
	Name         *string  `json:"name"`
	Unit         *string  `json:"unit"`
	DefaultPrice *float64 `json:"default_price"`
	Trade        *string  `json:"trade"`
}

// Apply merges the update into m.
func (u *MaterialUpdate) Apply(m *Material) error {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return &ErrValidation{Field: "name", Message: "Material name is required"}
		}
		m.Name = name
	}
	if u.Unit != nil {
		m.Unit = strings.TrimSpace(*u.Unit)
		if m.Unit == "" {
			m.Unit = DefaultMaterialUnit
		}
	}
	if u.DefaultPrice != nil {
		if *u.DefaultPrice < 0 {
			return &ErrValidation{Field: "default_price", Message: "must not be negative"}
		}
		m.DefaultPrice = *u.DefaultPrice
	}
	if u.Trade != nil {
		if strings.TrimSpace(*u.Trade) == "" {
			m.Trade = ""
		} else {
			t, err := ParseTrade(*u.Trade)
			if err != nil {
				return err
			}
			m.Trade = t
		}
	}
	return nil
}
