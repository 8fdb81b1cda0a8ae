package domain

import (
	"strings"
	"time"
)

// Client is a customer of the contractor.
type Client struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     *string   `json:"email"`
	Phone     *string   `json:"phone"`
	Address   *string   `json:"address"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientInput is the body of POST /v1/clients.
type ClientInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

// ToClient validates the input and builds an unsaved client owned by userID.
// Empty optional fields are stored as null.
func (in *ClientInput) ToClient(userID string) (*Client, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &ErrValidation{Field: "name", Message: "Client name is required"}
	}
	return &Client{
		UserID:  userID,
		Name:    name,
		Email:   NullableString(in.Email),
		Phone:   NullableString(in.Phone),
		Address: NullableString(in.Address),
		Notes:   NullableString(in.Notes),
	}, nil
}

// ClientUpdate is the body of PATCH /v1/clients/{id}. Nil fields are left
// untouched; an empty string clears an optional field.
type ClientUpdate struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
}

// Apply merges the update into c.
func (u *ClientUpdate) Apply(c *Client) error {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return &ErrValidation{Field: "name", Message: "Client name is required"}
		}
		c.Name = name
	}
	if u.Email != nil {
		c.Email = NullableString(*u.Email)
	}
	if u.Phone != nil {
		c.Phone = NullableString(*u.Phone)
	}
	if u.Address != nil {
		c.Address = NullableString(*u.Address)
	}
	if u.Notes != nil {
		c.Notes = NullableString(*u.Notes)
	}
	return nil
}

// NullableString returns nil for blank input, otherwise a pointer to the
// trimmed value.
func NullableString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
