package domain

import "strings"

// PlanID identifies a subscription plan.
type PlanID string

const (
	PlanStarter PlanID = "starter"
	PlanPro     PlanID = "pro"
)

// Plan describes a subscription tier offered at checkout.
type Plan struct {
	ID           PlanID   `json:"id"`
	Name         string   `json:"name"`
	MonthlyPrice int      `json:"price"`
	Features     []string `json:"features"`
}

// Plans is the catalogue returned by GET /v1/billing/plans.
var Plans = []Plan{
	{
		ID:           PlanStarter,
		Name:         "Starter",
		MonthlyPrice: 79,
		Features: []string{
			"Up to 50 estimates/month",
			"Basic material database",
			"PDF generation",
			"Email support",
		},
	},
	{
		ID:           PlanPro,
		Name:         "Pro",
		MonthlyPrice: 149,
		Features: []string{
			"Unlimited estimates",
			"Full material database",
			"PDF generation",
			"Custom branding",
			"Priority support",
			"Client portal",
			"Analytics dashboard",
		},
	},
}

// ParsePlan accepts "starter" or "pro".
func ParsePlan(s string) (PlanID, error) {
	switch p := PlanID(strings.ToLower(strings.TrimSpace(s))); p {
	case PlanStarter, PlanPro:
		return p, nil
	}
	return "", &ErrValidation{Field: "plan", Message: "Invalid plan"}
}

// CheckoutRequest is the body of POST /v1/billing/checkout.
type CheckoutRequest struct {
	Plan string `json:"plan"`
}

// CheckoutParams is what the billing gateway needs to open a session.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	UserID     string
	Plan       PlanID
	SuccessURL string
	CancelURL  string
}

// CustomerParams describes a billing customer to create.
type CustomerParams struct {
	UserID      string
	Email       string
	CompanyName string
}

// SessionResponse carries the hosted page URL the client redirects to.
type SessionResponse struct {
	URL string `json:"url"`
}
