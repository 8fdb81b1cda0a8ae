package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of calendar dates such as valid_until.
const DateLayout = "2006-01-02"

// ============================================================
// Status machine
// ============================================================

// EstimateStatus is the lifecycle state of an estimate.
type EstimateStatus string

const (
	EstimateDraft EstimateStatus = "draft"
	EstimateSent  EstimateStatus = "sent"
	EstimateWon   EstimateStatus = "won"
	EstimateLost  EstimateStatus = "lost"
)

var nextStatuses = map[EstimateStatus][]EstimateStatus{
	EstimateDraft: {EstimateSent, EstimateWon, EstimateLost},
	EstimateSent:  {EstimateWon, EstimateLost},
}

// ParseEstimateStatus accepts only the exact lowercase names of the four
// known states.
func ParseEstimateStatus(s string) (EstimateStatus, error) {
	st := EstimateStatus(s)
	switch st {
	case EstimateDraft, EstimateSent, EstimateWon, EstimateLost:
		return st, nil
	}
	return "", &ErrValidation{Field: "status", Message: fmt.Sprintf("invalid status %q", s)}
}

// IsTerminal reports whether no further transition is possible.
func (s EstimateStatus) IsTerminal() bool {
	return s == EstimateWon || s == EstimateLost
}

// CanTransition reports whether from → to is allowed. Staying in the same
// state is always allowed.
func CanTransition(from, to EstimateStatus) bool {
	if from == to {
		return true
	}
	for _, next := range nextStatuses[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from → to and returns the sent_at value the estimate
// must carry afterwards. sent_at is stamped only the first time the estimate
// enters sent.
func Transition(from, to EstimateStatus, sentAt *time.Time, now time.Time) (*time.Time, error) {
	if !CanTransition(from, to) {
		return sentAt, &ErrValidation{
			Field:   "status",
			Message: fmt.Sprintf("cannot move estimate from %s to %s", from, to),
		}
	}
	if to == EstimateSent && from != to && sentAt == nil {
		t := now.UTC()
		return &t, nil
	}
	return sentAt, nil
}

// ============================================================
// Aggregate
// ============================================================

// ItemType distinguishes materials from labor lines.
type ItemType string

const (
	ItemMaterial ItemType = "material"
	ItemLabor    ItemType = "labor"
)

// LineItem is one line of an estimate. Total is always derived from
// quantity and unit price.
type LineItem struct {
	ID          string   `json:"id"`
	EstimateID  string   `json:"estimate_id"`
	Type        ItemType `json:"type"`
	Description string   `json:"description"`
	Quantity    float64  `json:"quantity"`
	Unit        string   `json:"unit"`
	UnitPrice   float64  `json:"unit_price"`
	Total       float64  `json:"total"`
	SortOrder   int      `json:"sort_order"`
}

// Totals is the monetary summary of an estimate.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// Estimate is the aggregate root. Client and Items are populated on reads
// that embed them.
type Estimate struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	ClientID   *string        `json:"client_id"`
	JobAddress *string        `json:"job_address"`
	Status     EstimateStatus `json:"status"`
	Subtotal   float64        `json:"subtotal"`
	Tax        float64        `json:"tax"`
	Total      float64        `json:"total"`
	Notes      *string        `json:"notes"`
	ValidUntil *string        `json:"valid_until"`
	CreatedAt  time.Time      `json:"created_at"`
	SentAt     *time.Time     `json:"sent_at"`
	PDFURL     *string        `json:"pdf_url"`

	Client *Client    `json:"clients,omitempty"`
	Items  []LineItem `json:"estimate_items,omitempty"`
}

// TransitionTo moves the estimate to status to, stamping sent_at as needed.
func (e *Estimate) TransitionTo(to EstimateStatus, now time.Time) error {
	sentAt, err := Transition(e.Status, to, e.SentAt, now)
	if err != nil {
		return err
	}
	e.Status = to
	e.SentAt = sentAt
	return nil
}

// ============================================================
// Requests
// ============================================================

// LineItemInput is one requested line. Totals are never accepted from input.
type LineItemInput struct {
	Type        ItemType `json:"type"`
	Description string   `json:"description"`
	Quantity    float64  `json:"quantity"`
	Unit        string   `json:"unit"`
	UnitPrice   float64  `json:"unit_price"`
}

// Validate checks the item at position i.
func (in *LineItemInput) Validate(i int) error {
	field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }
	switch in.Type {
	case ItemMaterial, ItemLabor:
	default:
		return &ErrValidation{Field: field("type"), Message: "must be material or labor"}
	}
	if strings.TrimSpace(in.Description) == "" {
		return &ErrValidation{Field: field("description"), Message: "is required"}
	}
	if in.Quantity < 0 {
		return &ErrValidation{Field: field("quantity"), Message: "must not be negative"}
	}
	if in.UnitPrice < 0 {
		return &ErrValidation{Field: field("unit_price"), Message: "must not be negative"}
	}
	return nil
}

// CreateEstimateRequest is the body of POST /v1/estimates.
type CreateEstimateRequest struct {
	ClientID   *string         `json:"client_id"`
	JobAddress *string         `json:"job_address"`
	Status     string          `json:"status"`
	Notes      *string         `json:"notes"`
	ValidUntil *string         `json:"valid_until"`
	Items      []LineItemInput `json:"items"`
}

// Validate checks the request and returns the initial status.
// New estimates start as draft unless explicitly sent.
func (r *CreateEstimateRequest) Validate() (EstimateStatus, error) {
	status := EstimateDraft
	if strings.TrimSpace(r.Status) != "" {
		st, err := ParseEstimateStatus(r.Status)
		if err != nil {
			return "", err
		}
		if st.IsTerminal() {
			return "", &ErrValidation{Field: "status", Message: "new estimates must be draft or sent"}
		}
		status = st
	}
	if err := validateDate("valid_until", r.ValidUntil); err != nil {
		return "", err
	}
	for i := range r.Items {
		if err := r.Items[i].Validate(i); err != nil {
			return "", err
		}
	}
	return status, nil
}

// EstimateUpdate is the body of PATCH /v1/estimates/{id}. Monetary fields
// and line items are snapshots and cannot be patched.
type EstimateUpdate struct {
	ClientID   *string `json:"client_id"`
	JobAddress *string `json:"job_address"`
	Status     *string `json:"status"`
	Notes      *string `json:"notes"`
	ValidUntil *string `json:"valid_until"`
	PDFURL     *string `json:"pdf_url"`
}

// Apply validates the update and merges it into e. Client ownership is the
// caller's concern.
func (u *EstimateUpdate) Apply(e *Estimate, now time.Time) error {
	if u.Status != nil {
		to, err := ParseEstimateStatus(*u.Status)
		if err != nil {
			return err
		}
		if err := e.TransitionTo(to, now); err != nil {
			return err
		}
	}
	if u.ValidUntil != nil {
		v := NullableString(*u.ValidUntil)
		if err := validateDate("valid_until", v); err != nil {
			return err
		}
		e.ValidUntil = v
	}
	if u.ClientID != nil {
		e.ClientID = NullableString(*u.ClientID)
	}
	if u.JobAddress != nil {
		e.JobAddress = NullableString(*u.JobAddress)
	}
	if u.Notes != nil {
		e.Notes = NullableString(*u.Notes)
	}
	if u.PDFURL != nil {
		e.PDFURL = NullableString(*u.PDFURL)
	}
	return nil
}

func validateDate(field string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	if _, err := time.Parse(DateLayout, *v); err != nil {
		return &ErrValidation{Field: field, Message: "must be a date in YYYY-MM-DD format"}
	}
	return nil
}

// ============================================================
// Queries
// ============================================================

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
	MaxListOffset    = 10000
)

// EstimateQuery filters GET /v1/estimates.
type EstimateQuery struct {
	Status EstimateStatus
	Limit  int
	Offset int
}

// Normalize applies the default page size and clamps limit and offset.
func (q *EstimateQuery) Normalize() {
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Offset > MaxListOffset {
		q.Offset = MaxListOffset
	}
}

// StatusTotal is the minimal projection used for dashboard statistics.
type StatusTotal struct {
	Status EstimateStatus `json:"status"`
	Total  float64        `json:"total"`
}

// DashboardStats is returned by GET /v1/dashboard.
type DashboardStats struct {
	TotalEstimates int        `json:"total_estimates"`
	WinRate        int        `json:"win_rate"`
	AverageTotal   float64    `json:"average_total"`
	Pending        int        `json:"pending"`
	Recent         []Estimate `json:"recent"`
}
