package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/boddenberg/estimator-bff-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

type estimateInsert struct {
	UserID     string                `json:"user_id"`
	ClientID   *string               `json:"client_id"`
	JobAddress *string               `json:"job_address"`
	Status     domain.EstimateStatus `json:"status"`
	Subtotal   float64               `json:"subtotal"`
	Tax        float64               `json:"tax"`
	Total      float64               `json:"total"`
	Notes      *string               `json:"notes"`
	ValidUntil *string               `json:"valid_until"`
	SentAt     *time.Time            `json:"sent_at"`
}

// estimatePatch carries only the mutable columns; totals are snapshots.
type estimatePatch struct {
	ClientID   *string               `json:"client_id"`
	JobAddress *string               `json:"job_address"`
	Status     domain.EstimateStatus `json:"status"`
	Notes      *string               `json:"notes"`
	ValidUntil *string               `json:"valid_until"`
	SentAt     *time.Time            `json:"sent_at"`
	PDFURL     *string               `json:"pdf_url"`
}

type lineItemInsert struct {
	EstimateID  string          `json:"estimate_id"`
	Type        domain.ItemType `json:"type"`
	Description string          `json:"description"`
	Quantity    float64         `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   float64         `json:"unit_price"`
	Total       float64         `json:"total"`
	SortOrder   int             `json:"sort_order"`
}

// ListEstimates returns one page of the user's estimates, newest first,
// with the client embedded.
func (c *Client) ListEstimates(ctx context.Context, userID string, q domain.EstimateQuery) ([]domain.Estimate, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListEstimates")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	q.Normalize()
	path := fmt.Sprintf("estimates?user_id=%s&select=*,clients(*)&order=created_at.desc&limit=%d&offset=%d",
		eq(userID), q.Limit, q.Offset)
	if q.Status != "" {
		path += "&status=" + eq(string(q.Status))
	}

	var estimates []domain.Estimate
	err := c.read(ctx, "supabase/estimates", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		estimates, err = decodeRows[domain.Estimate](body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return estimates, nil
}

// GetEstimate returns the estimate with its client and line items.
func (c *Client) GetEstimate(ctx context.Context, userID, id string) (*domain.Estimate, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetEstimate")
	defer span.End()
	span.SetAttributes(attribute.String("estimate.id", id))

	path := fmt.Sprintf("estimates?id=%s&user_id=%s&select=*,clients(*),estimate_items(*)&estimate_items.order=sort_order.asc&limit=1",
		eq(id), eq(userID))

	var estimate *domain.Estimate
	err := c.read(ctx, "supabase/estimates", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		estimate, err = decodeOne[domain.Estimate](body, "estimate", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(estimate.Items, func(i, j int) bool {
		return estimate.Items[i].SortOrder < estimate.Items[j].SortOrder
	})
	return estimate, nil
}

func (c *Client) CreateEstimate(ctx context.Context, e *domain.Estimate) (*domain.Estimate, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateEstimate")
	defer span.End()

	row := estimateInsert{
		UserID:     e.UserID,
		ClientID:   e.ClientID,
		JobAddress: e.JobAddress,
		Status:     e.Status,
		Subtotal:   e.Subtotal,
		Tax:        e.Tax,
		Total:      e.Total,
		Notes:      e.Notes,
		ValidUntil: e.ValidUntil,
		SentAt:     e.SentAt,
	}

	var created *domain.Estimate
	err := c.write(ctx, "supabase/estimates", func() error {
		body, err := c.doPost(ctx, "estimates", row)
		if err != nil {
			return err
		}
		created, err = decodeOne[domain.Estimate](body, "estimate", "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateEstimate patches the row only while its status is still from.
func (c *Client) UpdateEstimate(ctx context.Context, e *domain.Estimate, from domain.EstimateStatus) (*domain.Estimate, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateEstimate")
	defer span.End()
	span.SetAttributes(attribute.String("estimate.id", e.ID))

	path := fmt.Sprintf("estimates?id=%s&user_id=%s&status=%s", eq(e.ID), eq(e.UserID), eq(string(from)))
	patch := estimatePatch{
		ClientID:   e.ClientID,
		JobAddress: e.JobAddress,
		Status:     e.Status,
		Notes:      e.Notes,
		ValidUntil: e.ValidUntil,
		SentAt:     e.SentAt,
		PDFURL:     e.PDFURL,
	}

	var updated *domain.Estimate
	err := c.write(ctx, "supabase/estimates", func() error {
		body, err := c.doPatch(ctx, path, patch)
		if err != nil {
			return err
		}
		updated, err = decodeOne[domain.Estimate](body, "estimate", e.ID)
		return err
	})
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		// No row matched: either it is gone or its status moved on.
		exists, existsErr := c.estimateExists(ctx, e.UserID, e.ID)
		if existsErr != nil {
			return nil, existsErr
		}
		if exists {
			return nil, domain.StaleEstimate(e.ID)
		}
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (c *Client) estimateExists(ctx context.Context, userID, id string) (bool, error) {
	path := fmt.Sprintf("estimates?id=%s&user_id=%s&select=id&limit=1", eq(id), eq(userID))

	var exists bool
	err := c.read(ctx, "supabase/estimates", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		rows, err := decodeRows[struct {
			ID string `json:"id"`
		}](body)
		exists = len(rows) > 0
		return err
	})
	return exists, err
}

func (c *Client) DeleteEstimate(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteEstimate")
	defer span.End()
	span.SetAttributes(attribute.String("estimate.id", id))

	path := fmt.Sprintf("estimates?id=%s&user_id=%s", eq(id), eq(userID))
	return c.write(ctx, "supabase/estimates", func() error {
		body, err := c.doDelete(ctx, path)
		if err != nil {
			return err
		}
		_, err = decodeOne[domain.Estimate](body, "estimate", id)
		return err
	})
}

// CreateLineItems bulk-inserts items in one request.
func (c *Client) CreateLineItems(ctx context.Context, items []domain.LineItem) ([]domain.LineItem, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateLineItems")
	defer span.End()
	span.SetAttributes(attribute.Int("items.count", len(items)))

	if len(items) == 0 {
		return []domain.LineItem{}, nil
	}

	rows := make([]lineItemInsert, 0, len(items))
	for _, it := range items {
		rows = append(rows, lineItemInsert{
			EstimateID:  it.EstimateID,
			Type:        it.Type,
			Description: it.Description,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			UnitPrice:   it.UnitPrice,
			Total:       it.Total,
			SortOrder:   it.SortOrder,
		})
	}

	var created []domain.LineItem
	err := c.write(ctx, "supabase/estimate_items", func() error {
		body, err := c.doPost(ctx, "estimate_items", rows)
		if err != nil {
			return err
		}
		created, err = decodeRows[domain.LineItem](body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeleteLineItems removes every item of an estimate. Callers verify
// ownership of the estimate first.
func (c *Client) DeleteLineItems(ctx context.Context, estimateID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteLineItems")
	defer span.End()
	span.SetAttributes(attribute.String("estimate.id", estimateID))

	path := "estimate_items?estimate_id=" + eq(estimateID)
	return c.write(ctx, "supabase/estimate_items", func() error {
		_, err := c.doDelete(ctx, path)
		return err
	})
}

// StatusTotals projects status and total of every estimate of the user.
func (c *Client) StatusTotals(ctx context.Context, userID string) ([]domain.StatusTotal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.StatusTotals")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("estimates?user_id=%s&select=status,total", eq(userID))

	var totals []domain.StatusTotal
	err := c.read(ctx, "supabase/estimates", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		totals, err = decodeRows[domain.StatusTotal](body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return totals, nil
}
