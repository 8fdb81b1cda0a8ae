package supabase

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boddenberg/estimator-bff-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

type materialRow struct {
	ID           string  `json:"id,omitempty"`
	UserID       *string `json:"user_id"`
	Trade        *string `json:"trade"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	DefaultPrice float64 `json:"default_price"`
	IsCustom     bool    `json:"is_custom"`
}

func toMaterialRow(m *domain.Material) materialRow {
	return materialRow{
		ID:           m.ID,
		UserID:       m.UserID,
		Trade:        domain.NullableString(string(m.Trade)),
		Name:         m.Name,
		Unit:         m.Unit,
		DefaultPrice: m.DefaultPrice,
		IsCustom:     m.IsCustom,
	}
}

// ListMaterials returns the user's custom materials, optionally for one trade.
func (c *Client) ListMaterials(ctx context.Context, userID string, trade domain.Trade) ([]domain.Material, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListMaterials")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("trade", string(trade)))

	path := fmt.Sprintf("materials?user_id=%s&is_custom=eq.true&select=*&order=name.asc", eq(userID))
	if trade != "" {
		path += "&trade=" + eq(string(trade))
	}

	var materials []domain.Material
	err := c.read(ctx, "supabase/materials", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		materials, err = decodeRows[domain.Material](body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return materials, nil
}

func (c *Client) GetMaterial(ctx context.Context, userID, id string) (*domain.Material, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetMaterial")
	defer span.End()
	span.SetAttributes(attribute.String("material.id", id))

	path := fmt.Sprintf("materials?id=%s&user_id=%s&select=*&limit=1", eq(id), eq(userID))

	var material *domain.Material
	err := c.read(ctx, "supabase/materials", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		material, err = decodeOne[domain.Material](body, "material", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return material, nil
}

func (c *Client) CreateMaterial(ctx context.Context, m *domain.Material) (*domain.Material, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateMaterial")
	defer span.End()

	row := toMaterialRow(m)
	row.ID = ""

	var created *domain.Material
	err := c.write(ctx, "supabase/materials", func() error {
		body, err := c.doPost(ctx, "materials", row)
		if err != nil {
			return err
		}
		created, err = decodeOne[domain.Material](body, "material", "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Client) UpdateMaterial(ctx context.Context, m *domain.Material) (*domain.Material, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateMaterial")
	defer span.End()
	span.SetAttributes(attribute.String("material.id", m.ID))

	path := fmt.Sprintf("materials?id=%s&user_id=%s", eq(m.ID), eq(domain.Deref(m.UserID)))
	row := toMaterialRow(m)
	row.ID = ""

	var updated *domain.Material
	err := c.write(ctx, "supabase/materials", func() error {
		body, err := c.doPatch(ctx, path, row)
		if err != nil {
			return err
		}
		updated, err = decodeOne[domain.Material](body, "material", m.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (c *Client) DeleteMaterial(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteMaterial")
	defer span.End()
	span.SetAttributes(attribute.String("material.id", id))

	path := fmt.Sprintf("materials?id=%s&user_id=%s", eq(id), eq(userID))
	return c.write(ctx, "supabase/materials", func() error {
		body, err := c.doDelete(ctx, path)
		if err != nil {
			return err
		}
		_, err = decodeOne[domain.Material](body, "material", id)
		return err
	})
}

// UpsertSystemMaterials writes catalog rows keyed by their stable ids.
func (c *Client) UpsertSystemMaterials(ctx context.Context, items []domain.Material) (int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertSystemMaterials")
	defer span.End()
	span.SetAttributes(attribute.Int("items.count", len(items)))

	rows := make([]materialRow, 0, len(items))
	for i := range items {
		row := toMaterialRow(&items[i])
		row.UserID = nil
		row.IsCustom = false
		rows = append(rows, row)
	}

	var n int
	err := c.write(ctx, "supabase/materials", func() error {
		body, err := c.doUpsert(ctx, "materials?on_conflict=id", rows)
		if err != nil {
			return err
		}
		saved, err := decodeRows[domain.Material](body)
		n = len(saved)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
