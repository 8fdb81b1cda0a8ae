package supabase

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boddenberg/estimator-bff-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// clientRow is the insert/update payload for the clients table.
type clientRow struct {
	UserID  string  `json:"user_id"`
	Name    string  `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
}

func toClientRow(c *domain.Client) clientRow {
	return clientRow{
		UserID:  c.UserID,
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Address: c.Address,
		Notes:   c.Notes,
	}
}

// ListClients returns the user's clients ordered by name, optionally
// filtered by a case-insensitive match on name, email or phone.
func (c *Client) ListClients(ctx context.Context, userID, search string) ([]domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListClients")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("clients?user_id=%s&select=*&order=name.asc", eq(userID))
	if term := ilikeTerm(search); term != "" {
		path += fmt.Sprintf("&or=(name.ilike.*%[1]s*,email.ilike.*%[1]s*,phone.ilike.*%[1]s*)", term)
	}

	var clients []domain.Client
	err := c.read(ctx, "supabase/clients", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		clients, err = decodeRows[domain.Client](body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return clients, nil
}

func (c *Client) GetClient(ctx context.Context, userID, id string) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	path := fmt.Sprintf("clients?id=%s&user_id=%s&select=*&limit=1", eq(id), eq(userID))

	var client *domain.Client
	err := c.read(ctx, "supabase/clients", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		client, err = decodeOne[domain.Client](body, "client", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) CreateClient(ctx context.Context, in *domain.Client) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateClient")
	defer span.End()

	var client *domain.Client
	err := c.write(ctx, "supabase/clients", func() error {
		body, err := c.doPost(ctx, "clients", toClientRow(in))
		if err != nil {
			return err
		}
		client, err = decodeOne[domain.Client](body, "client", "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) UpdateClient(ctx context.Context, in *domain.Client) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", in.ID))

	path := fmt.Sprintf("clients?id=%s&user_id=%s", eq(in.ID), eq(in.UserID))

	var client *domain.Client
	err := c.write(ctx, "supabase/clients", func() error {
		body, err := c.doPatch(ctx, path, toClientRow(in))
		if err != nil {
			return err
		}
		client, err = decodeOne[domain.Client](body, "client", in.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// DeleteClient removes the client. The schema's ON DELETE SET NULL keeps
// the user's estimates.
func (c *Client) DeleteClient(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	path := fmt.Sprintf("clients?id=%s&user_id=%s", eq(id), eq(userID))
	return c.write(ctx, "supabase/clients", func() error {
		body, err := c.doDelete(ctx, path)
		if err != nil {
			return err
		}
		_, err = decodeOne[domain.Client](body, "client", id)
		return err
	})
}
