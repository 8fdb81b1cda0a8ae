package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/estimator-bff-go/internal/domain"
	"github.com/boddenberg/estimator-bff-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// ============================================================
// HTTP helpers for GET, POST, PATCH, DELETE
// ============================================================

// invalidTextCode is the Postgres SQLSTATE for invalid_text_representation.
const invalidTextCode = "22P02"

// statusError is a non-2xx PostgREST response.
type statusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	return c.send(ctx, method, path, nil, "return=representation")
}

func (c *Client) doPost(ctx context.Context, table string, data any) ([]byte, error) {
	return c.send(ctx, http.MethodPost, table, data, "return=representation")
}

// doUpsert inserts or merges on the primary key.
func (c *Client) doUpsert(ctx context.Context, table string, data any) ([]byte, error) {
	return c.send(ctx, http.MethodPost, table, data, "resolution=merge-duplicates,return=representation")
}

func (c *Client) doPatch(ctx context.Context, path string, data any) ([]byte, error) {
	return c.send(ctx, http.MethodPatch, path, data, "return=representation")
}

// doDelete returns the deleted rows so callers can tell a miss from a hit.
func (c *Client) doDelete(ctx context.Context, path string) ([]byte, error) {
	return c.send(ctx, http.MethodDelete, path, nil, "return=representation")
}

// send executes an authenticated request. 404 and 204 yield nil data.
// 4xx responses are marked permanent so they are neither retried nor
// counted against the breaker.
func (c *Client) send(ctx context.Context, method, path string, data any, prefer string) ([]byte, error) {
	var reqBody io.Reader
	if data != nil {
		jsonBody, err := json.Marshal(data)
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.restURL(path), reqBody)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, resilience.Permanent(err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		serr := &statusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(body)}
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(serr)
		}
		return nil, serr
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeRows unmarshals a PostgREST array. Empty bodies decode to an
// empty slice.
func decodeRows[T any](body []byte) ([]T, error) {
	if len(body) == 0 {
		return []T{}, nil
	}
	var rows []T
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

// decodeOne returns the first row or a permanent ErrNotFound.
func decodeOne[T any](body []byte, resource, id string) (*T, error) {
	rows, err := decodeRows[T](body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, notFound(resource, id)
	}
	return &rows[0], nil
}

// ============================================================
// Query building
// ============================================================

func eq(v string) string { return "eq." + url.QueryEscape(v) }

// ilikeTerm strips the characters PostgREST treats as syntax inside an
// or=(...) filter.
func ilikeTerm(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '*', '%', '"', '\\':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	return url.QueryEscape(s)
}

// ============================================================
// Error mapping
// ============================================================

func notFound(resource, id string) error {
	return resilience.Permanent(&domain.ErrNotFound{Resource: resource, ID: id})
}

func circuitOpen() error { return &domain.ErrCircuitOpen{Service: "supabase"} }

func externalErr(service string, err error) error {
	return &domain.ErrExternalService{Service: service, Err: err}
}

func asDomainError(err error) error {
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		return nf
	}
	var ve *domain.ErrValidation
	if errors.As(err, &ve) {
		return ve
	}
	var ce *domain.ErrConflict
	if errors.As(err, &ce) {
		return ce
	}
	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.Status == http.StatusConflict:
			return &domain.ErrConflict{Message: "record already exists"}
		case se.Status == http.StatusBadRequest && strings.Contains(se.Body, invalidTextCode):
			// A malformed uuid can never match a row.
			return &domain.ErrNotFound{Resource: "record"}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: "supabase"}
	}
	return nil
}
