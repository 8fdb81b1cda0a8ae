package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/boddenberg/estimator-bff-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads exactly one JSON object into v. Unknown fields are
// rejected so only the typed mutable fields can ever be written.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &domain.ErrValidation{Message: "request body is required"}
		}
		return &domain.ErrValidation{Message: "invalid request body: " + err.Error()}
	}
	if dec.More() {
		return &domain.ErrValidation{Message: "invalid request body: unexpected data after JSON object"}
	}
	return nil
}

func queryInt(r *http.Request, name string) (int, bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, &domain.ErrValidation{Field: name, Message: "must be an integer"}
	}
	return n, true, nil
}

// parseEstimateQuery reads status, limit and offset. Range clamping is
// left to EstimateQuery.Normalize.
func parseEstimateQuery(r *http.Request) (domain.EstimateQuery, error) {
	var q domain.EstimateQuery
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := domain.ParseEstimateStatus(s)
		if err != nil {
			return q, err
		}
		q.Status = st
	}
	limit, ok, err := queryInt(r, "limit")
	if err != nil {
		return q, err
	}
	if ok {
		q.Limit = limit
	}
	offset, _, err := queryInt(r, "offset")
	if err != nil {
		return q, err
	}
	q.Offset = offset
	return q, nil
}

// handleServiceError maps domain errors to HTTP responses. Upstream and
// unexpected failures never leak their detail to the client.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var validation *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized
	var conflict *domain.ErrConflict

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s not found", titleCase(notFound.Resource)))
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func titleCase(s string) string {
	if s == "" {
		return "Resource"
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
